// Package core implements CoreAPI, the thin enqueueing facade in front of
// the scheduler, registry and notification router. It is grounded on
// original_source/core.py's Core class: every public method there builds a
// closure and calls self.tasks.put(...); this package mirrors that shape
// one-for-one, substituting a Go closure plus a declared worst-case
// duration for the original's bare callable.
package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/collabcore/collabcore/internal/archive"
	"github.com/collabcore/collabcore/internal/editbuffer"
	"github.com/collabcore/collabcore/internal/notify"
	"github.com/collabcore/collabcore/internal/pathutil"
	"github.com/collabcore/collabcore/internal/registry"
	"github.com/collabcore/collabcore/internal/scheduler"
	"github.com/collabcore/collabcore/internal/taskqueue"
)

// metadataWorstCase is the declared worst-case duration for every
// metadata-only task (subscription changes, listing, lookups) — small and
// uniform, per spec.md §4.6 ("conventionally small for metadata ops").
const metadataWorstCase = time.Millisecond

// Config bundles the scheduler period/bands, the task queue capacity, and
// the directory roles CoreAPI boots against.
type Config struct {
	Scheduler scheduler.Config
	QueueSize int
	TmpDir    string
	Name      string
}

// Logger is the minimal logging surface CoreAPI and its collaborators need.
type Logger interface {
	Printf(format string, v ...interface{})
}

// CoreAPI is the facade external callers (HTTP handlers, MCP tool handlers,
// tests) use. All mutating operations enqueue a Task and return
// immediately; registerApplicationListener/unregisterApplicationListener
// and start/stop are synchronous, per spec.md §4.6.
type CoreAPI struct {
	cfg      Config
	registry *registry.Registry
	watcher  *registry.Watcher
	queue    *taskqueue.Queue
	router   *notify.Router
	sched    *scheduler.Scheduler
	logger   Logger
}

// New boots a CoreAPI against sourceRoot: the registry is populated from
// disk, the task queue and notification router are created, and the
// scheduler is wired to the registry's critical sweep. Start must be called
// separately to begin running cycles.
func New(sourceRoot string, cfg Config) (*CoreAPI, error) {
	logger := log.Default()

	reg, err := registry.Boot(sourceRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("core: boot registry: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	queue := taskqueue.New(queueSize)
	router := notify.NewRouter(logger)

	watcher, err := registry.NewWatcher(reg, logger)
	if err != nil {
		// Degrade to no live filesystem sync rather than fail boot outright;
		// the registry still reflects whatever Boot's crawl captured.
		logger.Printf("core: filesystem watcher unavailable, external changes will not be reflected: %v", err)
		watcher = nil
	}

	c := &CoreAPI{
		cfg:      cfg,
		registry: reg,
		watcher:  watcher,
		queue:    queue,
		router:   router,
		logger:   logger,
	}

	sweepTask := taskqueue.Task{
		Fn:        c.criticalSweep,
		WorstCase: 5 * time.Millisecond,
		Debug:     "critical-sweep",
	}
	c.sched = scheduler.New(cfg.Scheduler, queue, sweepTask, logger, nil)
	return c, nil
}

// Start begins the scheduler's cycle loop and, if one was created, the
// filesystem watcher's loop.
func (c *CoreAPI) Start() {
	if c.watcher != nil {
		c.watcher.Run()
	}
	c.sched.Start()
}

// Stop requests scheduler termination; the current cycle still completes.
// The filesystem watcher, if running, is closed immediately since it has no
// in-flight cycle to honor.
func (c *CoreAPI) Stop() {
	c.sched.Stop()
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil {
			c.logger.Printf("core: closing filesystem watcher: %v", err)
		}
	}
}

// Wait blocks until a requested Stop has taken effect.
func (c *CoreAPI) Wait() { c.sched.Wait() }

// RegisterApplicationListener is synchronous: it mutates the listener list
// (and, on the 0->1 transition, the router's strategy) immediately, per
// spec.md §4.6.
func (c *CoreAPI) RegisterApplicationListener(l notify.Listener) {
	c.router.Register(l)
}

// UnregisterApplicationListener is the symmetric synchronous removal.
func (c *CoreAPI) UnregisterApplicationListener(l notify.Listener) {
	c.router.Unregister(l)
}

// GetProjectNodes enqueues an async task that emits onProjectNodes(caller).
func (c *CoreAPI) GetProjectNodes(caller string) {
	c.queue.Put(taskqueue.Task{
		Fn: func() {
			nodes, err := c.registry.ListNodes()
			if err != nil {
				c.logger.Printf("core: list nodes: %v", err)
				nodes = nil
			}
			c.router.ProjectNodes(nodes, caller)
		},
		WorstCase: metadataWorstCase,
		Debug:     "getProjectNodes",
	})
}

// GetFileContent enqueues an async task that emits onFileContent(result,
// caller); result is nil when path is unknown (spec.md §4.5, §7 "Missing
// resource").
func (c *CoreAPI) GetFileContent(path, caller string) {
	c.queue.Put(taskqueue.Task{
		Fn: func() {
			c.emitFileContent(path, caller)
		},
		WorstCase: metadataWorstCase,
		Debug:     "getFileContent",
	})
}

func (c *CoreAPI) emitFileContent(path, caller string) {
	content, version, ok := c.registry.PeekContent(path)
	if !ok {
		c.router.FileContent(nil, caller)
		return
	}
	c.router.FileContent(&notify.FileContentResult{Path: path, Content: content, Version: version}, caller)
}

// OpenFile enqueues an async task: ensure the entry exists, subscribe user,
// and reply with its current content via onFileContent.
func (c *CoreAPI) OpenFile(user, path string) {
	c.queue.Put(taskqueue.Task{
		Fn: func() {
			c.registry.Subscribe(user, path)
			c.emitFileContent(path, user)
		},
		WorstCase: metadataWorstCase,
		Debug:     "openFile",
	})
}

// UnregisterUserToFile enqueues an async unsubscribe from one path.
func (c *CoreAPI) UnregisterUserToFile(user, path string) {
	c.queue.Put(taskqueue.Task{
		Fn:        func() { c.registry.Unsubscribe(user, path) },
		WorstCase: metadataWorstCase,
		Debug:     "unregisterUserToFile",
	})
}

// UnregisterUserToAllFiles enqueues an async unsubscribe from every path.
func (c *CoreAPI) UnregisterUserToAllFiles(user string) {
	c.queue.Put(taskqueue.Task{
		Fn:        func() { c.registry.UnsubscribeAll(user) },
		WorstCase: metadataWorstCase,
		Debug:     "unregisterUserToAllFiles",
	})
}

// FileEdit enqueues an async append of changes to path's pending queue. The
// author tag is carried through to PendingMod for logging/attribution.
func (c *CoreAPI) FileEdit(path string, changes []editbuffer.Change, author string) {
	mods := make([]editbuffer.PendingMod, len(changes))
	for i, ch := range changes {
		mods[i] = editbuffer.PendingMod{Change: ch, Author: author}
	}
	c.queue.Put(taskqueue.Task{
		Fn: func() {
			e, ok := c.registry.Get(path)
			if !ok {
				// Lifecycle race (spec.md §7): file removed concurrently
				// with an in-flight edit becomes a no-op.
				return
			}
			e.Buffer.Append(mods)
		},
		WorstCase: metadataWorstCase,
		Debug:     "fileEdit",
	})
}

// AddFile enqueues an async ensure-exists at path. Recovered from
// original_source/core.py's add_file. Neither the REST surface nor the MCP
// front door calls it; it is reachable from Go callers and tests.
func (c *CoreAPI) AddFile(path string) {
	c.queue.Put(taskqueue.Task{
		Fn:        func() { c.registry.Ensure(path) },
		WorstCase: metadataWorstCase,
		Debug:     "addFile",
	})
}

// DeleteFile enqueues an async removal of path, invalidating any held
// FileEntry reference per the lifecycle invariant. Recovered from
// original_source/core.py's delete_file.
func (c *CoreAPI) DeleteFile(path string) {
	c.queue.Put(taskqueue.Task{
		Fn:        func() { c.registry.Remove(path) },
		WorstCase: metadataWorstCase,
		Debug:     "deleteFile",
	})
}

// ArchiveResult is the one-shot outcome of CreateArchive.
type ArchiveResult struct {
	Path string
	Err  error
}

// CreateArchive enqueues an async-with-future task: it ZIPs every file
// whose path has prefix, writes it under the configured temp directory,
// and delivers the resulting path (or an error) on the returned channel
// exactly once.
func (c *CoreAPI) CreateArchive(prefix, caller string) <-chan ArchiveResult {
	result := make(chan ArchiveResult, 1)
	c.queue.Put(taskqueue.Task{
		Fn: func() {
			nodes, err := c.registry.ListNodes()
			if err != nil {
				result <- ArchiveResult{Err: err}
				return
			}

			var files []archive.File
			for _, n := range nodes {
				if n.IsDir || !pathutil.HasPrefix(n.Path, prefix) {
					continue
				}
				content, _, ok := c.registry.PeekContent(n.Path)
				if !ok {
					continue
				}
				files = append(files, archive.File{Path: n.Path, Content: content})
			}

			outPath := filepath.Join(c.cfg.TmpDir, fmt.Sprintf("%s-%s.zip", c.cfg.Name, caller))
			if err := archive.Write(outPath, files); err != nil {
				result <- ArchiveResult{Err: err}
				return
			}
			result <- ArchiveResult{Path: outPath}
		},
		WorstCase: 50 * time.Millisecond,
		Debug:     "createArchive",
	})
	return result
}

// PeekFileContent is the synchronous read accessor resolving spec.md §9's
// dump Open Question (see DESIGN.md): it bypasses the task queue entirely
// and reads FileRegistry/EditBuffer state directly, which is safe because
// committed content and version change only under the registry lock (the
// scheduler's critical sweep and the filesystem watcher's reloads) and
// PeekContent takes that same lock.
func (c *CoreAPI) PeekFileContent(path string) (content []byte, version uint64, ok bool) {
	return c.registry.PeekContent(path)
}

// ListNodesSync is a synchronous counterpart to GetProjectNodes for
// front doors that need an immediate reply (the GET /tree route) rather
// than an async onProjectNodes push.
func (c *CoreAPI) ListNodesSync() ([]registry.Node, error) {
	return c.registry.ListNodes()
}

func (c *CoreAPI) criticalSweep() {
	for _, result := range c.registry.CriticalSweep() {
		sort.Strings(result.Subscribers)
		c.router.FileEdit(result.Path, result.Changes, result.Version, result.Subscribers)
	}
}

// EnsureDirectories creates base/code/backup/exec/tmp directories if
// absent and clears tmp, per spec.md §6 "Filesystem" / original_source's
// Core.__init__ directory-creation and temp-clear loops.
func EnsureDirectories(baseDir, codeDir, backupDir, execDir, tmpDir string) error {
	for _, dir := range []string{baseDir, codeDir, backupDir, execDir, tmpDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("core: create directory %q: %w", dir, err)
		}
	}
	if tmpDir == "" {
		return nil
	}
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return fmt.Errorf("core: read temp directory %q: %w", tmpDir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(tmpDir, e.Name())); err != nil {
			return fmt.Errorf("core: clear temp directory %q: %w", tmpDir, err)
		}
	}
	return nil
}
