// Package registry implements FileRegistry: the mapping from normalized
// project path to {EditBuffer, subscriber set} that the scheduler owns and
// mutates exclusively. Its boot-time crawl and directory-skip rules are
// adapted from the teacher's pkg/cache Service.initialCrawl (two-phase
// walk-then-read) and ignore.go (ShouldIgnorePath), narrowed from vault
// ignore-file semantics to the spec's simpler "skip dotfiles and .git"
// default.
package registry

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/collabcore/collabcore/internal/editbuffer"
)

// Logger is the minimal logging surface Registry needs.
type Logger interface {
	Printf(format string, v ...interface{})
}

// FileEntry is the per-file state FileRegistry owns: the edit buffer plus
// the set of users currently subscribed to its notifications.
type FileEntry struct {
	Buffer      *editbuffer.EditBuffer
	Subscribers map[string]struct{}
}

// Node is one entry in a project tree listing.
type Node struct {
	Path  string
	IsDir bool
}

// Registry is the path -> FileEntry map. A coarse mutex guards it so that
// the mutating goroutines (the scheduler, and the Watcher's loop when one
// is running) and the synchronous read-only accessors used by the HTTP/MCP front doors (PeekContent,
// ListNodes) never observe a torn map or a half-applied flush; see
// DESIGN.md's Open Question decision on the `dump` boundary.
type Registry struct {
	mu         sync.RWMutex
	sourceRoot string
	files      map[string]*FileEntry
	logger     Logger
}

// Boot constructs a Registry and populates it by reading every file under
// sourceRoot. Each file's initial content is its on-disk bytes, version 0,
// pending empty, subscribers empty.
func Boot(sourceRoot string, logger Logger) (*Registry, error) {
	r := &Registry{
		sourceRoot: sourceRoot,
		files:      make(map[string]*FileEntry),
		logger:     logger,
	}

	err := filepath.WalkDir(sourceRoot, func(abs string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if abs == sourceRoot {
			return nil
		}
		if d.IsDir() {
			if shouldIgnore(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldIgnore(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(sourceRoot, abs)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return err
		}

		path := toProjectPath(rel)
		r.files[path] = &FileEntry{
			Buffer:      editbuffer.New(content),
			Subscribers: make(map[string]struct{}),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func shouldIgnore(name string) bool {
	return strings.HasPrefix(name, ".")
}

func toProjectPath(rel string) string {
	return "/" + filepath.ToSlash(rel)
}

// Ensure returns the existing entry at path, or creates and stores a new
// empty one.
func (r *Registry) Ensure(path string) *FileEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(path)
}

func (r *Registry) ensureLocked(path string) *FileEntry {
	e, ok := r.files[path]
	if !ok {
		e = &FileEntry{
			Buffer:      editbuffer.New(nil),
			Subscribers: make(map[string]struct{}),
		}
		r.files[path] = e
	}
	return e
}

// loadExternal installs on-disk content discovered by Watcher outside the
// edit pipeline. A file with pending edits is left untouched: the edit
// pipeline stays authoritative over buffers already in flight, and the next
// critical sweep will flush over whatever the watcher saw.
func (r *Registry) loadExternal(path string, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.files[path]; ok {
		if !e.Buffer.IsEmpty() {
			return
		}
		e.Buffer = editbuffer.New(content)
		return
	}
	r.files[path] = &FileEntry{
		Buffer:      editbuffer.New(content),
		Subscribers: make(map[string]struct{}),
	}
}

// Get looks up path without creating it.
func (r *Registry) Get(path string) (*FileEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.files[path]
	return e, ok
}

// Remove drops the entry at path. Subsequent subscribers get a fresh empty
// entry (per FileEntry's lifecycle invariant: removing a file invalidates
// all references to the old entry).
func (r *Registry) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, path)
}

// Subscribe registers user to path, creating the entry if necessary.
func (r *Registry) Subscribe(user, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(path).Subscribers[user] = struct{}{}
}

// Unsubscribe removes user from path's subscriber set. No error if path or
// user is absent.
func (r *Registry) Unsubscribe(user, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.files[path]; ok {
		delete(e.Subscribers, user)
	}
}

// UnsubscribeAll removes user from every entry's subscriber set.
func (r *Registry) UnsubscribeAll(user string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.files {
		delete(e.Subscribers, user)
	}
}

// ListNodes returns the union of directory paths discovered from the
// on-disk source tree and all file paths currently in the registry, sorted
// lexicographically; directories are flagged true, files false.
func (r *Registry) ListNodes() ([]Node, error) {
	dirs := make(map[string]struct{})
	err := filepath.WalkDir(r.sourceRoot, func(abs string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if abs == r.sourceRoot {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if shouldIgnore(d.Name()) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(r.sourceRoot, abs)
		if err != nil {
			return err
		}
		dirs[toProjectPath(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	nodes := make([]Node, 0, len(dirs)+len(r.files))
	for d := range dirs {
		nodes = append(nodes, Node{Path: d, IsDir: true})
	}
	for p := range r.files {
		nodes = append(nodes, Node{Path: p, IsDir: false})
	}
	r.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
	return nodes, nil
}

// PeekContent returns a copy of path's currently committed content and
// version without going through the task queue. Safe because committed
// content and version change only under the registry lock (Flush inside
// CriticalSweep, and Watcher reloads via loadExternal), and PeekContent
// holds that same lock while reading.
func (r *Registry) PeekContent(path string) (content []byte, version uint64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.files[path]
	if !ok {
		return nil, 0, false
	}
	return e.Buffer.Content(), e.Buffer.Version(), true
}

// SweepResult is one file's outcome from a critical sweep pass.
type SweepResult struct {
	Path        string
	Changes     []editbuffer.Change
	Version     uint64
	Subscribers []string
}

// CriticalSweep flushes every non-empty buffer and returns one SweepResult
// per file that had pending modifications, in unspecified order (per
// spec.md §5: "The critical sweep visits files in unspecified order within
// a cycle"). The lock is held only while collecting results, not while the
// caller later dispatches notifications, so a slow or buggy listener can
// never block a subsequent Peek or mutation.
func (r *Registry) CriticalSweep() []SweepResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []SweepResult
	for path, e := range r.files {
		if e.Buffer.IsEmpty() {
			continue
		}
		version, changes := e.Buffer.Flush(r.logger)
		subs := make([]string, 0, len(e.Subscribers))
		for u := range e.Subscribers {
			subs = append(subs, u)
		}
		results = append(results, SweepResult{
			Path:        path,
			Changes:     changes,
			Version:     version,
			Subscribers: subs,
		})
	}
	return results
}
