package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher mirrors on-disk changes under a Registry's source root back into
// the in-memory FileEntry map, for files created, written or removed by
// something other than the edit pipeline (a checkout, a build step, another
// tool touching the project). It is adapted from the teacher's
// pkg/cache Service watchLoop: one fsnotify.Watcher, directories added
// recursively as they're discovered, events translated into registry
// mutations rather than the teacher's dirty-marker map, since Registry has
// no separate refresh pass to reconcile against.
type Watcher struct {
	fsw    *fsnotify.Watcher
	reg    *Registry
	logger Logger
	done   chan struct{}
}

// NewWatcher creates a Watcher over reg's source tree. The watch set is
// seeded synchronously so no create event inside the tree is missed between
// construction and Run.
func NewWatcher(reg *Registry, logger Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("registry: create watcher: %w", err)
	}

	w := &Watcher{fsw: fsw, reg: reg, logger: logger, done: make(chan struct{})}
	if err := w.addTree(reg.sourceRoot); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("registry: seed watch tree: %w", err)
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(abs string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if abs != root && shouldIgnore(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(abs)
	})
}

// Run starts the watch loop in a background goroutine. Close stops it.
func (w *Watcher) Run() {
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(evt)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Printf("registry: watcher error: %v", err)
			}
		}
	}
}

func (w *Watcher) handle(evt fsnotify.Event) {
	if shouldIgnore(filepath.Base(evt.Name)) {
		return
	}
	rel, err := filepath.Rel(w.reg.sourceRoot, evt.Name)
	if err != nil {
		return
	}
	path := toProjectPath(rel)

	switch {
	case evt.Op&fsnotify.Create != 0:
		info, err := os.Stat(evt.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addTree(evt.Name); err != nil && w.logger != nil {
				w.logger.Printf("registry: watch new directory %s: %v", evt.Name, err)
			}
			return
		}
		w.loadFromDisk(evt.Name, path)
	case evt.Op&fsnotify.Write != 0:
		w.loadFromDisk(evt.Name, path)
	case evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.reg.Remove(path)
	}
}

func (w *Watcher) loadFromDisk(abs, path string) {
	content, err := os.ReadFile(abs)
	if err != nil {
		return
	}
	w.reg.loadExternal(path, content)
}

// Close stops the watch loop and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
