// Package notify implements NotificationRouter: strategy-selected fan-out
// of core events to registered listeners. It is the direct Go rendering of
// original_source/core.py's StrategyCallEmpty / upgrade_strategy /
// _change_core_strategy design, called out by name in spec.md §4.5 and §9.
package notify

import (
	"sync"

	"github.com/collabcore/collabcore/internal/editbuffer"
	"github.com/collabcore/collabcore/internal/registry"
)

// Logger is the minimal logging surface Router needs.
type Logger interface {
	Printf(format string, v ...interface{})
}

// FileContentResult is the payload of an onFileContent event; nil means
// "not found" (spec.md §4.5).
type FileContentResult struct {
	Path    string
	Content []byte
	Version uint64
}

// Listener is the capability set a registered observer must implement.
// Exactly one registration per identity is expected at a time (callers are
// responsible for that invariant; Router itself only prevents duplicate
// pointer registration).
type Listener interface {
	OnFileEdit(path string, changes []editbuffer.Change, version uint64, subscribers []string)
	OnProjectNodes(nodes []registry.Node, caller string)
	OnFileContent(result *FileContentResult, caller string)
}

// strategy is the installed fan-out mode. send is called with a snapshot
// of the current listener list; emptyStrategy.send is a no-op that never
// touches listeners. The event closure passed to send is still built by
// the Router method on every event, whichever strategy is installed, so the
// zero-listener path does allocate that closure.
type strategy interface {
	send(listeners []Listener, event func(Listener))
}

type emptyStrategy struct{}

func (emptyStrategy) send([]Listener, func(Listener)) {}

type activeStrategy struct {
	logger Logger
}

func (s activeStrategy) send(listeners []Listener, event func(Listener)) {
	for _, l := range listeners {
		invoke(l, event, s.logger)
	}
}

func invoke(l Listener, event func(Listener), logger Logger) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Printf("notify: listener panicked: %v", r)
		}
	}()
	event(l)
}

// Router fans events out to registered listeners. The listener slice is
// copy-on-write: Register/Unregister always allocate a fresh backing
// array, so a strategy holding a snapshot taken under the lock never races
// with a concurrent registration change.
type Router struct {
	mu        sync.Mutex
	listeners []Listener
	strategy  strategy
	logger    Logger
}

// NewRouter creates a Router starting in the empty (zero-listener) strategy.
func NewRouter(logger Logger) *Router {
	return &Router{strategy: emptyStrategy{}, logger: logger}
}

// Register adds l to the listener list, upgrading to the active strategy
// when this is the first listener.
func (r *Router) Register(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.listeners {
		if existing == l {
			return
		}
	}
	next := make([]Listener, len(r.listeners)+1)
	copy(next, r.listeners)
	next[len(r.listeners)] = l
	r.listeners = next

	if len(r.listeners) == 1 {
		r.changeStrategy(activeStrategy{logger: r.logger})
	}
}

// Unregister removes l from the listener list, downgrading to the empty
// strategy when the list becomes empty.
func (r *Router) Unregister(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, existing := range r.listeners {
		if existing == l {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	next := make([]Listener, 0, len(r.listeners)-1)
	next = append(next, r.listeners[:idx]...)
	next = append(next, r.listeners[idx+1:]...)
	r.listeners = next

	if len(r.listeners) == 0 {
		r.changeStrategy(emptyStrategy{})
	}
}

func (r *Router) changeStrategy(s strategy) {
	r.strategy = s
}

func (r *Router) snapshot() (strategy, []Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.strategy, r.listeners
}

// FileEdit emits onFileEdit(path, changes, version, subscribers) to every
// registered listener, in registration order.
func (r *Router) FileEdit(path string, changes []editbuffer.Change, version uint64, subscribers []string) {
	s, listeners := r.snapshot()
	s.send(listeners, func(l Listener) { l.OnFileEdit(path, changes, version, subscribers) })
}

// ProjectNodes emits a one-shot onProjectNodes reply addressed to caller.
func (r *Router) ProjectNodes(nodes []registry.Node, caller string) {
	s, listeners := r.snapshot()
	s.send(listeners, func(l Listener) { l.OnProjectNodes(nodes, caller) })
}

// FileContent emits a one-shot onFileContent reply addressed to caller.
// result is nil for "not found".
func (r *Router) FileContent(result *FileContentResult, caller string) {
	s, listeners := r.snapshot()
	s.send(listeners, func(l Listener) { l.OnFileContent(result, caller) })
}
