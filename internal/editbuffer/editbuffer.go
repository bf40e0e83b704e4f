// Package editbuffer implements the per-file pending-modification queue: the
// applied byte content, the queue of not-yet-applied changes, and the
// monotonic version counter bumped on every flush.
//
// An EditBuffer is not safe for concurrent use by itself; callers must
// serialize access (the scheduler does this by being the only goroutine
// that ever flushes a buffer).
package editbuffer

import (
	"fmt"
)

// Change describes a single insertion or deletion at a byte offset.
type Change struct {
	Pos   int
	IsAdd bool
	Bytes []byte // valid when IsAdd
	Count int    // valid when !IsAdd
}

// PendingMod is a Change paired with the author that submitted it.
type PendingMod struct {
	Change
	Author string
}

// Logger is the minimal logging surface EditBuffer needs; satisfied by
// *log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// EditBuffer holds one file's committed content plus its pending queue.
type EditBuffer struct {
	content []byte
	pending []PendingMod
	version uint64
}

// New creates an EditBuffer with the given initial content (e.g. read from
// disk at boot, or empty for a newly opened file).
func New(content []byte) *EditBuffer {
	b := &EditBuffer{}
	if len(content) > 0 {
		b.content = append([]byte(nil), content...)
	}
	return b
}

// Append atomically appends mods to the pending queue. Non-blocking;
// callers are assumed to have already validated argument shapes.
func (b *EditBuffer) Append(mods []PendingMod) {
	b.pending = append(b.pending, mods...)
}

// IsEmpty reports whether the pending queue has no entries.
func (b *EditBuffer) IsEmpty() bool {
	return len(b.pending) == 0
}

// Version returns the current committed version.
func (b *EditBuffer) Version() uint64 {
	return b.version
}

// Content returns a copy of the currently committed content. Safe to call
// between flushes; never reflects pending (unflushed) modifications.
func (b *EditBuffer) Content() []byte {
	return append([]byte{}, b.content...)
}

// Flush drains the entire pending queue, applies each change to content in
// queue order, increments version by 1, and returns the new version plus the
// list of changes actually applied (in apply order, post-clamp).
//
// An insertion past the end is clamped to the end. A deletion whose position
// is out of range, or whose count is negative, is dropped and logged; the
// remaining changes continue to be applied (partial-success semantics).
// Flush is a no-op (returns the current version, nil) if the pending queue
// was already empty.
func (b *EditBuffer) Flush(logger Logger) (uint64, []Change) {
	if len(b.pending) == 0 {
		return b.version, nil
	}

	pending := b.pending
	b.pending = nil

	applied := make([]Change, 0, len(pending))
	for _, mod := range pending {
		applied_, ok := b.apply(mod, logger)
		if ok {
			applied = append(applied, applied_)
		}
	}

	b.version++
	return b.version, applied
}

// apply applies a single pending change to content, returning the
// (possibly clamped) Change actually applied and whether it was applied at
// all. A deletion whose starting position is beyond the end of content is
// rejected: it is not possible to clamp a starting position that doesn't
// exist.
func (b *EditBuffer) apply(mod PendingMod, logger Logger) (Change, bool) {
	n := len(b.content)

	if mod.IsAdd {
		pos := mod.Pos
		if pos < 0 {
			pos = 0
		}
		if pos > n {
			pos = n
		}
		out := make([]byte, 0, n+len(mod.Bytes))
		out = append(out, b.content[:pos]...)
		out = append(out, mod.Bytes...)
		out = append(out, b.content[pos:]...)
		b.content = out
		return Change{Pos: pos, IsAdd: true, Bytes: mod.Bytes}, true
	}

	pos := mod.Pos
	if pos < 0 || pos > n {
		if logger != nil {
			logger.Printf("editbuffer: dropping deletion at out-of-range pos=%d (content length %d)", mod.Pos, n)
		}
		return Change{}, false
	}

	count := mod.Count
	if count < 0 {
		if logger != nil {
			logger.Printf("editbuffer: dropping deletion with negative count=%d", count)
		}
		return Change{}, false
	}
	if pos+count > n {
		count = n - pos
	}

	out := make([]byte, 0, n-count)
	out = append(out, b.content[:pos]...)
	out = append(out, b.content[pos+count:]...)
	b.content = out
	return Change{Pos: pos, IsAdd: false, Count: count}, true
}

// String renders a Change for diagnostics.
func (c Change) String() string {
	if c.IsAdd {
		return fmt.Sprintf("add(pos=%d, len=%d)", c.Pos, len(c.Bytes))
	}
	return fmt.Sprintf("remove(pos=%d, count=%d)", c.Pos, c.Count)
}
