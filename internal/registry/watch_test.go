package registry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/collabcore/collabcore/internal/editbuffer"
	"github.com/collabcore/collabcore/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWatcherPicksUpNewFile(t *testing.T) {
	root := t.TempDir()
	reg, err := registry.Boot(root, nil)
	require.NoError(t, err)

	w, err := registry.NewWatcher(reg, nil)
	require.NoError(t, err)
	w.Run()
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("hi"), 0o644))

	ok := waitForCondition(t, time.Second, func() bool {
		content, _, found := reg.PeekContent("/new.txt")
		return found && string(content) == "hi"
	})
	assert.True(t, ok, "watcher should have registered the new file")
}

func TestWatcherRemovesDeletedFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("bye"), 0o644))

	reg, err := registry.Boot(root, nil)
	require.NoError(t, err)
	_, _, ok := reg.PeekContent("/gone.txt")
	require.True(t, ok)

	w, err := registry.NewWatcher(reg, nil)
	require.NoError(t, err)
	w.Run()
	defer w.Close()

	require.NoError(t, os.Remove(path))

	ok = waitForCondition(t, time.Second, func() bool {
		_, _, found := reg.PeekContent("/gone.txt")
		return !found
	})
	assert.True(t, ok, "watcher should have removed the deleted file")
}

func TestWatcherLeavesPendingEditsAlone(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "edited.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	reg, err := registry.Boot(root, nil)
	require.NoError(t, err)
	entry, ok := reg.Get("/edited.txt")
	require.True(t, ok)

	// Simulate an in-flight collaborative edit by appending a pending
	// modification without flushing it.
	entry.Buffer.Append([]editbuffer.PendingMod{
		{Change: editbuffer.Change{Pos: 0, IsAdd: true, Bytes: []byte("x")}, Author: "alice"},
	})

	w, err := registry.NewWatcher(reg, nil)
	require.NoError(t, err)
	w.Run()
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("external overwrite"), 0o644))
	time.Sleep(100 * time.Millisecond)

	content, _, _ := reg.PeekContent("/edited.txt")
	assert.Equal(t, "original", string(content))
}
