package mcpfront_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/collabcore/collabcore/internal/core"
	"github.com/collabcore/collabcore/internal/mcpfront"
	"github.com/collabcore/collabcore/internal/scheduler"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T) *core.CoreAPI {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	c, err := core.New(root, core.Config{
		Scheduler: scheduler.Config{
			CycleTime:       50 * time.Millisecond,
			BufferCritical:  20,
			BufferSecondary: 40,
			BufferAuxiliary: 40,
		},
		QueueSize: 64,
		TmpDir:    t.TempDir(),
		Name:      "proj",
	})
	require.NoError(t, err)
	c.Start()
	t.Cleanup(func() { c.Stop(); c.Wait() })
	return c
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func decodeResult(t *testing.T, res *mcp.CallToolResult, out interface{}) {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	require.NoError(t, json.Unmarshal([]byte(tc.Text), out))
}

func TestGetFileToolReturnsContent(t *testing.T) {
	c := newTestCore(t)
	handler := mcpfront.GetFileTool(mcpfront.Config{Core: c})

	res, err := handler(context.Background(), callRequest(map[string]interface{}{"path": "/a.txt"}))
	require.NoError(t, err)

	var out struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Version uint64 `json:"version"`
	}
	decodeResult(t, res, &out)
	assert.Equal(t, "/a.txt", out.Path)
	assert.Equal(t, "hello", out.Content)
}

func TestGetFileToolRejectsInvalidPath(t *testing.T) {
	c := newTestCore(t)
	handler := mcpfront.GetFileTool(mcpfront.Config{Core: c})

	res, err := handler(context.Background(), callRequest(map[string]interface{}{"path": "relative.txt"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSaveChangesToolThenGetFileReflectsEdit(t *testing.T) {
	c := newTestCore(t)
	save := mcpfront.SaveChangesTool(mcpfront.Config{Core: c})
	get := mcpfront.GetFileTool(mcpfront.Config{Core: c})

	_, err := save(context.Background(), callRequest(map[string]interface{}{
		"path": "/a.txt",
		"changes": []interface{}{
			map[string]interface{}{"type": float64(1), "pos": float64(5), "content": "!"},
		},
	}))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	res, err := get(context.Background(), callRequest(map[string]interface{}{"path": "/a.txt"}))
	require.NoError(t, err)
	var out struct {
		Content string `json:"content"`
	}
	decodeResult(t, res, &out)
	assert.Equal(t, "hello!", out.Content)
}

func TestListTreeToolListsNodes(t *testing.T) {
	c := newTestCore(t)
	handler := mcpfront.ListTreeTool(mcpfront.Config{Core: c})

	res, err := handler(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var out struct {
		Nodes []struct {
			Path  string `json:"node"`
			IsDir bool   `json:"isDir"`
		} `json:"nodes"`
	}
	decodeResult(t, res, &out)

	var sawA bool
	for _, n := range out.Nodes {
		if n.Path == "/a.txt" && !n.IsDir {
			sawA = true
		}
	}
	assert.True(t, sawA)
}

func TestCreateArchiveToolWritesZip(t *testing.T) {
	c := newTestCore(t)
	handler := mcpfront.CreateArchiveTool(mcpfront.Config{Core: c})

	res, err := handler(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var out struct {
		Path string `json:"path"`
	}
	decodeResult(t, res, &out)
	assert.FileExists(t, out.Path)
}
