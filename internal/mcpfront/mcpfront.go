// Package mcpfront exposes CoreAPI operations as Model Context Protocol
// tools, grounded on the teacher's pkg/mcp/register.go (tool registration
// against a *server.MCPServer) and pkg/mcp/tools.go (the
// func(Config) func(context.Context, mcp.CallToolRequest)
// (*mcp.CallToolResult, error) tool-handler shape, JSON-encoded-text
// response convention). The open_file and get_file handlers bridge
// CoreAPI's asynchronous task model back to MCP's synchronous call/response
// shape by registering a temporary, call-scoped Listener and waiting on a
// channel it populates exactly once; create_archive waits on the channel
// CreateArchive returns, list_tree calls ListNodesSync, and save_changes
// returns as soon as the edit is enqueued. The listener bridge is the same pattern the teacher's cache service uses to make
// a lazily-triggered background crawl look synchronous to a tool caller.
package mcpfront

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/collabcore/collabcore/internal/core"
	"github.com/collabcore/collabcore/internal/editbuffer"
	"github.com/collabcore/collabcore/internal/notify"
	"github.com/collabcore/collabcore/internal/pathutil"
	"github.com/collabcore/collabcore/internal/registry"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Config bundles the CoreAPI instance tools are registered against plus
// the per-call timeout waiting on a bridged response.
type Config struct {
	Core    *core.CoreAPI
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.Timeout
}

// RegisterAll registers every tool this front door exposes.
func RegisterAll(s *server.MCPServer, config Config) error {
	s.AddTool(mcp.NewTool("open_file",
		mcp.WithDescription("Open a file for editing, subscribing the caller to its onFileEdit notifications, and return its current content and version."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project-rooted absolute path, e.g. /src/main.go")),
	), OpenFileTool(config))

	s.AddTool(mcp.NewTool("save_changes",
		mcp.WithDescription("Append a list of insert/delete changes to a file's pending edit buffer. Changes are flushed on the next scheduler cycle, not immediately. Each entry is an object: {type: 1|-1, pos, content|count}; type=1 is an insertion (content is the inserted text), type=-1 is a deletion (count is the number of bytes removed)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project-rooted absolute path")),
		mcp.WithArray("changes", mcp.Required(), mcp.Description("Ordered list of change objects")),
	), SaveChangesTool(config))

	s.AddTool(mcp.NewTool("get_file",
		mcp.WithDescription("Return a file's current committed content and version without subscribing the caller to future notifications."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project-rooted absolute path")),
	), GetFileTool(config))

	s.AddTool(mcp.NewTool("list_tree",
		mcp.WithDescription("List every file and directory node in the project tree."),
	), ListTreeTool(config))

	s.AddTool(mcp.NewTool("create_archive",
		mcp.WithDescription("Create a ZIP archive of every committed file under the given path prefix and return its on-disk path."),
		mcp.WithString("prefix", mcp.Description("Path prefix to archive; defaults to \"/\" (the whole project)")),
	), CreateArchiveTool(config))

	return nil
}

// onceListener is a call-scoped notify.Listener that forwards the first
// matching event for token to result, then becomes inert. It implements
// the full notify.Listener interface so it can be registered directly.
type onceListener struct {
	token  string
	result chan interface{}
}

func newOnceListener() (*onceListener, string) {
	token := uuid.NewString()
	return &onceListener{token: token, result: make(chan interface{}, 1)}, token
}

func (l *onceListener) OnFileEdit(string, []editbuffer.Change, uint64, []string) {}

func (l *onceListener) OnProjectNodes(nodes []registry.Node, caller string) {
	if caller != l.token {
		return
	}
	select {
	case l.result <- nodes:
	default:
	}
}

func (l *onceListener) OnFileContent(result *notify.FileContentResult, caller string) {
	if caller != l.token {
		return
	}
	select {
	case l.result <- result:
	default:
	}
}

func bridge(ctx context.Context, config Config, dispatch func(token string)) (interface{}, error) {
	l, token := newOnceListener()
	config.Core.RegisterApplicationListener(l)
	defer config.Core.UnregisterApplicationListener(l)

	dispatch(token)

	select {
	case v := <-l.result:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(config.timeout()):
		return nil, fmt.Errorf("mcpfront: timed out waiting for core response")
	}
}

func textResult(v interface{}) (*mcp.CallToolResult, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding response: %s", err)), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}

// OpenFileTool returns the open_file handler.
func OpenFileTool(config Config) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, ok := request.GetArguments()["path"].(string)
		if !ok || pathutil.Validate(path) != nil {
			return mcp.NewToolResultError("path is required and must be a valid project path"), nil
		}

		v, err := bridge(ctx, config, func(token string) {
			config.Core.OpenFile(token, path)
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return fileContentResponse(v)
	}
}

// GetFileTool returns the get_file handler.
func GetFileTool(config Config) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, ok := request.GetArguments()["path"].(string)
		if !ok || pathutil.Validate(path) != nil {
			return mcp.NewToolResultError("path is required and must be a valid project path"), nil
		}

		v, err := bridge(ctx, config, func(token string) {
			config.Core.GetFileContent(path, token)
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return fileContentResponse(v)
	}
}

func fileContentResponse(v interface{}) (*mcp.CallToolResult, error) {
	result, _ := v.(*notify.FileContentResult)
	if result == nil {
		return mcp.NewToolResultError("file not found"), nil
	}
	return textResult(struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Version uint64 `json:"version"`
	}{Path: result.Path, Content: string(result.Content), Version: result.Version})
}

// SaveChangesTool returns the save_changes handler.
func SaveChangesTool(config Config) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		path, ok := args["path"].(string)
		if !ok || pathutil.Validate(path) != nil {
			return mcp.NewToolResultError("path is required and must be a valid project path"), nil
		}
		rawChanges, ok := args["changes"].([]interface{})
		if !ok {
			return mcp.NewToolResultError("changes is required and must be an array"), nil
		}

		changes, err := decodeChanges(rawChanges)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		config.Core.FileEdit(path, changes, "mcp")
		return textResult(struct {
			Accepted int `json:"accepted"`
		}{Accepted: len(changes)})
	}
}

func decodeChanges(raw []interface{}) ([]editbuffer.Change, error) {
	changes := make([]editbuffer.Change, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("each change must be an object")
		}
		kind, _ := m["type"].(float64)
		pos, _ := m["pos"].(float64)

		switch int(kind) {
		case 1:
			content, _ := m["content"].(string)
			changes = append(changes, editbuffer.Change{Pos: int(pos), IsAdd: true, Bytes: []byte(content)})
		case -1:
			count, _ := m["count"].(float64)
			changes = append(changes, editbuffer.Change{Pos: int(pos), IsAdd: false, Count: int(count)})
		default:
			return nil, fmt.Errorf("change type must be 1 (insert) or -1 (delete)")
		}
	}
	return changes, nil
}

// ListTreeTool returns the list_tree handler. It calls the synchronous
// ListNodesSync accessor rather than bridging through onProjectNodes,
// since a directory listing has no per-caller subscriber state to manage.
func ListTreeTool(config Config) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nodes, err := config.Core.ListNodesSync()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		type node struct {
			Path  string `json:"node"`
			IsDir bool   `json:"isDir"`
		}
		out := make([]node, len(nodes))
		for i, n := range nodes {
			out[i] = node{Path: n.Path, IsDir: n.IsDir}
		}
		return textResult(struct {
			Nodes []node `json:"nodes"`
		}{Nodes: out})
	}
}

// CreateArchiveTool returns the create_archive handler.
func CreateArchiveTool(config Config) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prefix, _ := request.GetArguments()["prefix"].(string)
		if prefix == "" {
			prefix = "/"
		}
		if pathutil.Validate(prefix) != nil {
			return mcp.NewToolResultError("prefix must be a valid project path"), nil
		}

		caller := uuid.NewString()
		resultCh := config.Core.CreateArchive(prefix, caller)

		select {
		case result := <-resultCh:
			if result.Err != nil {
				return mcp.NewToolResultError(result.Err.Error()), nil
			}
			return textResult(struct {
				Path string `json:"path"`
			}{Path: result.Path})
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.timeout()):
			return mcp.NewToolResultError("timed out waiting for archive creation"), nil
		}
	}
}
