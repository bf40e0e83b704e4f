// Package transport is the thin net/http + WebSocket front door described
// in spec.md §6, kept intentionally minimal per the Non-goals: it exists
// to exercise CoreAPI end-to-end, not to carry the educational weight of
// the core itself. Route wiring follows the teacher's plain
// net/http.ServeMux style (no router framework appears anywhere in the
// example pack); the WebSocket connection itself is gorilla/websocket,
// the library the wider ecosystem the pack leans on for exactly this
// daemon-push shape. Session/identity assignment is out of scope (spec.md
// §1 Non-goals): callers identify themselves via a plain "X-User" header
// or "user" query parameter, taken as given rather than authenticated.
package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/collabcore/collabcore/internal/core"
	"github.com/collabcore/collabcore/internal/editbuffer"
	"github.com/collabcore/collabcore/internal/notify"
	"github.com/collabcore/collabcore/internal/pathutil"
	"github.com/collabcore/collabcore/internal/registry"
	"github.com/gorilla/websocket"
)

// Server wires CoreAPI to the REST/WebSocket surface. It implements
// notify.Listener so the scheduler's critical sweep can push onFileEdit
// events straight to connected sockets, filtered by subscriber.
type Server struct {
	core   *core.CoreAPI
	logger *log.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	sockets map[string]*websocket.Conn // user -> connection
}

// NewServer wires a Server against core. logger defaults to log.Default.
func NewServer(c *core.CoreAPI, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		core:    c,
		logger:  logger,
		sockets: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	c.RegisterApplicationListener(s)
	return s
}

// Handler returns the http.Handler implementing spec.md §6's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/open", s.handleOpen)
	mux.HandleFunc("/close", s.handleClose)
	mux.HandleFunc("/save", s.handleSave)
	mux.HandleFunc("/dump", s.handleDump)
	mux.HandleFunc("/tree", s.handleTree)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func userOf(r *http.Request) string {
	if u := r.Header.Get("X-User"); u != "" {
		return u
	}
	return r.URL.Query().Get("user")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"code": status, "message": message})
}

type openRequest struct {
	File string `json:"file"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	user := userOf(r)
	var body openRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || pathutil.Validate(body.File) != nil {
		writeError(w, http.StatusBadRequest, "invalid file path")
		return
	}
	s.core.OpenFile(user, body.File)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "PUT required")
		return
	}
	user := userOf(r)
	var body openRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || pathutil.Validate(body.File) != nil {
		writeError(w, http.StatusBadRequest, "invalid file path")
		return
	}
	s.core.UnregisterUserToFile(user, body.File)
	w.WriteHeader(http.StatusAccepted)
}

type wireChange struct {
	Type    int    `json:"type"`
	Pos     int    `json:"pos"`
	Content string `json:"content,omitempty"`
	Count   int    `json:"count,omitempty"`
}

type saveRequest struct {
	File    string       `json:"file"`
	Vers    int          `json:"vers"`
	Changes []wireChange `json:"changes"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "PUT required")
		return
	}
	user := userOf(r)
	var body saveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || pathutil.Validate(body.File) != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	changes := make([]editbuffer.Change, len(body.Changes))
	for i, wc := range body.Changes {
		switch wc.Type {
		case 1:
			changes[i] = editbuffer.Change{Pos: wc.Pos, IsAdd: true, Bytes: []byte(wc.Content)}
		case -1:
			changes[i] = editbuffer.Change{Pos: wc.Pos, IsAdd: false, Count: wc.Count}
		default:
			writeError(w, http.StatusBadRequest, "change type must be 1 or -1")
			return
		}
	}

	s.core.FileEdit(body.File, changes, user)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	path := r.URL.Query().Get("filename")
	if pathutil.Validate(path) != nil {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	content, version, ok := s.core.PeekFileContent(path)
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"file":    path,
		"vers":    version,
		"content": string(content),
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	nodes, err := s.core.ListNodesSync()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type wireNode struct {
		Node  string `json:"node"`
		IsDir bool   `json:"isDir"`
	}
	out := make([]wireNode, len(nodes))
	for i, n := range nodes {
		out[i] = wireNode{Node: n.Path, IsDir: n.IsDir}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": out})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	user := userOf(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("transport: websocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.sockets[user] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.sockets[user] == conn {
			delete(s.sockets, user)
		}
		s.mu.Unlock()
		conn.Close()
	}()

	// The connection is push-only from the server's point of view; drain
	// and discard inbound frames so the peer's close handshake completes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// OnFileEdit implements notify.Listener: it pushes the wire-format payload
// (spec.md §6) to every subscriber currently holding a WebSocket
// connection. Subscribers with no open socket are silently skipped.
func (s *Server) OnFileEdit(path string, changes []editbuffer.Change, version uint64, subscribers []string) {
	payload := map[string]interface{}{
		"file":    path,
		"vers":    version,
		"changes": wireChanges(changes),
	}

	s.mu.Lock()
	conns := make(map[string]*websocket.Conn, len(subscribers))
	for _, user := range subscribers {
		if c, ok := s.sockets[user]; ok {
			conns[user] = c
		}
	}
	s.mu.Unlock()

	for user, conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			s.logger.Printf("transport: write to %s failed: %v", user, err)
		}
	}
}

func wireChanges(changes []editbuffer.Change) []wireChange {
	out := make([]wireChange, len(changes))
	for i, c := range changes {
		if c.IsAdd {
			out[i] = wireChange{Type: 1, Pos: c.Pos, Content: string(c.Bytes)}
		} else {
			out[i] = wireChange{Type: -1, Pos: c.Pos, Count: c.Count}
		}
	}
	return out
}

// OnProjectNodes implements notify.Listener; the HTTP front door serves
// /tree synchronously via ListNodesSync instead, so this is a no-op sink
// for the async reply.
func (s *Server) OnProjectNodes(nodes []registry.Node, caller string) {}

// OnFileContent implements notify.Listener; /open's reply to the caller
// who just subscribed is informational only at the HTTP boundary (the
// caller already knows it opened the file). It is pushed over the socket
// only if that user has one open at the moment; otherwise it is dropped.
func (s *Server) OnFileContent(result *notify.FileContentResult, caller string) {
	s.mu.Lock()
	conn, ok := s.sockets[caller]
	s.mu.Unlock()
	if !ok {
		return
	}
	if result == nil {
		return
	}
	if err := conn.WriteJSON(map[string]interface{}{
		"file":    result.Path,
		"vers":    result.Version,
		"content": string(result.Content),
	}); err != nil {
		s.logger.Printf("transport: write file content to %s failed: %v", caller, err)
	}
}
