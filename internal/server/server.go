// Package server implements the session-oriented HTTP transport.
//
// The whole surface is three methods on one path, addressed by the
// Mcp-Session-Id header:
//
//	POST   /mcp  JSON-RPC request; initialize creates a session
//	GET    /mcp  SSE stream of session events
//	DELETE /mcp  session termination
//
// A non-initialize request without a known session id is a permanent client
// error (-32000), never retried by the server.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/embykit/filem/internal/llm"
	"github.com/embykit/filem/internal/orch"
	"github.com/embykit/filem/internal/session"
	"github.com/embykit/filem/internal/tools"
)

// SessionHeader carries the session identifier on every session-scoped
// request and on the initialize response.
const SessionHeader = "Mcp-Session-Id"

// protocolVersion reported by initialize.
const protocolVersion = "2025-03-26"

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Config contains the server's dependencies.
type Config struct {
	Registry *session.Registry // required
	Kit      *tools.Kit        // required
	Logger   *slog.Logger
	Name     string // server name reported by initialize
	Version  string
}

// Server is the transport HTTP server.
type Server struct {
	registry *session.Registry
	kit      *tools.Kit
	logger   *slog.Logger
	name     string
	version  string
	handler  http.Handler
}

// New creates a server with all routes and middleware configured.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("session registry is required")
	}
	if cfg.Kit == nil {
		return nil, errors.New("tool kit is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "filem"
	}

	s := &Server{
		registry: cfg.Registry,
		kit:      cfg.Kit,
		logger:   logger,
		name:     name,
		version:  cfg.Version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", s.handlePost)
	mux.HandleFunc("GET /mcp", s.handleStream)
	mux.HandleFunc("DELETE /mcp", s.handleDelete)
	mux.HandleFunc("GET /health", handleHealth)

	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)
	s.handler = handler

	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.handler }

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePost resolves or creates the session and dispatches the JSON-RPC
// request to it.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, newError(nil, codeParseError, "Parse error"))
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, newError(nil, codeParseError, "Parse error"))
		return
	}

	sessionID := r.Header.Get(SessionHeader)

	// Session handshake: only an initialize request with no prior session id
	// may create a session.
	if sessionID == "" {
		if !req.isInitialize() {
			writeJSON(w, http.StatusBadRequest, newError(nil, codeBadRequest, msgBadRequest))
			return
		}
		sess, err := s.registry.Create()
		if err != nil {
			s.logger.Error("creating session", "error", err, "request_id", requestID(r.Context()))
			writeJSON(w, http.StatusInternalServerError, newError(req.ID, codeInternalError, msgInternalError))
			return
		}
		w.Header().Set(SessionHeader, sess.ID())
		writeJSON(w, http.StatusOK, newResult(req.ID, s.initializeResult()))
		return
	}

	sess, ok := s.registry.Resolve(sessionID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, newError(nil, codeBadRequest, msgBadRequest))
		return
	}

	s.dispatch(w, r, sess, &req)
}

// initializeResult is the handshake payload.
func (s *Server) initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": s.name, "version": s.version},
	}
}

// dispatch routes a request on an established session.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, sess *session.Session, req *rpcRequest) {
	switch req.Method {
	case "initialize":
		writeJSON(w, http.StatusBadRequest, newError(req.ID, codeInvalidRequest, "Invalid Request: session already initialized"))

	case "ping":
		writeJSON(w, http.StatusOK, newResult(req.ID, map[string]any{}))

	case "tools/list":
		writeJSON(w, http.StatusOK, newResult(req.ID, s.toolsListResult()))

	case "tools/call":
		s.handleToolsCall(w, r, req)

	case "chat":
		s.handleChat(w, r, sess, req)

	case "notifications/initialized":
		// Notification; acknowledged without a body.
		w.WriteHeader(http.StatusAccepted)

	default:
		if req.isNotification() {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, http.StatusOK, newError(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method)))
	}
}

func (s *Server) toolsListResult() map[string]any {
	decls := s.kit.Declarations()
	list := make([]map[string]any, 0, len(decls))
	for _, d := range decls {
		list = append(list, map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"inputSchema": d.InputSchema,
		})
	}
	return map[string]any{"tools": list}
}

// toolsCallParams are the tools/call parameters. Arguments stays raw: the
// kit validates it against the tool's declared contract.
type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req *rpcRequest) {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		writeJSON(w, http.StatusOK, newError(req.ID, codeInvalidParams, "Invalid params: name and arguments required"))
		return
	}

	args := string(params.Arguments)
	if args == "" || args == "null" {
		args = "{}"
	}

	result := s.kit.Invoke(r.Context(), llm.ToolCall{Name: params.Name, Arguments: args})

	text, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("encoding tool result", "error", err)
		writeJSON(w, http.StatusInternalServerError, newError(req.ID, codeInternalError, msgInternalError))
		return
	}
	writeJSON(w, http.StatusOK, newResult(req.ID, map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(text)}},
		"isError": result.Status == tools.StatusError,
	}))
}

// chatParams are the chat parameters.
type chatParams struct {
	Message string `json:"message"`
}

// handleChat runs one orchestrator turn and returns the terminal AIMessage.
// Turn-level failures (model errors, malformed terminal answers, exhausted
// turn limit) are internal errors to the caller; tool failures have already
// been folded into the conversation by the orchestrator.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, sess *session.Session, req *rpcRequest) {
	var params chatParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Message == "" {
		writeJSON(w, http.StatusOK, newError(req.ID, codeInvalidParams, "Invalid params: message required"))
		return
	}

	msg, err := sess.Chat(r.Context(), params.Message)
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			writeJSON(w, http.StatusBadRequest, newError(req.ID, codeBadRequest, msgBadRequest))
			return
		}
		s.logger.Error("turn failed", "session", sess.ID(), "error", err,
			"bad_answer", errors.Is(err, orch.ErrBadAnswer), "request_id", requestID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, newError(req.ID, codeInternalError, msgInternalError))
		return
	}

	writeJSON(w, http.StatusOK, newResult(req.ID, msg))
}

// handleStream attaches an SSE subscriber to the session's event feed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.resolveHeader(r)
	if !ok {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}

	events, cancel, err := sess.Subscribe()
	if err != nil {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}
	defer cancel()

	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				// Session closed.
				return
			}
			if err := sse.WriteMessage(msg); err != nil {
				s.logger.Debug("event write failed", "session", sess.ID(), "error", err)
				return
			}
		}
	}
}

// handleDelete terminates the session.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.resolveHeader(r)
	if !ok {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}

	s.registry.Close(sess.ID())
	w.WriteHeader(http.StatusOK)
}

func (s *Server) resolveHeader(r *http.Request) (*session.Session, bool) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return nil, false
	}
	return s.registry.Resolve(id)
}
