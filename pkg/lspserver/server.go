// Package lspserver is a small Language Server Protocol framework: JSON-RPC
// 2.0 over "Content-Length" framed streams, a method registry, middleware
// chains and the initialize/shutdown/exit lifecycle.
//
// Quick Start:
//
//	server := lspserver.New("my-server", "1.0.0")
//	server.Register("textDocument/completion", complete)
//	server.Serve(ctx, os.Stdin, os.Stdout)
package lspserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const (
	MethodInitialize  = "initialize"
	MethodInitialized = "initialized"
	MethodShutdown    = "shutdown"
	MethodExit        = "exit"
)

// MethodFunc handles the params of one method. The result is encoded as the
// response; returning an *RPCError controls the error code.
type MethodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// HandlerFunc is a function that handles a JSON-RPC request. It returns nil
// for notifications.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// Middleware is a function that wraps a request handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Server dispatches JSON-RPC requests to registered methods.
type Server struct {
	name         string
	version      string
	capabilities ServerCapabilities
	methods      map[string]MethodFunc
	middleware   []Middleware
	logger       *slog.Logger

	mu       sync.Mutex
	shutdown bool
}

// New creates a server with the lifecycle methods registered.
func New(name, version string) *Server {
	s := &Server{
		name:    name,
		version: version,
		methods: make(map[string]MethodFunc),
		logger:  slog.Default(),
	}
	s.Register(MethodInitialize, s.handleInitialize)
	s.Register(MethodInitialized, func(context.Context, json.RawMessage) (any, error) {
		s.logger.Info("client initialized")
		return nil, nil
	})
	s.Register(MethodShutdown, func(context.Context, json.RawMessage) (any, error) {
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil
	})
	s.Register(MethodExit, func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	})
	return s
}

// SetCapabilities sets what initialize advertises.
func (s *Server) SetCapabilities(c ServerCapabilities) {
	s.capabilities = c
}

// SetLogger replaces the server logger.
func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Register adds or replaces the handler of a method.
func (s *Server) Register(method string, fn MethodFunc) {
	s.methods[method] = fn
	s.logger.Debug("registered method", "method", method)
}

// Use adds middleware to the server's processing chain.
func (s *Server) Use(mw Middleware) {
	s.middleware = append(s.middleware, mw)
}

// ShutdownRequested reports whether the client sent shutdown.
func (s *Server) ShutdownRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Serve reads framed messages from r and writes responses to w until the
// client sends exit, the input ends or ctx is cancelled. Messages are handled
// one at a time in arrival order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("starting language server", "name", s.name, "version", s.version, "methods", len(s.methods))
	in := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := ReadMessage(in)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var req Request
		var resp *Response
		if err := json.Unmarshal(body, &req); err != nil {
			resp = &Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "Parse error: " + err.Error()}}
		} else {
			resp = s.HandleRequest(ctx, &req)
		}

		if resp != nil {
			out, err := json.Marshal(resp)
			if err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			if err := WriteMessage(w, out); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
		if req.Method == MethodExit {
			return nil
		}
	}
}

// HandleRequest processes a single request and returns its response, or nil
// for notifications.
func (s *Server) HandleRequest(ctx context.Context, req *Request) *Response {
	handler := s.coreHandler
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}
	return handler(ctx, req)
}

func (s *Server) coreHandler(ctx context.Context, req *Request) *Response {
	fn, ok := s.methods[req.Method]
	if !ok {
		if req.IsNotification() {
			s.logger.Debug("ignoring notification", "method", req.Method)
			return nil
		}
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)},
		}
	}

	result, err := fn(ctx, req.Params)
	if req.IsNotification() {
		if err != nil {
			s.logger.Warn("notification failed", "method", req.Method, "error", err)
		}
		return nil
	}

	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &RPCError{Code: CodeInternalError, Message: err.Error()}
		}
		resp.Error = rpcErr
		return resp
	}
	resp.Result = result
	return resp
}

func (s *Server) handleInitialize(context.Context, json.RawMessage) (any, error) {
	return &InitializeResult{
		Capabilities: s.capabilities,
		ServerInfo:   ServerInfo{Name: s.name, Version: s.version},
	}, nil
}

// DecodeParams unmarshals params into T and reports failures as invalid
// params errors.
func DecodeParams[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, &RPCError{Code: CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	return v, nil
}
