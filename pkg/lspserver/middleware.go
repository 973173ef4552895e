package lspserver

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware logs all incoming requests and their results.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			start := time.Now()
			resp := next(ctx, req)
			logger.Debug("lsp request", "method", req.Method, "id", string(req.ID), "duration", time.Since(start))
			if resp != nil && resp.Error != nil {
				logger.Error("lsp error", "method", req.Method, "code", resp.Error.Code, "message", resp.Error.Message)
			}
			return resp
		}
	}
}

// RecoveryMiddleware catches panics and returns a JSON-RPC error.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (resp *Response) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in lsp handler", "method", req.Method, "panic", r)
					if req.IsNotification() {
						resp = nil
						return
					}
					resp = &Response{
						JSONRPC: "2.0",
						ID:      req.ID,
						Error:   &RPCError{Code: CodeInternalError, Message: "Internal error"},
					}
				}
			}()
			return next(ctx, req)
		}
	}
}
