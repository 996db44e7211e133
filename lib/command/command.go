// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package command is the name→handler lookup table and error boundary
// for bridge methods. It knows nothing about sockets, threads, or the
// editor's object model: routing is a map lookup, and the boundary
// converts anything a handler throws — a classified [protocol.Error],
// an ordinary error, or a panic — into a structured failure response.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/editorlink-project/editorlink/lib/protocol"
)

// HandlerFunc executes one bridge method. params is the raw request
// payload; the handler decodes whatever fields it needs. Return a
// value for the response's result (nil for a null result), or an error
// for a failure response.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Registry maps method names to handlers. Registration happens once at
// startup; Route is safe for concurrent use afterward (and concurrent
// registration is tolerated, though not expected).
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. logger may be nil.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Register binds a handler to a method name. A duplicate registration
// replaces the earlier handler (last write wins) — this is a
// startup-time wiring decision, but it is almost always a mistake in
// the wiring code, so it is logged as a warning.
func (r *Registry) Register(method string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[method]; exists {
		r.logger.Warn("duplicate method registration replaces earlier handler", "method", method)
	}
	r.handlers[method] = handler
}

// Methods returns all registered method names, sorted.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.handlers))
	for method := range r.handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

// Route looks up and invokes the handler for a method, converting
// every failure mode into a response envelope. A request for an
// unregistered method never reaches any handler: it produces a
// METHOD_NOT_FOUND response whose details enumerate the registered
// methods, which doubles as client-side discovery.
func (r *Registry) Route(ctx context.Context, method string, params json.RawMessage) protocol.Response {
	r.mu.RLock()
	handler, exists := r.handlers[method]
	r.mu.RUnlock()

	if !exists {
		return protocol.Failure(
			protocol.CodeMethodNotFound,
			"no handler registered for method "+method,
			map[string]any{"registered": r.Methods()},
		)
	}
	return r.invoke(ctx, method, handler, params)
}

// invoke runs the handler inside the error boundary.
func (r *Registry) invoke(ctx context.Context, method string, handler HandlerFunc, params json.RawMessage) (response protocol.Response) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("handler panic", "method", method, "panic", recovered)
			response = protocol.Failure(
				protocol.CodeInternalError,
				"handler panic: "+formatPanic(recovered),
				map[string]any{"stack": string(debug.Stack())},
			)
		}
	}()

	result, err := handler(ctx, params)
	if err != nil {
		var classified *protocol.Error
		if errors.As(err, &classified) {
			return protocol.Failure(classified.Code, classified.Message, classified.Details)
		}
		return protocol.Failure(protocol.CodeInternalError, err.Error(), nil)
	}
	return protocol.Success(result)
}

func formatPanic(recovered any) string {
	if err, ok := recovered.(error); ok {
		return err.Error()
	}
	if message, ok := recovered.(string); ok {
		return message
	}
	data, err := json.Marshal(recovered)
	if err != nil {
		return "unprintable panic value"
	}
	return string(data)
}
