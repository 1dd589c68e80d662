package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ProtocolTypeRouter dispatches connections by protocol type. The table is
// fixed at construction and never written again.
type ProtocolTypeRouter struct {
	table  [numProtocolTypes]Handler
	logger *slog.Logger
}

// Option configures a ProtocolTypeRouter.
type Option func(*ProtocolTypeRouter)

// WithLogger sets the logger used for errors surfaced through ServeHTTP.
func WithLogger(l *slog.Logger) Option {
	return func(r *ProtocolTypeRouter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewProtocolTypeRouter builds a router from table. Protocols missing from
// table are rejected at dispatch time; nil handlers and out-of-range keys
// are construction errors.
func NewProtocolTypeRouter(table map[ProtocolType]Handler, opts ...Option) (*ProtocolTypeRouter, error) {
	r := &ProtocolTypeRouter{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for p, h := range table {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProtocolType, p)
		}
		if h == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilHandler, p)
		}
		r.table[p] = h
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Handler returns the handler registered for p.
func (r *ProtocolTypeRouter) Handler(p ProtocolType) (Handler, bool) {
	if !p.Valid() {
		return nil, false
	}
	h := r.table[p]
	return h, h != nil
}

// Dispatch hands scope to the handler registered for scope.Type and returns
// whatever that handler returns.
func (r *ProtocolTypeRouter) Dispatch(ctx context.Context, scope *Scope) error {
	p, err := ParseProtocolType(scope.Type)
	if err != nil {
		return err
	}

	var h Handler
	switch p {
	case ProtocolHTTP:
		h = r.table[ProtocolHTTP]
	case ProtocolWebSocket:
		h = r.table[ProtocolWebSocket]
	}
	if h == nil {
		return &ProtocolNotSupportedError{Protocol: scope.Type}
	}
	return h.Serve(ctx, scope)
}

// Serve lets a ProtocolTypeRouter be nested inside another router.
func (r *ProtocolTypeRouter) Serve(ctx context.Context, scope *Scope) error {
	return r.Dispatch(ctx, scope)
}

// ServeHTTP is the net/http entry point.
func (r *ProtocolTypeRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	scope := ScopeFromRequest(w, req)
	err := r.Dispatch(req.Context(), scope)
	switch {
	case err == nil:
	case errors.Is(err, ErrProtocolNotSupported):
		r.logger.Warn("rejected connection", "protocol", scope.Type, "remote_addr", scope.RemoteAddr, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNoRoute):
		r.logger.Debug("no websocket route", "path", scope.Path, "remote_addr", scope.RemoteAddr)
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		r.logger.Error("connection handler failed", "protocol", scope.Type, "path", scope.Path, "remote_addr", scope.RemoteAddr, "error", err)
	}
}
