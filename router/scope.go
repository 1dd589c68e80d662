package router

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// Scope describes one inbound connection. It is built by the transport and
// handed unchanged to the handler chosen for its protocol.
type Scope struct {
	// Type is the protocol tag as it arrived from the transport.
	Type string

	Path         string
	RawQuery     string
	Headers      http.Header
	RemoteAddr   string
	Subprotocols []string

	// URLRoute is filled in by URLRouter on the copy it passes downstream.
	URLRoute URLRoute

	Writer  http.ResponseWriter
	Request *http.Request
}

// URLRoute is the result of a successful URLRouter match.
type URLRoute struct {
	Pattern string
	Name    string
	Kwargs  map[string]string
}

// Query parses RawQuery. Malformed pairs are dropped.
func (s *Scope) Query() url.Values {
	v, _ := url.ParseQuery(s.RawQuery)
	return v
}

// ScopeFromRequest builds the scope for an incoming net/http request.
// Requests asking for a websocket upgrade get the websocket tag, everything
// else is http.
func ScopeFromRequest(w http.ResponseWriter, r *http.Request) *Scope {
	tag := TagHTTP
	if websocket.IsWebSocketUpgrade(r) {
		tag = TagWebSocket
	}
	return &Scope{
		Type:         tag,
		Path:         r.URL.Path,
		RawQuery:     r.URL.RawQuery,
		Headers:      r.Header,
		RemoteAddr:   r.RemoteAddr,
		Subprotocols: websocket.Subprotocols(r),
		Writer:       w,
		Request:      r,
	}
}

// Handler serves a connection handed over by a router.
type Handler interface {
	Serve(ctx context.Context, scope *Scope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, scope *Scope) error

func (f HandlerFunc) Serve(ctx context.Context, scope *Scope) error {
	return f(ctx, scope)
}

// HTTPHandler adapts a plain http.Handler. The scope must carry the
// transport's writer and request. A nil h yields a nil Handler so the router
// rejects it at construction.
func HTTPHandler(h http.Handler) Handler {
	if h == nil {
		return nil
	}
	return HandlerFunc(func(ctx context.Context, scope *Scope) error {
		if scope.Writer == nil || scope.Request == nil {
			return ErrMissingTransport
		}
		h.ServeHTTP(scope.Writer, scope.Request.WithContext(ctx))
		return nil
	})
}
