package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Route binds a chi-style path pattern to a handler.
type Route struct {
	Pattern string
	Name    string
	Handler Handler
}

// URLRouter matches a scope's path against a list of routes and forwards to
// the matching one. Matching follows chi: static segments take precedence
// over {param} segments regardless of list order.
type URLRouter struct {
	mux    *chi.Mux
	routes []Route
}

type scopeKey struct{}

type dispatch struct {
	scope *Scope
	err   error
}

// NewURLRouter compiles routes. The list must be non-empty and every pattern
// must be accepted by chi.
func NewURLRouter(routes []Route) (u *URLRouter, err error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}

	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		d := r.Context().Value(scopeKey{}).(*dispatch)
		d.err = &NoRouteError{Path: d.scope.Path}
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		d := r.Context().Value(scopeKey{}).(*dispatch)
		d.err = &NoRouteError{Path: d.scope.Path}
	})

	// chi panics on conflicting or malformed patterns.
	defer func() {
		if rec := recover(); rec != nil {
			u = nil
			err = fmt.Errorf("%w: %v", ErrInvalidPattern, rec)
		}
	}()

	for _, rt := range routes {
		if rt.Handler == nil {
			return nil, fmt.Errorf("%w: route %q", ErrNilHandler, rt.Pattern)
		}
		if !strings.HasPrefix(rt.Pattern, "/") {
			return nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidPattern, rt.Pattern)
		}
		mux.Handle(rt.Pattern, routeHandler(rt))
	}

	return &URLRouter{mux: mux, routes: append([]Route(nil), routes...)}, nil
}

func routeHandler(rt Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := r.Context().Value(scopeKey{}).(*dispatch)

		kwargs := make(map[string]string)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, k := range rctx.URLParams.Keys {
				if k == "*" {
					continue
				}
				kwargs[k] = rctx.URLParams.Values[i]
			}
		}

		matched := *d.scope
		matched.URLRoute = URLRoute{Pattern: rt.Pattern, Name: rt.Name, Kwargs: kwargs}
		d.err = rt.Handler.Serve(r.Context(), &matched)
	})
}

// Routes returns a copy of the route list in match order.
func (u *URLRouter) Routes() []Route {
	return append([]Route(nil), u.routes...)
}

// Serve matches scope.Path and forwards a copy of scope carrying the match
// to the route's handler. scope itself is not modified.
func (u *URLRouter) Serve(ctx context.Context, scope *Scope) error {
	d := &dispatch{scope: scope}
	ctx = context.WithValue(ctx, scopeKey{}, d)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	req.URL.Path = scope.Path
	if scope.Path == "" {
		req.URL.Path = "/"
	}

	u.mux.ServeHTTP(discardWriter{}, req)
	return d.err
}

// discardWriter absorbs chi's writes; route handlers use the scope's own
// writer.
type discardWriter struct{}

func (discardWriter) Header() http.Header         { return http.Header{} }
func (discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (discardWriter) WriteHeader(int)             {}
