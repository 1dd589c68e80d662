package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls atomic.Int32
	last  atomic.Pointer[Scope]
	err   error
}

func (r *recorder) Serve(_ context.Context, scope *Scope) error {
	r.calls.Add(1)
	r.last.Store(scope)
	return r.err
}

func newTestRouter(t *testing.T) (*ProtocolTypeRouter, *recorder, *recorder) {
	t.Helper()
	httpH, wsH := &recorder{}, &recorder{}
	r, err := NewProtocolTypeRouter(map[ProtocolType]Handler{
		ProtocolHTTP:      httpH,
		ProtocolWebSocket: wsH,
	})
	require.NoError(t, err)
	return r, httpH, wsH
}

func TestDispatch_HTTPGoesToHTTPHandler(t *testing.T) {
	r, httpH, wsH := newTestRouter(t)

	scope := &Scope{Type: "http", Path: "/"}
	require.NoError(t, r.Dispatch(context.Background(), scope))

	assert.Equal(t, int32(1), httpH.calls.Load())
	assert.Equal(t, int32(0), wsH.calls.Load())
	assert.Same(t, scope, httpH.last.Load())
}

func TestDispatch_WebSocketGoesToSubRouterUnmodified(t *testing.T) {
	r, httpH, wsH := newTestRouter(t)

	scope := &Scope{
		Type:     "websocket",
		Path:     "/chat/",
		RawQuery: "userId=u1",
		Headers:  http.Header{"Origin": []string{"http://localhost"}},
	}
	require.NoError(t, r.Dispatch(context.Background(), scope))

	assert.Equal(t, int32(0), httpH.calls.Load())
	require.Equal(t, int32(1), wsH.calls.Load())
	got := wsH.last.Load()
	assert.Same(t, scope, got)
	assert.Equal(t, "/chat/", got.Path)
	assert.Equal(t, "userId=u1", got.RawQuery)
	assert.Equal(t, "http://localhost", got.Headers.Get("Origin"))
}

func TestDispatch_UnknownProtocolInvokesNothing(t *testing.T) {
	r, httpH, wsH := newTestRouter(t)

	for _, tag := range []string{"ftp", "HTTP", "Websocket", "lifespan", ""} {
		err := r.Dispatch(context.Background(), &Scope{Type: tag})
		require.Error(t, err, tag)
		assert.ErrorIs(t, err, ErrProtocolNotSupported, tag)
	}
	assert.Equal(t, int32(0), httpH.calls.Load())
	assert.Equal(t, int32(0), wsH.calls.Load())
}

func TestDispatch_UnregisteredKnownProtocol(t *testing.T) {
	httpH := &recorder{}
	r, err := NewProtocolTypeRouter(map[ProtocolType]Handler{ProtocolHTTP: httpH})
	require.NoError(t, err)

	err = r.Dispatch(context.Background(), &Scope{Type: "websocket"})
	assert.ErrorIs(t, err, ErrProtocolNotSupported)
	assert.Equal(t, int32(0), httpH.calls.Load())
}

func TestDispatch_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	r, err := NewProtocolTypeRouter(map[ProtocolType]Handler{
		ProtocolHTTP: &recorder{err: boom},
	})
	require.NoError(t, err)

	assert.Same(t, boom, r.Dispatch(context.Background(), &Scope{Type: "http"}))
}

func TestHandlerLookupIsStable(t *testing.T) {
	r, httpH, _ := newTestRouter(t)

	first, ok := r.Handler(ProtocolHTTP)
	require.True(t, ok)
	second, ok := r.Handler(ProtocolHTTP)
	require.True(t, ok)

	assert.Same(t, httpH, first)
	assert.Same(t, first, second)

	_, ok = r.Handler(numProtocolTypes)
	assert.False(t, ok)
}

func TestTableIsCopiedAtConstruction(t *testing.T) {
	httpH, other := &recorder{}, &recorder{}
	table := map[ProtocolType]Handler{ProtocolHTTP: httpH}
	r, err := NewProtocolTypeRouter(table)
	require.NoError(t, err)

	table[ProtocolHTTP] = other
	table[ProtocolWebSocket] = other

	h, _ := r.Handler(ProtocolHTTP)
	assert.Same(t, httpH, h)
	_, ok := r.Handler(ProtocolWebSocket)
	assert.False(t, ok)
}

func TestNewProtocolTypeRouter_Errors(t *testing.T) {
	_, err := NewProtocolTypeRouter(map[ProtocolType]Handler{ProtocolHTTP: nil})
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = NewProtocolTypeRouter(map[ProtocolType]Handler{ProtocolWebSocket: HTTPHandler(nil)})
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = NewProtocolTypeRouter(map[ProtocolType]Handler{ProtocolType(9): &recorder{}})
	assert.ErrorIs(t, err, ErrUnknownProtocolType)
}

func TestDispatch_Concurrent(t *testing.T) {
	r, httpH, wsH := newTestRouter(t)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag := "http"
			if i%2 == 1 {
				tag = "websocket"
			}
			_ = r.Dispatch(context.Background(), &Scope{Type: tag})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(32), httpH.calls.Load())
	assert.Equal(t, int32(32), wsH.calls.Load())
}

func TestServeHTTP_ClassifiesRequests(t *testing.T) {
	r, httpH, wsH := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, int32(1), httpH.calls.Load())
	assert.Equal(t, "http", httpH.last.Load().Type)

	req = httptest.NewRequest(http.MethodGet, "/ws/chat/?userId=u1", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Protocol", "chat, superchat")
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, int32(1), wsH.calls.Load())

	got := wsH.last.Load()
	assert.Equal(t, "websocket", got.Type)
	assert.Equal(t, "/ws/chat/", got.Path)
	assert.Equal(t, "u1", got.Query().Get("userId"))
	assert.Equal(t, []string{"chat", "superchat"}, got.Subprotocols)
	assert.Same(t, req, got.Request)
}

func TestServeHTTP_MapsRoutingErrors(t *testing.T) {
	noRoute := HandlerFunc(func(_ context.Context, s *Scope) error {
		return &NoRouteError{Path: s.Path}
	})
	r, err := NewProtocolTypeRouter(map[ProtocolType]Handler{ProtocolWebSocket: noRoute})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("Connection", "upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPHandler(t *testing.T) {
	h := HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	assert.ErrorIs(t, h.Serve(context.Background(), &Scope{Type: "http"}), ErrMissingTransport)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, h.Serve(context.Background(), &Scope{Type: "http", Writer: rec, Request: req}))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
