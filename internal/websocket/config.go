package websocket

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/luciancaetano/ecochat"
)

// CheckOriginFn is a function that validates the origin of a WebSocket connection request.
// It receives the HTTP request and returns true if the origin is allowed, false otherwise.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called after the handshake completes and before the read
// loop starts. It runs synchronously on the connection goroutine, so long
// operations delay the client's first read.
type OnConnectFn = func(client ecochat.Client)

// OnClientDisconnectFn is called once a client's read loop has ended.
// voluntary is true when the client closed the connection itself, false for
// read errors, rate limiting, protocol errors and server shutdown.
type OnClientDisconnectFn = func(client ecochat.Client, voluntary bool)

// DefaultUserIDParam is the query parameter naming the connecting user.
const DefaultUserIDParam = "userId"

type ServerConfig struct {
	RateLimitConfig    *RateLimitConfig
	CheckOrigin        CheckOriginFn
	OnConnect          OnConnectFn
	OnClientDisconnect OnClientDisconnectFn

	// UserIDParam is the query parameter read into Client.UserID.
	UserIDParam string

	Logger *slog.Logger
}

// RateLimitConfig defines rate limiting configuration for clients
type RateLimitConfig struct {
	// MessagesPerSecond defines how many messages a client can send per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig allows 100 messages per second with a burst of 200.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// AllowedOrigins returns a CheckOriginFn accepting the listed origins.
// "*" accepts any origin. Requests without an Origin header are accepted.
func AllowedOrigins(origins []string) CheckOriginFn {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
