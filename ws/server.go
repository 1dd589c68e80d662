// Package ws is the public constructor surface for the websocket consumer.
package ws

import (
	"net/http"

	"github.com/luciancaetano/ecochat"
	"github.com/luciancaetano/ecochat/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig
type CheckOriginFn = websocket.CheckOriginFn
type OnConnectFn = websocket.OnConnectFn
type OnDisconnectFn = websocket.OnClientDisconnectFn
type ServerConfig = *websocket.ServerConfig

// Server is the concrete consumer returned by New.
type Server = websocket.Server

var _ ecochat.WebsocketServer = (*Server)(nil)

// New creates a websocket consumer. Mount it on websocket URL routes:
//
//	consumer := ws.New(ws.NewConfig(ws.DefaultRateLimitConfig(), ws.AllOrigins(), nil, nil))
//	routes, err := router.NewURLRouter([]router.Route{{Pattern: "/ws/chat/", Handler: consumer}})
func New(cfg ServerConfig) *Server {
	return websocket.New(cfg)
}

// NewConfig builds a consumer configuration. onConnect and onDisconnect may
// be nil. Logger and UserIDParam can be set on the result.
func NewConfig(rateLimitConfig *RateLimitConfig, checkOrigin CheckOriginFn, onConnect OnConnectFn, onDisconnect OnDisconnectFn) ServerConfig {
	return &websocket.ServerConfig{
		RateLimitConfig:    rateLimitConfig,
		CheckOrigin:        checkOrigin,
		OnConnect:          onConnect,
		OnClientDisconnect: onDisconnect,
	}
}

// AllOrigins returns a checkOrigin function that allows all origins
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// AllowedOrigins returns a checkOrigin function accepting only origins.
func AllowedOrigins(origins []string) CheckOriginFn {
	return websocket.AllowedOrigins(origins)
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
