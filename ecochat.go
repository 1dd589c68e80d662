package ecochat

import (
	"context"

	"github.com/luciancaetano/ecochat/router"
)

// WebsocketServer is the consumer mounted on websocket URL routes. It
// upgrades each connection it is handed and speaks the binary command
// protocol with the client.
//
// Example usage:
//
//	consumer := ws.New(ws.NewConfig(ws.DefaultRateLimitConfig(), ws.AllOrigins(), nil, nil))
//
//	consumer.RegisterHandler(ctx, ecochat.CmdPrivateMessage, func(client ecochat.Client, payload []byte) {
//	    consumer.SendToUser(ctx, recipient, ecochat.CmdPrivateMessage, payload)
//	})
//
//	routes, _ := router.NewURLRouter([]router.Route{{Pattern: "/ws/chat/", Handler: consumer}})
type WebsocketServer interface {
	router.Handler

	// Close closes every client connection and stops accepting new ones.
	Close(ctx context.Context) error

	// RegisterHandler registers a handler function for a specific command ID.
	//
	// Handlers for one connection run one at a time, in the order its frames
	// arrived, off the read loop. They receive the client instance and
	// payload; there is no automatic reply.
	RegisterHandler(ctx context.Context, commandID uint32, handler func(client Client, payload []byte)) error

	// RegisterJSONRPCHandler registers a JSON-RPC 2.0 method handler.
	//
	// JSON-RPC messages travel inside frames carrying the reserved command ID
	// CmdJSONRPC.
	RegisterJSONRPCHandler(ctx context.Context, method string, handler func(params map[string]interface{}) (interface{}, error)) error

	// BroadcastCommand sends a command to all connected clients.
	BroadcastCommand(ctx context.Context, commandID uint32, payload []byte) error

	// SendToUser sends a command to every connection opened by userID.
	SendToUser(ctx context.Context, userID string, commandID uint32, payload []byte) error

	// SendToGroup sends a command to every member connection of group except
	// the connection with exceptClientID, which may be empty.
	SendToGroup(ctx context.Context, group, exceptClientID string, commandID uint32, payload []byte) error

	// JoinGroup adds a connection to a group.
	JoinGroup(clientID, group string) error

	// LeaveGroup removes a connection from a group.
	LeaveGroup(clientID, group string) error
}

// Client represents a connected WebSocket client.
//
// Each client has a unique identifier and maintains its own connection state.
// The client's context is automatically cancelled when the connection closes.
type Client interface {
	// ID returns the connection identifier, generated on connect.
	ID() string

	// UserID returns the user the connection was opened for. It is taken
	// from the connection's query string and may be empty.
	UserID() string

	// Param returns a keyword captured by the websocket URL route, or "".
	Param(name string) string

	// RemoteAddr returns the client's remote network address.
	RemoteAddr() string

	// Context returns the client's lifecycle context.
	//
	// This context is cancelled when the connection closes.
	Context() context.Context

	// Send encodes and queues a command for the client. It does not wait for
	// the write to the socket.
	//
	// Returns an error if the connection is closed or the context is cancelled.
	Send(ctx context.Context, command uint32, payload []byte) error

	// Close closes the client connection with a normal closure code.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific WebSocket close code and optional reason.
	//
	// Common close codes:
	//   - 1000: Normal closure
	//   - 1002: Protocol error
	//   - 1008: Policy violation
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive returns true if the connection is still active.
	IsAlive() bool
}
