// Package ecochat is a real-time chat backend that serves plain HTTP and
// websocket connections from one listener.
//
// # Architecture
//
// Every accepted connection goes through a router.ProtocolTypeRouter built
// once at startup. HTTP requests reach a small chi application (status and
// presence endpoints). Websocket upgrades reach a router.URLRouter which
// matches the path against the configured websocket URL patterns and hands
// the connection to a WebsocketServer consumer.
//
//	ProtocolTypeRouter
//	├── "http"      -> HTTP app (/, /healthz, /api/...)
//	└── "websocket" -> URLRouter
//	                   ├── /ws                   -> chat consumer
//	                   ├── /ws/chat/             -> chat consumer
//	                   └── /ws/groups/{groupID}/ -> chat consumer
//
// # Protocol Format
//
// Websocket frames use a command pattern binary protocol:
//
//	[4 bytes: CommandID (uint32, big-endian)][N bytes: Payload]
//
// Chat commands (CmdPrivateMessage, CmdGroupMessage, CmdJoinGroup, ...)
// carry JSON payloads. CmdJSONRPC carries JSON-RPC 2.0 requests and
// responses. Maximum payload: 10MB.
//
// # Rate Limiting
//
// Each connection has its own token bucket (default 100 messages/second,
// burst 200). A client exceeding it is closed with code 1008 (Policy
// Violation).
//
// # Important
//
//   - DO NOT modify decoded payloads (they reference the read buffer)
//   - Commands from one connection are handled in arrival order; JSON-RPC
//     calls are answered concurrently
//   - Restrict allowed origins in production
package ecochat
