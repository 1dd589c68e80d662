package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/luciancaetano/ecochat"
	"github.com/luciancaetano/ecochat/internal/logging"
	"github.com/luciancaetano/ecochat/internal/protocol"
	"github.com/luciancaetano/ecochat/router"
)

// CommandHandler processes one inbound command.
type CommandHandler = func(client ecochat.Client, payload []byte)

// JSONRPCHandler processes one JSON-RPC method call.
type JSONRPCHandler = func(params map[string]interface{}) (interface{}, error)

// Server is the websocket consumer. It is mounted on websocket URL routes and
// owns every connection it upgrades.
type Server struct {
	clients         *xsync.MapOf[string, *Client]
	handlers        *xsync.MapOf[uint32, CommandHandler]
	jsonRPCHandlers *xsync.MapOf[string, JSONRPCHandler]

	// group name -> member client ids; maps are replaced, never mutated
	groups *xsync.MapOf[string, map[string]struct{}]

	rateLimitConfig *RateLimitConfig
	userIDParam     string
	upgrader        websocket.Upgrader
	onConnect       OnConnectFn
	onDisconnect    OnClientDisconnectFn
	logger          *slog.Logger
	closed          atomic.Bool
}

// New creates a websocket consumer. A nil RateLimitConfig means
// DefaultRateLimitConfig, an empty UserIDParam means DefaultUserIDParam.
func New(cfg *ServerConfig) *Server {
	if cfg == nil {
		cfg = &ServerConfig{}
	}
	if cfg.RateLimitConfig == nil {
		cfg.RateLimitConfig = DefaultRateLimitConfig()
	}
	if cfg.UserIDParam == "" {
		cfg.UserIDParam = DefaultUserIDParam
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		clients:         xsync.NewMapOf[string, *Client](),
		handlers:        xsync.NewMapOf[uint32, CommandHandler](),
		jsonRPCHandlers: xsync.NewMapOf[string, JSONRPCHandler](),
		groups:          xsync.NewMapOf[string, map[string]struct{}](),
		rateLimitConfig: cfg.RateLimitConfig,
		userIDParam:     cfg.UserIDParam,
		onConnect:       cfg.OnConnect,
		onDisconnect:    cfg.OnClientDisconnect,
		logger:          logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Serve upgrades the connection described by scope and starts serving it.
// It returns once the client's read loop is running.
func (s *Server) Serve(ctx context.Context, scope *router.Scope) error {
	if s.closed.Load() {
		return ecochat.ErrServerClosed
	}
	if scope.Writer == nil || scope.Request == nil {
		return router.ErrMissingTransport
	}

	// On failure the upgrader has already written the HTTP error response.
	conn, err := s.upgrader.Upgrade(scope.Writer, scope.Request, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	conn.SetReadLimit(int64(protocol.MaxPayloadSize()) + 4)

	userID := scope.Query().Get(s.userIDParam)
	client := NewClient(conn, scope.RemoteAddr, userID, scope.URLRoute.Kwargs, s.rateLimitConfig)
	if !s.register(client) {
		return ecochat.ErrServerClosed
	}

	s.logger.Debug("client connected",
		"client_id", client.ID(), "user_id", userID,
		"remote_addr", client.RemoteAddr(), "route", scope.URLRoute.Pattern)

	go s.handleClient(client)
	return nil
}

// register stores client unless the server has been closed. A Close that
// ran between the check in Serve and the store may have missed client, so
// the flag is read again afterwards.
func (s *Server) register(client *Client) bool {
	s.clients.Store(client.ID(), client)
	if !s.closed.Load() {
		return true
	}
	s.clients.Delete(client.ID())
	client.CloseWithCode(context.Background(), websocket.CloseGoingAway, "server shutting down")
	return false
}

// Close closes every client and rejects further connections.
func (s *Server) Close(ctx context.Context) error {
	s.closed.Store(true)
	s.clients.Range(func(_ string, client *Client) bool {
		client.CloseWithCode(ctx, websocket.CloseGoingAway, "server shutting down")
		return true
	})
	return nil
}

// RegisterHandler registers a handler for a specific command ID. Each
// client's commands are handled sequentially, in arrival order.
func (s *Server) RegisterHandler(ctx context.Context, commandID uint32, handler func(client ecochat.Client, payload []byte)) error {
	if handler == nil {
		return fmt.Errorf("nil handler for command %#x", commandID)
	}
	s.handlers.Store(commandID, handler)
	return nil
}

// RegisterJSONRPCHandler registers a JSON-RPC handler for a specific method
func (s *Server) RegisterJSONRPCHandler(ctx context.Context, method string, handler func(params map[string]interface{}) (interface{}, error)) error {
	if handler == nil {
		return fmt.Errorf("nil handler for method %q", method)
	}
	s.jsonRPCHandlers.Store(method, handler)
	return nil
}

// inbound is a command waiting for its handler.
type inbound struct {
	commandID uint32
	payload   []byte
}

// handleClient runs the read loop of one client until it disconnects.
// Commands are handed to a single dispatch goroutine per client so they run
// in arrival order; JSON-RPC calls are answered concurrently.
func (s *Server) handleClient(client *Client) {
	inbox := make(chan inbound, inboxSize)
	dispatched := make(chan struct{})
	go s.dispatchCommands(client, inbox, dispatched)

	voluntary := false
	defer func() {
		close(inbox)
		client.Close(context.Background())
		<-dispatched

		for _, g := range client.Groups() {
			s.LeaveGroup(client.ID(), g)
		}
		s.clients.Delete(client.ID())

		if s.onDisconnect != nil {
			s.onDisconnect(client, voluntary)
		}
		s.logger.Debug("client disconnected", "client_id", client.ID(), "user_id", client.UserID(), "voluntary", voluntary)
	}()

	client.conn.SetReadDeadline(time.Now().Add(readWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	if s.onConnect != nil {
		s.onConnect(client)
	}

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				voluntary = true
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("unexpected websocket close", "client_id", client.ID(), "error", err)
			}
			return
		}

		client.conn.SetReadDeadline(time.Now().Add(readWait))

		if !client.CheckRateLimit() {
			s.logger.Warn("rate limit exceeded", "client_id", client.ID(), "remote_addr", client.RemoteAddr())
			client.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, "Rate limit exceeded")
			return
		}

		commandID, payload, err := protocol.Decode(data)
		if err != nil {
			client.CloseWithCode(context.Background(), websocket.CloseProtocolError, ecochat.ErrInvalidMessageFormat.Error())
			return
		}

		if commandID == ecochat.CmdJSONRPC {
			go s.handleJSONRPCMessage(client, payload)
			continue
		}

		// A full inbox stalls the read loop until the handlers catch up.
		select {
		case inbox <- inbound{commandID: commandID, payload: payload}:
		case <-client.ctx.Done():
			return
		}
	}
}

// dispatchCommands runs the handlers for one client's commands in order.
// Unknown commands are dropped.
func (s *Server) dispatchCommands(client *Client, inbox <-chan inbound, done chan<- struct{}) {
	defer close(done)
	for in := range inbox {
		handler, ok := s.handlers.Load(in.commandID)
		if !ok {
			s.logger.Debug("unknown command", "client_id", client.ID(), "command", in.commandID)
			continue
		}
		handler(client, in.payload)
	}
}

// GetClient returns a client by ID
func (s *Server) GetClient(id string) (*Client, bool) {
	return s.clients.Load(id)
}

// ClientCount returns the number of open connections.
func (s *Server) ClientCount() int {
	return s.clients.Size()
}

// SendToClient sends a protocol message to a specific client
func (s *Server) SendToClient(ctx context.Context, clientID string, commandID uint32, payload []byte) error {
	client, ok := s.GetClient(clientID)
	if !ok {
		return fmt.Errorf("%w: %s", ecochat.ErrClientNotFound, clientID)
	}
	return client.Send(ctx, commandID, payload)
}

// SendToUser sends to every connection whose user id is userID.
func (s *Server) SendToUser(ctx context.Context, userID string, commandID uint32, payload []byte) error {
	delivered := 0
	s.clients.Range(func(_ string, client *Client) bool {
		if client.UserID() != userID {
			return true
		}
		if err := client.Send(ctx, commandID, payload); err != nil {
			s.logger.Debug("send to user failed", "user_id", userID, "client_id", client.ID(), "error", err)
			return true
		}
		delivered++
		return true
	})
	if delivered == 0 {
		return fmt.Errorf("%w: user %s", ecochat.ErrClientNotFound, userID)
	}
	return nil
}

// BroadcastCommand sends a command to all connected clients
func (s *Server) BroadcastCommand(ctx context.Context, commandID uint32, payload []byte) error {
	s.clients.Range(func(_ string, client *Client) bool {
		client.Send(ctx, commandID, payload)
		return true
	})
	return nil
}
