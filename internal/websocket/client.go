package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/ecochat"
	"github.com/luciancaetano/ecochat/internal/protocol"
)

const (
	readWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
	inboxSize      = 256
)

// Client is one upgraded websocket connection.
type Client struct {
	id          string
	userID      string
	params      map[string]string
	conn        *websocket.Conn
	remoteAddr  string
	ctx         context.Context
	cancel      context.CancelFunc
	sendCh      chan []byte
	mu          sync.RWMutex
	closed      bool
	groups      map[string]struct{}
	rateLimiter *rate.Limiter // nil when rate limiting is disabled
}

// NewClient wraps conn and starts its write pump.
func NewClient(conn *websocket.Conn, remoteAddr, userID string, params map[string]string, rateLimitConfig *RateLimitConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if rateLimitConfig != nil && rateLimitConfig.Enabled {
		limiter = rate.NewLimiter(rateLimitConfig.MessagesPerSecond, rateLimitConfig.Burst)
	}

	kw := make(map[string]string, len(params))
	for k, v := range params {
		kw[k] = v
	}

	client := &Client{
		id:          uuid.New().String(),
		userID:      userID,
		params:      kw,
		conn:        conn,
		remoteAddr:  remoteAddr,
		ctx:         ctx,
		cancel:      cancel,
		sendCh:      make(chan []byte, sendBufferSize),
		groups:      make(map[string]struct{}),
		rateLimiter: limiter,
	}

	go client.writePump()

	return client
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() string { return c.userID }

func (c *Client) Param(name string) string { return c.params[name] }

func (c *Client) RemoteAddr() string { return c.remoteAddr }

func (c *Client) Context() context.Context { return c.ctx }

// Send encodes and queues a message with the given command ID and payload
func (c *Client) Send(ctx context.Context, command uint32, payload []byte) error {
	data, err := protocol.Encode(command, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ecochat.ErrFailedToEncode, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ecochat.ErrConnectionClosed
	}

	// The read lock keeps Close from closing sendCh underneath us.
	select {
	case c.sendCh <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ecochat.ErrContextCancelled
	}
}

// Close closes the client connection
func (c *Client) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a close code and optional reason
func (c *Client) CloseWithCode(ctx context.Context, code int, reason string) error {
	// Cancel first so a Send blocked on a full queue releases its read lock.
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	message := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))

	close(c.sendCh)
	return c.conn.Close()
}

func (c *Client) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// CheckRateLimit reports whether one more inbound message is allowed.
func (c *Client) CheckRateLimit() bool {
	if c.rateLimiter == nil {
		return true
	}
	return c.rateLimiter.Allow()
}

func (c *Client) addGroup(group string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.groups[group]; ok {
		return false
	}
	c.groups[group] = struct{}{}
	return true
}

func (c *Client) removeGroup(group string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.groups[group]; !ok {
		return false
	}
	delete(c.groups, group)
	return true
}

// Groups returns the groups the client currently belongs to.
func (c *Client) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.groups))
	for g := range c.groups {
		out = append(out, g)
	}
	return out
}

func (c *Client) InGroup(group string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.groups[group]
	return ok
}

// writePump pumps messages from the send channel to the websocket connection.
// CloseWithCode owns the final close; the pump only closes the socket when a
// write fails so the read loop notices.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.conn.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
