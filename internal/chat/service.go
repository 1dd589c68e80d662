// Package chat implements the chat semantics on top of the websocket
// consumer: presence, private messages, and group rooms.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/luciancaetano/ecochat"
	"github.com/luciancaetano/ecochat/internal/logging"
)

// GroupParam is the websocket route keyword that auto-joins a group.
const GroupParam = "groupID"

var (
	ErrMissingRecipient = errors.New("recipientId is required")
	ErrMissingGroup     = errors.New("groupId is required")
	ErrNotAttached      = errors.New("chat service is not attached to a websocket server")
)

// Service wires chat commands to a websocket server.
type Service struct {
	presence *Presence
	server   ecochat.WebsocketServer
	logger   *slog.Logger
	now      func() time.Time

	// connection id -> group -> user id it joined as
	joined *xsync.MapOf[string, map[string]string]
}

func NewService(presence *Presence, logger *slog.Logger) *Service {
	if presence == nil {
		presence = NewPresence()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		presence: presence,
		logger:   logger.With("component", "chat"),
		now:      time.Now,
		joined:   xsync.NewMapOf[string, map[string]string](),
	}
}

func (s *Service) Presence() *Presence { return s.presence }

// Attach registers the chat command handlers on server. OnConnect and
// OnDisconnect must be installed in the server's configuration separately.
func (s *Service) Attach(ctx context.Context, server ecochat.WebsocketServer) error {
	if server == nil {
		return ErrNotAttached
	}
	s.server = server

	handlers := map[uint32]func(ecochat.Client, []byte){
		ecochat.CmdPrivateMessage: s.handlePrivateMessage,
		ecochat.CmdGroupMessage:   s.handleGroupMessage,
		ecochat.CmdJoinGroup:      s.handleJoinGroup,
		ecochat.CmdLeaveGroup:     s.handleLeaveGroup,
	}
	for cmd, h := range handlers {
		if err := server.RegisterHandler(ctx, cmd, h); err != nil {
			return fmt.Errorf("register command %#x: %w", cmd, err)
		}
	}

	if err := server.RegisterJSONRPCHandler(ctx, "chat.onlineUsers", func(map[string]interface{}) (interface{}, error) {
		return s.presence.OnlineUsers(), nil
	}); err != nil {
		return err
	}
	return server.RegisterJSONRPCHandler(ctx, "chat.groupMembers", func(params map[string]interface{}) (interface{}, error) {
		groupID, _ := params["groupId"].(string)
		if groupID == "" {
			return nil, ErrMissingGroup
		}
		return s.presence.GroupMembers(groupID), nil
	})
}

// OnConnect marks the user online. The online list is broadcast when the
// user just came online; otherwise only the new connection receives it.
func (s *Service) OnConnect(client ecochat.Client) {
	s.logger.Info("user connected", "user_id", client.UserID(), "client_id", client.ID())

	if client.UserID() != "" && s.presence.Connect(client.UserID()) {
		s.broadcastOnlineUsers()
	} else {
		s.sendOnlineUsers(client)
	}
	if groupID := client.Param(GroupParam); groupID != "" {
		s.join(client, Membership{GroupID: groupID, UserID: client.UserID()})
	}
}

// OnDisconnect drops the connection's group memberships and marks the user
// offline once their last connection closes.
func (s *Service) OnDisconnect(client ecochat.Client, voluntary bool) {
	s.logger.Info("user disconnected", "user_id", client.UserID(), "client_id", client.ID(), "voluntary", voluntary)

	if groups, ok := s.joined.LoadAndDelete(client.ID()); ok {
		for groupID, userID := range groups {
			s.presence.LeaveGroup(groupID, userID)
		}
	}
	if client.UserID() != "" && s.presence.Disconnect(client.UserID()) {
		s.broadcastOnlineUsers()
	}
}

func (s *Service) handlePrivateMessage(client ecochat.Client, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.replyError(client, ecochat.CmdPrivateMessage, err)
		return
	}
	if msg.RecipientID == "" {
		s.replyError(client, ecochat.CmdPrivateMessage, ErrMissingRecipient)
		return
	}
	s.stamp(client, &msg)
	s.logger.Debug("private message", "message_id", msg.ID, "sender_id", msg.SenderID, "recipient_id", msg.RecipientID)

	data, err := json.Marshal(msg)
	if err != nil {
		s.replyError(client, ecochat.CmdPrivateMessage, err)
		return
	}
	if err := s.server.SendToUser(client.Context(), msg.RecipientID, ecochat.CmdPrivateMessage, data); err != nil {
		s.logger.Debug("private message not delivered", "recipient_id", msg.RecipientID, "error", err)
	}
}

func (s *Service) handleGroupMessage(client ecochat.Client, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.replyError(client, ecochat.CmdGroupMessage, err)
		return
	}
	if msg.GroupID == "" {
		s.replyError(client, ecochat.CmdGroupMessage, ErrMissingGroup)
		return
	}
	s.stamp(client, &msg)
	s.logger.Debug("group message", "message_id", msg.ID, "sender_id", msg.SenderID, "group_id", msg.GroupID)

	data, err := json.Marshal(msg)
	if err != nil {
		s.replyError(client, ecochat.CmdGroupMessage, err)
		return
	}
	s.server.SendToGroup(client.Context(), msg.GroupID, client.ID(), ecochat.CmdGroupMessage, data)
}

func (s *Service) handleJoinGroup(client ecochat.Client, payload []byte) {
	m, err := s.membership(client, payload)
	if err != nil {
		s.replyError(client, ecochat.CmdJoinGroup, err)
		return
	}
	s.join(client, m)
}

func (s *Service) handleLeaveGroup(client ecochat.Client, payload []byte) {
	m, err := s.membership(client, payload)
	if err != nil {
		s.replyError(client, ecochat.CmdLeaveGroup, err)
		return
	}
	s.logger.Info("user leaving group", "user_id", m.UserID, "group_id", m.GroupID)

	err = s.server.LeaveGroup(client.ID(), m.GroupID)
	switch {
	case err == nil:
		if userID, ok := s.untrack(client.ID(), m.GroupID); ok {
			s.presence.LeaveGroup(m.GroupID, userID)
		}
	case !errors.Is(err, ecochat.ErrNotInGroup):
		s.replyError(client, ecochat.CmdLeaveGroup, err)
		return
	}
	s.notifyGroup(client, ecochat.CmdUserLeftGroup, m)
}

func (s *Service) join(client ecochat.Client, m Membership) {
	if s.server == nil {
		s.logger.Error("join before attach", "group_id", m.GroupID)
		return
	}
	s.logger.Info("user joining group", "user_id", m.UserID, "group_id", m.GroupID)

	err := s.server.JoinGroup(client.ID(), m.GroupID)
	switch {
	case err == nil:
		if m.UserID != "" {
			s.track(client.ID(), m.GroupID, m.UserID)
			s.presence.JoinGroup(m.GroupID, m.UserID)
		}
	case !errors.Is(err, ecochat.ErrAlreadyInGroup):
		s.replyError(client, ecochat.CmdJoinGroup, err)
		return
	}
	s.notifyGroup(client, ecochat.CmdUserJoinedGroup, m)
}

func (s *Service) track(clientID, groupID, userID string) {
	s.joined.Compute(clientID, func(old map[string]string, _ bool) (map[string]string, bool) {
		groups := make(map[string]string, len(old)+1)
		for g, u := range old {
			groups[g] = u
		}
		groups[groupID] = userID
		return groups, false
	})
}

// untrack returns the user id clientID joined groupID as.
func (s *Service) untrack(clientID, groupID string) (userID string, ok bool) {
	s.joined.Compute(clientID, func(old map[string]string, loaded bool) (map[string]string, bool) {
		if !loaded {
			return nil, true
		}
		if userID, ok = old[groupID]; !ok {
			return old, false
		}
		groups := make(map[string]string, len(old))
		for g, u := range old {
			if g != groupID {
				groups[g] = u
			}
		}
		return groups, len(groups) == 0
	})
	return userID, ok
}

func (s *Service) membership(client ecochat.Client, payload []byte) (Membership, error) {
	var m Membership
	if err := json.Unmarshal(payload, &m); err != nil {
		return m, err
	}
	if m.GroupID == "" {
		return m, ErrMissingGroup
	}
	if m.UserID == "" {
		m.UserID = client.UserID()
	}
	return m, nil
}

func (s *Service) notifyGroup(client ecochat.Client, cmd uint32, m Membership) {
	data, err := json.Marshal(m)
	if err != nil {
		s.logger.Error("marshal membership event", "error", err)
		return
	}
	s.server.SendToGroup(client.Context(), m.GroupID, client.ID(), cmd, data)
}

func (s *Service) sendOnlineUsers(client ecochat.Client) {
	data, err := json.Marshal(OnlineUsers{Users: s.presence.OnlineUsers()})
	if err != nil {
		s.logger.Error("marshal online users", "error", err)
		return
	}
	client.Send(client.Context(), ecochat.CmdOnlineUsers, data)
}

func (s *Service) broadcastOnlineUsers() {
	if s.server == nil {
		return
	}
	data, err := json.Marshal(OnlineUsers{Users: s.presence.OnlineUsers()})
	if err != nil {
		s.logger.Error("marshal online users", "error", err)
		return
	}
	s.server.BroadcastCommand(context.Background(), ecochat.CmdOnlineUsers, data)
}

// stamp fills the fields a client may leave out.
func (s *Service) stamp(client ecochat.Client, msg *Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SenderID == "" {
		msg.SenderID = client.UserID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
}

func (s *Service) replyError(client ecochat.Client, cmd uint32, err error) {
	s.logger.Debug("rejected command", "client_id", client.ID(), "command", cmd, "error", err)
	data, mErr := json.Marshal(ErrorEvent{Command: cmd, Error: err.Error()})
	if mErr != nil {
		return
	}
	client.Send(client.Context(), ecochat.CmdError, data)
}
