package websocket

import (
	"context"
	"fmt"

	"github.com/luciancaetano/ecochat"
)

// JoinGroup adds the connection clientID to group.
func (s *Server) JoinGroup(clientID, group string) error {
	if group == "" {
		return ecochat.ErrEmptyGroup
	}
	client, ok := s.clients.Load(clientID)
	if !ok {
		return fmt.Errorf("%w: %s", ecochat.ErrClientNotFound, clientID)
	}
	if !client.addGroup(group) {
		return ecochat.ErrAlreadyInGroup
	}

	s.groups.Compute(group, func(old map[string]struct{}, _ bool) (map[string]struct{}, bool) {
		members := make(map[string]struct{}, len(old)+1)
		for id := range old {
			members[id] = struct{}{}
		}
		members[clientID] = struct{}{}
		return members, false
	})
	return nil
}

// LeaveGroup removes the connection clientID from group. Empty groups are
// dropped.
func (s *Server) LeaveGroup(clientID, group string) error {
	if group == "" {
		return ecochat.ErrEmptyGroup
	}
	if client, ok := s.clients.Load(clientID); ok && !client.removeGroup(group) {
		return ecochat.ErrNotInGroup
	}

	removed := false
	s.groups.Compute(group, func(old map[string]struct{}, loaded bool) (map[string]struct{}, bool) {
		if !loaded {
			return nil, true
		}
		if _, ok := old[clientID]; !ok {
			return old, false
		}
		removed = true
		if len(old) == 1 {
			return nil, true
		}
		members := make(map[string]struct{}, len(old)-1)
		for id := range old {
			if id != clientID {
				members[id] = struct{}{}
			}
		}
		return members, false
	})
	if !removed {
		return ecochat.ErrNotInGroup
	}
	return nil
}

// GroupMembers returns the client ids currently in group.
func (s *Server) GroupMembers(group string) []string {
	members, ok := s.groups.Load(group)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// SendToGroup sends to every member of group except exceptClientID.
func (s *Server) SendToGroup(ctx context.Context, group, exceptClientID string, commandID uint32, payload []byte) error {
	if group == "" {
		return ecochat.ErrEmptyGroup
	}
	members, _ := s.groups.Load(group)
	for id := range members {
		if id == exceptClientID {
			continue
		}
		client, ok := s.clients.Load(id)
		if !ok {
			continue
		}
		if err := client.Send(ctx, commandID, payload); err != nil {
			s.logger.Debug("send to group member failed", "group", group, "client_id", id, "error", err)
		}
	}
	return nil
}
