package chat

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Presence tracks which users are online and which users belong to which
// groups. Both are counted per connection: a user stays online, and in a
// group, while at least one of their connections is.
type Presence struct {
	online *xsync.MapOf[string, int]

	// group -> user -> connections; maps are replaced, never mutated
	groups *xsync.MapOf[string, map[string]int]
}

func NewPresence() *Presence {
	return &Presence{
		online: xsync.NewMapOf[string, int](),
		groups: xsync.NewMapOf[string, map[string]int](),
	}
}

// Connect records one more connection for userID and reports whether the
// user just came online.
func (p *Presence) Connect(userID string) bool {
	n, _ := p.online.Compute(userID, func(old int, _ bool) (int, bool) {
		return old + 1, false
	})
	return n == 1
}

// Disconnect drops one connection for userID and reports whether the user
// went offline.
func (p *Presence) Disconnect(userID string) bool {
	wentOffline := false
	p.online.Compute(userID, func(old int, loaded bool) (int, bool) {
		if !loaded {
			return 0, true
		}
		if old <= 1 {
			wentOffline = true
			return 0, true
		}
		return old - 1, false
	})
	return wentOffline
}

// OnlineUsers returns the online user ids in sorted order.
func (p *Presence) OnlineUsers() []string {
	users := make([]string, 0, p.online.Size())
	p.online.Range(func(id string, _ int) bool {
		users = append(users, id)
		return true
	})
	sort.Strings(users)
	return users
}

func (p *Presence) IsOnline(userID string) bool {
	_, ok := p.online.Load(userID)
	return ok
}

// JoinGroup records one more connection of userID in groupID and reports
// whether the user just became a member.
func (p *Presence) JoinGroup(groupID, userID string) bool {
	first := false
	p.groups.Compute(groupID, func(old map[string]int, _ bool) (map[string]int, bool) {
		members := make(map[string]int, len(old)+1)
		for id, n := range old {
			members[id] = n
		}
		members[userID]++
		first = members[userID] == 1
		return members, false
	})
	return first
}

// LeaveGroup drops one connection of userID from groupID and reports whether
// the user stopped being a member. Groups without members are forgotten.
func (p *Presence) LeaveGroup(groupID, userID string) bool {
	last := false
	p.groups.Compute(groupID, func(old map[string]int, loaded bool) (map[string]int, bool) {
		if !loaded {
			return nil, true
		}
		if old[userID] == 0 {
			return old, false
		}
		members := make(map[string]int, len(old))
		for id, n := range old {
			members[id] = n
		}
		if members[userID]--; members[userID] == 0 {
			delete(members, userID)
			last = true
		}
		return members, len(members) == 0
	})
	return last
}

// GroupMembers returns the members of groupID in sorted order.
func (p *Presence) GroupMembers(groupID string) []string {
	members, _ := p.groups.Load(groupID)
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
