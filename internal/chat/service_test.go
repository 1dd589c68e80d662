package chat_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/ecochat"
	"github.com/luciancaetano/ecochat/internal/chat"
	"github.com/luciancaetano/ecochat/internal/protocol"
	"github.com/luciancaetano/ecochat/router"
	"github.com/luciancaetano/ecochat/ws"
)

type chatServer struct {
	svc  *chat.Service
	ws   *ws.Server
	http *httptest.Server
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()

	svc := chat.NewService(chat.NewPresence(), nil)
	consumer := ws.New(ws.NewConfig(ws.NoRateLimit(), ws.AllOrigins(), svc.OnConnect, svc.OnDisconnect))
	require.NoError(t, svc.Attach(context.Background(), consumer))

	routes, err := router.NewURLRouter([]router.Route{
		{Pattern: "/ws/chat/", Handler: consumer},
		{Pattern: "/ws/groups/{groupID}/", Handler: consumer},
	})
	require.NoError(t, err)
	dispatcher, err := router.NewProtocolTypeRouter(map[router.ProtocolType]router.Handler{
		router.ProtocolWebSocket: routes,
	})
	require.NoError(t, err)

	cs := &chatServer{svc: svc, ws: consumer, http: httptest.NewServer(dispatcher)}
	t.Cleanup(func() {
		consumer.Close(context.Background())
		cs.http.Close()
	})
	return cs
}

func (cs *chatServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(cs.http.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, cmd uint32, v any) {
	t.Helper()
	frame, err := protocol.EncodeJSON(cmd, v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, frame))
}

// readUntil skips frames until one with cmd satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, cmd uint32, match func([]byte) bool) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		got, payload, err := protocol.Decode(data)
		require.NoError(t, err)
		if got == cmd && (match == nil || match(payload)) {
			return append([]byte(nil), payload...)
		}
	}
}

func onlineIs(users ...string) func([]byte) bool {
	return func(payload []byte) bool {
		var ou chat.OnlineUsers
		if json.Unmarshal(payload, &ou) != nil {
			return false
		}
		return strings.Join(ou.Users, ",") == strings.Join(users, ",")
	}
}

func TestChat_PresenceAndPrivateMessages(t *testing.T) {
	cs := newChatServer(t)

	alice := cs.dial(t, "/ws/chat/?userId=alice")
	readUntil(t, alice, ecochat.CmdOnlineUsers, onlineIs("alice"))

	bob := cs.dial(t, "/ws/chat/?userId=bob")
	readUntil(t, alice, ecochat.CmdOnlineUsers, onlineIs("alice", "bob"))
	readUntil(t, bob, ecochat.CmdOnlineUsers, onlineIs("alice", "bob"))

	write(t, alice, ecochat.CmdPrivateMessage, chat.Message{RecipientID: "bob", Content: "hi bob"})
	var msg chat.Message
	require.NoError(t, json.Unmarshal(readUntil(t, bob, ecochat.CmdPrivateMessage, nil), &msg))
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "bob", msg.RecipientID)
	assert.Equal(t, "hi bob", msg.Content)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())

	write(t, alice, ecochat.CmdPrivateMessage, chat.Message{Content: "to nobody"})
	var ev chat.ErrorEvent
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ecochat.CmdError, nil), &ev))
	assert.Equal(t, ecochat.CmdPrivateMessage, ev.Command)
	assert.Equal(t, chat.ErrMissingRecipient.Error(), ev.Error)

	require.NoError(t, bob.Close(websocket.StatusNormalClosure, ""))
	readUntil(t, alice, ecochat.CmdOnlineUsers, onlineIs("alice"))
	assert.Equal(t, []string{"alice"}, cs.svc.Presence().OnlineUsers())
}

func TestChat_Groups(t *testing.T) {
	cs := newChatServer(t)
	presence := cs.svc.Presence()

	alice := cs.dial(t, "/ws/chat/?userId=alice")
	bob := cs.dial(t, "/ws/chat/?userId=bob")

	write(t, alice, ecochat.CmdJoinGroup, chat.Membership{GroupID: "g1"})
	require.Eventually(t, func() bool {
		return strings.Join(presence.GroupMembers("g1"), ",") == "alice"
	}, 2*time.Second, 10*time.Millisecond)

	write(t, bob, ecochat.CmdJoinGroup, chat.Membership{GroupID: "g1", UserID: "bob"})
	var m chat.Membership
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ecochat.CmdUserJoinedGroup, nil), &m))
	assert.Equal(t, chat.Membership{GroupID: "g1", UserID: "bob"}, m)

	write(t, bob, ecochat.CmdGroupMessage, chat.Message{GroupID: "g1", Content: "hello group"})
	var msg chat.Message
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ecochat.CmdGroupMessage, nil), &msg))
	assert.Equal(t, "bob", msg.SenderID)
	assert.Equal(t, "hello group", msg.Content)

	carol := cs.dial(t, "/ws/groups/g1/?userId=carol")
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ecochat.CmdUserJoinedGroup, nil), &m))
	assert.Equal(t, "carol", m.UserID)
	readUntil(t, bob, ecochat.CmdUserJoinedGroup, nil)
	assert.Equal(t, []string{"alice", "bob", "carol"}, presence.GroupMembers("g1"))

	write(t, bob, ecochat.CmdLeaveGroup, chat.Membership{GroupID: "g1"})
	require.NoError(t, json.Unmarshal(readUntil(t, carol, ecochat.CmdUserLeftGroup, nil), &m))
	assert.Equal(t, chat.Membership{GroupID: "g1", UserID: "bob"}, m)
	readUntil(t, alice, ecochat.CmdUserLeftGroup, nil)
	assert.Equal(t, []string{"alice", "carol"}, presence.GroupMembers("g1"))

	write(t, alice, ecochat.CmdGroupMessage, chat.Message{Content: "no group"})
	var ev chat.ErrorEvent
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ecochat.CmdError, nil), &ev))
	assert.Equal(t, ecochat.CmdGroupMessage, ev.Command)
}

func TestChat_JSONRPC(t *testing.T) {
	cs := newChatServer(t)
	cs.svc.Presence().JoinGroup("g1", "dave")

	alice := cs.dial(t, "/ws/chat/?userId=alice")
	readUntil(t, alice, ecochat.CmdOnlineUsers, onlineIs("alice"))

	write(t, alice, ecochat.CmdJSONRPC, map[string]any{
		"jsonrpc": "2.0", "method": "chat.groupMembers", "params": map[string]any{"groupId": "g1"}, "id": 7,
	})
	var resp struct {
		Result []string `json:"result"`
		ID     int      `json:"id"`
	}
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ecochat.CmdJSONRPC, nil), &resp))
	assert.Equal(t, []string{"dave"}, resp.Result)
	assert.Equal(t, 7, resp.ID)

	write(t, alice, ecochat.CmdJSONRPC, map[string]any{"jsonrpc": "2.0", "method": "chat.onlineUsers", "id": 8})
	require.NoError(t, json.Unmarshal(readUntil(t, alice, ecochat.CmdJSONRPC, nil), &resp))
	assert.Equal(t, []string{"alice"}, resp.Result)

	write(t, alice, ecochat.CmdJSONRPC, map[string]any{"jsonrpc": "2.0", "method": "chat.groupMembers", "id": 9})
	readUntil(t, alice, ecochat.CmdJSONRPCError, nil)
}

func TestService_AttachNil(t *testing.T) {
	svc := chat.NewService(nil, nil)
	assert.ErrorIs(t, svc.Attach(context.Background(), nil), chat.ErrNotAttached)
}

func TestChat_EveryConnectionReceivesOnlineUsers(t *testing.T) {
	cs := newChatServer(t)

	tab1 := cs.dial(t, "/ws/chat/?userId=alice")
	readUntil(t, tab1, ecochat.CmdOnlineUsers, onlineIs("alice"))

	tab2 := cs.dial(t, "/ws/chat/?userId=alice")
	readUntil(t, tab2, ecochat.CmdOnlineUsers, onlineIs("alice"))

	anonymous := cs.dial(t, "/ws/chat/")
	readUntil(t, anonymous, ecochat.CmdOnlineUsers, onlineIs("alice"))
}

func TestChat_PrivateMessagesKeepOrder(t *testing.T) {
	cs := newChatServer(t)

	alice := cs.dial(t, "/ws/chat/?userId=alice")
	bob := cs.dial(t, "/ws/chat/?userId=bob")
	readUntil(t, alice, ecochat.CmdOnlineUsers, onlineIs("alice", "bob"))

	const n = 150
	for i := range n {
		write(t, alice, ecochat.CmdPrivateMessage, chat.Message{RecipientID: "bob", Content: strconv.Itoa(i)})
	}
	for i := range n {
		var msg chat.Message
		require.NoError(t, json.Unmarshal(readUntil(t, bob, ecochat.CmdPrivateMessage, nil), &msg))
		require.Equal(t, strconv.Itoa(i), msg.Content)
	}
}

func TestChat_JoinThenLeaveKeepsOrder(t *testing.T) {
	cs := newChatServer(t)
	alice := cs.dial(t, "/ws/chat/?userId=alice")
	readUntil(t, alice, ecochat.CmdOnlineUsers, onlineIs("alice"))

	const n = 100
	for i := range n {
		g := "g" + strconv.Itoa(i)
		write(t, alice, ecochat.CmdJoinGroup, chat.Membership{GroupID: g})
		write(t, alice, ecochat.CmdLeaveGroup, chat.Membership{GroupID: g})
	}
	// Commands run in order, so the echo arrives after every leave ran.
	write(t, alice, ecochat.CmdPrivateMessage, chat.Message{RecipientID: "alice", Content: "done"})
	readUntil(t, alice, ecochat.CmdPrivateMessage, nil)

	for i := range n {
		g := "g" + strconv.Itoa(i)
		assert.Empty(t, cs.svc.Presence().GroupMembers(g), g)
		assert.Empty(t, cs.ws.GroupMembers(g), g)
	}
}

func TestChat_GroupMembershipCountsConnections(t *testing.T) {
	cs := newChatServer(t)
	presence := cs.svc.Presence()

	tab1 := cs.dial(t, "/ws/groups/g1/?userId=alice")
	readUntil(t, tab1, ecochat.CmdOnlineUsers, onlineIs("alice"))
	tab2 := cs.dial(t, "/ws/groups/g1/?userId=alice")
	readUntil(t, tab2, ecochat.CmdOnlineUsers, onlineIs("alice"))
	readUntil(t, tab1, ecochat.CmdUserJoinedGroup, nil)
	require.Len(t, cs.ws.GroupMembers("g1"), 2)

	write(t, tab1, ecochat.CmdLeaveGroup, chat.Membership{GroupID: "g1"})
	readUntil(t, tab2, ecochat.CmdUserLeftGroup, nil)
	assert.Equal(t, []string{"alice"}, presence.GroupMembers("g1"), "tab2 is still in g1")

	require.NoError(t, tab2.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return len(presence.GroupMembers("g1")) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"alice"}, presence.OnlineUsers(), "tab1 is still connected")
}
