package ws

import (
	"context"
	"sync"
	"testing"

	"github.com/cwrk-planet/collab-service/internal/auth"
	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/protocol"
	"github.com/cwrk-planet/collab-service/internal/room"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	msgs   []protocol.Message
	closed bool
	limit  int // 0 — без ограничения
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.limit > 0 && len(c.msgs) >= c.limit {
		c.closed = true
		return ErrSlowConsumer
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) ofType(typ string) []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Message
	for _, m := range c.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}

type env struct {
	gw  *Gateway
	hub *Hub
	reg *room.Registry
}

func newEnv() *env {
	hub := NewHub()
	reg := room.NewRegistry(nil, MembershipNotifier(hub))
	return &env{gw: NewGateway(hub, reg), hub: hub, reg: reg}
}

func (e *env) connect(id string) (*fakeConn, *session) {
	c := &fakeConn{id: id}
	return c, newSession(c, nil, false)
}

func (e *env) send(t *testing.T, s *session, typ string, payload any) {
	t.Helper()
	msg, err := protocol.New(typ, payload)
	require.NoError(t, err)
	e.gw.Handle(context.Background(), s, msg)
}

func (e *env) join(t *testing.T, s *session, roomID, name string) {
	t.Helper()
	e.send(t, s, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: roomID, Username: name})
}

func lastMembership(t *testing.T, c *fakeConn, typ string) protocol.MembershipPayload {
	t.Helper()
	msgs := c.ofType(typ)
	require.NotEmpty(t, msgs, "no %s for %s", typ, c.id)
	var p protocol.MembershipPayload
	require.NoError(t, msgs[len(msgs)-1].Decode(&p))
	return p
}

func lastDenied(t *testing.T, c *fakeConn) protocol.PermissionDeniedPayload {
	t.Helper()
	msgs := c.ofType(protocol.TypePermissionDenied)
	require.NotEmpty(t, msgs, "no permission-denied for %s", c.id)
	var p protocol.PermissionDeniedPayload
	require.NoError(t, msgs[len(msgs)-1].Decode(&p))
	return p
}

func TestGateway_JoinAssignsRolesAndRequestsContent(t *testing.T) {
	e := newEnv()
	a, sa := e.connect("A")
	b, sb := e.connect("B")

	e.join(t, sa, "r1", "alice")
	p := lastMembership(t, a, protocol.TypeUserJoined)
	require.Len(t, p.Participants, 1)
	assert.Equal(t, domain.RoleHost, p.Participants[0].Role)
	assert.Empty(t, a.ofType(protocol.TypeRequestContent), "alone in room, nobody to ask")

	e.join(t, sb, "r1", "bob")
	for _, c := range []*fakeConn{a, b} {
		p := lastMembership(t, c, protocol.TypeUserJoined)
		require.Len(t, p.Participants, 2)
		assert.Equal(t, "A", p.Participants[0].ConnID)
		assert.Equal(t, domain.RoleHost, p.Participants[0].Role)
		assert.Equal(t, "B", p.Participants[1].ConnID)
		assert.Equal(t, domain.RoleEditor, p.Participants[1].Role)
	}

	reqs := a.ofType(protocol.TypeRequestContent)
	require.Len(t, reqs, 1)
	var rc protocol.RequestContentPayload
	require.NoError(t, reqs[0].Decode(&rc))
	assert.Equal(t, "B", rc.RequesterID)
	assert.Empty(t, b.ofType(protocol.TypeRequestContent))
}

func TestGateway_InvalidJoinIgnored(t *testing.T) {
	e := newEnv()
	a, sa := e.connect("A")

	e.join(t, sa, "r1", "  ")
	e.join(t, sa, "", "alice")
	e.gw.Handle(context.Background(), sa, protocol.Message{Type: protocol.TypeJoinRoom})

	assert.Empty(t, a.msgs)
	assert.Zero(t, e.hub.Count("r1"))
	assert.Empty(t, e.reg.Participants("r1"))
}

func TestGateway_RelayRespectsRoles(t *testing.T) {
	e := newEnv()
	a, sa := e.connect("A")
	b, sb := e.connect("B")
	e.join(t, sa, "r1", "alice")
	e.join(t, sb, "r1", "bob")
	a.reset()
	b.reset()

	// editor -> остальным
	change := protocol.FileChangePayload{RoomID: "r1", FileID: "f1", Content: "x"}
	e.send(t, sb, protocol.TypeFileChange, change)
	require.Len(t, a.ofType(protocol.TypeFileChange), 1)
	assert.Empty(t, b.ofType(protocol.TypeFileChange))

	// room-content -> всей комнате, включая отправителя
	e.send(t, sa, protocol.TypeRoomContent, protocol.RoomContentPayload{
		RoomID: "r1",
		Files:  []domain.File{{ID: "f1", Name: "index.js", Language: "javascript"}},
	})
	assert.Len(t, a.ofType(protocol.TypeRoomContent), 1)
	assert.Len(t, b.ofType(protocol.TypeRoomContent), 1)

	// host делает B viewer-ом
	e.send(t, sa, protocol.TypeSetRole, protocol.SetRolePayload{RoomID: "r1", TargetConnectionID: "B", Role: domain.RoleViewer})
	p := lastMembership(t, b, protocol.TypeUserJoined)
	assert.Equal(t, domain.RoleViewer, p.Participants[1].Role)

	a.reset()
	for _, typ := range []string{protocol.TypeFileChange, protocol.TypeFileCreate, protocol.TypeFileRename, protocol.TypeFileDelete, protocol.TypeRoomContent} {
		e.send(t, sb, typ, protocol.RoomPayload{RoomID: "r1"})
		d := lastDenied(t, b)
		assert.Equal(t, typ, d.Action)
		assert.Equal(t, protocol.ReasonViewer, d.Reason)
	}
	assert.Empty(t, a.msgs, "viewer mutations must not reach the room")
}

func TestGateway_NonMemberDenied(t *testing.T) {
	e := newEnv()
	a, sa := e.connect("A")
	x, sx := e.connect("X")
	e.join(t, sa, "r1", "alice")
	a.reset()

	e.send(t, sx, protocol.TypeFileChange, protocol.FileChangePayload{RoomID: "r1", FileID: "f1"})
	assert.Equal(t, protocol.ReasonNotMember, lastDenied(t, x).Reason)

	e.send(t, sx, protocol.TypeRequestContent, protocol.RoomPayload{RoomID: "r1"})
	assert.Equal(t, protocol.ReasonNotMember, lastDenied(t, x).Reason)

	e.send(t, sx, protocol.TypeSetRole, protocol.SetRolePayload{RoomID: "r1", TargetConnectionID: "A", Role: domain.RoleViewer})
	assert.Equal(t, protocol.ReasonNotMember, lastDenied(t, x).Reason)

	assert.Empty(t, a.msgs)
}

func TestGateway_SetRoleRejections(t *testing.T) {
	e := newEnv()
	a, sa := e.connect("A")
	b, sb := e.connect("B")
	e.join(t, sa, "r1", "alice")
	e.join(t, sb, "r1", "bob")
	a.reset()
	b.reset()

	cases := []struct {
		name   string
		from   *session
		conn   *fakeConn
		target string
		role   domain.Role
		reason string
	}{
		{"editor cannot assign", sb, b, "A", domain.RoleViewer, protocol.ReasonNotHost},
		{"sole host cannot demote self", sa, a, "A", domain.RoleEditor, protocol.ReasonSoleHost},
		{"unknown role", sa, a, "B", domain.Role("admin"), protocol.ReasonInvalidRole},
		{"unknown target", sa, a, "Z", domain.RoleViewer, protocol.ReasonUnknownTarget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e.send(t, tc.from, protocol.TypeSetRole, protocol.SetRolePayload{RoomID: "r1", TargetConnectionID: tc.target, Role: tc.role})
			d := lastDenied(t, tc.conn)
			assert.Equal(t, protocol.TypeSetRole, d.Action)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
	assert.Empty(t, a.ofType(protocol.TypeUserJoined), "rejected set-role must not broadcast")
	assert.Empty(t, b.ofType(protocol.TypeUserJoined))

	// второй host — после этого первый может разжаловать себя
	e.send(t, sa, protocol.TypeSetRole, protocol.SetRolePayload{RoomID: "r1", TargetConnectionID: "B", Role: domain.RoleHost})
	e.send(t, sa, protocol.TypeSetRole, protocol.SetRolePayload{RoomID: "r1", TargetConnectionID: "A", Role: domain.RoleEditor})
	p := lastMembership(t, b, protocol.TypeUserJoined)
	assert.Equal(t, domain.RoleEditor, p.Participants[0].Role)
	assert.Equal(t, domain.RoleHost, p.Participants[1].Role)
}

func TestGateway_LeaveAndDisconnect(t *testing.T) {
	e := newEnv()
	a, sa := e.connect("A")
	b, sb := e.connect("B")
	e.join(t, sa, "r1", "alice")
	e.join(t, sa, "r2", "alice")
	e.join(t, sb, "r1", "bob")
	e.join(t, sb, "r2", "bob")

	e.send(t, sa, protocol.TypeLeaveRoom, protocol.RoomPayload{RoomID: "r1"})
	p := lastMembership(t, b, protocol.TypeUserLeft)
	assert.Equal(t, "r1", p.RoomID)
	require.Len(t, p.Participants, 1)
	assert.Equal(t, "B", p.Participants[0].ConnID)
	assert.Equal(t, domain.RoleEditor, p.Participants[0].Role, "no host re-election")
	assert.Equal(t, 1, e.hub.Count("r1"))

	a.reset()
	e.gw.Disconnect(context.Background(), sb)
	p = lastMembership(t, a, protocol.TypeUserLeft)
	assert.Equal(t, "r2", p.RoomID)
	assert.Len(t, p.Participants, 1)
	assert.Empty(t, e.reg.Participants("r1"))
	assert.Zero(t, e.hub.Count("r1"))
	assert.Empty(t, sb.rooms)
}

func TestGateway_IdentityFromToken(t *testing.T) {
	e := newEnv()

	// токен есть — его sub побеждает durableId из payload
	c1 := &fakeConn{id: "A"}
	s1 := newSession(c1, &auth.Identity{UserID: "u-42", Email: "a@x.io"}, true)
	e.send(t, s1, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1", Username: "alice", DurableID: "spoofed"})

	// проверка включена, но токена нет — анонимно
	c2 := &fakeConn{id: "B"}
	s2 := newSession(c2, nil, true)
	e.send(t, s2, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1", Username: "bob", DurableID: "u-1"})

	// проверка выключена — payload принимается как есть
	c3 := &fakeConn{id: "C"}
	s3 := newSession(c3, nil, false)
	e.send(t, s3, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1", Username: "carol", DurableID: "u-7"})

	ps := e.reg.Participants("r1")
	require.Len(t, ps, 3)
	assert.Equal(t, "u-42", ps[0].DurableUserID)
	assert.Empty(t, ps[1].DurableUserID)
	assert.Equal(t, "u-7", ps[2].DurableUserID)
}

func TestHub_OrderedFanoutAndSlowConsumer(t *testing.T) {
	h := NewHub()
	a := &fakeConn{id: "A"}
	b := &fakeConn{id: "B", limit: 1}
	h.Add("r", a)
	h.Add("r", b)
	h.Add("r", a) // повторный Add не дублирует
	assert.Equal(t, 2, h.Count("r"))

	for i := 0; i < 3; i++ {
		h.Broadcast("r", protocol.Message{Type: protocol.TypeFileChange})
	}
	assert.Len(t, a.ofType(protocol.TypeFileChange), 3)
	assert.Len(t, b.ofType(protocol.TypeFileChange), 1)
	assert.True(t, b.closed, "overflowing consumer is closed")

	h.BroadcastExcept("r", "A", protocol.Message{Type: protocol.TypeFileDelete})
	assert.Empty(t, a.ofType(protocol.TypeFileDelete))

	h.Remove("r", a)
	h.Remove("r", b)
	assert.Zero(t, h.Count("r"))
	h.Broadcast("r", protocol.Message{Type: protocol.TypeFileCreate}) // пустая комната — no-op
}
