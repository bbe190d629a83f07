package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/collab-service/internal/auth"
	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/protocol"
	"github.com/cwrk-planet/collab-service/internal/room"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, verifier *auth.Verifier, required bool, origins ...string) (*httptest.Server, *room.Registry) {
	t.Helper()
	hub := NewHub()
	reg := room.NewRegistry(nil, MembershipNotifier(hub))
	srv := NewServer(NewGateway(hub, reg), verifier, required, ServerConfig{
		PingInterval:   time.Second,
		AllowedOrigins: origins,
	})
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(func() {
		srv.CloseAll()
		ts.Close()
	})
	return ts, reg
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) (*websocket.Conn, string) {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	msg := readType(t, c, protocol.TypeConnected)
	var p protocol.ConnectedPayload
	require.NoError(t, msg.Decode(&p))
	require.NotEmpty(t, p.ConnectionID)
	return c, p.ConnectionID
}

// readType читает сообщения, пока не встретит нужный тип.
func readType(t *testing.T, c *websocket.Conn, typ string) protocol.Message {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg protocol.Message
		require.NoError(t, c.ReadJSON(&msg), "waiting for %s", typ)
		if msg.Type == typ {
			return msg
		}
	}
}

func write(t *testing.T, c *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg, err := protocol.New(typ, payload)
	require.NoError(t, err)
	require.NoError(t, c.WriteJSON(msg))
}

func TestServer_JoinRelayDisconnect(t *testing.T) {
	ts, reg := newTestServer(t, nil, false)

	a, aID := dial(t, wsURL(ts))
	b, bID := dial(t, wsURL(ts))
	require.NotEqual(t, aID, bID)

	write(t, a, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1", Username: "alice"})
	readType(t, a, protocol.TypeUserJoined)

	write(t, b, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1", Username: "bob"})
	var joined protocol.MembershipPayload
	require.NoError(t, readType(t, b, protocol.TypeUserJoined).Decode(&joined))
	require.Len(t, joined.Participants, 2)
	assert.Equal(t, domain.RoleHost, joined.Participants[0].Role)
	assert.Equal(t, bID, joined.Participants[1].ConnID)
	assert.Equal(t, domain.RoleEditor, joined.Participants[1].Role)

	var req protocol.RequestContentPayload
	require.NoError(t, readType(t, a, protocol.TypeRequestContent).Decode(&req))
	assert.Equal(t, bID, req.RequesterID)

	write(t, a, protocol.TypeRoomContent, protocol.RoomContentPayload{
		RoomID: "r1",
		Files:  []domain.File{{ID: "f1", Name: "index.js", Language: "javascript", Content: "1"}},
	})
	var snap protocol.RoomContentPayload
	require.NoError(t, readType(t, b, protocol.TypeRoomContent).Decode(&snap))
	require.Len(t, snap.Files, 1)
	assert.Equal(t, "index.js", snap.Files[0].Name)

	require.NoError(t, b.Close())
	var left protocol.MembershipPayload
	require.NoError(t, readType(t, a, protocol.TypeUserLeft).Decode(&left))
	require.Len(t, left.Participants, 1)
	assert.Equal(t, aID, left.Participants[0].ConnID)

	require.Eventually(t, func() bool { return len(reg.Participants("r1")) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Auth(t *testing.T) {
	v := auth.NewVerifier(testSecret, "", "")
	ts, reg := newTestServer(t, v, true)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, err := auth.Sign(testSecret, "", "", auth.Identity{UserID: "u-1", Email: "a@x.io"}, time.Minute, time.Now())
	require.NoError(t, err)
	c, _ := dial(t, wsURL(ts)+"?access_token="+tok)

	write(t, c, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "r1", Username: "alice", DurableID: "other"})
	readType(t, c, protocol.TypeUserJoined)
	ps := reg.Participants("r1")
	require.Len(t, ps, 1)
	assert.Equal(t, "u-1", ps[0].DurableUserID)
}

func TestServer_CheckOrigin(t *testing.T) {
	ts, _ := newTestServer(t, nil, false, "https://editor.example")

	h := http.Header{}
	h.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "https://editor.example")
	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.NoError(t, err)
	_ = c.Close()
}
