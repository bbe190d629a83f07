package ws

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/collab-service/internal/auth"
	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/protocol"
	"github.com/cwrk-planet/collab-service/internal/room"
)

type Registry interface {
	Join(ctx context.Context, roomID string, p domain.Participant) (domain.Role, error)
	Leave(ctx context.Context, roomID, connID string) bool
	SetRole(ctx context.Context, roomID, requesterID, targetID string, role domain.Role) error
	Role(roomID, connID string) (domain.Role, bool)
}

// MembershipNotifier рассылает полный список участников через hub.
// Вызывается реестром под локом комнаты.
func MembershipNotifier(hub *Hub) room.Notifier {
	return func(roomID string, ev room.Event, ps []domain.Participant) {
		typ := protocol.TypeUserJoined
		if ev == room.EventLeft {
			typ = protocol.TypeUserLeft
		}
		hub.Broadcast(roomID, protocol.MustNew(typ, protocol.MembershipPayload{
			RoomID:       roomID,
			Participants: ps,
		}))
	}
}

// session — состояние одного подключения. Используется только горутиной чтения.
type session struct {
	conn     Conn
	identity *auth.Identity // nil — токена не было
	authOn   bool           // проверка токенов включена: durableId из payload игнорируется
	rooms    map[string]struct{}
}

func newSession(c Conn, id *auth.Identity, authOn bool) *session {
	return &session{conn: c, identity: id, authOn: authOn, rooms: make(map[string]struct{})}
}

// Gateway маршрутизирует входящие события и проверяет права по серверной роли.
type Gateway struct {
	hub      *Hub
	registry Registry
}

func NewGateway(hub *Hub, registry Registry) *Gateway {
	return &Gateway{hub: hub, registry: registry}
}

func (g *Gateway) Handle(ctx context.Context, s *session, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinRoom:
		g.join(ctx, s, msg)
	case protocol.TypeLeaveRoom:
		var p protocol.RoomPayload
		if msg.Decode(&p) == nil {
			g.leave(ctx, s, p.RoomID)
		}
	case protocol.TypeRequestContent:
		g.requestContent(s, msg)
	case protocol.TypeSetRole:
		g.setRole(ctx, s, msg)
	case protocol.TypeFileChange, protocol.TypeFileCreate, protocol.TypeFileRename,
		protocol.TypeFileDelete, protocol.TypeRoomContent:
		g.relay(s, msg)
	default:
		slog.Debug("ws: unknown event", "conn", s.conn.ID(), "type", msg.Type)
	}
}

// Disconnect убирает подключение из всех его комнат.
func (g *Gateway) Disconnect(ctx context.Context, s *session) {
	for roomID := range s.rooms {
		g.leave(ctx, s, roomID)
	}
}

func (g *Gateway) join(ctx context.Context, s *session, msg protocol.Message) {
	var p protocol.JoinRoomPayload
	if err := msg.Decode(&p); err != nil {
		return
	}
	p.RoomID = strings.TrimSpace(p.RoomID)
	p.Username = strings.TrimSpace(p.Username)
	if p.RoomID == "" || p.Username == "" {
		return // некорректный join — молча игнорируем
	}

	part := domain.Participant{ConnID: s.conn.ID(), DisplayName: p.Username}
	switch {
	case s.identity != nil:
		part.DurableUserID, part.Email = s.identity.UserID, s.identity.Email
	case !s.authOn:
		part.DurableUserID, part.Email = strings.TrimSpace(p.DurableID), p.Email
	}

	// в hub до Join: входящий тоже получает user-joined
	g.hub.Add(p.RoomID, s.conn)
	if _, err := g.registry.Join(ctx, p.RoomID, part); err != nil {
		g.hub.Remove(p.RoomID, s.conn)
		slog.Debug("ws: join rejected", "conn", s.conn.ID(), "room", p.RoomID, "err", err)
		return
	}
	s.rooms[p.RoomID] = struct{}{}

	g.hub.BroadcastExcept(p.RoomID, s.conn.ID(), protocol.MustNew(protocol.TypeRequestContent,
		protocol.RequestContentPayload{RoomID: p.RoomID, RequesterID: s.conn.ID()}))
}

func (g *Gateway) leave(ctx context.Context, s *session, roomID string) {
	if _, ok := s.rooms[roomID]; !ok {
		return
	}
	delete(s.rooms, roomID)
	g.hub.Remove(roomID, s.conn)
	g.registry.Leave(ctx, roomID, s.conn.ID())
}

func (g *Gateway) requestContent(s *session, msg protocol.Message) {
	var p protocol.RoomPayload
	if msg.Decode(&p) != nil {
		return
	}
	if _, ok := g.registry.Role(p.RoomID, s.conn.ID()); !ok {
		g.deny(s, msg.Type, p.RoomID, protocol.ReasonNotMember)
		return
	}
	g.hub.BroadcastExcept(p.RoomID, s.conn.ID(), protocol.MustNew(protocol.TypeRequestContent,
		protocol.RequestContentPayload{RoomID: p.RoomID, RequesterID: s.conn.ID()}))
}

// relay пересылает мутацию без изменений: room-content — всей комнате,
// остальное — всем, кроме отправителя.
func (g *Gateway) relay(s *session, msg protocol.Message) {
	var p protocol.RoomPayload
	if msg.Decode(&p) != nil {
		return
	}
	role, ok := g.registry.Role(p.RoomID, s.conn.ID())
	if !ok {
		g.deny(s, msg.Type, p.RoomID, protocol.ReasonNotMember)
		return
	}
	if !role.CanMutate() {
		g.deny(s, msg.Type, p.RoomID, protocol.ReasonViewer)
		return
	}

	if msg.Type == protocol.TypeRoomContent {
		g.hub.Broadcast(p.RoomID, msg)
		return
	}
	g.hub.BroadcastExcept(p.RoomID, s.conn.ID(), msg)
}

func (g *Gateway) setRole(ctx context.Context, s *session, msg protocol.Message) {
	var p protocol.SetRolePayload
	if msg.Decode(&p) != nil {
		return
	}
	if _, ok := g.registry.Role(p.RoomID, s.conn.ID()); !ok {
		g.deny(s, msg.Type, p.RoomID, protocol.ReasonNotMember)
		return
	}
	role, err := domain.ParseRole(string(p.Role))
	if err == nil {
		err = g.registry.SetRole(ctx, p.RoomID, s.conn.ID(), p.TargetConnectionID, role)
	}
	if err != nil {
		g.deny(s, msg.Type, p.RoomID, reasonFor(err))
	}
}

func (g *Gateway) deny(s *session, action, roomID, reason string) {
	slog.Info("ws: permission denied", "conn", s.conn.ID(), "room", roomID, "action", action, "reason", reason)
	_ = s.conn.Send(protocol.MustNew(protocol.TypePermissionDenied, protocol.PermissionDeniedPayload{
		Action: action,
		RoomID: roomID,
		Reason: reason,
	}))
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotHost):
		return protocol.ReasonNotHost
	case errors.Is(err, domain.ErrSoleHost):
		return protocol.ReasonSoleHost
	case errors.Is(err, domain.ErrInvalidRole):
		return protocol.ReasonInvalidRole
	case errors.Is(err, domain.ErrNotInRoom):
		return protocol.ReasonUnknownTarget
	default:
		return ""
	}
}
