// Package room хранит живой состав комнат и назначает роли.
package room

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

// Bridge — durable-хранилище участников. Все вызовы best-effort:
// ошибки логируются и не ломают in-memory протокол.
type Bridge interface {
	ResolveDurableUser(ctx context.Context, externalID, displayName, email string) (int64, error)
	CountRoomParticipants(ctx context.Context, roomKey string) (int, error)
	UpsertRoomParticipant(ctx context.Context, roomKey string, userID int64, desiredIfNew domain.Role) (domain.Role, error)
	UpdateParticipantRole(ctx context.Context, roomKey string, userID int64, role domain.Role) error
	TouchLastSeen(ctx context.Context, roomKey string, userID int64) error
}

type Event string

const (
	EventJoined      Event = "joined"
	EventLeft        Event = "left"
	EventRoleChanged Event = "role_changed"
)

// Notifier получает полный упорядоченный список участников после
// каждого изменения. Вызывается под локом комнаты.
type Notifier func(roomID string, ev Event, participants []domain.Participant)

type RoomSummary struct {
	ID           string
	Participants int
	Hosts        int
}

type member struct {
	domain.Participant
	userID int64 // 0 — нет durable-записи
}

type entry struct {
	mu      sync.Mutex
	members []member
	pending int // сколько горутин держат/ждут entry; защищено Registry.mu
}

type Registry struct {
	mu    sync.Mutex
	rooms map[string]*entry

	bridge Bridge
	notify Notifier

	bridgeTimeout time.Duration
}

// NewRegistry: bridge и notify могут быть nil.
func NewRegistry(bridge Bridge, notify Notifier) *Registry {
	return &Registry{
		rooms:         make(map[string]*entry),
		bridge:        bridge,
		notify:        notify,
		bridgeTimeout: 5 * time.Second,
	}
}

func (r *Registry) SetBridgeTimeout(d time.Duration) {
	if d > 0 {
		r.bridgeTimeout = d
	}
}

// Join добавляет (или перезаписывает) участника и возвращает его роль.
func (r *Registry) Join(ctx context.Context, roomID string, p domain.Participant) (domain.Role, error) {
	roomID = strings.TrimSpace(roomID)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if roomID == "" || p.DisplayName == "" || p.ConnID == "" {
		return "", domain.ErrEmptyJoin
	}

	e := r.acquire(roomID, true)
	defer r.release(roomID, e)

	occupied := 0
	for _, m := range e.members {
		if m.ConnID != p.ConnID {
			occupied++
		}
	}

	m := member{Participant: p}
	m.Role = AssignRole(Occupancy(occupied))
	if p.Durable() && r.bridge != nil {
		role, uid, err := r.durableRole(ctx, roomID, p)
		if err != nil {
			slog.Warn("room: durable join failed, using anonymous role",
				"room", roomID, "conn", p.ConnID, "err", err)
		} else {
			m.Role, m.userID = role, uid
		}
	}

	e.members = append(without(e.members, p.ConnID), m)
	r.emit(roomID, EventJoined, e)

	slog.Info("room: joined", "room", roomID, "conn", p.ConnID, "role", m.Role)
	return m.Role, nil
}

func (r *Registry) durableRole(ctx context.Context, roomID string, p domain.Participant) (domain.Role, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.bridgeTimeout)
	defer cancel()

	uid, err := r.bridge.ResolveDurableUser(ctx, p.DurableUserID, p.DisplayName, p.Email)
	if err != nil {
		return "", 0, err
	}
	n, err := r.bridge.CountRoomParticipants(ctx, roomID)
	if err != nil {
		return "", 0, err
	}
	role, err := r.bridge.UpsertRoomParticipant(ctx, roomID, uid, AssignRole(Occupancy(n)))
	if err != nil {
		return "", 0, err
	}
	if !role.Valid() {
		role = AssignRole(Occupancy(n))
	}
	return role, uid, nil
}

// Leave удаляет подключение из комнаты. false — его там не было.
func (r *Registry) Leave(ctx context.Context, roomID, connID string) bool {
	e := r.acquire(roomID, false)
	if e == nil {
		return false
	}
	defer r.release(roomID, e)

	var gone *member
	for i := range e.members {
		if e.members[i].ConnID == connID {
			m := e.members[i]
			gone = &m
			break
		}
	}
	if gone == nil {
		return false
	}
	e.members = without(e.members, connID)
	r.emit(roomID, EventLeft, e)

	if gone.userID != 0 && r.bridge != nil {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.bridgeTimeout)
		defer cancel()
		if err := r.bridge.TouchLastSeen(bctx, roomID, gone.userID); err != nil {
			slog.Warn("room: touch last seen failed", "room", roomID, "conn", connID, "err", err)
		}
	}

	slog.Info("room: left", "room", roomID, "conn", connID)
	return true
}

// SetRole меняет роль target. Только host; единственного host понизить нельзя.
func (r *Registry) SetRole(ctx context.Context, roomID, requesterID, targetID string, role domain.Role) error {
	e := r.acquire(roomID, false)
	if e == nil {
		return domain.ErrNotInRoom
	}
	defer r.release(roomID, e)

	if err := CheckRoleChange(participants(e.members), requesterID, targetID, role); err != nil {
		return err
	}

	var target member
	for i := range e.members {
		if e.members[i].ConnID == targetID {
			e.members[i].Role = role
			target = e.members[i]
		}
	}
	r.emit(roomID, EventRoleChanged, e)

	if target.userID != 0 && r.bridge != nil {
		bctx, cancel := context.WithTimeout(ctx, r.bridgeTimeout)
		defer cancel()
		if err := r.bridge.UpdateParticipantRole(bctx, roomID, target.userID, role); err != nil {
			slog.Warn("room: persist role failed", "room", roomID, "conn", targetID, "err", err)
		}
	}

	slog.Info("room: role changed", "room", roomID, "by", requesterID, "conn", targetID, "role", role)
	return nil
}

// Role — текущая серверная роль подключения.
func (r *Registry) Role(roomID, connID string) (domain.Role, bool) {
	e := r.acquire(roomID, false)
	if e == nil {
		return "", false
	}
	defer r.release(roomID, e)

	for _, m := range e.members {
		if m.ConnID == connID {
			return m.Role, true
		}
	}
	return "", false
}

func (r *Registry) Participants(roomID string) []domain.Participant {
	e := r.acquire(roomID, false)
	if e == nil {
		return nil
	}
	defer r.release(roomID, e)

	return participants(e.members)
}

// Rooms — снапшот живых комнат, отсортированный по id.
func (r *Registry) Rooms() []RoomSummary {
	r.mu.Lock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	out := make([]RoomSummary, 0, len(ids))
	for _, id := range ids {
		ps := r.Participants(id)
		if len(ps) == 0 {
			continue
		}
		out = append(out, RoomSummary{ID: id, Participants: len(ps), Hosts: domain.HostCount(ps)})
	}
	return out
}

// --- room entry lifecycle ---

// acquire возвращает залоченную entry. create=false — nil, если комнаты нет.
func (r *Registry) acquire(roomID string, create bool) *entry {
	r.mu.Lock()
	e, ok := r.rooms[roomID]
	if !ok {
		if !create {
			r.mu.Unlock()
			return nil
		}
		e = &entry{}
		r.rooms[roomID] = e
	}
	e.pending++
	r.mu.Unlock()

	e.mu.Lock()
	return e
}

// release отпускает entry и удаляет пустую комнату, если её больше никто не ждёт.
func (r *Registry) release(roomID string, e *entry) {
	e.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	e.pending--
	if e.pending == 0 && len(e.members) == 0 {
		delete(r.rooms, roomID)
	}
}

func (r *Registry) emit(roomID string, ev Event, e *entry) {
	if r.notify != nil {
		r.notify(roomID, ev, participants(e.members))
	}
}

func participants(ms []member) []domain.Participant {
	out := make([]domain.Participant, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Participant)
	}
	return out
}

func without(ms []member, connID string) []member {
	out := ms[:0:0]
	for _, m := range ms {
		if m.ConnID != connID {
			out = append(out, m)
		}
	}
	return out
}
