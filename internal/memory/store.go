// Package memory — durable-хранилище в памяти процесса (dev и тесты).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

type participantKey struct {
	roomID int64
	userID int64
}

type Store struct {
	mu sync.RWMutex

	seq          int64
	rooms        map[string]int64 // room_key -> id
	roomKeys     map[int64]string
	users        map[string]*domain.User // external_id -> user
	usersByID    map[int64]*domain.User
	participants map[participantKey]*domain.RoomMember

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		rooms:        make(map[string]int64),
		roomKeys:     make(map[int64]string),
		users:        make(map[string]*domain.User),
		usersByID:    make(map[int64]*domain.User),
		participants: make(map[participantKey]*domain.RoomMember),
		now:          time.Now,
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// --- rooms ---

func (s *Store) EnsureRoom(_ context.Context, roomKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.rooms[roomKey]; ok {
		return id, nil
	}
	id := s.nextID()
	s.rooms[roomKey] = id
	s.roomKeys[id] = roomKey
	return id, nil
}

func (s *Store) RoomIDByKey(_ context.Context, roomKey string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.rooms[roomKey]
	if !ok {
		return 0, domain.ErrRoomNotFound
	}
	return id, nil
}

// --- users ---

func (s *Store) UpsertUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.users[u.ExternalID]; ok {
		cur.Name = u.Name
		*u = *cur
		return nil
	}
	nu := *u
	nu.ID = s.nextID()
	nu.CreatedAt = s.now()
	s.users[nu.ExternalID] = &nu
	s.usersByID[nu.ID] = &nu
	*u = nu
	return nil
}

// --- participants ---

func (s *Store) CountParticipants(_ context.Context, roomID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.participants {
		if k.roomID == roomID {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpsertParticipant(_ context.Context, roomID, userID int64, role domain.Role) (domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := participantKey{roomID, userID}
	now := s.now()
	if m, ok := s.participants[k]; ok {
		m.LastSeen = now
		return m.Role, nil
	}
	u := s.usersByID[userID]
	if u == nil {
		return "", domain.ErrUserNotFound
	}
	s.participants[k] = &domain.RoomMember{
		ID:         s.nextID(),
		RoomKey:    s.roomKeys[roomID],
		UserID:     userID,
		ExternalID: u.ExternalID,
		Name:       u.Name,
		Role:       role,
		JoinedAt:   now,
		LastSeen:   now,
	}
	return role, nil
}

func (s *Store) UpdateParticipantRole(_ context.Context, roomID, userID int64, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.participants[participantKey{roomID, userID}]
	if !ok {
		return domain.ErrMemberNotFound
	}
	m.Role = role
	m.LastSeen = s.now()
	return nil
}

func (s *Store) TouchParticipant(_ context.Context, roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.participants[participantKey{roomID, userID}]
	if !ok {
		return domain.ErrMemberNotFound
	}
	m.LastSeen = s.now()
	return nil
}

func (s *Store) ListParticipants(_ context.Context, roomID int64, afterID int64, limit int) ([]domain.RoomMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RoomMember, 0, limit)
	for k, m := range s.participants {
		if k.roomID == roomID && m.ID > afterID {
			cp := *m
			if u := s.usersByID[m.UserID]; u != nil {
				cp.Name = u.Name
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
