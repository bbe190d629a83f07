package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/pagination"
)

type RoomRepository interface {
	EnsureRoom(ctx context.Context, roomKey string) (int64, error)
	RoomIDByKey(ctx context.Context, roomKey string) (int64, error)
}

type UserRepository interface {
	UpsertUser(ctx context.Context, u *domain.User) error
}

type ParticipantRepository interface {
	CountParticipants(ctx context.Context, roomID int64) (int, error)
	// UpsertParticipant создаёт запись с role, если её нет; иначе обновляет
	// last_seen и возвращает сохранённую роль.
	UpsertParticipant(ctx context.Context, roomID, userID int64, role domain.Role) (domain.Role, error)
	UpdateParticipantRole(ctx context.Context, roomID, userID int64, role domain.Role) error
	TouchParticipant(ctx context.Context, roomID, userID int64) error
	ListParticipants(ctx context.Context, roomID int64, afterID int64, limit int) ([]domain.RoomMember, error)
}

// Store — все репозитории одного бэкенда.
type Store interface {
	RoomRepository
	UserRepository
	ParticipantRepository
}

// MemberService — durable-слой участников комнат (реализует room.Bridge).
type MemberService struct {
	store Store
}

func NewMemberService(store Store) *MemberService {
	return &MemberService{store: store}
}

func (s *MemberService) ResolveDurableUser(ctx context.Context, externalID, displayName, email string) (int64, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return 0, fmt.Errorf("resolve user: %w", domain.ErrUserNotFound)
	}
	if email == "" {
		email = externalID + "@example.local"
	}
	u := &domain.User{ExternalID: externalID, Email: email, Name: displayName}
	if err := s.store.UpsertUser(ctx, u); err != nil {
		return 0, fmt.Errorf("store.UpsertUser: %w", err)
	}
	return u.ID, nil
}

func (s *MemberService) CountRoomParticipants(ctx context.Context, roomKey string) (int, error) {
	roomID, err := s.store.EnsureRoom(ctx, roomKey)
	if err != nil {
		return 0, fmt.Errorf("store.EnsureRoom: %w", err)
	}
	n, err := s.store.CountParticipants(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("store.CountParticipants: %w", err)
	}
	return n, nil
}

func (s *MemberService) UpsertRoomParticipant(ctx context.Context, roomKey string, userID int64, desiredIfNew domain.Role) (domain.Role, error) {
	roomID, err := s.store.EnsureRoom(ctx, roomKey)
	if err != nil {
		return "", fmt.Errorf("store.EnsureRoom: %w", err)
	}
	role, err := s.store.UpsertParticipant(ctx, roomID, userID, desiredIfNew)
	if err != nil {
		return "", fmt.Errorf("store.UpsertParticipant: %w", err)
	}
	return role, nil
}

func (s *MemberService) UpdateParticipantRole(ctx context.Context, roomKey string, userID int64, role domain.Role) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	roomID, err := s.store.RoomIDByKey(ctx, roomKey)
	if err != nil {
		return fmt.Errorf("store.RoomIDByKey: %w", err)
	}
	if err := s.store.UpdateParticipantRole(ctx, roomID, userID, role); err != nil {
		return fmt.Errorf("store.UpdateParticipantRole: %w", err)
	}
	return nil
}

func (s *MemberService) TouchLastSeen(ctx context.Context, roomKey string, userID int64) error {
	roomID, err := s.store.RoomIDByKey(ctx, roomKey)
	if err != nil {
		return fmt.Errorf("store.RoomIDByKey: %w", err)
	}
	return s.store.TouchParticipant(ctx, roomID, userID)
}

// ListMembers — сохранённые участники комнаты с курсорной пагинацией.
func (s *MemberService) ListMembers(ctx context.Context, roomKey string, limit int, cursor string) ([]domain.RoomMember, string, error) {
	limit = pagination.ClampLimit(limit)
	afterID, err := pagination.AfterID(cursor)
	if err != nil {
		return nil, "", err
	}

	roomID, err := s.store.RoomIDByKey(ctx, roomKey)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, "", domain.ErrRoomNotFound
		}
		return nil, "", fmt.Errorf("store.RoomIDByKey: %w", err)
	}

	items, err := s.store.ListParticipants(ctx, roomID, afterID, limit)
	if err != nil {
		return nil, "", fmt.Errorf("store.ListParticipants: %w", err)
	}
	var last int64
	if len(items) > 0 {
		last = items[len(items)-1].ID
	}
	return items, pagination.Next(len(items), limit, last), nil
}
