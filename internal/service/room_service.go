package service

import (
	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/room"
)

// LiveRooms — то, что RoomService читает из реестра.
type LiveRooms interface {
	Rooms() []room.RoomSummary
	Participants(roomID string) []domain.Participant
}

// RoomService — read-only представление живых комнат для HTTP и gRPC.
type RoomService struct {
	rooms LiveRooms
}

func NewRoomService(rooms LiveRooms) *RoomService {
	return &RoomService{rooms: rooms}
}

// ListRooms возвращает живые комнаты, отсортированные по id.
func (s *RoomService) ListRooms() []room.RoomSummary {
	return s.rooms.Rooms()
}

// Participants возвращает живой состав комнаты в порядке входа.
func (s *RoomService) Participants(roomID string) ([]domain.Participant, error) {
	ps := s.rooms.Participants(roomID)
	if len(ps) == 0 {
		return nil, domain.ErrRoomNotFound
	}
	return ps, nil
}
