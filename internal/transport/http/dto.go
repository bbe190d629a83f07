package http

import (
	"time"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type RoomItem struct {
	ID           string `json:"id"`
	Participants int    `json:"participants"`
	Hosts        int    `json:"hosts"`
}

type RoomsListResponse struct {
	Items []RoomItem `json:"items"`
}

type ParticipantsResponse struct {
	RoomID string               `json:"roomId"`
	Items  []domain.Participant `json:"items"`
}

type MemberItem struct {
	UserID   string      `json:"userId"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
	LastSeen time.Time   `json:"lastSeen"`
}

type MembersResponse struct {
	Items      []MemberItem `json:"items"`
	NextCursor string       `json:"nextCursor,omitempty"`
}
