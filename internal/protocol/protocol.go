// Package protocol — события WebSocket-протокола совместного редактирования.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

// Типы событий, которые ходят по WS
const (
	TypeConnected        = "connected"         // server -> client: id подключения
	TypeJoinRoom         = "join-room"         // client -> server
	TypeLeaveRoom        = "leave-room"        // client -> server
	TypeUserJoined       = "user-joined"       // server -> room: полный список участников
	TypeUserLeft         = "user-left"         // server -> room: полный список участников
	TypeRequestContent   = "request-content"   // client -> server -> остальные
	TypeRoomContent      = "room-content"      // снапшот файлов, всей комнате
	TypeFileChange       = "file-change"       // содержимое файла, остальным
	TypeFileCreate       = "file-create"       // остальным
	TypeFileRename       = "file-rename"       // остальным
	TypeFileDelete       = "file-delete"       // остальным
	TypeSetRole          = "set-role"          // host -> server
	TypePermissionDenied = "permission-denied" // server -> отправитель
)

// Message — конверт: payload декодируется по Type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New упаковывает payload в конверт.
func New(typ string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: typ}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", typ, err)
	}
	return Message{Type: typ, Payload: b}, nil
}

// MustNew — для payload-ов, которые гарантированно сериализуются.
func MustNew(typ string, payload any) Message {
	m, err := New(typ, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// Decode разбирает payload в dst; пустой payload — ошибка.
func (m Message) Decode(dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("decode %s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// IsMutation — события, которые меняют содержимое комнаты и требуют CanMutate.
func IsMutation(typ string) bool {
	switch typ {
	case TypeFileChange, TypeFileCreate, TypeFileRename, TypeFileDelete, TypeRoomContent:
		return true
	}
	return false
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type JoinRoomPayload struct {
	RoomID    string `json:"roomId"`
	Username  string `json:"username"`
	DurableID string `json:"durableId,omitempty"`
	Email     string `json:"email,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type MembershipPayload struct {
	RoomID       string               `json:"roomId"`
	Participants []domain.Participant `json:"participants"`
}

type RequestContentPayload struct {
	RoomID      string `json:"roomId"`
	RequesterID string `json:"requesterId,omitempty"`
}

type RoomContentPayload struct {
	RoomID       string        `json:"roomId"`
	Files        []domain.File `json:"files"`
	ActiveFileID string        `json:"activeFileId,omitempty"`
}

type FileChangePayload struct {
	RoomID  string `json:"roomId"`
	FileID  string `json:"fileId"`
	Content string `json:"content"`
}

type FileCreatePayload struct {
	RoomID string      `json:"roomId"`
	File   domain.File `json:"file"`
}

type FileRenamePayload struct {
	RoomID   string `json:"roomId"`
	FileID   string `json:"fileId"`
	NewName  string `json:"newName"`
	Language string `json:"language,omitempty"`
}

type FileDeletePayload struct {
	RoomID string `json:"roomId"`
	FileID string `json:"fileId"`
}

type SetRolePayload struct {
	RoomID             string      `json:"roomId"`
	TargetConnectionID string      `json:"targetConnectionId"`
	Role               domain.Role `json:"role"`
}

// Причины отказа в permission-denied.reason
const (
	ReasonNotMember     = "not-member"
	ReasonViewer        = "viewer"
	ReasonNotHost       = "not-host"
	ReasonSoleHost      = "sole-host"
	ReasonInvalidRole   = "invalid-role"
	ReasonUnknownTarget = "unknown-target"
)

type PermissionDeniedPayload struct {
	Action string `json:"action"`
	RoomID string `json:"roomId,omitempty"`
	Reason string `json:"reason,omitempty"`
}
