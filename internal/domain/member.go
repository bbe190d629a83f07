package domain

import "time"

// User — durable-пользователь (по внешнему id из auth).
type User struct {
	ID         int64     `db:"id"`
	ExternalID string    `db:"external_id"`
	Email      string    `db:"email"`
	Name       string    `db:"name"`
	CreatedAt  time.Time `db:"created_at"`
}

// RoomMember — сохранённая роль пользователя в комнате.
type RoomMember struct {
	ID         int64     `db:"id"`
	RoomKey    string    `db:"room_key"`
	UserID     int64     `db:"user_id"`
	ExternalID string    `db:"external_id"`
	Name       string    `db:"name"`
	Role       Role      `db:"role"`
	JoinedAt   time.Time `db:"joined_at"`
	LastSeen   time.Time `db:"last_seen"`
}
