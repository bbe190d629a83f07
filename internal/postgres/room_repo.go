package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/collab-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// EnsureRoom — upsert по room_key, возвращает id.
func (r *RoomRepository) EnsureRoom(ctx context.Context, roomKey string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO rooms (room_key) VALUES ($1)
		ON CONFLICT (room_key) DO UPDATE SET room_key = EXCLUDED.room_key
		RETURNING id`, roomKey).Scan(&id)
	return id, err
}

func (r *RoomRepository) RoomIDByKey(ctx context.Context, roomKey string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM rooms WHERE room_key=$1`, roomKey).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrRoomNotFound
		}
		return 0, err
	}
	return id, nil
}
