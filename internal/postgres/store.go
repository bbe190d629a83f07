// Package postgres — durable-хранилище участников на pgx.
package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Store собирает репозитории в один service.Store.
type Store struct {
	*RoomRepository
	*UserRepository
	*ParticipantRepository
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		RoomRepository:        NewRoomRepository(db),
		UserRepository:        NewUserRepository(db),
		ParticipantRepository: NewParticipantRepository(db),
	}
}
