package postgres

import (
	"context"

	"github.com/cwrk-planet/collab-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertUser — по external_id; имя обновляется, email остаётся первым.
func (r *UserRepository) UpsertUser(ctx context.Context, u *domain.User) error {
	const q = `
		INSERT INTO users (external_id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, email, created_at`
	return r.db.QueryRow(ctx, q, u.ExternalID, u.Email, u.Name).Scan(&u.ID, &u.Email, &u.CreatedAt)
}
