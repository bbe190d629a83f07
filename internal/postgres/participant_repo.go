package postgres

import (
	"context"

	"github.com/cwrk-planet/collab-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ParticipantRepository struct {
	db *pgxpool.Pool
}

func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) CountParticipants(ctx context.Context, roomID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM room_participants WHERE room_id=$1`, roomID).Scan(&count)
	return count, err
}

// UpsertParticipant — новая запись получает role; существующая сохраняет свою.
func (r *ParticipantRepository) UpsertParticipant(ctx context.Context, roomID, userID int64, role domain.Role) (domain.Role, error) {
	var got string
	err := r.db.QueryRow(ctx, `
		INSERT INTO room_participants (room_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO UPDATE SET last_seen = now()
		RETURNING role`,
		roomID, userID, string(role)).Scan(&got)
	if err != nil {
		return "", err
	}
	return domain.Role(got), nil
}

func (r *ParticipantRepository) UpdateParticipantRole(ctx context.Context, roomID, userID int64, role domain.Role) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE room_participants SET role=$3, last_seen=now() WHERE room_id=$1 AND user_id=$2`,
		roomID, userID, string(role))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *ParticipantRepository) TouchParticipant(ctx context.Context, roomID, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE room_participants SET last_seen=now() WHERE room_id=$1 AND user_id=$2`,
		roomID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *ParticipantRepository) ListParticipants(ctx context.Context, roomID int64, afterID int64, limit int) ([]domain.RoomMember, error) {
	const q = `
SELECT m.id,
       r.room_key,
       m.user_id,
       u.external_id,
       u.name,
       m.role,
       m.joined_at,
       m.last_seen
FROM room_participants AS m
JOIN users AS u ON u.id = m.user_id
JOIN rooms AS r ON r.id = m.room_id
WHERE m.room_id = $1
  AND m.id > $2
ORDER BY m.id ASC
LIMIT $3;
`
	rows, err := r.db.Query(ctx, q, roomID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RoomMember, 0, limit)
	for rows.Next() {
		var (
			m    domain.RoomMember
			role string
		)
		if err := rows.Scan(
			&m.ID,
			&m.RoomKey,
			&m.UserID,
			&m.ExternalID,
			&m.Name,
			&role,
			&m.JoinedAt,
			&m.LastSeen,
		); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}

	return out, rows.Err()
}
