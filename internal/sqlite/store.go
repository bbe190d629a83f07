// Package sqlite — durable-хранилище участников на modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwrk-planet/collab-service/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_key TEXT NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_participants (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	role TEXT NOT NULL,
	joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_room_participants_room_id ON room_participants(room_id, id);
`

type Store struct {
	db *sql.DB
}

// Open открывает (и при необходимости создаёт) базу по пути path.
// ":memory:" — база в памяти.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// один writer; in-memory база живёт только в рамках одного соединения
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- rooms ---

func (s *Store) EnsureRoom(ctx context.Context, roomKey string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rooms (room_key) VALUES (?)
		ON CONFLICT (room_key) DO UPDATE SET room_key = excluded.room_key
		RETURNING id`, roomKey).Scan(&id)
	return id, err
}

func (s *Store) RoomIDByKey(ctx context.Context, roomKey string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM rooms WHERE room_key = ?`, roomKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrRoomNotFound
	}
	return id, err
}

// --- users ---

func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO users (external_id, email, name) VALUES (?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET name = excluded.name
		RETURNING id, email`,
		u.ExternalID, u.Email, u.Name,
	).Scan(&u.ID, &u.Email)
}

// --- participants ---

func (s *Store) CountParticipants(ctx context.Context, roomID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_participants WHERE room_id = ?`, roomID).Scan(&n)
	return n, err
}

func (s *Store) UpsertParticipant(ctx context.Context, roomID, userID int64, role domain.Role) (domain.Role, error) {
	var got string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO room_participants (room_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET last_seen = CURRENT_TIMESTAMP
		RETURNING role`,
		roomID, userID, string(role),
	).Scan(&got)
	if err != nil {
		return "", err
	}
	return domain.Role(got), nil
}

func (s *Store) UpdateParticipantRole(ctx context.Context, roomID, userID int64, role domain.Role) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE room_participants SET role = ?, last_seen = CURRENT_TIMESTAMP
		WHERE room_id = ? AND user_id = ?`,
		string(role), roomID, userID)
	return affected(res, err)
}

func (s *Store) TouchParticipant(ctx context.Context, roomID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE room_participants SET last_seen = CURRENT_TIMESTAMP
		WHERE room_id = ? AND user_id = ?`,
		roomID, userID)
	return affected(res, err)
}

func (s *Store) ListParticipants(ctx context.Context, roomID int64, afterID int64, limit int) ([]domain.RoomMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, r.room_key, m.user_id, u.external_id, u.name, m.role, m.joined_at, m.last_seen
		FROM room_participants AS m
		JOIN users AS u ON u.id = m.user_id
		JOIN rooms AS r ON r.id = m.room_id
		WHERE m.room_id = ? AND m.id > ?
		ORDER BY m.id ASC
		LIMIT ?`,
		roomID, afterID, limit)
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
		if err := rows.Scan(&m.ID, &m.RoomKey, &m.UserID, &m.ExternalID, &m.Name, &role, &m.JoinedAt, &m.LastSeen); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}
