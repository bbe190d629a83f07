package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwrk-planet/collab-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ReopenKeepsRoles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "collab.db")

	s, err := Open(path)
	require.NoError(t, err)

	roomID, err := s.EnsureRoom(ctx, "R")
	require.NoError(t, err)
	u := &domain.User{ExternalID: "ext-1", Email: "ext-1@example.local", Name: "A"}
	require.NoError(t, s.UpsertUser(ctx, u))
	_, err = s.UpsertParticipant(ctx, roomID, u.ID, domain.RoleHost)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(ctx))

	again, err := s.EnsureRoom(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, roomID, again)

	items, err := s.ListParticipants(ctx, roomID, 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.RoleHost, items[0].Role)
	assert.Equal(t, "ext-1", items[0].ExternalID)
	assert.WithinDuration(t, time.Now(), items[0].JoinedAt, time.Hour)
}

func TestStore_UpsertUserKeepsFirstEmail(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "collab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	u := &domain.User{ExternalID: "x", Email: "first@example.com", Name: "One"}
	require.NoError(t, s.UpsertUser(ctx, u))
	id := u.ID

	u2 := &domain.User{ExternalID: "x", Email: "second@example.com", Name: "Two"}
	require.NoError(t, s.UpsertUser(ctx, u2))
	assert.Equal(t, id, u2.ID)
	assert.Equal(t, "first@example.com", u2.Email)
}
