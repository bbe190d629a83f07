package projects

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwrk-planet/collab-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetAndSave(t *testing.T) {
	var saved saveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/projects/p1":
			_ = json.NewEncoder(w).Encode(Project{
				ID:    "p1",
				Name:  "demo",
				Files: []domain.File{{ID: "f1", Name: "main.js", Language: "javascript", Content: "1"}},
			})
		case r.Method == http.MethodPut && r.URL.Path == "/api/projects/p1":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/projects/locked":
			w.WriteHeader(http.StatusForbidden)
		case r.URL.Path == "/api/projects/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithToken("tok"))
	ctx := context.Background()

	p, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Name)
	require.Len(t, p.Files, 1)
	assert.Equal(t, "main.js", p.Files[0].Name)

	files := []domain.File{{ID: "a", Name: "a.py", Language: "python"}, {ID: "b", Name: "b.json", Language: "json", Content: "{}"}}
	require.NoError(t, c.SaveFiles(ctx, "p1", files))
	assert.Equal(t, files, saved.Files)

	_, err = c.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.SaveFiles(ctx, "locked", files), ErrForbidden)
	assert.ErrorIs(t, c.SaveFiles(ctx, "broken", files), ErrUpstream)
}
