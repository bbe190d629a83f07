package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFor(t *testing.T) {
	assert.Equal(t, "3.10.0", VersionFor("python"))
	assert.Equal(t, "6.12.0", VersionFor("csharp"))
	assert.Equal(t, DefaultVersion, VersionFor("html"))
}

func TestClient_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/run" {
			http.NotFound(w, r)
			return
		}
		var req runRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		switch req.Language {
		case "python":
			assert.Equal(t, "3.10.0", req.Version)
			_, _ = w.Write([]byte(`{"run":{"stdout":"hi\n","stderr":""}}`))
		case "java":
			_, _ = w.Write([]byte(`{"run":{"stdout":"","stderr":"boom"}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to execute code"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()

	out, err := c.Execute(ctx, "python", "print('hi')")
	require.NoError(t, err)
	assert.Equal(t, Output{Message: "hi\n"}, out)

	out, err = c.Execute(ctx, "java", "class A {}")
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Equal(t, "boom", out.Message)

	out, err = c.Execute(ctx, "cpp", "int main(){}")
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, out.IsError)
	assert.Equal(t, "Failed to execute code", out.Message)

	_, err = c.Execute(ctx, "", "x")
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := NewClient(url, nil).Execute(context.Background(), "javascript", "1")
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, Output{IsError: true, Message: ErrUnreachable.Error()}, out)
}
