package httpmw

import (
	"context"
	"errors"
	"net/http"

	"github.com/cwrk-planet/collab-service/internal/auth"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// Authenticate проверяет Bearer-токен, если verifier задан.
// required=false пропускает запросы без токена, но не с битым токеном.
func Authenticate(v *auth.Verifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(auth.TokenFromRequest(r))
			switch {
			case err == nil:
				r = r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, id))
			case errors.Is(err, auth.ErrMissingToken) && !required:
			default:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func IdentityFromCtx(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(auth.Identity)
	return id, ok
}
