package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/collab-service/internal/auth"
	httpmw "github.com/cwrk-planet/collab-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowOrigins []string
	Verifier     *auth.Verifier // nil — без проверки токенов
	AuthRequired bool
}

func NewRouter(h *Handler, ws http.HandlerFunc, cfg RouterConfig) http.Handler {
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.WithRequestLogger)

	// WS endpoint: аутентификация внутри, чтобы вернуть 401 до upgrade
	r.Get("/ws", ws)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.RequestLogger)
		pr.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Use(httpmw.Authenticate(cfg.Verifier, cfg.AuthRequired))
			rm.Get("/", h.ListRooms)
			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/participants", h.GetParticipants)
				rr.Get("/members", h.ListMembers)
			})
		})
	})

	return r
}
