package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/collab-service/internal/auth"
	"github.com/cwrk-planet/collab-service/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

type ServerConfig struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	SendBuffer     int
	AllowedOrigins []string // пусто — любой Origin
}

func (c *ServerConfig) withDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
}

type Server struct {
	upgrader websocket.Upgrader
	gateway  *Gateway
	verifier *auth.Verifier // nil — токены не проверяются
	required bool
	cfg      ServerConfig

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func NewServer(gw *Gateway, verifier *auth.Verifier, authRequired bool, cfg ServerConfig) *Server {
	cfg.withDefaults()
	s := &Server{
		gateway:  gw,
		verifier: verifier,
		required: authRequired && verifier != nil,
		cfg:      cfg,
		conns:    make(map[*wsConn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // не браузер
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// HandleWS — GET /ws[?access_token=...]. Комнаты выбираются событием join-room.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var identity *auth.Identity
	if s.verifier != nil {
		id, err := s.verifier.Verify(auth.TokenFromRequest(r))
		switch {
		case err == nil:
			identity = &id
		case errors.Is(err, auth.ErrMissingToken) && !s.required:
			// анонимное подключение
		default:
			slog.Info("ws: unauthorized", "remote", r.RemoteAddr, "err", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам ответил клиенту
		slog.Warn("ws: upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, ulid.Make().String(), s.cfg.SendBuffer)
	s.track(c)
	defer s.untrack(c)

	log := slog.With("conn", c.ID())
	log.Info("ws: connected", "remote", r.RemoteAddr, "durable", identity != nil)

	_ = c.Send(protocol.MustNew(protocol.TypeConnected, protocol.ConnectedPayload{ConnectionID: c.ID()}))
	go c.writeLoop(s.cfg.PingInterval, s.cfg.WriteTimeout)

	sess := newSession(c, identity, s.verifier != nil)
	s.readLoop(r.Context(), c, sess)

	// запрос уже может быть отменён, а участников нужно убрать в любом случае
	s.gateway.Disconnect(context.WithoutCancel(r.Context()), sess)
	_ = c.Close()
	log.Info("ws: disconnected")
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, sess *session) {
	c.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws: read failed", "conn", c.ID(), "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.gateway.Handle(ctx, sess, msg)
	}
}

func (s *Server) track(c *wsConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// CloseAll закрывает все подключения: http.Server.Shutdown не трогает hijacked-соединения.
func (s *Server) CloseAll() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
