package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/collab-service/config"
	"github.com/cwrk-planet/collab-service/internal/auth"
	"github.com/cwrk-planet/collab-service/internal/memory"
	"github.com/cwrk-planet/collab-service/internal/platform/logger"
	"github.com/cwrk-planet/collab-service/internal/postgres"
	"github.com/cwrk-planet/collab-service/internal/room"
	"github.com/cwrk-planet/collab-service/internal/service"
	"github.com/cwrk-planet/collab-service/internal/sqlite"
	grpcx "github.com/cwrk-planet/collab-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/collab-service/internal/transport/http"
	"github.com/cwrk-planet/collab-service/internal/transport/ws"

	"google.golang.org/grpc"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting collab-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "storage", cfg.Storage.Driver)

	// --- storage ---
	ctx := context.Background()
	store, closer, err := openStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closer.Close()

	// --- services ---
	memberSvc := service.NewMemberService(store)

	hub := ws.NewHub()
	registry := room.NewRegistry(memberSvc, ws.MembershipNotifier(hub))
	registry.SetBridgeTimeout(cfg.Bridge.Timeout)
	roomSvc := service.NewRoomService(registry)

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	}

	// --- WS ---
	wsServer := ws.NewServer(ws.NewGateway(hub, registry), verifier, cfg.Auth.Required, ws.ServerConfig{
		PingInterval:   cfg.WS.PingInterval,
		WriteTimeout:   cfg.WS.WriteTimeout,
		ReadLimit:      cfg.WS.ReadLimit,
		SendBuffer:     cfg.WS.SendBuffer,
		AllowedOrigins: cfg.HTTP.AllowOrigins,
	})

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, memberSvc)
	router := httpx.NewRouter(handler, wsServer.HandleWS, httpx.RouterConfig{
		AllowOrigins: cfg.HTTP.AllowOrigins,
		Verifier:     verifier,
		AuthRequired: cfg.Auth.Required,
	})
	httpSrv := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     router,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}

	// --- run ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		grpcServer = grpc.NewServer(
			grpc.ChainUnaryInterceptor(
				grpcx.UnaryServerInterceptor(10*time.Second),
				grpcx.AuthUnaryInterceptor(verifier, cfg.Auth.Required),
			),
			grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
		)
		grpcx.Register(grpcServer, grpcx.NewServer(roomSvc))

		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				errCh <- err
				return
			}
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// --- graceful shutdown ---
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	// Shutdown не ждёт hijacked-подключения, поэтому WS закрываем отдельно
	_ = httpSrv.Shutdown(ctxShutdown)
	wsServer.CloseAll()
	slog.Info("stopped")
}

func openStore(ctx context.Context, cfg config.Storage) (service.Store, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ApplicationName:   "collab-service",
		})
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.NewStore(pool), closerFunc(pool.Close), nil

	default:
		return memory.NewStore(), closerFunc(func() {}), nil
	}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
