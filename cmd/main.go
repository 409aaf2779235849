package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lingvo-chat/chat-service/config"
	"github.com/lingvo-chat/chat-service/internal/ai"
	"github.com/lingvo-chat/chat-service/internal/dispatch"
	"github.com/lingvo-chat/chat-service/internal/postgres"
	"github.com/lingvo-chat/chat-service/internal/presence"
	"github.com/lingvo-chat/chat-service/internal/quota"
	"github.com/lingvo-chat/chat-service/internal/service"
	"github.com/lingvo-chat/chat-service/internal/translate"
	httpx "github.com/lingvo-chat/chat-service/internal/transport/http"
	httpmw "github.com/lingvo-chat/chat-service/internal/transport/http/middleware"
	"github.com/lingvo-chat/chat-service/internal/transport/ws"
	"github.com/lingvo-chat/chat-service/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- redis (опционально; без него presence и quota живут в памяти) ---
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
	}

	// --- repos ---
	roomRepo := postgres.NewRoomRepository(db.Pool)
	partRepo := postgres.NewParticipantRepository(db.Pool)
	msgRepo := postgres.NewMessageRepository(db.Pool)

	// --- services ---
	roomSvc := service.NewRoomService(roomRepo, partRepo)
	memberSvc := service.NewMemberService(roomRepo, partRepo)
	msgSvc := service.NewMessageService(msgRepo)
	resolver := service.NewRoomResolver(roomRepo, partRepo)

	// --- presence & quota ---
	var tracker presence.Tracker
	var gate quota.Gate = quota.NoopGate{}
	if rdb != nil {
		tracker = presence.NewRedisTracker(rdb, cfg.TypingTTL())
		if cfg.Quota.SendLimit > 0 {
			gate = quota.NewRedisGate(rdb, cfg.Quota.SendLimit, cfg.QuotaWindow())
		}
	} else {
		tracker = presence.NewMemoryTracker(cfg.TypingTTL())
	}

	// --- translation & assistant ---
	translator := translate.NewClient(translate.Config{
		GeneralURL:  cfg.Translate.GeneralURL,
		CustomURL:   cfg.Translate.CustomURL,
		DetectURL:   cfg.Translate.DetectURL,
		LowResource: cfg.Translate.LowResource,
		Timeout:     cfg.TranslateTimeout(),
	})
	responder := ai.New(ai.Config{
		URL:    cfg.Assistant.URL,
		APIKey: cfg.Assistant.APIKey,
		Model:  cfg.Assistant.Model,
	})

	// --- WS Hub & Server ---
	verifier := httpmw.NewJWTVerifier(cfg.Auth.Secret)
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, verifier, memberSvc, tracker)

	// --- dispatcher ---
	dispatcher := dispatch.New(msgRepo, resolver, translator, hub, responder)

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, memberSvc, msgSvc, dispatcher, gate, tracker, hub)
	router := httpx.NewRouter(handler, verifier, memberSvc, tracker, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
