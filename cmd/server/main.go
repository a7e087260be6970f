package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/application/roomservice"
	"github.com/robin-raq/collabboard/internal/domain/board"
	"github.com/robin-raq/collabboard/internal/domain/repository"
	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/infrastructure/broadcast"
	"github.com/robin-raq/collabboard/internal/infrastructure/config"
	"github.com/robin-raq/collabboard/internal/infrastructure/crdt"
	"github.com/robin-raq/collabboard/internal/infrastructure/llm"
	"github.com/robin-raq/collabboard/internal/infrastructure/llm/anthropic"
	"github.com/robin-raq/collabboard/internal/infrastructure/llm/openai"
	"github.com/robin-raq/collabboard/internal/infrastructure/logger"
	"github.com/robin-raq/collabboard/internal/infrastructure/persistence"
	httpserver "github.com/robin-raq/collabboard/internal/interfaces/http"
	"github.com/robin-raq/collabboard/internal/interfaces/http/handlers"
	ws "github.com/robin-raq/collabboard/internal/interfaces/websocket"
	"github.com/robin-raq/collabboard/pkg/safego"
)

const (
	appName    = "collabboard"
	appVersion = "0.3.0"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("%s v%s\n", appName, appVersion)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		fmt.Fprintf(os.Stderr, "invalid listen port %d\n", cfg.Server.Port)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting collabboard",
		zap.String("version", appVersion),
		zap.Int("port", cfg.Server.Port),
		zap.String("persistence", cfg.Database.Type))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.Bootstrap(cfg, log); err != nil {
		log.Warn("config bootstrap failed", zap.Error(err))
	}

	// Hot-reloadable knobs: the origin allow-list is re-read from the
	// watcher on every check, so a config.yaml edit applies without a
	// restart.
	watcher := startConfigWatcher(ctx, cfg, log)
	origins := func() []string { return watcher.Current().Security.AllowedOrigins }

	store := buildSnapshotStore(cfg, log)

	hostname, _ := os.Hostname()
	nodeID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	manager := roomservice.NewManager(store,
		func(roomID string) board.Document { return crdt.New(nodeID) },
		roomservice.Options{
			IdleTimeout:      cfg.Room.IdleTimeout,
			SnapshotInterval: cfg.Room.SnapshotInterval,
			EvictInterval:    cfg.Room.EvictInterval,
		}, log)

	bcaster := buildBroadcaster(log)
	hub := ws.NewHub(ctx, manager, bcaster, log)
	manager.SetFanOut(hub.BroadcastServerDelta)
	manager.Start(ctx)

	cache := service.NewCommandCache()
	router, model := buildModelRouter(cfg.Model, log)

	var client service.LLMClient
	if router != nil {
		client = router
	}
	ai := handlers.NewAIHandler(manager, cache, client, model, log)
	admin := handlers.NewAdminHandler(manager, cache, router, cfg.Database.Type, cfg.Model.Provider, log)
	wsHandler := ws.NewHandler(hub, origins, log)

	srv := httpserver.NewServer(httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Mode: "release",
	}, ai, admin, wsHandler, origins, log)

	if err := srv.Start(ctx); err != nil {
		log.Fatal("failed to start HTTP server", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("error stopping HTTP server", zap.Error(err))
	}
	cancel()

	// Final snapshot flush before exit 0.
	manager.FlushAll(shutdownCtx)
	log.Info("shutdown complete")
}

func startConfigWatcher(ctx context.Context, cfg *config.Config, log *zap.Logger) *config.Watcher {
	for _, path := range []string{"config.yaml", "config/config.yaml"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		w, err := config.NewWatcher(path, cfg, log)
		if err != nil {
			log.Warn("config watcher unavailable", zap.String("path", path), zap.Error(err))
			break
		}
		safego.Go(log, "config-watcher", func() { w.Run(ctx) })
		return w
	}
	// No file on disk: a static watcher that always reports the boot
	// config.
	w, err := staticWatcher(cfg, log)
	if err != nil {
		log.Fatal("config watcher init failed", zap.Error(err))
	}
	return w
}

// staticWatcher falls back to watching the working directory so the
// Watcher type still serves Current() when no config file exists yet.
func staticWatcher(cfg *config.Config, log *zap.Logger) (*config.Watcher, error) {
	return config.NewWatcher(".", cfg, log)
}

func buildSnapshotStore(cfg *config.Config, log *zap.Logger) repository.SnapshotStore {
	if cfg.Database.Type == "memory" {
		log.Warn("running without a persistent snapshot store; rooms will not survive restarts")
		return persistence.NewMemorySnapshotStore()
	}
	db, err := persistence.NewDBConnection(cfg.Database)
	if err != nil {
		log.Warn("snapshot store unavailable, falling back to memory", zap.Error(err))
		return persistence.NewMemorySnapshotStore()
	}
	return persistence.NewGormSnapshotStore(db)
}

func buildBroadcaster(log *zap.Logger) broadcast.Broadcaster {
	addr := os.Getenv("COLLABBOARD_REDIS_URL")
	if addr == "" {
		return broadcast.NoopBroadcaster{}
	}
	b, err := broadcast.NewRedisBroadcaster(addr, os.Getenv("COLLABBOARD_REDIS_PASSWORD"), 0, log)
	if err != nil {
		log.Warn("redis broadcaster unavailable, running single-process", zap.Error(err))
		return broadcast.NoopBroadcaster{}
	}
	log.Info("cross-process fan-out enabled", zap.String("redis", addr))
	return b
}

// buildModelRouter assembles the LLM router from the configured
// provider credentials. A nil router means "no external model
// configured": the orchestrator serves every command from the cache
// and the local fallback parser.
func buildModelRouter(cfg config.ModelConfig, log *zap.Logger) (*llm.Router, string) {
	router := llm.NewRouter(log)
	var model string

	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Warn("model.provider=anthropic but no API key configured")
			return nil, ""
		}
		router.AddProvider(anthropic.New(llm.ProviderConfig{
			Name:   "anthropic",
			Type:   "anthropic",
			APIKey: cfg.AnthropicAPIKey,
			Models: []string{cfg.AnthropicModel},
		}, log))
		model = cfg.AnthropicModel
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Warn("model.provider=openai but no API key configured")
			return nil, ""
		}
		router.AddProvider(openai.New(llm.ProviderConfig{
			Name:   "openai",
			Type:   "openai",
			APIKey: cfg.OpenAIAPIKey,
			Models: []string{cfg.OpenAIModel},
		}, log))
		model = cfg.OpenAIModel
	default:
		return nil, ""
	}
	return router, model
}
