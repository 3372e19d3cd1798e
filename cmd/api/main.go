package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/village-mystery/internal/config"
	"github.com/jwebster45206/village-mystery/internal/handlers"
	"github.com/jwebster45206/village-mystery/internal/logger"
	"github.com/jwebster45206/village-mystery/internal/metrics"
	"github.com/jwebster45206/village-mystery/internal/services"
	"github.com/jwebster45206/village-mystery/internal/services/events"
	"github.com/jwebster45206/village-mystery/internal/storage"
	"github.com/jwebster45206/village-mystery/pkg/agent"
	"github.com/jwebster45206/village-mystery/pkg/dialogue"
	"github.com/jwebster45206/village-mystery/pkg/memory"
	"github.com/jwebster45206/village-mystery/pkg/oracle"
	"github.com/jwebster45206/village-mystery/pkg/textfilter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Village Mystery API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"memory_backend", cfg.MemoryBackend)

	m := metrics.New()

	llmService, err := services.NewLLMService(cfg, log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err)
		os.Exit(1)
	}

	// Initialize the model on startup
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	embedder, err := services.NewEmbedder(cfg, log)
	if err != nil {
		log.Error("Failed to create embedder", "error", err)
		os.Exit(1)
	}

	redisClient, err := storage.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}
	store := storage.NewRedisStorage(redisClient, cfg.SessionTTL, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx, 30, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	var memories memory.Namespacer
	switch cfg.MemoryBackend {
	case "memory":
		memories = memory.NewMemNamespaces()
	default:
		memories = storage.NewRedisMemories(redisClient, cfg.SessionTTL, logger.Component(log, "memory"))
	}

	cast := dialogue.DefaultCast()
	cast.HistoryLimit = cfg.NPCHistoryLimit

	broadcaster := events.NewBroadcaster(redisClient, logger.Component(log, "events"))
	game, err := agent.New(agent.Options{
		Oracle: oracle.New(m.InstrumentLLM(llmService),
			oracle.WithTimeout(cfg.OracleTimeout),
			oracle.WithMaxAttempts(cfg.OracleMaxAttempts),
			oracle.WithRetryDelay(cfg.OracleRetryDelay),
			oracle.WithObserver(m.ObserveOracle),
			oracle.WithLogger(logger.Component(log, "oracle"))),
		Storage:   store,
		Memories:  memories,
		Embedder:  embedder,
		Locker:    storage.NewRedisLocker(redisClient, storage.DefaultLockTTL, logger.Component(log, "lock")),
		Publisher: broadcaster,
		Cast:      cast,
		Counter:   services.NewTokenCounter(cfg.ModelName, log),
		Sanitizer: textfilter.New(cfg.FilterProfanity),
		Hooks: agent.Hooks{
			OnTurn: m.ObserveTurn,
			OnPlan: m.ObservePlan,
		},
		Logger:              logger.Component(log, "agent"),
		NarratorTokenBudget: cfg.NarratorTokenBudget,
		DuplicateThreshold:  cfg.DuplicateThreshold,
		StoreTimeout:        cfg.StoreTimeout,
	})
	if err != nil {
		log.Error("Failed to create agent", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			Game:       game,
			Subscriber: broadcaster,
			Metrics:    m,
			HealthChecks: map[string]handlers.Checker{
				"events": func(ctx context.Context) error {
					return redisClient.PubSubNumSub(ctx, events.Channel("health")).Err()
				},
			},
			Logger: logger.Component(log, "http"),
		}),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /events streams for as long as the client stays.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
