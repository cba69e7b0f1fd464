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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"abfeedback/api/analysis"
	"abfeedback/api/config"
	"abfeedback/api/database"
	"abfeedback/api/dispatch"
	"abfeedback/api/handlers"
	"abfeedback/api/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	conns := database.Open(ctx, cfg)
	defer conns.Close()

	// Remote collaborators are optional; the memory store always takes
	// writes first.
	var remotes []store.Sink
	var primary store.Source

	if conns.Postgres != nil {
		docs := store.NewDocStore(conns.Postgres.DB)
		if err := docs.EnsureSchema(ctx); err != nil {
			log.Printf("WARN: document store schema: %v", err)
		}
		remotes = append(remotes, docs)
		primary = docs
	}

	events := store.NewAnalyticsStore(conns.ClickHouse)
	if events.Configured() {
		if err := events.EnsureSchema(ctx); err != nil {
			log.Printf("WARN: event store schema: %v", err)
		}
		remotes = append(remotes, events)
	}

	if cfg.Sinks().MockAPI {
		remotes = append(remotes, store.NewMockAPISink(cfg.MockAPIURL, &http.Client{Timeout: 10 * time.Second}))
	}
	cancel()

	mem := store.NewMemoryStore()
	dispatcher := dispatch.New(mem, remotes...)
	aggregator := analysis.NewAggregator(primary, mem)
	log.Printf("Storage sinks: %v", dispatcher.Sinks())

	r := handlers.NewRouter(cfg, handlers.Routes{
		Behavior: handlers.NewBehaviorHandlers(dispatcher, mem, nil, aggregator),
		Feedback: handlers.NewFeedbackHandlers(dispatcher, mem, aggregator),
		Stats:    handlers.NewStatsHandlers(events),
		Variant:  handlers.NewVariantHandlers(),
		Auth:     handlers.NewAuthHandlers(cfg.DashboardPasswordHash, cfg.JWTSecret, cfg.DashboardTokenTTL),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Go API server starting on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Go API server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
