// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/unclebandit/leadpilot-backend/internal/config"
	"github.com/unclebandit/leadpilot-backend/internal/db"
	"github.com/unclebandit/leadpilot-backend/internal/gateway"
	"github.com/unclebandit/leadpilot-backend/internal/generator"
	"github.com/unclebandit/leadpilot-backend/internal/model"
	"github.com/unclebandit/leadpilot-backend/internal/queue"
	"github.com/unclebandit/leadpilot-backend/internal/repository"
	"github.com/unclebandit/leadpilot-backend/internal/service"
)

// The worker consumes inbound gateway events from RabbitMQ and answers them.
// Run a single worker per queue: the orchestrator relies on event order.
func main() {
	cfg := config.Load()
	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	settingsRepo := &repository.SettingsRepository{DB: conn, Defaults: model.GatewaySettings{
		BaseURL:  cfg.GatewayBaseURL,
		Instance: cfg.GatewayInstance,
		APIKey:   cfg.GatewayAPIKey,
	}}
	pipeline := service.NewReplyPipeline(
		&repository.LeadRepository{DB: conn},
		&repository.AgentRepository{DB: conn},
		&repository.ConversationRepository{DB: conn},
		generator.NewClient(cfg.GeneratorBaseURL, cfg.GeneratorAPIKey, cfg.GeneratorDefaultModel),
		gateway.NewClient(settingsRepo, cfg.GatewayRPS),
	)
	pipeline.HistoryLimit = cfg.HistoryLimit
	orchestrator := service.NewConversationOrchestrator(pipeline, service.OrchestratorTimings{
		SilenceWindow:        cfg.SilenceWindow,
		SafetyValve:          cfg.SafetyValve,
		SafetyValveFragments: cfg.SafetyValveFragments,
		PauseConfirm:         cfg.PauseConfirm,
	})

	q, err := queue.NewAMQPQueue(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	if err := service.NewEventDispatcher(q, orchestrator).Start(); err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	log.Println("Worker running, waiting for messages...")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := q.Close(); err != nil {
		log.Println("⚠️ Queue close:", err)
	}
	if err := orchestrator.Close(shutdownCtx); err != nil {
		log.Println("⚠️ Orchestrator shutdown:", err)
	}
	log.Println("✅ Worker stopped")
}

