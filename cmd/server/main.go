// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/leadpilot-backend/internal/config"
	"github.com/unclebandit/leadpilot-backend/internal/controller"
	"github.com/unclebandit/leadpilot-backend/internal/db"
	"github.com/unclebandit/leadpilot-backend/internal/dedup"
	"github.com/unclebandit/leadpilot-backend/internal/gateway"
	"github.com/unclebandit/leadpilot-backend/internal/generator"
	"github.com/unclebandit/leadpilot-backend/internal/handler"
	"github.com/unclebandit/leadpilot-backend/internal/model"
	"github.com/unclebandit/leadpilot-backend/internal/queue"
	"github.com/unclebandit/leadpilot-backend/internal/repository"
	"github.com/unclebandit/leadpilot-backend/internal/service"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatal(err)
	}

	leadRepo := &repository.LeadRepository{DB: conn}
	runRepo := &repository.CampaignRunRepository{DB: conn}
	logRepo := &repository.CampaignLogRepository{DB: conn}
	settingsRepo := &repository.SettingsRepository{DB: conn, Defaults: model.GatewaySettings{
		BaseURL:  cfg.GatewayBaseURL,
		Instance: cfg.GatewayInstance,
		APIKey:   cfg.GatewayAPIKey,
	}}
	gw := gateway.NewClient(settingsRepo, cfg.GatewayRPS)

	var attempts dedup.Tracker
	if cfg.RedisAddr != "" {
		rt := dedup.NewRedisTracker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rt.Ping(ctx); err != nil {
			log.Printf("⚠️ Redis unavailable (%v), keeping run dedup in memory", err)
		} else {
			log.Println("✅ Run dedup backed by redis at", cfg.RedisAddr)
			attempts = rt
			defer rt.Close()
		}
	}

	engine := service.NewCampaignEngine(leadRepo, runRepo, logRepo, gw, attempts)
	engine.FetchRetries = cfg.FetchRetries
	engine.FetchBackoff = cfg.FetchBackoff
	if n, err := engine.RecoverRuns(ctx); err != nil {
		log.Println("⚠️ failed to recover interrupted runs:", err)
	} else if n > 0 {
		log.Printf("🚀 Recovered %d interrupted campaign run(s)", n)
	}

	campaignController := &controller.CampaignController{
		CampaignService: service.NewCampaignService(engine),
	}
	customerController := &controller.CustomerController{
		Customers: &repository.CustomerRepository{DB: conn},
	}

	// Inbound events go to RabbitMQ for cmd/worker when configured,
	// otherwise they are handled in this process.
	var (
		q            queue.Queue
		orchestrator *service.ConversationOrchestrator
	)
	if cfg.AMQPURL != "" {
		q, err = queue.NewAMQPQueue(cfg.AMQPURL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ: ", err)
		}
		log.Println("✅ Publishing inbound events to RabbitMQ")
	} else {
		q = queue.NewInMemoryQueue()
		orchestrator = newOrchestrator(cfg, conn, leadRepo, gw)
		if err := service.NewEventDispatcher(q, orchestrator).Start(); err != nil {
			log.Fatal(err)
		}
		log.Println("✅ Handling inbound events in-process")
	}
	webhookHandler := handler.NewWebhookHandler(q)

	r := chi.NewRouter()
	campaignController.Routes(r)
	customerController.Routes(r)
	r.Post("/webhooks/gateway", webhookHandler.ReceiveHandler)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Println("🚀 Server running on", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️ HTTP shutdown:", err)
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️ Campaign engine shutdown:", err)
	}
	if orchestrator != nil {
		if err := orchestrator.Close(shutdownCtx); err != nil {
			log.Println("⚠️ Orchestrator shutdown:", err)
		}
	}
	if err := q.Close(); err != nil {
		log.Println("⚠️ Queue close:", err)
	}
	log.Println("✅ Server stopped")
}

func newOrchestrator(cfg config.Config, conn *sql.DB, leads repository.LeadRepositoryInterface, gw gateway.Messenger) *service.ConversationOrchestrator {
	pipeline := service.NewReplyPipeline(
		leads,
		&repository.AgentRepository{DB: conn},
		&repository.ConversationRepository{DB: conn},
		generator.NewClient(cfg.GeneratorBaseURL, cfg.GeneratorAPIKey, cfg.GeneratorDefaultModel),
		gw,
	)
	pipeline.HistoryLimit = cfg.HistoryLimit
	return service.NewConversationOrchestrator(pipeline, service.OrchestratorTimings{
		SilenceWindow:        cfg.SilenceWindow,
		SafetyValve:          cfg.SafetyValve,
		SafetyValveFragments: cfg.SafetyValveFragments,
		PauseConfirm:         cfg.PauseConfirm,
	})
}
