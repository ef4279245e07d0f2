package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/botops-api/internal/config"
	"github.com/jwalitptl/botops-api/internal/dispatch"
	"github.com/jwalitptl/botops-api/internal/provider/gateway"
	"github.com/jwalitptl/botops-api/internal/repository/postgres"
	"github.com/jwalitptl/botops-api/pkg/logger"
	"github.com/jwalitptl/botops-api/pkg/messaging/redis"
	"github.com/jwalitptl/botops-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(nil).WithFields(map[string]interface{}{"component": "dispatch-worker"})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		lg.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	baseRepo := postgres.NewBaseRepository(db)
	messageRepo := postgres.NewScheduledMessageRepository(baseRepo)
	campaignRepo := postgres.NewCampaignRepository(baseRepo)

	sender := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: cfg.Gateway.Timeout,
	})

	m := metrics.NewMetrics("dispatch")

	messageDispatcher := dispatch.NewMessageDispatcher(
		messageRepo,
		sender,
		broker,
		dispatch.MessageDispatcherConfig{
			BatchSize:   cfg.Dispatch.MessageBatchSize,
			SendTimeout: cfg.Dispatch.SendTimeout,
		},
		lg,
		m,
	)
	campaignDispatcher := dispatch.NewCampaignDispatcher(
		campaignRepo,
		sender,
		broker,
		dispatch.CampaignDispatcherConfig{
			BatchSize:   cfg.Dispatch.CampaignBatchSize,
			SendTimeout: cfg.Dispatch.SendTimeout,
		},
		lg,
		m,
	)
	worker := dispatch.NewWorker(messageDispatcher, campaignDispatcher, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupHealthCheck(lg)

	// One dispatch cycle per cron tick; overlapping ticks are safe because
	// claimed records are invisible to the due queries.
	c := cron.New()
	if _, err := c.AddFunc(cfg.Dispatch.Schedule, func() {
		worker.RunDispatchCycle(ctx)
	}); err != nil {
		lg.Fatal(err, "invalid dispatch schedule", "schedule", cfg.Dispatch.Schedule)
	}
	c.Start()
	lg.Info("dispatch worker started", "schedule", cfg.Dispatch.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	lg.Info("shutting down dispatch worker")
	cancel()
	<-c.Stop().Done()
}

func setupHealthCheck(lg *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			lg.Error(err, "health check server failed")
		}
	}()
}
