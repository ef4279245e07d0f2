package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/botops-api/internal/config"
	campaignHandler "github.com/jwalitptl/botops-api/internal/handler/campaign"
	"github.com/jwalitptl/botops-api/internal/handler/health"
	prometheusHandler "github.com/jwalitptl/botops-api/internal/handler/prometheus"
	messageHandler "github.com/jwalitptl/botops-api/internal/handler/scheduledmessage"
	"github.com/jwalitptl/botops-api/internal/middleware"
	"github.com/jwalitptl/botops-api/internal/repository/postgres"
	"github.com/jwalitptl/botops-api/internal/router"
	campaignService "github.com/jwalitptl/botops-api/internal/service/campaign"
	messageService "github.com/jwalitptl/botops-api/internal/service/scheduledmessage"
	"github.com/jwalitptl/botops-api/pkg/auth"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	baseRepo := postgres.NewBaseRepository(db)
	messageRepo := postgres.NewScheduledMessageRepository(baseRepo)
	campaignRepo := postgres.NewCampaignRepository(baseRepo)

	messageSvc := messageService.NewService(messageRepo, cfg.Dispatch.DefaultMaxRetries)
	campaignSvc := campaignService.NewService(campaignRepo)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	r := router.NewRouter(
		authMiddleware,
		health.NewHandler(db),
		prometheusHandler.New(),
		messageHandler.NewHandler(messageSvc),
		campaignHandler.NewHandler(campaignSvc),
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down API server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
