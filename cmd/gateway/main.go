package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/comms-gateway/internal/config"
	"github.com/example/comms-gateway/internal/gateway"
	"github.com/example/comms-gateway/internal/kafka/producer"
	kafkapublisher "github.com/example/comms-gateway/internal/kafka/publisher"
	"github.com/example/comms-gateway/internal/logger"
	"github.com/example/comms-gateway/internal/metrics"
	"github.com/example/comms-gateway/internal/providers"
	"github.com/example/comms-gateway/internal/providers/factory"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		stage := "config load"
		if errors.Is(err, providers.ErrMissingCredentials) {
			stage = "credentials"
		}
		fail(stage, err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := *baseLogger

	var deps gateway.Deps
	var factoryOpts []factory.Option

	if cfg.Metrics.Enabled {
		m, err := metrics.New()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialise metrics")
		}
		deps.Observer = m
		deps.MetricsHandler = m.Handler(logger.Component(log, "metrics"))
		factoryOpts = append(factoryOpts, factory.WithObserver(m), factory.WithTransferObserver(m))
	}

	clients, err := factory.Build(cfg, logger.Component(log, "providers"), factoryOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise provider clients")
	}
	deps.Conversation = clients.Conversation
	deps.SMS = clients.SMS
	deps.Voice = clients.Voice
	deps.Email = clients.Email

	if cfg.Kafka.Enabled() {
		prod, err := producer.New(cfg.Kafka.Brokers, logger.Component(log, "kafka"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
		deps.Publisher = kafkapublisher.NewWebhookPublisher(prod, cfg.Kafka.WebhookTopic, logger.Component(log, "webhook-publisher"))
		deps.Broker = prod
		log.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.WebhookTopic).
			Msg("webhook publishing enabled")
	}

	deps.VoiceMessage = cfg.Webhooks.VoiceMessage
	deps.Logger = logger.Component(log, "http")

	srv, err := gateway.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise gateway")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + strconv.Itoa(cfg.App.Port))
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("gateway terminated with error")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("gateway stopped")
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("gateway init failed")
}
