// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

// Package main is the entry point for the Relayhub worker.
//
// The worker owns the write side of the pipeline. It consumes change
// events from the activity topic, runs them through the diff handlers,
// writes the activity ledger and link rows in one transaction, pushes
// real-time updates through Redis, and enqueues conditional email and
// push jobs. The email and push consumers run in the same process when
// enabled.
//
// Components start in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, file, env)
//  2. Embedded NATS (optional): single-binary deployments need no broker
//  3. Stream provisioning: the JetStream stream and its subjects
//  4. Postgres: ledger and link-row storage
//  5. Redis: real-time pub/sub fan-out
//  6. Consumers: activity handler plus optional email/push consumers
//  7. Supervisor tree: the router and the metrics server under suture
//
// The worker handles graceful shutdown on SIGINT and SIGTERM. A fatal
// queue error (one no restart can fix) stops the router and exits
// non-zero so the orchestrator can act.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/relayhub/relayhub/internal/activity/handler"
	"github.com/relayhub/relayhub/internal/config"
	"github.com/relayhub/relayhub/internal/fanout"
	"github.com/relayhub/relayhub/internal/logging"
	"github.com/relayhub/relayhub/internal/notify"
	"github.com/relayhub/relayhub/internal/queue"
	"github.com/relayhub/relayhub/internal/realtime"
	"github.com/relayhub/relayhub/internal/store"
	"github.com/relayhub/relayhub/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Bool("email_enabled", cfg.Worker.EmailEnabled).
		Bool("push_enabled", cfg.Worker.PushEnabled).
		Msg("Starting Relayhub worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queueCfg := cfg.QueueClientConfig()

	// Embedded NATS for single-binary deployments.
	if cfg.Queue.Embedded {
		embedded, err := queue.NewEmbeddedServer(&queue.ServerConfig{
			Host:              "127.0.0.1",
			Port:              -1, // Random free port
			StoreDir:          cfg.Queue.StoreDir,
			JetStreamMaxMem:   cfg.Queue.MaxMemory,
			JetStreamMaxStore: cfg.Queue.MaxStore,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Embedded NATS shutdown failed")
			}
		}()
		queueCfg.URL = embedded.ClientURL()
		logging.Info().Str("url", queueCfg.URL).Msg("Embedded NATS server started")
	}

	// Provision the stream before any consumer binds to it.
	nc, err := nats.Connect(queueCfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(queueCfg.MaxReconnects),
		nats.ReconnectWait(queueCfg.ReconnectWait),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	streamCfg := cfg.StreamConfig()
	streamMgr, err := queue.NewStreamManager(nc, &streamCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream manager")
	}
	if _, err := streamMgr.EnsureStream(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision stream")
	}
	logging.Info().Str("stream", streamCfg.Name).Msg("Stream provisioned")

	st, err := store.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open Postgres")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing Postgres")
		}
	}()
	logging.Info().Msg("Postgres connected")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logging.Warn().Err(err).Msg("Redis not reachable yet (real-time delivery degraded until it is)")
	}
	notifier := realtime.NewRedisNotifier(rdb)

	wmLogger := queue.NewLoggerAdapter()

	publisher, err := queue.NewPublisher(&queueCfg, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create publisher")
	}
	defer func() { _ = publisher.Close() }()

	subscriber, err := queue.NewSubscriber(&queueCfg, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create subscriber")
	}
	defer func() { _ = subscriber.Close() }()

	svc := fanout.New(st, notifier, publisher, fanout.DefaultTriggers())
	registry, err := handler.NewRegistry(handler.NewCachingLoader(st), svc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build handler registry")
	}

	// A fatal queue error means no retry or restart can make progress;
	// stop everything and exit non-zero.
	var fatalSeen atomic.Bool
	onFatal := func(err error) {
		fatalSeen.Store(true)
		logging.Error().Err(err).Msg("Fatal pipeline error, shutting down")
		cancel()
	}

	routerCfg := queue.DefaultRouterConfig()
	routerCfg.RetryMaxRetries = queueCfg.MaxDeliver
	routerCfg.CloseTimeout = queueCfg.CloseTimeout
	router, err := queue.NewRouter(&routerCfg, publisher.WatermillPublisher(), onFatal, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create router")
	}

	router.AddConsumer("activity", queue.TopicActivity, subscriber.WatermillSubscriber(), registry.HandleMessage)
	router.AddConsumer("reminder", queue.TopicReminder, subscriber.WatermillSubscriber(), registry.HandleMessage)
	logging.Info().Str("topic", queue.TopicActivity).Msg("Activity consumer registered")

	consumerStats := map[string]func() queue.StatsSnapshot{
		"activity": registry.Stats,
	}

	if cfg.Worker.EmailEnabled {
		emailProvider := notify.NewSMTPProvider(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			User:     cfg.Notify.SMTPUser,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.SMTPFrom,
			FromName: cfg.Notify.SMTPFromName,
			UseTLS:   cfg.Notify.SMTPTLS,
		})
		emailConsumer := notify.NewEmailConsumer(st, emailProvider, notify.DefaultBreakerConfig("email"))
		router.AddConsumer("email", queue.TopicEmail, subscriber.WatermillSubscriber(), emailConsumer.HandleMessage)
		consumerStats["email"] = emailConsumer.Stats
		logging.Info().Str("topic", queue.TopicEmail).Msg("Email consumer registered")
	}

	if cfg.Worker.PushEnabled {
		pushProvider := notify.NewWebhookPushProvider(notify.WebhookPushConfig{
			URL:       cfg.Notify.PushURL,
			AuthToken: cfg.Notify.PushToken,
			Timeout:   cfg.Notify.PushTimeout,
		})
		pushConsumer := notify.NewPushConsumer(st, pushProvider, notify.DefaultBreakerConfig("push"))
		router.AddConsumer("push", queue.TopicPush, subscriber.WatermillSubscriber(), pushConsumer.HandleMessage)
		consumerStats["push"] = pushConsumer.Stats
		logging.Info().Str("topic", queue.TopicPush).Msg("Push consumer registered")
	}

	// Metrics and health endpoints.
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !router.IsRunning() {
			http.Error(w, "router not running", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		snapshots := make(map[string]queue.StatsSnapshot, len(consumerStats))
		for name, snap := range consumerStats {
			snapshots[name] = snap()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshots); err != nil {
			logging.Error().Err(err).Msg("Failed to encode consumer stats")
		}
	})
	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree("relayhub-worker", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(supervisor.NewRunnerService("queue-router", router))
	tree.AddAPIService(supervisor.NewHTTPServerService("metrics-http", metricsServer, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if fatalSeen.Load() {
		logging.Error().Msg("Exiting after fatal pipeline error")
		os.Exit(1)
	}
	logging.Info().Msg("Worker stopped gracefully")
}
