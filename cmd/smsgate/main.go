// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	mqttbridge "github.com/absmach/smsgate/bridge/mqtt"
	"github.com/absmach/smsgate/config"
	"github.com/absmach/smsgate/events"
	"github.com/absmach/smsgate/gateway"
	"github.com/absmach/smsgate/inbox"
	"github.com/absmach/smsgate/radio"
	"github.com/absmach/smsgate/radio/sim"
	"github.com/absmach/smsgate/ratelimit"
	httpserver "github.com/absmach/smsgate/server/http"
	"github.com/absmach/smsgate/server/otel"
	wsserver "github.com/absmach/smsgate/server/websocket"
	"github.com/absmach/smsgate/sms"
	"github.com/absmach/smsgate/track"
	"github.com/absmach/smsgate/webhook"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Starting SMS gateway", "version", "0.1.0")
	slog.Info("Configuration loaded",
		"gateway_id", cfg.Gateway.ID,
		"http_enabled", cfg.Server.HTTPEnabled,
		"ws_enabled", cfg.Server.WSEnabled,
		"storage_type", cfg.Storage.Type,
		"log_level", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OpenTelemetry
	var metrics *otel.Metrics
	if cfg.Server.MetricsEnabled {
		shutdown, err := otel.InitProvider(cfg.Server, cfg.Gateway.ID)
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("OpenTelemetry shutdown failed", "error", err)
			}
		}()

		metrics, err = otel.NewMetrics()
		if err != nil {
			slog.Error("Failed to create metric instruments", "error", err)
			os.Exit(1)
		}
		slog.Info("OpenTelemetry enabled", "endpoint", cfg.Server.MetricsAddr)
	}

	// Inbox storage backend
	var store inbox.Store
	switch cfg.Storage.Type {
	case "memory":
		store = inbox.NewMemoryStore()
		slog.Info("Using in-memory inbox")
	case "badger":
		badgerStore, err := inbox.NewBadgerStore(inbox.BadgerConfig{Dir: cfg.Storage.BadgerDir})
		if err != nil {
			slog.Error("Failed to initialize BadgerDB inbox", "error", err)
			os.Exit(1)
		}
		store = badgerStore
		slog.Info("Using BadgerDB persistent inbox", "dir", cfg.Storage.BadgerDir)
	}
	defer store.Close()

	// Simulated radio stack
	rad := sim.New(sim.Config{
		Subscriptions: cfg.Radio.Subscriptions,
		SignalLevel:   radio.SignalLevel(cfg.Radio.SignalLevel),
		AckDelay:      cfg.Radio.AckDelay,
		SentCode:      sms.CodeOK,
	})

	// Delivery-tracking core
	hub := events.NewHub(cfg.Gateway.ID, cfg.Gateway.EventBuffer)
	defer hub.Close()
	correlation := track.NewStore()
	router := track.NewRouter(correlation, hub, cfg.Gateway.AckQueueSize, logger, metrics)
	defer router.Deactivate()

	limiter := ratelimit.NewManager(cfg.RateLimit)
	defer limiter.Stop()

	gw := gateway.New(cfg.Gateway, gateway.Deps{
		Authorizer: rad,
		Provider:   rad,
		Meter:      rad,
		Store:      correlation,
		Router:     router,
		Hub:        hub,
		Limiter:    limiter,
		Metrics:    metrics,
	}, logger)

	var wg sync.WaitGroup

	// Inbound messages: persist and broadcast.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case in, ok := <-rad.Inbound():
				if !ok {
					return
				}
				if err := store.Save(inbox.FromInbound(in)); err != nil {
					slog.Error("Failed to store inbound message", "error", err)
				}
				metrics.RecordInbound(ctx)
				hub.Publish(events.MessageReceived{
					From:         in.From,
					Body:         in.Body,
					Subscription: in.Subscription,
					ReceivedAt:   in.ReceivedAt,
				})
			}
		}
	}()

	// Webhook notifier
	if cfg.Webhook.Enabled {
		notifier, err := webhook.NewNotifier(cfg.Webhook, webhook.NewHTTPSender(), logger)
		if err != nil {
			slog.Error("Failed to start webhook notifier", "error", err)
			os.Exit(1)
		}
		defer notifier.Close()

		envelopes, cancel := hub.Subscribe()
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Run(ctx, envelopes)
		}()
	}

	// MQTT event bridge
	if cfg.MQTT.Enabled {
		bridge, err := mqttbridge.New(cfg.MQTT, logger)
		if err != nil {
			slog.Error("Failed to start MQTT bridge", "error", err)
			os.Exit(1)
		}
		defer bridge.Close()

		envelopes, cancel := hub.Subscribe()
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			bridge.Run(ctx, envelopes)
		}()
	}

	// Caller-facing servers
	if cfg.Server.HTTPEnabled {
		api := httpserver.New(httpserver.Config{
			Address:         cfg.Server.HTTPAddr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, gw, store, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Listen(ctx); err != nil {
				slog.Error("HTTP server failed", "error", err)
				stop()
			}
		}()
	}

	if cfg.Server.WSEnabled {
		ws := wsserver.New(wsserver.Config{
			Address:         cfg.Server.WSAddr,
			Path:            cfg.Server.WSPath,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, hub, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Listen(ctx); err != nil {
				slog.Error("WebSocket server failed", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	wg.Wait()
	slog.Info("SMS gateway stopped")
}
