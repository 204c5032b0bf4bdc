// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mqtt publishes gateway event envelopes to an external MQTT
// broker, one topic per event type under a configurable prefix.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/absmach/smsgate/config"
	"github.com/absmach/smsgate/events"
)

const connectTimeout = 10 * time.Second

// Bridge forwards envelopes to MQTT topics.
type Bridge struct {
	client paho.Client
	prefix string
	qos    byte
	logger *slog.Logger
}

// New connects to the broker and returns a ready bridge.
func New(cfg config.MQTTConfig, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt_bridge_connection_lost", slog.String("error", err.Error()))
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	logger.Info("mqtt_bridge_connected",
		slog.String("broker", cfg.BrokerURL),
		slog.String("prefix", cfg.TopicPrefix))

	return &Bridge{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		logger: logger,
	}, nil
}

// Publish forwards one envelope. Publish failures are logged, not
// propagated; the broadcast streams remain the source of truth.
func (b *Bridge) Publish(env *events.Envelope) {
	payload, err := env.MarshalJSON()
	if err != nil {
		b.logger.Error("mqtt_bridge_marshal_failed", slog.String("error", err.Error()))
		return
	}

	topic := b.prefix + "/" + env.EventType
	token := b.client.Publish(topic, b.qos, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			b.logger.Warn("mqtt_bridge_publish_failed",
				slog.String("topic", topic),
				slog.String("error", err.Error()))
		}
	}()
}

// Run consumes envelopes from a hub subscription until the channel closes
// or the context ends.
func (b *Bridge) Run(ctx context.Context, envelopes <-chan *events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			b.Publish(env)
		}
	}
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}
