// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/absmach/smsgate/ratelimit"
)

// Config holds all configuration for the SMS gateway.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Gateway   GatewayConfig    `yaml:"gateway"`
	Radio     RadioConfig      `yaml:"radio"`
	Storage   StorageConfig    `yaml:"storage"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
	Webhook   WebhookConfig    `yaml:"webhook"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	Log       LogConfig        `yaml:"log"`
}

// ServerConfig holds the caller-facing server configuration.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	HTTPEnabled     bool          `yaml:"http_enabled"`
	WSAddr          string        `yaml:"ws_addr"`
	WSPath          string        `yaml:"ws_path"`
	WSEnabled       bool          `yaml:"ws_enabled"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	MetricsAddr    string `yaml:"metrics_addr"` // OTLP endpoint
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry configuration
	OtelServiceName     string  `yaml:"otel_service_name"`
	OtelServiceVersion  string  `yaml:"otel_service_version"`
	OtelTracesEnabled   bool    `yaml:"otel_traces_enabled"`
	OtelMetricsEnabled  bool    `yaml:"otel_metrics_enabled"`
	OtelTraceSampleRate float64 `yaml:"otel_trace_sample_rate"` // 0.0 to 1.0
}

// GatewayConfig holds send-orchestration settings.
type GatewayConfig struct {
	// ID stamps event envelopes so multiple gateways can share a sink.
	ID string `yaml:"id"`

	// MinSignalLevel is the weakest level (0..4) a signal-gated send
	// accepts.
	MinSignalLevel int `yaml:"min_signal_level"`

	// AckQueueSize bounds each acknowledgement listener channel.
	AckQueueSize int `yaml:"ack_queue_size"`

	// EventBuffer bounds each notification stream subscriber.
	EventBuffer int `yaml:"event_buffer"`
}

// RadioConfig holds simulated radio settings.
type RadioConfig struct {
	Subscriptions int           `yaml:"subscriptions"`
	SignalLevel   int           `yaml:"signal_level"` // 0..4
	AckDelay      time.Duration `yaml:"ack_delay"`
}

// StorageConfig holds inbox storage backend configuration.
type StorageConfig struct {
	Type string `yaml:"type"` // memory, badger

	// BadgerDB settings
	BadgerDir string `yaml:"badger_dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// WebhookConfig holds event webhook configuration.
type WebhookConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Workers    int              `yaml:"workers"`
	QueueSize  int              `yaml:"queue_size"`
	DropPolicy string           `yaml:"drop_policy"` // "newest" or "oldest"
	Endpoints  []EndpointConfig `yaml:"endpoints"`
	Defaults   EndpointDefaults `yaml:"defaults"`
}

// EndpointConfig describes one webhook endpoint.
type EndpointConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Events  []string          `yaml:"events"` // empty means all event types
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// EndpointDefaults holds defaults applied to endpoints that omit a value.
type EndpointDefaults struct {
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds per-endpoint breaker settings.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// MQTTConfig holds the optional MQTT event bridge configuration.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:            ":8080",
			HTTPEnabled:         true,
			WSAddr:              ":8081",
			WSPath:              "/events",
			WSEnabled:           true,
			ShutdownTimeout:     10 * time.Second,
			MetricsAddr:         "localhost:4317",
			MetricsEnabled:      false,
			OtelServiceName:     "smsgate",
			OtelServiceVersion:  "0.1.0",
			OtelTracesEnabled:   false,
			OtelMetricsEnabled:  true,
			OtelTraceSampleRate: 0.1,
		},
		Gateway: GatewayConfig{
			ID:             "smsgate-0",
			MinSignalLevel: 2,
			AckQueueSize:   256,
			EventBuffer:    64,
		},
		Radio: RadioConfig{
			Subscriptions: 1,
			SignalLevel:   4,
			AckDelay:      10 * time.Millisecond,
		},
		Storage: StorageConfig{
			Type:      "memory",
			BadgerDir: "/var/lib/smsgate/inbox",
		},
		RateLimit: ratelimit.DefaultConfig(),
		Webhook: WebhookConfig{
			Enabled:    false,
			Workers:    4,
			QueueSize:  1024,
			DropPolicy: "oldest",
			Defaults: EndpointDefaults{
				Timeout: 10 * time.Second,
				CircuitBreaker: CircuitBreakerConfig{
					FailureThreshold: 5,
					ResetTimeout:     30 * time.Second,
				},
			},
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			BrokerURL:   "tcp://localhost:1883",
			ClientID:    "smsgate",
			TopicPrefix: "smsgate/events",
			QoS:         1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given file, layered over defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Gateway.MinSignalLevel < 0 || c.Gateway.MinSignalLevel > 4 {
		return fmt.Errorf("gateway.min_signal_level must be 0..4, got %d", c.Gateway.MinSignalLevel)
	}
	if c.Radio.SignalLevel < 0 || c.Radio.SignalLevel > 4 {
		return fmt.Errorf("radio.signal_level must be 0..4, got %d", c.Radio.SignalLevel)
	}
	if c.Radio.Subscriptions < 1 {
		return fmt.Errorf("radio.subscriptions must be at least 1, got %d", c.Radio.Subscriptions)
	}
	switch c.Storage.Type {
	case "memory", "badger":
	default:
		return fmt.Errorf("storage.type must be memory or badger, got %q", c.Storage.Type)
	}
	if c.Storage.Type == "badger" && c.Storage.BadgerDir == "" {
		return fmt.Errorf("storage.badger_dir is required for badger storage")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Webhook.Enabled && len(c.Webhook.Endpoints) == 0 {
		return fmt.Errorf("webhook.endpoints must not be empty when webhooks are enabled")
	}
	for _, ep := range c.Webhook.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("webhook endpoint %q has no url", ep.Name)
		}
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt.broker_url is required when the bridge is enabled")
	}
	return nil
}
