// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/absmach/smsgate/config"
	"github.com/absmach/smsgate/events"
)

// Notifier fans event envelopes out to HTTP endpoints through a worker
// pool, with a circuit breaker per endpoint.
type Notifier struct {
	cfg       config.WebhookConfig
	endpoints []endpointConfig
	jobs      chan job
	breakers  map[string]*gobreaker.CircuitBreaker
	sender    Sender
	logger    *slog.Logger
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

type endpointConfig struct {
	name         string
	url          string
	eventFilters map[string]bool // empty means all event types
	headers      map[string]string
	timeout      time.Duration
}

type job struct {
	envelope *events.Envelope
	endpoint endpointConfig
}

// NewNotifier creates a notifier and starts its worker pool.
func NewNotifier(cfg config.WebhookConfig, sender Sender, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	endpoints := make([]endpointConfig, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		eventFilters := make(map[string]bool)
		for _, eventType := range ep.Events {
			eventFilters[eventType] = true
		}

		timeout := cfg.Defaults.Timeout
		if ep.Timeout > 0 {
			timeout = ep.Timeout
		}

		endpoints = append(endpoints, endpointConfig{
			name:         ep.Name,
			url:          ep.URL,
			eventFilters: eventFilters,
			headers:      ep.Headers,
			timeout:      timeout,
		})
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, ep := range endpoints {
		breakers[ep.name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        ep.name,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     cfg.Defaults.CircuitBreaker.ResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.Defaults.CircuitBreaker.FailureThreshold)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("webhook circuit breaker state changed",
					slog.String("endpoint", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		})
	}

	n := &Notifier{
		cfg:       cfg,
		endpoints: endpoints,
		jobs:      make(chan job, cfg.QueueSize),
		breakers:  breakers,
		sender:    sender,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}

	logger.Info("webhook notifier started",
		slog.Int("workers", cfg.Workers),
		slog.Int("queue_size", cfg.QueueSize),
		slog.Int("endpoints", len(endpoints)))

	return n, nil
}

// Notify queues an envelope for every matching endpoint. Never blocks:
// when the queue is full the configured drop policy applies.
func (n *Notifier) Notify(env *events.Envelope) {
	for _, endpoint := range n.endpoints {
		if len(endpoint.eventFilters) > 0 && !endpoint.eventFilters[env.EventType] {
			continue
		}

		j := job{envelope: env, endpoint: endpoint}
		select {
		case n.jobs <- j:
		default:
			if n.cfg.DropPolicy == "oldest" {
				select {
				case <-n.jobs: // drop oldest
				default:
				}
				select {
				case n.jobs <- j:
				default:
					n.dropped(env, endpoint)
				}
			} else {
				n.dropped(env, endpoint)
			}
		}
	}
}

func (n *Notifier) dropped(env *events.Envelope, endpoint endpointConfig) {
	n.logger.Error("webhook queue full, event dropped",
		slog.String("event_type", env.EventType),
		slog.String("endpoint", endpoint.name))
}

func (n *Notifier) worker(id int) {
	defer n.wg.Done()

	for {
		select {
		case <-n.ctx.Done():
			return
		case j, ok := <-n.jobs:
			if !ok {
				return
			}
			n.deliver(j)
		}
	}
}

func (n *Notifier) deliver(j job) {
	payload, err := j.envelope.MarshalJSON()
	if err != nil {
		n.logger.Error("webhook payload marshal failed",
			slog.String("event_type", j.envelope.EventType),
			slog.String("error", err.Error()))
		return
	}

	breaker := n.breakers[j.endpoint.name]
	_, err = breaker.Execute(func() (interface{}, error) {
		return nil, n.sender.Send(n.ctx, j.endpoint.url, j.endpoint.headers, payload, j.endpoint.timeout)
	})
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			slog.String("endpoint", j.endpoint.name),
			slog.String("event_type", j.envelope.EventType),
			slog.String("error", err.Error()))
		return
	}

	n.logger.Debug("webhook delivered",
		slog.String("endpoint", j.endpoint.name),
		slog.String("event_type", j.envelope.EventType))
}

// Run consumes envelopes from a hub subscription until the channel closes
// or the context ends.
func (n *Notifier) Run(ctx context.Context, envelopes <-chan *events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			n.Notify(env)
		}
	}
}

// Close stops the workers. Queued jobs that have not started are dropped.
func (n *Notifier) Close() {
	n.cancel()
	n.wg.Wait()
}
