// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package gateway is the public entry point of the SMS core. It validates
// requests, obtains a transmission handle, optionally gates on signal
// strength, splits long bodies, registers outstanding state in the
// correlation store and invokes the opaque transmit primitive. Waiting for
// acknowledgements is expressed as asynchronous completion; nothing in this
// package blocks a thread on the radio.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/smsgate/config"
	"github.com/absmach/smsgate/events"
	"github.com/absmach/smsgate/radio"
	"github.com/absmach/smsgate/ratelimit"
	"github.com/absmach/smsgate/server/otel"
	"github.com/absmach/smsgate/sms"
	"github.com/absmach/smsgate/track"
)

// Deps are the collaborators injected into the gateway. Store, Router and
// Hub are required; Limiter and Metrics may be nil.
type Deps struct {
	Authorizer radio.Authorizer
	Provider   radio.Provider
	Meter      radio.SignalMeter
	Store      *track.Store
	Router     *track.Router
	Hub        *events.Hub
	Limiter    *ratelimit.Manager
	Metrics    *otel.Metrics
}

// Gateway orchestrates outbound sends and signal queries.
type Gateway struct {
	cfg    config.GatewayConfig
	deps   Deps
	logger *slog.Logger
}

// New creates a gateway.
func New(cfg config.GatewayConfig, deps Deps, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{cfg: cfg, deps: deps, logger: logger}
}

// Send issues one SMS and, when tracking is requested, suspends the caller
// until the logical operation resolves. Without tracking it resolves
// immediately with sent_no_confirmation and registers nothing, so no
// record can leak.
func (g *Gateway) Send(ctx context.Context, req sms.SendRequest) (sms.Outcome, error) {
	if err := g.admit(req); err != nil {
		return sms.Outcome{}, err
	}
	return g.dispatch(ctx, req, nil)
}

// SendLong splits the body with the part splitter and sends the fragments
// as one logical operation: a single message id is registered for the
// whole sequence and every part is tagged with it plus its index and the
// total count. A body that fits one part degrades to the Send path.
func (g *Gateway) SendLong(ctx context.Context, req sms.SendRequest) (sms.Outcome, error) {
	if err := g.admit(req); err != nil {
		return sms.Outcome{}, err
	}
	parts := sms.Split(req.Body)
	if len(parts) == 1 {
		return g.dispatch(ctx, req, nil)
	}
	return g.dispatch(ctx, req, parts)
}

// SendMultiple issues one independent send per recipient, with a sent
// acknowledgement channel attached but without waiting for any
// confirmation. Invalid recipients are filtered out before dispatch and a
// failed recipient never interrupts its siblings; the batch itself only
// fails when no recipient was valid.
func (g *Gateway) SendMultiple(ctx context.Context, recipients []string, body string, subscription int) (sms.BulkOutcome, error) {
	if body == "" {
		return sms.BulkOutcome{}, sms.ErrEmptyBody
	}
	if !g.deps.Authorizer.CanSend() {
		return sms.BulkOutcome{}, sms.ErrPermissionDenied
	}

	var valid []string
	for _, r := range recipients {
		if r != "" {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return sms.BulkOutcome{}, sms.ErrNoRecipients
	}

	tr := g.deps.Provider.Transmitter(subscription)
	out := sms.BulkOutcome{Results: make([]sms.RecipientResult, 0, len(valid))}

	g.deps.Router.Activate()
	for _, recipient := range valid {
		out.Results = append(out.Results, g.sendOne(ctx, tr, recipient, body))
	}
	return out, nil
}

// sendOne dispatches a single bulk recipient. The send is registered so
// its acknowledgements resolve and feed the broadcast streams, but the
// completion channel is deliberately left unawaited; its one-slot buffer
// guarantees resolution never blocks.
func (g *Gateway) sendOne(ctx context.Context, tr radio.Transmitter, recipient, body string) sms.RecipientResult {
	if g.deps.Limiter != nil && !g.deps.Limiter.AllowSend(recipient) {
		g.deps.Metrics.RecordRejection(ctx, "rate_limited")
		return sms.RecipientResult{
			Recipient: recipient,
			Status:    sms.RecipientFailed,
			Error:     sms.ErrRateLimited.Error(),
		}
	}

	id := sms.NewMessageID()
	g.deps.Store.Register(id, false)
	if err := tr.Transmit(ctx, recipient, body, id, g.deps.Router.SentAcks(), nil); err != nil {
		g.deps.Store.Discard(id)
		g.deps.Metrics.RecordTransmitFailure(ctx)
		g.deps.Hub.Publish(events.SendError{
			MessageID:   id,
			Destination: recipient,
			Reason:      err.Error(),
		})
		return sms.RecipientResult{
			Recipient: recipient,
			Status:    sms.RecipientFailed,
			Error:     err.Error(),
		}
	}

	g.deps.Metrics.RecordSend(ctx, 1)
	return sms.RecipientResult{
		Recipient: recipient,
		MessageID: id,
		Status:    sms.RecipientInitiated,
	}
}

// CheckSignal reports the signal level of a subscription.
func (g *Gateway) CheckSignal(subscription int) (radio.SignalLevel, error) {
	return g.deps.Meter.Measure(subscription)
}

// admit runs the fail-fast preconditions. Nothing is registered when any
// of them rejects.
func (g *Gateway) admit(req sms.SendRequest) error {
	if req.Destination == "" {
		return sms.ErrEmptyDestination
	}
	if req.Body == "" {
		return sms.ErrEmptyBody
	}
	if !g.deps.Authorizer.CanSend() {
		g.deps.Metrics.RecordRejection(context.Background(), "permission_denied")
		return sms.ErrPermissionDenied
	}
	if req.CheckSignal {
		level, err := g.deps.Meter.Measure(req.Subscription)
		if err != nil || int(level) < g.cfg.MinSignalLevel {
			g.deps.Metrics.RecordRejection(context.Background(), "signal_too_weak")
			return sms.ErrSignalTooWeak
		}
	}
	if g.deps.Limiter != nil && !g.deps.Limiter.AllowSend(req.Destination) {
		g.deps.Metrics.RecordRejection(context.Background(), "rate_limited")
		return sms.ErrRateLimited
	}
	return nil
}

// dispatch hands a validated request to the radio. parts is nil for a
// single-part send.
func (g *Gateway) dispatch(ctx context.Context, req sms.SendRequest, parts []string) (sms.Outcome, error) {
	tr := g.deps.Provider.Transmitter(req.Subscription)
	partCount := 1
	if parts != nil {
		partCount = len(parts)
	}

	tracked := req.StatusReport || req.DeliveryReport
	if !tracked {
		var err error
		if parts == nil {
			err = tr.Transmit(ctx, req.Destination, req.Body, "", nil, nil)
		} else {
			err = tr.TransmitMultipart(ctx, req.Destination, parts, "", nil, nil)
		}
		if err != nil {
			g.deps.Metrics.RecordTransmitFailure(ctx)
			g.deps.Hub.Publish(events.SendError{Destination: req.Destination, Reason: err.Error()})
			return sms.Outcome{}, fmt.Errorf("transmit: %w", err)
		}
		g.deps.Metrics.RecordSend(ctx, partCount)
		return sms.Outcome{Status: sms.StatusSentNoConfirmation, Parts: partCount}, nil
	}

	id := sms.NewMessageID()
	g.deps.Router.Activate()
	done := g.deps.Store.Register(id, req.DeliveryReport)

	var deliveryAcks chan<- sms.Acknowledgement
	if req.DeliveryReport {
		deliveryAcks = g.deps.Router.DeliveryAcks()
	}

	// Non-terminal progress notification, before the asynchronous gap.
	g.deps.Hub.Publish(events.SendProgress{
		MessageID:   id,
		Destination: req.Destination,
		Parts:       partCount,
	})

	var err error
	if parts == nil {
		err = tr.Transmit(ctx, req.Destination, req.Body, id, g.deps.Router.SentAcks(), deliveryAcks)
	} else {
		err = tr.TransmitMultipart(ctx, req.Destination, parts, id, g.deps.Router.SentAcks(), deliveryAcks)
	}
	if err != nil {
		// Synchronous rejection: no acknowledgement will ever arrive,
		// so the just-created record must not survive.
		g.deps.Store.Discard(id)
		g.deps.Metrics.RecordTransmitFailure(ctx)
		g.deps.Hub.Publish(events.SendError{
			MessageID:   id,
			Destination: req.Destination,
			Reason:      err.Error(),
		})
		return sms.Outcome{}, fmt.Errorf("transmit: %w", err)
	}

	g.deps.Metrics.RecordSend(ctx, partCount)
	g.logger.Debug("send_dispatched",
		slog.String("message_id", string(id)),
		slog.String("destination", req.Destination),
		slog.Int("parts", partCount),
		slog.Bool("delivery_report", req.DeliveryReport))

	return g.await(ctx, id, done, partCount)
}

// await suspends until the correlation store resolves the send or the
// caller's context ends. On context cancellation the outstanding record is
// left registered: a late real acknowledgement still feeds the broadcast
// streams, it just has no completion left to resolve.
func (g *Gateway) await(ctx context.Context, id sms.MessageID, done <-chan track.Result, partCount int) (sms.Outcome, error) {
	start := time.Now()
	select {
	case res := <-done:
		status := sms.StatusCompleted
		if !res.OK() {
			status = sms.StatusFailed
		}
		g.deps.Metrics.RecordSendDuration(ctx, time.Since(start).Seconds(), status)
		return sms.Outcome{
			MessageID: id,
			Status:    status,
			Sent:      res.Sent,
			Delivered: res.Delivered,
			Parts:     partCount,
		}, nil
	case <-ctx.Done():
		g.logger.Warn("send_abandoned",
			slog.String("message_id", string(id)),
			slog.String("error", ctx.Err().Error()))
		return sms.Outcome{}, ctx.Err()
	}
}
