// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OpenTelemetry metric instruments for the SMS gateway.
type Metrics struct {
	meter metric.Meter

	// Counters
	sendsTotal       metric.Int64Counter
	sendsRejected    metric.Int64Counter
	transmitFailures metric.Int64Counter
	acksReceived     metric.Int64Counter
	deliveriesTotal  metric.Int64Counter
	inboundTotal     metric.Int64Counter

	// Histograms
	sendDuration metric.Float64Histogram
	messageParts metric.Int64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		meter: otel.Meter("smsgate"),
	}

	var err error

	m.sendsTotal, err = m.meter.Int64Counter(
		"sms.sends.total",
		metric.WithDescription("Total send operations accepted"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sendsTotal counter: %w", err)
	}

	m.sendsRejected, err = m.meter.Int64Counter(
		"sms.sends.rejected.total",
		metric.WithDescription("Sends rejected before dispatch, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sendsRejected counter: %w", err)
	}

	m.transmitFailures, err = m.meter.Int64Counter(
		"sms.transmit.failures.total",
		metric.WithDescription("Synchronous transmit primitive rejections"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transmitFailures counter: %w", err)
	}

	m.acksReceived, err = m.meter.Int64Counter(
		"sms.acks.received.total",
		metric.WithDescription("Sent acknowledgements received, by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acksReceived counter: %w", err)
	}

	m.deliveriesTotal, err = m.meter.Int64Counter(
		"sms.deliveries.total",
		metric.WithDescription("Delivery acknowledgements received"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deliveriesTotal counter: %w", err)
	}

	m.inboundTotal, err = m.meter.Int64Counter(
		"sms.inbound.total",
		metric.WithDescription("Inbound messages received"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inboundTotal counter: %w", err)
	}

	m.sendDuration, err = m.meter.Float64Histogram(
		"sms.send.duration",
		metric.WithDescription("Time from dispatch to resolution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sendDuration histogram: %w", err)
	}

	m.messageParts, err = m.meter.Int64Histogram(
		"sms.message.parts",
		metric.WithDescription("Parts per logical message"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messageParts histogram: %w", err)
	}

	return m, nil
}

// RecordSend records an accepted send with its part count.
func (m *Metrics) RecordSend(ctx context.Context, parts int) {
	if m == nil {
		return
	}
	m.sendsTotal.Add(ctx, 1)
	m.messageParts.Record(ctx, int64(parts))
}

// RecordRejection records a send rejected before dispatch.
func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.sendsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordTransmitFailure records a synchronous transmit rejection.
func (m *Metrics) RecordTransmitFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.transmitFailures.Add(ctx, 1)
}

// RecordAck records a sent acknowledgement by decoded status.
func (m *Metrics) RecordAck(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.acksReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordDelivery records a delivery acknowledgement.
func (m *Metrics) RecordDelivery(ctx context.Context) {
	if m == nil {
		return
	}
	m.deliveriesTotal.Add(ctx, 1)
}

// RecordInbound records an inbound message.
func (m *Metrics) RecordInbound(ctx context.Context) {
	if m == nil {
		return
	}
	m.inboundTotal.Add(ctx, 1)
}

// RecordSendDuration records dispatch-to-resolution latency.
func (m *Metrics) RecordSendDuration(ctx context.Context, seconds float64, status string) {
	if m == nil {
		return
	}
	m.sendDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("status", status)))
}
