// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package track

import (
	"context"
	"log/slog"
	"sync"

	"github.com/absmach/smsgate/events"
	"github.com/absmach/smsgate/server/otel"
	"github.com/absmach/smsgate/sms"
)

const defaultAckQueueSize = 256

// Router is the acknowledgement listener pair. It owns one channel per
// acknowledgement kind; the transmit primitive is handed those channels and
// the radio stack writes per-part reports into them. The router decodes
// each report, updates the correlation store, emits the observable
// sent/delivered event and attempts resolution.
//
// There is exactly one router per gateway, explicitly constructed and
// injected; it is not ambient process state. Activate is idempotent and
// Deactivate is safe to call when never activated.
type Router struct {
	store   *Store
	hub     *events.Hub
	logger  *slog.Logger
	metrics *otel.Metrics

	sentCh      chan sms.Acknowledgement
	deliveredCh chan sms.Acknowledgement

	mu     sync.Mutex
	active bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRouter creates an inactive router feeding the given store and hub.
// metrics may be nil.
func NewRouter(store *Store, hub *events.Hub, queueSize int, logger *slog.Logger, metrics *otel.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultAckQueueSize
	}
	return &Router{
		store:       store,
		hub:         hub,
		logger:      logger,
		metrics:     metrics,
		sentCh:      make(chan sms.Acknowledgement, queueSize),
		deliveredCh: make(chan sms.Acknowledgement, queueSize),
	}
}

// SentAcks is the channel the transmit primitive tags sent reports onto.
func (r *Router) SentAcks() chan<- sms.Acknowledgement {
	return r.sentCh
}

// DeliveryAcks is the channel the transmit primitive tags delivery reports
// onto.
func (r *Router) DeliveryAcks() chan<- sms.Acknowledgement {
	return r.deliveredCh
}

// Active reports whether the listener pair is running.
func (r *Router) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Activate starts both listeners. A second call is a no-op.
func (r *Router) Activate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return
	}
	r.stopCh = make(chan struct{})
	r.wg.Add(2)
	go r.consumeSent(r.stopCh)
	go r.consumeDelivered(r.stopCh)
	r.active = true
	r.logger.Debug("ack_router_activated")
}

// Deactivate stops both listeners and waits for them to drain. Safe to
// call when the router was never activated or is already inactive.
func (r *Router) Deactivate() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.active = false
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("ack_router_deactivated")
}

func (r *Router) consumeSent(stop <-chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case <-stop:
			return
		case ack := <-r.sentCh:
			r.HandleSent(ack)
		}
	}
}

func (r *Router) consumeDelivered(stop <-chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case <-stop:
			return
		case ack := <-r.deliveredCh:
			r.HandleDelivered(ack)
		}
	}
}

// HandleSent processes one sent acknowledgement: decode the outcome code,
// update the store, emit the sent event regardless of whether a completion
// is still outstanding, then attempt resolution. Unknown ids update and
// resolve nothing; the event still fires so telemetry sees late reports.
func (r *Router) HandleSent(ack sms.Acknowledgement) {
	status := sms.DecodeSentCode(ack.Code)
	r.store.UpdateSent(ack.ID, status)
	r.metrics.RecordAck(context.Background(), string(status))
	r.hub.Publish(events.MessageSent{
		MessageID: ack.ID,
		Status:    status,
		Part:      ack.Part,
		Of:        ack.Of,
	})
	if r.store.TryResolve(ack.ID) {
		r.logger.Debug("send_resolved",
			slog.String("message_id", string(ack.ID)),
			slog.String("status", string(status)))
	}
}

// HandleDelivered processes one delivery acknowledgement. Delivery has no
// failure code: an absent or garbled report simply never arrives.
func (r *Router) HandleDelivered(ack sms.Acknowledgement) {
	r.store.UpdateDelivered(ack.ID)
	r.metrics.RecordDelivery(context.Background())
	r.hub.Publish(events.MessageDelivered{
		MessageID: ack.ID,
		Part:      ack.Part,
		Of:        ack.Of,
	})
	if r.store.TryResolve(ack.ID) {
		r.logger.Debug("send_resolved",
			slog.String("message_id", string(ack.ID)),
			slog.String("status", string(sms.Delivered)))
	}
}
