// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package sim is an in-process radio backend. It implements every
// collaborator contract the gateway consumes, acknowledging transmissions
// asynchronously after a configurable delay, so the daemon and integration
// tests can run without a modem.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/absmach/smsgate/radio"
	"github.com/absmach/smsgate/sms"
)

// ErrRadioUnavailable is the synchronous rejection returned when failure
// injection is armed.
var ErrRadioUnavailable = errors.New("radio unavailable")

// Config holds simulated radio behavior.
type Config struct {
	// Subscriptions is the number of SIM slots, minimum 1. Slot 0 is the
	// system default.
	Subscriptions int

	// SignalLevel is reported for every subscription.
	SignalLevel radio.SignalLevel

	// AckDelay is the simulated network round trip before each
	// acknowledgement.
	AckDelay time.Duration

	// SentCode is the outcome code attached to sent acknowledgements.
	SentCode int

	// DropDeliveries suppresses delivery acknowledgements, simulating a
	// handset that never reports back.
	DropDeliveries bool
}

// Radio is a simulated radio stack.
type Radio struct {
	mu      sync.Mutex
	cfg     Config
	failing bool
	inbound chan sms.Inbound
	wg      sync.WaitGroup
}

var (
	_ radio.Provider    = (*Radio)(nil)
	_ radio.Transmitter = (*Radio)(nil)
	_ radio.Authorizer  = (*Radio)(nil)
	_ radio.SignalMeter = (*Radio)(nil)
	_ radio.Receiver    = (*Radio)(nil)
)

// New creates a simulated radio.
func New(cfg Config) *Radio {
	if cfg.Subscriptions < 1 {
		cfg.Subscriptions = 1
	}
	return &Radio{
		cfg:     cfg,
		inbound: make(chan sms.Inbound, 32),
	}
}

// CanSend always grants the send capability.
func (r *Radio) CanSend() bool { return true }

// Measure reports the configured signal level. Out-of-range subscriptions
// report unknown.
func (r *Radio) Measure(subscription int) (radio.SignalLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subscription < 0 || subscription >= r.cfg.Subscriptions {
		return radio.LevelUnknown, nil
	}
	return r.cfg.SignalLevel, nil
}

// Transmitter returns the send capability for a slot. Every slot shares
// the simulated radio, which is exactly the system-default fallback
// behavior for out-of-range indices.
func (r *Radio) Transmitter(subscription int) radio.Transmitter { return r }

// SetFailing arms or disarms synchronous transmit rejection.
func (r *Radio) SetFailing(failing bool) {
	r.mu.Lock()
	r.failing = failing
	r.mu.Unlock()
}

// SetSentCode changes the outcome code of future sent acknowledgements.
func (r *Radio) SetSentCode(code int) {
	r.mu.Lock()
	r.cfg.SentCode = code
	r.mu.Unlock()
}

// Transmit hands one message to the simulated network.
func (r *Radio) Transmit(ctx context.Context, destination, body string, id sms.MessageID,
	sentAcks, deliveryAcks chan<- sms.Acknowledgement) error {
	return r.TransmitMultipart(ctx, destination, []string{body}, id, sentAcks, deliveryAcks)
}

// TransmitMultipart hands the parts of one logical message to the
// simulated network and schedules per-part acknowledgements.
func (r *Radio) TransmitMultipart(ctx context.Context, destination string, parts []string, id sms.MessageID,
	sentAcks, deliveryAcks chan<- sms.Acknowledgement) error {
	r.mu.Lock()
	failing, code, delay, drop := r.failing, r.cfg.SentCode, r.cfg.AckDelay, r.cfg.DropDeliveries
	r.mu.Unlock()

	if failing {
		return ErrRadioUnavailable
	}
	if len(parts) == 0 {
		return errors.New("empty part plan")
	}
	if id == "" {
		// Fire-and-forget: nothing to acknowledge.
		return nil
	}

	total := len(parts)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for i := 1; i <= total; i++ {
			ack := sms.Acknowledgement{ID: id, Code: code, Part: i, Of: total}
			if total == 1 {
				ack.Part, ack.Of = 0, 0
			}
			if delay > 0 {
				time.Sleep(delay)
			}
			if sentAcks != nil {
				sentAcks <- ack
			}
			if deliveryAcks != nil && !drop && code == sms.CodeOK {
				deliveryAcks <- sms.Acknowledgement{ID: id, Part: ack.Part, Of: ack.Of}
			}
		}
	}()
	return nil
}

// Inbound surfaces injected inbound messages.
func (r *Radio) Inbound() <-chan sms.Inbound { return r.inbound }

// Inject delivers an inbound message as if it arrived from the network.
func (r *Radio) Inject(msg sms.Inbound) {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	r.inbound <- msg
}

// Close waits for scheduled acknowledgements and closes the inbound stream.
func (r *Radio) Close() {
	r.wg.Wait()
	close(r.inbound)
}
