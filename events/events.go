// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/absmach/smsgate/sms"
)

// Event type constants.
const (
	TypeSendProgress     = "send.progress"
	TypeMessageSent      = "message.sent"
	TypeMessageDelivered = "message.delivered"
	TypeSendError        = "send.error"
	TypeMessageReceived  = "message.received"
)

// Event is the common interface for all gateway events.
type Event interface {
	// Type returns the event type identifier (e.g., "message.sent")
	Type() string

	// Wrap wraps the event in a common envelope with metadata
	Wrap(gatewayID string) *Envelope
}

// Envelope is the common wrapper for all gateway events.
type Envelope struct {
	EventType string `json:"event_type"`
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
	GatewayID string `json:"gateway_id"`
	Data      any    `json:"data"`
}

// MarshalJSON serializes the envelope to JSON.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(*e)
}

// SendProgress is emitted when a tracked send is dispatched to the radio,
// before any acknowledgement has arrived.
type SendProgress struct {
	MessageID   sms.MessageID `json:"message_id"`
	Destination string        `json:"destination"`
	Parts       int           `json:"parts"`
}

func (e SendProgress) Type() string { return TypeSendProgress }
func (e SendProgress) Wrap(gatewayID string) *Envelope {
	return &Envelope{
		EventType: e.Type(),
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		GatewayID: gatewayID,
		Data:      e,
	}
}

// MessageSent is emitted for every sent acknowledgement, per part,
// whether or not the originating send is still outstanding.
type MessageSent struct {
	MessageID sms.MessageID  `json:"message_id"`
	Status    sms.SentStatus `json:"status"`
	Part      int            `json:"part,omitempty"`
	Of        int            `json:"of,omitempty"`
}

func (e MessageSent) Type() string { return TypeMessageSent }
func (e MessageSent) Wrap(gatewayID string) *Envelope {
	return &Envelope{
		EventType: e.Type(),
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		GatewayID: gatewayID,
		Data:      e,
	}
}

// MessageDelivered is emitted for every delivery acknowledgement, per part.
type MessageDelivered struct {
	MessageID sms.MessageID `json:"message_id"`
	Part      int           `json:"part,omitempty"`
	Of        int           `json:"of,omitempty"`
}

func (e MessageDelivered) Type() string { return TypeMessageDelivered }
func (e MessageDelivered) Wrap(gatewayID string) *Envelope {
	return &Envelope{
		EventType: e.Type(),
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		GatewayID: gatewayID,
		Data:      e,
	}
}

// SendError is emitted when the radio rejects a transmit synchronously.
// MessageID is empty for untracked sends.
type SendError struct {
	MessageID   sms.MessageID `json:"message_id,omitempty"`
	Destination string        `json:"destination"`
	Reason      string        `json:"reason"`
}

func (e SendError) Type() string { return TypeSendError }
func (e SendError) Wrap(gatewayID string) *Envelope {
	return &Envelope{
		EventType: e.Type(),
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		GatewayID: gatewayID,
		Data:      e,
	}
}

// MessageReceived is emitted when an inbound message arrives from the radio.
type MessageReceived struct {
	From         string    `json:"from"`
	Body         string    `json:"body"`
	Subscription int       `json:"subscription"`
	ReceivedAt   time.Time `json:"received_at"`
}

func (e MessageReceived) Type() string { return TypeMessageReceived }
func (e MessageReceived) Wrap(gatewayID string) *Envelope {
	return &Envelope{
		EventType: e.Type(),
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		GatewayID: gatewayID,
		Data:      e,
	}
}
