// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package radio defines the contracts the gateway consumes from the host
// radio stack: capability checks, subscription selection, signal
// measurement and the opaque transmit primitive. Acknowledgements are
// delivered asynchronously on the channels handed to Transmit; a nil
// channel means the corresponding report was not requested.
package radio

import (
	"context"

	"github.com/absmach/smsgate/sms"
)

// SignalLevel is the coarse signal strength of a subscription, 0..4.
type SignalLevel int

const (
	LevelUnknown  SignalLevel = -1
	LevelNone     SignalLevel = 0
	LevelPoor     SignalLevel = 1
	LevelModerate SignalLevel = 2
	LevelGood     SignalLevel = 3
	LevelGreat    SignalLevel = 4
)

func (l SignalLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelPoor:
		return "poor"
	case LevelModerate:
		return "moderate"
	case LevelGood:
		return "good"
	case LevelGreat:
		return "great"
	default:
		return "unknown"
	}
}

// Authorizer answers whether this process may send SMS at all.
type Authorizer interface {
	CanSend() bool
}

// SignalMeter measures the radio link quality of a subscription.
type SignalMeter interface {
	Measure(subscription int) (SignalLevel, error)
}

// Transmitter is an opaque send capability bound to one radio subscription.
// Transmit hands one message to the network. When id is non-empty each
// acknowledgement for the message carries it; sentAcks and deliveryAcks
// receive the per-part reports, and a nil channel suppresses that report
// kind. A returned error is a synchronous rejection: no acknowledgement
// will ever follow.
type Transmitter interface {
	Transmit(ctx context.Context, destination, body string, id sms.MessageID,
		sentAcks, deliveryAcks chan<- sms.Acknowledgement) error

	// TransmitMultipart sends the ordered parts of one logical message.
	// Every part is tagged with the same id plus its 1-based index and
	// the total part count.
	TransmitMultipart(ctx context.Context, destination string, parts []string, id sms.MessageID,
		sentAcks, deliveryAcks chan<- sms.Acknowledgement) error
}

// Provider maps a logical SIM-slot index to a transmitter. Implementations
// fall back to the system default when the index is out of range or
// subscription introspection is unauthorized.
type Provider interface {
	Transmitter(subscription int) Transmitter
}

// Receiver surfaces inbound messages from the network. It feeds the
// read-only inbox services and the broadcast received stream; it never
// interacts with the send path.
type Receiver interface {
	Inbound() <-chan sms.Inbound
}
