// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package sms defines the domain types shared by the gateway core:
// send requests, message identifiers, acknowledgements and outcomes.
package sms

import (
	"time"

	"github.com/google/uuid"
)

// MessageID identifies one logical send operation across all of its parts
// and both acknowledgement kinds. One id is generated per request, never
// per part.
type MessageID string

// NewMessageID generates a fresh unique message identifier.
func NewMessageID() MessageID {
	return MessageID(uuid.NewString())
}

// SentStatus is the network-level outcome of handing a message to the radio.
type SentStatus string

const (
	// SentPending means no sent acknowledgement has arrived yet.
	SentPending SentStatus = "pending"
	// SentOK means the message was accepted by the network.
	SentOK SentStatus = "sent"
	// SentGenericFailure means the radio reported an unspecified failure.
	SentGenericFailure SentStatus = "generic_failure"
	// SentNoService means there was no cellular service.
	SentNoService SentStatus = "no_service"
	// SentNullPDU means the message could not be encoded into a PDU.
	SentNullPDU SentStatus = "null_pdu"
	// SentRadioOff means the radio was powered off.
	SentRadioOff SentStatus = "radio_off"
	// SentUnknownError covers outcome codes this gateway does not know.
	SentUnknownError SentStatus = "unknown_error"
)

// Terminal reports whether the status is a final outcome.
func (s SentStatus) Terminal() bool {
	return s != SentPending && s != ""
}

// Radio outcome codes carried by sent acknowledgements.
const (
	CodeOK             = 0
	CodeGenericFailure = 1
	CodeRadioOff       = 2
	CodeNullPDU        = 3
	CodeNoService      = 4
)

// DecodeSentCode maps a raw radio outcome code to a named status.
// Unknown codes decode to SentUnknownError rather than failing.
func DecodeSentCode(code int) SentStatus {
	switch code {
	case CodeOK:
		return SentOK
	case CodeGenericFailure:
		return SentGenericFailure
	case CodeRadioOff:
		return SentRadioOff
	case CodeNullPDU:
		return SentNullPDU
	case CodeNoService:
		return SentNoService
	default:
		return SentUnknownError
	}
}

// DeliveredStatus tracks receipt of the message by the destination handset.
// Delivery acknowledgements are binary: one either arrives or it never does.
type DeliveredStatus string

const (
	// DeliveryPending means a delivery report was requested but has not arrived.
	DeliveryPending DeliveredStatus = "pending"
	// DeliveryNotRequested means the caller did not ask for delivery tracking.
	DeliveryNotRequested DeliveredStatus = "not_requested"
	// Delivered means the handset confirmed receipt.
	Delivered DeliveredStatus = "delivered"
)

// SendRequest describes one outbound send. Immutable once accepted.
type SendRequest struct {
	// Destination is the caller-supplied recipient address. Required.
	Destination string `json:"destination"`

	// Body is the message text. Required.
	Body string `json:"body"`

	// Subscription selects the SIM slot to send on. Out-of-range values
	// fall back to the system default transmitter.
	Subscription int `json:"subscription"`

	// StatusReport requests confirmation that the network accepted the
	// message. Without it the send is fire-and-forget.
	StatusReport bool `json:"status_report"`

	// DeliveryReport requests confirmation that the handset received the
	// message. Implies StatusReport.
	DeliveryReport bool `json:"delivery_report"`

	// CheckSignal gates the send on the measured signal level of the
	// chosen subscription.
	CheckSignal bool `json:"check_signal"`
}

// Acknowledgement is an inbound signal reporting the outcome of transmitting
// one part (sent) or its receipt by the handset (delivered). Acknowledgements
// are transient; they exist only to drive a correlation transition.
type Acknowledgement struct {
	ID   MessageID
	Code int // outcome code, sent acknowledgements only
	Part int // 1-based part index, multipart only
	Of   int // total part count, multipart only
}

// Outcome statuses reported to callers.
const (
	// StatusSentNoConfirmation is resolved immediately for untracked sends.
	StatusSentNoConfirmation = "sent_no_confirmation"
	// StatusCompleted means every requested acknowledgement arrived with success.
	StatusCompleted = "completed"
	// StatusFailed means the network reported a non-success sent outcome.
	StatusFailed = "failed"
)

// Outcome is the terminal result of one logical send operation.
type Outcome struct {
	MessageID MessageID       `json:"message_id,omitempty"`
	Status    string          `json:"status"`
	Sent      SentStatus      `json:"sent,omitempty"`
	Delivered DeliveredStatus `json:"delivered,omitempty"`
	Parts     int             `json:"parts,omitempty"`
}

// OK reports whether the outcome represents a successful send.
func (o Outcome) OK() bool {
	return o.Status == StatusSentNoConfirmation || o.Status == StatusCompleted
}

// Recipient statuses for bulk sends.
const (
	RecipientInitiated = "initiated"
	RecipientFailed    = "failed"
)

// RecipientResult is the per-recipient record of a bulk send. A failed
// recipient never fails the batch; the error is captured here instead.
type RecipientResult struct {
	Recipient string    `json:"recipient"`
	MessageID MessageID `json:"message_id,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// BulkOutcome is the result of a bulk send: one record per attempted
// recipient, in dispatch order.
type BulkOutcome struct {
	Results []RecipientResult `json:"results"`
}

// Initiated counts recipients whose sends were handed to the radio.
func (b BulkOutcome) Initiated() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == RecipientInitiated {
			n++
		}
	}
	return n
}

// Inbound is a message received from the network.
type Inbound struct {
	From         string    `json:"from"`
	Body         string    `json:"body"`
	Subscription int       `json:"subscription"`
	ReceivedAt   time.Time `json:"received_at"`
}
