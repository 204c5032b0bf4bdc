// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package inbox stores inbound messages for the read and search services.
// It has no interaction with the send path.
package inbox

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/absmach/smsgate/sms"
)

// ErrNotFound is returned when a message id does not exist.
var ErrNotFound = errors.New("message not found")

// Message is one stored inbound message.
type Message struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	Body         string    `json:"body"`
	Subscription int       `json:"subscription"`
	ReceivedAt   time.Time `json:"received_at"`
	Read         bool      `json:"read"`
}

// FromInbound builds a stored message from a network inbound, assigning a
// fresh id.
func FromInbound(in sms.Inbound) Message {
	return Message{
		ID:           uuid.NewString(),
		From:         in.From,
		Body:         in.Body,
		Subscription: in.Subscription,
		ReceivedAt:   in.ReceivedAt,
	}
}

// Store is the read/search surface over inbound messages.
type Store interface {
	// Save persists a message.
	Save(msg Message) error

	// Get retrieves a message by id.
	Get(id string) (Message, error)

	// List returns up to limit messages, newest first. limit <= 0 means
	// no limit.
	List(limit int) ([]Message, error)

	// Search returns messages whose sender or body contains the query,
	// newest first.
	Search(query string, limit int) ([]Message, error)

	// MarkRead flags a message as read.
	MarkRead(id string) error

	// Delete removes a message.
	Delete(id string) error

	// Close releases backend resources.
	Close() error
}
