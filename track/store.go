// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package track is the delivery-tracking core: a correlation store mapping
// message ids to their outstanding completion channels, and a router that
// feeds asynchronous radio acknowledgements into it.
package track

import (
	"sync"

	"github.com/absmach/smsgate/sms"
)

// Result is the aggregate terminal state of one logical send.
type Result struct {
	Sent      sms.SentStatus
	Delivered sms.DeliveredStatus
}

// OK reports whether both requested acknowledgement kinds succeeded.
func (r Result) OK() bool {
	return r.Sent == sms.SentOK &&
		(r.Delivered == sms.Delivered || r.Delivered == sms.DeliveryNotRequested)
}

// entry is the live record for one outstanding send. The done channel is
// buffered so resolution never blocks, even when no caller is awaiting it.
type entry struct {
	done      chan Result
	sent      sms.SentStatus
	delivered sms.DeliveredStatus
}

// Store correlates message ids with their outstanding completion channels
// and accumulated per-kind status. All methods are safe for concurrent use
// by any number of senders plus both acknowledgement channels.
//
// Invariant: a record is deleted exactly once, atomically with sending the
// result into its channel, so a completion channel receives at most one
// value no matter how many duplicate acknowledgements arrive.
type Store struct {
	mu          sync.Mutex
	outstanding map[sms.MessageID]*entry
}

// NewStore creates an empty correlation store.
func NewStore() *Store {
	return &Store{outstanding: make(map[sms.MessageID]*entry)}
}

// Register creates the outstanding record for id and returns the one-shot
// completion channel. The sent accumulator starts pending; the delivered
// accumulator starts pending when delivery tracking is requested and
// not_requested otherwise.
func (s *Store) Register(id sms.MessageID, trackDelivery bool) <-chan Result {
	delivered := sms.DeliveryNotRequested
	if trackDelivery {
		delivered = sms.DeliveryPending
	}
	e := &entry{
		done:      make(chan Result, 1),
		sent:      sms.SentPending,
		delivered: delivered,
	}

	s.mu.Lock()
	s.outstanding[id] = e
	s.mu.Unlock()

	return e.done
}

// UpdateSent records the sent outcome for id. Unknown ids are silently
// ignored: late and duplicate acknowledgements are expected under real
// radio conditions. For multipart sends the accumulator is last-write-wins
// across parts; per-part outcomes remain observable on the broadcast
// streams.
func (s *Store) UpdateSent(id sms.MessageID, status sms.SentStatus) {
	s.mu.Lock()
	if e, ok := s.outstanding[id]; ok {
		e.sent = status
	}
	s.mu.Unlock()
}

// UpdateDelivered records handset receipt for id. Unknown ids are silently
// ignored.
func (s *Store) UpdateDelivered(id sms.MessageID) {
	s.mu.Lock()
	if e, ok := s.outstanding[id]; ok && e.delivered == sms.DeliveryPending {
		e.delivered = sms.Delivered
	}
	s.mu.Unlock()
}

// TryResolve completes the send for id if its join condition holds: the
// sent status is terminal and delivery was either not requested or has
// arrived. On resolution the record is removed and the result sent into
// the completion channel; both happen before returning, and a concurrent
// caller can never resolve the same id again. Returns false when id is
// unknown or still pending.
func (s *Store) TryResolve(id sms.MessageID) bool {
	s.mu.Lock()
	e, ok := s.outstanding[id]
	if !ok || e.sent == sms.SentPending || e.delivered == sms.DeliveryPending {
		s.mu.Unlock()
		return false
	}
	delete(s.outstanding, id)
	s.mu.Unlock()

	e.done <- Result{Sent: e.sent, Delivered: e.delivered}
	return true
}

// Discard removes the record for id without resolving its channel. Used
// when the transmit primitive rejects synchronously, so no orphaned record
// survives a failure that will never be acknowledged.
func (s *Store) Discard(id sms.MessageID) {
	s.mu.Lock()
	delete(s.outstanding, id)
	s.mu.Unlock()
}

// Outstanding returns the number of unresolved records.
func (s *Store) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}
