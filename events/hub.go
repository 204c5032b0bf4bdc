// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
)

const defaultBuffer = 64

// subscriber is one broadcast stream. An empty types set receives
// everything; otherwise only the listed event types are forwarded.
type subscriber struct {
	types map[string]bool
	ch    chan *Envelope
}

// Hub fans events out to any number of subscribers. Publishing never
// blocks: when a subscriber's buffer is full its oldest envelope is
// dropped to make room, so a slow consumer only loses its own history.
type Hub struct {
	gatewayID string
	buffer    int

	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewHub creates a hub stamping every envelope with gatewayID.
func NewHub(gatewayID string, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		gatewayID: gatewayID,
		buffer:    buffer,
		subs:      make(map[int]*subscriber),
	}
}

// Subscribe registers a new stream, optionally narrowed to the given event
// types. The returned cancel func removes the subscription and closes the
// channel; calling it more than once is safe.
func (h *Hub) Subscribe(types ...string) (<-chan *Envelope, func()) {
	filter := make(map[string]bool, len(types))
	for _, t := range types {
		if t != "" {
			filter[t] = true
		}
	}

	sub := &subscriber{
		types: filter,
		ch:    make(chan *Envelope, h.buffer),
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish wraps the event and delivers it to every matching subscriber.
func (h *Hub) Publish(event Event) {
	env := event.Wrap(h.gatewayID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		if len(sub.types) > 0 && !sub.types[env.EventType] {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			// Full buffer: shed the oldest envelope.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- env:
			default:
			}
		}
	}
}

// Close tears down all subscriptions. Publish and Subscribe become no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
