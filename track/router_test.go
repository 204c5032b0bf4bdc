// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/smsgate/events"
	"github.com/absmach/smsgate/sms"
)

func TestRouterActivateIdempotent(t *testing.T) {
	store := NewStore()
	hub := events.NewHub("gw-test", 8)
	defer hub.Close()

	r := NewRouter(store, hub, 8, nil, nil)
	assert.False(t, r.Active())

	r.Activate()
	r.Activate()
	r.Activate()
	assert.True(t, r.Active())

	r.Deactivate()
	assert.False(t, r.Active())
}

func TestRouterDeactivateWithoutActivate(t *testing.T) {
	r := NewRouter(NewStore(), events.NewHub("gw-test", 8), 8, nil, nil)

	// Must not panic or block.
	r.Deactivate()
	r.Deactivate()
	assert.False(t, r.Active())
}

func TestRouterRoutesAcksToStore(t *testing.T) {
	store := NewStore()
	hub := events.NewHub("gw-test", 8)
	defer hub.Close()

	r := NewRouter(store, hub, 8, nil, nil)
	r.Activate()
	defer r.Deactivate()

	id := sms.NewMessageID()
	done := store.Register(id, true)

	r.SentAcks() <- sms.Acknowledgement{ID: id, Code: sms.CodeOK}
	r.DeliveryAcks() <- sms.Acknowledgement{ID: id}

	select {
	case res := <-done:
		assert.Equal(t, sms.SentOK, res.Sent)
		assert.Equal(t, sms.Delivered, res.Delivered)
	case <-time.After(time.Second):
		t.Fatal("send never resolved through the router")
	}
	assert.Equal(t, 0, store.Outstanding())
}

func TestRouterDecodesFailureCodes(t *testing.T) {
	store := NewStore()
	hub := events.NewHub("gw-test", 8)
	defer hub.Close()

	r := NewRouter(store, hub, 8, nil, nil)
	r.Activate()
	defer r.Deactivate()

	id := sms.NewMessageID()
	done := store.Register(id, false)

	r.SentAcks() <- sms.Acknowledgement{ID: id, Code: sms.CodeRadioOff}

	select {
	case res := <-done:
		assert.Equal(t, sms.SentRadioOff, res.Sent)
		assert.False(t, res.OK())
	case <-time.After(time.Second):
		t.Fatal("send never resolved through the router")
	}
}

func TestRouterEmitsEventsForUnknownIDs(t *testing.T) {
	store := NewStore()
	hub := events.NewHub("gw-test", 8)
	defer hub.Close()

	envelopes, cancel := hub.Subscribe(events.TypeMessageSent)
	defer cancel()

	r := NewRouter(store, hub, 8, nil, nil)

	// A late acknowledgement for a message nobody tracks anymore: the
	// broadcast stream still sees it, the store stays untouched.
	r.HandleSent(sms.Acknowledgement{ID: "late", Code: sms.CodeOK, Part: 2, Of: 3})

	select {
	case env := <-envelopes:
		require.Equal(t, events.TypeMessageSent, env.EventType)
		data, ok := env.Data.(events.MessageSent)
		require.True(t, ok)
		assert.Equal(t, sms.MessageID("late"), data.MessageID)
		assert.Equal(t, sms.SentOK, data.Status)
		assert.Equal(t, 2, data.Part)
		assert.Equal(t, 3, data.Of)
	case <-time.After(time.Second):
		t.Fatal("sent event never published")
	}
	assert.Equal(t, 0, store.Outstanding())
}

func TestRouterMultipartResolvesOnFirstTerminalAck(t *testing.T) {
	store := NewStore()
	hub := events.NewHub("gw-test", 16)
	defer hub.Close()

	envelopes, cancel := hub.Subscribe(events.TypeMessageSent)
	defer cancel()

	r := NewRouter(store, hub, 16, nil, nil)

	id := sms.NewMessageID()
	done := store.Register(id, false)

	// The first part's terminal outcome completes the send; remaining
	// parts still produce broadcast events but touch no record.
	r.HandleSent(sms.Acknowledgement{ID: id, Code: sms.CodeOK, Part: 1, Of: 3})
	r.HandleSent(sms.Acknowledgement{ID: id, Code: sms.CodeGenericFailure, Part: 2, Of: 3})
	r.HandleSent(sms.Acknowledgement{ID: id, Code: sms.CodeOK, Part: 3, Of: 3})

	res := <-done
	assert.Equal(t, sms.SentOK, res.Sent)
	assert.Equal(t, 0, store.Outstanding())

	for part := 1; part <= 3; part++ {
		select {
		case env := <-envelopes:
			data, ok := env.Data.(events.MessageSent)
			require.True(t, ok)
			assert.Equal(t, part, data.Part)
		default:
			t.Fatalf("missing sent event for part %d", part)
		}
	}
}
