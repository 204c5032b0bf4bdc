// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/smsgate/config"
	"github.com/absmach/smsgate/events"
	"github.com/absmach/smsgate/radio"
	"github.com/absmach/smsgate/ratelimit"
	"github.com/absmach/smsgate/sms"
	"github.com/absmach/smsgate/track"
)

// fakeRadio implements the full radio contract in-package. Acknowledgements
// are written straight into the tagged channels from Transmit, which is
// safe because the router's queues are buffered.
type fakeRadio struct {
	mu sync.Mutex

	canSend     bool
	level       radio.SignalLevel
	measureErr  error
	transmitErr error
	sentCode    int
	ackDelivery bool
	failFor     map[string]error

	singles    []string // destinations of single-part transmits
	multiparts [][]string
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		canSend:  true,
		level:    radio.LevelGreat,
		sentCode: sms.CodeOK,
	}
}

func (f *fakeRadio) CanSend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSend
}

func (f *fakeRadio) Measure(int) (radio.SignalLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, f.measureErr
}

func (f *fakeRadio) Transmitter(int) radio.Transmitter { return f }

func (f *fakeRadio) Transmit(_ context.Context, destination, _ string, id sms.MessageID,
	sentAcks, deliveryAcks chan<- sms.Acknowledgement,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transmitErr != nil {
		return f.transmitErr
	}
	if err, ok := f.failFor[destination]; ok {
		return err
	}
	f.singles = append(f.singles, destination)
	f.ack(id, 0, 0, sentAcks, deliveryAcks)
	return nil
}

func (f *fakeRadio) TransmitMultipart(_ context.Context, destination string, parts []string, id sms.MessageID,
	sentAcks, deliveryAcks chan<- sms.Acknowledgement,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transmitErr != nil {
		return f.transmitErr
	}
	f.multiparts = append(f.multiparts, parts)
	for i := range parts {
		f.ack(id, i+1, len(parts), sentAcks, deliveryAcks)
	}
	return nil
}

func (f *fakeRadio) ack(id sms.MessageID, part, of int, sentAcks, deliveryAcks chan<- sms.Acknowledgement) {
	if id == "" {
		return
	}
	if sentAcks != nil {
		sentAcks <- sms.Acknowledgement{ID: id, Code: f.sentCode, Part: part, Of: of}
	}
	if deliveryAcks != nil && f.ackDelivery && f.sentCode == sms.CodeOK {
		deliveryAcks <- sms.Acknowledgement{ID: id, Part: part, Of: of}
	}
}

type fixture struct {
	gw    *Gateway
	rad   *fakeRadio
	store *track.Store
	hub   *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rad := newFakeRadio()
	hub := events.NewHub("gw-test", 64)
	t.Cleanup(hub.Close)

	store := track.NewStore()
	router := track.NewRouter(store, hub, 64, nil, nil)
	t.Cleanup(router.Deactivate)

	cfg := config.GatewayConfig{ID: "gw-test", MinSignalLevel: 2}
	gw := New(cfg, Deps{
		Authorizer: rad,
		Provider:   rad,
		Meter:      rad,
		Store:      store,
		Router:     router,
		Hub:        hub,
	}, nil)

	return &fixture{gw: gw, rad: rad, store: store, hub: hub}
}

func TestSendWithoutTracking(t *testing.T) {
	f := newFixture(t)

	out, err := f.gw.Send(context.Background(), sms.SendRequest{
		Destination: "+15550100",
		Body:        "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, sms.StatusSentNoConfirmation, out.Status)
	assert.Empty(t, out.MessageID)
	assert.Equal(t, 1, out.Parts)
	assert.Equal(t, 0, f.store.Outstanding(), "untracked sends must leave no record")
}

func TestSendTrackedResolvesCompleted(t *testing.T) {
	f := newFixture(t)

	out, err := f.gw.Send(context.Background(), sms.SendRequest{
		Destination:  "+15550100",
		Body:         "hello",
		StatusReport: true,
	})
	require.NoError(t, err)
	assert.Equal(t, sms.StatusCompleted, out.Status)
	assert.Equal(t, sms.SentOK, out.Sent)
	assert.Equal(t, sms.DeliveryNotRequested, out.Delivered)
	assert.NotEmpty(t, out.MessageID)
	assert.Equal(t, 0, f.store.Outstanding())
}

func TestSendWithDeliveryReport(t *testing.T) {
	f := newFixture(t)
	f.rad.ackDelivery = true

	out, err := f.gw.Send(context.Background(), sms.SendRequest{
		Destination:    "+15550100",
		Body:           "hello",
		DeliveryReport: true,
	})
	require.NoError(t, err)
	assert.Equal(t, sms.StatusCompleted, out.Status)
	assert.Equal(t, sms.Delivered, out.Delivered)
}

func TestSendFailureCodeResolvesFailed(t *testing.T) {
	f := newFixture(t)
	f.rad.sentCode = sms.CodeNoService

	out, err := f.gw.Send(context.Background(), sms.SendRequest{
		Destination:  "+15550100",
		Body:         "hello",
		StatusReport: true,
	})
	require.NoError(t, err, "async failure codes are outcomes, not errors")
	assert.Equal(t, sms.StatusFailed, out.Status)
	assert.Equal(t, sms.SentNoService, out.Sent)
	assert.Equal(t, 0, f.store.Outstanding())
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.gw.Send(context.Background(), sms.SendRequest{Body: "hello"})
	assert.ErrorIs(t, err, sms.ErrEmptyDestination)

	_, err = f.gw.Send(context.Background(), sms.SendRequest{Destination: "+15550100"})
	assert.ErrorIs(t, err, sms.ErrEmptyBody)

	assert.Empty(t, f.rad.singles, "rejected requests must never reach the radio")
}

func TestSendPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.rad.canSend = false

	_, err := f.gw.Send(context.Background(), sms.SendRequest{
		Destination: "+15550100",
		Body:        "hello",
	})
	assert.ErrorIs(t, err, sms.ErrPermissionDenied)
	assert.Equal(t, 0, f.store.Outstanding())
}

func TestSendSignalGate(t *testing.T) {
	f := newFixture(t)
	f.rad.level = radio.LevelPoor

	req := sms.SendRequest{
		Destination: "+15550100",
		Body:        "hello",
		CheckSignal: true,
	}

	_, err := f.gw.Send(context.Background(), req)
	assert.ErrorIs(t, err, sms.ErrSignalTooWeak)

	// A measurement failure gates the same way.
	f.rad.level = radio.LevelGreat
	f.rad.measureErr = errors.New("modem busy")
	_, err = f.gw.Send(context.Background(), req)
	assert.ErrorIs(t, err, sms.ErrSignalTooWeak)

	// Without the advisory flag the level is ignored.
	f.rad.level = radio.LevelPoor
	f.rad.measureErr = nil
	req.CheckSignal = false
	_, err = f.gw.Send(context.Background(), req)
	assert.NoError(t, err)
}

func TestSendSynchronousTransmitFailure(t *testing.T) {
	f := newFixture(t)
	f.rad.transmitErr = errors.New("radio unavailable")

	_, err := f.gw.Send(context.Background(), sms.SendRequest{
		Destination:  "+15550100",
		Body:         "hello",
		StatusReport: true,
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.store.Outstanding(), "record must be discarded on sync failure")
}

func TestSendContextCancellation(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan error, 1)
	go func() {
		// The fake never emits delivery acks, so this send cannot resolve.
		_, err := f.gw.Send(ctx, sms.SendRequest{
			Destination:    "+15550100",
			Body:           "hello",
			DeliveryReport: true, // delivery never acknowledged
		})
		resultCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-resultCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled send never returned")
	}

	// The record survives cancellation so a late ack still feeds the
	// broadcast streams.
	assert.Equal(t, 1, f.store.Outstanding())
}

func TestSendRateLimited(t *testing.T) {
	f := newFixture(t)
	limiter := ratelimit.NewManager(ratelimit.Config{
		Enabled:         true,
		Rate:            0.001,
		Burst:           1,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(limiter.Stop)
	f.gw.deps.Limiter = limiter

	req := sms.SendRequest{Destination: "+15550100", Body: "hello"}

	_, err := f.gw.Send(context.Background(), req)
	require.NoError(t, err)

	_, err = f.gw.Send(context.Background(), req)
	assert.ErrorIs(t, err, sms.ErrRateLimited)

	// Another destination has its own bucket.
	_, err = f.gw.Send(context.Background(), sms.SendRequest{Destination: "+15550199", Body: "hello"})
	assert.NoError(t, err)
}

func TestSendLongSinglePartDegrades(t *testing.T) {
	f := newFixture(t)

	out, err := f.gw.SendLong(context.Background(), sms.SendRequest{
		Destination:  "+15550100",
		Body:         "short enough",
		StatusReport: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Parts)
	assert.Empty(t, f.rad.multiparts, "single fragment must use the plain transmit path")
	assert.Len(t, f.rad.singles, 1)
}

func TestSendLongMultipart(t *testing.T) {
	f := newFixture(t)

	body := strings.Repeat("a", 400) // three GSM-7 parts
	out, err := f.gw.SendLong(context.Background(), sms.SendRequest{
		Destination:  "+15550100",
		Body:         body,
		StatusReport: true,
	})
	require.NoError(t, err)
	assert.Equal(t, sms.StatusCompleted, out.Status)
	assert.Equal(t, 3, out.Parts)

	require.Len(t, f.rad.multiparts, 1)
	assert.Equal(t, body, strings.Join(f.rad.multiparts[0], ""))
	assert.Equal(t, 0, f.store.Outstanding())
}

func TestSendMultiple(t *testing.T) {
	f := newFixture(t)
	f.rad.failFor = map[string]error{"+15550102": errors.New("network rejected")}

	out, err := f.gw.SendMultiple(context.Background(),
		[]string{"+15550101", "", "+15550102", "+15550103"}, "bulk hello", 0)
	require.NoError(t, err)
	require.Len(t, out.Results, 3, "empty recipients are filtered before dispatch")

	assert.Equal(t, sms.RecipientInitiated, out.Results[0].Status)
	assert.NotEmpty(t, out.Results[0].MessageID)

	assert.Equal(t, sms.RecipientFailed, out.Results[1].Status)
	assert.Equal(t, "+15550102", out.Results[1].Recipient)

	// A failed sibling never aborts the batch.
	assert.Equal(t, sms.RecipientInitiated, out.Results[2].Status)
}

func TestSendMultipleAllInvalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.gw.SendMultiple(context.Background(), []string{"", "", ""}, "hello", 0)
	assert.ErrorIs(t, err, sms.ErrNoRecipients)

	_, err = f.gw.SendMultiple(context.Background(), []string{"+15550100"}, "", 0)
	assert.ErrorIs(t, err, sms.ErrEmptyBody)
}

func TestSendMultipleRecordsResolveInBackground(t *testing.T) {
	f := newFixture(t)

	out, err := f.gw.SendMultiple(context.Background(),
		[]string{"+15550101", "+15550102"}, "bulk hello", 0)
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	// The router consumes the buffered acks without any caller awaiting.
	require.Eventually(t, func() bool {
		return f.store.Outstanding() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCheckSignal(t *testing.T) {
	f := newFixture(t)
	f.rad.level = radio.LevelModerate

	level, err := f.gw.CheckSignal(0)
	require.NoError(t, err)
	assert.Equal(t, radio.LevelModerate, level)
	assert.Equal(t, "moderate", level.String())
}
