// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/smsgate/sms"
)

// Both backends must satisfy the same contract, so every test runs
// against each of them.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	badger, err := NewBadgerStore(BadgerConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { badger.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": badger,
	}
}

func seed(t *testing.T, s Store) []Message {
	t.Helper()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "m1", From: "+15550101", Body: "meeting at noon", ReceivedAt: base},
		{ID: "m2", From: "+15550102", Body: "your code is 4821", ReceivedAt: base.Add(time.Minute)},
		{ID: "m3", From: "+15550101", Body: "running late", ReceivedAt: base.Add(2 * time.Minute)},
	}
	for _, m := range msgs {
		require.NoError(t, s.Save(m))
	}
	return msgs
}

func TestStoreSaveAndGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			got, err := s.Get("m2")
			require.NoError(t, err)
			assert.Equal(t, "+15550102", got.From)
			assert.Equal(t, "your code is 4821", got.Body)
			assert.False(t, got.Read)

			_, err = s.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			all, err := s.List(0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "m3", all[0].ID)
			assert.Equal(t, "m2", all[1].ID)
			assert.Equal(t, "m1", all[2].ID)

			top, err := s.List(2)
			require.NoError(t, err)
			require.Len(t, top, 2)
			assert.Equal(t, "m3", top[0].ID)
		})
	}
}

func TestStoreSearch(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			// Body match, case-insensitive.
			hits, err := s.Search("CODE", 0)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "m2", hits[0].ID)

			// Sender match, newest first.
			hits, err = s.Search("+15550101", 0)
			require.NoError(t, err)
			require.Len(t, hits, 2)
			assert.Equal(t, "m3", hits[0].ID)

			hits, err = s.Search("nothing here", 0)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestStoreMarkRead(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			require.NoError(t, s.MarkRead("m1"))
			got, err := s.Get("m1")
			require.NoError(t, err)
			assert.True(t, got.Read)

			assert.ErrorIs(t, s.MarkRead("missing"), ErrNotFound)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			require.NoError(t, s.Delete("m2"))
			_, err := s.Get("m2")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, s.Delete("m2"), ErrNotFound)

			all, err := s.List(0)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBadgerStore(BadgerConfig{Dir: dir})
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(BadgerConfig{Dir: dir})
	require.NoError(t, err)
	defer s.Close()

	all, err := s.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFromInbound(t *testing.T) {
	now := time.Now()
	msg := FromInbound(sms.Inbound{
		From:         "+15550100",
		Body:         "hi",
		Subscription: 1,
		ReceivedAt:   now,
	})

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "+15550100", msg.From)
	assert.Equal(t, 1, msg.Subscription)
	assert.Equal(t, now, msg.ReceivedAt)
	assert.False(t, msg.Read)

	// Fresh id per call.
	assert.NotEqual(t, msg.ID, FromInbound(sms.Inbound{}).ID)
}
