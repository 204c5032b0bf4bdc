// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package inbox

import (
	"sort"
	"strings"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory inbox, the default for ephemeral gateways.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]Message
}

// NewMemoryStore creates an empty in-memory inbox.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string]Message)}
}

// Save persists a message.
func (s *MemoryStore) Save(msg Message) error {
	s.mu.Lock()
	s.messages[msg.ID] = msg
	s.mu.Unlock()
	return nil
}

// Get retrieves a message by id.
func (s *MemoryStore) Get(id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

// List returns up to limit messages, newest first.
func (s *MemoryStore) List(limit int) ([]Message, error) {
	return s.collect(limit, func(Message) bool { return true })
}

// Search returns messages whose sender or body contains the query.
func (s *MemoryStore) Search(query string, limit int) ([]Message, error) {
	q := strings.ToLower(query)
	return s.collect(limit, func(m Message) bool {
		return strings.Contains(strings.ToLower(m.From), q) ||
			strings.Contains(strings.ToLower(m.Body), q)
	})
}

func (s *MemoryStore) collect(limit int, match func(Message) bool) ([]Message, error) {
	s.mu.RLock()
	result := make([]Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if match(msg) {
			result = append(result, msg)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkRead flags a message as read.
func (s *MemoryStore) MarkRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Read = true
	s.messages[id] = msg
	return nil
}

// Delete removes a message.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
