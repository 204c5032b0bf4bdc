// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package inbox

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/s2"
)

var _ Store = (*BadgerStore)(nil)

// BadgerStore is a persistent inbox backed by BadgerDB. Values are stored
// as s2-compressed JSON; inbound bodies compress well and the inbox can
// outlive many gateway restarts.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig holds BadgerDB configuration.
type BadgerConfig struct {
	Dir string // Directory for BadgerDB data
}

// NewBadgerStore opens a persistent inbox.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = nil // Disable BadgerDB's internal logging
	// Inbound messages are small and re-readable from the SIM on loss.
	opts.SyncWrites = false
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger inbox: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return s2.Encode(nil, data), nil
}

func decode(val []byte) (Message, error) {
	data, err := s2.Decode(nil, val)
	if err != nil {
		return Message{}, fmt.Errorf("decompress message: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	return msg, nil
}

// Save persists a message.
func (s *BadgerStore) Save(msg Message) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(msg.ID), data)
	})
}

// Get retrieves a message by id.
func (s *BadgerStore) Get(id string) (Message, error) {
	var msg Message
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			msg, err = decode(val)
			return err
		})
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// List returns up to limit messages, newest first.
func (s *BadgerStore) List(limit int) ([]Message, error) {
	return s.scan(limit, func(Message) bool { return true })
}

// Search returns messages whose sender or body contains the query.
func (s *BadgerStore) Search(query string, limit int) ([]Message, error) {
	q := strings.ToLower(query)
	return s.scan(limit, func(m Message) bool {
		return strings.Contains(strings.ToLower(m.From), q) ||
			strings.Contains(strings.ToLower(m.Body), q)
	})
}

func (s *BadgerStore) scan(limit int, match func(Message) bool) ([]Message, error) {
	var result []Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				msg, err := decode(val)
				if err != nil {
					return err
				}
				if match(msg) {
					result = append(result, msg)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkRead flags a message as read.
func (s *BadgerStore) MarkRead(id string) error {
	msg, err := s.Get(id)
	if err != nil {
		return err
	}
	msg.Read = true
	return s.Save(msg)
}

// Delete removes a message.
func (s *BadgerStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(id)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete([]byte(id))
	})
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
