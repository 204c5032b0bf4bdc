// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides per-destination send rate limiting. A rejected
// send fails fast; the core never queues or retries it.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DestinationLimiter manages one token bucket per destination address.
type DestinationLimiter struct {
	mu       sync.Mutex
	limiters map[string]*destEntry
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	stopCh   chan struct{}
}

type destEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewDestinationLimiter creates a per-destination limiter. r is sends per
// second per destination, burst the burst allowance.
func NewDestinationLimiter(r float64, burst int, cleanupInterval time.Duration) *DestinationLimiter {
	l := &DestinationLimiter{
		limiters: make(map[string]*destEntry),
		rate:     rate.Limit(r),
		burst:    burst,
		cleanup:  cleanupInterval,
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow checks if a send to the given destination is allowed.
func (l *DestinationLimiter) Allow(destination string) bool {
	if destination == "" {
		return true
	}

	l.mu.Lock()
	entry, exists := l.limiters[destination]
	if !exists {
		entry = &destEntry{
			limiter:  rate.NewLimiter(l.rate, l.burst),
			lastSeen: time.Now(),
		}
		l.limiters[destination] = entry
	} else {
		entry.lastSeen = time.Now()
	}
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// cleanupLoop periodically removes stale entries.
func (l *DestinationLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStale()
		case <-l.stopCh:
			return
		}
	}
}

func (l *DestinationLimiter) cleanupStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := time.Now().Add(-l.cleanup * 2)
	for dest, entry := range l.limiters {
		if entry.lastSeen.Before(threshold) {
			delete(l.limiters, dest)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *DestinationLimiter) Stop() {
	close(l.stopCh)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool          `yaml:"enabled"`
	Rate            float64       `yaml:"rate"`             // sends per second per destination
	Burst           int           `yaml:"burst"`            // burst allowance
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // cleanup interval for stale entries
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		Rate:            1, // 1 send per second per destination
		Burst:           5,
		CleanupInterval: 5 * time.Minute,
	}
}

// Manager wraps the limiter behind the enabled flag.
type Manager struct {
	config   Config
	dest     *DestinationLimiter
	disabled bool
}

// NewManager creates a new rate limit manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{disabled: true, config: cfg}
	}
	return &Manager{
		config: cfg,
		dest:   NewDestinationLimiter(cfg.Rate, cfg.Burst, cfg.CleanupInterval),
	}
}

// AllowSend checks if a send to the given destination is allowed.
func (m *Manager) AllowSend(destination string) bool {
	if m == nil || m.disabled || m.dest == nil {
		return true
	}
	return m.dest.Allow(destination)
}

// Stop stops the rate limit manager and cleans up resources.
func (m *Manager) Stop() {
	if m != nil && m.dest != nil {
		m.dest.Stop()
	}
}
