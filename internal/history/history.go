/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history keeps an in-memory ring of recent reconcile outcomes for
// the status endpoints. It is observability state only; the scheduler itself
// stays stateless across invocations.
package history

import (
	"sync"

	"github.com/opswindow/opswindow/internal/reconcile"
)

// Ring is a thread-safe fixed-capacity buffer of outcomes.
type Ring struct {
	mu       sync.RWMutex
	entries  []reconcile.Outcome
	capacity int
	head     int
	count    int
}

// New creates a ring with the specified capacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 200
	}
	return &Ring{
		entries:  make([]reconcile.Outcome, capacity),
		capacity: capacity,
	}
}

// Add records an outcome, evicting the oldest when full.
func (r *Ring) Add(outcome reconcile.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.head] = outcome
	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
}

// Last returns the most recent outcome, if any.
func (r *Ring) Last() (reconcile.Outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return reconcile.Outcome{}, false
	}
	idx := (r.head - 1 + r.capacity) % r.capacity
	return r.entries[idx], true
}

// Recent returns up to limit outcomes, newest first. limit <= 0 returns all.
func (r *Ring) Recent(limit int) []reconcile.Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]reconcile.Outcome, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.head - i + r.capacity) % r.capacity
		out = append(out, r.entries[idx])
	}
	return out
}

// Len reports how many outcomes are buffered.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
