// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session holds per-session conversation state: the pending
// disambiguation slot the multi-turn selection protocol depends on.
package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/muniminc/munim/services/assistant/tally"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	sessionPendingLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "munim",
		Subsystem: "session",
		Name:      "pending_lookups_total",
		Help:      "GetPending outcomes: hit, miss, expired",
	}, []string{"outcome"})
)

// DefaultTTL is how long a pending disambiguation survives without being
// resolved. Ten minutes matches the conversational window: past that, the
// user has moved on and a numeric reply almost certainly is not a selection.
const DefaultTTL = 10 * time.Minute

// ErrAmbiguousContinuation means a reply attempted a selection but did not
// land: an index out of range. Pending state is preserved so the user can
// try again.
var ErrAmbiguousContinuation = errors.New("ambiguous disambiguation reply")

// =============================================================================
// Pending Disambiguation
// =============================================================================

// PendingKind distinguishes what the stored candidate list represents.
type PendingKind string

const (
	// PendingMultiMatch means the candidates were viable scored matches.
	PendingMultiMatch PendingKind = "multi_match"

	// PendingSuggestions means the candidates were soft suggestions.
	PendingSuggestions PendingKind = "suggestions"
)

// Candidate is one selectable entry in a pending disambiguation.
type Candidate struct {
	// DisplayName is the name shown to the user; selection by name matches
	// against this, case-insensitively.
	DisplayName string

	// Ledger is the originating record. Zero-valued for suggestion-kind
	// candidates, which carry only a name.
	Ledger tally.Ledger
}

// PendingDisambiguation is the per-session slot recording the candidate
// list awaiting a user selection. Replaced wholesale, never mutated.
//
// Invariant: at most one active per session.
type PendingDisambiguation struct {
	SearchTerm string
	Candidates []Candidate
	CreatedAt  time.Time
	Kind       PendingKind
}

// Select interprets a user reply against the candidate list.
//
// Description:
//
//	A reply is a selection when it is (a) an integer that parses as a
//	1-based index within bounds, or (b) an exact case-insensitive match of
//	a candidate display name. An in-range index returns that candidate. An
//	OUT-OF-RANGE integer is an attempted selection that failed:
//	ErrAmbiguousContinuation, and the caller must keep the pending state.
//	Any other text is not a selection at all (ok=false): the caller treats
//	it as a fresh query.
//
// Outputs:
//
//	Candidate - The selected candidate when err is nil and ok is true.
//	bool      - False when the reply is not a selection attempt.
//	error     - ErrAmbiguousContinuation for a failed selection attempt.
func (p *PendingDisambiguation) Select(reply string) (Candidate, bool, error) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return Candidate{}, false, nil
	}

	if index, err := strconv.Atoi(trimmed); err == nil {
		if index < 1 || index > len(p.Candidates) {
			return Candidate{}, true, ErrAmbiguousContinuation
		}
		return p.Candidates[index-1], true, nil
	}

	for _, candidate := range p.Candidates {
		if strings.EqualFold(candidate.DisplayName, trimmed) {
			return candidate, true, nil
		}
	}
	return Candidate{}, false, nil
}

// =============================================================================
// Store Interface
// =============================================================================

// Store persists the pending-disambiguation slot per session.
//
// Description:
//
//	Sessions are independent: no state is shared across session IDs.
//	Implementations enforce the TTL — GetPending returns nil for an entry
//	older than the configured lifetime even if it was never cleared.
//	Within one session the transport layer serializes requests, so the
//	contract is atomic read-modify-write of the slot, nothing stronger.
//
// Thread Safety: Implementations must be safe for concurrent use across
// sessions.
type Store interface {
	// SetPending replaces the session's pending slot wholesale.
	SetPending(ctx context.Context, sessionID string, pending *PendingDisambiguation) error

	// GetPending returns the session's pending slot, or (nil, nil) when
	// none exists or the TTL has elapsed.
	GetPending(ctx context.Context, sessionID string) (*PendingDisambiguation, error)

	// Clear removes the session's pending slot. Clearing an absent slot is
	// not an error.
	Clear(ctx context.Context, sessionID string) error
}

// =============================================================================
// In-Memory Store
// =============================================================================

// MemoryStore is the default Store: a mutex-guarded map with lazy expiry.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*PendingDisambiguation

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates a MemoryStore.
//
// Inputs:
//
//	ttl - Entry lifetime. Zero uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*PendingDisambiguation),
		now:     time.Now,
	}
}

// SetPending implements Store.
func (s *MemoryStore) SetPending(_ context.Context, sessionID string, pending *PendingDisambiguation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pending == nil {
		delete(s.entries, sessionID)
		return nil
	}
	if pending.CreatedAt.IsZero() {
		stamped := *pending
		stamped.CreatedAt = s.now()
		pending = &stamped
	}
	s.entries[sessionID] = pending
	return nil
}

// GetPending implements Store. Expired entries are removed on access.
func (s *MemoryStore) GetPending(_ context.Context, sessionID string) (*PendingDisambiguation, error) {
	s.mu.RLock()
	pending, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		sessionPendingLookups.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if s.now().Sub(pending.CreatedAt) > s.ttl {
		s.mu.Lock()
		// Re-check under the write lock; another request may have replaced
		// the slot since the read.
		if current, ok := s.entries[sessionID]; ok && current == pending {
			delete(s.entries, sessionID)
		}
		s.mu.Unlock()
		sessionPendingLookups.WithLabelValues("expired").Inc()
		return nil, nil
	}
	sessionPendingLookups.WithLabelValues("hit").Inc()
	return pending, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}
