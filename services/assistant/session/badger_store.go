// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

// =============================================================================
// BadgerStore — Persistent Pending-Disambiguation Slots
// =============================================================================
//
// The in-memory store loses pending disambiguations on restart: a user who
// was just shown "reply 1-5" gets a confused fresh-query answer after a
// deploy. BadgerDB keeps the slot across restarts with three properties
// that fit this use exactly:
//
//	1. Embedded — no network dependency for what is conversational state.
//	2. Native TTL — the 10-minute expiry is enforced by BadgerDB's GC, not
//	   application code. Expired keys return ErrKeyNotFound, which the
//	   store treats as "no pending state".
//	3. Cheap writes — one gob-encoded value per session, replaced
//	   wholesale, matching the slot's replace-never-mutate contract.
//
// Storage layout:
//
//	session/pending/v1/{sessionID}  →  gob-encoded PendingDisambiguation
//	                                    TTL: configured (default 10 min)

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// pendingKeyPrefix is versioned to allow future format changes without
// collision.
const pendingKeyPrefix = "session/pending/v1/"

// BadgerStore implements Store backed by a BadgerDB instance.
//
// Description:
//
//	The DB is opened by the caller (typically in main) and must outlive the
//	store; the store does not own the DB lifecycle. Values are gob-encoded:
//	compact, fast, and private to this process — nothing else reads these
//	keys.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine.
type BadgerStore struct {
	db     *dgbadger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerStore creates a BadgerStore over an opened DB.
//
// Inputs:
//
//	db     - Opened BadgerDB handle. Must not be nil.
//	ttl    - Slot lifetime. Zero uses DefaultTTL.
//	logger - Logger for diagnostics. Nil uses slog.Default().
func NewBadgerStore(db *dgbadger.DB, ttl time.Duration, logger *slog.Logger) *BadgerStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, ttl: ttl, logger: logger}
}

// SetPending implements Store.
func (s *BadgerStore) SetPending(_ context.Context, sessionID string, pending *PendingDisambiguation) error {
	if pending == nil {
		return s.clear(sessionID)
	}
	if pending.CreatedAt.IsZero() {
		stamped := *pending
		stamped.CreatedAt = time.Now()
		pending = &stamped
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pending); err != nil {
		return fmt.Errorf("session: encoding pending slot: %w", err)
	}

	err := s.db.Update(func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry([]byte(pendingKeyPrefix+sessionID), buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("session: persisting pending slot: %w", err)
	}
	return nil
}

// GetPending implements Store. TTL expiry is BadgerDB's job; an expired or
// absent key is a plain miss.
func (s *BadgerStore) GetPending(_ context.Context, sessionID string) (*PendingDisambiguation, error) {
	var pending *PendingDisambiguation
	err := s.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(pendingKeyPrefix + sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded PendingDisambiguation
			if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&decoded); err != nil {
				return fmt.Errorf("decoding pending slot: %w", err)
			}
			pending = &decoded
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			sessionPendingLookups.WithLabelValues("miss").Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("session: reading pending slot: %w", err)
	}
	sessionPendingLookups.WithLabelValues("hit").Inc()
	return pending, nil
}

// Clear implements Store.
func (s *BadgerStore) Clear(_ context.Context, sessionID string) error {
	return s.clear(sessionID)
}

func (s *BadgerStore) clear(sessionID string) error {
	err := s.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Delete([]byte(pendingKeyPrefix + sessionID))
	})
	if err != nil && !errors.Is(err, dgbadger.ErrKeyNotFound) {
		return fmt.Errorf("session: clearing pending slot: %w", err)
	}
	return nil
}
