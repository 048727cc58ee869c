// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"testing"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

func openTestDB(t *testing.T) *dgbadger.DB {
	t.Helper()
	opts := dgbadger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := dgbadger.Open(opts)
	if err != nil {
		t.Fatalf("opening badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := NewBadgerStore(openTestDB(t), time.Minute, nil)
	ctx := context.Background()

	if err := store.SetPending(ctx, "s1", techPending()); err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	got, err := store.GetPending(ctx, "s1")
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a pending slot")
	}
	if got.SearchTerm != "tech" || got.Kind != PendingMultiMatch {
		t.Errorf("decoded slot = %+v", got)
	}
	if len(got.Candidates) != 2 || got.Candidates[1].DisplayName != "Tech Systems Ltd" {
		t.Errorf("candidates survived poorly: %+v", got.Candidates)
	}
	if got.CreatedAt.IsZero() {
		t.Error("SetPending must stamp CreatedAt")
	}

	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got, err = store.GetPending(ctx, "s1")
	if err != nil || got != nil {
		t.Errorf("after Clear: pending=%+v err=%v, want nil, nil", got, err)
	}
}

func TestBadgerStore_MissIsNotAnError(t *testing.T) {
	store := NewBadgerStore(openTestDB(t), time.Minute, nil)

	got, err := store.GetPending(context.Background(), "never-set")
	if err != nil || got != nil {
		t.Errorf("miss = %+v, %v, want nil, nil", got, err)
	}
}

func TestBadgerStore_SetNilClears(t *testing.T) {
	store := NewBadgerStore(openTestDB(t), time.Minute, nil)
	ctx := context.Background()

	_ = store.SetPending(ctx, "s1", techPending())
	if err := store.SetPending(ctx, "s1", nil); err != nil {
		t.Fatalf("SetPending(nil) failed: %v", err)
	}
	if got, _ := store.GetPending(ctx, "s1"); got != nil {
		t.Error("SetPending(nil) must clear the slot")
	}
}

func TestBadgerStore_ReplaceWholesale(t *testing.T) {
	store := NewBadgerStore(openTestDB(t), time.Minute, nil)
	ctx := context.Background()

	_ = store.SetPending(ctx, "s1", techPending())

	replacement := &PendingDisambiguation{
		SearchTerm: "sharma",
		Kind:       PendingSuggestions,
		Candidates: []Candidate{{DisplayName: "SHARMA TRADERS"}},
	}
	if err := store.SetPending(ctx, "s1", replacement); err != nil {
		t.Fatalf("replacing slot failed: %v", err)
	}

	got, err := store.GetPending(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("GetPending = %+v, %v", got, err)
	}
	if got.SearchTerm != "sharma" || got.Kind != PendingSuggestions || len(got.Candidates) != 1 {
		t.Errorf("old slot leaked through: %+v", got)
	}
}
