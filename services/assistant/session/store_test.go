// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muniminc/munim/services/assistant/tally"
)

func techPending() *PendingDisambiguation {
	return &PendingDisambiguation{
		SearchTerm: "tech",
		Kind:       PendingMultiMatch,
		Candidates: []Candidate{
			{DisplayName: "Tech Solutions Pvt Ltd", Ledger: tally.Ledger{Name: "Tech Solutions Pvt Ltd"}},
			{DisplayName: "Tech Systems Ltd", Ledger: tally.Ledger{Name: "Tech Systems Ltd"}},
		},
	}
}

func TestPendingDisambiguation_Select(t *testing.T) {
	pending := techPending()

	t.Run("1-based index selects first", func(t *testing.T) {
		candidate, ok, err := pending.Select("1")
		if err != nil || !ok {
			t.Fatalf("Select(1) = ok=%v err=%v", ok, err)
		}
		if candidate.DisplayName != "Tech Solutions Pvt Ltd" {
			t.Errorf("selected %q", candidate.DisplayName)
		}
	})

	t.Run("exact name selects case-insensitively", func(t *testing.T) {
		candidate, ok, err := pending.Select("tech systems ltd")
		if err != nil || !ok {
			t.Fatalf("Select by name = ok=%v err=%v", ok, err)
		}
		if candidate.DisplayName != "Tech Systems Ltd" {
			t.Errorf("selected %q", candidate.DisplayName)
		}
	})

	t.Run("out-of-range index is an ambiguous attempt", func(t *testing.T) {
		_, ok, err := pending.Select("3")
		if !ok {
			t.Fatal("out-of-range index must still count as a selection attempt")
		}
		if !errors.Is(err, ErrAmbiguousContinuation) {
			t.Errorf("err = %v, want ErrAmbiguousContinuation", err)
		}
	})

	t.Run("zero is out of range for 1-based indexing", func(t *testing.T) {
		_, ok, err := pending.Select("0")
		if !ok || !errors.Is(err, ErrAmbiguousContinuation) {
			t.Errorf("Select(0) = ok=%v err=%v", ok, err)
		}
	})

	t.Run("unrelated text is not a selection", func(t *testing.T) {
		_, ok, err := pending.Select("show me sales for march")
		if ok || err != nil {
			t.Errorf("Select(fresh query) = ok=%v err=%v, want not-a-selection", ok, err)
		}
	})

	t.Run("whitespace around index tolerated", func(t *testing.T) {
		candidate, ok, err := pending.Select("  2  ")
		if err != nil || !ok || candidate.DisplayName != "Tech Systems Ltd" {
			t.Errorf("Select(padded 2) = %q ok=%v err=%v", candidate.DisplayName, ok, err)
		}
	})
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.SetPending(ctx, "s1", techPending()); err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	got, err := store.GetPending(ctx, "s1")
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if got == nil || got.SearchTerm != "tech" || len(got.Candidates) != 2 {
		t.Fatalf("unexpected pending %+v", got)
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

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Minute)
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.SetPending(ctx, "s1", techPending()); err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	current = current.Add(9 * time.Minute)
	if got, _ := store.GetPending(ctx, "s1"); got == nil {
		t.Fatal("pending expired before TTL elapsed")
	}

	current = current.Add(2 * time.Minute)
	if got, _ := store.GetPending(ctx, "s1"); got != nil {
		t.Fatal("pending survived past TTL")
	}
}

func TestMemoryStore_SessionsAreIndependent(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	_ = store.SetPending(ctx, "alpha", techPending())

	got, err := store.GetPending(ctx, "beta")
	if err != nil || got != nil {
		t.Errorf("session beta saw session alpha's state: %+v", got)
	}

	_ = store.Clear(ctx, "beta")
	if got, _ := store.GetPending(ctx, "alpha"); got == nil {
		t.Error("clearing beta must not clear alpha")
	}
}

func TestMemoryStore_ConcurrentSessions(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			_ = store.SetPending(ctx, id, techPending())
			_, _ = store.GetPending(ctx, id)
			_ = store.Clear(ctx, id)
		}(i)
	}
	wg.Wait()
}

func TestMemoryStore_SetNilClears(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	_ = store.SetPending(ctx, "s1", techPending())
	_ = store.SetPending(ctx, "s1", nil)
	if got, _ := store.GetPending(ctx, "s1"); got != nil {
		t.Error("SetPending(nil) must clear the slot")
	}
}
