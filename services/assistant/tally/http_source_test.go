// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tally

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSource_Query(t *testing.T) {
	t.Run("decodes rows field", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/query" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"rows":[{"name":"CASH","closingBalance":500}]}`))
		}))
		defer srv.Close()

		src := NewHTTPSource(srv.URL, 5*time.Second, nil)
		rows, err := src.Query(context.Background(), "SELECT $Name FROM Ledger")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("got %d rows, want 1", len(rows))
		}
		ledger, ok := LedgerFromRow(rows[0])
		if !ok || ledger.Name != "CASH" {
			t.Errorf("unexpected ledger %+v", ledger)
		}
	})

	t.Run("accepts data field from older bridges", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"$Name":"BANK"}]}`))
		}))
		defer srv.Close()

		src := NewHTTPSource(srv.URL, 5*time.Second, nil)
		rows, err := src.Query(context.Background(), "SELECT *")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("got %d rows, want 1", len(rows))
		}
	})

	t.Run("slow bridge maps to ErrQueryTimeout not ErrSourceUnavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"rows":[]}`))
		}))
		defer srv.Close()

		src := NewHTTPSource(srv.URL, 50*time.Millisecond, nil)
		_, err := src.Query(context.Background(), "SELECT *")
		if err == nil {
			t.Fatal("expected error")
		}
		if !IsTimeout(err) {
			t.Errorf("expected timeout classification, got %v", err)
		}
		if IsUnavailable(err) {
			t.Error("timeout must not mark the source unavailable")
		}
	})

	t.Run("dead bridge maps to ErrSourceUnavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // closed before use

		src := NewHTTPSource(srv.URL, time.Second, nil)
		_, err := src.Query(context.Background(), "SELECT *")
		if err == nil {
			t.Fatal("expected error")
		}
		if !IsUnavailable(err) {
			t.Errorf("expected unavailable classification, got %v", err)
		}
	})

	t.Run("bridge-level error string surfaces as plain error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"unknown collection"}`))
		}))
		defer srv.Close()

		src := NewHTTPSource(srv.URL, time.Second, nil)
		_, err := src.Query(context.Background(), "SELECT * FROM Nope")
		if err == nil {
			t.Fatal("expected error")
		}
		if IsUnavailable(err) || IsTimeout(err) {
			t.Errorf("bridge error should be recoverable, got %v", err)
		}
	})

	t.Run("non-200 status is a recoverable error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		src := NewHTTPSource(srv.URL, time.Second, nil)
		_, err := src.Query(context.Background(), "SELECT *")
		if err == nil {
			t.Fatal("expected error")
		}
		if IsUnavailable(err) {
			t.Errorf("HTTP 500 should not tear down the connection, got %v", err)
		}
	})
}

func TestSourceError_Unwrap(t *testing.T) {
	inner := ErrSourceUnavailable
	wrapped := NewSourceError("CONNECTION_CLOSED", false, inner)
	if !IsUnavailable(wrapped) {
		t.Error("SourceError must unwrap to its sentinel cause")
	}
	if wrapped.Error() == "" {
		t.Error("SourceError must format a message")
	}
}
