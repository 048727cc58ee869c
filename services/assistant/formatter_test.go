// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"strings"
	"testing"

	"github.com/muniminc/munim/services/assistant/resolve"
	"github.com/muniminc/munim/services/assistant/tally"
)

func TestFormatBalance(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{"zero", 0, "₹0.00"},
		{"small debit", 123.45, "₹123.45 Dr"},
		{"three digits exactly", 999, "₹999.00 Dr"},
		{"first indian group", 1234, "₹1,234.00 Dr"},
		{"lakh grouping", 123456.78, "₹1,23,456.78 Dr"},
		{"ten lakh grouping", 1234567.5, "₹12,34,567.50 Dr"},
		{"crore grouping", 123456789, "₹12,34,56,789.00 Dr"},
		{"credit side", -2500, "₹2,500.00 Cr"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatBalance(tc.amount); got != tc.want {
				t.Errorf("FormatBalance(%v) = %q, want %q", tc.amount, got, tc.want)
			}
		})
	}
}

func TestFormatResult_ExactMatch(t *testing.T) {
	response := formatResult(&resolve.Result{
		Kind:       resolve.KindExactMatch,
		SearchTerm: "hdfc bank",
		Ledger:     tally.Ledger{Name: "HDFC BANK", Parent: "Bank Accounts", ClosingBalance: 150000},
	})

	if response.Kind != "exact_match" {
		t.Errorf("kind = %q", response.Kind)
	}
	if response.Ledger == nil || response.Ledger.Balance != "₹1,50,000.00 Dr" {
		t.Errorf("ledger view = %+v", response.Ledger)
	}
	if !strings.Contains(response.Message, "HDFC BANK") {
		t.Errorf("message omits ledger name: %q", response.Message)
	}
}

func TestFormatResult_MultipleMatchesNumbering(t *testing.T) {
	response := formatResult(&resolve.Result{
		Kind:       resolve.KindMultipleMatches,
		SearchTerm: "tech",
		Candidates: []resolve.MatchCandidate{
			{Ledger: tally.Ledger{Name: "Tech Solutions Pvt Ltd", Parent: "Sundry Debtors"}, Score: 85},
			{Ledger: tally.Ledger{Name: "Tech Systems Ltd", Parent: "Sundry Debtors"}, Score: 85},
		},
	})

	if len(response.Candidates) != 2 {
		t.Fatalf("candidates = %+v", response.Candidates)
	}
	for i, candidate := range response.Candidates {
		if candidate.Index != i+1 {
			t.Errorf("candidate %d has index %d, numbering must be stable and 1-based", i, candidate.Index)
		}
	}
	if !strings.Contains(response.Message, "1. Tech Solutions Pvt Ltd") ||
		!strings.Contains(response.Message, "2. Tech Systems Ltd") {
		t.Errorf("message lacks numbered list: %q", response.Message)
	}
}

func TestFormatResult_Suggestions(t *testing.T) {
	response := formatResult(&resolve.Result{
		Kind:        resolve.KindSuggestions,
		SearchTerm:  "csah",
		Suggestions: []string{"Cash", "Cash at Bank"},
	})

	if len(response.Suggestions) != 2 {
		t.Errorf("suggestions = %v", response.Suggestions)
	}
	if !strings.Contains(response.Message, "Did you mean") {
		t.Errorf("message = %q", response.Message)
	}
}

func TestFormatResult_NoMatchKeepsEngineMessage(t *testing.T) {
	response := formatResult(&resolve.Result{
		Kind:    resolve.KindNoMatch,
		Message: "guidance from the engine",
	})
	if response.Message != "guidance from the engine" {
		t.Errorf("message = %q", response.Message)
	}
}
