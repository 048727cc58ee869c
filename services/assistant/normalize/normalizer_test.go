// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package normalize

import (
	"strings"
	"testing"
)

func TestNormalizer_Clean(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips question boilerplate",
			in:   "what is the closing balance of ACME TRADERS?",
			want: "ACME TRADERS",
		},
		{
			name: "strips show me",
			in:   "show me HDFC BANK",
			want: "HDFC BANK",
		},
		{
			name: "echo duplication collapses",
			in:   "7 SHORE IMEX (P) SHORE IMEX (P)",
			want: "7 SHORE IMEX (P)",
		},
		{
			name: "dots and commas survive",
			in:   "what is the balance of A.A.MALLA & CO.?",
			want: "A.A.MALLA & CO.",
		},
		{
			name: "question and exclamation marks removed",
			in:   "RELIANCE!?",
			want: "RELIANCE",
		},
		{
			name: "whitespace collapses",
			in:   "  TATA   STEEL   ",
			want: "TATA STEEL",
		},
		{
			name: "bare name passes through",
			in:   "SHARMA ENTERPRISES",
			want: "SHARMA ENTERPRISES",
		},
		{
			name: "case preserved from first occurrence",
			in:   "Tech SOLUTIONS tech solutions",
			want: "Tech SOLUTIONS",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "whitespace-only input",
			in:   "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizer_Clean_Idempotent(t *testing.T) {
	n := New(nil)
	inputs := []string{
		"what is the closing balance of ACME TRADERS?",
		"7 SHORE IMEX (P) SHORE IMEX (P)",
		"A.A.MALLA & CO.",
		"show me HDFC BANK",
		"balance",
	}
	for _, in := range inputs {
		once := n.Clean(in)
		twice := n.Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestNormalizer_Clean_NeverEmptyForNonEmptyInput(t *testing.T) {
	n := New(nil)
	// Pure boilerplate still yields a non-empty term.
	for _, in := range []string{"balance", "what is", "closing balance?"} {
		if got := n.Clean(in); strings.TrimSpace(got) == "" {
			t.Errorf("Clean(%q) returned empty for non-empty input", in)
		}
	}
}

func TestNormalizer_TranslateVernacular(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "hindi financial terms translate",
			in:   "mera khata kitna hai",
			// kitna → "how much", which the stop-word pass then removes.
			want: "mera ledger hai",
		},
		{
			name: "stop words stripped after translation",
			in:   "how much udhaar is there",
			want: "outstanding there",
		},
		{
			name: "stock vocabulary",
			in:   "saman list",
			want: "stock list",
		},
		{
			name: "word boundaries respected",
			in:   "khatabook",
			want: "khatabook", // "khata" inside a word must NOT translate
		},
		{
			name: "untranslatable text passes through",
			in:   "RELIANCE INDUSTRIES",
			want: "RELIANCE INDUSTRIES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.TranslateVernacular(tt.in); got != tt.want {
				t.Errorf("TranslateVernacular(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizer_TranslateVernacular_EmptyResultReturnsOriginal(t *testing.T) {
	n := New(nil)
	// Input made entirely of stop words would empty out; the original must
	// come back unchanged.
	in := "how much is my the"
	if got := n.TranslateVernacular(in); got != in {
		t.Errorf("TranslateVernacular(%q) = %q, want original back", in, got)
	}
}
