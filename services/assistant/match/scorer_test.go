// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package match

import (
	"math"
	"testing"
)

func TestScorer_Score(t *testing.T) {
	s := NewScorer(nil)

	tests := []struct {
		name      string
		candidate string
		term      string
		base      int
		want      int
	}{
		{
			name:      "near-length match gets length bonus plus word bonus",
			candidate: "ACME LTD",
			term:      "ACME LTD",
			base:      80,
			// +10 near-length, +5*2 shared words ("acme", "ltd")
			want: 100,
		},
		{
			name:      "short candidate short term",
			candidate: "CASH",
			term:      "CASH",
			base:      90,
			// +10 near-length, +5 shared word, clamped
			want: 100,
		},
		{
			name:      "verbose superset penalized",
			candidate: "RELIANCE RETAIL VENTURES PRIVATE LIMITED BOMBAY BRANCH",
			term:      "RELIANCE",
			base:      80,
			// no near-length bonus, +5 shared word, −10 over-length
			want: 75,
		},
		{
			name:      "no shared words no bonuses",
			candidate: "UNRELATED VERY LONG COMPANY NAME HERE",
			term:      "XYZ",
			base:      70,
			// −10 over-length only
			want: 60,
		},
		{
			name:      "clamped at zero",
			candidate: "A VERY LONG CANDIDATE NAME WITH NOTHING SHARED",
			term:      "Q",
			base:      5,
			want:      0,
		},
		{
			name:      "clamped at one hundred",
			candidate: "X Y",
			term:      "X Y",
			base:      95,
			want:      100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.candidate, tt.term, tt.base); got != tt.want {
				t.Errorf("Score(%q, %q, %d) = %d, want %d", tt.candidate, tt.term, tt.base, got, tt.want)
			}
		})
	}
}

func TestScorer_Score_HigherBaseWinsForSameName(t *testing.T) {
	s := NewScorer(nil)
	// The same candidate found by a starts-with strategy (90) must outscore
	// the per-word strategy (70) — strategy specificity orders candidates.
	high := s.Score("TECH SOLUTIONS", "TECH", 90)
	low := s.Score("TECH SOLUTIONS", "TECH", 70)
	if high <= low {
		t.Errorf("starts-with score %d not above per-word score %d", high, low)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "CASH", "CASH", 1.0},
		{"identical ignoring case", "Cash", "CASH", 1.0},
		{"empty both", "", "", 1.0},
		{"one edit", "CASH", "CASK", 0.75},
		{"disjoint short vs long", "AB", "XYZXYZXYZ", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{
		{"TECH SOLUTIONS PVT LTD", "TECH"},
		{"A.A.MALLA & CO.", "AAMALLA"},
		{"", "X"},
	}
	for _, p := range pairs {
		got := Similarity(p[0], p[1])
		if got < 0.0 || got > 1.0 {
			t.Errorf("Similarity(%q, %q) = %v out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestWordOverlapRatio(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		term      string
		want      float64
	}{
		{"all words present", "TECH SOLUTIONS PVT LTD", "tech solutions", 1.0},
		{"half present", "TECH SYSTEMS", "tech solutions", 0.5},
		{"none present", "SHARMA TRADERS", "tech solutions", 0.0},
		{"empty term", "ANY", "", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WordOverlapRatio(tt.candidate, tt.term)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("WordOverlapRatio(%q, %q) = %v, want %v", tt.candidate, tt.term, got, tt.want)
			}
		})
	}
}
