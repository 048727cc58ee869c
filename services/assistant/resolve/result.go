// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resolve implements the tiered ledger name resolution engine:
// exact match, sub-term match, multi-strategy fuzzy search, client-side
// full-scan fallback, and suggestion generation.
package resolve

import (
	"github.com/muniminc/munim/services/assistant/tally"
)

// =============================================================================
// Result Types
// =============================================================================

// Kind tags the outcome of a resolution attempt.
type Kind string

const (
	// KindExactMatch means resolution found exactly one confident ledger.
	KindExactMatch Kind = "exact_match"

	// KindMultipleMatches means 2+ viable candidates need user selection.
	KindMultipleMatches Kind = "multiple_matches"

	// KindSuggestions means no candidate was viable but alternatives exist.
	KindSuggestions Kind = "suggestions"

	// KindNoMatch means nothing resolved and no alternatives were found.
	KindNoMatch Kind = "no_match"
)

// MatchCandidate is a ledger plus the confidence score computed for one
// specific search term. Transient: discarded after the response is built
// unless retained in a pending disambiguation.
type MatchCandidate struct {
	Ledger tally.Ledger `json:"ledger"`

	// Score is match confidence in [0, 100]; higher is more confident.
	Score int `json:"score"`
}

// Result is the tagged outcome of Engine.Resolve.
//
// Description:
//
//	Exactly one payload group is populated per Kind:
//	  KindExactMatch      → Ledger
//	  KindMultipleMatches → Candidates (display set) + Retained (full set)
//	  KindSuggestions     → Suggestions
//	  KindNoMatch         → Message only
//	Candidates is capped at the display limit (5); Retained holds the full
//	ranked set (up to 10) for potential reuse by the disambiguation
//	protocol. Ordering is deterministic: score descending, then strategy
//	priority, then discovery order.
type Result struct {
	Kind Kind `json:"kind"`

	// SearchTerm is the normalized term resolution ran against.
	SearchTerm string `json:"search_term"`

	// Ledger is set for KindExactMatch.
	Ledger tally.Ledger `json:"ledger,omitempty"`

	// Candidates is the user-facing candidate list for KindMultipleMatches,
	// in stable 1-based display order.
	Candidates []MatchCandidate `json:"candidates,omitempty"`

	// Retained is the full ranked candidate set behind Candidates.
	Retained []MatchCandidate `json:"-"`

	// Suggestions is the alternative-name list for KindSuggestions.
	Suggestions []string `json:"suggestions,omitempty"`

	// Message is short human-readable guidance describing the outcome.
	Message string `json:"message"`

	// Tier records which pipeline tier produced the outcome, for logging
	// and metrics ("exact", "subterm", "fuzzy", "full_scan", "suggestion").
	Tier string `json:"-"`
}
