// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"fmt"
	"strings"

	"github.com/muniminc/munim/services/assistant/config"
)

// =============================================================================
// Fuzzy Strategy Table
// =============================================================================
//
// Tier 3 runs several independent query strategies against the data source
// and merges their results. The strategies are MODELED AS DATA — an ordered
// table of {name, base score, priority, query builder} — not hand-duplicated
// query blocks. This keeps the base-score seeding next to the query that
// earns it and makes the fan-out trivially parallel: the engine issues all
// built queries concurrently and merges in table order, so results stay
// deterministic regardless of arrival order.

// ledgerColumns is the projection every resolution query selects.
const ledgerColumns = "$Name, $Parent, $ClosingBalance"

// fullScanSQL loads the entire ledger snapshot in one query. Used by the
// tier-2 client-side exact scan and the tier-4 fallback scan.
const fullScanSQL = "SELECT " + ledgerColumns + " FROM Ledger"

// Strategy is one fuzzy query strategy.
type Strategy struct {
	// Name identifies the strategy in logs, metrics, and config
	// ("starts_with", "contains", "dot_normalized", "per_word").
	Name string

	// Priority orders strategies for deterministic merging; lower merges
	// first. Assigned from table position.
	Priority int

	// BaseScore seeds candidates found by this strategy. More specific
	// strategies seed higher.
	BaseScore int

	// Queries builds the SQL statements for a search term. Most strategies
	// emit one statement; per_word emits one per meaningful word. An empty
	// slice means the strategy has nothing to ask for this term.
	Queries func(term string) []string
}

// Strategies builds the ordered fuzzy strategy table with base scores taken
// from the scoring configuration.
//
// Description:
//
//	Table order IS merge priority: starts_with (90) before dot_normalized
//	(85) before contains (80) before per_word (70). The dot_normalized
//	strategy strips dots and spaces from both sides, which is what lets
//	"AAMALLA" and "A A MALLA" find "A.A.MALLA & CO.".
func Strategies(weights *config.ScoringWeights) []Strategy {
	base := weights.StrategyBaseScores
	table := []Strategy{
		{
			Name:      "starts_with",
			BaseScore: base["starts_with"],
			Queries: func(term string) []string {
				return []string{fmt.Sprintf(
					"SELECT %s FROM Ledger WHERE UPPER($Name) LIKE '%s%%'",
					ledgerColumns, escapeSQL(strings.ToUpper(term)))}
			},
		},
		{
			Name:      "dot_normalized",
			BaseScore: base["dot_normalized"],
			Queries: func(term string) []string {
				// Both sides are compacted, so a plain "AAMALLA" term still
				// reaches the dotted "A.A.MALLA" name. Never skipped.
				compact := compactName(term)
				if compact == "" {
					return nil
				}
				return []string{fmt.Sprintf(
					"SELECT %s FROM Ledger WHERE REPLACE(REPLACE(UPPER($Name), '.', ''), ' ', '') LIKE '%%%s%%'",
					ledgerColumns, escapeSQL(compact))}
			},
		},
		{
			Name:      "contains",
			BaseScore: base["contains"],
			Queries: func(term string) []string {
				return []string{fmt.Sprintf(
					"SELECT %s FROM Ledger WHERE UPPER($Name) LIKE '%%%s%%'",
					ledgerColumns, escapeSQL(strings.ToUpper(term)))}
			},
		},
		{
			Name:      "per_word",
			BaseScore: base["per_word"],
			Queries: func(term string) []string {
				words := MeaningfulWords(term)
				if len(words) < 2 {
					// Single-word terms are already covered by contains.
					return nil
				}
				queries := make([]string, 0, len(words))
				for _, word := range words {
					queries = append(queries, fmt.Sprintf(
						"SELECT %s FROM Ledger WHERE UPPER($Name) LIKE '%%%s%%'",
						ledgerColumns, escapeSQL(strings.ToUpper(word))))
				}
				return queries
			},
		},
	}
	for i := range table {
		table[i].Priority = i
	}
	return table
}

// subTermStopwords are words skipped by the sub-term exact tier and the
// per_word strategy: connectives and company-suffix noise that match half
// the ledger book.
var subTermStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"&": true, "co": true, "ltd": true, "pvt": true, "p": true, "s": true,
}

// MeaningfulWords returns the term's words longer than two characters,
// excluding the stop-word set, in original order.
func MeaningfulWords(term string) []string {
	var words []string
	for _, word := range strings.Fields(term) {
		trimmed := strings.Trim(word, ".,()")
		if len(trimmed) <= 2 {
			continue
		}
		if subTermStopwords[strings.ToLower(trimmed)] {
			continue
		}
		words = append(words, trimmed)
	}
	return words
}

// compactName uppercases and strips dots and spaces: "A.A.Malla & Co." →
// "AAMALLA&CO". Applied to both sides of the dot_normalized comparison.
func compactName(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// escapeSQL doubles single quotes for safe literal embedding.
func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
