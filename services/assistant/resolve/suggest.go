// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/muniminc/munim/services/assistant/match"
	"github.com/muniminc/munim/services/assistant/tally"
)

// =============================================================================
// Tier 5: Suggestion Generation
// =============================================================================

// categoryPatterns maps common account words to the Tally group names that
// hold the accounts users mean by them. Checked in declaration order so
// suggestion output is deterministic. Fixed dictionary; extension and
// localization happen upstream via vernacular translation, which maps Hindi
// terms onto these English keywords.
var categoryPatterns = []struct {
	keyword string
	parents []string
}{
	{"cash", []string{"Cash-in-Hand"}},
	{"bank", []string{"Bank Accounts", "Bank OD A/c"}},
	{"customer", []string{"Sundry Debtors"}},
	{"supplier", []string{"Sundry Creditors"}},
	{"expense", []string{"Direct Expenses", "Indirect Expenses"}},
	{"income", []string{"Direct Incomes", "Indirect Incomes"}},
}

// staticFallbacks is the last-resort suggestion list, keyed by keyword
// presence in the term. These are names that exist in virtually every
// Tally installation.
var staticFallbacks = []struct {
	keyword string
	names   []string
}{
	{"cash", []string{"Cash", "Petty Cash"}},
	{"bank", []string{"Bank Account"}},
	{"sale", []string{"Sales Account"}},
	{"purchase", []string{"Purchase Account"}},
	{"salary", []string{"Salary", "Staff Salary"}},
	{"rent", []string{"Rent", "Office Rent"}},
}

// suggestionTier generates up to suggestions_max alternative names, trying
// in order: category-pattern lookup, similarity-ranked snapshot scan, and
// the static fallback list. Always returns a terminal result — this is the
// guaranteed end state of the pipeline.
func (e *Engine) suggestionTier(ctx context.Context, term string, snapshot []tally.Ledger, logger *slog.Logger) *Result {
	maxSuggestions := e.weights.Limits.SuggestionsMax

	if snapshot == nil {
		// One more attempt; suggestion quality is much better with data.
		loaded, err := e.loadSnapshot(ctx)
		if err != nil {
			logger.Warn("suggestion tier running without snapshot",
				slog.String("error", err.Error()),
			)
		} else {
			snapshot = loaded
		}
	}

	if names := e.categorySuggestions(term, snapshot, maxSuggestions); len(names) > 0 {
		resolveTierTotal.WithLabelValues("suggestion").Inc()
		return e.suggestions(term, names, "category")
	}

	if names := e.similaritySuggestions(term, snapshot, maxSuggestions); len(names) > 0 {
		resolveTierTotal.WithLabelValues("suggestion").Inc()
		return e.suggestions(term, names, "similarity")
	}

	if names := staticSuggestions(term, maxSuggestions); len(names) > 0 {
		resolveTierTotal.WithLabelValues("suggestion").Inc()
		return e.suggestions(term, names, "static")
	}

	resolveTierTotal.WithLabelValues("no_match").Inc()
	return &Result{
		Kind:       KindNoMatch,
		SearchTerm: term,
		Tier:       "no_match",
		Message: fmt.Sprintf("No ledger matching %q was found. "+
			"Try the exact name as it appears in Tally, or ask for a group like \"customers\" or \"bank accounts\".", term),
	}
}

// categorySuggestions surfaces ledger names from the groups mapped to any
// category keyword present in the term.
func (e *Engine) categorySuggestions(term string, snapshot []tally.Ledger, max int) []string {
	if len(snapshot) == 0 {
		return nil
	}
	termLower := strings.ToLower(term)
	for _, pattern := range categoryPatterns {
		if !strings.Contains(termLower, pattern.keyword) {
			continue
		}
		var names []string
		for _, ledger := range snapshot {
			for _, parent := range pattern.parents {
				if strings.EqualFold(ledger.Parent, parent) {
					names = append(names, ledger.Name)
					break
				}
			}
			if len(names) >= max {
				break
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	return nil
}

// similaritySuggestions scans ledgers whose name contains the first
// scan_prefix_chars of the term, keeps those with similarity above the
// threshold OR sharing a prefix_chars prefix, and ranks by similarity.
func (e *Engine) similaritySuggestions(term string, snapshot []tally.Ledger, max int) []string {
	if len(snapshot) == 0 {
		return nil
	}
	cfg := e.weights.Suggestions

	termUpper := strings.ToUpper(term)
	scanPrefix := termUpper
	if len(scanPrefix) > cfg.ScanPrefixChars {
		scanPrefix = scanPrefix[:cfg.ScanPrefixChars]
	}
	matchPrefix := termUpper
	if len(matchPrefix) > cfg.PrefixChars {
		matchPrefix = matchPrefix[:cfg.PrefixChars]
	}

	type scored struct {
		name       string
		similarity float64
	}
	var results []scored
	seen := make(map[string]bool)
	for _, ledger := range snapshot {
		nameUpper := strings.ToUpper(ledger.Name)
		if seen[nameUpper] {
			continue
		}
		if !strings.Contains(nameUpper, scanPrefix) {
			continue
		}
		similarity := match.Similarity(ledger.Name, term)
		if similarity <= cfg.MinSimilarity && !strings.HasPrefix(nameUpper, matchPrefix) {
			continue
		}
		seen[nameUpper] = true
		results = append(results, scored{name: ledger.Name, similarity: similarity})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].similarity > results[j].similarity
	})
	if len(results) > max {
		results = results[:max]
	}
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.name
	}
	return names
}

// staticSuggestions returns hard-coded fallbacks for keywords present in
// the term.
func staticSuggestions(term string, max int) []string {
	termLower := strings.ToLower(term)
	var names []string
	for _, fallback := range staticFallbacks {
		if !strings.Contains(termLower, fallback.keyword) {
			continue
		}
		for _, name := range fallback.names {
			if len(names) >= max {
				return names
			}
			names = append(names, name)
		}
	}
	return names
}

func (e *Engine) suggestions(term string, names []string, source string) *Result {
	return &Result{
		Kind:        KindSuggestions,
		SearchTerm:  term,
		Suggestions: names,
		Tier:        "suggestion",
		Message: fmt.Sprintf("No exact match for %q. Did you mean one of these? Reply with a number or the full name.", term),
	}
}
