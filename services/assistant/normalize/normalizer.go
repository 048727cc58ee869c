// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package normalize turns raw user text into a canonical search term:
// boilerplate stripping, punctuation cleanup, repeated-token dedupe, and
// vernacular (Hindi/Hinglish) vocabulary translation.
package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/muniminc/munim/services/assistant/config"
)

// Normalizer cleans raw user input into search terms.
//
// Description:
//
//	Two separate operations are exposed. Clean prepares a ledger-name
//	search term: it strips question boilerplate ("what is", "closing
//	balance of", ...), removes ? and ! while PRESERVING dots and commas
//	(significant in business names like "A.A.MALLA & CO."), and collapses
//	case-insensitively repeated token runs — a defense against transport
//	echo bugs that duplicate the message body ("7 SHORE IMEX (P) SHORE
//	IMEX (P)"). TranslateVernacular maps Hindi/Hinglish financial terms to
//	English before category/stock searches.
//
//	All regexes are compiled once at construction; Normalizer is immutable
//	afterwards.
//
// Thread Safety: Safe for concurrent use.
type Normalizer struct {
	boilerplate  []*regexp.Regexp
	translations []translationRule
	stopWords    map[string]bool
}

// translationRule is one compiled vocabulary replacement.
type translationRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// punctStripper drops ? and ! only. Dots and commas stay.
var punctStripper = strings.NewReplacer("?", "", "!", "")

// whitespaceCollapser folds any whitespace run into a single space.
var whitespaceCollapser = regexp.MustCompile(`\s+`)

// New creates a Normalizer from the vocabulary configuration.
//
// Inputs:
//
//	vocab - Loaded vocabulary. Nil falls back to the embedded default.
func New(vocab *config.Vocabulary) *Normalizer {
	if vocab == nil {
		vocab = config.MustLoadVocabulary()
	}

	n := &Normalizer{
		stopWords: make(map[string]bool, len(vocab.StopWords)),
	}

	for _, phrase := range vocab.Boilerplate {
		n.boilerplate = append(n.boilerplate,
			regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(phrase)+`\b`))
	}

	// Longer vernacular terms first so "bank ka" wins over any single-word
	// overlap. Ties break alphabetically for deterministic construction.
	terms := make([]string, 0, len(vocab.Translations))
	for term := range vocab.Translations {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	for _, term := range terms {
		n.translations = append(n.translations, translationRule{
			pattern:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`),
			replacement: vocab.Translations[term],
		})
	}

	for _, word := range vocab.StopWords {
		n.stopWords[strings.ToLower(word)] = true
	}

	return n
}

// Clean produces a canonical ledger-name search term from raw user text.
//
// Description:
//
//	Strips boilerplate phrases, removes ?/!, deduplicates repeated tokens
//	case-insensitively (first occurrence keeps its original casing), and
//	collapses whitespace. Idempotent: Clean(Clean(x)) == Clean(x).
//
// Outputs:
//
//	string - The search term. Empty only if raw was empty/whitespace.
func (n *Normalizer) Clean(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	cleaned := punctStripper.Replace(trimmed)
	for _, re := range n.boilerplate {
		cleaned = re.ReplaceAllString(cleaned, " ")
	}
	cleaned = strings.TrimSpace(whitespaceCollapser.ReplaceAllString(cleaned, " "))
	cleaned = dedupeTokens(cleaned)

	if cleaned == "" {
		// Everything was boilerplate ("what is the balance?"). Fall back to
		// the punctuation-stripped input so the caller still has a term.
		return strings.TrimSpace(whitespaceCollapser.ReplaceAllString(punctStripper.Replace(trimmed), " "))
	}
	return cleaned
}

// TranslateVernacular maps Hindi/Hinglish financial vocabulary to English,
// strips stop words, and collapses whitespace.
//
// Description:
//
//	Replacement is word-boundary safe and case-insensitive; longer phrases
//	are applied before shorter terms. If translation plus stop-word
//	stripping would empty the string, the ORIGINAL input is returned
//	unmodified — an aggressive dictionary must never eat the query.
//
// Outputs:
//
//	string - The translated term, or raw unchanged if the result would be
//	         empty.
func (n *Normalizer) TranslateVernacular(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	translated := trimmed
	for _, rule := range n.translations {
		translated = rule.pattern.ReplaceAllString(translated, rule.replacement)
	}

	var kept []string
	for _, token := range strings.Fields(translated) {
		if n.stopWords[strings.ToLower(token)] {
			continue
		}
		kept = append(kept, token)
	}

	result := strings.Join(kept, " ")
	if result == "" {
		return raw
	}
	return result
}

// dedupeTokens removes case-insensitively repeated tokens while preserving
// first-seen order and original casing. "7 SHORE IMEX (P) SHORE IMEX (P)"
// becomes "7 SHORE IMEX (P)".
func dedupeTokens(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s
	}
	seen := make(map[string]bool, len(tokens))
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		key := strings.ToLower(token)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}
