// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package match computes match confidence between a candidate ledger name
// and a search term. The primary Score function drives fuzzy-tier ranking;
// the separate Similarity function drives suggestion ranking only.
package match

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/muniminc/munim/services/assistant/config"
)

// Scorer computes match confidence scores using the tuned weights from the
// embedded scoring configuration.
//
// Description:
//
//	The adjustment constants (+10 near-length, +5 per shared word, −10
//	over-length) are empirically tuned, not derived; they live in config so
//	the whole pipeline sees one consistent set. Scores are clamped to
//	[0, 100].
//
// Thread Safety: Safe for concurrent use (immutable after construction).
type Scorer struct {
	weights *config.ScoringWeights
}

// NewScorer creates a Scorer.
//
// Inputs:
//
//	weights - Loaded scoring weights. Nil falls back to the embedded default.
func NewScorer(weights *config.ScoringWeights) *Scorer {
	if weights == nil {
		weights = config.MustLoadScoringWeights()
	}
	return &Scorer{weights: weights}
}

// Score computes match confidence for a candidate name against a search
// term, in [0, 100].
//
// Description:
//
//	Starts from base (seeded by the query strategy that produced the
//	candidate), then applies:
//	  +near_length_bonus  if len(candidate) <= len(term) + slack
//	  +shared_word_bonus  per case-insensitive whole-word overlap
//	  −over_length_penalty if len(candidate) > len(term) * factor
//	and clamps to [0, 100]. A verbose superset name ("RELIANCE RETAIL
//	VENTURES PRIVATE LIMITED BOMBAY" for term "RELIANCE") is penalized;
//	a near-length match is rewarded.
//
// Inputs:
//
//	candidateName - The ledger name under consideration.
//	term          - The normalized search term.
//	base          - Strategy base score (see config.StrategyBaseScores).
//
// Outputs:
//
//	int - Confidence in [0, 100]. Higher is more confident.
func (s *Scorer) Score(candidateName, term string, base int) int {
	adjust := s.weights.Adjustments
	score := base

	if len(candidateName) <= len(term)+adjust.NearLengthSlack {
		score += adjust.NearLengthBonus
	}

	score += adjust.SharedWordBonus * sharedWordCount(candidateName, term)

	if len(candidateName) > len(term)*adjust.OverLengthFactor {
		score -= adjust.OverLengthPenalty
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Similarity computes normalized Levenshtein similarity in [0, 1],
// case-insensitive: (maxLen − editDistance) / maxLen.
//
// Description:
//
//	Used for SUGGESTION ranking only, never for primary candidate scoring —
//	edit distance over whole names is too blunt for ranking real matches
//	but works well for "did you mean" ordering.
//
// Outputs:
//
//	float64 - 1.0 for identical strings (ignoring case), 0.0 for disjoint.
func Similarity(a, b string) float64 {
	al, bl := strings.ToLower(a), strings.ToLower(b)
	if al == bl {
		return 1.0
	}
	maxLen := len(al)
	if len(bl) > maxLen {
		maxLen = len(bl)
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(al, bl)
	if distance >= maxLen {
		return 0.0
	}
	return float64(maxLen-distance) / float64(maxLen)
}

// WordOverlapRatio reports the fraction of search-term words present in the
// candidate name, case-insensitively. Used by the tier-4 full-scan scorer.
//
// Outputs:
//
//	float64 - 0.0 (no term word occurs) to 1.0 (every term word occurs).
func WordOverlapRatio(candidateName, term string) float64 {
	termWords := strings.Fields(strings.ToLower(term))
	if len(termWords) == 0 {
		return 0.0
	}
	candidateWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(candidateName)) {
		candidateWords[w] = true
	}
	matched := 0
	for _, w := range termWords {
		if candidateWords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(termWords))
}

// sharedWordCount counts case-insensitive whole words present in both
// strings. Duplicate words count once.
func sharedWordCount(a, b string) int {
	aWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(a)) {
		aWords[w] = true
	}
	seen := make(map[string]bool)
	count := 0
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if aWords[w] && !seen[w] {
			seen[w] = true
			count++
		}
	}
	return count
}
