// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Scoring Weights
// =============================================================================

//go:embed scoring_weights.yaml
var defaultScoringWeightsYAML []byte

// ScoringWeights holds the empirically tuned constants driving ledger name
// resolution: per-strategy base scores, scorer adjustments, full-scan
// scores, and surfacing limits.
//
// Description:
//
//	The values are tuned, not derived. They must stay consistent across the
//	pipeline so rankings are reproducible; do not re-derive them per call
//	site. Loaded once from scoring_weights.yaml and cached.
//
// # Thread Safety
//
// Immutable after loading; safe for concurrent use.
type ScoringWeights struct {
	// StrategyBaseScores seeds fuzzy candidates by the strategy that found
	// them: starts_with=90, dot_normalized=85, contains=80, per_word=70.
	StrategyBaseScores map[string]int `yaml:"strategy_base_scores"`

	Adjustments Adjustments    `yaml:"adjustments"`
	FullScan    FullScanScores `yaml:"full_scan"`
	Limits      Limits         `yaml:"limits"`
	Suggestions Suggestions    `yaml:"suggestions"`
}

// Adjustments are the match scorer's additive tweaks on top of a base score.
type Adjustments struct {
	NearLengthBonus   int `yaml:"near_length_bonus"`
	NearLengthSlack   int `yaml:"near_length_slack"`
	SharedWordBonus   int `yaml:"shared_word_bonus"`
	OverLengthPenalty int `yaml:"over_length_penalty"`
	OverLengthFactor  int `yaml:"over_length_factor"`
}

// FullScanScores is the tier-4 client-side scan's three-level scheme.
type FullScanScores struct {
	Exact          int `yaml:"exact"`
	Contains       int `yaml:"contains"`
	WordOverlapMax int `yaml:"word_overlap_max"`
}

// Limits controls how many candidates are retained and surfaced.
type Limits struct {
	KeepTop        int `yaml:"keep_top"`
	DisplayTop     int `yaml:"display_top"`
	SuggestionsMax int `yaml:"suggestions_max"`
}

// Suggestions holds the suggestion-tier thresholds.
type Suggestions struct {
	MinSimilarity   float64 `yaml:"min_similarity"`
	PrefixChars     int     `yaml:"prefix_chars"`
	ScanPrefixChars int     `yaml:"scan_prefix_chars"`
}

var (
	cachedScoringWeights *ScoringWeights
	scoringWeightsOnce   sync.Once
	scoringWeightsErr    error
)

// LoadScoringWeights loads and caches the scoring weights from the embedded
// YAML configuration. Returns the cached result on subsequent calls.
//
// # Outputs
//
//   - *ScoringWeights: The loaded weights. Never nil on success.
//   - error: Non-nil if YAML parsing fails or required fields are missing.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadScoringWeights() (*ScoringWeights, error) {
	scoringWeightsOnce.Do(func() {
		var w ScoringWeights
		if err := yaml.Unmarshal(defaultScoringWeightsYAML, &w); err != nil {
			scoringWeightsErr = fmt.Errorf("parsing scoring_weights.yaml: %w", err)
			return
		}
		if err := w.validate(); err != nil {
			scoringWeightsErr = fmt.Errorf("invalid scoring_weights.yaml: %w", err)
			return
		}
		cachedScoringWeights = &w
		slog.Info("scoring weights loaded",
			slog.Int("strategies", len(w.StrategyBaseScores)),
		)
	})
	return cachedScoringWeights, scoringWeightsErr
}

// MustLoadScoringWeights loads the weights or panics. Resolution cannot run
// without them, so a broken embedded file is a build defect, not a runtime
// condition to degrade around.
func MustLoadScoringWeights() *ScoringWeights {
	w, err := LoadScoringWeights()
	if err != nil {
		panic(err)
	}
	return w
}

func (w *ScoringWeights) validate() error {
	for _, strategy := range []string{"starts_with", "dot_normalized", "contains", "per_word"} {
		score, ok := w.StrategyBaseScores[strategy]
		if !ok {
			return fmt.Errorf("missing base score for strategy %q", strategy)
		}
		if score <= 0 || score > 100 {
			return fmt.Errorf("base score for %q out of range: %d", strategy, score)
		}
	}
	if w.Limits.KeepTop <= 0 || w.Limits.DisplayTop <= 0 || w.Limits.DisplayTop > w.Limits.KeepTop {
		return fmt.Errorf("invalid limits: keep_top=%d display_top=%d", w.Limits.KeepTop, w.Limits.DisplayTop)
	}
	if w.FullScan.Exact <= w.FullScan.Contains || w.FullScan.Contains <= w.FullScan.WordOverlapMax {
		return fmt.Errorf("full scan scores must be strictly ordered exact > contains > word_overlap_max")
	}
	return nil
}
