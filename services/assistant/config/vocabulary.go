// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config holds the embedded assistant configuration: the vernacular
// vocabulary used for Hindi/Hinglish query translation and the empirically
// tuned scoring weights used by the ledger resolution engine.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Vocabulary Configuration
// =============================================================================

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// Vocabulary maps vernacular financial terms to the canonical English
// vocabulary the query handlers understand, plus the stop-word and
// boilerplate lists consumed by the term normalizer.
//
// The vocabulary is loaded from vocabulary.yaml at startup and cached.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type Vocabulary struct {
	// Translations maps a vernacular term (word or phrase) to its English
	// replacement. Matching is case-insensitive and word-boundary safe.
	Translations map[string]string `yaml:"translations"`

	// StopWords are filler words stripped after translation.
	StopWords []string `yaml:"stop_words"`

	// Boilerplate lists leading phrases removed before ledger name search,
	// longest first.
	Boilerplate []string `yaml:"boilerplate"`
}

var (
	cachedVocabulary *Vocabulary
	vocabularyOnce   sync.Once
	vocabularyErr    error
)

// LoadVocabulary loads and caches the vocabulary from the embedded YAML
// configuration. Returns the cached result on subsequent calls.
//
// # Outputs
//
//   - *Vocabulary: The loaded vocabulary. Never nil on success.
//   - error: Non-nil if YAML parsing fails.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadVocabulary() (*Vocabulary, error) {
	vocabularyOnce.Do(func() {
		var v Vocabulary
		if err := yaml.Unmarshal(defaultVocabularyYAML, &v); err != nil {
			vocabularyErr = fmt.Errorf("parsing vocabulary.yaml: %w", err)
			return
		}
		cachedVocabulary = &v
		slog.Info("vocabulary loaded",
			slog.Int("translations", len(v.Translations)),
			slog.Int("stop_words", len(v.StopWords)),
			slog.Int("boilerplate", len(v.Boilerplate)),
		)
	})
	return cachedVocabulary, vocabularyErr
}

// MustLoadVocabulary loads the vocabulary or returns an empty one on error.
// Logs a warning if loading fails but does not panic — query handling still
// works, just without vernacular translation.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadVocabulary() *Vocabulary {
	v, err := LoadVocabulary()
	if err != nil {
		slog.Warn("vocabulary loading failed, continuing without translation",
			slog.String("error", err.Error()),
		)
		return &Vocabulary{Translations: map[string]string{}}
	}
	return v
}
