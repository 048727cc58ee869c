// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"log/slog"
	"strings"
)

// =============================================================================
// Keyword Classifier
// =============================================================================

// categoryKeywords maps trigger words (English and Hinglish) to a category.
// Checked in declaration order; first category with a hit wins, so the more
// specific categories come before the catch-all ledger terms.
var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategorySales, []string{"sales", "sale", "bikri", "becha", "sold", "revenue", "turnover"}},
	{CategoryStock, []string{"stock", "saman", "inventory", "item", "items", "godown", "maal"}},
	{CategoryOutstanding, []string{"outstanding", "udhaar", "baki", "receivable", "receivables", "payable", "payables", "due", "dues"}},
	{CategoryCompanyInfo, []string{"company", "firm", "business", "gstin", "gst"}},
	{CategoryLedger, []string{"balance", "khata", "ledger", "account", "paisa", "amount"}},
}

// KeywordClassifier is a deterministic Classifier built on a fixed trigger
// table. It runs offline, costs nothing, and serves as the fallback when no
// LLM classifier is configured.
//
// Thread Safety: Safe for concurrent use; the trigger table is read-only.
type KeywordClassifier struct {
	logger *slog.Logger
}

// NewKeywordClassifier creates a KeywordClassifier. A nil logger uses
// slog.Default().
func NewKeywordClassifier(logger *slog.Logger) *KeywordClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordClassifier{logger: logger}
}

// Classify implements Classifier.
//
// Description:
//
//	Tokenizes the message on whitespace and looks each token up in the
//	trigger table. A message with no trigger word at all still classifies
//	as a ledger lookup: most bare messages in practice are account names
//	("hdfc bank", "sharma traders"), and the resolution engine guarantees
//	a terminal answer either way.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (Classification, error) {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return Classification{Category: CategoryUnknown}, nil
	}

	present := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		present[strings.Trim(token, ".,?!")] = true
	}

	for _, entry := range categoryKeywords {
		for _, word := range entry.words {
			if present[word] {
				k.logger.Debug("keyword intent hit",
					slog.String("category", string(entry.category)),
					slog.String("trigger", word),
				)
				return Classification{Category: entry.category}, nil
			}
		}
	}

	return Classification{Category: CategoryLedger}, nil
}
