// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intent classifies raw user text into a coarse query category.
// The router treats classifiers as opaque: it only consumes the category
// tag and the optional pre-built query.
package intent

import "context"

// Category is the coarse bucket a user message falls into. The router
// dispatches on this and nothing else.
type Category string

const (
	// CategoryLedger covers balance and account lookups. These flow into
	// the ledger resolution engine.
	CategoryLedger Category = "ledger"

	// CategorySales covers sales-total questions.
	CategorySales Category = "sales"

	// CategoryStock covers inventory lookups.
	CategoryStock Category = "stock"

	// CategoryOutstanding covers receivables/payables questions.
	CategoryOutstanding Category = "outstanding"

	// CategoryCompanyInfo covers questions about the active company.
	CategoryCompanyInfo Category = "company_info"

	// CategoryUnknown means no classifier could place the message.
	CategoryUnknown Category = "unknown"
)

// Classification is the classifier's verdict for one message.
type Classification struct {
	// Category is the dispatch bucket. Never empty; CategoryUnknown when
	// the classifier cannot decide.
	Category Category `json:"category"`

	// Query, when non-empty, is the portion of the message the downstream
	// handler should operate on (for ledger intents, the account name with
	// question scaffolding removed). Empty means "use the raw text".
	Query string `json:"query,omitempty"`
}

// Classifier turns raw user text into a Classification.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}
