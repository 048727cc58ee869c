// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant is the conversational front of the ledger assistant:
// the query router, the HTTP surface, and the response formatting that sit
// on top of the resolution engine.
package assistant

// =============================================================================
// Wire Types
// =============================================================================

// QueryRequest is the body of POST /v1/assistant/query.
type QueryRequest struct {
	// SessionID scopes conversation state. Required: the multi-turn
	// disambiguation protocol is meaningless without it.
	SessionID string `json:"session_id" binding:"required"`

	// Text is the raw user message, any language.
	Text string `json:"text" binding:"required"`
}

// LedgerView is the user-facing shape of a resolved ledger.
type LedgerView struct {
	Name    string `json:"name"`
	Parent  string `json:"parent,omitempty"`
	Balance string `json:"balance"`
}

// CandidateView is one numbered entry in a disambiguation list. Index is
// 1-based and stable: the user replies with it.
type CandidateView struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// QueryResponse is the body returned for every assistant query.
//
// Description:
//
//	Kind mirrors the resolution outcome ("exact_match",
//	"multiple_matches", "suggestions", "no_match") plus the router-level
//	kinds "answer" (non-ledger categories) and "clarify" (failed
//	continuation attempt). Message is always set and is safe to render
//	verbatim.
type QueryResponse struct {
	Kind        string          `json:"kind"`
	Message     string          `json:"message"`
	Ledger      *LedgerView     `json:"ledger,omitempty"`
	Candidates  []CandidateView `json:"candidates,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// ErrorResponse is the standard error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Response kinds produced by the router itself, beyond the resolution
// outcome kinds it passes through.
const (
	// KindAnswer is a direct answer from a non-ledger category handler.
	KindAnswer = "answer"

	// KindClarify asks the user to retry a selection that did not land.
	KindClarify = "clarify"
)
