// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float32         `json:"temperature"`
	MaxTokens   int             `json:"max_completion_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// classifierPrompt constrains the model to a single-line JSON verdict. The
// category list must stay in sync with the Category constants.
const classifierPrompt = `You classify accounting questions for a Tally ERP assistant. ` +
	`The user writes in English, Hindi, or Hinglish. ` +
	`Respond with ONLY a JSON object: {"category": "...", "query": "..."}. ` +
	`category is one of: ledger, sales, stock, outstanding, company_info, unknown. ` +
	`query is the account/item name the question is about, with question words removed, or "" if none.`

// =============================================================================
// OpenAI Classifier
// =============================================================================

// OpenAIClassifier implements Classifier against an OpenAI-compatible chat
// completions endpoint using raw net/http.
//
// Description:
//
//	Sends the message with a constrained system prompt and parses the JSON
//	verdict out of the reply. Any transport or parse failure is returned to
//	the caller; the router is expected to fall back to a deterministic
//	classifier rather than fail the request.
//
// Thread Safety: Safe for concurrent use.
type OpenAIClassifier struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	logger     *slog.Logger
}

// NewOpenAIClassifier creates an OpenAIClassifier from the environment.
//
// Description:
//
//	Reads OPENAI_API_KEY and OPENAI_MODEL. Defaults the model to
//	"gpt-4o-mini" when OPENAI_MODEL is unset.
//
// Outputs:
//   - *OpenAIClassifier: The configured classifier.
//   - error: Non-nil if OPENAI_API_KEY is missing.
func NewOpenAIClassifier(logger *slog.Logger) (*OpenAIClassifier, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("intent: API key is missing (OPENAI_API_KEY)")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return NewOpenAIClassifierWithConfig(apiKey, model, defaultOpenAIBaseURL, logger), nil
}

// NewOpenAIClassifierWithConfig creates an OpenAIClassifier with explicit
// configuration. Useful for testing against mock servers.
func NewOpenAIClassifierWithConfig(apiKey, model, baseURL string, logger *slog.Logger) *OpenAIClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClassifier{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Classify implements Classifier.
func (o *OpenAIClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	reqPayload := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: classifierPrompt},
			{Role: "user", Content: text},
		},
		Temperature: 0,
		MaxTokens:   128,
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return Classification{}, fmt.Errorf("intent: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return Classification{}, fmt.Errorf("intent: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	o.logger.Debug("Classifying via OpenAI", slog.String("model", o.model))

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return Classification{}, fmt.Errorf("intent: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Classification{}, fmt.Errorf("intent: reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Classification{}, fmt.Errorf("intent: API returned status %d", resp.StatusCode)
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return Classification{}, fmt.Errorf("intent: parsing response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return Classification{}, fmt.Errorf("intent: API error: %s", apiResp.Error.Type)
	}
	if len(apiResp.Choices) == 0 {
		return Classification{}, fmt.Errorf("intent: returned no choices")
	}

	return parseVerdict(apiResp.Choices[0].Message.Content)
}

// parseVerdict extracts the JSON classification from the model reply,
// tolerating markdown fences and surrounding prose.
func parseVerdict(reply string) (Classification, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Classification{}, fmt.Errorf("intent: no JSON object in reply")
	}

	var verdict Classification
	if err := json.Unmarshal([]byte(reply[start:end+1]), &verdict); err != nil {
		return Classification{}, fmt.Errorf("intent: parsing verdict: %w", err)
	}

	switch verdict.Category {
	case CategoryLedger, CategorySales, CategoryStock, CategoryOutstanding, CategoryCompanyInfo:
	default:
		verdict.Category = CategoryUnknown
	}
	return verdict, nil
}
