// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// QueryRequest and QueryResponse mirror the server's wire types.
type QueryRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type QueryResponse struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// sendQuery posts one message for the given session and returns the
// response body.
func sendQuery(sessionID, text string) (*QueryResponse, error) {
	body, err := json.Marshal(QueryRequest{SessionID: sessionID, Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := httpClient.Post(serverBaseURL()+"/v1/assistant/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("is the Munim server running at %s? %w", serverBaseURL(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var queryResp QueryResponse
	if err := json.Unmarshal(respBody, &queryResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &queryResp, nil
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")

	response, err := sendQuery(uuid.New().String(), question)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Println(response.Message)
	if response.Kind == "multiple_matches" {
		fmt.Println("\n(Use 'munimctl chat' to pick from a candidate list.)")
	}
}

func runChatCommand(_ *cobra.Command, _ []string) {
	sessionID := uuid.New().String()
	fmt.Println("Munim assistant. Ask about balances, sales, stock, or outstanding.")
	fmt.Println("Type 'exit' to quit.")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		response, err := sendQuery(sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println(response.Message)
	}
}
