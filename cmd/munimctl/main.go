// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command munimctl is the terminal client for the Munim assistant server.
//
// Usage:
//
//	munimctl ask "hdfc bank ka balance kitna hai"
//	munimctl chat
//
// The server address comes from MUNIM_SERVER_URL (default
// http://localhost:8080).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// serverURLFlag overrides MUNIM_SERVER_URL when set.
var serverURLFlag string

var rootCmd = &cobra.Command{
	Use:   "munimctl",
	Short: "Talk to a Tally ERP installation in plain language",
	Long: `munimctl sends natural-language accounting questions (English, Hindi,
or Hinglish) to a running Munim assistant server and prints the answers.`,
}

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask one question and exit",
	Args:  cobra.MinimumNArgs(1),
	Run:   runAskCommand,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	Long: `Starts a conversation with a stable session, so disambiguation works:
when the assistant lists candidate ledgers, reply with a number or the
exact name.`,
	Run: runChatCommand,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURLFlag, "server", "", "Munim server URL (overrides MUNIM_SERVER_URL)")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
}

// serverBaseURL resolves the server address: flag, then environment, then
// the local default.
func serverBaseURL() string {
	if serverURLFlag != "" {
		return serverURLFlag
	}
	if url := os.Getenv("MUNIM_SERVER_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
