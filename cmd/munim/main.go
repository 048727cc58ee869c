// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command munim starts the Munim assistant API server.
//
// Munim answers natural-language accounting questions (English, Hindi,
// Hinglish) against a Tally ERP installation:
//   - Tiered ledger name resolution with multi-turn disambiguation
//   - Intent classification (keyword or OpenAI-compatible LLM)
//   - Sales, stock, outstanding, and company lookups
//
// Usage:
//
//	go run ./cmd/munim
//	go run ./cmd/munim -port 9090 -debug
//
// With persistent sessions:
//
//	go run ./cmd/munim -badger-dir ~/.munim/sessions
//
// With an LLM classifier:
//
//	OPENAI_API_KEY=sk-... OPENAI_MODEL=gpt-4o-mini go run ./cmd/munim
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/assistant/health
//
//	# Ask a question
//	curl -X POST http://localhost:8080/v1/assistant/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"session_id": "demo", "text": "hdfc bank ka balance kitna hai"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/muniminc/munim/services/assistant"
	"github.com/muniminc/munim/services/assistant/intent"
	"github.com/muniminc/munim/services/assistant/session"
	"github.com/muniminc/munim/services/assistant/tally"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	badgerDir := flag.String("badger-dir", "", "Directory for persistent session state (empty = in-memory)")
	traceStdout := flag.Bool("trace-stdout", false, "Export OTel spans to stdout")
	flag.Parse()

	setupLogging(*debug)

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so spans correlate across the bridge
	// and any upstream transport.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if *traceStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			slog.Error("Failed to create stdout trace exporter", slog.String("error", err.Error()))
			os.Exit(1)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	bridgeURL := os.Getenv("TALLY_BRIDGE_URL")
	if bridgeURL == "" {
		bridgeURL = "http://localhost:9000"
		slog.Warn("TALLY_BRIDGE_URL not set, using default", slog.String("url", bridgeURL))
	}
	source := tally.NewHTTPSource(bridgeURL, tally.DefaultQueryTimeout, slog.Default())

	// Session state: BadgerDB when a directory is given, else in-memory.
	// Persistent sessions survive restarts mid-disambiguation.
	var sessions session.Store
	var sessionDB *dgbadger.DB
	if *badgerDir != "" {
		db, err := dgbadger.Open(dgbadger.DefaultOptions(*badgerDir).WithLogger(nil))
		if err != nil {
			slog.Warn("Session BadgerDB unavailable, falling back to in-memory sessions",
				slog.String("path", *badgerDir),
				slog.String("error", err.Error()),
			)
		} else {
			sessionDB = db
			sessions = session.NewBadgerStore(db, session.DefaultTTL, slog.Default())
			slog.Info("Session BadgerDB opened", slog.String("path", *badgerDir))
		}
	}

	// LLM classifier when configured; the service falls back to the
	// keyword classifier on its own when this stays nil.
	var classifier intent.Classifier
	if os.Getenv("OPENAI_API_KEY") != "" {
		llm, err := intent.NewOpenAIClassifier(slog.Default())
		if err != nil {
			slog.Warn("OpenAI classifier unavailable", slog.String("error", err.Error()))
		} else {
			classifier = llm
			slog.Info("OpenAI intent classifier enabled")
		}
	}

	service := assistant.NewService(assistant.ServiceConfig{
		Source:     source,
		Classifier: classifier,
		Sessions:   sessions,
	})
	handlers := assistant.NewHandlers(service)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("munim-assistant"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	assistant.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down Munim assistant server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Warn("Graceful shutdown failed", slog.String("error", err.Error()))
		}
		if sessionDB != nil {
			if err := sessionDB.Close(); err != nil {
				slog.Warn("Failed to close session BadgerDB", slog.String("error", err.Error()))
			}
		}
	}()

	slog.Info("Starting Munim assistant server",
		slog.String("address", server.Addr),
		slog.String("bridge", bridgeURL),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupLogging installs the process-wide slog handler: JSON for services,
// human-readable text when attached to a terminal.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
