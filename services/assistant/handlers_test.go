// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/muniminc/munim/services/assistant/tally"
)

func newTestRouter(bridge *bridgeStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	service, _ := newTestService(bridge)
	RegisterRoutes(router.Group("/v1"), NewHandlers(service))
	return router
}

func TestHandleQuery_EndToEnd(t *testing.T) {
	router := newTestRouter(&bridgeStub{ledgers: demoBook()})

	body := `{"session_id": "s1", "text": "what is the balance of hdfc bank"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	if recorder.Header().Get("X-Request-ID") == "" {
		t.Error("response must carry a request ID")
	}

	var response QueryResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if response.Kind != "exact_match" || response.Ledger == nil || response.Ledger.Name != "HDFC BANK" {
		t.Errorf("response = %+v", response)
	}
}

func TestHandleQuery_RequestIDEchoed(t *testing.T) {
	router := newTestRouter(&bridgeStub{ledgers: demoBook()})

	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/query",
		strings.NewReader(`{"session_id": "s1", "text": "hdfc bank"}`))
	req.Header.Set("X-Request-ID", "req-42")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want echo of inbound header", got)
	}
}

func TestHandleQuery_BadRequest(t *testing.T) {
	router := newTestRouter(&bridgeStub{ledgers: demoBook()})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing text", `{"session_id": "s1"}`},
		{"missing session", `{"text": "hdfc bank"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/assistant/query", strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", recorder.Code)
			}
			var response ErrorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if response.Code != "INVALID_REQUEST" {
				t.Errorf("code = %q", response.Code)
			}
		})
	}
}

func TestHandleQuery_UnavailableSourceStill200(t *testing.T) {
	bridge := &bridgeStub{err: fmt.Errorf("post: %w", tally.ErrSourceUnavailable)}
	router := newTestRouter(bridge)

	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/query",
		strings.NewReader(`{"session_id": "s1", "text": "hdfc bank balance"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	// An unreachable bridge is a conversational answer, not an HTTP error.
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "can't reach Tally") {
		t.Errorf("body = %s", recorder.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(&bridgeStub{ledgers: demoBook()})

	req := httptest.NewRequest(http.MethodGet, "/v1/assistant/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d", recorder.Code)
	}
}

func TestHandleReady(t *testing.T) {
	t.Run("bridge reachable", func(t *testing.T) {
		router := newTestRouter(&bridgeStub{ledgers: demoBook()})
		req := httptest.NewRequest(http.MethodGet, "/v1/assistant/ready", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Errorf("status = %d", recorder.Code)
		}
	})

	t.Run("bridge unreachable", func(t *testing.T) {
		bridge := &bridgeStub{err: fmt.Errorf("dial: %w", tally.ErrSourceUnavailable)}
		router := newTestRouter(bridge)
		req := httptest.NewRequest(http.MethodGet, "/v1/assistant/ready", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", recorder.Code)
		}
	})

	t.Run("slow bridge still ready", func(t *testing.T) {
		bridge := &bridgeStub{err: fmt.Errorf("post: %w", tally.ErrQueryTimeout)}
		router := newTestRouter(bridge)
		req := httptest.NewRequest(http.MethodGet, "/v1/assistant/ready", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Errorf("status = %d; a timeout is not a lost connection", recorder.Code)
		}
	})
}
