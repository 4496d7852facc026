package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/engine"
	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/globaltime"
	"horse.fit/beacon/internal/normalize"
	"horse.fit/beacon/internal/provider"
	"horse.fit/beacon/internal/quality"
	"horse.fit/beacon/internal/rank"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zerolog.Nop()

	batch := []json.RawMessage{
		json.RawMessage(`{"title": "Riverside Blues Concert", "venue": {"name": "Riverside Hall"}, "date": {"when": "June 3"}, "address": "Riverside Hall, Austin, TX"}`),
		json.RawMessage(`{"title": "Hill Country Music Festival", "venue": {"name": "Zilker Park"}, "date": {"when": "June 6"}, "address": "Zilker Park, Austin, TX"}`),
	}
	adapter := provider.Func{
		Source: event.SourceSerpAPI,
		Fn: func(context.Context, event.Query, int) ([]json.RawMessage, error) {
			return batch, nil
		},
	}

	regions, err := quality.NewRegionIndex(64)
	if err != nil {
		t.Fatalf("region index: %v", err)
	}
	registry := provider.NewRegistry(nil, adapter)
	eng := engine.New(
		registry,
		normalize.New(logger),
		quality.New(logger, regions),
		rank.NewScorer(registry.Profiles()),
		nil,
		engine.Options{},
		logger,
	)
	return NewServer(eng, logger, Options{})
}

func pinClock(t *testing.T) {
	t.Helper()
	globaltime.SetMockTime(time.Date(2025, time.May, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)
}

func doRequest(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestHandleHealth(t *testing.T) {
	pinClock(t)
	s := newTestServer(t)

	rec, body := doRequest(t, s, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "success" {
		t.Fatalf("unexpected envelope: %v", body)
	}
	data := body["data"].(map[string]any)
	if data["service"] != "beacon" {
		t.Fatalf("unexpected service name: %v", data)
	}
}

func TestHandleDiscover(t *testing.T) {
	pinClock(t)
	s := newTestServer(t)

	rec, body := doRequest(t, s,
		"/api/v1/discover?location=Austin&start_date=2025-06-01&end_date=2025-06-10&categories=music&max_results=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "success" {
		t.Fatalf("unexpected envelope: %v", body)
	}
	data := body["data"].(map[string]any)
	events := data["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if data["cache_hit"] != false {
		t.Fatalf("expected live result")
	}
}

func TestHandleDiscover_MissingParams(t *testing.T) {
	pinClock(t)
	s := newTestServer(t)

	rec, body := doRequest(t, s, "/api/v1/discover?location=Austin")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["status"] != "fail" {
		t.Fatalf("unexpected envelope: %v", body)
	}
}

func TestHandleDiscover_PastWindowRejected(t *testing.T) {
	pinClock(t)
	s := newTestServer(t)

	rec, body := doRequest(t, s,
		"/api/v1/discover?location=Austin&start_date=2025-01-01&end_date=2025-01-05")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	data := body["data"].(map[string]any)
	if _, ok := data["validation_errors"]; !ok {
		t.Fatalf("expected validation_errors payload: %v", body)
	}
}

func TestHandleQueries(t *testing.T) {
	pinClock(t)
	s := newTestServer(t)

	rec, body := doRequest(t, s,
		"/api/v1/queries?location=Austin&start_date=2025-06-01&end_date=2025-06-05&categories=music")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := body["data"].(map[string]any)
	queries := data["queries"].([]any)
	if len(queries) == 0 {
		t.Fatalf("expected planned queries")
	}
	for _, q := range queries {
		if _, ok := q.(string); !ok {
			t.Fatalf("query entries should be strings: %v", q)
		}
	}
}

func TestHandleDiscover_MaxResultsClamped(t *testing.T) {
	pinClock(t)
	s := newTestServer(t)

	rec, _ := doRequest(t, s, fmt.Sprintf(
		"/api/v1/discover?location=Austin&start_date=2025-06-01&end_date=2025-06-10&max_results=%d", 5000))
	if rec.Code != http.StatusOK {
		t.Fatalf("oversized max_results should be clamped, got %d: %s", rec.Code, rec.Body.String())
	}
}
