package payloadschema

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestValidateEventPayload_Valid(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{
		"title": "Austin Blues Night",
		"date": {"start_date": "2026-06-05"},
		"venue": {"name": "Antone's"},
		"address": "305 E 5th St, Austin, TX",
		"link": "https://example.com/blues"
	}`)

	object, err := ValidateEventPayload(payload)
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if object["title"] != "Austin Blues Night" {
		t.Fatalf("unexpected title: %v", object["title"])
	}
}

func TestValidateEventPayload_NameOnly(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{"name": "City Derby", "dates": {"start": {"localDate": "2026-06-07"}}}`)
	if _, err := ValidateEventPayload(payload); err != nil {
		t.Fatalf("expected name-bearing payload to validate, got %v", err)
	}
}

func TestValidateEventPayload_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
	}{
		{"no title or name", `{"date": "2026-06-05"}`},
		{"malformed JSON", `{"title": `},
		{"trailing data", `{"title": "x"}{"title": "y"}`},
		{"non-object", `[1,2,3]`},
	}

	for _, tc := range cases {
		if _, err := ValidateEventPayload(json.RawMessage(tc.payload)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
