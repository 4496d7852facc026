package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/event"
)

func newTestNormalizer() *Normalizer {
	return New(zerolog.Nop())
}

func TestBuild_RejectsMissingOrShortTitle(t *testing.T) {
	frozenClock(t)
	n := newTestNormalizer()

	cases := []string{
		`{"venue": {"name": "Moody Center"}}`,
		`{"title": "ab"}`,
		`{"title": "   "}`,
	}
	for _, payload := range cases {
		if _, err := n.Build(json.RawMessage(payload), event.SourceSerpAPI, "Austin"); err == nil {
			t.Fatalf("payload %s: expected discard error", payload)
		}
	}
}

func TestBuild_VenueResolutionOrder(t *testing.T) {
	frozenClock(t)
	n := newTestNormalizer()

	// Explicit venue name wins.
	ev, err := n.Build(json.RawMessage(`{
		"title": "Austin Blues Night",
		"venue": {"name": "Antone's"},
		"address": "305 E 5th St, Austin, TX"
	}`), event.SourceSerpAPI, "Austin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Venue != "Antone's" {
		t.Fatalf("unexpected venue: %q", ev.Venue)
	}

	// Generic venue name falls through to the address's first token.
	ev, err = n.Build(json.RawMessage(`{
		"title": "Austin Blues Night",
		"venue": {"name": "TBD"},
		"address": "Zilker Park, Austin, TX"
	}`), event.SourceSerpAPI, "Austin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Venue != "Zilker Park" {
		t.Fatalf("unexpected venue: %q", ev.Venue)
	}

	// No venue at all: placeholder for regular events.
	ev, err = n.Build(json.RawMessage(`{"title": "Evening Poetry Reading"}`), event.SourceSerpAPI, "Austin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Venue != VenueNotSpecified {
		t.Fatalf("unexpected venue: %q", ev.Venue)
	}

	// Sports fixture: bare search location substitutes for a venue.
	ev, err = n.Build(json.RawMessage(`{"title": "Kuwait vs Qatar"}`), event.SourceSerpAPI, "Kuwait")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Venue != "Kuwait" {
		t.Fatalf("sports fixture should use the search location, got %q", ev.Venue)
	}
}

func TestBuild_LocationFromTrailingAddressToken(t *testing.T) {
	frozenClock(t)
	n := newTestNormalizer()

	ev, err := n.Build(json.RawMessage(`{
		"title": "Summer Market",
		"address": "100 Congress Ave, Austin, TX"
	}`), event.SourceSerpAPI, "Houston")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Location != "TX" {
		t.Fatalf("unexpected location: %q", ev.Location)
	}

	ev, err = n.Build(json.RawMessage(`{"title": "Summer Market"}`), event.SourceSerpAPI, "Houston")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Location != "Houston" {
		t.Fatalf("expected search-location fallback, got %q", ev.Location)
	}
}

func TestBuild_ListAddressCoercedToScalar(t *testing.T) {
	frozenClock(t)
	n := newTestNormalizer()

	ev, err := n.Build(json.RawMessage(`{
		"title": "Harbor Lights Parade",
		"address": ["Pier 39", "San Francisco", "CA"]
	}`), event.SourceSerpAPI, "San Francisco")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Venue != "Pier 39" {
		t.Fatalf("unexpected venue: %q", ev.Venue)
	}
	if ev.Location != "CA" {
		t.Fatalf("unexpected location: %q", ev.Location)
	}
}

func TestBuild_Determinism(t *testing.T) {
	frozenClock(t)
	n := newTestNormalizer()

	payload := json.RawMessage(`{
		"title": "Summer Jazz Festival",
		"venue": {"name": "Riverside Hall"},
		"date": {"when": "Wed, Dec 17, 7:30 – 9:00 PM Asia/Tokyo"},
		"link": "https://example.com/jazz"
	}`)

	first, err := n.Build(payload, event.SourceSerpAPI, "Tokyo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := n.Build(payload, event.SourceSerpAPI, "Tokyo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ContentHash != second.ContentHash {
		t.Fatalf("content hash not deterministic: %q vs %q", first.ContentHash, second.ContentHash)
	}
	if first.DisplayDate != second.DisplayDate {
		t.Fatalf("display not deterministic: %q vs %q", first.DisplayDate, second.DisplayDate)
	}
	if !strings.Contains(first.DisplayDate, "7:30 – 9:00 PM") {
		t.Fatalf("expected complete time range in display, got %q", first.DisplayDate)
	}
}

func TestBuild_TicketmasterShape(t *testing.T) {
	frozenClock(t)
	n := newTestNormalizer()

	ev, err := n.Build(json.RawMessage(`{
		"name": "City Derby Final",
		"url": "https://www.ticketmaster.com/event/abc",
		"dates": {"start": {"localDate": "2025-12-06", "localTime": "18:30:00"}},
		"_embedded": {"venues": [{"name": "Q2 Stadium", "city": {"name": "Austin"}}]},
		"priceRanges": [{"min": 25, "max": 120}]
	}`), event.SourceTicketmaster, "Austin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Venue != "Q2 Stadium" {
		t.Fatalf("unexpected venue: %q", ev.Venue)
	}
	if ev.PriceRange != "$25.00 - $120.00" {
		t.Fatalf("unexpected price range: %q", ev.PriceRange)
	}
	if ev.TicketURL == "" {
		t.Fatalf("expected ticket URL for ticketing source")
	}
	if ev.Start == nil {
		t.Fatalf("expected parsed start from localDate/localTime")
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com/events", "https://example.com/events"},
		{"http://example.com", "http://example.com"},
		{"ftp://example.com", ""},
		{"/relative/path", ""},
		{"https://", ""},
		{"https://example.com/has space", ""},
		{"", ""},
		{"https://example.com/" + strings.Repeat("x", 2100), ""},
	}
	for _, tc := range cases {
		if got := ValidateURL(tc.in); got != tc.want {
			t.Fatalf("ValidateURL(%.40q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsSportsName(t *testing.T) {
	t.Parallel()

	if !IsSportsName("Kuwait vs Qatar") {
		t.Fatalf("expected vs fixture to read as sports")
	}
	if !IsSportsName("Premier League match day") {
		t.Fatalf("expected league fixture to read as sports")
	}
	if IsSportsName("Jazz Festival") {
		t.Fatalf("festival is not a sports fixture")
	}
}

func TestClassifyCategory(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		want string
	}{
		{"Summer Music Festival", "music"},
		{"Championship Final", "sports"},
		{"Tech Summit 2026", "tech"},
		{"Modern Art Exhibition", "arts"},
		{"Wine Tasting Evening", "food"},
		{"Annual Meetup", "other"},
	}
	for _, tc := range cases {
		if got := ClassifyCategory(tc.name); got != tc.want {
			t.Fatalf("ClassifyCategory(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestClip_RuneBoundary(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", maxNameLen-1) + "日本語"
	got := clip(long, maxNameLen)
	if !utf8.ValidString(got) {
		t.Fatalf("clip produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n > maxNameLen {
		t.Fatalf("clip kept %d runes, want at most %d", n, maxNameLen)
	}
	if got := clip("Moody Center", maxVenueLen); got != "Moody Center" {
		t.Fatalf("short strings must pass through unchanged, got %q", got)
	}
}
