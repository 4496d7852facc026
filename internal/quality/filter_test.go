package quality

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/globaltime"
)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	regions, err := NewRegionIndex(64)
	if err != nil {
		t.Fatalf("region index: %v", err)
	}
	return New(zerolog.Nop(), regions)
}

func pinClock(t *testing.T) {
	t.Helper()
	globaltime.SetMockTime(time.Date(2025, time.November, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)
}

func dated(day int) *time.Time {
	ts := time.Date(2025, time.December, day, 19, 0, 0, 0, time.UTC)
	return &ts
}

func realEvent() *event.Event {
	return &event.Event{
		Name:        "Summer Jazz Festival",
		Venue:       "Riverside Hall",
		Location:    "Austin",
		Category:    "music",
		Source:      event.SourceSerpAPI,
		Start:       dated(1),
		DisplayDate: "December 1, 2025, 7:00 PM",
	}
}

func TestAssess_AcceptsRealEvent(t *testing.T) {
	pinClock(t)
	f := newTestFilter(t)

	v := f.Assess(realEvent(), "Austin")
	if !v.IsRealEvent {
		t.Fatalf("expected acceptance, got reasons %v score %v", v.RejectionReasons, v.QualityScore)
	}
	if v.QualityScore < acceptThreshold || v.QualityScore > 1 {
		t.Fatalf("quality score out of range: %v", v.QualityScore)
	}
	if v.CleanCategory != "music" {
		t.Fatalf("clean category = %q", v.CleanCategory)
	}
}

func TestAssess_SeasonIDAlwaysRejected(t *testing.T) {
	pinClock(t)
	f := newTestFilter(t)

	variants := []*event.Event{
		{Name: "24-25 Diamond ID"},
		{Name: "24-25 Diamond ID", Venue: "Moody Center", Location: "Austin", Start: dated(5), Category: "sports", Source: event.SourceTicketmaster},
		{Name: "24-25 Gold ID", Venue: "Riverside Hall", Start: dated(12)},
	}
	for _, ev := range variants {
		v := f.Assess(ev, "Austin")
		if v.IsRealEvent {
			t.Fatalf("%q should never be a real event", ev.Name)
		}
		if v.QualityScore != 0 {
			t.Fatalf("%q: noise should score 0, got %v", ev.Name, v.QualityScore)
		}
		if v.CleanCategory != "noise" {
			t.Fatalf("%q: clean category = %q", ev.Name, v.CleanCategory)
		}
		if len(v.RejectionReasons) == 0 {
			t.Fatalf("%q: expected a rejection reason", ev.Name)
		}
	}
}

func TestAssess_NoiseFamilies(t *testing.T) {
	pinClock(t)
	f := newTestFilter(t)

	names := []string{
		"Test Event",
		"Season Pass 2025",
		"Buffet Offer",
		"VIP Experience",
		"Ticket Transfer",
	}
	for _, name := range names {
		ev := realEvent()
		ev.Name = name
		if v := f.Assess(ev, "Austin"); v.IsRealEvent {
			t.Fatalf("%q should be filtered as noise", name)
		}
	}
}

func TestAssess_GenericVenueRejected(t *testing.T) {
	pinClock(t)
	f := newTestFilter(t)

	ev := realEvent()
	ev.Venue = "TBD"
	v := f.Assess(ev, "Austin")
	if v.IsRealEvent {
		t.Fatalf("generic venue should reject a non-sports event")
	}
	if len(v.RejectionReasons) == 0 {
		t.Fatalf("expected an invalid-venue reason")
	}
}

func TestAssess_SportsVenueExemption(t *testing.T) {
	pinClock(t)
	f := newTestFilter(t)

	ev := &event.Event{
		Name:        "Kuwait vs Qatar",
		Venue:       "Various Stadiums",
		Location:    "Kuwait",
		Category:    "sports",
		Source:      event.SourceSerpAPI,
		Start:       dated(10),
		DisplayDate: "December 10, 2025",
	}
	v := f.Assess(ev, "Kuwait")
	if !v.IsRealEvent {
		t.Fatalf("sports fixture with location venue should pass, got %v", v.RejectionReasons)
	}

	// The exemption never covers an explicit TBD marker.
	ev.Venue = "Kuwait (Venue TBD)"
	if v := f.Assess(ev, "Kuwait"); v.IsRealEvent {
		t.Fatalf("explicit venue-TBD marker should stay invalid")
	}
}

func TestAssess_LocationMismatchPenalizesWithoutRejecting(t *testing.T) {
	pinClock(t)
	f := newTestFilter(t)

	base := f.Assess(realEvent(), "Austin")

	mismatched := realEvent()
	mismatched.Location = "United States"
	shifted := f.Assess(mismatched, "Hong Kong")

	if shifted.QualityScore >= base.QualityScore {
		t.Fatalf("mismatch should lower the score: %v vs %v", shifted.QualityScore, base.QualityScore)
	}
	for _, reason := range shifted.RejectionReasons {
		if reason == "invalid venue" {
			t.Fatalf("location mismatch must not produce a hard reason")
		}
	}
}

func TestAssess_ScoreAlwaysClamped(t *testing.T) {
	pinClock(t)
	f := newTestFilter(t)

	events := []*event.Event{
		realEvent(),
		{Name: "???", Venue: "", Category: ""},
		{Name: "abc", Venue: "x", Location: "Tokyo", Source: event.Source("unknown")},
	}
	for _, ev := range events {
		v := f.Assess(ev, "Austin")
		if v.QualityScore < 0 || v.QualityScore > 1 {
			t.Fatalf("score out of range for %q: %v", ev.Name, v.QualityScore)
		}
		if v.Confidence < 0 || v.Confidence > 1 {
			t.Fatalf("confidence out of range for %q: %v", ev.Name, v.Confidence)
		}
	}
}

func TestAssess_CleanCategoryInference(t *testing.T) {
	pinClock(t)
	f := newTestFilter(t)

	ev := realEvent()
	ev.Name = "Riverside Rock Concert"
	ev.Category = "other"
	if v := f.Assess(ev, "Austin"); v.CleanCategory != "music" {
		t.Fatalf("clean category = %q, want music", v.CleanCategory)
	}

	ev = realEvent()
	ev.Name = "City Derby Championship"
	ev.Category = ""
	if v := f.Assess(ev, "Austin"); v.CleanCategory != "sports" {
		t.Fatalf("clean category = %q, want sports", v.CleanCategory)
	}
}

func TestRegionIndex_MemoizedResolve(t *testing.T) {
	t.Parallel()

	regions, err := NewRegionIndex(8)
	if err != nil {
		t.Fatalf("region index: %v", err)
	}
	cases := []struct {
		in   string
		want Region
	}{
		{"Hong Kong", RegionAsia},
		{"United States", RegionAmericas},
		{"London", RegionEurope},
		{"305 E 5th St, Austin, TX", RegionAmericas},
		{"Riverside Hall", RegionUnknown},
		{"", RegionUnknown},
	}
	for _, tc := range cases {
		if got := regions.Resolve(tc.in); got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
		// Second lookup hits the memo and must agree.
		if got := regions.Resolve(tc.in); got != tc.want {
			t.Fatalf("memoized Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
