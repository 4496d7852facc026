// Package rank computes the hype score used to order final results.
package rank

import (
	"strings"

	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/provider"
)

const baseScore = 0.35

// Keyword bonuses are tunable ranking policy, not invariants; tests
// assert relative ordering rather than exact values.
var hypeKeywords = []struct {
	keyword string
	bonus   float64
}{
	{"festival", 0.2},
	{"concert", 0.15},
	{"championship", 0.15},
	{"tournament", 0.1},
	{"expo", 0.1},
	{"summit", 0.1},
	{"premiere", 0.1},
	{"gala", 0.1},
}

var premiumVenues = []string{"stadium", "arena", "center", "garden", "hall"}

// Scorer scores events by provider priority, name signals and venue
// class. Safe for concurrent use once built.
type Scorer struct {
	priorities map[event.Source]int
}

// NewScorer derives provider priorities from the given profiles.
func NewScorer(profiles map[event.Source]provider.Profile) *Scorer {
	priorities := make(map[event.Source]int, len(profiles))
	for source, profile := range profiles {
		priorities[source] = profile.Priority
	}
	return &Scorer{priorities: priorities}
}

// Score computes the hype score for ev, always in [0, 1].
func (s *Scorer) Score(ev *event.Event) float64 {
	score := baseScore + s.priorityBonus(ev.Source)

	title := strings.ToLower(ev.Name)
	for _, hk := range hypeKeywords {
		if strings.Contains(title, hk.keyword) {
			score += hk.bonus
		}
	}

	venue := strings.ToLower(ev.Venue)
	for _, class := range premiumVenues {
		if strings.Contains(venue, class) {
			score += 0.15
			break
		}
	}

	if ev.Start != nil {
		score += 0.1
	}
	if len(ev.Name) >= 10 {
		score += 0.05
	}

	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// Apply stamps each event's hype score in place.
func (s *Scorer) Apply(events []*event.Event) {
	for _, ev := range events {
		ev.HypeScore = s.Score(ev)
	}
}

func (s *Scorer) priorityBonus(source event.Source) float64 {
	switch s.priorities[source] {
	case 1:
		return 0.2
	case 2:
		return 0.15
	case 3:
		return 0.1
	default:
		return 0.05
	}
}
