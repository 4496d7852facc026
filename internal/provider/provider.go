// Package provider defines the adapter contract for external event-listing
// sources. Adapters are black boxes that return raw per-event JSON for a
// query; credentials and transport live behind the interface.
package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"horse.fit/beacon/internal/event"
)

// Adapter is implemented by every listing source.
type Adapter interface {
	Name() event.Source
	Search(ctx context.Context, q event.Query, limit int) ([]json.RawMessage, error)
}

// Profile carries the static per-provider policy: query priority, ranking
// weight, quality trust prior and cache lifetime.
type Profile struct {
	Name       event.Source
	Priority   int
	Weight     float64
	Trust      float64
	CacheTTL   time.Duration
	DailyLimit int
}

// DefaultProfiles returns the built-in three-source policy table.
func DefaultProfiles() map[event.Source]Profile {
	return map[event.Source]Profile{
		event.SourceSerpAPI: {
			Name:       event.SourceSerpAPI,
			Priority:   1,
			Weight:     1.2,
			Trust:      0.9,
			CacheTTL:   time.Hour,
			DailyLimit: 100,
		},
		event.SourcePredictHQ: {
			Name:       event.SourcePredictHQ,
			Priority:   2,
			Weight:     1.1,
			Trust:      0.7,
			CacheTTL:   2 * time.Hour,
			DailyLimit: 1000,
		},
		event.SourceTicketmaster: {
			Name:       event.SourceTicketmaster,
			Priority:   3,
			Weight:     1.0,
			Trust:      0.8,
			CacheTTL:   30 * time.Minute,
			DailyLimit: 500,
		},
	}
}

// TrustPrior returns the quality filter's static source prior, with the
// unknown-source fallback.
func TrustPrior(profiles map[event.Source]Profile, source event.Source) float64 {
	if p, ok := profiles[source]; ok {
		return p.Trust
	}
	return 0.5
}

// Func adapts a plain search function into an Adapter.
type Func struct {
	Source event.Source
	Fn     func(ctx context.Context, q event.Query, limit int) ([]json.RawMessage, error)
}

func (f Func) Name() event.Source { return f.Source }

func (f Func) Search(ctx context.Context, q event.Query, limit int) ([]json.RawMessage, error) {
	if f.Fn == nil {
		return nil, fmt.Errorf("provider %s has no search function", f.Source)
	}
	return f.Fn(ctx, q, limit)
}

// Registry holds the enabled adapters in query-priority order.
type Registry struct {
	adapters []Adapter
	profiles map[event.Source]Profile
}

func NewRegistry(profiles map[event.Source]Profile, adapters ...Adapter) *Registry {
	if profiles == nil {
		profiles = DefaultProfiles()
	}

	ordered := make([]Adapter, len(adapters))
	copy(ordered, adapters)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priorityOf(profiles, ordered[i].Name()) < priorityOf(profiles, ordered[j].Name())
	})

	return &Registry{adapters: ordered, profiles: profiles}
}

func priorityOf(profiles map[event.Source]Profile, source event.Source) int {
	if p, ok := profiles[source]; ok {
		return p.Priority
	}
	return 1 << 30
}

// Adapters returns the adapters in priority order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Profile looks up the policy entry for a source.
func (r *Registry) Profile(source event.Source) (Profile, bool) {
	p, ok := r.profiles[source]
	return p, ok
}

// Profiles returns the full policy table.
func (r *Registry) Profiles() map[event.Source]Profile {
	return r.profiles
}
