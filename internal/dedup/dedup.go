// Package dedup removes exact and near-duplicate events within one
// discovery request. The first occurrence of an event always wins.
package dedup

import (
	"time"

	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/event"
)

const (
	nameThreshold  = 0.85
	venueThreshold = 0.80
	// Near-duplicates must start within one calendar day of each other.
	maxStartGap = 24 * time.Hour
)

// Deduplicator accumulates events across the providers of one request.
// It is not safe for concurrent use; the engine merges provider batches
// serially.
type Deduplicator struct {
	seen     map[string]struct{}
	accepted []*event.Event
	dropped  int
	logger   zerolog.Logger
}

func New(logger zerolog.Logger) *Deduplicator {
	return &Deduplicator{
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// Add admits ev unless it duplicates an already-accepted event, either by
// content hash or by fuzzy similarity. It reports whether ev was kept.
func (d *Deduplicator) Add(ev *event.Event) bool {
	if ev == nil {
		return false
	}
	if _, dup := d.seen[ev.ContentHash]; dup {
		d.dropped++
		d.logger.Debug().Str("name", ev.Name).Str("hash", ev.ContentHash).
			Msg("dropping exact duplicate")
		return false
	}
	for _, kept := range d.accepted {
		if nearDuplicate(ev, kept) {
			d.dropped++
			d.logger.Debug().Str("name", ev.Name).Str("kept", kept.Name).
				Msg("dropping near duplicate")
			return false
		}
	}
	d.seen[ev.ContentHash] = struct{}{}
	d.accepted = append(d.accepted, ev)
	return true
}

// AddAll admits each event in order and returns the ones that were kept.
func (d *Deduplicator) AddAll(events []*event.Event) []*event.Event {
	kept := make([]*event.Event, 0, len(events))
	for _, ev := range events {
		if d.Add(ev) {
			kept = append(kept, ev)
		}
	}
	return kept
}

// Events returns the accepted events in arrival order.
func (d *Deduplicator) Events() []*event.Event {
	return d.accepted
}

// Dropped returns how many events were discarded as duplicates.
func (d *Deduplicator) Dropped() int {
	return d.dropped
}

// nearDuplicate reports whether a and b describe the same real-world event:
// highly similar names, similar venues, and parsed starts within one day.
// Events without a parsed datetime only collapse through the exact hash.
func nearDuplicate(a, b *event.Event) bool {
	if Ratio(a.Name, b.Name) <= nameThreshold {
		return false
	}
	if Ratio(a.Venue, b.Venue) <= venueThreshold {
		return false
	}
	if a.Start == nil || b.Start == nil {
		return false
	}
	gap := a.Start.Sub(*b.Start)
	if gap < 0 {
		gap = -gap
	}
	return gap <= maxStartGap
}
