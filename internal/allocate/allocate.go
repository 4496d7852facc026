// Package allocate enforces the per-provider share of the final result
// list, redistributing and backfilling when a provider underperforms.
package allocate

import (
	"math"
	"sort"

	"horse.fit/beacon/internal/event"
)

// Allocate selects up to maxResults events from the per-source
// partitions. Integer targets come from flooring each source's share,
// with the rounding remainder granted to the first source in order
// (the primary). Shortfalls are redistributed proportionally across
// the sources that still hold events, then a backfill round in
// priority order tops the list up from any remaining surplus. The
// result is sorted by hype score descending; ties keep discovery
// order. Deterministic for identical inputs.
func Allocate(bySource map[event.Source][]*event.Event, maxResults int, shares map[event.Source]float64, order []event.Source) []*event.Event {
	if maxResults <= 0 || len(order) == 0 {
		return nil
	}

	// Hype-sorted copies; stable sort keeps discovery order on ties.
	partitions := make(map[event.Source][]*event.Event, len(order))
	for _, source := range order {
		events := bySource[source]
		sorted := make([]*event.Event, len(events))
		copy(sorted, events)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].HypeScore > sorted[j].HypeScore
		})
		partitions[source] = sorted
	}

	targets := floorTargets(maxResults, shares, order)

	// Primary pass: each source fills up to its target.
	counts := make(map[event.Source]int, len(order))
	total := 0
	for _, source := range order {
		take := targets[source]
		if n := len(partitions[source]); take > n {
			take = n
		}
		counts[source] = take
		total += take
	}

	// Redistribute the shortfall proportionally across sources that
	// still hold events beyond their own take.
	if shortfall := maxResults - total; shortfall > 0 {
		var donors []event.Source
		var shareSum float64
		for _, source := range order {
			if len(partitions[source]) > counts[source] {
				donors = append(donors, source)
				shareSum += shares[source]
			}
		}
		if shareSum > 0 {
			for _, source := range donors {
				extra := int(math.Floor(float64(shortfall) * shares[source] / shareSum))
				if avail := len(partitions[source]) - counts[source]; extra > avail {
					extra = avail
				}
				if rem := maxResults - total; extra > rem {
					extra = rem
				}
				counts[source] += extra
				total += extra
			}
		}
	}

	// Backfill round: drain remaining surplus in priority order until
	// the list is full or every partition is exhausted.
	for total < maxResults {
		progressed := false
		for _, source := range order {
			if total >= maxResults {
				break
			}
			if counts[source] < len(partitions[source]) {
				counts[source]++
				total++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	merged := make([]*event.Event, 0, total)
	for _, source := range order {
		merged = append(merged, partitions[source][:counts[source]]...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].HypeScore > merged[j].HypeScore
	})
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

// floorTargets floors each share of maxResults and gives the rounding
// remainder to the first source in order so the targets sum exactly.
func floorTargets(maxResults int, shares map[event.Source]float64, order []event.Source) map[event.Source]int {
	targets := make(map[event.Source]int, len(order))
	sum := 0
	for _, source := range order {
		target := int(math.Floor(shares[source] * float64(maxResults)))
		if target < 0 {
			target = 0
		}
		targets[source] = target
		sum += target
	}
	if rem := maxResults - sum; rem > 0 {
		targets[order[0]] += rem
	}
	return targets
}
