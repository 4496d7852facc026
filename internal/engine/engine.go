// Package engine orchestrates one discovery request: cache lookup,
// provider queries, normalization, deduplication, quality filtering,
// backfill, ratio allocation and ranking.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/allocate"
	"horse.fit/beacon/internal/cache"
	"horse.fit/beacon/internal/dedup"
	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/globaltime"
	"horse.fit/beacon/internal/normalize"
	"horse.fit/beacon/internal/provider"
	"horse.fit/beacon/internal/quality"
	"horse.fit/beacon/internal/rank"
)

const (
	defaultMaxResults = 10
	maxResultsCeiling = 100
	maxWindowDays     = 90
	// Collection stops once this multiple of the target is gathered.
	earlyExitFactor = 2
)

// ValidationError reports a request the engine refuses to run. It is
// terminal: the caller must fix the request, retrying cannot help.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid discovery request: " + e.Reason
}

// SourceStats counts one provider's contribution to a request.
type SourceStats struct {
	Total  int `json:"total"`
	Unique int `json:"unique"`
	Kept   int `json:"kept"`
}

// Result is the outcome of one discovery request.
type Result struct {
	Events       []*event.Event              `json:"events"`
	SourceCounts map[event.Source]SourceStats `json:"source_counts"`
	CacheHit     bool                        `json:"cache_hit"`
	ParseErrors  int                         `json:"parse_errors,omitempty"`
}

// Options tunes one engine instance.
type Options struct {
	// ProviderTimeout bounds each individual provider call.
	ProviderTimeout time.Duration
	// Parallel fetches all providers concurrently; batches are still
	// merged serially in priority order.
	Parallel bool
	CacheTTL time.Duration
	// Shares is the target per-source ratio of the final list.
	Shares map[event.Source]float64
}

func (o *Options) fill() {
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 25 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Hour
	}
	if len(o.Shares) == 0 {
		o.Shares = map[event.Source]float64{
			event.SourceSerpAPI:      0.5,
			event.SourcePredictHQ:    0.25,
			event.SourceTicketmaster: 0.25,
		}
	}
}

// Engine runs discovery sessions. Safe for concurrent use; each request
// owns its own session state.
type Engine struct {
	registry   *provider.Registry
	normalizer *normalize.Normalizer
	filter     *quality.Filter
	scorer     *rank.Scorer
	store      *cache.Store
	opts       Options
	logger     zerolog.Logger
}

// New wires an engine. store may be nil to run without caching.
func New(registry *provider.Registry, normalizer *normalize.Normalizer, filter *quality.Filter, scorer *rank.Scorer, store *cache.Store, opts Options, logger zerolog.Logger) *Engine {
	opts.fill()
	return &Engine{
		registry:   registry,
		normalizer: normalizer,
		filter:     filter,
		scorer:     scorer,
		store:      store,
		opts:       opts,
		logger:     logger,
	}
}

type session struct {
	dedup       *dedup.Deduplicator
	kept        []*event.Event
	stats       map[event.Source]*SourceStats
	parseErrors int
}

// Discover runs the full request state machine and returns the ranked
// result list. Provider failures degrade to zero events from that
// source; only request validation is fatal.
func (e *Engine) Discover(ctx context.Context, q event.Query) (*Result, error) {
	q = clampQuery(q)
	if err := validate(q); err != nil {
		return nil, err
	}

	key := cache.Key(q.Location, q.Categories, q.Start, q.End)
	if e.store != nil {
		if payload, hit := e.store.Get(ctx, key); hit && len(payload.Events) >= q.MaxResults {
			e.logger.Info().Str("location", q.Location).Int("events", q.MaxResults).
				Msg("cache hit")
			return &Result{
				Events:       payload.Events[:q.MaxResults],
				SourceCounts: statsFromCounts(payload.SourceCounts),
				CacheHit:     true,
			}, nil
		}
	}

	sess := &session{
		dedup: dedup.New(e.logger),
		stats: make(map[event.Source]*SourceStats),
	}

	e.collect(ctx, sess, q, q.MaxResults)

	// One backfill round, asking for roughly double the shortfall.
	// Under-fulfillment after that is not an error.
	if shortfall := q.MaxResults - len(sess.kept); shortfall > 0 {
		e.logger.Info().Int("shortfall", shortfall).Msg("running backfill round")
		e.collect(ctx, sess, q, earlyExitFactor*shortfall)
	}

	// Best-effort top-up from overlapping cached windows.
	if e.store != nil && len(sess.kept) < q.MaxResults {
		for _, ev := range e.store.Reuse(ctx, q.Location, q.Start, q.End, q.MaxResults-len(sess.kept)) {
			if sess.dedup.Add(ev) {
				sess.kept = append(sess.kept, ev)
				sess.stat(ev.Source).Kept++
			}
		}
	}

	e.scorer.Apply(sess.kept)

	bySource := make(map[event.Source][]*event.Event)
	for _, ev := range sess.kept {
		bySource[ev.Source] = append(bySource[ev.Source], ev)
	}
	final := allocate.Allocate(bySource, q.MaxResults, e.opts.Shares, e.order())

	result := &Result{
		Events:       final,
		SourceCounts: make(map[event.Source]SourceStats, len(sess.stats)),
		ParseErrors:  sess.parseErrors,
	}
	for source, stats := range sess.stats {
		result.SourceCounts[source] = *stats
	}

	if e.store != nil && len(final) > 0 {
		payload := &cache.Payload{
			Events:       final,
			SourceCounts: finalCounts(final),
		}
		if err := e.store.Set(ctx, key, q.Location, q.Start, q.End, payload, e.opts.CacheTTL); err != nil {
			e.logger.Warn().Err(err).Msg("cache store failed; returning uncached result")
		}
	}

	e.logger.Info().Str("location", q.Location).Int("events", len(final)).
		Int("parse_errors", sess.parseErrors).Msg("discovery complete")
	return result, nil
}

// collect runs one fetch round over all providers and merges the
// batches serially through the session's deduplicator.
func (e *Engine) collect(ctx context.Context, sess *session, q event.Query, perSourceLimit int) {
	adapters := e.registry.Adapters()
	target := earlyExitFactor * q.MaxResults

	if e.opts.Parallel {
		batches := make([][]json.RawMessage, len(adapters))
		var wg sync.WaitGroup
		for i, adapter := range adapters {
			wg.Add(1)
			go func(i int, adapter provider.Adapter) {
				defer wg.Done()
				batches[i] = e.fetch(ctx, adapter, q, perSourceLimit)
			}(i, adapter)
		}
		wg.Wait()
		for i, adapter := range adapters {
			e.merge(sess, adapter.Name(), batches[i], q)
		}
		return
	}

	for _, adapter := range adapters {
		if len(sess.dedup.Events()) >= target {
			e.logger.Debug().Msg("early exit: sufficient candidates collected")
			return
		}
		e.merge(sess, adapter.Name(), e.fetch(ctx, adapter, q, perSourceLimit), q)
	}
}

// fetch isolates one provider call behind its own timeout. Failures are
// logged and contribute zero events.
func (e *Engine) fetch(ctx context.Context, adapter provider.Adapter, q event.Query, limit int) []json.RawMessage {
	cctx, cancel := context.WithTimeout(ctx, e.opts.ProviderTimeout)
	defer cancel()

	started := globaltime.Now()
	batch, err := adapter.Search(cctx, q, limit)
	if err != nil {
		e.logger.Warn().Err(err).Str("source", string(adapter.Name())).
			Dur("elapsed", globaltime.Now().Sub(started)).
			Msg("provider query failed; continuing without it")
		return nil
	}
	e.logger.Debug().Str("source", string(adapter.Name())).Int("raw", len(batch)).
		Dur("elapsed", globaltime.Now().Sub(started)).Msg("provider query done")
	return batch
}

func (e *Engine) merge(sess *session, source event.Source, batch []json.RawMessage, q event.Query) {
	stats := sess.stat(source)
	for _, raw := range batch {
		ev, err := e.normalizer.Build(raw, source, q.Location)
		if err != nil {
			sess.parseErrors++
			continue
		}
		stats.Total++
		if !inWindow(ev, q.Start, q.End) {
			continue
		}
		if !sess.dedup.Add(ev) {
			continue
		}
		stats.Unique++

		verdict := e.filter.Assess(ev, q.Location)
		if !verdict.IsRealEvent {
			continue
		}
		ev.Category = verdict.CleanCategory
		ev.ConfidenceScore = verdict.Confidence
		sess.kept = append(sess.kept, ev)
		stats.Kept++
	}
}

func (s *session) stat(source event.Source) *SourceStats {
	stats, ok := s.stats[source]
	if !ok {
		stats = &SourceStats{}
		s.stats[source] = stats
	}
	return stats
}

func (e *Engine) order() []event.Source {
	adapters := e.registry.Adapters()
	order := make([]event.Source, 0, len(adapters))
	for _, adapter := range adapters {
		order = append(order, adapter.Name())
	}
	return order
}

func clampQuery(q event.Query) event.Query {
	if q.MaxResults <= 0 {
		q.MaxResults = defaultMaxResults
	}
	if q.MaxResults > maxResultsCeiling {
		q.MaxResults = maxResultsCeiling
	}
	return q
}

func validate(q event.Query) error {
	if q.Location == "" {
		return &ValidationError{Reason: "location is required"}
	}
	start := q.Start.UTC().Truncate(24 * time.Hour)
	end := q.End.UTC().Truncate(24 * time.Hour)
	today := globaltime.Now().UTC().Truncate(24 * time.Hour)

	if end.Before(start) {
		return &ValidationError{Reason: "start date is after end date"}
	}
	if end.Sub(start) > maxWindowDays*24*time.Hour {
		return &ValidationError{Reason: fmt.Sprintf("date range exceeds %d days", maxWindowDays)}
	}
	if start.Before(today) {
		return &ValidationError{Reason: "start date is in the past"}
	}
	return nil
}

func statsFromCounts(counts map[event.Source]int) map[event.Source]SourceStats {
	out := make(map[event.Source]SourceStats, len(counts))
	for source, n := range counts {
		out[source] = SourceStats{Kept: n}
	}
	return out
}

func finalCounts(events []*event.Event) map[event.Source]int {
	counts := make(map[event.Source]int)
	for _, ev := range events {
		counts[ev.Source]++
	}
	return counts
}
