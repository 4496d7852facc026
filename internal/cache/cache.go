// Package cache persists computed result lists keyed by the search
// window, with a secondary best-effort reuse scan over overlapping
// windows for the same location.
package cache

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/globaltime"
)

// Payload is the cached result of one discovery request.
type Payload struct {
	Events       []*event.Event       `json:"events"`
	SourceCounts map[event.Source]int `json:"source_counts"`
}

type row struct {
	Key         string    `db:"key"`
	Location    string    `db:"location"`
	WindowStart time.Time `db:"window_start"`
	WindowEnd   time.Time `db:"window_end"`
	Payload     string    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Options bounds the overlapping-window reuse scan.
type Options struct {
	// ReuseScanSize caps how many recent entries one reuse scan reads.
	ReuseScanSize int
	// ReuseMaxAge bounds how long an event with an unparseable date
	// stays eligible for reuse.
	ReuseMaxAge time.Duration
}

func (o *Options) fill() {
	if o.ReuseScanSize <= 0 {
		o.ReuseScanSize = 500
	}
	if o.ReuseMaxAge <= 0 {
		o.ReuseMaxAge = 7 * 24 * time.Hour
	}
}

// Store is a SQLite-backed query cache. Concurrent readers are safe;
// writes are last-write-wins per key.
type Store struct {
	db     *sqlx.DB
	opts   Options
	logger zerolog.Logger
}

// New opens the cache database at path and runs migrations. Use
// ":memory:" for an ephemeral cache.
func New(path string, opts Options, logger zerolog.Logger) (*Store, error) {
	opts.fill()
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, opts: opts, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives the stable cache key for a search window.
func Key(location string, categories []string, start, end time.Time) string {
	sorted := make([]string, 0, len(categories))
	for _, c := range categories {
		sorted = append(sorted, strings.ToLower(strings.TrimSpace(c)))
	}
	sort.Strings(sorted)

	material := strings.Join([]string{
		NormalizeLocation(location),
		strings.Join(sorted, ","),
		start.UTC().Format("2006-01-02"),
		end.UTC().Format("2006-01-02"),
	}, "|")
	sum := md5.Sum([]byte(material))
	return hex.EncodeToString(sum[:])
}

// NormalizeLocation lowercases and collapses a location for keying and
// for the reuse scan's location match.
func NormalizeLocation(location string) string {
	return strings.Join(strings.Fields(strings.ToLower(location)), " ")
}

// Get returns the stored payload for key while it is still fresh. Any
// read or decode failure is reported as a miss.
func (s *Store) Get(ctx context.Context, key string) (*Payload, bool) {
	var r row
	err := s.db.GetContext(ctx, &r, "SELECT * FROM query_cache WHERE key = ?", key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn().Err(err).Msg("cache read failed; treating as miss")
		}
		return nil, false
	}
	if !globaltime.Now().Before(r.ExpiresAt) {
		return nil, false
	}
	var payload Payload
	if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache payload corrupt; treating as miss")
		return nil, false
	}
	return &payload, true
}

// Set upserts the payload under key, overwriting any prior value.
func (s *Store) Set(ctx context.Context, key, location string, start, end time.Time, payload *Payload, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	now := globaltime.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_cache (key, location, window_start, window_end, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			location     = excluded.location,
			window_start = excluded.window_start,
			window_end   = excluded.window_end,
			payload      = excluded.payload,
			created_at   = excluded.created_at,
			expires_at   = excluded.expires_at
	`, key, NormalizeLocation(location), start.UTC(), end.UTC(), string(raw), now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("upsert cache entry %s: %w", key, err)
	}
	return nil
}

// Reuse scans recent entries for the same location and collects events
// whose parsed date falls inside [start, end], regardless of the key
// they were stored under. Events without a parsed date are reused only
// while their entry is younger than ReuseMaxAge. Failures yield an
// empty slice, never an error.
func (s *Store) Reuse(ctx context.Context, location string, start, end time.Time, limit int) []*event.Event {
	if limit <= 0 {
		return nil
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM query_cache
		WHERE location = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, NormalizeLocation(location), s.opts.ReuseScanSize)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache reuse scan failed")
		return nil
	}

	now := globaltime.Now()
	seen := make(map[string]struct{})
	var out []*event.Event
	for _, r := range rows {
		var payload Payload
		if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
			continue
		}
		for _, ev := range payload.Events {
			if _, dup := seen[ev.ContentHash]; dup {
				continue
			}
			if !reusable(ev, r.CreatedAt, start, end, now, s.opts.ReuseMaxAge) {
				continue
			}
			seen[ev.ContentHash] = struct{}{}
			out = append(out, ev)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

func reusable(ev *event.Event, storedAt, start, end, now time.Time, maxAge time.Duration) bool {
	if ev.Start == nil {
		return now.Sub(storedAt) <= maxAge
	}
	day := ev.Start.UTC().Truncate(24 * time.Hour)
	return !day.Before(start.UTC().Truncate(24*time.Hour)) && !day.After(end.UTC().Truncate(24*time.Hour))
}
