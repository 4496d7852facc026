package event

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// Source identifies which listing provider an event came from.
type Source string

const (
	SourceSerpAPI      Source = "serpapi"
	SourcePredictHQ    Source = "predicthq"
	SourceTicketmaster Source = "ticketmaster"
)

// AllSources returns the known provider ids in priority order.
func AllSources() []Source {
	return []Source{SourceSerpAPI, SourcePredictHQ, SourceTicketmaster}
}

// Event is the canonical, provider-independent representation of a listing.
// Instances are created fresh per request by the normalizer; only the ranker
// mutates HypeScore afterwards.
type Event struct {
	Name            string     `json:"name"`
	Start           *time.Time `json:"start,omitempty"`
	DisplayDate     string     `json:"display_date"`
	Venue           string     `json:"venue"`
	Location        string     `json:"location"`
	Category        string     `json:"category"`
	ConfidenceScore float64    `json:"confidence_score"`
	HypeScore       float64    `json:"hype_score"`
	Source          Source     `json:"source"`
	SourceURL       string     `json:"source_url,omitempty"`
	TicketURL       string     `json:"ticket_url,omitempty"`
	PriceRange      string     `json:"price_range,omitempty"`
	ContentHash     string     `json:"content_hash"`
}

// Query describes one discovery request window.
type Query struct {
	Location   string    `json:"location"`
	Categories []string  `json:"categories"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	MaxResults int       `json:"max_results"`
}

// HasCategory reports whether the query constrains to a category set.
// An empty list or a single "all" entry means no filter.
func (q Query) HasCategory() bool {
	if len(q.Categories) == 0 {
		return false
	}
	if len(q.Categories) == 1 && strings.EqualFold(strings.TrimSpace(q.Categories[0]), "all") {
		return false
	}
	return true
}

var nonWordRe = regexp.MustCompile(`[^\w\s]`)
var spaceRunRe = regexp.MustCompile(`\s+`)

// ContentHash produces the stable dedup fingerprint of (name, venue, date).
// It is a pure function: identical inputs always hash identically.
func ContentHash(name, venue, displayDate string) string {
	prefix := displayDate
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	normalized := strings.ToLower(name) + "_" + strings.ToLower(venue) + "_" + prefix
	normalized = nonWordRe.ReplaceAllString(normalized, "")
	normalized = spaceRunRe.ReplaceAllString(normalized, "_")
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// Rehash recomputes and stores the event's content hash from its current
// name, venue and display date.
func (e *Event) Rehash() {
	e.ContentHash = ContentHash(e.Name, e.Venue, e.DisplayDate)
}
