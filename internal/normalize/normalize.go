// Package normalize turns raw provider payloads into canonical Events.
package normalize

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/event"
	payloadschema "horse.fit/beacon/schema"
)

const (
	// VenueNotSpecified is the placeholder venue for listings that carry
	// no resolvable venue at all.
	VenueNotSpecified = "Venue not specified"

	maxSourceURLLen = 2048
	maxNameLen      = 100
	maxVenueLen     = 80
	maxLocationLen  = 60
)

// ErrDiscard marks a raw payload the normalizer rejected (missing or too
// short a title). The batch continues past it.
var ErrDiscard = fmt.Errorf("raw event discarded")

// Normalizer converts one raw provider payload into a canonical Event.
type Normalizer struct {
	parser *DateTimeParser
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		parser: NewDateTimeParser(),
		logger: logger,
	}
}

// Build normalizes a raw payload. It returns ErrDiscard (wrapped) when the
// payload cannot yield an acceptable Event; any other shape problem is
// handled leniently.
func (n *Normalizer) Build(raw json.RawMessage, source event.Source, searchLocation string) (*event.Event, error) {
	fields, err := payloadschema.ValidateEventPayload(raw)
	if err != nil {
		// Schema failures downgrade to lenient extraction; only
		// undecodable JSON is fatal for this one event.
		var lenient map[string]any
		if decodeErr := json.Unmarshal(raw, &lenient); decodeErr != nil {
			return nil, fmt.Errorf("%w: undecodable payload: %v", ErrDiscard, decodeErr)
		}
		n.logger.Debug().Err(err).Str("source", string(source)).
			Msg("payload schema validation failed; falling back to lenient extraction")
		fields = lenient
	}

	title := strings.TrimSpace(coerceString(firstOf(fields, "title", "name")))
	if len(title) < 3 {
		return nil, fmt.Errorf("%w: title missing or too short", ErrDiscard)
	}

	parsed := n.parseWhen(fields)

	address := extractAddress(fields)
	venue := n.resolveVenue(fields, title, address, searchLocation)
	location := resolveLocation(address, venue, searchLocation)

	ev := &event.Event{
		Name:            clip(title, maxNameLen),
		Start:           parsed.Start,
		DisplayDate:     parsed.Display(),
		Venue:           clip(venue, maxVenueLen),
		Location:        clip(location, maxLocationLen),
		Category:        ClassifyCategory(title),
		ConfidenceScore: confidenceFor(source),
		Source:          source,
		SourceURL:       ValidateURL(coerceString(firstOf(fields, "link", "url", "source_url"))),
		TicketURL:       ValidateURL(coerceString(fields["ticket_url"])),
		PriceRange:      extractPriceRange(fields),
	}
	if ev.TicketURL == "" && source == event.SourceTicketmaster {
		ev.TicketURL = ev.SourceURL
	}
	ev.Rehash()

	return ev, nil
}

// parseWhen walks the loosely-typed date shapes the providers emit.
func (n *Normalizer) parseWhen(fields map[string]any) Parsed {
	if info, ok := fields["date"].(map[string]any); ok {
		for _, key := range []string{"start_date", "when", "date", "timestamp"} {
			if value, ok := info[key]; ok && value != nil {
				if parsed := n.parser.ParseValue(value); parsed.Display() != "NA" {
					return parsed
				}
			}
		}
	} else if value, ok := fields["date"]; ok && value != nil {
		if parsed := n.parser.ParseValue(value); parsed.Display() != "NA" {
			return parsed
		}
	}

	for _, key := range []string{"start_date", "when", "start"} {
		if value, ok := fields[key]; ok && value != nil {
			if parsed := n.parser.ParseValue(value); parsed.Display() != "NA" {
				return parsed
			}
		}
	}

	// Ticketed feeds nest the schedule under dates.start.
	if dates, ok := fields["dates"].(map[string]any); ok {
		if start, ok := dates["start"].(map[string]any); ok {
			localDate := coerceString(start["localDate"])
			localTime := coerceString(start["localTime"])
			raw := strings.TrimSpace(localDate + " " + localTime)
			if raw != "" {
				if parsed := n.parser.ParseString(raw); parsed.Display() != "NA" {
					return parsed
				}
				if parsed := n.parser.ParseString(localDate); parsed.Display() != "NA" {
					return parsed
				}
			}
		}
	}

	return Parsed{}
}

// resolveVenue applies the resolution order: explicit venue name, first
// address token, then the generic placeholder. Sports fixtures may fall back
// to the bare search location instead of the placeholder.
func (n *Normalizer) resolveVenue(fields map[string]any, title, address, searchLocation string) string {
	var name string
	switch v := fields["venue"].(type) {
	case map[string]any:
		name = strings.TrimSpace(coerceString(v["name"]))
	case string:
		name = strings.TrimSpace(v)
	case []any:
		name = strings.TrimSpace(coerceString(v))
	}

	// Embedded venue lists (ticketing feeds).
	if name == "" {
		if embedded, ok := fields["_embedded"].(map[string]any); ok {
			if venues, ok := embedded["venues"].([]any); ok && len(venues) > 0 {
				if first, ok := venues[0].(map[string]any); ok {
					name = strings.TrimSpace(coerceString(first["name"]))
				}
			}
		}
	}

	if len(name) >= 3 && !IsGenericVenue(name) {
		return name
	}

	if address != "" {
		first := strings.TrimSpace(strings.Split(address, ",")[0])
		if len(first) >= 3 {
			return first
		}
	}

	if IsSportsName(title) && strings.TrimSpace(searchLocation) != "" {
		return strings.TrimSpace(searchLocation)
	}

	return VenueNotSpecified
}

func extractAddress(fields map[string]any) string {
	if addr := coerceString(fields["address"]); strings.TrimSpace(addr) != "" {
		return strings.TrimSpace(addr)
	}
	if venue, ok := fields["venue"].(map[string]any); ok {
		parts := make([]string, 0, 4)
		for _, key := range []string{"address", "street", "city", "state", "region", "country"} {
			if v := strings.TrimSpace(coerceString(venue[key])); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}
	if location, ok := fields["location"].(map[string]any); ok {
		if v := strings.TrimSpace(coerceString(location["address"])); v != "" {
			return v
		}
	}
	return ""
}

// resolveLocation takes the trailing comma-delimited token of the address
// (or venue) and otherwise falls back to the search location. The result is
// always a scalar string.
func resolveLocation(address, venue, searchLocation string) string {
	for _, candidate := range []string{address, venue} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || candidate == VenueNotSpecified {
			continue
		}
		if strings.Contains(candidate, ",") {
			parts := strings.Split(candidate, ",")
			last := strings.TrimSpace(parts[len(parts)-1])
			if last != "" {
				return last
			}
		} else if candidate == address {
			return candidate
		}
	}
	return strings.TrimSpace(searchLocation)
}

// coerceString flattens the loosely-typed upstream values to one scalar
// string; lists are joined with ", ".
func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := coerceString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return coerceString(firstOf(v, "name", "line1", "value"))
	case json.Number:
		return v.String()
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case bool:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func firstOf(fields map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := fields[key]; ok && value != nil {
			if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return value
		}
	}
	return nil
}

var genericVenues = map[string]struct{}{
	"various venues":      {},
	"various":             {},
	"tbd":                 {},
	"tba":                 {},
	"tbc":                 {},
	"online":              {},
	"virtual":             {},
	"venue not specified": {},
}

// IsGenericVenue reports whether a venue string is a non-venue placeholder.
func IsGenericVenue(venue string) bool {
	_, ok := genericVenues[strings.ToLower(strings.TrimSpace(venue))]
	return ok
}

var sportsKeywords = []string{"vs", "versus", "match", "championship", "tournament", "cup", "league", "game"}

// IsSportsName reports whether an event name reads like a sports fixture.
func IsSportsName(name string) bool {
	lower := " " + strings.ToLower(name) + " "
	for _, keyword := range sportsKeywords {
		if strings.Contains(lower, " "+keyword+" ") {
			return true
		}
	}
	return false
}

// ClassifyCategory buckets an event name into the engine's category set.
func ClassifyCategory(text string) string {
	if strings.TrimSpace(text) == "" {
		return "other"
	}
	lower := strings.ToLower(text)

	buckets := []struct {
		category string
		keywords []string
	}{
		{"music", []string{"concert", "music", "dj", "band", "live music", "festival"}},
		{"sports", []string{"sports", "game", "match", "tournament", "championship", "cup"}},
		{"tech", []string{"tech", "technology", "conference", "summit", "workshop"}},
		{"business", []string{"business", "networking", "expo"}},
		{"arts", []string{"art", "theater", "theatre", "exhibition", "gallery", "performance"}},
		{"food", []string{"food", "culinary", "wine", "tasting"}},
	}
	for _, bucket := range buckets {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lower, keyword) {
				return bucket.category
			}
		}
	}
	return "other"
}

// ValidateURL returns the URL when it is an absolute http(s) URL with a
// host, within length bounds and free of whitespace and control characters;
// otherwise it returns "".
func ValidateURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxSourceURLLen {
		return ""
	}
	for _, r := range raw {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ""
		}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}
	return raw
}

func extractPriceRange(fields map[string]any) string {
	ranges, ok := fields["priceRanges"].([]any)
	if !ok || len(ranges) == 0 {
		return ""
	}
	first, ok := ranges[0].(map[string]any)
	if !ok {
		return ""
	}
	min := coerceNumber(first["min"])
	max := coerceNumber(first["max"])
	if min <= 0 || max <= 0 {
		return ""
	}
	return fmt.Sprintf("$%.2f - $%.2f", min, max)
}

func coerceNumber(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func confidenceFor(source event.Source) float64 {
	switch source {
	case event.SourceSerpAPI:
		return 0.85
	case event.SourcePredictHQ:
		return 0.8
	case event.SourceTicketmaster:
		return 0.75
	default:
		return 0.6
	}
}

// clip truncates to at most max runes so a multibyte character is never
// split mid-sequence.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) > max {
		runes = runes[:max]
	}
	return strings.TrimSpace(string(runes))
}
