// Package quality assesses normalized events with layered rule-based
// checks and a weighted composite score. Assessment is pure per event;
// the only shared state is the bounded region memo.
package quality

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/globaltime"
	"horse.fit/beacon/internal/normalize"
	"horse.fit/beacon/internal/provider"
)

// Verdict is the outcome of assessing one event.
type Verdict struct {
	IsRealEvent      bool     `json:"is_real_event"`
	QualityScore     float64  `json:"quality_score"`
	CleanCategory    string   `json:"clean_category"`
	RejectionReasons []string `json:"rejection_reasons,omitempty"`
	Confidence       float64  `json:"confidence"`
}

const (
	acceptThreshold = 0.5
	// Scores below this are rejected even when no explicit reason fired.
	floorThreshold = 0.3
)

// Season-pass, voucher, test, resale, promo and add-on families. A name
// matching any of these short-circuits the remaining layers.
var noisePatterns = compileAll(
	`\b(season\s+pass|season\s+ticket|full\s+season|half\s+season|season\s+package)\b`,
	`\b(voucher|vouchers|discount\s+pass|membership\s+card|access\s+card)\b`,
	`\b(bundle|bundles|package|packages|ticket\s+package)\b`,
	`\b(id\s+card|member\s+card|pass\s+card)\b`,
	`\d{2}-\d{2}\s+(diamond|gold|silver|platinum|regions|staff|bronze|premium|vip|elite)\s+id\b`,
	`\d{2}-\d{2}\s+[a-z]+\s+id\b`,
	`\b\d{2}-\d{2}\s+id\b`,
	`\b\d{2}-\d{2}\s+(diamond|gold|silver|platinum|regions|staff)\b`,
	`\b(test\s+event|test\s+scan|test\s+only|non-manifested|test\s+locations|test\s+venue|test\s+data)\b`,
	`\btest\s+\w+`,
	`\b(dnc|do\s+not\s+contact|placeholder|dummy|sample)\b`,
	`\b(shell\s+event|overtime\s+experience|mock\s+event)\b`,
	`\b(share|sharing|transfer|resale|exchange)\b.*\b(ticket|pass)\b`,
	`\b(gift\s+card|store\s+credit|refund|credit)\b`,
	`\b(ticket\s+transfer|ticket\s+resale|ticket\s+exchange)\b`,
	`\b(buffet\s+offer|dining\s+offer|food\s+offer|meal\s+offer|special\s+offer)\b`,
	`\b\w+\s+offer$`,
	`\b(vip\s+experience|igloo\s+experience|premium\s+experience|exclusive\s+experience)\b`,
	`\b(upgrade|add-on|addon|package\s+deal)\b`,
	`\b(venue\s+tbd|venue\s+tba|venue\s+tbc|tbd\s+venue|various\s+venues)\b`,
	`\(venue\s+tbd\)`,
	`^\d+$`,
	`^[a-z0-9]{10,}$`,
	`^\d{2}-\d{2}\s+\w+$`,
	`^\d{2}-\d{2}$`,
)

var invalidVenuePatterns = compileAll(
	`\b(test|tbd|tba|tbc|various|multiple|online|virtual)\b`,
	`\b(ga\s+events|general\s+admission\s+only)\b`,
	`\(venue\s+tbd\)`,
	`\(venue\s+tba\)`,
)

var (
	venueTBDRe   = regexp.MustCompile(`\(venue\s+tb[da]\)`)
	codeNameRe   = regexp.MustCompile(`^[A-Z0-9\s-]{5,}$`)
	seasonIDRe   = regexp.MustCompile(`\d{2}-\d{2}\s+\w+\s+id`)
	testPrefixRe = regexp.MustCompile(`\btest\s+\w+`)
	offerTailRe  = regexp.MustCompile(`\w+\s+offer$`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Filter assesses events against the noise, venue, location and scoring
// layers. Safe for concurrent use.
type Filter struct {
	regions  *RegionIndex
	profiles map[event.Source]provider.Profile
	logger   zerolog.Logger
}

func New(logger zerolog.Logger, regions *RegionIndex) *Filter {
	return &Filter{
		regions:  regions,
		profiles: provider.DefaultProfiles(),
		logger:   logger,
	}
}

// Assess produces a Verdict for ev in the context of the searched
// location. It never returns an error; malformed events simply fail the
// checks they cannot pass.
func (f *Filter) Assess(ev *event.Event, searchLocation string) Verdict {
	if ev == nil {
		return Verdict{CleanCategory: "noise", RejectionReasons: []string{"missing event"}}
	}

	name := strings.TrimSpace(ev.Name)
	venue := strings.TrimSpace(ev.Venue)

	// Layer 1: noise families short-circuit everything else.
	if name == "" || matchesAny(noisePatterns, name) {
		return Verdict{
			IsRealEvent:      false,
			QualityScore:     0,
			CleanCategory:    "noise",
			RejectionReasons: []string{"name matches noise pattern"},
			Confidence:       1,
		}
	}

	var reasons []string
	score := 1.0

	// Layer 2: venue validity, with the sports exemption. A sports
	// fixture may carry a bare location as its venue, but an explicit
	// "(Venue TBD)" marker stays invalid even then.
	sports := isSportsEvent(ev)
	if invalidVenue(venue) {
		exempt := sports && venue != "" && !venueTBDRe.MatchString(strings.ToLower(venue))
		if !exempt {
			reasons = append(reasons, "invalid venue")
			score -= 0.5
		}
	}

	// Layer 3: soft location-consistency penalty.
	if f.regionMismatch(ev, searchLocation) {
		score -= 0.3
	}

	// Undated or implausibly distant events lose a little ground but are
	// not rejected outright.
	score -= datePenalty(ev)

	if suspiciousCombination(name, venue) {
		reasons = append(reasons, "suspicious field combination")
		score -= 0.4
	}

	// Layer 4: weighted composite blend.
	score = score*0.6 + scoreName(name)*0.4
	score = score*0.7 + scoreVenue(venue)*0.3
	score = score*0.8 + scoreCategory(ev.Category, name)*0.2
	score = score*0.9 + provider.TrustPrior(f.profiles, ev.Source)*0.1
	score = clamp(score + dateProximityBonus(ev))

	verdict := Verdict{
		QualityScore:  score,
		CleanCategory: cleanCategory(ev.Category, name, venue),
	}
	verdict.IsRealEvent = score >= acceptThreshold && len(reasons) == 0
	if score < floorThreshold {
		verdict.IsRealEvent = false
		if len(reasons) == 0 {
			reasons = append(reasons, "quality score too low")
		}
	}
	verdict.RejectionReasons = reasons
	verdict.Confidence = confidence(score, reasons, name, venue)

	if !verdict.IsRealEvent {
		f.logger.Debug().Str("name", name).Float64("score", score).
			Strs("reasons", reasons).Msg("event rejected")
	}
	return verdict
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	lower := strings.ToLower(text)
	for _, re := range patterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func isSportsEvent(ev *event.Event) bool {
	if strings.Contains(strings.ToLower(ev.Category), "sports") {
		return true
	}
	return normalize.IsSportsName(ev.Name)
}

func invalidVenue(venue string) bool {
	if len(strings.TrimSpace(venue)) < 3 {
		return true
	}
	return matchesAny(invalidVenuePatterns, venue)
}

func (f *Filter) regionMismatch(ev *event.Event, searchLocation string) bool {
	if f.regions == nil {
		return false
	}
	want := f.regions.Resolve(searchLocation)
	if want == RegionUnknown {
		return false
	}
	for _, field := range []string{ev.Location, ev.Venue} {
		if got := f.regions.Resolve(field); got != RegionUnknown && got != want {
			return true
		}
	}
	return false
}

func datePenalty(ev *event.Event) float64 {
	if ev.Start == nil {
		if ev.DisplayDate == "" || ev.DisplayDate == "NA" {
			return 0.1
		}
		return 0
	}
	daysAhead := int(ev.Start.Sub(globaltime.Now()).Hours() / 24)
	if daysAhead > 730 && hasSuspiciousWord(ev.Name) {
		return 0.2
	}
	return 0
}

func hasSuspiciousWord(name string) bool {
	lower := " " + strings.ToLower(name) + " "
	for _, word := range []string{"season", "pass", "voucher", "test", "id"} {
		if strings.Contains(lower, " "+word+" ") {
			return true
		}
	}
	return false
}

func suspiciousCombination(name, venue string) bool {
	lower := strings.ToLower(name)
	venueLower := strings.ToLower(venue)

	if len(name) < 5 && (venueLower == "various" || venueLower == "tbd" || venueLower == "tba") {
		return true
	}
	if codeNameRe.MatchString(name) && venue == "" {
		return true
	}
	if seasonIDRe.MatchString(lower) {
		return true
	}
	if testPrefixRe.MatchString(lower) {
		return true
	}
	if offerTailRe.MatchString(lower) {
		return true
	}
	if strings.Contains(lower, "experience") {
		for _, word := range []string{"vip", "igloo", "premium", "exclusive"} {
			if strings.Contains(lower, word) {
				return true
			}
		}
	}
	return false
}

func scoreName(name string) float64 {
	if len(strings.TrimSpace(name)) < 3 {
		return 0
	}
	score := 0.5

	capitalized := 0
	for _, word := range strings.Fields(name) {
		r := []rune(word)[0]
		if unicode.IsUpper(r) {
			capitalized++
		}
	}
	if capitalized >= 2 {
		score += 0.2
	}
	if len(name) >= 10 && len(name) <= 100 {
		score += 0.2
	}
	if len(name) > 10 && name == strings.ToUpper(name) && name != strings.ToLower(name) {
		score -= 0.1
	}

	special := 0
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' ' {
			special++
		}
	}
	if float64(special)/float64(len([]rune(name))) > 0.3 {
		score -= 0.2
	}
	return clamp(score)
}

func scoreVenue(venue string) float64 {
	if len(strings.TrimSpace(venue)) < 3 {
		return 0
	}
	score := 0.6
	if !normalize.IsGenericVenue(venue) {
		score += 0.3
	}
	lower := strings.ToLower(venue)
	if strings.Contains(venue, ",") || containsAny(lower, "street", "avenue", "road", "blvd") {
		score += 0.1
	}
	return clamp(score)
}

func scoreCategory(category, name string) float64 {
	switch strings.ToLower(category) {
	case "music", "sports", "arts", "theater", "comedy", "food":
		return 1
	case "conferences", "networking", "workshops", "festivals", "tech", "business":
		return 0.7
	case "other":
		if containsAny(strings.ToLower(name), "concert", "game", "match", "show", "festival") {
			return 0.5
		}
		return 0.3
	default:
		return 0.5
	}
}

func dateProximityBonus(ev *event.Event) float64 {
	if ev.Start == nil {
		return 0
	}
	daysAhead := int(ev.Start.Sub(globaltime.Now()).Hours() / 24)
	switch {
	case daysAhead >= 0 && daysAhead <= 30:
		return 0.1
	case daysAhead >= 31 && daysAhead <= 90:
		return 0.05
	case daysAhead > 365:
		return -0.05
	default:
		return 0
	}
}

func cleanCategory(category, name, venue string) string {
	lower := strings.ToLower(strings.TrimSpace(category))
	if lower != "" && lower != "other" && lower != "unknown" {
		return lower
	}

	nameLower := strings.ToLower(name)
	venueLower := strings.ToLower(venue)
	switch {
	case containsAny(nameLower, "concert", "music", "band", "singer", "dj"):
		return "music"
	case containsAny(nameLower, "game", "match", "championship", "tournament", "cup", "league", "vs", "versus"):
		return "sports"
	case containsAny(nameLower, "exhibition", "gallery", "art", "museum"):
		return "arts"
	case containsAny(nameLower, "theater", "theatre", "play", "drama", "show"):
		return "theater"
	case containsAny(nameLower, "food", "dining", "culinary", "tasting") ||
		containsAny(venueLower, "restaurant", "dining"):
		return "food"
	}
	return "other"
}

func confidence(score float64, reasons []string, name, venue string) float64 {
	c := score
	if len(name) > 10 && len(venue) > 5 {
		c += 0.1
	}
	if len(reasons) > 0 && score >= acceptThreshold {
		c -= 0.2
		if c < 0.3 {
			c = 0.3
		}
	}
	return clamp(c)
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
