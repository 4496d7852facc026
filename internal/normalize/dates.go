package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"horse.fit/beacon/internal/globaltime"
)

// Parsed is the recovered date/time information for one raw value. DateText
// and TimeText are display fragments; either may be empty when the source
// value did not carry that part.
type Parsed struct {
	Start    *time.Time
	DateText string
	TimeText string
	Timezone string
}

// Display renders the canonical display string. A recovered date is shown
// first, a recovered time or time-range is appended (with timezone when
// present), a time alone is shown by itself, and "NA" marks the case where
// nothing was recovered. A midnight fallback is never displayed.
func (p Parsed) Display() string {
	switch {
	case p.DateText != "" && p.TimeText != "":
		out := p.DateText + ", " + p.TimeText
		if p.Timezone != "" {
			out += " " + p.Timezone
		}
		return out
	case p.DateText != "":
		return p.DateText
	case p.TimeText != "":
		if p.Timezone != "" {
			return p.TimeText + " " + p.Timezone
		}
		return p.TimeText
	default:
		return "NA"
	}
}

const displayDateLayout = "January 2, 2006"

// DateTimeParser tries an ordered list of format strategies and returns on
// the first success, replacing the per-provider parse chains the upstream
// payloads would otherwise force.
type DateTimeParser struct{}

func NewDateTimeParser() *DateTimeParser {
	return &DateTimeParser{}
}

// ParseValue accepts the loosely-typed date field of a raw payload: a string,
// a numeric Unix timestamp, or a json.Number-ish fmt.Stringer.
func (p *DateTimeParser) ParseValue(value any) Parsed {
	switch v := value.(type) {
	case nil:
		return Parsed{}
	case string:
		return p.ParseString(v)
	case float64:
		return p.fromUnix(int64(v))
	case int64:
		return p.fromUnix(v)
	case int:
		return p.fromUnix(int64(v))
	case fmt.Stringer:
		return p.ParseString(v.String())
	default:
		return p.ParseString(fmt.Sprintf("%v", value))
	}
}

// ParseString runs the strategy chain over a raw date string.
func (p *DateTimeParser) ParseString(raw string) Parsed {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Parsed{}
	}

	strategies := []func(string) (Parsed, bool){
		p.parseISO,
		p.parseUnixString,
		p.parseKnownLayouts,
		p.parseMonthDayNoYear,
		p.parseComposite,
		p.parseTextualTime,
		p.parseFallback,
	}

	for _, strategy := range strategies {
		if parsed, ok := strategy(s); ok {
			return parsed
		}
	}
	return Parsed{}
}

func (p *DateTimeParser) parseISO(s string) (Parsed, bool) {
	if !strings.Contains(s, "-") {
		return Parsed{}, false
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, strings.Replace(s, "Z", "+00:00", 1))
		if err != nil {
			t, err = time.Parse(layout, s)
		}
		if err != nil {
			continue
		}
		return fromTime(t), true
	}
	return Parsed{}, false
}

func (p *DateTimeParser) parseUnixString(s string) (Parsed, bool) {
	if len(s) != 10 && len(s) != 13 {
		return Parsed{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Parsed{}, false
	}
	return p.fromUnix(n), true
}

func (p *DateTimeParser) fromUnix(n int64) Parsed {
	if n <= 0 {
		return Parsed{}
	}
	if n > 1e12 {
		n /= 1000 // milliseconds
	}
	return fromTime(time.Unix(n, 0).UTC())
}

func (p *DateTimeParser) parseKnownLayouts(s string) (Parsed, bool) {
	layouts := []string{
		"January 2, 2006 3:04 PM",
		"Jan 2, 2006 3:04 PM",
		"January 2, 2006",
		"Jan 2, 2006",
		"January 2 2006",
		"Jan 2 2006",
		"2 January 2006",
		"2 Jan 2006",
		"01/02/2006",
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return fromTime(t), true
	}
	return Parsed{}, false
}

var monthDayRe = regexp.MustCompile(`^(?i)(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+(\d{1,2})$`)

// parseMonthDayNoYear handles values like "Dec 7". The year is inferred: if
// the month/day already passed this year, the event is assumed to be next
// year.
func (p *DateTimeParser) parseMonthDayNoYear(s string) (Parsed, bool) {
	m := monthDayRe.FindStringSubmatch(strings.TrimSuffix(s, ","))
	if m == nil {
		return Parsed{}, false
	}

	month, ok := monthByName(m[1])
	if !ok {
		return Parsed{}, false
	}
	day, err := strconv.Atoi(m[2])
	if err != nil || day < 1 || day > 31 {
		return Parsed{}, false
	}

	now := globaltime.Now()
	year := now.Year()
	if month < now.Month() || (month == now.Month() && day < now.Day()) {
		year++
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Parsed{Start: &t, DateText: t.Format(displayDateLayout)}, true
}

var (
	timezoneRe  = regexp.MustCompile(`\b([A-Z][a-z]+/[A-Za-z_]+|UTC(?:[+-]\d{1,2})?|GMT(?:[+-]\d{1,2})?)\b`)
	timeRangeRe = regexp.MustCompile(`\b(\d{1,2}(?::\d{2})?\s*(?:AM|PM|am|pm)?\s*[–—-]\s*\d{1,2}(?::\d{2})?\s*(?:AM|PM|am|pm))\b`)
	singleClock = regexp.MustCompile(`\b(\d{1,2}:\d{2}\s*(?:AM|PM|am|pm)?|\d{1,2}\s*(?:AM|PM|am|pm))\b`)
	weekdayRe   = regexp.MustCompile(`^(?i)(Mon|Tue|Tues|Wed|Thu|Thur|Thurs|Fri|Sat|Sun)[a-z]*\.?,?\s*`)
	monthDayIn  = regexp.MustCompile(`(?i)\b(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+(\d{1,2})(?:,?\s*(\d{4}))?`)
)

// parseComposite handles strings such as
// "Wed, Dec 17, 7:30 – 9:00 PM Asia/Tokyo": the complete time-range
// substring and the timezone token are preserved verbatim, and the date part
// is extracted separately.
func (p *DateTimeParser) parseComposite(s string) (Parsed, bool) {
	working := s

	var timezone string
	if m := timezoneRe.FindString(working); m != "" {
		timezone = m
		working = strings.Replace(working, m, "", 1)
	}

	var timeText string
	if m := timeRangeRe.FindString(working); m != "" {
		timeText = normalizeSpaces(m)
		working = strings.Replace(working, m, "", 1)
	} else if m := singleClock.FindString(working); m != "" {
		timeText = normalizeSpaces(m)
		working = strings.Replace(working, m, "", 1)
	} else if m := textualTimeRe.FindStringSubmatch(working); m != nil {
		// No numeric time anywhere; a time-of-day word maps to the
		// fixed clock table.
		key := strings.TrimSpace(strings.ToLower(strings.TrimSpace(m[1]) + " " + m[2]))
		if clock, ok := textualClock[key]; ok {
			timeText = time.Date(0, 1, 1, clock.hour, clock.minute, 0, 0, time.UTC).Format("3:04 PM")
			working = strings.Replace(working, m[0], "", 1)
		}
	}

	working = weekdayRe.ReplaceAllString(strings.TrimSpace(working), "")

	var dateText string
	var start *time.Time
	if m := monthDayIn.FindStringSubmatch(working); m != nil {
		month, ok := monthByName(m[1])
		day, err := strconv.Atoi(m[2])
		if ok && err == nil && day >= 1 && day <= 31 {
			now := globaltime.Now()
			year := now.Year()
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
			} else if month < now.Month() || (month == now.Month() && day < now.Day()) {
				year++
			}
			t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if h, min, ok := clockFromText(timeText); ok {
				t = time.Date(year, month, day, h, min, 0, 0, time.UTC)
			}
			start = &t
			dateText = t.Format(displayDateLayout)
		}
	}

	if dateText == "" && timeText == "" {
		return Parsed{}, false
	}
	return Parsed{Start: start, DateText: dateText, TimeText: timeText, Timezone: timezone}, true
}

// textualClock maps time-of-day words to a fixed wall-clock hour. Used only
// when the raw value carries no numeric time.
var textualClock = map[string]struct {
	hour   int
	minute int
}{
	"early morning":   {6, 0},
	"morning":         {9, 0},
	"late morning":    {11, 0},
	"noon":            {12, 0},
	"early afternoon": {13, 0},
	"afternoon":       {14, 0},
	"late afternoon":  {16, 0},
	"early evening":   {17, 30},
	"evening":         {19, 0},
	"late evening":    {21, 0},
	"night":           {20, 0},
	"early night":     {20, 0},
	"late night":      {23, 0},
	"midnight":        {0, 0},
}

var textualTimeRe = regexp.MustCompile(`(?i)\b((?:early|late)\s+)?(morning|afternoon|evening|night|noon|midnight)\b`)

func (p *DateTimeParser) parseTextualTime(s string) (Parsed, bool) {
	m := textualTimeRe.FindStringSubmatch(s)
	if m == nil {
		return Parsed{}, false
	}
	key := strings.ToLower(strings.TrimSpace(m[1]) + " " + m[2])
	key = strings.TrimSpace(key)
	clock, ok := textualClock[key]
	if !ok {
		return Parsed{}, false
	}

	t := time.Date(0, 1, 1, clock.hour, clock.minute, 0, 0, time.UTC)
	parsed := Parsed{TimeText: t.Format("3:04 PM")}

	// The remainder of the string may still carry a date.
	remainder := textualTimeRe.ReplaceAllString(s, "")
	if inner := p.ParseString(strings.Trim(remainder, " ,-–")); inner.DateText != "" {
		parsed.DateText = inner.DateText
		if inner.Start != nil {
			with := time.Date(inner.Start.Year(), inner.Start.Month(), inner.Start.Day(), clock.hour, clock.minute, 0, 0, time.UTC)
			parsed.Start = &with
		}
	}
	return parsed, true
}

func (p *DateTimeParser) parseFallback(s string) (Parsed, bool) {
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return Parsed{}, false
	}
	return fromTime(t), true
}

// fromTime builds the display fragments for a fully parsed instant. A
// midnight clock is treated as date-only so the display never shows an
// invented time.
func fromTime(t time.Time) Parsed {
	utc := t.UTC()
	parsed := Parsed{Start: &utc, DateText: utc.Format(displayDateLayout)}
	if h, m, s := utc.Clock(); h != 0 || m != 0 || s != 0 {
		parsed.TimeText = utc.Format("3:04 PM")
	}
	return parsed
}

func clockFromText(timeText string) (hour, minute int, ok bool) {
	if timeText == "" {
		return 0, 0, false
	}
	first := strings.FieldsFunc(timeText, func(r rune) bool {
		return r == '–' || r == '—' || r == '-'
	})[0]
	first = strings.TrimSpace(first)

	pm := strings.Contains(strings.ToUpper(timeText), "PM")
	if strings.Contains(strings.ToUpper(first), "AM") {
		pm = false
	}
	first = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(strings.ToUpper(first), "AM"), "PM"))

	hh, mm, found := strings.Cut(first, ":")
	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m := 0
	if found {
		m, err = strconv.Atoi(strings.TrimSpace(mm))
		if err != nil || m < 0 || m > 59 {
			return 0, 0, false
		}
	}
	if pm && h < 12 {
		h += 12
	}
	return h, m, true
}

func monthByName(name string) (time.Month, bool) {
	switch strings.ToLower(name[:3]) {
	case "jan":
		return time.January, true
	case "feb":
		return time.February, true
	case "mar":
		return time.March, true
	case "apr":
		return time.April, true
	case "may":
		return time.May, true
	case "jun":
		return time.June, true
	case "jul":
		return time.July, true
	case "aug":
		return time.August, true
	case "sep":
		return time.September, true
	case "oct":
		return time.October, true
	case "nov":
		return time.November, true
	case "dec":
		return time.December, true
	default:
		return 0, false
	}
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
