package engine

import (
	"strings"
	"time"

	"horse.fit/beacon/internal/event"
)

// inWindow decides whether an event belongs to the requested window.
// Parsed dates are checked strictly by calendar day. Unparsed display
// strings get a loose month/year match so listings like "Dec 7" survive
// a December search. Events with no date information at all are kept.
func inWindow(ev *event.Event, start, end time.Time) bool {
	if ev.Start != nil {
		day := ev.Start.UTC().Truncate(24 * time.Hour)
		return !day.Before(start.UTC().Truncate(24*time.Hour)) &&
			!day.After(end.UTC().Truncate(24*time.Hour))
	}
	if ev.DisplayDate == "" || ev.DisplayDate == "NA" {
		return true
	}
	return looseDateMatch(ev.DisplayDate, start, end)
}

var monthAbbrevs = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func looseDateMatch(display string, start, end time.Time) bool {
	lower := strings.ToLower(display)

	for _, candidate := range []string{
		strings.ToLower(start.Format("January")),
		strings.ToLower(end.Format("January")),
		strings.ToLower(start.Format("Jan")),
		strings.ToLower(end.Format("Jan")),
		start.Format("2006"),
	} {
		if strings.Contains(lower, candidate) {
			return true
		}
	}

	// A recognizable month abbreviation inside the window also counts,
	// including windows that wrap a year boundary.
	for abbrev, month := range monthAbbrevs {
		if !strings.Contains(lower, abbrev) {
			continue
		}
		if monthInRange(month, start.Month(), end.Month()) {
			return true
		}
	}
	return false
}

func monthInRange(m, start, end time.Month) bool {
	if start <= end {
		return m >= start && m <= end
	}
	return m >= start || m <= end
}
