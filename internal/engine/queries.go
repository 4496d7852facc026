package engine

import (
	"fmt"
	"strings"
	"time"
)

var categoryQueryKeywords = map[string][]string{
	"music":    {"concert", "live music", "music festival"},
	"sports":   {"sports game", "football", "basketball"},
	"tech":     {"tech conference", "workshop"},
	"business": {"business conference", "networking"},
	"arts":     {"art exhibition", "theater show"},
	"food":     {"food festival", "wine tasting"},
}

// PlanQueries builds the free-text search strings for a discovery
// window: a few base phrasings with a time phrase sized to the window,
// plus up to two keyword queries per requested category. Duplicates are
// removed and the list is capped at ten.
func PlanQueries(location string, categories []string, start, end time.Time) []string {
	city := strings.TrimSpace(strings.Split(location, ",")[0])

	var timePhrases []string
	switch days := int(end.Sub(start).Hours() / 24); {
	case days <= 7:
		timePhrases = []string{"this week", "next 7 days"}
	case days <= 30:
		timePhrases = []string{start.Format("January"), "this month"}
	default:
		timePhrases = []string{start.Format("January 2006")}
	}

	var queries []string
	for _, phrase := range timePhrases {
		queries = append(queries,
			fmt.Sprintf("events in %s %s", city, phrase),
			fmt.Sprintf("upcoming events %s %s", city, phrase),
			fmt.Sprintf("%s events %s", city, phrase),
		)
	}

	for _, category := range categories {
		keywords := categoryQueryKeywords[strings.ToLower(strings.TrimSpace(category))]
		for i, keyword := range keywords {
			if i >= 2 {
				break
			}
			queries = append(queries, fmt.Sprintf("%s %s", keyword, city))
		}
	}

	seen := make(map[string]struct{}, len(queries))
	unique := queries[:0]
	for _, q := range queries {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		unique = append(unique, q)
	}
	if len(unique) > 10 {
		unique = unique[:10]
	}
	return unique
}
