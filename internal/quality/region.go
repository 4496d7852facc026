package quality

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Region is a coarse geographic bucket used only to spot glaring
// location mismatches, never to reject on its own.
type Region string

const (
	RegionUnknown  Region = ""
	RegionAmericas Region = "americas"
	RegionEurope   Region = "europe"
	RegionAsia     Region = "asia"
)

var regionIndicators = []struct {
	region Region
	terms  []string
}{
	{RegionAmericas, []string{
		"united states", "usa", "america", "u.s.", "canada",
		"new york", "los angeles", "chicago", "austin", "houston",
		"san francisco", "toronto", "mexico",
	}},
	{RegionEurope, []string{
		"europe", "european", "united kingdom", "uk", "england",
		"london", "paris", "berlin", "madrid", "rome", "amsterdam",
		"france", "germany", "spain", "italy",
	}},
	{RegionAsia, []string{
		"asia", "asian", "hong kong", "hongkong", "china", "japan",
		"korea", "tokyo", "beijing", "shanghai", "singapore", "seoul",
		"taipei", "bangkok", "kuwait", "dubai", "india",
	}},
}

// RegionIndex resolves free-form location strings to a macro region.
// Lookups are memoized in a bounded LRU so repeated venue strings within
// a burst of requests resolve without rescanning the indicator lists.
type RegionIndex struct {
	memo *lru.Cache[string, Region]
}

// NewRegionIndex builds an index with a memo cache of the given size.
// Sizes below 1 fall back to a small default.
func NewRegionIndex(size int) (*RegionIndex, error) {
	if size < 1 {
		size = 128
	}
	memo, err := lru.New[string, Region](size)
	if err != nil {
		return nil, err
	}
	return &RegionIndex{memo: memo}, nil
}

// Resolve returns the macro region implied by s, or RegionUnknown when no
// indicator matches.
func (ri *RegionIndex) Resolve(s string) Region {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return RegionUnknown
	}
	if region, ok := ri.memo.Get(key); ok {
		return region
	}
	region := resolveRegion(key)
	ri.memo.Add(key, region)
	return region
}

func resolveRegion(lower string) Region {
	padded := " " + lower + " "
	for _, group := range regionIndicators {
		for _, term := range group.terms {
			if strings.Contains(padded, " "+term+" ") || strings.Contains(lower, term+",") {
				return group.region
			}
		}
	}
	return RegionUnknown
}
