package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"

	"horse.fit/beacon/internal/cache"
	"horse.fit/beacon/internal/cli"
	"horse.fit/beacon/internal/engine"
	"horse.fit/beacon/internal/event"
)

func runDiscover(args []string) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	location := fs.String("location", "", "City or area to search (required)")
	startDate := fs.String("start", "", "Window start, YYYY-MM-DD (required)")
	endDate := fs.String("end", "", "Window end, YYYY-MM-DD (required)")
	categories := fs.String("categories", "", "Comma-separated category list; empty or \"all\" means no filter")
	maxResults := fs.Int("max", 10, "Maximum events to return (1-100)")
	format := fs.String("format", "table", "Output format: table or json")
	noCache := fs.Bool("no-cache", false, "Skip the query cache for this run")
	serpFixture := fs.String("serpapi-file", "", "JSON file with raw serpapi documents")
	phqFixture := fs.String("predicthq-file", "", "JSON file with raw predicthq documents")
	tmFixture := fs.String("ticketmaster-file", "", "JSON file with raw ticketmaster documents")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *location == "" || *startDate == "" || *endDate == "" {
		fmt.Fprintln(os.Stderr, "--location, --start and --end are required")
		return 2
	}
	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --start: %v\n", err)
		return 2
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --end: %v\n", err)
		return 2
	}

	cfg, logger, err := bootstrap(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	registry := buildRegistry(map[event.Source]string{
		event.SourceSerpAPI:      *serpFixture,
		event.SourcePredictHQ:    *phqFixture,
		event.SourceTicketmaster: *tmFixture,
	}, logger)

	var store *cache.Store
	if !*noCache {
		store, err = openCache(cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("cache unavailable; continuing without it")
			store = nil
		} else {
			defer store.Close()
		}
	}

	eng, err := buildEngine(cfg, registry, store, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	q := event.Query{
		Location:   *location,
		Categories: splitCategories(*categories),
		Start:      start,
		End:        end,
		MaxResults: *maxResults,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	result, err := eng.Discover(ctx, q)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(os.Stderr, verr.Error())
			return 2
		}
		logger.Error().Err(err).Msg("discovery failed")
		fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
		return 1
	}

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
			return 1
		}
		return 0
	}

	printResultTable(result)
	return 0
}

func printResultTable(result *engine.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATE\tVENUE\tCATEGORY\tSOURCE\tHYPE")
	for _, ev := range result.Events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			ev.Name, ev.DisplayDate, ev.Venue, ev.Category, ev.Source, ev.HypeScore)
	}
	w.Flush()

	origin := "live"
	if result.CacheHit {
		origin = "cache"
	}
	fmt.Printf("\n%d events (%s)\n", len(result.Events), origin)
	for source, stats := range result.SourceCounts {
		fmt.Printf("  %s: %d raw, %d unique, %d kept\n", source, stats.Total, stats.Unique, stats.Kept)
	}
}

func splitCategories(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
