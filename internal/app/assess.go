package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"horse.fit/beacon/internal/cli"
	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/normalize"
	"horse.fit/beacon/internal/quality"
)

// runAssess normalizes a single raw provider document and prints the
// quality verdict, useful when tuning filter behavior against captured
// payloads.
func runAssess(args []string) int {
	fs := flag.NewFlagSet("assess", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "", "JSON file holding one raw provider document (default: stdin)")
	source := fs.String("source", "serpapi", "Provider the document came from")
	location := fs.String("location", "", "Search location the document was fetched for (required)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *location == "" {
		fmt.Fprintln(os.Stderr, "--location is required")
		return 2
	}

	cfg, logger, err := bootstrap(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	raw, err := readInput(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ev, err := normalize.New(logger).Build(raw, event.Source(*source), *location)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Normalization rejected the document: %v\n", err)
		return 1
	}

	regions, err := quality.NewRegionIndex(cfg.RegionCacheSize)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	verdict := quality.New(logger, regions).Assess(ev, *location)

	out := struct {
		Event   *event.Event    `json:"event"`
		Verdict quality.Verdict `json:"verdict"`
	}{ev, verdict}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
		return 1
	}
	return 0
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
