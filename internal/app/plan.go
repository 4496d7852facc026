package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/beacon/internal/engine"
)

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	location := fs.String("location", "", "City or area to search (required)")
	startDate := fs.String("start", "", "Window start, YYYY-MM-DD (required)")
	endDate := fs.String("end", "", "Window end, YYYY-MM-DD (required)")
	categories := fs.String("categories", "", "Comma-separated category list")

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

	queries := engine.PlanQueries(*location, splitCategories(*categories), start, end)
	fmt.Println(strings.Join(queries, "\n"))
	return 0
}
