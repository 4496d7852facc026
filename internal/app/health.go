package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"horse.fit/beacon/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := bootstrap(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	store, err := openCache(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cache check failed: %v\n", err)
		return 1
	}
	if err := store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Cache close failed: %v\n", err)
		return 1
	}

	fmt.Println("Configuration OK")
	fmt.Printf("Cache OK (%s)\n", cfg.CachePath)
	return 0
}
