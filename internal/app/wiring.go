package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/cache"
	"horse.fit/beacon/internal/cli"
	"horse.fit/beacon/internal/config"
	"horse.fit/beacon/internal/engine"
	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/logging"
	"horse.fit/beacon/internal/normalize"
	"horse.fit/beacon/internal/provider"
	"horse.fit/beacon/internal/quality"
	"horse.fit/beacon/internal/rank"
)

// bootstrap loads the env file, configuration and logger shared by all
// subcommands.
func bootstrap(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// fixtureAdapter serves raw event payloads from a local JSON file
// holding an array of provider documents. Live API clients are wired in
// the same way: anything satisfying provider.Adapter plugs in here.
func fixtureAdapter(source event.Source, path string) provider.Adapter {
	return provider.Func{
		Source: source,
		Fn: func(_ context.Context, _ event.Query, limit int) ([]json.RawMessage, error) {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read fixture %s: %w", path, err)
			}
			var batch []json.RawMessage
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, fmt.Errorf("decode fixture %s: %w", path, err)
			}
			if limit > 0 && len(batch) > limit {
				batch = batch[:limit]
			}
			return batch, nil
		},
	}
}

// buildRegistry assembles the provider registry from fixture paths,
// each adapter wrapped in its own circuit breaker.
func buildRegistry(fixtures map[event.Source]string, logger zerolog.Logger) *provider.Registry {
	var adapters []provider.Adapter
	for source, path := range fixtures {
		if strings.TrimSpace(path) == "" {
			continue
		}
		adapters = append(adapters, provider.WithBreaker(fixtureAdapter(source, path), logger))
	}
	return provider.NewRegistry(provider.DefaultProfiles(), adapters...)
}

// buildEngine wires the full discovery stack from configuration.
func buildEngine(cfg *config.Config, registry *provider.Registry, store *cache.Store, logger zerolog.Logger) (*engine.Engine, error) {
	regions, err := quality.NewRegionIndex(cfg.RegionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("build region index: %w", err)
	}

	ratio, err := cfg.SourceRatioMap()
	if err != nil {
		return nil, err
	}
	shares := make(map[event.Source]float64, len(ratio))
	for name, share := range ratio {
		shares[event.Source(name)] = share
	}

	return engine.New(
		registry,
		normalize.New(logger),
		quality.New(logger, regions),
		rank.NewScorer(registry.Profiles()),
		store,
		engine.Options{
			ProviderTimeout: cfg.ProviderTimeout,
			Parallel:        cfg.ProviderParallel,
			CacheTTL:        cfg.CacheTTL,
			Shares:          shares,
		},
		logger,
	), nil
}

func openCache(cfg *config.Config, logger zerolog.Logger) (*cache.Store, error) {
	return cache.New(cfg.CachePath, cache.Options{
		ReuseScanSize: cfg.ReuseScanSize,
		ReuseMaxAge:   cfg.ReuseMaxAge,
	}, logger)
}
