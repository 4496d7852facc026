package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Cache settings. CachePath may be ":memory:" for a process-local cache.
	CachePath     string        `envconfig:"BEACON_CACHE_PATH" default:"beacon-cache.db"`
	CacheTTL      time.Duration `envconfig:"BEACON_CACHE_TTL" default:"1h"`
	ReuseMaxAge   time.Duration `envconfig:"BEACON_CACHE_REUSE_MAX_AGE" default:"168h"`
	ReuseScanSize int           `envconfig:"BEACON_CACHE_REUSE_SCAN_SIZE" default:"500"`

	// Provider settings.
	SerpAPIKey       string        `envconfig:"SERP_API_KEY" default:""`
	PredictHQKey     string        `envconfig:"PREDICTHQ_API_KEY" default:""`
	TicketmasterKey  string        `envconfig:"TICKETMASTER_API_KEY" default:""`
	ProviderTimeout  time.Duration `envconfig:"BEACON_PROVIDER_TIMEOUT" default:"25s"`
	ProviderParallel bool          `envconfig:"BEACON_PROVIDER_PARALLEL" default:"true"`

	// SourceRatio is the target share of the final list per provider id,
	// as "serpapi:0.5,predicthq:0.25,ticketmaster:0.25". Tunable product
	// policy, not a structural invariant.
	SourceRatio string `envconfig:"BEACON_SOURCE_RATIO" default:"serpapi:0.5,predicthq:0.25,ticketmaster:0.25"`

	// RegionCacheSize bounds the macro-region memo cache used by the
	// quality filter's location-consistency layer.
	RegionCacheSize int `envconfig:"BEACON_REGION_CACHE_SIZE" default:"2048"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.CachePath) == "" {
		return fmt.Errorf("BEACON_CACHE_PATH is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("BEACON_CACHE_TTL must be positive")
	}
	if c.ProviderTimeout < time.Second {
		return fmt.Errorf("BEACON_PROVIDER_TIMEOUT must be at least 1s")
	}
	if c.RegionCacheSize < 1 {
		return fmt.Errorf("BEACON_REGION_CACHE_SIZE must be >= 1")
	}
	if _, err := c.SourceRatioMap(); err != nil {
		return err
	}
	return nil
}

// SourceRatioMap parses BEACON_SOURCE_RATIO into per-source shares.
func (c *Config) SourceRatioMap() (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(c.SourceRatio, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("BEACON_SOURCE_RATIO entry %q must be source:share", part)
		}
		var share float64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%f", &share); err != nil {
			return nil, fmt.Errorf("BEACON_SOURCE_RATIO share %q: %w", value, err)
		}
		if share < 0 || share > 1 {
			return nil, fmt.Errorf("BEACON_SOURCE_RATIO share for %q must be in [0,1]", name)
		}
		out[strings.ToLower(strings.TrimSpace(name))] = share
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("BEACON_SOURCE_RATIO must name at least one source")
	}
	return out, nil
}
