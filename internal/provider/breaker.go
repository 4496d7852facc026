package provider

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"horse.fit/beacon/internal/event"
)

// breakerAdapter wraps an Adapter with a circuit breaker so a provider that
// keeps failing stops being queried for a cooldown window instead of burning
// its timeout on every request.
type breakerAdapter struct {
	inner   Adapter
	breaker *gobreaker.CircuitBreaker[[]json.RawMessage]
}

// WithBreaker wraps the adapter in a per-provider circuit breaker.
func WithBreaker(inner Adapter, logger zerolog.Logger) Adapter {
	name := string(inner.Name())
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    2 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider breaker state changed")
		},
	}

	return &breakerAdapter{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[[]json.RawMessage](settings),
	}
}

func (b *breakerAdapter) Name() event.Source { return b.inner.Name() }

func (b *breakerAdapter) Search(ctx context.Context, q event.Query, limit int) ([]json.RawMessage, error) {
	return b.breaker.Execute(func() ([]json.RawMessage, error) {
		return b.inner.Search(ctx, q, limit)
	})
}
