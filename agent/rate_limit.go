package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetries is the maximum number of rate-limit retries per
	// request.
	DefaultMaxRetries = 5
	// DefaultMaxElapsedTime caps the total time spent retrying.
	DefaultMaxElapsedTime = 5 * time.Minute
	// DefaultMaxInterval caps a single retry delay.
	DefaultMaxInterval = 5 * time.Minute
	// DefaultInitialDelay seeds exponential backoff when the provider sent no
	// Retry-After hint.
	DefaultInitialDelay = 1 * time.Second

	retryAfterMultiplier          = 1.5
	retryAfterRandomizationFactor = 0.1
	standardMultiplier            = 2.0
	standardRandomizationFactor   = 0.2
)

// RateLimitHandler retries rate-limited stream opens with exponential
// backoff, honoring the provider's Retry-After hint as the initial delay.
type RateLimitHandler struct {
	maxRetries     uint64
	maxElapsedTime time.Duration
	logger         zerolog.Logger
}

// NewRateLimitHandler creates a handler with default settings.
func NewRateLimitHandler(logger zerolog.Logger) *RateLimitHandler {
	return &RateLimitHandler{
		maxRetries:     DefaultMaxRetries,
		maxElapsedTime: DefaultMaxElapsedTime,
		logger:         logger.With().Str("component", "rate_limit_handler").Logger(),
	}
}

// newBackoff builds the backoff strategy for one request. A Retry-After hint
// becomes the initial delay with gentler growth; otherwise standard
// exponential backoff applies.
func (h *RateLimitHandler) newBackoff(retryAfter time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if retryAfter > 0 {
		eb.InitialInterval = retryAfter
		eb.Multiplier = retryAfterMultiplier
		eb.RandomizationFactor = retryAfterRandomizationFactor
	} else {
		eb.InitialInterval = DefaultInitialDelay
		eb.Multiplier = standardMultiplier
		eb.RandomizationFactor = standardRandomizationFactor
	}
	eb.MaxInterval = DefaultMaxInterval
	eb.MaxElapsedTime = h.maxElapsedTime
	eb.Reset()
	return backoff.WithMaxRetries(eb, h.maxRetries)
}

// OpenStream opens a provider stream, retrying rate-limited attempts. Any
// other error returns immediately.
func (h *RateLimitHandler) OpenStream(ctx context.Context, client llm.Client, req *llm.Request) (llm.Stream, error) {
	var strategy backoff.BackOff

	for attempt := 0; ; attempt++ {
		stream, err := client.Stream(ctx, req)
		if err == nil {
			return stream, nil
		}
		if !llm.IsRateLimitError(err) {
			return nil, err
		}

		if strategy == nil {
			var hint time.Duration
			if retryAfter := llm.ExtractRetryAfter(err); retryAfter != nil {
				hint = *retryAfter
			}
			strategy = h.newBackoff(hint)
		}

		delay := strategy.NextBackOff()
		if delay == backoff.Stop {
			h.logger.Error().
				Uint64("max_retries", h.maxRetries).
				Msg("rate limit retries exhausted")
			return nil, fmt.Errorf("rate limit: max retries or elapsed time exceeded: %w", err)
		}

		h.logger.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("rate limited; retrying after delay")

		if err := h.wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// wait sleeps for delay, respecting context cancellation.
func (h *RateLimitHandler) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
