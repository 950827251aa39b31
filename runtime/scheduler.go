// Package runtime hosts the background jobs of the scribe daemon. Today
// that is the capability refresh job, which periodically re-fetches provider
// model lists into the registry's capability cache.
package runtime

import (
	"context"
	"time"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/rs/zerolog"
)

// ModelLister fetches the available models for a provider.
type ModelLister interface {
	ListModels(ctx context.Context, provider string) ([]llm.ModelCapabilities, error)
}

// Scheduler refreshes the registry's model capability cache on a schedule.
type Scheduler struct {
	registry  *llm.ProviderRegistry
	lister    ModelLister
	providers []string
	schedule  ScheduleParser
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler that refreshes capabilities for the given
// providers. schedule accepts a cron expression or a Go duration string.
func NewScheduler(registry *llm.ProviderRegistry, lister ModelLister, providers []string, schedule string, logger zerolog.Logger) (*Scheduler, error) {
	parsed, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		registry:  registry,
		lister:    lister,
		providers: providers,
		schedule:  parsed,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start runs the refresh loop until ctx is cancelled. An initial refresh
// happens immediately so the cache is warm before the first scheduled fire.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Strs("providers", s.providers).Msg("Starting capability refresh scheduler")

	s.refresh(ctx)

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("Scheduler stopped: context cancelled")
			return
		case <-timer.C:
			s.refresh(ctx)
		}
	}
}

// refresh re-fetches the model list for every configured provider. A failed
// provider keeps its previous cache entry.
func (s *Scheduler) refresh(ctx context.Context) {
	for _, provider := range s.providers {
		if !s.registry.IsProviderConfigured(provider) {
			s.logger.Debug().Str("provider", provider).Msg("Skipping capability refresh for unconfigured provider")
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, time.Minute)
		models, err := s.lister.ListModels(fetchCtx, provider)
		cancel()
		if err != nil {
			s.logger.Warn().Str("provider", provider).Err(err).Msg("Capability refresh failed")
			continue
		}

		s.registry.SetCapabilities(provider, models)
		s.logger.Info().Str("provider", provider).Int("model_count", len(models)).Msg("Refreshed model capabilities")
	}
}
