// Package worker runs the periodic order maintenance sweep.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StalledReleaser is the one engine operation the sweeper drives.
type StalledReleaser interface {
	ReleaseStalled(ctx context.Context) (int64, error)
}

// Config holds sweeper configuration.
type Config struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
}

// Sweeper periodically releases orders stuck in awaiting-confirmation.
// Runs never overlap: a tick that fires while the previous sweep is still
// in flight is skipped, and the store-side conditional update keeps even
// multi-instance deployments idempotent.
type Sweeper struct {
	config Config
	orders StalledReleaser
	logger zerolog.Logger
}

// NewSweeper creates the order maintenance sweeper.
func NewSweeper(orders StalledReleaser, config Config, logger zerolog.Logger) *Sweeper {
	if config.Interval == 0 {
		config.Interval = 30 * time.Minute
	}
	return &Sweeper{
		config: config,
		orders: orders,
		logger: logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.config.Interval).Msg("sweeper starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Single-flight guard.
	sem := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper shutting down")
			return ctx.Err()

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				go func() {
					defer func() { <-sem }()
					s.sweep(ctx)
				}()
			default:
				s.logger.Debug().Msg("previous sweep still running, skipping tick")
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	moved, err := s.orders.ReleaseStalled(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	if moved > 0 {
		s.logger.Info().Int64("orders", moved).Msg("sweep released stalled orders")
	}
}
