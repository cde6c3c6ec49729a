package dispute

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// reviewAfter is how long a dispute may sit open collecting evidence before
// the sweeper promotes it to review.
const reviewAfter = 7 * 24 * time.Hour

// AutoResolve advances stale open disputes into under_review, reusing the
// generic status transition so the under_review notification fires. Moving a
// dispute into review is as far as automation goes; resolving it still takes
// an explicit Resolve or Reject call.
//
// A failure on one dispute is logged and does not abort the rest of the
// sweep.
func (s *Service) AutoResolve(ctx context.Context) error {
	open, err := s.repo.ListByStatus(ctx, StatusOpen)
	if err != nil {
		return err
	}

	now := s.now()
	for _, rec := range open {
		if now.Sub(rec.CreatedAt) < reviewAfter {
			continue
		}
		if _, err := s.UpdateStatus(ctx, rec.ID, StatusUnderReview); err != nil {
			s.log.Error().Err(err).
				Str("dispute_id", rec.ID).
				Str("split_id", rec.SplitID).
				Msg("promote stale dispute to review")
		}
	}
	return nil
}

// Sweeper runs AutoResolve on a fixed interval. It is the only component
// that acts without a caller-driven request.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run blocks, sweeping on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.svc.AutoResolve(ctx); err != nil {
				s.log.Error().Err(err).Msg("dispute sweep failed")
			}
		}
	}
}
