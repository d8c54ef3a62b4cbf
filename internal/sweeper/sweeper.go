// Package sweeper deletes expired secret messages on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"

	"emi-service/internal/observability"
)

const retryDelay = 30 * time.Second

// Purger removes messages whose expiry is at or before now.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	purger Purger
	cron   string
	now    func() time.Time
}

func New(purger Purger, cronExpr string) (*Sweeper, error) {
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid sweeper cron expression: %q", cronExpr)
	}
	return &Sweeper{purger: purger, cron: cronExpr, now: func() time.Time { return time.Now().UTC() }}, nil
}

// RunOnce purges everything expired as of now and returns the count.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.purger.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	observability.AddExpiredPurged(n)
	if n > 0 {
		log.Info().Int64("purged", n).Msg("expired messages purged")
	}
	return n, nil
}

// Start runs the schedule in a goroutine until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	log.Info().Str("cron", s.cron).Msg("expiry sweeper started")
	go s.loop(ctx)
}

func (s *Sweeper) loop(ctx context.Context) {
	for {
		wait := retryDelay
		next, err := gronx.NextTickAfter(s.cron, s.now(), false)
		if err != nil {
			log.Error().Err(err).Str("cron", s.cron).Msg("sweeper next tick failed")
		} else {
			wait = time.Until(next)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("expiry sweeper stopping")
			return
		case <-timer.C:
		}
		if err != nil {
			continue
		}

		if _, err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("expired message purge failed")
		}
	}
}
