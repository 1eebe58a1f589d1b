// Package claims removes expired claim tokens from guest trials.
package claims

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/observability"
)

// DefaultSchedule runs the sweep once an hour
const DefaultSchedule = "@hourly"

// Sweeper deletes the claim token fields of trials whose claim has expired
type Sweeper struct {
	store   content.Store
	logger  *logrus.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewSweeper creates a sweeper. logger and metrics may be nil.
func NewSweeper(store content.Store, logger *logrus.Logger, metrics *observability.Metrics) *Sweeper {
	if logger == nil {
		logger = logrus.New()
	}
	return &Sweeper{store: store, logger: logger, metrics: metrics, now: time.Now}
}

// SweepOnce clears every expired claim and returns how many were cleared
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	trials, _, err := s.store.Query(ctx, content.Query{
		Kind:       content.KindTrial,
		OrderBy:    content.OrderByID,
		MetaExists: []string{content.MetaClaimTokenExpiry},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list claimed trials: %w", err)
	}

	now := s.now().Unix()
	cleared := 0
	for _, trial := range trials {
		raw, _ := trial.MetaValue(content.MetaClaimTokenExpiry)
		expiry, err := strconv.ParseInt(raw, 10, 64)
		// unparsable expiries can never validate a claim
		if err == nil && now < expiry {
			continue
		}
		if err := s.store.DeleteMeta(ctx, trial.ID, content.MetaClaimToken, content.MetaClaimTokenExpiry); err != nil {
			s.metrics.ClaimsCleared("expired", cleared)
			return cleared, fmt.Errorf("failed to clear claim on trial %d: %w", trial.ID, err)
		}
		cleared++
	}

	s.metrics.ClaimsCleared("expired", cleared)
	return cleared, nil
}

// Run sweeps on schedule until ctx is done
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(s.logger))))
	_, err := c.AddFunc(schedule, func() {
		n, err := s.SweepOnce(ctx)
		if err != nil {
			s.logger.WithError(err).Error("claim sweep failed")
			return
		}
		s.logger.WithField("cleared", n).Info("claim sweep completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule claim sweep: %w", err)
	}

	c.Start()
	s.logger.WithField("schedule", schedule).Info("claim sweeper started")

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()

	s.logger.Info("claim sweeper stopped")
	return nil
}
