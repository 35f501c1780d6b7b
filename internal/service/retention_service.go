package service

import (
	"context"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/config"
	"github.com/kxw147-gmail/token-pricing-system/internal/model"
	"github.com/kxw147-gmail/token-pricing-system/internal/schedule"

	"go.uber.org/zap"
)

// PriceDeleter removes samples of one granularity older than a cutoff.
type PriceDeleter interface {
	DeleteOlderThan(ctx context.Context, granularity string, cutoff time.Time) (int64, error)
}

// RetentionService prunes raw samples past the configured horizon.
// Hourly and daily rows are never touched.
type RetentionService struct {
	store    PriceDeleter
	logger   *zap.Logger
	rawDays  int
	interval time.Duration
}

// NewRetentionService creates a new retention service
func NewRetentionService(store PriceDeleter, cfg config.RetentionConfig, logger *zap.Logger) *RetentionService {
	return &RetentionService{
		store:    store,
		logger:   logger,
		rawDays:  cfg.RawDays,
		interval: cfg.Interval,
	}
}

// RunOnce deletes raw samples older than the retention horizon. Zero
// deletions is a valid outcome.
func (s *RetentionService) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.rawDays)

	deleted, err := s.store.DeleteOlderThan(ctx, model.GranularityRaw, cutoff)
	if err != nil {
		return err
	}

	if deleted > 0 {
		s.logger.Info("retention pass deleted old raw samples",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	} else {
		s.logger.Debug("retention pass found nothing to delete",
			zap.Time("cutoff", cutoff))
	}
	return nil
}

// Run executes retention passes on a fixed coarse interval until ctx is
// cancelled. The job is not latency-sensitive.
func (s *RetentionService) Run(ctx context.Context) {
	s.logger.Info("starting retention loop",
		zap.Int("rawDays", s.rawDays),
		zap.Duration("interval", s.interval))

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("retention pass failed", zap.Error(err))
		}

		if err := schedule.SleepUntil(ctx, time.Now().Add(s.interval)); err != nil {
			s.logger.Info("retention loop stopped")
			return
		}
	}
}
