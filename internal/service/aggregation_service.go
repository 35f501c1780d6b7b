package service

import (
	"context"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/config"
	"github.com/kxw147-gmail/token-pricing-system/internal/model"
	"github.com/kxw147-gmail/token-pricing-system/internal/schedule"

	"go.uber.org/zap"
)

// AggregateStore is the slice of the price store the aggregation loop
// needs: rollup reads plus transactional batch writes.
type AggregateStore interface {
	GetHourlyAggregates(ctx context.Context, start, end time.Time) ([]model.PriceAggregate, error)
	GetDailyAggregates(ctx context.Context, start, end time.Time) ([]model.PriceAggregate, error)
	InsertBatch(ctx context.Context, prices []model.TokenPrice) (int, error)
}

// AggregationService rolls raw samples up into hourly and daily rows.
// Aggregate rows carry the average price of their bucket.
type AggregationService struct {
	store    AggregateStore
	logger   *zap.Logger
	interval time.Duration
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(store AggregateStore, cfg config.AggregationConfig, logger *zap.Logger) *AggregationService {
	return &AggregationService{
		store:    store,
		logger:   logger,
		interval: cfg.Interval,
	}
}

// RunHourly aggregates raw samples of the previous completed hour into
// hourly rows. An empty window writes nothing and is not an error.
func (s *AggregationService) RunHourly(ctx context.Context) error {
	end := time.Now().UTC().Truncate(time.Hour)
	start := end.Add(-time.Hour)

	groups, err := s.store.GetHourlyAggregates(ctx, start, end)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		s.logger.Debug("no raw data for hourly aggregation",
			zap.Time("start", start),
			zap.Time("end", end))
		return nil
	}

	inserted, err := s.store.InsertBatch(ctx, buildAggregateRows(groups, model.GranularityHourly, model.SourceAggHourly))
	if err != nil {
		return err
	}

	s.logger.Info("hourly aggregation completed",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("groups", len(groups)),
		zap.Int("inserted", inserted))
	return nil
}

// RunDaily aggregates raw samples of the previous completed UTC day into
// daily rows.
func (s *AggregationService) RunDaily(ctx context.Context) error {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.Add(-24 * time.Hour)

	groups, err := s.store.GetDailyAggregates(ctx, start, end)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		s.logger.Debug("no raw data for daily aggregation",
			zap.Time("start", start),
			zap.Time("end", end))
		return nil
	}

	inserted, err := s.store.InsertBatch(ctx, buildAggregateRows(groups, model.GranularityDaily, model.SourceAggDaily))
	if err != nil {
		return err
	}

	s.logger.Info("daily aggregation completed",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("groups", len(groups)),
		zap.Int("inserted", inserted))
	return nil
}

// buildAggregateRows converts rollup groups into insertable price rows.
func buildAggregateRows(groups []model.PriceAggregate, granularity, source string) []model.TokenPrice {
	rows := make([]model.TokenPrice, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, model.TokenPrice{
			TokenSymbol: g.TokenSymbol,
			Timestamp:   g.BucketStart,
			Price:       g.PriceAvg,
			Granularity: granularity,
			Source:      source,
		})
	}
	return rows
}

// shouldRunDaily reports whether now falls inside the daily trigger
// window: minute-of-hour in [5, 10) during hour 0 UTC.
func shouldRunDaily(now time.Time) bool {
	utc := now.UTC()
	return utc.Hour() == 0 && utc.Minute() >= 5 && utc.Minute() < 10
}

// Run executes aggregation passes until ctx is cancelled. A failed pass
// is logged and not retried before its next scheduled tick.
func (s *AggregationService) Run(ctx context.Context) {
	s.logger.Info("starting aggregation loop", zap.Duration("interval", s.interval))

	for {
		cycleStart := time.Now().UTC()

		if err := s.RunHourly(ctx); err != nil {
			s.logger.Error("hourly aggregation failed", zap.Error(err))
		}

		if shouldRunDaily(cycleStart) {
			if err := s.RunDaily(ctx); err != nil {
				s.logger.Error("daily aggregation failed", zap.Error(err))
			}
		}

		wake := schedule.NextAlignedWake(cycleStart, s.interval)
		if err := schedule.SleepUntil(ctx, wake); err != nil {
			s.logger.Info("aggregation loop stopped")
			return
		}
	}
}
