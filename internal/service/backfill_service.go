package service

import (
	"context"
	"strings"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/config"
	"github.com/kxw147-gmail/token-pricing-system/internal/model"
	"github.com/kxw147-gmail/token-pricing-system/internal/schedule"

	"go.uber.org/zap"
)

// HistoryFetcher retrieves daily historical prices from the external
// price API.
type HistoryFetcher interface {
	GetMarketChart(ctx context.Context, id string, days int) ([]model.PricePoint, error)
}

// BackfillStore is the slice of the price store the backfill job needs.
type BackfillStore interface {
	InsertBatch(ctx context.Context, prices []model.TokenPrice) (int, error)
	GetAllSymbols(ctx context.Context) ([]string, error)
}

// BackfillService fills in daily history for tracked symbols from the
// external API. Inserts are idempotent, so re-running over an already
// backfilled range is harmless.
type BackfillService struct {
	fetcher HistoryFetcher
	store   BackfillStore
	logger  *zap.Logger

	symbols      []string
	days         int
	interval     time.Duration
	initialDelay time.Duration

	// pause between symbols, to be considerate to the external API
	symbolPause time.Duration
}

// NewBackfillService creates a new backfill service. symbols may be
// empty, in which case every symbol already present in the store is
// backfilled.
func NewBackfillService(
	fetcher HistoryFetcher,
	store BackfillStore,
	symbols []string,
	cfg config.BackfillConfig,
	logger *zap.Logger,
) *BackfillService {
	return &BackfillService{
		fetcher:      fetcher,
		store:        store,
		logger:       logger,
		symbols:      symbols,
		days:         cfg.Days,
		interval:     cfg.Interval,
		initialDelay: cfg.InitialDelay,
		symbolPause:  10 * time.Second,
	}
}

// BackfillSymbol fetches daily history for one symbol and bulk-inserts
// it as daily rows. Returns the number of rows actually inserted.
func (s *BackfillService) BackfillSymbol(ctx context.Context, symbol string) (int, error) {
	points, err := s.fetcher.GetMarketChart(ctx, strings.ToLower(symbol), s.days)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		s.logger.Warn("no historical prices returned", zap.String("symbol", symbol))
		return 0, nil
	}

	rows := make([]model.TokenPrice, 0, len(points))
	for _, p := range points {
		rows = append(rows, model.TokenPrice{
			TokenSymbol: strings.ToUpper(symbol),
			Timestamp:   p.Timestamp.Truncate(24 * time.Hour),
			Price:       p.Price,
			Granularity: model.GranularityDaily,
			Source:      model.SourceCoinGecko,
		})
	}

	return s.store.InsertBatch(ctx, rows)
}

// runJob backfills every target symbol, isolating per-symbol failures.
func (s *BackfillService) runJob(ctx context.Context) {
	symbols := s.symbols
	if len(symbols) == 0 {
		stored, err := s.store.GetAllSymbols(ctx)
		if err != nil {
			s.logger.Error("failed to list symbols for backfill", zap.Error(err))
			return
		}
		symbols = stored
	}
	if len(symbols) == 0 {
		s.logger.Info("no symbols to backfill")
		return
	}

	for i, symbol := range symbols {
		inserted, err := s.BackfillSymbol(ctx, symbol)
		if err != nil {
			s.logger.Error("backfill failed for symbol",
				zap.Error(err),
				zap.String("symbol", symbol))
		} else {
			s.logger.Info("backfill completed for symbol",
				zap.String("symbol", symbol),
				zap.Int("inserted", inserted))
		}

		if i < len(symbols)-1 {
			if err := schedule.SleepUntil(ctx, time.Now().Add(s.symbolPause)); err != nil {
				return
			}
		}
	}
}

// Run waits out the initial delay, then executes backfill jobs on the
// configured interval until ctx is cancelled.
func (s *BackfillService) Run(ctx context.Context) {
	s.logger.Info("starting backfill loop",
		zap.Int("days", s.days),
		zap.Duration("interval", s.interval))

	if err := schedule.SleepUntil(ctx, time.Now().Add(s.initialDelay)); err != nil {
		return
	}

	for {
		s.runJob(ctx)

		if err := schedule.SleepUntil(ctx, time.Now().Add(s.interval)); err != nil {
			s.logger.Info("backfill loop stopped")
			return
		}
	}
}
