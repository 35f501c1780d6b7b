package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/config"
	"github.com/kxw147-gmail/token-pricing-system/internal/events"
	"github.com/kxw147-gmail/token-pricing-system/internal/model"
	"github.com/kxw147-gmail/token-pricing-system/internal/schedule"

	"go.uber.org/zap"
)

// PriceFetcher retrieves the current price for a token from the external
// price API.
type PriceFetcher interface {
	GetSimplePrice(ctx context.Context, id, vsCurrency string) (float64, error)
}

// PriceInserter stores single price samples idempotently.
type PriceInserter interface {
	Insert(ctx context.Context, price *model.TokenPrice) (bool, error)
}

// IngestionService periodically fetches current prices for the tracked
// symbols and stores them as raw 5-minute samples.
type IngestionService struct {
	fetcher   PriceFetcher
	store     PriceInserter
	publisher *events.Publisher
	logger    *zap.Logger

	interval      time.Duration
	symbols       []string
	quoteCurrency string
}

// NewIngestionService creates a new ingestion service. publisher may be
// nil when Kafka is disabled.
func NewIngestionService(
	fetcher PriceFetcher,
	store PriceInserter,
	publisher *events.Publisher,
	cfg config.IngestionConfig,
	logger *zap.Logger,
) *IngestionService {
	return &IngestionService{
		fetcher:       fetcher,
		store:         store,
		publisher:     publisher,
		logger:        logger,
		interval:      cfg.Interval,
		symbols:       cfg.Symbols,
		quoteCurrency: cfg.QuoteCurrency,
	}
}

// SnapToRaw rounds t down to the nearest 5-minute boundary in UTC with
// seconds and sub-seconds zeroed.
func SnapToRaw(t time.Time) time.Time {
	return t.UTC().Truncate(5 * time.Minute)
}

// IngestOne fetches and stores the current price for one symbol. Any
// failure is logged and returned; callers running a cycle ignore the
// error so one symbol never aborts its siblings.
func (s *IngestionService) IngestOne(ctx context.Context, symbol string) error {
	price, err := s.fetcher.GetSimplePrice(ctx, symbol, s.quoteCurrency)
	if err != nil {
		s.logger.Warn("failed to ingest price",
			zap.Error(err),
			zap.String("symbol", symbol))
		return err
	}

	sample := model.TokenPrice{
		TokenSymbol: strings.ToUpper(symbol),
		Timestamp:   SnapToRaw(time.Now()),
		Price:       price,
		Granularity: model.GranularityRaw,
		Source:      model.SourceCoinGecko,
	}

	inserted, err := s.store.Insert(ctx, &sample)
	if err != nil {
		s.logger.Error("failed to store ingested price",
			zap.Error(err),
			zap.String("symbol", sample.TokenSymbol))
		return err
	}

	if inserted {
		s.logger.Info("ingested price",
			zap.String("symbol", sample.TokenSymbol),
			zap.Float64("price", sample.Price),
			zap.Time("timestamp", sample.Timestamp))
		s.publisher.PriceIngested(ctx, sample)
	} else {
		s.logger.Debug("price sample already present",
			zap.String("symbol", sample.TokenSymbol),
			zap.Time("timestamp", sample.Timestamp))
	}
	return nil
}

// TriggerAsync starts ingestion for one symbol outside the scheduled
// cadence and returns immediately. Errors are logged inside IngestOne
// and never reach the caller.
func (s *IngestionService) TriggerAsync(symbol string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_ = s.IngestOne(ctx, symbol)
	}()
}

// runCycle ingests every tracked symbol concurrently and waits for all
// of them to finish, success or failure.
func (s *IngestionService) runCycle(ctx context.Context) {
	var wg sync.WaitGroup
	for _, symbol := range s.symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			_ = s.IngestOne(ctx, sym)
		}(symbol)
	}
	wg.Wait()
}

// Run executes ingestion cycles until ctx is cancelled, waking on
// interval boundaries. An overrunning cycle proceeds immediately instead
// of sleeping a negative duration.
func (s *IngestionService) Run(ctx context.Context) {
	s.logger.Info("starting ingestion loop",
		zap.Duration("interval", s.interval),
		zap.Strings("symbols", s.symbols))

	for {
		cycleStart := time.Now().UTC()
		s.runCycle(ctx)

		wake := schedule.NextAlignedWake(cycleStart, s.interval)
		if err := schedule.SleepUntil(ctx, wake); err != nil {
			s.logger.Info("ingestion loop stopped")
			return
		}
	}
}
