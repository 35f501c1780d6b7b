package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kxw147-gmail/token-pricing-system/internal/cache"
	"github.com/kxw147-gmail/token-pricing-system/internal/model"

	"go.uber.org/zap"
	"time"
)

// PriceReader is the query slice of the price store.
type PriceReader interface {
	GetPrices(ctx context.Context, q model.PriceQuery) ([]model.TokenPrice, error)
	GetLatestPrice(ctx context.Context, symbol, granularity string) (*model.TokenPrice, error)
	GetAllSymbols(ctx context.Context) ([]string, error)
}

// PriceService serves historical and latest-price queries. Latest-price
// reads go through the cache tier to shield the store from repeated hits.
type PriceService struct {
	repo      PriceReader
	cache     cache.Cache
	latestTTL time.Duration
	logger    *zap.Logger
}

// NewPriceService creates a new price query service
func NewPriceService(repo PriceReader, c cache.Cache, latestTTL time.Duration, logger *zap.Logger) *PriceService {
	return &PriceService{
		repo:      repo,
		cache:     c,
		latestTTL: latestTTL,
		logger:    logger,
	}
}

// GetHistory returns price samples for a symbol within a time range,
// ascending by timestamp. Parameters are validated before any store
// access; an empty result is ErrNotFound so clients can distinguish
// "no data yet" from an empty success.
func (s *PriceService) GetHistory(ctx context.Context, q model.PriceQuery) ([]model.TokenPrice, error) {
	if !model.ValidGranularity(q.Granularity) {
		return nil, fmt.Errorf("%w: granularity must be one of 5min, 1h, 1d", model.ErrValidation)
	}
	if !q.Start.Before(q.End) {
		return nil, fmt.Errorf("%w: start_time must be before end_time", model.ErrValidation)
	}

	q.Symbol = strings.ToUpper(q.Symbol)
	prices, err := s.repo.GetPrices(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: no price data for the given criteria", model.ErrNotFound)
	}
	return prices, nil
}

// GetLatest returns the most recent sample for a symbol and granularity,
// reading through the cache with a short TTL.
func (s *PriceService) GetLatest(ctx context.Context, symbol, granularity string) (*model.TokenPrice, error) {
	if !model.ValidGranularity(granularity) {
		return nil, fmt.Errorf("%w: granularity must be one of 5min, 1h, 1d", model.ErrValidation)
	}

	symbol = strings.ToUpper(symbol)
	key := latestPriceKey(symbol, granularity)

	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var price model.TokenPrice
		if err := json.Unmarshal(cached, &price); err == nil {
			return &price, nil
		}
		// Unreadable payload: drop it and fall through to the store.
		_ = s.cache.Invalidate(ctx, key)
	} else if err != nil {
		s.logger.Warn("cache read failed", zap.Error(err), zap.String("key", key))
	}

	price, err := s.repo.GetLatestPrice(ctx, symbol, granularity)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(price); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.latestTTL); err != nil {
			s.logger.Warn("cache write failed", zap.Error(err), zap.String("key", key))
		}
	}
	return price, nil
}

// ListSymbols returns every symbol with stored data.
func (s *PriceService) ListSymbols(ctx context.Context) ([]string, error) {
	return s.repo.GetAllSymbols(ctx)
}

func latestPriceKey(symbol, granularity string) string {
	return fmt.Sprintf("latest_price:%s:%s", symbol, granularity)
}
