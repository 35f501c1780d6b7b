package service

import (
	"context"
	"sync"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/model"
)

// fakePriceStore implements the store slices the services depend on,
// recording calls for assertions.
type fakePriceStore struct {
	mu sync.Mutex

	inserted  []model.TokenPrice
	insertErr error

	batches  [][]model.TokenPrice
	batchErr error

	hourlyGroups []model.PriceAggregate
	dailyGroups  []model.PriceAggregate
	rollupErr    error

	deletedGranularity string
	deletedCutoff      time.Time
	deleteCount        int64
	deleteErr          error

	prices    []model.TokenPrice
	latest    *model.TokenPrice
	latestErr error
	symbols   []string

	latestCalls int
}

func (f *fakePriceStore) Insert(_ context.Context, price *model.TokenPrice) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	for _, existing := range f.inserted {
		if existing.TokenSymbol == price.TokenSymbol &&
			existing.Granularity == price.Granularity &&
			existing.Timestamp.Equal(price.Timestamp) {
			return false, nil
		}
	}
	f.inserted = append(f.inserted, *price)
	return true, nil
}

func (f *fakePriceStore) InsertBatch(_ context.Context, prices []model.TokenPrice) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return 0, f.batchErr
	}
	f.batches = append(f.batches, prices)
	return len(prices), nil
}

func (f *fakePriceStore) GetHourlyAggregates(_ context.Context, _, _ time.Time) ([]model.PriceAggregate, error) {
	if f.rollupErr != nil {
		return nil, f.rollupErr
	}
	return f.hourlyGroups, nil
}

func (f *fakePriceStore) GetDailyAggregates(_ context.Context, _, _ time.Time) ([]model.PriceAggregate, error) {
	if f.rollupErr != nil {
		return nil, f.rollupErr
	}
	return f.dailyGroups, nil
}

func (f *fakePriceStore) DeleteOlderThan(_ context.Context, granularity string, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deletedGranularity = granularity
	f.deletedCutoff = cutoff
	return f.deleteCount, nil
}

func (f *fakePriceStore) GetPrices(_ context.Context, _ model.PriceQuery) ([]model.TokenPrice, error) {
	return f.prices, nil
}

func (f *fakePriceStore) GetLatestPrice(_ context.Context, _, _ string) (*model.TokenPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func (f *fakePriceStore) GetAllSymbols(_ context.Context) ([]string, error) {
	return f.symbols, nil
}

func (f *fakePriceStore) insertedSamples() []model.TokenPrice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.TokenPrice, len(f.inserted))
	copy(out, f.inserted)
	return out
}

// fakeFetcher returns canned prices per symbol, or an error.
type fakeFetcher struct {
	prices map[string]float64
	errs   map[string]error
	charts map[string][]model.PricePoint
}

func (f *fakeFetcher) GetSimplePrice(_ context.Context, id, _ string) (float64, error) {
	if err, ok := f.errs[id]; ok {
		return 0, err
	}
	return f.prices[id], nil
}

func (f *fakeFetcher) GetMarketChart(_ context.Context, id string, _ int) ([]model.PricePoint, error) {
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return f.charts[id], nil
}

// fakeUserStore keeps users in a map keyed by username.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	next  int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*model.User)}
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) Create(_ context.Context, username, hashedPassword string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	u := &model.User{
		ID:             f.next,
		Username:       username,
		HashedPassword: hashedPassword,
		IsActive:       true,
	}
	f.users[username] = u
	copied := *u
	return &copied, nil
}
