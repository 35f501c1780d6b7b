package service

import (
	"context"
	"testing"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/config"
	"github.com/kxw147-gmail/token-pricing-system/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBackfill(fetcher HistoryFetcher, store BackfillStore, symbols ...string) *BackfillService {
	svc := NewBackfillService(fetcher, store, symbols, config.BackfillConfig{
		Days:     30,
		Interval: 24 * time.Hour,
	}, zap.NewNop())
	svc.symbolPause = 0
	return svc
}

func TestBackfillSymbolWritesDailyRows(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{charts: map[string][]model.PricePoint{
		"bitcoin": {
			{Timestamp: day.Add(30 * time.Minute), Price: 100},
			{Timestamp: day.Add(24*time.Hour + 45*time.Minute), Price: 105},
		},
	}}
	store := &fakePriceStore{}
	svc := newBackfill(fetcher, store, "bitcoin")

	inserted, err := svc.BackfillSymbol(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	require.Len(t, store.batches, 1)
	rows := store.batches[0]
	require.Len(t, rows, 2)
	assert.Equal(t, "BITCOIN", rows[0].TokenSymbol)
	assert.Equal(t, model.GranularityDaily, rows[0].Granularity)
	assert.Equal(t, model.SourceCoinGecko, rows[0].Source)
	assert.True(t, rows[0].Timestamp.Equal(day), "timestamps snap to midnight")
	assert.True(t, rows[1].Timestamp.Equal(day.Add(24*time.Hour)))
}

func TestBackfillSymbolEmptyChart(t *testing.T) {
	fetcher := &fakeFetcher{charts: map[string][]model.PricePoint{}}
	store := &fakePriceStore{}
	svc := newBackfill(fetcher, store, "bitcoin")

	inserted, err := svc.BackfillSymbol(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Empty(t, store.batches)
}

func TestRunJobIsolatesSymbolFailures(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{
		charts: map[string][]model.PricePoint{
			"ethereum": {{Timestamp: day, Price: 1800}},
		},
		errs: map[string]error{"bitcoin": model.ErrUpstreamRemote},
	}
	store := &fakePriceStore{}
	svc := newBackfill(fetcher, store, "bitcoin", "ethereum")

	svc.runJob(context.Background())

	require.Len(t, store.batches, 1)
	assert.Equal(t, "ETHEREUM", store.batches[0][0].TokenSymbol)
}

func TestRunJobFallsBackToStoredSymbols(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{charts: map[string][]model.PricePoint{
		"bitcoin": {{Timestamp: day, Price: 100}},
	}}
	store := &fakePriceStore{symbols: []string{"BITCOIN"}}
	svc := newBackfill(fetcher, store)

	svc.runJob(context.Background())

	require.Len(t, store.batches, 1)
	assert.Equal(t, "BITCOIN", store.batches[0][0].TokenSymbol)
}
