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

func newAggregation(store AggregateStore) *AggregationService {
	return NewAggregationService(store, config.AggregationConfig{Interval: time.Hour}, zap.NewNop())
}

func TestRunHourlyWritesAverageRows(t *testing.T) {
	bucket := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &fakePriceStore{
		hourlyGroups: []model.PriceAggregate{
			{TokenSymbol: "BITCOIN", BucketStart: bucket, PriceAvg: 100.0, PriceHigh: 102, PriceLow: 98, DataPoints: 3},
			{TokenSymbol: "ETHEREUM", BucketStart: bucket, PriceAvg: 1800.5, PriceHigh: 1810, PriceLow: 1790, DataPoints: 12},
		},
	}
	svc := newAggregation(store)

	require.NoError(t, svc.RunHourly(context.Background()))

	require.Len(t, store.batches, 1)
	rows := store.batches[0]
	require.Len(t, rows, 2)

	assert.Equal(t, "BITCOIN", rows[0].TokenSymbol)
	assert.Equal(t, 100.0, rows[0].Price, "hourly row carries the bucket average")
	assert.Equal(t, model.GranularityHourly, rows[0].Granularity)
	assert.Equal(t, model.SourceAggHourly, rows[0].Source)
	assert.True(t, rows[0].Timestamp.Equal(bucket))

	assert.Equal(t, "ETHEREUM", rows[1].TokenSymbol)
	assert.Equal(t, 1800.5, rows[1].Price)
}

func TestRunHourlyEmptyWindowWritesNothing(t *testing.T) {
	store := &fakePriceStore{}
	svc := newAggregation(store)

	require.NoError(t, svc.RunHourly(context.Background()))
	assert.Empty(t, store.batches)
}

func TestRunDailyWritesDailyRows(t *testing.T) {
	bucket := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakePriceStore{
		dailyGroups: []model.PriceAggregate{
			{TokenSymbol: "BITCOIN", BucketStart: bucket, PriceAvg: 99.5, DataPoints: 288},
		},
	}
	svc := newAggregation(store)

	require.NoError(t, svc.RunDaily(context.Background()))

	require.Len(t, store.batches, 1)
	rows := store.batches[0]
	require.Len(t, rows, 1)
	assert.Equal(t, model.GranularityDaily, rows[0].Granularity)
	assert.Equal(t, model.SourceAggDaily, rows[0].Source)
	assert.Equal(t, 99.5, rows[0].Price)
}

func TestRunHourlyRollupFailurePropagates(t *testing.T) {
	store := &fakePriceStore{rollupErr: assert.AnError}
	svc := newAggregation(store)

	err := svc.RunHourly(context.Background())
	assert.Error(t, err)
	assert.Empty(t, store.batches)
}

func TestShouldRunDaily(t *testing.T) {
	tests := []struct {
		now  time.Time
		want bool
	}{
		{time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC), true},
		{time.Date(2024, 3, 1, 0, 9, 59, 0, time.UTC), true},
		{time.Date(2024, 3, 1, 0, 4, 59, 0, time.UTC), false},
		{time.Date(2024, 3, 1, 0, 10, 0, 0, time.UTC), false},
		{time.Date(2024, 3, 1, 1, 5, 0, 0, time.UTC), false},
		{time.Date(2024, 3, 1, 12, 7, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldRunDaily(tt.now), "shouldRunDaily(%v)", tt.now)
	}
}
