package model

import "time"

// Granularity values stored in the granularity column.
const (
	GranularityRaw    = "5min"
	GranularityHourly = "1h"
	GranularityDaily  = "1d"
)

// Source tags recorded on each price row.
const (
	SourceCoinGecko = "coingecko"
	SourceAggHourly = "agg_hourly"
	SourceAggDaily  = "agg_daily"
)

// ValidGranularity reports whether g is one of the supported granularities.
func ValidGranularity(g string) bool {
	switch g {
	case GranularityRaw, GranularityHourly, GranularityDaily:
		return true
	}
	return false
}

// TokenPrice represents one stored price sample. The triple
// (token_symbol, granularity, timestamp) is unique in the database;
// rows are never updated after insertion.
type TokenPrice struct {
	ID          int64     `json:"id" db:"id"`
	TokenSymbol string    `json:"token_symbol" db:"token_symbol"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	Price       float64   `json:"price" db:"price"`
	Granularity string    `json:"granularity" db:"granularity"`
	Source      string    `json:"source" db:"source"`
}

// PriceAggregate is one group returned by the rollup queries: all raw
// samples for a symbol within one hour or day bucket.
type PriceAggregate struct {
	TokenSymbol string    `db:"token_symbol"`
	BucketStart time.Time `db:"bucket_start"`
	PriceAvg    float64   `db:"price_avg"`
	PriceHigh   float64   `db:"price_high"`
	PriceLow    float64   `db:"price_low"`
	DataPoints  int       `db:"num_data_points"`
}

// PricePoint is a single (timestamp, price) pair from an external
// historical data feed.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
}

// PriceQuery describes a historical range lookup.
type PriceQuery struct {
	Symbol      string
	Granularity string
	Start       time.Time
	End         time.Time
	Limit       int
	Offset      int
}
