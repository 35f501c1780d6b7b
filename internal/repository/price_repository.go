package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PriceRepository handles database operations for token prices
type PriceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sqlx.DB, logger *zap.Logger) *PriceRepository {
	return &PriceRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores one price sample. A row that already exists for the same
// (token_symbol, granularity, timestamp) is left untouched and the call
// succeeds with inserted=false; idempotent ingestion depends on this.
func (r *PriceRepository) Insert(ctx context.Context, price *model.TokenPrice) (bool, error) {
	query := `
		INSERT INTO token_prices (token_symbol, timestamp, price, granularity, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_symbol, granularity, timestamp) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		price.TokenSymbol,
		price.Timestamp,
		price.Price,
		price.Granularity,
		price.Source,
	)
	if err != nil {
		r.logger.Error("Failed to insert token price",
			zap.Error(err),
			zap.String("symbol", price.TokenSymbol),
			zap.String("granularity", price.Granularity))
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// InsertBatch stores a batch of price samples inside one transaction with
// the same per-row conflict handling as Insert. Returns the number of
// rows actually inserted.
func (r *PriceRepository) InsertBatch(ctx context.Context, prices []model.TokenPrice) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO token_prices (token_symbol, timestamp, price, granularity, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_symbol, granularity, timestamp) DO NOTHING
	`)
	if err != nil {
		r.logger.Error("Failed to prepare statement", zap.Error(err))
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range prices {
		result, err := stmt.ExecContext(ctx,
			item.TokenSymbol,
			item.Timestamp,
			item.Price,
			item.Granularity,
			item.Source,
		)
		if err != nil {
			r.logger.Error("Failed to insert token price in batch",
				zap.Error(err),
				zap.String("symbol", item.TokenSymbol),
				zap.Time("timestamp", item.Timestamp))
			return 0, err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return 0, err
	}

	return inserted, nil
}

// GetPrices retrieves price samples for a symbol and granularity within
// [start, end], ordered ascending by timestamp, paginated.
func (r *PriceRepository) GetPrices(ctx context.Context, q model.PriceQuery) ([]model.TokenPrice, error) {
	query := `
		SELECT id, token_symbol, timestamp, price, granularity, source
		FROM token_prices
		WHERE token_symbol = $1 AND granularity = $2
		  AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp
		LIMIT $5 OFFSET $6
	`

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var prices []model.TokenPrice
	err := r.db.SelectContext(ctx, &prices, query,
		q.Symbol, q.Granularity, q.Start, q.End, limit, q.Offset)
	if err != nil {
		r.logger.Error("Failed to get token prices",
			zap.Error(err),
			zap.String("symbol", q.Symbol),
			zap.String("granularity", q.Granularity))
		return nil, err
	}

	return prices, nil
}

// GetLatestPrice returns the most recent sample for a symbol and
// granularity, or model.ErrNotFound when no row exists.
func (r *PriceRepository) GetLatestPrice(ctx context.Context, symbol, granularity string) (*model.TokenPrice, error) {
	query := `
		SELECT id, token_symbol, timestamp, price, granularity, source
		FROM token_prices
		WHERE token_symbol = $1 AND granularity = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var price model.TokenPrice
	err := r.db.GetContext(ctx, &price, query, symbol, granularity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get latest token price",
			zap.Error(err),
			zap.String("symbol", symbol),
			zap.String("granularity", granularity))
		return nil, err
	}

	return &price, nil
}

// GetAllSymbols returns every symbol with at least one stored sample,
// across all granularities.
func (r *PriceRepository) GetAllSymbols(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT token_symbol FROM token_prices ORDER BY token_symbol`

	var symbols []string
	if err := r.db.SelectContext(ctx, &symbols, query); err != nil {
		r.logger.Error("Failed to get token symbols", zap.Error(err))
		return nil, err
	}
	return symbols, nil
}

// GetHourlyAggregates groups raw samples in [start, end) by symbol and
// hour bucket. Average price stands in for close; last-in-bucket ordering
// is not guaranteed cheaply across backing stores.
func (r *PriceRepository) GetHourlyAggregates(ctx context.Context, start, end time.Time) ([]model.PriceAggregate, error) {
	return r.getAggregates(ctx, "hour", start, end)
}

// GetDailyAggregates groups raw samples in [start, end) by symbol and
// day bucket.
func (r *PriceRepository) GetDailyAggregates(ctx context.Context, start, end time.Time) ([]model.PriceAggregate, error) {
	return r.getAggregates(ctx, "day", start, end)
}

func (r *PriceRepository) getAggregates(ctx context.Context, bucket string, start, end time.Time) ([]model.PriceAggregate, error) {
	query := fmt.Sprintf(`
		SELECT token_symbol,
		       date_trunc('%s', timestamp) AS bucket_start,
		       AVG(price) AS price_avg,
		       MAX(price) AS price_high,
		       MIN(price) AS price_low,
		       COUNT(*) AS num_data_points
		FROM token_prices
		WHERE granularity = $1 AND timestamp >= $2 AND timestamp < $3
		GROUP BY token_symbol, date_trunc('%s', timestamp)
		ORDER BY token_symbol, bucket_start
	`, bucket, bucket)

	var aggregates []model.PriceAggregate
	err := r.db.SelectContext(ctx, &aggregates, query, model.GranularityRaw, start, end)
	if err != nil {
		r.logger.Error("Failed to get price aggregates",
			zap.Error(err),
			zap.String("bucket", bucket),
			zap.Time("start", start),
			zap.Time("end", end))
		return nil, err
	}

	return aggregates, nil
}

// DeleteOlderThan removes all samples of the given granularity with a
// timestamp before cutoff and returns the number of rows deleted.
func (r *PriceRepository) DeleteOlderThan(ctx context.Context, granularity string, cutoff time.Time) (int64, error) {
	query := `DELETE FROM token_prices WHERE granularity = $1 AND timestamp < $2`

	result, err := r.db.ExecContext(ctx, query, granularity, cutoff)
	if err != nil {
		r.logger.Error("Failed to delete old token prices",
			zap.Error(err),
			zap.String("granularity", granularity),
			zap.Time("cutoff", cutoff))
		return 0, err
	}

	return result.RowsAffected()
}
