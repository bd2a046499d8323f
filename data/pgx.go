package data

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tantralabs/optionlab/models"
)

// Prices are read as numeric so they arrive as exact decimals.
const numericCandlesQuery = `select timestamp, open::numeric, high::numeric, low::numeric, close::numeric, volume::numeric from candles
where symbol = $1 and exchange = $2 and interval = $3 and timestamp >= $4 and timestamp <= $5
order by timestamp`

// ConnectPool opens a pgx pool with shopspring decimals registered and
// checks that the database answers.
func ConnectPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PoolProvider reads the same candles table as PostgresProvider through a
// pgx pool.
type PoolProvider struct {
	pool     *pgxpool.Pool
	Exchange string
	Interval string
}

func NewPoolProvider(pool *pgxpool.Pool, exchange string) *PoolProvider {
	return &PoolProvider{
		pool:     pool,
		Exchange: exchange,
		Interval: "1d",
	}
}

func (p *PoolProvider) GetBars(ctx context.Context, symbol string, start time.Time, end time.Time) ([]*models.Bar, error) {
	from := models.TruncateDay(start)
	to := models.TruncateDay(end).AddDate(0, 0, 1).Add(-time.Millisecond)

	rows, err := p.pool.Query(ctx, numericCandlesQuery, symbol, p.Exchange, p.Interval, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("selecting %s candles: %w", symbol, err)
	}
	defer rows.Close()

	var bars []*models.Bar
	for rows.Next() {
		var ts int64
		var open, high, low, close, volume decimal.Decimal
		if err := rows.Scan(&ts, &open, &high, &low, &close, &volume); err != nil {
			return nil, fmt.Errorf("scanning %s candle: %w", symbol, err)
		}
		bars = append(bars, &models.Bar{
			Timestamp: ts,
			Open:      open.InexactFloat64(),
			High:      high.InexactFloat64(),
			Low:       low.InexactFloat64(),
			Close:     close.InexactFloat64(),
			Volume:    volume.InexactFloat64(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no %s candles for %s on %s between %s and %s", models.ErrMissingMarketData,
			p.Interval, symbol, p.Exchange, from.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return NewHistory(symbol, bars).Bars(), nil
}
