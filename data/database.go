package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tantralabs/optionlab/models"
)

const candlesQuery = `select timestamp, open, high, low, close, volume from candles
where symbol = $1 and exchange = $2 and interval = $3 and timestamp >= $4 and timestamp <= $5
order by timestamp`

// PostgresProvider reads daily bars from the candles table.
type PostgresProvider struct {
	db       *sqlx.DB
	Exchange string
	Interval string
}

func NewPostgresProvider(db *sqlx.DB, exchange string) *PostgresProvider {
	return &PostgresProvider{
		db:       db,
		Exchange: exchange,
		Interval: "1d",
	}
}

func (p *PostgresProvider) GetBars(ctx context.Context, symbol string, start time.Time, end time.Time) ([]*models.Bar, error) {
	from := models.TruncateDay(start)
	// Inclusive of the whole end day.
	to := models.TruncateDay(end).AddDate(0, 0, 1).Add(-time.Millisecond)

	bars := []*models.Bar{}
	err := p.db.SelectContext(ctx, &bars, candlesQuery, symbol, p.Exchange, p.Interval, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("selecting %s candles: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no %s candles for %s on %s between %s and %s", models.ErrMissingMarketData,
			p.Interval, symbol, p.Exchange, from.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return NewHistory(symbol, bars).Bars(), nil
}

func toMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
