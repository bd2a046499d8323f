// Package database persists backtest results and solved implied
// volatilities in postgres.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/settings"
)

const schema = `
create table if not exists backtest_runs (
	id text primary key,
	strategy text not null,
	symbol text not null,
	start_date date not null,
	end_date date not null,
	initial_capital double precision not null,
	final_value double precision not null,
	status text not null,
	error text not null default '',
	stats text not null default '{}',
	open_positions text not null default '[]',
	params text not null default '',
	created_at timestamptz not null
);
create table if not exists equity_points (
	run_id text references backtest_runs(id) on delete cascade,
	date date not null,
	value double precision not null,
	cash double precision not null,
	positions_value double precision not null,
	primary key (run_id, date)
);
create table if not exists trades (
	run_id text references backtest_runs(id) on delete cascade,
	seq integer not null,
	symbol text not null,
	kind text not null,
	strike double precision not null,
	expiration date,
	quantity integer not null,
	entry_price double precision not null,
	exit_price double precision not null,
	entry_date date not null,
	exit_date date not null,
	pnl double precision not null,
	commission double precision not null,
	primary key (run_id, seq)
);
create table if not exists impliedvol (
	symbol text not null,
	kind text not null,
	indexprice double precision not null,
	strike double precision not null,
	timetoexpiry double precision not null,
	marketprice double precision not null,
	iv double precision not null,
	solved boolean not null
);
`

// Connect opens and pings a postgres connection.
func Connect(config settings.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to %s:%d: %w", config.Host, config.Port, err)
	}
	return db, nil
}

// Store is a ResultStore backed by postgres.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveResult inserts or replaces a run with its equity curve and trades.
func (s *Store) SaveResult(ctx context.Context, result *models.Result) error {
	run, err := newRunRecord(result, time.Now().UTC())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, "delete from backtest_runs where id = $1", run.ID); err != nil {
		return err
	}
	_, err = tx.NamedExecContext(ctx, `insert into backtest_runs
		(id, strategy, symbol, start_date, end_date, initial_capital, final_value, status, error, stats, open_positions, params, created_at)
		values (:id, :strategy, :symbol, :start_date, :end_date, :initial_capital, :final_value, :status, :error, :stats, :open_positions, :params, :created_at)`, run)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	for _, record := range newEquityRecords(run.ID, result.EquityCurve) {
		_, err = tx.NamedExecContext(ctx, `insert into equity_points (run_id, date, value, cash, positions_value)
			values (:run_id, :date, :value, :cash, :positions_value)`, record)
		if err != nil {
			return fmt.Errorf("inserting equity for %s: %w", run.ID, err)
		}
	}
	for _, row := range newTradeRows(run.ID, result.Trades) {
		_, err = tx.NamedExecContext(ctx, `insert into trades
			(run_id, seq, symbol, kind, strike, expiration, quantity, entry_price, exit_price, entry_date, exit_date, pnl, commission)
			values (:run_id, :seq, :symbol, :kind, :strike, :expiration, :quantity, :entry_price, :exit_price, :entry_date, :exit_date, :pnl, :commission)`, row)
		if err != nil {
			return fmt.Errorf("inserting trades for %s: %w", run.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	logger.Debugf("Saved run %s with %d equity points and %d trades\n", run.ID, len(result.EquityCurve), len(result.Trades))
	return nil
}

func (s *Store) GetResult(ctx context.Context, id string) (*models.Result, error) {
	var run RunRecord
	if err := s.db.GetContext(ctx, &run, "select * from backtest_runs where id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	result, err := run.result()
	if err != nil {
		return nil, err
	}

	equity := []EquityRecord{}
	if err := s.db.SelectContext(ctx, &equity, "select * from equity_points where run_id = $1 order by date", id); err != nil {
		return nil, err
	}
	result.EquityCurve = make([]models.EquityPoint, len(equity))
	for i, record := range equity {
		result.EquityCurve[i] = record.point()
	}

	rows := []TradeRow{}
	if err := s.db.SelectContext(ctx, &rows, "select * from trades where run_id = $1 order by seq", id); err != nil {
		return nil, err
	}
	result.Trades = make([]models.Trade, len(rows))
	for i, row := range rows {
		result.Trades[i] = row.trade()
	}
	return result, nil
}

// ListResults returns run summaries, newest first, without curves or trades.
func (s *Store) ListResults(ctx context.Context, limit int, offset int) ([]*models.Result, error) {
	runs := []RunRecord{}
	err := s.db.SelectContext(ctx, &runs, "select * from backtest_runs order by created_at desc limit $1 offset $2", limit, offset)
	if err != nil {
		return nil, err
	}
	results := make([]*models.Result, 0, len(runs))
	for _, run := range runs {
		result, err := run.result()
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *Store) DeleteResult(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "delete from backtest_runs where id = $1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SaveImpliedVols appends solved volatilities to the impliedvol table.
func (s *Store) SaveImpliedVols(ctx context.Context, ivs []models.ImpliedVol) error {
	for _, iv := range ivs {
		_, err := s.db.NamedExecContext(ctx, `insert into impliedvol (symbol, kind, indexprice, strike, timetoexpiry, marketprice, iv, solved)
			values (:symbol, :kind, :indexprice, :strike, :timetoexpiry, :marketprice, :iv, :solved)`, iv)
		if err != nil {
			return err
		}
	}
	return nil
}
