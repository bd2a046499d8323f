package database

import (
	"encoding/json"
	"time"

	"github.com/tantralabs/optionlab/models"
)

type RunRecord struct {
	ID             string    `db:"id"`
	Strategy       string    `db:"strategy"`
	Symbol         string    `db:"symbol"`
	StartDate      time.Time `db:"start_date"`
	EndDate        time.Time `db:"end_date"`
	InitialCapital float64   `db:"initial_capital"`
	FinalValue     float64   `db:"final_value"`
	Status         string    `db:"status"`
	Error          string    `db:"error"`
	Stats          string    `db:"stats"`          // json
	OpenPositions  string    `db:"open_positions"` // json
	Params         string    `db:"params"`
	CreatedAt      time.Time `db:"created_at"`
}

type EquityRecord struct {
	RunID          string    `db:"run_id"`
	Date           time.Time `db:"date"`
	Value          float64   `db:"value"`
	Cash           float64   `db:"cash"`
	PositionsValue float64   `db:"positions_value"`
}

type TradeRow struct {
	RunID      string     `db:"run_id"`
	Seq        int        `db:"seq"`
	Symbol     string     `db:"symbol"`
	Kind       string     `db:"kind"`
	Strike     float64    `db:"strike"`
	Expiration *time.Time `db:"expiration"`
	Quantity   int        `db:"quantity"`
	EntryPrice float64    `db:"entry_price"`
	ExitPrice  float64    `db:"exit_price"`
	EntryDate  time.Time  `db:"entry_date"`
	ExitDate   time.Time  `db:"exit_date"`
	PnL        float64    `db:"pnl"`
	Commission float64    `db:"commission"`
}

func newRunRecord(result *models.Result, createdAt time.Time) (RunRecord, error) {
	stats, err := json.Marshal(result.Stats)
	if err != nil {
		return RunRecord{}, err
	}
	open := result.OpenPositions
	if open == nil {
		open = []models.Position{}
	}
	positions, err := json.Marshal(open)
	if err != nil {
		return RunRecord{}, err
	}
	return RunRecord{
		ID:             result.ID,
		Strategy:       result.Strategy,
		Symbol:         result.Symbol,
		StartDate:      result.Start,
		EndDate:        result.End,
		InitialCapital: result.InitialCapital,
		FinalValue:     result.FinalValue,
		Status:         string(result.Status),
		Error:          result.Error,
		Stats:          string(stats),
		OpenPositions:  string(positions),
		Params:         result.Params,
		CreatedAt:      createdAt,
	}, nil
}

func (r RunRecord) result() (*models.Result, error) {
	result := &models.Result{
		ID:             r.ID,
		Strategy:       r.Strategy,
		Symbol:         r.Symbol,
		Start:          models.TruncateDay(r.StartDate),
		End:            models.TruncateDay(r.EndDate),
		InitialCapital: r.InitialCapital,
		FinalValue:     r.FinalValue,
		Status:         models.RunStatus(r.Status),
		Error:          r.Error,
		Params:         r.Params,
	}
	if r.Stats != "" {
		if err := json.Unmarshal([]byte(r.Stats), &result.Stats); err != nil {
			return nil, err
		}
	}
	if r.OpenPositions != "" {
		if err := json.Unmarshal([]byte(r.OpenPositions), &result.OpenPositions); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func newEquityRecords(runID string, curve []models.EquityPoint) []EquityRecord {
	records := make([]EquityRecord, len(curve))
	for i, point := range curve {
		records[i] = EquityRecord{
			RunID:          runID,
			Date:           point.Date,
			Value:          point.Value,
			Cash:           point.Cash,
			PositionsValue: point.PositionsValue,
		}
	}
	return records
}

func (r EquityRecord) point() models.EquityPoint {
	return models.EquityPoint{
		Date:           models.TruncateDay(r.Date),
		Value:          r.Value,
		Cash:           r.Cash,
		PositionsValue: r.PositionsValue,
	}
}

func newTradeRows(runID string, trades []models.Trade) []TradeRow {
	rows := make([]TradeRow, len(trades))
	for i, trade := range trades {
		var expiration *time.Time
		if !trade.Expiration.IsZero() {
			e := trade.Expiration
			expiration = &e
		}
		rows[i] = TradeRow{
			RunID:      runID,
			Seq:        i,
			Symbol:     trade.Symbol,
			Kind:       trade.Kind.String(),
			Strike:     trade.Strike,
			Expiration: expiration,
			Quantity:   trade.Quantity,
			EntryPrice: trade.EntryPrice,
			ExitPrice:  trade.ExitPrice,
			EntryDate:  trade.EntryDate,
			ExitDate:   trade.ExitDate,
			PnL:        trade.PnL,
			Commission: trade.Commission,
		}
	}
	return rows
}

func (r TradeRow) trade() models.Trade {
	trade := models.Trade{
		Symbol:     r.Symbol,
		Kind:       models.InstrumentKind(r.Kind),
		Strike:     r.Strike,
		Quantity:   r.Quantity,
		EntryPrice: r.EntryPrice,
		ExitPrice:  r.ExitPrice,
		EntryDate:  models.TruncateDay(r.EntryDate),
		ExitDate:   models.TruncateDay(r.ExitDate),
		PnL:        r.PnL,
		Commission: r.Commission,
	}
	if r.Expiration != nil {
		trade.Expiration = models.TruncateDay(*r.Expiration)
	}
	return trade
}
