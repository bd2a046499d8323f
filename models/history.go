package models

import "time"

// EquityPoint is the portfolio value recorded at the end of a trading day.
type EquityPoint struct {
	Date           time.Time `json:"date"`
	Value          float64   `json:"value"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"` // Value - Cash
}

type BalanceHistory struct {
	Date           string  `csv:"date"`
	Value          float64 `csv:"value"`
	Cash           float64 `csv:"cash"`
	PositionsValue float64 `csv:"positions_value"`
}

func (e EquityPoint) Record() BalanceHistory {
	return BalanceHistory{
		Date:           e.Date.Format(DateLayout),
		Value:          e.Value,
		Cash:           e.Cash,
		PositionsValue: e.PositionsValue,
	}
}
