package models

import "time"

// Trade records a full or partial close. Trades are never mutated after creation.
type Trade struct {
	Symbol     string         `json:"symbol"`
	Kind       InstrumentKind `json:"kind"`
	Strike     float64        `json:"strike,omitempty"`
	Expiration time.Time      `json:"expiration,omitempty"`
	Quantity   int            `json:"quantity"` // Quantity closed, same sign as the position it came from
	EntryPrice float64        `json:"entry_price"`
	ExitPrice  float64        `json:"exit_price"`
	EntryDate  time.Time      `json:"entry_date"`
	ExitDate   time.Time      `json:"exit_date"`
	PnL        float64        `json:"pnl"` // Realized, net of commission
	Commission float64        `json:"commission"`
}

// TradeRecord is the flat csv form of a trade.
type TradeRecord struct {
	Symbol     string  `csv:"symbol"`
	Kind       string  `csv:"kind"`
	Strike     float64 `csv:"strike"`
	Expiration string  `csv:"expiration"`
	Quantity   int     `csv:"quantity"`
	EntryPrice float64 `csv:"entry_price"`
	ExitPrice  float64 `csv:"exit_price"`
	EntryDate  string  `csv:"entry_date"`
	ExitDate   string  `csv:"exit_date"`
	PnL        float64 `csv:"pnl"`
	Commission float64 `csv:"commission"`
}

func (t Trade) Record() TradeRecord {
	expiration := ""
	if !t.Expiration.IsZero() {
		expiration = t.Expiration.Format(DateLayout)
	}
	return TradeRecord{
		Symbol:     t.Symbol,
		Kind:       t.Kind.String(),
		Strike:     t.Strike,
		Expiration: expiration,
		Quantity:   t.Quantity,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		EntryDate:  t.EntryDate.Format(DateLayout),
		ExitDate:   t.ExitDate.Format(DateLayout),
		PnL:        t.PnL,
		Commission: t.Commission,
	}
}
