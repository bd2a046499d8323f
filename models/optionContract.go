package models

import (
	"fmt"
	"time"
)

// PositionKey is the identity of a position. At most one position is open per key.
type PositionKey struct {
	Symbol     string
	Kind       InstrumentKind
	Strike     float64
	Expiration time.Time
}

func (k PositionKey) String() string {
	if k.Kind == Stock {
		return k.Symbol
	}
	return fmt.Sprintf("%s-%s-%v-%s", k.Symbol, k.Kind, k.Strike, k.Expiration.Format(DateLayout))
}

// Position is an open holding. Quantity is signed, positive for long.
type Position struct {
	Symbol     string         `json:"symbol"`
	Kind       InstrumentKind `json:"kind"`
	Strike     float64        `json:"strike,omitempty"`     // Zero for stock
	Expiration time.Time      `json:"expiration,omitempty"` // Zero for stock
	Quantity   int            `json:"quantity"`
	EntryPrice float64        `json:"entry_price"` // Volume weighted across merges
	EntryDate  time.Time      `json:"entry_date"`
}

func (p Position) Key() PositionKey {
	return PositionKey{
		Symbol:     p.Symbol,
		Kind:       p.Kind,
		Strike:     p.Strike,
		Expiration: p.Expiration,
	}
}

// IsExpired reports whether an option position expires on or before the given day.
func (p Position) IsExpired(date time.Time) bool {
	if !p.Kind.IsOption() || p.Expiration.IsZero() {
		return false
	}
	return !TruncateDay(p.Expiration).After(TruncateDay(date))
}

// TimeToExpiry returns whole days to expiration as a fraction of a 365 day year.
func (p Position) TimeToExpiry(date time.Time) float64 {
	days := int(TruncateDay(p.Expiration).Sub(TruncateDay(date)).Hours() / 24)
	return float64(days) / 365.
}

func (p Position) String() string {
	return fmt.Sprintf("%s x%d @ %.4f", p.Key(), p.Quantity, p.EntryPrice)
}
