package models

// ImpliedVol is a solved implied volatility for one quoted option price.
type ImpliedVol struct {
	Symbol       string         `json:"symbol,omitempty" db:"symbol" csv:"symbol"`
	Kind         InstrumentKind `json:"kind" db:"kind" csv:"kind"`
	IndexPrice   float64        `json:"index_price" db:"indexprice" csv:"index_price"` // Underlying spot
	Strike       float64        `json:"strike" db:"strike" csv:"strike"`
	TimeToExpiry float64        `json:"time_to_expiry" db:"timetoexpiry" csv:"time_to_expiry"` // Years
	MarketPrice  float64        `json:"market_price" db:"marketprice" csv:"market_price"`
	IV           float64        `json:"iv" db:"iv" csv:"iv"`
	Solved       bool           `json:"solved" db:"solved" csv:"solved"` // False when no volatility reproduces MarketPrice
}
