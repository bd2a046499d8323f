package models

import "fmt"

// MarketData is what the simulator knows about one symbol on one day.
type MarketData struct {
	Price      float64 `json:"price"` // Close
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Volume     float64 `json:"volume"`
	Volatility float64 `json:"volatility"` // Annualized
}

// MarketSnapshot maps symbol to its data for a single day.
type MarketSnapshot map[string]MarketData

// Get returns the data for symbol, or ErrMissingMarketData.
func (s MarketSnapshot) Get(symbol string) (MarketData, error) {
	data, ok := s[symbol]
	if !ok {
		return MarketData{}, fmt.Errorf("%w: no data for %s", ErrMissingMarketData, symbol)
	}
	return data, nil
}
