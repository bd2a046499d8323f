package portfolio

import (
	"fmt"
	"time"

	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/options"
)

// ModelValue is the value of one position for the given day's market data.
// Stock is worth spot * quantity. Options are priced with Black-Scholes,
// or at intrinsic value once expired, times quantity.
func (p *Portfolio) ModelValue(pos models.Position, date time.Time, snapshot models.MarketSnapshot, r float64) (float64, error) {
	data, err := snapshot.Get(pos.Symbol)
	if err != nil {
		return 0, err
	}
	if pos.Kind == models.Stock {
		return data.Price * float64(pos.Quantity), nil
	}
	theo, err := p.theo.Price(pos.Kind, data.Price, pos.Strike, pos.TimeToExpiry(date), r, data.Volatility)
	if err != nil {
		return 0, fmt.Errorf("pricing %v: %w", pos.Key(), err)
	}
	return theo * float64(pos.Quantity), nil
}

// Mark values the portfolio for a day without recording it.
func (p *Portfolio) Mark(date time.Time, snapshot models.MarketSnapshot, r float64) (models.EquityPoint, error) {
	positionsValue := 0.
	err := p.Each(func(_ PositionID, pos models.Position) error {
		value, err := p.ModelValue(pos, date, snapshot, r)
		if err != nil {
			return err
		}
		positionsValue += value
		return nil
	})
	if err != nil {
		return models.EquityPoint{}, err
	}
	cash := p.Cash()
	value := cash + positionsValue
	return models.EquityPoint{
		Date:           models.TruncateDay(date),
		Value:          value,
		Cash:           cash,
		PositionsValue: value - cash,
	}, nil
}

// Value is cash plus the model value of every open position.
func (p *Portfolio) Value(date time.Time, snapshot models.MarketSnapshot, r float64) (float64, error) {
	point, err := p.Mark(date, snapshot, r)
	if err != nil {
		return 0, err
	}
	return point.Value, nil
}

// AggregateGreeks sums quantity * greek over open options that have not
// expired. Each share of stock adds one to delta.
func (p *Portfolio) AggregateGreeks(date time.Time, snapshot models.MarketSnapshot, r float64) (options.Greeks, error) {
	var total options.Greeks
	err := p.Each(func(_ PositionID, pos models.Position) error {
		data, err := snapshot.Get(pos.Symbol)
		if err != nil {
			return err
		}
		if pos.Kind == models.Stock {
			total.Delta += float64(pos.Quantity)
			return nil
		}
		timeLeft := pos.TimeToExpiry(date)
		if timeLeft <= 0 {
			return nil
		}
		greeks, err := p.theo.Greeks(pos.Kind, data.Price, pos.Strike, timeLeft, r, data.Volatility)
		if err != nil {
			return fmt.Errorf("greeks for %v: %w", pos.Key(), err)
		}
		total.Add(greeks, float64(pos.Quantity))
		return nil
	})
	return total, err
}

// RecordEquity appends a point to the equity curve.
func (p *Portfolio) RecordEquity(point models.EquityPoint) {
	p.equityCurve = append(p.equityCurve, point)
}

// EquityCurve returns a copy of the recorded equity curve.
func (p *Portfolio) EquityCurve() []models.EquityPoint {
	curve := make([]models.EquityPoint, len(p.equityCurve))
	copy(curve, p.equityCurve)
	return curve
}
