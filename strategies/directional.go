package strategies

import (
	"time"

	"github.com/tantralabs/optionlab"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/portfolio"
	"github.com/tantralabs/optionlab/ta"
)

var directionalInfo = Info{
	ID:          DirectionalID,
	Name:        "Directional",
	Description: "Buy calls or puts based on market direction",
	Category:    "Directional",
	RiskLevel:   "High",
	Parameters: []ParamInfo{
		{Name: "fast_period", Type: "integer", Default: 10},
		{Name: "slow_period", Type: "integer", Default: 30},
		{Name: "expiration_days", Type: "integer", Default: 30},
		{Name: "contract_quantity", Type: "integer", Default: 1},
		{Name: "rate", Type: "float", Default: 0.02},
	},
}

// Directional buys an at the money call when the fast SMA crosses above the
// slow SMA and a put when it crosses below, closing the previous option first.
type Directional struct {
	base
}

func newDirectional(b base) optionlab.Strategy {
	return &Directional{base: b}
}

func (s *Directional) periods() (int, int) {
	fast, slow := s.params.FastPeriod, s.params.SlowPeriod
	if fast <= 0 {
		fast = 10
	}
	if slow <= 0 {
		slow = 30
	}
	return fast, slow
}

func (s *Directional) Params() map[string]interface{} {
	fast, slow := s.periods()
	return map[string]interface{}{
		"fast_period":       fast,
		"slow_period":       slow,
		"expiration_days":   s.expirationDays(30),
		"contract_quantity": s.contracts(),
		"rate":              s.params.Rate,
	}
}

func (s *Directional) GenerateSignals(bars []*models.Bar) []models.Signal {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	fast, slow := s.periods()
	days := s.expirationDays(30)

	var signals []models.Signal
	for i, trend := range ta.GetCrossovers(closes, fast, slow) {
		var kind models.InstrumentKind
		switch trend {
		case ta.Bullish:
			kind = models.Call
		case ta.Bearish:
			kind = models.Put
		default:
			continue
		}
		signals = append(signals, models.EnterDirectional{
			Date:           bars[i].Day(),
			Symbol:         s.symbol,
			Kind:           kind,
			ExpirationDays: days,
		})
	}
	return signals
}

func (s *Directional) ExecuteTrades(p *portfolio.Portfolio, signals []models.Signal, date time.Time, snapshot models.MarketSnapshot) error {
	for _, signal := range signals {
		if sig, ok := signal.(models.EnterDirectional); ok {
			if err := s.enter(p, sig, date, snapshot); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Directional) enter(p *portfolio.Portfolio, signal models.EnterDirectional, date time.Time, snapshot models.MarketSnapshot) error {
	market, err := snapshot.Get(signal.Symbol)
	if err != nil {
		return err
	}
	if err := s.exit(p, signal.Symbol, date, snapshot); err != nil {
		return err
	}
	return s.openOption(p, signal.Kind, market, market.Price, signal.ExpirationDays, s.contracts(), date)
}

// exit closes every open option on symbol at its model value.
func (s *Directional) exit(p *portfolio.Portfolio, symbol string, date time.Time, snapshot models.MarketSnapshot) error {
	err := p.Each(func(_ portfolio.PositionID, pos models.Position) error {
		if pos.Symbol != symbol || !pos.Kind.IsOption() {
			return nil
		}
		value, err := p.ModelValue(pos, date, snapshot, s.params.Rate)
		if err != nil {
			return err
		}
		_, err = p.ClosePosition(pos.Key(), pos.Quantity, value/float64(pos.Quantity), date)
		return err
	})
	p.Compact()
	return err
}
