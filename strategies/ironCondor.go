package strategies

import (
	"fmt"
	"time"

	"github.com/tantralabs/optionlab"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/portfolio"
	"github.com/tantralabs/optionlab/utils"
)

var ironCondorInfo = Info{
	ID:          IronCondorID,
	Name:        "Iron Condor",
	Description: "Sell put spread and call spread for range-bound markets",
	Category:    "Income",
	RiskLevel:   "Medium",
	Parameters: []ParamInfo{
		{Name: "wing_width", Type: "float", Default: 10},
		{Name: "put_strike_pct", Type: "float", Default: 0.95},
		{Name: "call_strike_pct", Type: "float", Default: 1.05},
		{Name: "signal_interval", Type: "integer", Default: 45},
		{Name: "expiration_days", Type: "integer", Default: 45},
		{Name: "contract_quantity", Type: "integer", Default: 1},
		{Name: "rate", Type: "float", Default: 0.02},
	},
}

// IronCondor sells an out of the money put spread and call spread every
// signal interval.
type IronCondor struct {
	base
}

func newIronCondor(b base) optionlab.Strategy {
	return &IronCondor{base: b}
}

func (s *IronCondor) interval() int {
	if s.params.SignalInterval > 0 {
		return s.params.SignalInterval
	}
	return 45
}

// Strikes returns the long put, short put, short call and long call strikes.
// The short strikes are rounded to listed strikes and the wings sit
// WingWidth beyond them.
func (s *IronCondor) Strikes(spot float64) (longPut, shortPut, shortCall, longCall float64) {
	shortPut = utils.RoundToNearest(spot*s.params.PutStrikePct, StrikeIncrement)
	shortCall = utils.RoundToNearest(spot*s.params.CallStrikePct, StrikeIncrement)
	return shortPut - s.params.WingWidth, shortPut, shortCall, shortCall + s.params.WingWidth
}

func (s *IronCondor) Params() map[string]interface{} {
	return map[string]interface{}{
		"wing_width":        s.params.WingWidth,
		"put_strike_pct":    s.params.PutStrikePct,
		"call_strike_pct":   s.params.CallStrikePct,
		"signal_interval":   s.interval(),
		"expiration_days":   s.expirationDays(45),
		"contract_quantity": s.contracts(),
		"rate":              s.params.Rate,
	}
}

func (s *IronCondor) GenerateSignals(bars []*models.Bar) []models.Signal {
	days := s.expirationDays(45)
	return s.periodicSignals(bars, s.interval(), func(day time.Time) models.Signal {
		return models.OpenIronCondor{Date: day, Symbol: s.symbol, ExpirationDays: days}
	})
}

func (s *IronCondor) ExecuteTrades(p *portfolio.Portfolio, signals []models.Signal, date time.Time, snapshot models.MarketSnapshot) error {
	for _, signal := range signals {
		if sig, ok := signal.(models.OpenIronCondor); ok {
			if err := s.open(p, sig, date, snapshot); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *IronCondor) open(p *portfolio.Portfolio, signal models.OpenIronCondor, date time.Time, snapshot models.MarketSnapshot) error {
	market, err := snapshot.Get(signal.Symbol)
	if err != nil {
		return err
	}
	longPut, shortPut, shortCall, longCall := s.Strikes(market.Price)
	if longPut <= 0 {
		return fmt.Errorf("%w: wing width %v puts the long put strike at %v", models.ErrInvalidArgument, s.params.WingWidth, longPut)
	}
	qty := s.contracts()
	legs := []struct {
		kind     models.InstrumentKind
		strike   float64
		quantity int
	}{
		{models.Put, shortPut, -qty},
		{models.Put, longPut, qty},
		{models.Call, shortCall, -qty},
		{models.Call, longCall, qty},
	}
	for _, leg := range legs {
		if err := s.openOption(p, leg.kind, market, leg.strike, signal.ExpirationDays, leg.quantity, date); err != nil {
			return err
		}
	}
	return nil
}
