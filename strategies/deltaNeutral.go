package strategies

import (
	"math"
	"time"

	"github.com/tantralabs/optionlab"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/portfolio"
)

var deltaNeutralInfo = Info{
	ID:          DeltaNeutralID,
	Name:        "Delta Neutral",
	Description: "Maintain delta-neutral portfolio to profit from volatility",
	Category:    "Volatility",
	RiskLevel:   "High",
	Parameters: []ParamInfo{
		{Name: "target_delta", Type: "float", Default: 0.0},
		{Name: "rebalance_threshold", Type: "float", Default: 0.1},
		{Name: "expiration_days", Type: "integer", Default: 30},
		{Name: "contract_quantity", Type: "integer", Default: 1},
		{Name: "rate", Type: "float", Default: 0.02},
	},
}

// DeltaNeutral sells an at the money straddle on the first bar, then trades
// stock every day to hold portfolio delta near the target.
type DeltaNeutral struct {
	base
}

func newDeltaNeutral(b base) optionlab.Strategy {
	return &DeltaNeutral{base: b}
}

func (s *DeltaNeutral) Params() map[string]interface{} {
	return map[string]interface{}{
		"target_delta":        s.params.TargetDelta,
		"rebalance_threshold": s.params.RebalanceThreshold,
		"expiration_days":     s.expirationDays(30),
		"contract_quantity":   s.contracts(),
		"rate":                s.params.Rate,
	}
}

func (s *DeltaNeutral) GenerateSignals(bars []*models.Bar) []models.Signal {
	if len(bars) == 0 {
		return nil
	}
	signals := make([]models.Signal, 0, len(bars))
	signals = append(signals, models.OpenShortStraddle{
		Date:           bars[0].Day(),
		Symbol:         s.symbol,
		ExpirationDays: s.expirationDays(30),
	})
	for _, bar := range bars[1:] {
		signals = append(signals, models.CheckRebalance{Date: bar.Day(), Symbol: s.symbol})
	}
	return signals
}

func (s *DeltaNeutral) ExecuteTrades(p *portfolio.Portfolio, signals []models.Signal, date time.Time, snapshot models.MarketSnapshot) error {
	for _, signal := range signals {
		var err error
		switch sig := signal.(type) {
		case models.OpenShortStraddle:
			err = s.openStraddle(p, sig, date, snapshot)
		case models.CheckRebalance:
			err = s.rebalance(p, sig, date, snapshot)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *DeltaNeutral) openStraddle(p *portfolio.Portfolio, signal models.OpenShortStraddle, date time.Time, snapshot models.MarketSnapshot) error {
	market, err := snapshot.Get(signal.Symbol)
	if err != nil {
		return err
	}
	qty := s.contracts()
	if err := s.openOption(p, models.Call, market, market.Price, signal.ExpirationDays, -qty, date); err != nil {
		return err
	}
	return s.openOption(p, models.Put, market, market.Price, signal.ExpirationDays, -qty, date)
}

// RebalanceShares is the stock trade that moves delta toward target,
// truncated toward zero. It is zero while delta is within threshold.
func RebalanceShares(delta, target, threshold float64) int {
	if math.Abs(delta-target) <= threshold {
		return 0
	}
	return int(target - delta)
}

func (s *DeltaNeutral) rebalance(p *portfolio.Portfolio, signal models.CheckRebalance, date time.Time, snapshot models.MarketSnapshot) error {
	market, err := snapshot.Get(signal.Symbol)
	if err != nil {
		return err
	}
	greeks, err := p.AggregateGreeks(date, snapshot, s.params.Rate)
	if err != nil {
		return err
	}
	shares := RebalanceShares(greeks.Delta, s.params.TargetDelta, s.params.RebalanceThreshold)
	if shares == 0 {
		return nil
	}
	logger.Debugf("Delta %.4f off target %.4f, trading %d shares\n", greeks.Delta, s.params.TargetDelta, shares)
	return p.OpenPosition(models.Position{
		Symbol:     signal.Symbol,
		Kind:       models.Stock,
		Quantity:   shares,
		EntryPrice: market.Price,
		EntryDate:  date,
	})
}
