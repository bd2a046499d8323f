package strategies

import (
	"fmt"
	"time"

	"github.com/tantralabs/optionlab"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/portfolio"
	"github.com/tantralabs/optionlab/utils"
)

var coveredCallInfo = Info{
	ID:          CoveredCallID,
	Name:        "Covered Call",
	Description: "Own stock and sell call options to generate income",
	Category:    "Income",
	RiskLevel:   "Low",
	Parameters: []ParamInfo{
		{Name: "strike_selection", Type: "string", Default: "30_delta", Options: []string{"30_delta", "5_percent_otm", "10_percent_otm"}},
		{Name: "share_quantity", Type: "integer", Default: 100},
		{Name: "signal_interval", Type: "integer", Default: 30},
		{Name: "expiration_days", Type: "integer", Default: 30},
		{Name: "rate", Type: "float", Default: 0.02},
	},
}

// CoveredCall buys stock on the first bar and writes a call against it every
// signal interval.
type CoveredCall struct {
	base
}

func newCoveredCall(b base) optionlab.Strategy {
	return &CoveredCall{base: b}
}

func (s *CoveredCall) shares() int {
	if s.params.ShareQuantity > 0 {
		return s.params.ShareQuantity
	}
	return 100
}

func (s *CoveredCall) interval() int {
	if s.params.SignalInterval > 0 {
		return s.params.SignalInterval
	}
	return 30
}

// Strike returns the listed call strike nearest to the selection. 30_delta is
// approximated as 5% out of the money.
func (s *CoveredCall) Strike(spot float64) float64 {
	otm := 1.05
	if s.params.StrikeSelection == "10_percent_otm" {
		otm = 1.10
	}
	return utils.RoundToNearest(spot*otm, StrikeIncrement)
}

func (s *CoveredCall) Params() map[string]interface{} {
	return map[string]interface{}{
		"strike_selection": s.params.StrikeSelection,
		"share_quantity":   s.shares(),
		"signal_interval":  s.interval(),
		"expiration_days":  s.expirationDays(30),
		"rate":             s.params.Rate,
	}
}

func (s *CoveredCall) GenerateSignals(bars []*models.Bar) []models.Signal {
	if len(bars) == 0 {
		return nil
	}
	signals := []models.Signal{models.BuyStock{
		Date:     bars[0].Day(),
		Symbol:   s.symbol,
		Quantity: s.shares(),
		Price:    bars[0].Close,
	}}
	days := s.expirationDays(30)
	return append(signals, s.periodicSignals(bars, s.interval(), func(day time.Time) models.Signal {
		return models.SellCall{Date: day, Symbol: s.symbol, ExpirationDays: days}
	})...)
}

func (s *CoveredCall) ExecuteTrades(p *portfolio.Portfolio, signals []models.Signal, date time.Time, snapshot models.MarketSnapshot) error {
	for _, signal := range signals {
		var err error
		switch sig := signal.(type) {
		case models.BuyStock:
			err = s.buyStock(p, sig, date, snapshot)
		case models.SellCall:
			err = s.sellCall(p, sig, date, snapshot)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *CoveredCall) buyStock(p *portfolio.Portfolio, signal models.BuyStock, date time.Time, snapshot models.MarketSnapshot) error {
	price := signal.Price
	if market, ok := snapshot[signal.Symbol]; ok && market.Price > 0 {
		price = market.Price
	}
	return p.OpenPosition(models.Position{
		Symbol:     signal.Symbol,
		Kind:       models.Stock,
		Quantity:   signal.Quantity,
		EntryPrice: price,
		EntryDate:  date,
	})
}

func (s *CoveredCall) sellCall(p *portfolio.Portfolio, signal models.SellCall, date time.Time, snapshot models.MarketSnapshot) error {
	market, err := snapshot.Get(signal.Symbol)
	if err != nil {
		return err
	}
	if market.Price <= 0 {
		return fmt.Errorf("%w: no price for %s", models.ErrMissingMarketData, signal.Symbol)
	}
	calls := s.shares() / 100
	if calls < 1 {
		calls = 1
	}
	return s.openOption(p, models.Call, market, s.Strike(market.Price), signal.ExpirationDays, -calls, date)
}
