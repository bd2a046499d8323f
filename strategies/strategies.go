// Package strategies holds the built in options strategies.
package strategies

import (
	"fmt"
	"sort"
	"time"

	"github.com/tantralabs/optionlab"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/options"
	"github.com/tantralabs/optionlab/portfolio"
	"github.com/tantralabs/optionlab/settings"
)

const (
	CoveredCallID  = "covered_call"
	IronCondorID   = "iron_condor"
	DeltaNeutralID = "delta_neutral"
	DirectionalID  = "directional"
)

// StrikeIncrement is the spacing of listed strikes that out of the money
// strikes are rounded to.
const StrikeIncrement = 1.0

// ParamInfo describes one configurable parameter.
type ParamInfo struct {
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Default interface{} `json:"default"`
	Options []string    `json:"options,omitempty"`
}

// Info describes a strategy for listings.
type Info struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	RiskLevel   string      `json:"risk_level"`
	Parameters  []ParamInfo `json:"parameters"`
}

type constructor func(b base) optionlab.Strategy

var registry = map[string]struct {
	info  Info
	build constructor
}{
	CoveredCallID:  {coveredCallInfo, newCoveredCall},
	IronCondorID:   {ironCondorInfo, newIronCondor},
	DeltaNeutralID: {deltaNeutralInfo, newDeltaNeutral},
	DirectionalID:  {directionalInfo, newDirectional},
}

// List returns every strategy sorted by id.
func List() []Info {
	infos := make([]Info, 0, len(registry))
	for _, entry := range registry {
		infos = append(infos, entry.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Get returns the description of one strategy.
func Get(id string) (Info, bool) {
	entry, ok := registry[id]
	return entry.info, ok
}

// New builds the strategy named by id for the configured symbol, dates and params.
func New(id string, theo *options.TheoEngine, config settings.Config) (optionlab.Strategy, error) {
	entry, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", models.ErrInvalidArgument, id)
	}
	start, err := config.Start()
	if err != nil {
		return nil, err
	}
	end, err := config.End()
	if err != nil {
		return nil, err
	}
	return entry.build(base{
		name:   entry.info.Name,
		symbol: config.Symbol,
		start:  start,
		end:    end,
		params: config.Params,
		theo:   theo,
	}), nil
}

type base struct {
	name   string
	symbol string
	start  time.Time
	end    time.Time
	params settings.Params
	theo   *options.TheoEngine
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Symbol() string {
	return b.symbol
}

func (b *base) expirationDays(fallback int) int {
	if b.params.ExpirationDays > 0 {
		return b.params.ExpirationDays
	}
	return fallback
}

func (b *base) contracts() int {
	if b.params.ContractQuantity > 0 {
		return b.params.ContractQuantity
	}
	return 1
}

// periodicSignals calls emit on start and every interval days after it, up to
// end, skipping dates with no bar.
func (b *base) periodicSignals(bars []*models.Bar, interval int, emit func(day time.Time) models.Signal) []models.Signal {
	days := make(map[time.Time]bool, len(bars))
	for _, bar := range bars {
		days[bar.Day()] = true
	}
	var signals []models.Signal
	for day := b.start; !day.After(b.end); day = day.AddDate(0, 0, interval) {
		if days[day] {
			signals = append(signals, emit(day))
		}
	}
	return signals
}

// openOption prices a new option with Black-Scholes and books it.
func (b *base) openOption(p *portfolio.Portfolio, kind models.InstrumentKind, market models.MarketData, strike float64, days int, quantity int, date time.Time) error {
	price, err := b.theo.Price(kind, market.Price, strike, float64(days)/365, b.params.Rate, market.Volatility)
	if err != nil {
		return fmt.Errorf("pricing %s %v: %w", kind, strike, err)
	}
	return p.OpenPosition(models.Position{
		Symbol:     b.symbol,
		Kind:       kind,
		Strike:     strike,
		Expiration: models.TruncateDay(date).AddDate(0, 0, days),
		Quantity:   quantity,
		EntryPrice: price,
		EntryDate:  date,
	})
}
