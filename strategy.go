// Package optionlab runs options strategies over daily market data and
// reports how they would have performed.
package optionlab

import (
	"time"

	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/portfolio"
)

// Strategy decides what to trade. GenerateSignals is called once per run with
// the bars from the start to the end date. ExecuteTrades is then called every
// weekday with the signals dated that day.
type Strategy interface {
	Name() string
	Symbol() string
	GenerateSignals(bars []*models.Bar) []models.Signal
	ExecuteTrades(p *portfolio.Portfolio, signals []models.Signal, date time.Time, snapshot models.MarketSnapshot) error
}

// Described strategies expose their parameters for result logging.
type Described interface {
	Params() map[string]interface{}
}
