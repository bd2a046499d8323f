// Package data loads daily bars and turns them into the per day market
// snapshots the backtester consumes.
package data

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/ta"
	"gonum.org/v1/gonum/stat"
)

// Provider is a source of daily bars.
type Provider interface {
	GetBars(ctx context.Context, symbol string, start time.Time, end time.Time) ([]*models.Bar, error)
}

// VolatilityParams configures the trailing realized volatility estimate.
type VolatilityParams struct {
	Window  int     // Number of closes, including the current one
	Default float64 // Used when there are fewer than two returns
	Min     float64 // Floor
}

func DefaultVolatilityParams() VolatilityParams {
	return VolatilityParams{
		Window:  30,
		Default: 0.25,
		Min:     0.05,
	}
}

// History is the sorted, de-duplicated bar series of one symbol.
type History struct {
	Symbol string
	bars   []*models.Bar
	closes []float64
	index  map[time.Time]int
}

func NewHistory(symbol string, bars []*models.Bar) *History {
	sorted := make([]*models.Bar, 0, len(bars))
	seen := make(map[int64]bool, len(bars))
	for _, bar := range bars {
		if bar == nil || seen[bar.Timestamp] {
			continue
		}
		seen[bar.Timestamp] = true
		sorted = append(sorted, bar)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	h := &History{
		Symbol: symbol,
		bars:   sorted,
		closes: make([]float64, len(sorted)),
		index:  make(map[time.Time]int, len(sorted)),
	}
	for i, bar := range sorted {
		h.closes[i] = bar.Close
		h.index[bar.Day()] = i
	}
	return h
}

func (h *History) Bars() []*models.Bar {
	return h.bars
}

func (h *History) Len() int {
	return len(h.bars)
}

// Closes returns the close prices, oldest first.
func (h *History) Closes() []float64 {
	return h.closes
}

// At returns the bar for the given day and its position in the series.
func (h *History) At(day time.Time) (*models.Bar, int, bool) {
	i, ok := h.index[models.TruncateDay(day)]
	if !ok {
		return nil, -1, false
	}
	return h.bars[i], i, true
}

// Between returns the bars dated from start to end inclusive.
func (h *History) Between(start time.Time, end time.Time) []*models.Bar {
	from := models.TruncateDay(start)
	to := models.TruncateDay(end)
	var bars []*models.Bar
	for _, bar := range h.bars {
		day := bar.Day()
		if !day.Before(from) && !day.After(to) {
			bars = append(bars, bar)
		}
	}
	return bars
}

// Volatility estimates annualized volatility at index i from the trailing
// window of closes ending at i.
func (h *History) Volatility(i int, params VolatilityParams) float64 {
	if i < 0 || i >= len(h.closes) {
		return params.Default
	}
	from := i - params.Window + 1
	if from < 0 {
		from = 0
	}
	return TrailingVolatility(h.closes[from:i+1], params)
}

// TrailingVolatility is the sample standard deviation of daily returns,
// annualized by sqrt(252) and floored at params.Min.
func TrailingVolatility(closes []float64, params VolatilityParams) float64 {
	if len(closes) < 3 {
		return params.Default
	}
	roc := ta.GetRoc(closes, 1)
	returns := make([]float64, len(roc)-1)
	for i := range returns {
		returns[i] = roc[i+1] / 100
	}
	volatility := stat.StdDev(returns, nil) * math.Sqrt(252)
	if math.IsNaN(volatility) {
		return params.Default
	}
	return math.Max(volatility, params.Min)
}

// Snapshot builds the market data of every history for a day. Any history
// without a bar on that day makes the snapshot fail.
func Snapshot(histories []*History, day time.Time, params VolatilityParams) (models.MarketSnapshot, error) {
	snapshot := make(models.MarketSnapshot, len(histories))
	for _, h := range histories {
		bar, i, ok := h.At(day)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no bar on %s", models.ErrMissingMarketData, h.Symbol, day.Format(models.DateLayout))
		}
		snapshot[h.Symbol] = models.MarketData{
			Price:      bar.Close,
			Open:       bar.Open,
			High:       bar.High,
			Low:        bar.Low,
			Volume:     bar.Volume,
			Volatility: h.Volatility(i, params),
		}
	}
	return snapshot, nil
}

// LoadHistories fetches every symbol from the provider.
func LoadHistories(ctx context.Context, provider Provider, symbols []string, start time.Time, end time.Time) ([]*History, error) {
	histories := make([]*History, 0, len(symbols))
	for _, symbol := range symbols {
		bars, err := provider.GetBars(ctx, symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("%w: no bars for %s between %s and %s", models.ErrMissingMarketData, symbol,
				start.Format(models.DateLayout), end.Format(models.DateLayout))
		}
		histories = append(histories, NewHistory(symbol, bars))
	}
	return histories, nil
}
