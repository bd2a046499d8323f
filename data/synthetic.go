package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/utils"
)

// SyntheticProvider generates a geometric random walk of weekday bars. The
// same seed and symbol always give the same series.
type SyntheticProvider struct {
	Seed       int64
	StartPrice float64
	Drift      float64 // Annualized
	Volatility float64 // Annualized
}

func NewSyntheticProvider(seed int64) *SyntheticProvider {
	return &SyntheticProvider{
		Seed:       seed,
		StartPrice: 100,
		Drift:      0.05,
		Volatility: 0.2,
	}
}

func (p *SyntheticProvider) rng(symbol string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return rand.New(rand.NewSource(p.Seed ^ int64(h.Sum64())))
}

func (p *SyntheticProvider) GetBars(ctx context.Context, symbol string, start time.Time, end time.Time) ([]*models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := p.rng(symbol)
	dt := 1.0 / 252
	drift := (p.Drift - 0.5*p.Volatility*p.Volatility) * dt
	diffusion := p.Volatility * math.Sqrt(dt)

	var bars []*models.Bar
	price := p.StartPrice
	for _, day := range utils.TradingDays(start, end) {
		open := price
		price = price * math.Exp(drift+diffusion*rng.NormFloat64())
		spread := math.Abs(rng.NormFloat64()) * diffusion * price / 2
		high := math.Max(open, price) + spread
		low := math.Max(math.Min(open, price)-spread, 0.01)
		volume := math.Round(1e6 * (1 + 0.5*rng.Float64()))
		bars = append(bars, models.NewBar(day, utils.ToFixed(open, 2), utils.ToFixed(high, 2), utils.ToFixed(low, 2), utils.ToFixed(price, 2), volume))
	}
	return bars, nil
}
