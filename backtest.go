package optionlab

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tantralabs/optionlab/data"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/options"
	"github.com/tantralabs/optionlab/portfolio"
	"github.com/tantralabs/optionlab/settings"
	"github.com/tantralabs/optionlab/utils"
)

// Backtest replays one strategy over the configured date range.
type Backtest struct {
	theo     *options.TheoEngine
	provider data.Provider
	config   settings.Config
}

func NewBacktest(theo *options.TheoEngine, provider data.Provider, config settings.Config) *Backtest {
	return &Backtest{
		theo:     theo,
		provider: provider,
		config:   config,
	}
}

func (b *Backtest) volatilityParams() data.VolatilityParams {
	return data.VolatilityParams{
		Window:  b.config.VolatilityWindow,
		Default: b.config.DefaultVolatility,
		Min:     b.config.MinVolatility,
	}
}

// lookback is how far before the start date bars are loaded so the first
// days already have a full volatility window.
func (b *Backtest) lookback(start time.Time) time.Time {
	return start.AddDate(0, 0, -2*b.config.VolatilityWindow)
}

// Run simulates the strategy day by day. Weekends are skipped. On every other
// day the strategy trades first, expired options are settled at intrinsic
// value, and the portfolio is marked to model. The first error ends the run.
func (b *Backtest) Run(ctx context.Context, strategy Strategy) (*models.Result, error) {
	runStart := time.Now()
	start, err := b.config.Start()
	if err != nil {
		return nil, err
	}
	end, err := b.config.End()
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", models.ErrInvalidArgument, b.config.EndDate, b.config.StartDate)
	}

	symbol := strategy.Symbol()
	logger.Infof("Starting backtest for %s on %s from %s to %s\n", strategy.Name(), symbol,
		start.Format(models.DateLayout), end.Format(models.DateLayout))

	histories, err := data.LoadHistories(ctx, b.provider, []string{symbol}, b.lookback(start), end)
	if err != nil {
		return nil, err
	}
	bars := histories[0].Between(start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s between %s and %s", models.ErrMissingMarketData, symbol,
			start.Format(models.DateLayout), end.Format(models.DateLayout))
	}

	signals := strategy.GenerateSignals(bars)
	logger.Infof("Generated %d trading signals\n", len(signals))

	p := portfolio.NewPortfolio(b.theo, b.config.InitialCapital, b.config.Commission)
	params := b.volatilityParams()

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if models.IsWeekend(day) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snapshot, err := data.Snapshot(histories, day, params)
		if err != nil {
			return nil, err
		}
		if err := strategy.ExecuteTrades(p, models.SignalsOn(signals, day), day, snapshot); err != nil {
			return nil, fmt.Errorf("%s on %s: %w", strategy.Name(), day.Format(models.DateLayout), err)
		}
		if err := b.settleExpirations(p, day, snapshot); err != nil {
			return nil, err
		}
		point, err := p.Mark(day, snapshot, b.config.RiskFreeRate)
		if err != nil {
			return nil, err
		}
		p.RecordEquity(point)
		logger.Debugf("%s value %.2f cash %.2f positions %d\n", day.Format(models.DateLayout), point.Value, point.Cash, p.NumPositions())
	}

	result, err := b.newResult(strategy, p, start, end)
	if err != nil {
		return nil, err
	}
	logger.Infof("Backtest completed with %d trades, final value %.2f in %v\n", len(result.Trades), result.FinalValue, time.Since(runStart))
	return result, nil
}

// settleExpirations closes every option expiring on or before day at its
// intrinsic value, for the full quantity held.
func (b *Backtest) settleExpirations(p *portfolio.Portfolio, day time.Time, snapshot models.MarketSnapshot) error {
	err := p.Each(func(_ portfolio.PositionID, pos models.Position) error {
		if !pos.Kind.IsOption() || !pos.IsExpired(day) {
			return nil
		}
		market, err := snapshot.Get(pos.Symbol)
		if err != nil {
			return err
		}
		exit, err := b.theo.Intrinsic(pos.Kind, market.Price, pos.Strike)
		if err != nil {
			return err
		}
		_, err = p.ClosePosition(pos.Key(), pos.Quantity, exit, day)
		return err
	})
	p.Compact()
	return err
}

func (b *Backtest) newResult(strategy Strategy, p *portfolio.Portfolio, start time.Time, end time.Time) (*models.Result, error) {
	curve := p.EquityCurve()
	trades := p.Trades()

	var open []models.Position
	if err := copier.Copy(&open, p.Positions()); err != nil {
		return nil, err
	}

	finalValue := b.config.InitialCapital
	if len(curve) > 0 {
		finalValue = curve[len(curve)-1].Value
	}

	params := ""
	if described, ok := strategy.(Described); ok {
		params = utils.CreateKeyValuePairs(described.Params(), false)
	}

	return &models.Result{
		ID:             uuid.New().String(),
		Strategy:       strategy.Name(),
		Symbol:         strategy.Symbol(),
		Start:          start,
		End:            end,
		InitialCapital: b.config.InitialCapital,
		FinalValue:     finalValue,
		Status:         models.StatusCompleted,
		Stats:          CalculateStats(curve, trades, b.config.InitialCapital),
		EquityCurve:    curve,
		Trades:         trades,
		OpenPositions:  open,
		Params:         params,
	}, nil
}
