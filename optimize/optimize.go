// Package optimize sweeps strategy parameters, running one backtest per
// combination concurrently.
package optimize

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/fatih/structs"
	"github.com/jinzhu/copier"
	"github.com/tantralabs/optionlab"
	"github.com/tantralabs/optionlab/data"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/options"
	"github.com/tantralabs/optionlab/settings"
	"github.com/tantralabs/optionlab/strategies"
	"golang.org/x/sync/errgroup"
)

// Runner runs one backtest for a config.
type Runner func(ctx context.Context, config settings.Config) (*models.Result, error)

// BacktestRunner builds the configured strategy and runs it against provider.
func BacktestRunner(theo *options.TheoEngine, provider data.Provider) Runner {
	return func(ctx context.Context, config settings.Config) (*models.Result, error) {
		strategy, err := strategies.New(config.Strategy, theo, config)
		if err != nil {
			return nil, err
		}
		return optionlab.NewBacktest(theo, provider, config).Run(ctx, strategy)
	}
}

// Trial is the outcome of one parameter combination. Err is set when that
// backtest failed; other trials still run.
type Trial struct {
	Values map[string]float64 `json:"values"`
	Result *models.Result     `json:"result,omitempty"`
	Err    error              `json:"-"`
}

// Grid is the cartesian product of every parameter's values.
func Grid(params []models.SearchParameter) ([]map[string]float64, error) {
	grid := []map[string]float64{{}}
	for _, param := range params {
		if err := param.Validate(); err != nil {
			return nil, err
		}
		var next []map[string]float64
		for _, combo := range grid {
			for _, value := range param.Values() {
				extended := make(map[string]float64, len(combo)+1)
				for k, v := range combo {
					extended[k] = v
				}
				extended[param.Name] = value
				next = append(next, extended)
			}
		}
		grid = next
	}
	return grid, nil
}

// Apply returns a copy of config with the named strategy parameters set.
func Apply(config settings.Config, values map[string]float64) (settings.Config, error) {
	var clone settings.Config
	if err := copier.Copy(&clone, &config); err != nil {
		return clone, err
	}
	fields := make(map[string]*structs.Field)
	for _, field := range structs.New(&clone.Params).Fields() {
		fields[field.Tag("json")] = field
	}
	for name, value := range values {
		field, ok := fields[name]
		if !ok {
			return clone, fmt.Errorf("%w: unknown parameter %q", models.ErrInvalidArgument, name)
		}
		var err error
		switch field.Kind() {
		case reflect.Float64:
			err = field.Set(value)
		case reflect.Int:
			err = field.Set(int(value))
		default:
			err = fmt.Errorf("%w: parameter %q is not numeric", models.ErrInvalidArgument, name)
		}
		if err != nil {
			return clone, err
		}
	}
	return clone, nil
}

// Sweep runs every combination of params over config, at most workers at a
// time. It stops early only if ctx is cancelled.
func Sweep(ctx context.Context, config settings.Config, params []models.SearchParameter, workers int, run Runner) ([]Trial, error) {
	grid, err := Grid(params)
	if err != nil {
		return nil, err
	}
	configs := make([]settings.Config, len(grid))
	for i, values := range grid {
		if configs[i], err = Apply(config, values); err != nil {
			return nil, err
		}
	}
	if workers < 1 {
		workers = 1
	}
	logger.Infof("Sweeping %d parameter combinations with %d workers\n", len(grid), workers)

	trials := make([]Trial, len(grid))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range grid {
		i := i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := run(ctx, configs[i])
			trials[i] = Trial{Values: grid[i], Result: result, Err: err}
			if err != nil {
				logger.Errorf("Trial %v failed: %v\n", grid[i], err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return trials, err
	}
	return trials, nil
}

// Best returns the successful trials sorted by Sharpe ratio, best first.
func Best(trials []Trial) []Trial {
	var ok []Trial
	for _, trial := range trials {
		if trial.Err == nil && trial.Result != nil {
			ok = append(ok, trial)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool {
		return ok[i].Result.Stats.SharpeRatio > ok[j].Result.Stats.SharpeRatio
	})
	return ok
}
