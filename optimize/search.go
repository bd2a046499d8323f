package optimize

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	eaopt "github.com/MaxHalford/eaopt"
	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/settings"
	"golang.org/x/sync/errgroup"
)

// FailedScore is what a failed backtest scores in the searches that minimize
// negative Sharpe, so the optimizers steer away from it.
const FailedScore = 1e6

// trialLog collects trials from concurrent objective calls.
type trialLog struct {
	mu     sync.Mutex
	trials []Trial
}

// evaluate runs one backtest for values and returns its negative Sharpe.
func (l *trialLog) evaluate(ctx context.Context, config settings.Config, values map[string]float64, run Runner) float64 {
	applied, err := Apply(config, values)
	var result *models.Result
	if err == nil {
		result, err = run(ctx, applied)
	}
	l.mu.Lock()
	l.trials = append(l.trials, Trial{Values: values, Result: result, Err: err})
	l.mu.Unlock()
	if err != nil {
		logger.Errorf("Trial %v failed: %v\n", values, err)
		return FailedScore
	}
	return -result.Stats.SharpeRatio
}

func validateAll(params []models.SearchParameter) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: no search parameters", models.ErrInvalidArgument)
	}
	for _, p := range params {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TPE searches params with a tree-structured Parzen estimator for n trials,
// workers at a time. Suggested values are snapped to each parameter's step.
func TPE(ctx context.Context, config settings.Config, params []models.SearchParameter, n int, workers int, run Runner) ([]Trial, error) {
	if err := validateAll(params); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	study, err := goptuna.CreateStudy("optionlab", goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return nil, err
	}

	history := &trialLog{}
	objective := func(trial goptuna.Trial) (float64, error) {
		values := make(map[string]float64, len(params))
		for _, p := range params {
			v, err := trial.SuggestFloat(p.Name, p.Min, p.Max)
			if err != nil {
				return 0, err
			}
			values[p.Name] = p.Snap(v)
		}
		return history.evaluate(ctx, config, values, run), nil
	}

	logger.Infof("Running %d TPE trials with %d workers\n", n, workers)
	eg, egCtx := errgroup.WithContext(ctx)
	study.WithContext(egCtx)
	for i := 0; i < workers; i++ {
		episodes := n / workers
		if i < n%workers {
			episodes++
		}
		if episodes == 0 {
			continue
		}
		eg.Go(func() error {
			return study.Optimize(objective, episodes)
		})
	}
	if err := eg.Wait(); err != nil {
		return history.trials, err
	}

	if v, err := study.GetBestValue(); err == nil {
		p, _ := study.GetBestParams()
		logger.Infof("Best sharpe %.4f at %v\n", -v, p)
	}
	return history.trials, nil
}

// Evolve searches params with OpenAI style evolution strategies. Each
// parameter is searched on [0, 1] and mapped onto its range; points*steps
// backtests are run one at a time.
func Evolve(ctx context.Context, config settings.Config, params []models.SearchParameter, points uint, steps uint, seed int64, run Runner) ([]Trial, error) {
	if err := validateAll(params); err != nil {
		return nil, err
	}
	oes, err := eaopt.NewOES(points, steps, 0.1, 0.05, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	oes.GA.RNG = rand.New(rand.NewSource(seed))

	history := &trialLog{}
	evaluate := func(x []float64) float64 {
		if ctx.Err() != nil {
			return FailedScore
		}
		return history.evaluate(ctx, config, Denormalize(params, x), run)
	}

	start := make([]float64, len(params))
	for i := range start {
		start[i] = 0.5
	}
	logger.Infof("Evolving %d parameters over %d steps of %d points\n", len(params), steps, points)
	best, score, err := oes.Minimize(evaluate, start)
	if err != nil {
		return history.trials, err
	}
	if err := ctx.Err(); err != nil {
		return history.trials, err
	}
	logger.Infof("Best sharpe %.4f at %v\n", -score, Denormalize(params, best))
	return history.trials, nil
}

// Denormalize maps x, one value per parameter on [0, 1], onto the parameter
// ranges. Values outside [0, 1] are clamped.
func Denormalize(params []models.SearchParameter, x []float64) map[string]float64 {
	values := make(map[string]float64, len(params))
	for i, p := range params {
		unit := math.Max(0, math.Min(x[i], 1))
		values[p.Name] = p.Snap(p.Min + unit*(p.Max-p.Min))
	}
	return values
}
