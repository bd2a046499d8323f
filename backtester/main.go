// Command backtester runs option strategy backtests from a config file.
//
//	backtester -config backtest.yaml
//	backtester -config backtest.yaml -mode sweep -param wing_width=5:15:5 -param expiration_days=14:42:14
//	backtester -config backtest.yaml -mode sweep -search tpe -trials 50 -param target_delta=-0.2:0.2:0.05
//	backtester -config backtest.yaml -mode serve
//	backtester -config backtest.yaml -mode generate
//	backtester -config backtest.yaml -mode iv -quotes quotes.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gocarina/gocsv"
	"github.com/jmoiron/sqlx"
	"github.com/tantralabs/optionlab"
	"github.com/tantralabs/optionlab/data"
	"github.com/tantralabs/optionlab/database"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/optimize"
	"github.com/tantralabs/optionlab/options"
	"github.com/tantralabs/optionlab/server"
	"github.com/tantralabs/optionlab/settings"
	"github.com/tantralabs/optionlab/strategies"
)

func main() {
	configPath := flag.String("config", "", "path to a json or yaml config, defaults plus OPTIONLAB_ env vars when empty")
	mode := flag.String("mode", "run", "run, sweep, serve, generate or iv")
	workers := flag.Int("workers", 4, "concurrent backtests in sweep mode")
	search := flag.String("search", "grid", "sweep search: grid, tpe or evolve")
	trials := flag.Int("trials", 50, "backtests to run in tpe and evolve searches")
	top := flag.Int("top", 5, "trials to log in sweep mode")
	quotes := flag.String("quotes", "", "csv of option quotes in iv mode")
	var params searchFlags
	flag.Var(&params, "param", "sweep dimension as name=min:max:step, repeatable")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweep := sweepOptions{search: *search, params: params, workers: *workers, trials: *trials, top: *top}
	if err := run(ctx, *configPath, *mode, sweep, *quotes); err != nil {
		logger.Errorf("%v\n", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(path string) (settings.Config, error) {
	if path != "" {
		return settings.LoadConfig(path)
	}
	config := settings.Default()
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return config, err
	}
	return config, config.Validate()
}

type sweepOptions struct {
	search  string
	params  searchFlags
	workers int
	trials  int
	top     int
}

func run(ctx context.Context, configPath string, mode string, sweep sweepOptions, quotes string) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := settings.LoadSecret(&config, nil); err != nil {
		return err
	}
	logger.SetLevel(config.LogLevel)

	var db *sqlx.DB
	if config.Database.Enabled() {
		if db, err = database.Connect(config.Database); err != nil {
			return err
		}
		defer db.Close()
	}

	provider, closeProvider, err := newProvider(ctx, config, db)
	if err != nil {
		return err
	}
	defer closeProvider()
	theo := options.NewTheoEngine()

	switch mode {
	case "run":
		return runBacktest(ctx, theo, provider, config, db)
	case "sweep":
		return runSweep(ctx, theo, provider, config, sweep)
	case "serve":
		return serve(ctx, theo, provider, config, db)
	case "generate":
		return generate(ctx, config)
	case "iv":
		return solveQuotes(ctx, theo, config, db, quotes)
	default:
		return fmt.Errorf("%w: unknown mode %q", models.ErrInvalidArgument, mode)
	}
}

// newProvider picks the bar source named in the config. The returned func
// releases anything the provider opened.
func newProvider(ctx context.Context, config settings.Config, db *sqlx.DB) (data.Provider, func(), error) {
	switch config.Data.Source {
	case "csv":
		logger.Infof("Reading bars from %s\n", config.Data.Dir)
		return data.NewCSVProvider(config.Data.Dir), func() {}, nil
	case "postgres":
		if db == nil {
			return nil, nil, fmt.Errorf("%w: postgres data source needs a database host", models.ErrInvalidArgument)
		}
		logger.Infof("Reading %s bars from postgres\n", config.Data.Exchange)
		return data.NewPostgresProvider(db, config.Data.Exchange), func() {}, nil
	case "pgx":
		if !config.Database.Enabled() {
			return nil, nil, fmt.Errorf("%w: pgx data source needs a database host", models.ErrInvalidArgument)
		}
		pool, err := data.ConnectPool(ctx, config.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("Reading %s bars from postgres through a pgx pool\n", config.Data.Exchange)
		return data.NewPoolProvider(pool, config.Data.Exchange), pool.Close, nil
	default:
		logger.Infof("Using synthetic bars with seed %d\n", config.Data.Seed)
		return data.NewSyntheticProvider(config.Data.Seed), func() {}, nil
	}
}

func newStore(ctx context.Context, db *sqlx.DB) (database.ResultStore, error) {
	if db == nil {
		return database.NewMemoryStore(), nil
	}
	store := database.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating: %w", err)
	}
	return store, nil
}

func runBacktest(ctx context.Context, theo *options.TheoEngine, provider data.Provider, config settings.Config, db *sqlx.DB) error {
	strategy, err := strategies.New(config.Strategy, theo, config)
	if err != nil {
		return err
	}
	result, err := optionlab.NewBacktest(theo, provider, config).Run(ctx, strategy)
	if err != nil {
		return err
	}
	optionlab.LogStats(result)

	if config.OutputDir != "" {
		if err := optionlab.ExportCSV(config.OutputDir, result); err != nil {
			return err
		}
		logger.Infof("Wrote %s\n", config.OutputDir)
	}
	if config.Influx.Enabled() {
		if err := optionlab.LogCloudBacktest(config.Influx, result); err != nil {
			return err
		}
	}
	if db != nil {
		store, err := newStore(ctx, db)
		if err != nil {
			return err
		}
		if err := store.SaveResult(ctx, result); err != nil {
			return err
		}
		logger.Infof("Saved run %s\n", result.ID)
	}
	return nil
}

func runSweep(ctx context.Context, theo *options.TheoEngine, provider data.Provider, config settings.Config, sweep sweepOptions) error {
	if len(sweep.params) == 0 {
		return fmt.Errorf("%w: sweep mode needs at least one -param", models.ErrInvalidArgument)
	}
	runner := optimize.BacktestRunner(theo, provider)
	params := []models.SearchParameter(sweep.params)

	var trials []optimize.Trial
	var err error
	switch sweep.search {
	case "grid":
		trials, err = optimize.Sweep(ctx, config, params, sweep.workers, runner)
	case "tpe":
		trials, err = optimize.TPE(ctx, config, params, sweep.trials, sweep.workers, runner)
	case "evolve":
		points := uint(4)
		steps := uint(sweep.trials) / points
		if steps == 0 {
			steps = 1
		}
		trials, err = optimize.Evolve(ctx, config, params, points, steps, config.Data.Seed, runner)
	default:
		err = fmt.Errorf("%w: unknown search %q", models.ErrInvalidArgument, sweep.search)
	}
	if err != nil {
		return err
	}

	best := optimize.Best(trials)
	logger.Infof("%d of %d trials succeeded\n", len(best), len(trials))
	for i, trial := range best {
		if i == sweep.top {
			break
		}
		stats := trial.Result.Stats
		logger.Infof("#%d %v sharpe %.3f return %.4f drawdown %.4f trades %d\n", i+1, trial.Values,
			stats.SharpeRatio, stats.TotalReturn, stats.MaxDrawdown, stats.TotalTrades)
	}
	if len(best) > 0 && config.OutputDir != "" {
		return optionlab.ExportCSV(config.OutputDir, best[0].Result)
	}
	return nil
}

func serve(ctx context.Context, theo *options.TheoEngine, provider data.Provider, config settings.Config, db *sqlx.DB) error {
	store, err := newStore(ctx, db)
	if err != nil {
		return err
	}
	s := server.NewServer(config.ServerAddr, server.NewHandler(theo, provider, config, store))

	errs := make(chan error, 1)
	go func() {
		errs <- s.Start()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		logger.Infof("Shutting down\n")
		return s.Shutdown()
	}
}

// generate writes synthetic bars for the configured symbol, covering the
// volatility lookback, as csv into the data dir.
func generate(ctx context.Context, config settings.Config) error {
	start, err := config.Start()
	if err != nil {
		return err
	}
	end, err := config.End()
	if err != nil {
		return err
	}
	start = start.AddDate(0, 0, -2*config.VolatilityWindow)
	bars, err := data.NewSyntheticProvider(config.Data.Seed).GetBars(ctx, config.Symbol, start, end)
	if err != nil {
		return err
	}
	if err := data.NewCSVProvider(config.Data.Dir).WriteBars(config.Symbol, bars); err != nil {
		return err
	}
	logger.Infof("Wrote %d %s bars to %s\n", len(bars), config.Symbol, config.Data.Dir)
	return nil
}

// solveQuotes reads option quotes, solves their implied volatility and writes
// them to ivs.csv in the output dir and to postgres when configured.
func solveQuotes(ctx context.Context, theo *options.TheoEngine, config settings.Config, db *sqlx.DB, path string) error {
	if path == "" {
		return fmt.Errorf("%w: iv mode needs -quotes", models.ErrInvalidArgument)
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var quotes []models.ImpliedVol
	if err := gocsv.UnmarshalFile(file, &quotes); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := theo.SolveQuotes(quotes, config.RiskFreeRate); err != nil {
		return err
	}
	solved := 0
	for _, q := range quotes {
		if q.Solved {
			solved++
		}
	}
	logger.Infof("Solved %d of %d quotes\n", solved, len(quotes))

	if config.OutputDir != "" {
		if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
			return err
		}
		out, err := os.Create(filepath.Join(config.OutputDir, "ivs.csv"))
		if err != nil {
			return err
		}
		defer out.Close()
		if err := gocsv.MarshalFile(&quotes, out); err != nil {
			return err
		}
	}
	if db != nil {
		store := database.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		return store.SaveImpliedVols(ctx, quotes)
	}
	return nil
}
