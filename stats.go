package optionlab

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/settings"
	"github.com/tantralabs/optionlab/utils"
	"gonum.org/v1/gonum/stat"
)

const (
	TradingDaysPerYear = 252
	SharpeRiskFreeRate = 0.02
)

// CalculateStats derives the performance metrics of a run. The curve metrics
// need at least two points and are zero otherwise; the trade metrics are
// computed whenever there are trades.
func CalculateStats(curve []models.EquityPoint, trades []models.Trade, initialCapital float64) models.Stats {
	var stats models.Stats
	if len(curve) >= 2 && initialCapital > 0 {
		getCurveStats(&stats, curve, initialCapital)
	}
	getTradeStats(&stats, trades)
	return stats
}

func getCurveStats(stats *models.Stats, curve []models.EquityPoint, initialCapital float64) {
	values := make([]float64, len(curve))
	for i, point := range curve {
		values[i] = point.Value
	}
	final := values[len(values)-1]

	stats.TotalReturn = final/initialCapital - 1
	if growth := 1 + stats.TotalReturn; growth > 0 {
		stats.AnnualReturn = math.Pow(growth, TradingDaysPerYear/float64(len(values))) - 1
	} else {
		stats.AnnualReturn = -1
	}

	returns := utils.PctChange(values)
	if len(returns) >= 2 {
		stats.Volatility = stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
	}
	if stats.Volatility > 0 && !math.IsNaN(stats.Volatility) {
		stats.SharpeRatio = (stats.AnnualReturn - SharpeRiskFreeRate) / stats.Volatility
	} else {
		stats.Volatility = 0
	}

	peak := values[0]
	for _, value := range values {
		peak = math.Max(peak, value)
		if peak <= 0 {
			continue
		}
		stats.MaxDrawdown = math.Min(stats.MaxDrawdown, (value-peak)/peak)
	}
}

func getTradeStats(stats *models.Stats, trades []models.Trade) {
	stats.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	pnls := make([]float64, len(trades))
	winStreak, lossStreak := 0, 0
	stats.BestTrade = math.Inf(-1)
	stats.WorstTrade = math.Inf(1)
	for i, trade := range trades {
		pnls[i] = trade.PnL
		stats.BestTrade = math.Max(stats.BestTrade, trade.PnL)
		stats.WorstTrade = math.Min(stats.WorstTrade, trade.PnL)
		if trade.PnL > 0 {
			stats.ProfitableTrades++
			winStreak++
			lossStreak = 0
		} else {
			lossStreak++
			winStreak = 0
		}
		if winStreak > stats.MaxConsecutiveWins {
			stats.MaxConsecutiveWins = winStreak
		}
		if lossStreak > stats.MaxConsecutiveLosses {
			stats.MaxConsecutiveLosses = lossStreak
		}
	}
	stats.WinRate = float64(stats.ProfitableTrades) / float64(len(trades))
	stats.AvgTradePnL = stat.Mean(pnls, nil)
}

// LogStats prints the result summary at info level.
func LogStats(result *models.Result) {
	kvStats := utils.StructToKeyValuePairs(result.Stats)
	logger.Infof("Backtest %s of %s on %s: initial %.2f final %.2f\nStats: %sParams: %s",
		result.ID, result.Strategy, result.Symbol, result.InitialCapital, result.FinalValue, kvStats, result.Params)
}

// ExportCSV writes balance.csv and trades.csv for a result into dir.
func ExportCSV(dir string, result *models.Result) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	history := make([]models.BalanceHistory, len(result.EquityCurve))
	for i, point := range result.EquityCurve {
		history[i] = point.Record()
	}
	if err := writeCSV(filepath.Join(dir, "balance.csv"), &history); err != nil {
		return err
	}

	records := make([]models.TradeRecord, len(result.Trades))
	for i, trade := range result.Trades {
		records[i] = trade.Record()
	}
	return writeCSV(filepath.Join(dir, "trades.csv"), &records)
}

func writeCSV(path string, rows interface{}) error {
	os.Remove(path)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, os.ModePerm)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := gocsv.MarshalFile(rows, file); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// BacktestPoints builds one "results" point per equity day, tagged with the
// run, strategy and symbol.
func BacktestPoints(database string, result *models.Result) (client.BatchPoints, error) {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  database,
		Precision: "s",
	})
	if err != nil {
		return nil, err
	}
	tags := map[string]string{
		"run_id":        result.ID,
		"strategy":      result.Strategy,
		"symbol":        result.Symbol,
		"sample_format": "daily",
	}
	last := result.InitialCapital
	for _, point := range result.EquityCurve {
		fields := map[string]interface{}{
			"value": point.Value,
			"cash":  point.Cash,
		}
		if last != 0 {
			fields["pct_change"] = utils.CalculateDifference(point.Value, last)
		}
		pt, err := client.NewPoint("results", tags, fields, point.Date)
		if err != nil {
			return nil, err
		}
		bp.AddPoint(pt)
		last = point.Value
	}
	return bp, nil
}

// LogCloudBacktest writes the equity curve of a result to influx.
func LogCloudBacktest(config settings.InfluxConfig, result *models.Result) error {
	influx, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return err
	}
	defer influx.Close()

	bp, err := BacktestPoints(config.Database, result)
	if err != nil {
		return err
	}
	if err := influx.Write(bp); err != nil {
		return fmt.Errorf("writing %d points to %s: %w", len(bp.Points()), config.Addr, err)
	}
	logger.Infof("Logged %d points for %s to influx\n", len(bp.Points()), result.ID)
	return nil
}
