package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/tantralabs/optionlab/models"
)

// dailyBar is one row of a bar csv file:
//
//	date,open,high,low,close,volume
//	2023-01-03,100.0,101.5,99.2,101.1,1200000
type dailyBar struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// CSVProvider reads <SYMBOL>.csv files from Dir.
type CSVProvider struct {
	Dir string
}

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

func (p *CSVProvider) path(symbol string) string {
	return filepath.Join(p.Dir, strings.ToUpper(symbol)+".csv")
}

func (p *CSVProvider) GetBars(ctx context.Context, symbol string, start time.Time, end time.Time) ([]*models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(p.path(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no csv for %s in %s", models.ErrMissingMarketData, symbol, p.Dir)
		}
		return nil, err
	}
	defer file.Close()

	rows := []*dailyBar{}
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file.Name(), err)
	}

	from := models.TruncateDay(start)
	to := models.TruncateDay(end)
	bars := make([]*models.Bar, 0, len(rows))
	for _, row := range rows {
		day, err := time.Parse(models.DateLayout, strings.TrimSpace(row.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q in %s", models.ErrInvalidArgument, row.Date, file.Name())
		}
		if day.Before(from) || day.After(to) {
			continue
		}
		bars = append(bars, models.NewBar(day, row.Open, row.High, row.Low, row.Close, row.Volume))
	}
	return NewHistory(symbol, bars).Bars(), nil
}

// WriteBars saves bars as <SYMBOL>.csv in Dir, replacing any existing file.
func (p *CSVProvider) WriteBars(symbol string, bars []*models.Bar) error {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return err
	}
	rows := make([]*dailyBar, len(bars))
	for i, bar := range bars {
		rows[i] = &dailyBar{
			Date:   bar.Day().Format(models.DateLayout),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
	}
	file, err := os.Create(p.path(symbol))
	if err != nil {
		return err
	}
	defer file.Close()
	return gocsv.MarshalFile(&rows, file)
}
