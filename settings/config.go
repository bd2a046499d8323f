// Package settings loads backtest configuration from json or yaml files,
// OPTIONLAB_ environment variables and AWS secrets.
package settings

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tantralabs/optionlab/data"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/utils"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "OPTIONLAB_"

// Params are the tunable parameters of the built in strategies. Each
// strategy reads the fields it needs.
type Params struct {
	StrikeSelection    string  `json:"strike_selection" yaml:"strike_selection"`       // covered call: 30_delta, 5_percent_otm or 10_percent_otm
	ShareQuantity      int     `json:"share_quantity" yaml:"share_quantity"`           // covered call
	SignalInterval     int     `json:"signal_interval" yaml:"signal_interval"`         // days between covered call or iron condor entries, 0 uses the strategy default
	ExpirationDays     int     `json:"expiration_days" yaml:"expiration_days"`         // 0 uses the strategy default
	WingWidth          float64 `json:"wing_width" yaml:"wing_width"`                   // iron condor
	PutStrikePct       float64 `json:"put_strike_pct" yaml:"put_strike_pct"`           // iron condor short put, as a fraction of spot
	CallStrikePct      float64 `json:"call_strike_pct" yaml:"call_strike_pct"`         // iron condor short call
	TargetDelta        float64 `json:"target_delta" yaml:"target_delta"`               // delta neutral
	RebalanceThreshold float64 `json:"rebalance_threshold" yaml:"rebalance_threshold"` // delta neutral
	FastPeriod         int     `json:"fast_period" yaml:"fast_period"`                 // directional
	SlowPeriod         int     `json:"slow_period" yaml:"slow_period"`                 // directional
	ContractQuantity   int     `json:"contract_quantity" yaml:"contract_quantity"`     // iron condor, delta neutral and directional
	Rate               float64 `json:"rate" yaml:"rate"`                               // rate used to price new options
}

type DataConfig struct {
	Source   string `json:"source" yaml:"source"` // synthetic, csv, postgres (sqlx) or pgx (pgx pool)
	Dir      string `json:"dir" yaml:"dir"`
	Seed     int64  `json:"seed" yaml:"seed"`
	Exchange string `json:"exchange" yaml:"exchange"`
}

type DatabaseConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Name     string `json:"name" yaml:"name"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
}

// DSN is the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type InfluxConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

func (i InfluxConfig) Enabled() bool {
	return i.Addr != ""
}

type Config struct {
	Strategy          string  `json:"strategy" yaml:"strategy"`
	Symbol            string  `json:"symbol" yaml:"symbol"`
	StartDate         string  `json:"start_date" yaml:"start_date"`
	EndDate           string  `json:"end_date" yaml:"end_date"`
	InitialCapital    float64 `json:"initial_capital" yaml:"initial_capital"`
	Commission        float64 `json:"commission" yaml:"commission"`
	RiskFreeRate      float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	DefaultVolatility float64 `json:"default_volatility" yaml:"default_volatility"`
	MinVolatility     float64 `json:"min_volatility" yaml:"min_volatility"`
	VolatilityWindow  int     `json:"volatility_window" yaml:"volatility_window"`
	LogLevel          string  `json:"log_level" yaml:"log_level"`
	OutputDir         string  `json:"output_dir" yaml:"output_dir"` // csv exports, skipped when empty
	ServerAddr        string  `json:"server_addr" yaml:"server_addr"`
	SecretName        string  `json:"secret_name" yaml:"secret_name"`
	SecretRegion      string  `json:"secret_region" yaml:"secret_region"`

	Params   Params         `json:"params" yaml:"params"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Influx   InfluxConfig   `json:"influx" yaml:"influx"`
}

func Default() Config {
	vol := data.DefaultVolatilityParams()
	return Config{
		Strategy:          "covered_call",
		Symbol:            "SPY",
		StartDate:         "2023-01-01",
		EndDate:           "2023-12-31",
		InitialCapital:    100000,
		Commission:        1.0,
		RiskFreeRate:      0.02,
		DefaultVolatility: vol.Default,
		MinVolatility:     vol.Min,
		VolatilityWindow:  vol.Window,
		LogLevel:          "info",
		ServerAddr:        ":8080",
		SecretRegion:      "us-west-1",
		Params: Params{
			StrikeSelection:    "30_delta",
			ShareQuantity:      100,
			WingWidth:          10,
			PutStrikePct:       0.95,
			CallStrikePct:      1.05,
			TargetDelta:        0,
			RebalanceThreshold: 0.1,
			FastPeriod:         10,
			SlowPeriod:         30,
			ContractQuantity:   1,
			Rate:               0.02,
		},
		Data: DataConfig{
			Source:   "synthetic",
			Dir:      "data",
			Seed:     42,
			Exchange: "nasdaq",
		},
		Database: DatabaseConfig{
			Port:    5432,
			User:    "optionlab",
			Name:    "optionlab",
			SSLMode: "disable",
		},
		Influx: InfluxConfig{
			Database: "backtests",
		},
	}
}

// LoadConfig reads path over the defaults, picking yaml or json by extension,
// then applies environment overrides. An empty path loads only the defaults
// and the environment.
func LoadConfig(path string) (Config, error) {
	config := Default()
	if path != "" {
		file, err := ioutil.ReadFile(path)
		if err != nil {
			return config, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(file, &config)
		case ".json":
			err = json.Unmarshal(file, &config)
		default:
			return config, fmt.Errorf("%w: unknown config format %q", models.ErrInvalidArgument, filepath.Ext(path))
		}
		if err != nil {
			return config, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return config, err
	}
	return config, config.Validate()
}

// ApplyEnv overrides fields from OPTIONLAB_ variables, e.g. OPTIONLAB_SYMBOL
// or OPTIONLAB_DB_PASSWORD.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STRATEGY":         &c.Strategy,
		"SYMBOL":           &c.Symbol,
		"START_DATE":       &c.StartDate,
		"END_DATE":         &c.EndDate,
		"LOG_LEVEL":        &c.LogLevel,
		"OUTPUT_DIR":       &c.OutputDir,
		"SERVER_ADDR":      &c.ServerAddr,
		"SECRET_NAME":      &c.SecretName,
		"SECRET_REGION":    &c.SecretRegion,
		"STRIKE_SELECTION": &c.Params.StrikeSelection,
		"DATA_SOURCE":      &c.Data.Source,
		"DATA_DIR":         &c.Data.Dir,
		"DATA_EXCHANGE":    &c.Data.Exchange,
		"DB_HOST":          &c.Database.Host,
		"DB_USER":          &c.Database.User,
		"DB_PASSWORD":      &c.Database.Password,
		"DB_NAME":          &c.Database.Name,
		"DB_SSL_MODE":      &c.Database.SSLMode,
		"INFLUX_ADDR":      &c.Influx.Addr,
		"INFLUX_USERNAME":  &c.Influx.Username,
		"INFLUX_PASSWORD":  &c.Influx.Password,
		"INFLUX_DATABASE":  &c.Influx.Database,
	}
	for name, field := range strs {
		if value, ok := lookup(EnvPrefix + name); ok {
			*field = value
		}
	}

	floats := map[string]*float64{
		"INITIAL_CAPITAL":    &c.InitialCapital,
		"COMMISSION":         &c.Commission,
		"RISK_FREE_RATE":     &c.RiskFreeRate,
		"DEFAULT_VOLATILITY": &c.DefaultVolatility,
		"MIN_VOLATILITY":     &c.MinVolatility,
	}
	for name, field := range floats {
		if value, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q is not a number", models.ErrInvalidArgument, EnvPrefix, name, value)
			}
			*field = f
		}
	}

	ints := map[string]*int{
		"VOLATILITY_WINDOW": &c.VolatilityWindow,
		"DB_PORT":           &c.Database.Port,
	}
	for name, field := range ints {
		if value, ok := lookup(EnvPrefix + name); ok {
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q is not an integer", models.ErrInvalidArgument, EnvPrefix, name, value)
			}
			*field = i
		}
	}
	if value, ok := lookup(EnvPrefix + "DATA_SEED"); ok {
		seed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %sDATA_SEED=%q is not an integer", models.ErrInvalidArgument, EnvPrefix, value)
		}
		c.Data.Seed = seed
	}
	return nil
}

func (c Config) Start() (time.Time, error) {
	return utils.ParseDate(c.StartDate)
}

func (c Config) End() (time.Time, error) {
	return utils.ParseDate(c.EndDate)
}

func (c Config) Validate() error {
	start, err := c.Start()
	if err != nil {
		return err
	}
	end, err := c.End()
	if err != nil {
		return err
	}
	switch {
	case c.Symbol == "":
		return fmt.Errorf("%w: symbol is required", models.ErrInvalidArgument)
	case end.Before(start):
		return fmt.Errorf("%w: end date %s is before start date %s", models.ErrInvalidArgument, c.EndDate, c.StartDate)
	case c.InitialCapital <= 0:
		return fmt.Errorf("%w: initial capital must be positive", models.ErrInvalidArgument)
	case c.Commission < 0:
		return fmt.Errorf("%w: commission must not be negative", models.ErrInvalidArgument)
	case c.VolatilityWindow < 2:
		return fmt.Errorf("%w: volatility window must be at least 2", models.ErrInvalidArgument)
	case c.DefaultVolatility <= 0 || c.MinVolatility < 0:
		return fmt.Errorf("%w: volatility bounds must be positive", models.ErrInvalidArgument)
	}
	switch c.Data.Source {
	case "synthetic", "csv", "postgres", "pgx":
	default:
		return fmt.Errorf("%w: unknown data source %q", models.ErrInvalidArgument, c.Data.Source)
	}
	return nil
}
