package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tantralabs/optionlab/data"
	"github.com/tantralabs/optionlab/models"
)

func writeFile(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
strategy: iron_condor
symbol: QQQ
start_date: "2022-01-03"
end_date: "2022-06-30"
params:
  wing_width: 5
data:
  source: csv
  dir: /tmp/bars
`)
	config, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.Strategy != "iron_condor" || config.Symbol != "QQQ" || config.Data.Source != "csv" || config.Data.Dir != "/tmp/bars" {
		t.Errorf("file values not loaded: %+v", config)
	}
	if config.Params.WingWidth != 5 {
		t.Errorf("expected wing width 5, got %f", config.Params.WingWidth)
	}
	if config.InitialCapital != 100000 || config.Commission != 1 || config.RiskFreeRate != 0.02 || config.VolatilityWindow != 30 {
		t.Errorf("defaults lost: %+v", config)
	}
	if config.Params.RebalanceThreshold != 0.1 || config.Params.SlowPeriod != 30 {
		t.Errorf("param defaults lost: %+v", config.Params)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"symbol": "IWM", "initial_capital": 5000, "commission": 0.65}`)
	config, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.Symbol != "IWM" || config.InitialCapital != 5000 || config.Commission != 0.65 {
		t.Errorf("unexpected config %+v", config)
	}
}

func TestLoadUnknownExtension(t *testing.T) {
	path := writeFile(t, "config.toml", `symbol = "SPY"`)
	if _, err := LoadConfig(path); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPTIONLAB_SYMBOL", "TSLA")
	t.Setenv("OPTIONLAB_COMMISSION", "0.5")
	t.Setenv("OPTIONLAB_VOLATILITY_WINDOW", "20")
	t.Setenv("OPTIONLAB_DB_PASSWORD", "hunter2")
	t.Setenv("OPTIONLAB_DATA_SEED", "7")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if config.Symbol != "TSLA" || config.Commission != 0.5 || config.VolatilityWindow != 20 {
		t.Errorf("overrides not applied: %+v", config)
	}
	if config.Database.Password != "hunter2" || config.Data.Seed != 7 {
		t.Errorf("nested overrides not applied: %+v %+v", config.Database, config.Data)
	}
}

func TestEnvOverrideNotANumber(t *testing.T) {
	config := Default()
	lookup := func(name string) (string, bool) {
		if name == "OPTIONLAB_INITIAL_CAPITAL" {
			return "lots", true
		}
		return "", false
	}
	if err := config.ApplyEnv(lookup); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"bad start", func(c *Config) { c.StartDate = "01/01/2023" }},
		{"end before start", func(c *Config) { c.EndDate = "2022-12-31" }},
		{"no symbol", func(c *Config) { c.Symbol = "" }},
		{"no capital", func(c *Config) { c.InitialCapital = 0 }},
		{"negative commission", func(c *Config) { c.Commission = -1 }},
		{"short window", func(c *Config) { c.VolatilityWindow = 1 }},
		{"unknown source", func(c *Config) { c.Data.Source = "ftp" }},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(&config)
			if err := config.Validate(); !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestDefaultVolatility(t *testing.T) {
	config := Default()
	vol := data.DefaultVolatilityParams()
	if config.VolatilityWindow != vol.Window || config.DefaultVolatility != vol.Default || config.MinVolatility != vol.Min {
		t.Errorf("Defaults %d %v %v do not match %+v\n", config.VolatilityWindow, config.DefaultVolatility, config.MinVolatility, vol)
	}
}

func TestDSN(t *testing.T) {
	db := Default().Database
	db.Host = "localhost"
	db.Password = "pw"
	want := "host=localhost port=5432 user=optionlab password=pw dbname=optionlab sslmode=disable"
	if got := db.DSN(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if !db.Enabled() || (DatabaseConfig{}).Enabled() {
		t.Error("Enabled should follow the host")
	}
}
