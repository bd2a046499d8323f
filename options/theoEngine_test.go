package options

import (
	"errors"
	"math"
	"testing"

	"github.com/tantralabs/optionlab/models"
)

func checkClose(t *testing.T, name string, got, expected, tolerance float64) {
	t.Helper()
	if math.Abs(got-expected) > tolerance {
		t.Errorf("Bad %s: %v, expected %v (tolerance %v)\n", name, got, expected, tolerance)
	}
}

func TestATMCall(t *testing.T) {
	engine := NewTheoEngine()
	call, err := engine.Price(models.Call, 100, 100, 0.25, 0.05, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "Theo", call, 4.76, 0.5)
	checkClose(t, "Theo", call, 4.614997, 1e-5)

	put, err := engine.Price(models.Put, 100, 100, 0.25, 0.05, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if put <= 0 || put >= 100 {
		t.Errorf("Bad put theo: %v, expected between 0 and strike\n", put)
	}
}

func TestExpiredOption(t *testing.T) {
	engine := NewTheoEngine()
	call, err := engine.Price(models.Call, 110, 100, 0, 0.05, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if call != 10.0 {
		t.Errorf("Bad expired call theo: %v, expected 10\n", call)
	}
	put, err := engine.Price(models.Put, 110, 100, 0, 0.05, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if put != 0.0 {
		t.Errorf("Bad expired put theo: %v, expected 0\n", put)
	}
	// volatility is ignored at expiry, even when it could not be used in the formula
	put, err = engine.Price(models.Put, 90, 100, -0.1, 0.05, 0)
	if err != nil {
		t.Fatal(err)
	}
	if put != 10.0 {
		t.Errorf("Bad expired put theo: %v, expected 10\n", put)
	}
}

func TestPutCallParity(t *testing.T) {
	engine := NewTheoEngine()
	tests := []struct {
		name                     string
		uPrice, strike, timeLeft float64
		r, volatility            float64
	}{
		{"atm", 100, 100, 0.25, 0.05, 0.2},
		{"itm call", 120, 100, 0.5, 0.03, 0.35},
		{"otm call", 80, 100, 1, 0.01, 0.6},
		{"long dated", 50, 45, 3, 0.04, 0.25},
		{"short dated", 400, 410, 7. / 365, 0.02, 0.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := engine.Price(models.Call, tt.uPrice, tt.strike, tt.timeLeft, tt.r, tt.volatility)
			if err != nil {
				t.Fatal(err)
			}
			put, err := engine.Price(models.Put, tt.uPrice, tt.strike, tt.timeLeft, tt.r, tt.volatility)
			if err != nil {
				t.Fatal(err)
			}
			expected := tt.uPrice - tt.strike*math.Exp(-tt.r*tt.timeLeft)
			checkClose(t, "parity", call-put, expected, 1e-2)
		})
	}
}

func TestBoundaryConvergence(t *testing.T) {
	engine := NewTheoEngine()
	for _, uPrice := range []float64{80, 100, 120} {
		call, _ := engine.Price(models.Call, uPrice, 100, 0, 0.05, 0.3)
		put, _ := engine.Price(models.Put, uPrice, 100, 0, 0.05, 0.3)
		if call != math.Max(uPrice-100, 0) {
			t.Errorf("Bad call at expiry for %v: %v\n", uPrice, call)
		}
		if put != math.Max(100-uPrice, 0) {
			t.Errorf("Bad put at expiry for %v: %v\n", uPrice, put)
		}
		nearCall, _ := engine.Price(models.Call, uPrice, 100, 1e-8, 0.05, 0.3)
		nearPut, _ := engine.Price(models.Put, uPrice, 100, 1e-8, 0.05, 0.3)
		checkClose(t, "near expiry call", nearCall, call, 1e-2)
		checkClose(t, "near expiry put", nearPut, put, 1e-2)
	}
}

func TestInvalidPricingInputs(t *testing.T) {
	engine := NewTheoEngine()
	nan, inf := math.NaN(), math.Inf(1)
	tests := []struct {
		name           string
		kind           models.InstrumentKind
		uPrice, strike float64
		timeLeft, r    float64
		volatility     float64
	}{
		{"zero spot", models.Call, 0, 100, 0.5, 0.02, 0.2},
		{"negative strike", models.Put, 100, -5, 0.5, 0.02, 0.2},
		{"stock kind", models.Stock, 100, 100, 0.5, 0.02, 0.2},
		{"unknown kind", models.InstrumentKind("straddle"), 100, 100, 0.5, 0.02, 0.2},
		{"zero volatility", models.Call, 100, 100, 0.5, 0.02, 0},
		{"nan spot", models.Call, nan, 100, 0.5, 0.02, 0.2},
		{"infinite spot", models.Call, inf, 100, 0.5, 0.02, 0.2},
		{"nan strike", models.Put, 100, nan, 0.5, 0.02, 0.2},
		{"infinite strike", models.Put, 100, inf, 0.5, 0.02, 0.2},
		{"nan volatility", models.Put, 100, 100, 0.5, 0.02, nan},
		{"infinite volatility", models.Call, 100, 100, 0.5, 0.02, inf},
		{"nan time", models.Call, 100, 100, nan, 0.02, 0.2},
		{"infinite time", models.Call, 100, 100, inf, 0.02, 0.2},
		{"nan rate", models.Call, 100, 100, 0.5, nan, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Price(tt.kind, tt.uPrice, tt.strike, tt.timeLeft, tt.r, tt.volatility)
			if !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v\n", err)
			}
			_, err = engine.Greeks(tt.kind, tt.uPrice, tt.strike, tt.timeLeft, tt.r, tt.volatility)
			if !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument from Greeks, got %v\n", err)
			}
		})
	}
}

func TestExpiredIgnoresVolatility(t *testing.T) {
	engine := NewTheoEngine()
	value, err := engine.Price(models.Call, 110, 100, 0, math.NaN(), math.NaN())
	if err != nil {
		t.Fatal(err)
	}
	if value != 10 {
		t.Errorf("Bad expired value: %v, expected 10\n", value)
	}
}

func TestIntrinsic(t *testing.T) {
	engine := NewTheoEngine()
	value, err := engine.Intrinsic(models.Put, 95, 100)
	if err != nil {
		t.Fatal(err)
	}
	if value != 5 {
		t.Errorf("Bad intrinsic: %v, expected 5\n", value)
	}
	if _, err := engine.Intrinsic(models.Stock, 95, 100); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v\n", err)
	}
}
