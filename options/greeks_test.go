package options

import (
	"testing"

	"github.com/tantralabs/optionlab/models"
)

func CheckGreeks(t *testing.T, greeks Greeks, delta, gamma, theta, vega, rho float64) {
	t.Helper()
	checkClose(t, "Delta", greeks.Delta, delta, 1e-4)
	checkClose(t, "Gamma", greeks.Gamma, gamma, 1e-6)
	checkClose(t, "Theta", greeks.Theta, theta, 1e-4)
	checkClose(t, "Vega", greeks.Vega, vega, 1e-4)
	checkClose(t, "Rho", greeks.Rho, rho, 1e-4)
}

func TestATMCallGreeks(t *testing.T) {
	engine := NewTheoEngine()
	greeks, err := engine.Greeks(models.Call, 100, 100, 1, 0.05, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	CheckGreeks(t, greeks, 0.6368307, 0.0187620, -6.4140275, 37.5240347, 53.2324815)
}

func TestATMPutGreeks(t *testing.T) {
	engine := NewTheoEngine()
	greeks, err := engine.Greeks(models.Put, 100, 100, 1, 0.05, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	CheckGreeks(t, greeks, 0.6368307-1, 0.0187620, -1.6578804, 37.5240347, -41.8904609)
}

func TestIndividualGreeksMatchCombined(t *testing.T) {
	engine := NewTheoEngine()
	for _, kind := range []models.InstrumentKind{models.Call, models.Put} {
		greeks, err := engine.Greeks(kind, 105, 95, 0.3, 0.03, 0.45)
		if err != nil {
			t.Fatal(err)
		}
		delta, _ := engine.Delta(kind, 105, 95, 0.3, 0.03, 0.45)
		gamma, _ := engine.Gamma(kind, 105, 95, 0.3, 0.03, 0.45)
		theta, _ := engine.Theta(kind, 105, 95, 0.3, 0.03, 0.45)
		vega, _ := engine.Vega(kind, 105, 95, 0.3, 0.03, 0.45)
		rho, _ := engine.Rho(kind, 105, 95, 0.3, 0.03, 0.45)
		CheckGreeks(t, greeks, delta, gamma, theta, vega, rho)
	}
}

func TestGreeksAtExpiry(t *testing.T) {
	engine := NewTheoEngine()
	tests := []struct {
		name   string
		kind   models.InstrumentKind
		uPrice float64
		delta  float64
	}{
		{"itm call", models.Call, 110, 1},
		{"otm call", models.Call, 90, 0},
		{"atm call", models.Call, 100, 0},
		{"itm put", models.Put, 90, -1},
		{"otm put", models.Put, 110, 0},
		{"atm put", models.Put, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			greeks, err := engine.Greeks(tt.kind, tt.uPrice, 100, 0, 0.05, 0.2)
			if err != nil {
				t.Fatal(err)
			}
			if greeks != (Greeks{Delta: tt.delta}) {
				t.Errorf("Bad greeks at expiry: %+v, expected delta %v and zero elsewhere\n", greeks, tt.delta)
			}
			delta, _ := engine.Delta(tt.kind, tt.uPrice, 100, 0, 0.05, 0.2)
			if delta != tt.delta {
				t.Errorf("Bad Delta: %v, expected %v\n", delta, tt.delta)
			}
		})
	}
}

func TestGreeksMap(t *testing.T) {
	greeks := Greeks{Delta: 0.5, Gamma: 0.01, Theta: -3, Vega: 20, Rho: 8}
	m := greeks.Map()
	expected := map[string]float64{"delta": 0.5, "gamma": 0.01, "theta": -3, "vega": 20, "rho": 8}
	if len(m) != len(expected) {
		t.Fatalf("Bad greeks map size: %v\n", m)
	}
	for name, value := range expected {
		if m[name] != value {
			t.Errorf("Bad %s: %v, expected %v\n", name, m[name], value)
		}
	}
}

func TestGreeksAdd(t *testing.T) {
	var total Greeks
	total.Add(Greeks{Delta: 0.5, Vega: 10}, -2)
	total.Add(Greeks{Delta: 1}, 100)
	if total.Delta != 99 || total.Vega != -20 {
		t.Errorf("Bad aggregate greeks: %+v\n", total)
	}
}
