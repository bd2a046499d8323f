package options

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/tantralabs/optionlab/models"
)

func TestImpliedVolRoundTrip(t *testing.T) {
	engine := NewTheoEngine()
	for _, kind := range []models.InstrumentKind{models.Call, models.Put} {
		for _, strike := range []float64{95, 100, 105} {
			for _, volatility := range []float64{0.06, 0.1, 0.2, 0.35, 0.5, 0.75, 0.99} {
				t.Run(fmt.Sprintf("%s-%v-%v", kind, strike, volatility), func(t *testing.T) {
					price, err := engine.Price(kind, 100, strike, 0.5, 0.02, volatility)
					if err != nil {
						t.Fatal(err)
					}
					iv, err := engine.ImpliedVol(kind, price, 100, strike, 0.5, 0.02)
					if err != nil {
						t.Fatal(err)
					}
					checkClose(t, "IV", iv, volatility, 1e-2)
				})
			}
		}
	}
}

func TestBisectionRoundTrip(t *testing.T) {
	engine := NewTheoEngine()
	price, _ := engine.Price(models.Call, 100, 110, 0.25, 0.02, 0.4)
	iv, err := engine.ImpliedVolBisection(models.Call, price, 100, 110, 0.25, 0.02)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "IV", iv, 0.4, 1e-3)
}

func TestImpliedVolOutOfBounds(t *testing.T) {
	engine := NewTheoEngine()
	// a call can never be worth more than the underlying
	_, err := engine.ImpliedVol(models.Call, 200, 100, 100, 0.5, 0.02)
	if !errors.Is(err, ErrNoSolution) {
		t.Errorf("Expected ErrNoSolution, got %v\n", err)
	}
	_, err = engine.ImpliedVolBisection(models.Put, 0, 100, 50, 0.5, 0.02)
	if err != nil {
		t.Errorf("Expected zero priced deep otm put to solve at the lower bound, got %v\n", err)
	}
}

func TestImpliedVolZeroVega(t *testing.T) {
	engine := NewTheoEngine()
	_, err := engine.ImpliedVolNewton(models.Call, 12, 110, 100, 0, 0.02)
	if !errors.Is(err, ErrNoSolution) {
		t.Errorf("Expected ErrNoSolution with no time left, got %v\n", err)
	}
	_, err = engine.ImpliedVol(models.Call, 12, 110, 100, 0, 0.02)
	if !errors.Is(err, ErrNoSolution) {
		t.Errorf("Expected ErrNoSolution from fallback, got %v\n", err)
	}
}

func TestImpliedVolInvalidInputs(t *testing.T) {
	engine := NewTheoEngine()
	nan, inf := math.NaN(), math.Inf(1)
	tests := []struct {
		name                        string
		kind                        models.InstrumentKind
		marketPrice, uPrice, strike float64
		timeLeft, r                 float64
	}{
		{"stock kind", models.Stock, 5, 100, 100, 0.5, 0.02},
		{"negative spot", models.Call, 5, -100, 100, 0.5, 0.02},
		{"nan market price", models.Call, nan, 100, 100, 0.25, 0.05},
		{"infinite market price", models.Put, inf, 100, 100, 0.25, 0.05},
		{"negative infinite market price", models.Put, -inf, 100, 100, 0.25, 0.05},
		{"nan spot", models.Call, 5, nan, 100, 0.25, 0.05},
		{"infinite strike", models.Call, 5, 100, inf, 0.25, 0.05},
		{"nan time", models.Call, 5, 100, 100, nan, 0.05},
		{"infinite rate", models.Call, 5, 100, 100, 0.25, inf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solvers := map[string]func(models.InstrumentKind, float64, float64, float64, float64, float64) (float64, error){
				"fallback":  engine.ImpliedVol,
				"newton":    engine.ImpliedVolNewton,
				"bisection": engine.ImpliedVolBisection,
			}
			for name, solve := range solvers {
				if _, err := solve(tt.kind, tt.marketPrice, tt.uPrice, tt.strike, tt.timeLeft, tt.r); !errors.Is(err, models.ErrInvalidArgument) {
					t.Errorf("Expected ErrInvalidArgument from %s, got %v\n", name, err)
				}
			}
		})
	}
}

func TestNewtonRecoversFromNegativeStep(t *testing.T) {
	engine := NewTheoEngine()
	// At 25% the first newton step overshoots below zero and is halved.
	price, _ := engine.Price(models.Call, 100, 100, 16, 0, 0.01)
	iv, err := engine.ImpliedVolNewton(models.Call, price, 100, 100, 16, 0)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "IV", iv, 0.01, 1e-6)
}

func TestBisectionReturnsMidpointWhenIterationsRunOut(t *testing.T) {
	engine := NewTheoEngine()
	price, _ := engine.Price(models.Call, 100, 110, 0.25, 0.02, 0.4)
	iv, err := engine.bisect(models.Call, price, 100, 110, 0.25, 0.02, 0)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "IV", iv, (MinVolatility+MaxVolatility)/2, 1e-12)

	// one step moves the upper bound to 2.5005
	iv, err = engine.bisect(models.Call, price, 100, 110, 0.25, 0.02, 1)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "IV", iv, (MinVolatility+(MinVolatility+MaxVolatility)/2)/2, 1e-12)
}

func TestSolveQuotes(t *testing.T) {
	engine := NewTheoEngine()
	price, _ := engine.Price(models.Put, 100, 95, 0.5, 0.02, 0.3)
	quotes := []models.ImpliedVol{
		{Symbol: "SPY", Kind: models.Put, IndexPrice: 100, Strike: 95, TimeToExpiry: 0.5, MarketPrice: price},
		{Symbol: "SPY", Kind: models.Call, IndexPrice: 100, Strike: 100, TimeToExpiry: 0.5, MarketPrice: 200},
	}
	if err := engine.SolveQuotes(quotes, 0.02); err != nil {
		t.Fatal(err)
	}
	if !quotes[0].Solved {
		t.Fatal("Expected the first quote to solve")
	}
	checkClose(t, "IV", quotes[0].IV, 0.3, 1e-3)
	if quotes[1].Solved || quotes[1].IV != 0 {
		t.Errorf("Expected an unsolved quote, got %+v\n", quotes[1])
	}

	bad := []models.ImpliedVol{{Symbol: "SPY", Kind: models.Stock, IndexPrice: 100, Strike: 100, TimeToExpiry: 0.5, MarketPrice: 5}}
	if err := engine.SolveQuotes(bad, 0.02); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v\n", err)
	}
	unpriced := []models.ImpliedVol{{Symbol: "SPY", Kind: models.Call, IndexPrice: 100, Strike: 100, TimeToExpiry: 0.25, MarketPrice: math.NaN()}}
	if err := engine.SolveQuotes(unpriced, 0.05); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a nan quote, got %v\n", err)
	}
	if unpriced[0].Solved {
		t.Error("Expected a nan quote to stay unsolved")
	}
}
