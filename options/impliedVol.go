package options

import (
	"errors"
	"fmt"
	"math"

	"github.com/tantralabs/optionlab/models"
)

// ErrNoSolution means no volatility reproduces the market price. It is an
// expected outcome that callers branch on, not a failure of the inputs.
var ErrNoSolution = errors.New("no implied volatility solution")

const (
	InitialVolatility = 0.25
	MinVolatility     = 0.001
	MaxVolatility     = 5.0
	MaxIterations     = 100
	Tolerance         = 1e-6
)

// ImpliedVol tries Newton-Raphson first and falls back to bisection.
func (e *TheoEngine) ImpliedVol(kind models.InstrumentKind, marketPrice, uPrice, strike, timeLeft, r float64) (float64, error) {
	v, err := e.ImpliedVolNewton(kind, marketPrice, uPrice, strike, timeLeft, r)
	if !errors.Is(err, ErrNoSolution) {
		return v, err
	}
	return e.ImpliedVolBisection(kind, marketPrice, uPrice, strike, timeLeft, r)
}

// ImpliedVolNewton uses newton raphson starting at 25% volatility. A step
// that would make volatility non-positive halves it instead, which keeps the
// search alive but does not guarantee convergence.
func (e *TheoEngine) ImpliedVolNewton(kind models.InstrumentKind, marketPrice, uPrice, strike, timeLeft, r float64) (float64, error) {
	if err := validateQuote(kind, marketPrice, uPrice, strike, timeLeft, r); err != nil {
		return 0, err
	}
	v := InitialVolatility
	for i := 0; i < MaxIterations; i++ {
		theo := e.priceAt(kind, uPrice, strike, timeLeft, r, v)
		diff := theo - marketPrice
		if math.Abs(diff) < Tolerance {
			return v, nil
		}
		vega := 0.
		if timeLeft > 0 {
			vega = e.vega(uPrice, strike, timeLeft, r, v)
		}
		if vega == 0 {
			return 0, ErrNoSolution
		}
		next := v - diff/vega
		if next <= 0 {
			v = v / 2
		} else {
			v = next
		}
	}
	return 0, ErrNoSolution
}

// ImpliedVolBisection searches [MinVolatility, MaxVolatility]. A market price
// outside the prices at the bounds has no solution. If the iterations run out
// the midpoint of the last bracket is returned as a best effort.
func (e *TheoEngine) ImpliedVolBisection(kind models.InstrumentKind, marketPrice, uPrice, strike, timeLeft, r float64) (float64, error) {
	return e.bisect(kind, marketPrice, uPrice, strike, timeLeft, r, MaxIterations)
}

func (e *TheoEngine) bisect(kind models.InstrumentKind, marketPrice, uPrice, strike, timeLeft, r float64, iterations int) (float64, error) {
	if err := validateQuote(kind, marketPrice, uPrice, strike, timeLeft, r); err != nil {
		return 0, err
	}
	low, high := MinVolatility, MaxVolatility
	if marketPrice < e.priceAt(kind, uPrice, strike, timeLeft, r, low) ||
		marketPrice > e.priceAt(kind, uPrice, strike, timeLeft, r, high) {
		return 0, ErrNoSolution
	}
	for i := 0; i < iterations; i++ {
		mid := (low + high) / 2
		theo := e.priceAt(kind, uPrice, strike, timeLeft, r, mid)
		if math.Abs(theo-marketPrice) < Tolerance {
			return mid, nil
		}
		if theo < marketPrice {
			low = mid
		} else {
			high = mid
		}
	}
	return (low + high) / 2, nil
}

func validateQuote(kind models.InstrumentKind, marketPrice, uPrice, strike, timeLeft, r float64) error {
	if err := validateTerm(kind, uPrice, strike, timeLeft, r); err != nil {
		return err
	}
	if isNotFinite(marketPrice) {
		return fmt.Errorf("%w: market price must be finite, got %v", models.ErrInvalidArgument, marketPrice)
	}
	return nil
}

// priceAt prices validated inputs with a positive volatility.
func (e *TheoEngine) priceAt(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) float64 {
	if timeLeft <= 0 {
		return intrinsic(kind, uPrice, strike)
	}
	return e.theo(kind, uPrice, strike, timeLeft, r, volatility)
}

// SolveQuotes fills IV and Solved for each quote. Quotes with no solution are
// kept with Solved false; invalid quotes stop the run.
func (e *TheoEngine) SolveQuotes(quotes []models.ImpliedVol, r float64) error {
	for i := range quotes {
		q := &quotes[i]
		iv, err := e.ImpliedVol(q.Kind, q.MarketPrice, q.IndexPrice, q.Strike, q.TimeToExpiry, r)
		switch {
		case errors.Is(err, ErrNoSolution):
			q.IV, q.Solved = 0, false
		case err != nil:
			return fmt.Errorf("quote %d (%s %s %v): %w", i, q.Symbol, q.Kind, q.Strike, err)
		default:
			q.IV, q.Solved = iv, true
		}
	}
	return nil
}
