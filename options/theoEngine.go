// Package options prices European options with Black-Scholes, computes their
// Greeks and solves for implied volatility.
package options

import (
	"fmt"
	"math"

	"github.com/chobie/go-gaussian"
	"github.com/tantralabs/optionlab/models"
)

// TheoEngine is a stateless Black-Scholes calculator. It is safe for
// concurrent use and is shared by every component that values options.
type TheoEngine struct {
	norm *gaussian.Gaussian
}

func NewTheoEngine() *TheoEngine {
	return &TheoEngine{
		norm: gaussian.NewGaussian(0, 1),
	}
}

func (e *TheoEngine) D1(uPrice, strike, timeLeft, r, volatility float64) float64 {
	return (math.Log(uPrice/strike) + (r+0.5*volatility*volatility)*timeLeft) / (volatility * math.Sqrt(timeLeft))
}

func (e *TheoEngine) D2(d1, volatility, timeLeft float64) float64 {
	return d1 - volatility*math.Sqrt(timeLeft)
}

// Cdf is the standard normal cumulative distribution.
func (e *TheoEngine) Cdf(x float64) float64 {
	return e.norm.Cdf(x)
}

// Pdf is the standard normal density.
func (e *TheoEngine) Pdf(x float64) float64 {
	return e.norm.Pdf(x)
}

// Price returns the Black-Scholes value of a call or put, floored at zero.
// At or past expiry the option is worth its intrinsic value and r and
// volatility are ignored.
func (e *TheoEngine) Price(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) (float64, error) {
	if err := validateModel(kind, uPrice, strike, timeLeft, r, volatility); err != nil {
		return 0, err
	}
	if timeLeft <= 0 {
		return intrinsic(kind, uPrice, strike), nil
	}
	return e.theo(kind, uPrice, strike, timeLeft, r, volatility), nil
}

// Intrinsic returns max(S-K, 0) for calls and max(K-S, 0) for puts.
func (e *TheoEngine) Intrinsic(kind models.InstrumentKind, uPrice, strike float64) (float64, error) {
	if err := validate(kind, uPrice, strike); err != nil {
		return 0, err
	}
	return intrinsic(kind, uPrice, strike), nil
}

// theo assumes validated inputs with timeLeft and volatility above zero.
func (e *TheoEngine) theo(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) float64 {
	d1 := e.D1(uPrice, strike, timeLeft, r, volatility)
	d2 := e.D2(d1, volatility, timeLeft)
	discount := math.Exp(-r * timeLeft)
	var value float64
	if kind == models.Call {
		value = uPrice*e.norm.Cdf(d1) - strike*discount*e.norm.Cdf(d2)
	} else {
		value = strike*discount*e.norm.Cdf(-d2) - uPrice*e.norm.Cdf(-d1)
	}
	return math.Max(value, 0)
}

func intrinsic(kind models.InstrumentKind, uPrice, strike float64) float64 {
	expiryValue := 0.
	if kind == models.Call {
		expiryValue = uPrice - strike
	} else if kind == models.Put {
		expiryValue = strike - uPrice
	}
	if expiryValue < 0 {
		expiryValue = 0
	}
	return expiryValue
}

func validate(kind models.InstrumentKind, uPrice, strike float64) error {
	if !kind.IsOption() {
		return fmt.Errorf("%w: option kind must be call or put, got %q", models.ErrInvalidArgument, kind)
	}
	if !(uPrice > 0) || math.IsInf(uPrice, 1) {
		return fmt.Errorf("%w: underlying price must be positive, got %v", models.ErrInvalidArgument, uPrice)
	}
	if !(strike > 0) || math.IsInf(strike, 1) {
		return fmt.Errorf("%w: strike must be positive, got %v", models.ErrInvalidArgument, strike)
	}
	return nil
}

// validateModel checks the inputs of a Black-Scholes valuation. r and
// volatility only matter, and are only checked, before expiry.
func validateModel(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) error {
	if err := validateTerm(kind, uPrice, strike, timeLeft, r); err != nil {
		return err
	}
	if timeLeft > 0 && (!(volatility > 0) || math.IsInf(volatility, 1)) {
		return fmt.Errorf("%w: volatility must be positive, got %v", models.ErrInvalidArgument, volatility)
	}
	return nil
}

func validateTerm(kind models.InstrumentKind, uPrice, strike, timeLeft, r float64) error {
	if err := validate(kind, uPrice, strike); err != nil {
		return err
	}
	if isNotFinite(timeLeft) {
		return fmt.Errorf("%w: time to expiry must be finite, got %v", models.ErrInvalidArgument, timeLeft)
	}
	if timeLeft > 0 && isNotFinite(r) {
		return fmt.Errorf("%w: rate must be finite, got %v", models.ErrInvalidArgument, r)
	}
	return nil
}

func isNotFinite(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}
