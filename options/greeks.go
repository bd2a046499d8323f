package options

import (
	"math"

	"github.com/fatih/structs"
	"github.com/tantralabs/optionlab/models"
)

// Greeks holds the first and second order sensitivities of an option.
type Greeks struct {
	Delta float64 `json:"delta" structs:"delta"` // Change in theo wrt. 1 unit change in uPrice
	Gamma float64 `json:"gamma" structs:"gamma"` // Change in delta wrt. 1 unit change in uPrice
	Theta float64 `json:"theta" structs:"theta"` // Change in theo wrt. time, per year
	Vega  float64 `json:"vega" structs:"vega"`   // Change in theo wrt. 1.0 change in volatility
	Rho   float64 `json:"rho" structs:"rho"`     // Change in theo wrt. 1.0 change in r
}

// Add accumulates other scaled by quantity.
func (g *Greeks) Add(other Greeks, quantity float64) {
	g.Delta += other.Delta * quantity
	g.Gamma += other.Gamma * quantity
	g.Theta += other.Theta * quantity
	g.Vega += other.Vega * quantity
	g.Rho += other.Rho * quantity
}

// Map returns the greeks keyed by name.
func (g Greeks) Map() map[string]float64 {
	m := make(map[string]float64, 5)
	for name, value := range structs.Map(g) {
		m[name] = value.(float64)
	}
	return m
}

// Delta at expiry collapses to 1, 0 or -1 depending on moneyness.
func (e *TheoEngine) Delta(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) (float64, error) {
	if err := validateModel(kind, uPrice, strike, timeLeft, r, volatility); err != nil {
		return 0, err
	}
	if timeLeft <= 0 {
		return expiryDelta(kind, uPrice, strike), nil
	}
	d1 := e.D1(uPrice, strike, timeLeft, r, volatility)
	if kind == models.Call {
		return e.norm.Cdf(d1), nil
	}
	return e.norm.Cdf(d1) - 1, nil
}

func (e *TheoEngine) Gamma(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) (float64, error) {
	if err := validateModel(kind, uPrice, strike, timeLeft, r, volatility); err != nil {
		return 0, err
	}
	if timeLeft <= 0 {
		return 0, nil
	}
	d1 := e.D1(uPrice, strike, timeLeft, r, volatility)
	return e.norm.Pdf(d1) / (uPrice * volatility * math.Sqrt(timeLeft)), nil
}

func (e *TheoEngine) Theta(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) (float64, error) {
	if err := validateModel(kind, uPrice, strike, timeLeft, r, volatility); err != nil {
		return 0, err
	}
	if timeLeft <= 0 {
		return 0, nil
	}
	d1 := e.D1(uPrice, strike, timeLeft, r, volatility)
	d2 := e.D2(d1, volatility, timeLeft)
	decay := -(uPrice * e.norm.Pdf(d1) * volatility) / (2 * math.Sqrt(timeLeft))
	carry := r * strike * math.Exp(-r*timeLeft)
	if kind == models.Call {
		return decay - carry*e.norm.Cdf(d2), nil
	}
	return decay + carry*e.norm.Cdf(-d2), nil
}

func (e *TheoEngine) Vega(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) (float64, error) {
	if err := validateModel(kind, uPrice, strike, timeLeft, r, volatility); err != nil {
		return 0, err
	}
	if timeLeft <= 0 {
		return 0, nil
	}
	return e.vega(uPrice, strike, timeLeft, r, volatility), nil
}

func (e *TheoEngine) vega(uPrice, strike, timeLeft, r, volatility float64) float64 {
	d1 := e.D1(uPrice, strike, timeLeft, r, volatility)
	return uPrice * e.norm.Pdf(d1) * math.Sqrt(timeLeft)
}

func (e *TheoEngine) Rho(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) (float64, error) {
	if err := validateModel(kind, uPrice, strike, timeLeft, r, volatility); err != nil {
		return 0, err
	}
	if timeLeft <= 0 {
		return 0, nil
	}
	d1 := e.D1(uPrice, strike, timeLeft, r, volatility)
	d2 := e.D2(d1, volatility, timeLeft)
	discounted := strike * timeLeft * math.Exp(-r*timeLeft)
	if kind == models.Call {
		return discounted * e.norm.Cdf(d2), nil
	}
	return -discounted * e.norm.Cdf(-d2), nil
}

// Greeks computes all five sensitivities from a single d1/d2 evaluation.
func (e *TheoEngine) Greeks(kind models.InstrumentKind, uPrice, strike, timeLeft, r, volatility float64) (Greeks, error) {
	if err := validateModel(kind, uPrice, strike, timeLeft, r, volatility); err != nil {
		return Greeks{}, err
	}
	if timeLeft <= 0 {
		return Greeks{Delta: expiryDelta(kind, uPrice, strike)}, nil
	}
	d1 := e.D1(uPrice, strike, timeLeft, r, volatility)
	d2 := e.D2(d1, volatility, timeLeft)
	sqrtT := math.Sqrt(timeLeft)
	discount := math.Exp(-r * timeLeft)
	nPrime := e.norm.Pdf(d1)

	g := Greeks{
		Gamma: nPrime / (uPrice * volatility * sqrtT),
		Vega:  uPrice * nPrime * sqrtT,
	}
	decay := -(uPrice * nPrime * volatility) / (2 * sqrtT)
	if kind == models.Call {
		g.Delta = e.norm.Cdf(d1)
		g.Theta = decay - r*strike*discount*e.norm.Cdf(d2)
		g.Rho = strike * timeLeft * discount * e.norm.Cdf(d2)
	} else {
		g.Delta = e.norm.Cdf(d1) - 1
		g.Theta = decay + r*strike*discount*e.norm.Cdf(-d2)
		g.Rho = -strike * timeLeft * discount * e.norm.Cdf(-d2)
	}
	return g, nil
}

func expiryDelta(kind models.InstrumentKind, uPrice, strike float64) float64 {
	if kind == models.Call {
		if uPrice > strike {
			return 1
		}
		return 0
	}
	if uPrice < strike {
		return -1
	}
	return 0
}
