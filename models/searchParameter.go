package models

import (
	"fmt"
	"math"
)

// SearchParameter is one dimension of a parameter sweep. Name is the json
// name of a strategy parameter, e.g. "wing_width".
type SearchParameter struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step" yaml:"step"`
}

func NewSearchParameter(name string, min float64, max float64, step float64) SearchParameter {
	return SearchParameter{
		Name: name,
		Min:  min,
		Max:  max,
		Step: step,
	}
}

func (p SearchParameter) Validate() error {
	if p.Name == "" || p.Max < p.Min || p.Step <= 0 {
		return fmt.Errorf("%w: bad search parameter %+v", ErrInvalidArgument, p)
	}
	return nil
}

// Values lists Min, Min+Step, ... up to Max inclusive.
func (p SearchParameter) Values() []float64 {
	var values []float64
	for i := 0; ; i++ {
		value := toFixed(p.Min+float64(i)*p.Step, 10)
		if value > p.Max {
			break
		}
		values = append(values, value)
	}
	return values
}

// SetValue clamps value into [Min, Max].
func (p SearchParameter) SetValue(value float64) float64 {
	return math.Max(p.Min, math.Min(value, p.Max))
}

// Snap clamps value and rounds it to the nearest Min + k*Step.
func (p SearchParameter) Snap(value float64) float64 {
	steps := math.Round((p.SetValue(value) - p.Min) / p.Step)
	return p.SetValue(toFixed(p.Min+steps*p.Step, 10))
}

func toFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return math.Round(num*output) / output
}
