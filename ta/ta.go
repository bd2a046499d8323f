// Package ta provides technical analysis indicators for strategies using
// github.com/markcheno/go-talib
package ta

import (
	talib "github.com/markcheno/go-talib"
)

// Trend is the direction of a moving average crossover.
type Trend int

const (
	Flat Trend = iota
	Bullish
	Bearish
)

// GetSMA returns the simple moving average of close. The first length-1
// values are zero, as talib leaves them.
func GetSMA(close []float64, length int) []float64 {
	if len(close) < length || length < 2 {
		return make([]float64, len(close))
	}
	return talib.Sma(close, length)
}

// GetRoc calculates rate of change over inTimePeriod bars, in percent
func GetRoc(close []float64, inTimePeriod int) []float64 {
	if len(close) <= inTimePeriod {
		return make([]float64, len(close))
	}
	return talib.Roc(close, inTimePeriod)
}

// GetCrossovers marks each index where the fast SMA crosses the slow SMA.
// Nothing is reported until both averages are defined.
func GetCrossovers(close []float64, fastLength int, slowLength int) []Trend {
	trends := make([]Trend, len(close))
	if fastLength >= slowLength || len(close) < slowLength+1 {
		return trends
	}
	fast := GetSMA(close, fastLength)
	slow := GetSMA(close, slowLength)
	for i := slowLength; i < len(close); i++ {
		prev := fast[i-1] - slow[i-1]
		curr := fast[i] - slow[i]
		if prev <= 0 && curr > 0 {
			trends[i] = Bullish
		} else if prev >= 0 && curr < 0 {
			trends[i] = Bearish
		}
	}
	return trends
}
