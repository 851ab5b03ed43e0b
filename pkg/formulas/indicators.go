// Package formulas wraps the technical indicators exposed by the market
// history endpoint.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// BollingerBands represents Bollinger Bands values
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// SMA returns the latest simple moving average over the period, or false
// when the series is too short.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	values := talib.Sma(closes, period)
	last := values[len(values)-1]
	if math.IsNaN(last) {
		return 0, false
	}
	return last, true
}

// RSI returns the latest relative strength index over the period.
// RSI needs period+1 bars before its first defined value.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) <= period {
		return 0, false
	}
	values := talib.Rsi(closes, period)
	last := values[len(values)-1]
	if math.IsNaN(last) {
		return 0, false
	}
	return last, true
}

// Bollinger returns the latest Bollinger Bands.
//
//	Middle = period SMA
//	Upper  = Middle + multiplier x std deviation
//	Lower  = Middle - multiplier x std deviation
func Bollinger(closes []float64, period int, multiplier float64) *BollingerBands {
	if period <= 0 || len(closes) < period {
		return nil
	}

	// MAType 0 = simple moving average
	upper, middle, lower := talib.BBands(closes, period, multiplier, multiplier, 0)
	last := len(upper) - 1
	if last < 0 || math.IsNaN(upper[last]) {
		return nil
	}
	return &BollingerBands{
		Upper:  upper[last],
		Middle: middle[last],
		Lower:  lower[last],
	}
}
