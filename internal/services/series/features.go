package series

import (
	"math"

	"github.com/markcheno/go-talib"
)

const volatilityWindow = 20

// AddFeatures appends Returns, MA_5, MA_20, MA_50, Volatility and Price_Change in
// place. Every value depends only on the current and earlier rows. Rows without
// enough history hold Undefined.
func (s *Store) AddFeatures() error {
	if !s.cleaned {
		return ErrNotCleaned
	}
	n := len(s.rows)
	closes := make([]float64, n)
	for i, r := range s.rows {
		closes[i] = r.Close
	}

	returns := make([]float64, n)
	change := make([]float64, n)
	for i := range closes {
		if i == 0 {
			returns[i], change[i] = Undefined, Undefined
			continue
		}
		prev := closes[i-1]
		change[i] = closes[i] - prev
		if prev == 0 {
			returns[i] = Undefined
			continue
		}
		returns[i] = closes[i]/prev - 1
	}

	ma5 := rolling(closes, 5, talib.Sma)
	ma20 := rolling(closes, 20, talib.Sma)
	ma50 := rolling(closes, 50, talib.Sma)
	vol := rolling(returns, volatilityWindow, sampleStdDev)

	for i := range s.rows {
		r := &s.rows[i]
		r.Returns = returns[i]
		r.MA5 = ma5[i]
		r.MA20 = ma20[i]
		r.MA50 = ma50[i]
		r.Volatility = vol[i]
		r.PriceChange = change[i]
	}
	s.featured = true
	return nil
}

// sampleStdDev rescales the population deviation from talib to ddof=1.
func sampleStdDev(in []float64, period int) []float64 {
	out := talib.StdDev(in, period, 1.0)
	if period < 2 {
		return out
	}
	k := math.Sqrt(float64(period) / float64(period-1))
	for i := range out {
		out[i] *= k
	}
	return out
}

// rolling applies a trailing window function to every run of defined values.
// Positions whose window is incomplete or touches an undefined value get Undefined.
func rolling(values []float64, period int, fn func([]float64, int) []float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = Undefined
	}
	start := 0
	for start < len(values) {
		for start < len(values) && IsUndefined(values[start]) {
			start++
		}
		end := start
		for end < len(values) && !IsUndefined(values[end]) {
			end++
		}
		if end-start >= period {
			res := fn(values[start:end], period)
			for j := period - 1; j < len(res); j++ {
				out[start+j] = res[j]
			}
		}
		start = end
	}
	return out
}
