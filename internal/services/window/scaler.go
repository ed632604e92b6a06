package window

import (
	"errors"
	"math"
)

var ErrEmptyFit = errors.New("window: cannot fit scaler on empty data")

// MinMaxScaler maps a fitted value range onto [0,1]. A constant column maps
// every value to 0.
type MinMaxScaler struct {
	min float64
	max float64
	rng float64
	fit bool
}

// Fit records min and max of values.
func (s *MinMaxScaler) Fit(values []float64) error {
	if len(values) == 0 {
		return ErrEmptyFit
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	s.min, s.max, s.rng = lo, hi, hi-lo
	s.fit = true
	return nil
}

func (s *MinMaxScaler) Fitted() bool { return s.fit }

func (s *MinMaxScaler) Min() float64 { return s.min }

func (s *MinMaxScaler) Max() float64 { return s.max }

func (s *MinMaxScaler) Transform(v float64) float64 {
	if s.rng == 0 {
		return 0
	}
	return (v - s.min) / s.rng
}

// InverseTransform maps a normalized value back to the original scale.
// For a constant column it returns the fitted value.
func (s *MinMaxScaler) InverseTransform(v float64) float64 {
	return v*s.rng + s.min
}

func (s *MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

func (s *MinMaxScaler) InverseTransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.InverseTransform(v)
	}
	return out
}
