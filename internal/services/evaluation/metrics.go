// Package evaluation scores paired actual and predicted series.
package evaluation

import (
	"errors"
	"fmt"
	"math"

	"StockCast/internal/domain/models"
)

var (
	ErrLengthMismatch = errors.New("actual and predicted lengths differ")
	ErrEmptyInput     = errors.New("no values to score")
	ErrZeroActual     = errors.New("actual value is zero")
	ErrNonFinite      = errors.New("non-finite value")
)

// Calculate returns MSE, RMSE, MAE, MAPE and R² for the paired arrays. Any
// failure aborts the whole calculation.
func Calculate(actual, predicted []float64) (models.Metrics, error) {
	var m models.Metrics
	if len(actual) != len(predicted) {
		return m, &models.MetricsComputationError{
			Metric: "input",
			Err:    fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(actual), len(predicted)),
		}
	}
	if len(actual) == 0 {
		return m, &models.MetricsComputationError{Metric: "input", Err: ErrEmptyInput}
	}

	n := float64(len(actual))
	var sqSum, absSum, pctSum, mean float64
	for i, a := range actual {
		d := a - predicted[i]
		sqSum += d * d
		absSum += math.Abs(d)
		if a == 0 {
			return m, &models.MetricsComputationError{
				Metric: "mape",
				Err:    fmt.Errorf("%w at index %d", ErrZeroActual, i),
			}
		}
		pctSum += math.Abs(d / a)
		mean += a
	}
	mean /= n

	var ssTot float64
	for _, a := range actual {
		ssTot += (a - mean) * (a - mean)
	}

	m.MSE = sqSum / n
	m.RMSE = math.Sqrt(m.MSE)
	m.MAE = absSum / n
	m.MAPE = pctSum / n * 100
	m.R2 = r2(sqSum, ssTot)

	scores := []struct {
		name  string
		value float64
	}{{"mse", m.MSE}, {"rmse", m.RMSE}, {"mae", m.MAE}, {"mape", m.MAPE}, {"r2", m.R2}}
	for _, s := range scores {
		if math.IsNaN(s.value) || math.IsInf(s.value, 0) {
			return models.Metrics{}, &models.MetricsComputationError{Metric: s.name, Err: ErrNonFinite}
		}
	}
	return m, nil
}

// r2 is the coefficient of determination. Constant actuals score 1 for a
// perfect fit and 0 otherwise.
func r2(ssRes, ssTot float64) float64 {
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
