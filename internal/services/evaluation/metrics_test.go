package evaluation

import (
	"errors"
	"math"
	"testing"

	"StockCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		actual    []float64
		predicted []float64
		want      models.Metrics
	}{
		{
			name:      "identical arrays",
			actual:    []float64{101, 102.5, 99, 110},
			predicted: []float64{101, 102.5, 99, 110},
			want:      models.Metrics{MSE: 0, RMSE: 0, MAE: 0, MAPE: 0, R2: 1},
		},
		{
			name:      "symmetric miss around constant actuals",
			actual:    []float64{100, 100, 100},
			predicted: []float64{90, 100, 110},
			want:      models.Metrics{MSE: 200.0 / 3, RMSE: math.Sqrt(200.0 / 3), MAE: 20.0 / 3, MAPE: 20.0 / 3, R2: 0},
		},
		{
			name:      "constant actuals perfect fit",
			actual:    []float64{5, 5},
			predicted: []float64{5, 5},
			want:      models.Metrics{R2: 1},
		},
		{
			name:      "linear miss",
			actual:    []float64{1, 2, 3, 4},
			predicted: []float64{2, 2, 3, 3},
			want:      models.Metrics{MSE: 0.5, RMSE: math.Sqrt(0.5), MAE: 0.5, MAPE: (100 + 25) / 4.0, R2: 0.6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.actual, tt.predicted)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.MSE, got.MSE, 1e-9)
			assert.InDelta(t, tt.want.RMSE, got.RMSE, 1e-9)
			assert.InDelta(t, tt.want.MAE, got.MAE, 1e-9)
			assert.InDelta(t, tt.want.MAPE, got.MAPE, 1e-9)
			assert.InDelta(t, tt.want.R2, got.R2, 1e-9)
		})
	}
}

func TestCalculateRoundedScores(t *testing.T) {
	got, err := Calculate([]float64{100, 100, 100}, []float64{90, 100, 110})
	require.NoError(t, err)
	assert.InDelta(t, 66.67, got.MSE, 0.01)
	assert.InDelta(t, 6.67, got.MAE, 0.01)
}

func TestCalculateFailures(t *testing.T) {
	tests := []struct {
		name      string
		actual    []float64
		predicted []float64
		metric    string
		cause     error
	}{
		{name: "length mismatch", actual: []float64{1, 2}, predicted: []float64{1}, metric: "input", cause: ErrLengthMismatch},
		{name: "empty", metric: "input", cause: ErrEmptyInput},
		{name: "zero actual", actual: []float64{1, 0, 2}, predicted: []float64{1, 1, 2}, metric: "mape", cause: ErrZeroActual},
		{name: "overflow", actual: []float64{1, 2}, predicted: []float64{math.Inf(1), 2}, metric: "mse", cause: ErrNonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.actual, tt.predicted)
			var mce *models.MetricsComputationError
			require.True(t, errors.As(err, &mce))
			assert.Equal(t, tt.metric, mce.Metric)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}
