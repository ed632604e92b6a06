package models

import "time"

// Metrics holds the regression-quality scores of an evaluation run.
type Metrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
	R2   float64 `json:"r2_score"`
}

// ForecastPoint is one future (date, price) pair.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// ForecastResult is the outcome of a complete forecasting run.
type ForecastResult struct {
	Ticker      string          `json:"ticker"`
	Model       string          `json:"model"`
	Bars        []Bar           `json:"-"`
	EvalDates   []time.Time     `json:"eval_dates"`
	Predictions []float64       `json:"predictions"`
	Actuals     []float64       `json:"actuals"`
	Metrics     Metrics         `json:"metrics"`
	Future      []ForecastPoint `json:"future"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// LastClose returns the most recent observed close, or 0 without bars.
func (r *ForecastResult) LastClose() float64 {
	if len(r.Bars) == 0 {
		return 0
	}
	return r.Bars[len(r.Bars)-1].Close
}

// ForecastEvent is the message published after a forecast completes.
type ForecastEvent struct {
	Ticker      string          `json:"ticker"`
	Model       string          `json:"model"`
	Horizon     int             `json:"horizon"`
	LastClose   float64         `json:"last_close"`
	Metrics     Metrics         `json:"metrics"`
	Future      []ForecastPoint `json:"future"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ForecastJob is an asynchronous forecast request consumed from the queue.
type ForecastJob struct {
	Ticker string `json:"ticker"`
	Days   int    `json:"days"`
}
