package usecase

import (
	"math"
	"time"

	"StockCast/internal/domain/models"

	"github.com/shopspring/decimal"
)

const (
	pricePlaces = 4
	perfPlaces  = 2
)

// PredictResponse is the body of a completed forecast.
type PredictResponse struct {
	Ticker      string          `json:"ticker"`
	Model       string          `json:"model_used"`
	Info        *StockInfoDTO   `json:"info"`
	Bars        []BarDTO        `json:"bars"`
	Historical  HistoricalFit   `json:"historical"`
	Future      FutureDTO       `json:"future"`
	Metrics     MetricsDTO      `json:"metrics"`
	Performance *PerformanceDTO `json:"performance,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Cached      bool            `json:"cached"`
}

// HistoricalFit pairs evaluation dates with actual and predicted closes.
type HistoricalFit struct {
	Dates     []string  `json:"dates"`
	Actual    []float64 `json:"actual"`
	Predicted []float64 `json:"predicted"`
}

type FutureDTO struct {
	Dates       []string  `json:"dates"`
	Predictions []float64 `json:"predictions"`
}

type MetricsDTO struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
	R2   float64 `json:"r2_score"`
}

type PerformanceDTO struct {
	StartPrice float64 `json:"start_price"`
	EndPrice   float64 `json:"end_price"`
	Change     float64 `json:"change"`
	ChangePct  float64 `json:"change_pct"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	AvgVolume  float64 `json:"avg_volume"`
}

type StockInfoDTO struct {
	Symbol        string  `json:"symbol"`
	Currency      string  `json:"currency"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_pct"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Volume        int64   `json:"volume"`
	AvgVolume     float64 `json:"avg_volume"`
	High52Week    float64 `json:"52_week_high"`
	Low52Week     float64 `json:"52_week_low"`
}

type BarDTO struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type HistoricalResponse struct {
	Ticker string   `json:"ticker"`
	Period string   `json:"period"`
	Bars   []BarDTO `json:"bars"`
}

type ModelCheckResponse struct {
	Ticker  string `json:"ticker"`
	Exists  bool   `json:"exists"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// round rounds half away from zero. Non-finite input becomes 0.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func roundAll(vs []float64, places int32) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = round(v, places)
	}
	return out
}

func formatDates(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format(models.DateLayout)
	}
	return out
}

func newPredictResponse(res *models.ForecastResult, info *models.StockInfo, perf *models.Performance) *PredictResponse {
	resp := &PredictResponse{
		Ticker: res.Ticker,
		Model:  res.Model,
		Info:   newStockInfoDTO(info),
		Bars:   newBarDTOs(res.Bars),
		Historical: HistoricalFit{
			Dates:     formatDates(res.EvalDates),
			Actual:    roundAll(res.Actuals, pricePlaces),
			Predicted: roundAll(res.Predictions, pricePlaces),
		},
		Future: FutureDTO{
			Dates:       make([]string, len(res.Future)),
			Predictions: make([]float64, len(res.Future)),
		},
		Metrics: MetricsDTO{
			MSE:  round(res.Metrics.MSE, pricePlaces),
			RMSE: round(res.Metrics.RMSE, pricePlaces),
			MAE:  round(res.Metrics.MAE, pricePlaces),
			MAPE: round(res.Metrics.MAPE, pricePlaces),
			R2:   round(res.Metrics.R2, pricePlaces),
		},
		Performance: newPerformanceDTO(perf),
		GeneratedAt: res.GeneratedAt,
	}
	for i, p := range res.Future {
		resp.Future.Dates[i] = p.Date.Format(models.DateLayout)
		resp.Future.Predictions[i] = round(p.Price, pricePlaces)
	}
	return resp
}

func newPerformanceDTO(p *models.Performance) *PerformanceDTO {
	if p == nil {
		return nil
	}
	return &PerformanceDTO{
		StartPrice: round(p.StartPrice, perfPlaces),
		EndPrice:   round(p.EndPrice, perfPlaces),
		Change:     round(p.Change, perfPlaces),
		ChangePct:  round(p.ChangePct, perfPlaces),
		High:       round(p.High, perfPlaces),
		Low:        round(p.Low, perfPlaces),
		AvgVolume:  round(p.AvgVolume, 0),
	}
}

func newStockInfoDTO(s *models.StockInfo) *StockInfoDTO {
	if s == nil {
		return nil
	}
	dto := &StockInfoDTO{
		Symbol:        s.Symbol,
		Currency:      s.Currency,
		CurrentPrice:  round(s.CurrentPrice, perfPlaces),
		PreviousClose: round(s.PreviousClose, perfPlaces),
		DayHigh:       round(s.DayHigh, perfPlaces),
		DayLow:        round(s.DayLow, perfPlaces),
		Volume:        s.Volume,
		AvgVolume:     round(s.AvgVolume, 0),
		High52Week:    round(s.High52Week, perfPlaces),
		Low52Week:     round(s.Low52Week, perfPlaces),
	}
	if s.PreviousClose != 0 {
		cur := decimal.NewFromFloat(s.CurrentPrice)
		prev := decimal.NewFromFloat(s.PreviousClose)
		diff := cur.Sub(prev)
		dto.Change = diff.Round(perfPlaces).InexactFloat64()
		dto.ChangePct = diff.Div(prev).Mul(decimal.NewFromInt(100)).Round(perfPlaces).InexactFloat64()
	}
	return dto
}

func newBarDTOs(bars []models.Bar) []BarDTO {
	out := make([]BarDTO, 0, len(bars))
	for _, b := range bars {
		if !b.Complete() {
			continue
		}
		out = append(out, BarDTO{
			Date:   b.Date.Format(models.DateLayout),
			Open:   round(b.Open, pricePlaces),
			High:   round(b.High, pricePlaces),
			Low:    round(b.Low, pricePlaces),
			Close:  round(b.Close, pricePlaces),
			Volume: b.Volume,
		})
	}
	return out
}
