package repository

import (
	"context"

	"StockCast/internal/domain/models"
)

// ResultPublisher emits completed forecasts to downstream consumers.
type ResultPublisher interface {
	PublishForecast(ctx context.Context, ev *models.ForecastEvent) error
	Close() error
}

type Metrics interface {
	RecordForecast(ticker, model string)
	RecordError(stage string)
	RecordLatency(op string, seconds float64)
	RecordQuality(ticker string, m models.Metrics)
	RecordCache(hit bool)
}
