package repository

import (
	"context"

	"StockCast/internal/domain/models"
)

// BarSource fetches daily bars for a ticker over a lookback period ("1y", "max", ...).
type BarSource interface {
	Name() string
	FetchDaily(ctx context.Context, ticker, period string) ([]models.Bar, error)
}

// BarStore archives daily bars and forecast runs.
type BarStore interface {
	SaveBars(ctx context.Context, ticker string, bars []models.Bar) error
	LoadBars(ctx context.Context, ticker, period string) ([]models.Bar, error)
	SaveForecast(ctx context.Context, res *models.ForecastResult) error
	Health(ctx context.Context) error
}
