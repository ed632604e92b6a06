package usecase

import (
	"context"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	xhttp "StockCast/pkg/http"
	"StockCast/pkg/util"
)

// HistoricalUseCase returns raw daily bars for charting.
type HistoricalUseCase struct {
	source domrepo.BarSource
}

func NewHistoricalUseCase(source domrepo.BarSource) *HistoricalUseCase {
	return &HistoricalUseCase{source: source}
}

func (uc *HistoricalUseCase) Get(ctx context.Context, ticker, period string) (*HistoricalResponse, error) {
	ticker = util.NormalizeTicker(ticker)
	if !xhttp.IsTicker(ticker) {
		return nil, xhttp.BadRequestErrorf("invalid ticker %q", ticker)
	}
	p := domrepo.NormalizePeriod(period)
	bars, err := uc.source.FetchDaily(ctx, ticker, string(p))
	if err != nil {
		return nil, err
	}
	out := newBarDTOs(bars)
	if len(out) == 0 {
		return nil, &models.DataUnavailableError{Ticker: ticker, Rows: 0, Need: 1}
	}
	return &HistoricalResponse{Ticker: ticker, Period: string(p), Bars: out}, nil
}
