package usecase

import (
	"context"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	xhttp "StockCast/pkg/http"
	"StockCast/pkg/util"
)

// SearchUseCase looks up the quote summary of a ticker.
type SearchUseCase struct {
	source domrepo.BarSource
}

func NewSearchUseCase(source domrepo.BarSource) *SearchUseCase {
	return &SearchUseCase{source: source}
}

func (uc *SearchUseCase) Search(ctx context.Context, ticker string) (*StockInfoDTO, error) {
	ticker = util.NormalizeTicker(ticker)
	if !xhttp.IsTicker(ticker) {
		return nil, xhttp.BadRequestErrorf("invalid ticker %q", ticker)
	}
	bars, err := uc.source.FetchDaily(ctx, ticker, string(domrepo.Period1Y))
	if err != nil {
		return nil, err
	}
	info := BuildStockInfo(ticker, bars)
	if info == nil {
		return nil, &models.DataUnavailableError{Ticker: ticker, Rows: len(bars), Need: 1}
	}
	return newStockInfoDTO(info), nil
}
