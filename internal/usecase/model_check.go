package usecase

import (
	domsvc "StockCast/internal/domain/service"
	"StockCast/pkg/util"
)

type ModelCheckUseCase struct {
	loader domsvc.ModelLoader
}

func NewModelCheckUseCase(loader domsvc.ModelLoader) *ModelCheckUseCase {
	return &ModelCheckUseCase{loader: loader}
}

// Check reports whether a model file exists for ticker without loading it.
func (uc *ModelCheckUseCase) Check(ticker string) *ModelCheckResponse {
	ticker = util.NormalizeTicker(ticker)
	resp := &ModelCheckResponse{Ticker: ticker}
	if uc.loader != nil {
		resp.Path, resp.Exists = uc.loader.Locate(ticker)
	}
	if !resp.Exists {
		resp.Message = "No model found"
	}
	return resp
}
