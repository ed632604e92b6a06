package api

import (
	"StockCast/internal/domain/models"
	"StockCast/internal/usecase"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastHandler serves the forecast REST API.
type ForecastHandler struct {
	logger     *xlogger.Logger
	predict    *usecase.PredictUseCase
	historical *usecase.HistoricalUseCase
	check      *usecase.ModelCheckUseCase
	search     *usecase.SearchUseCase
	predictMW  []echo.MiddlewareFunc
}

func NewForecastHandler(
	logger *xlogger.Logger,
	predict *usecase.PredictUseCase,
	historical *usecase.HistoricalUseCase,
	check *usecase.ModelCheckUseCase,
	search *usecase.SearchUseCase,
) *ForecastHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastHandler{
		logger:     logger,
		predict:    predict,
		historical: historical,
		check:      check,
		search:     search,
	}
}

// UsePredictMiddleware adds middleware (rate limiting) to the predict route only.
func (h *ForecastHandler) UsePredictMiddleware(mw ...echo.MiddlewareFunc) {
	h.predictMW = append(h.predictMW, mw...)
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/predict", h.Predict, h.predictMW...)
	g.GET("/historical/:ticker", h.Historical)
	g.GET("/check-model/:ticker", h.CheckModel)
	g.POST("/search", h.Search)
}

func (h *ForecastHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.predict.Predict(c.Request().Context(), req.Ticker, req.Days)
	if err != nil {
		h.logger.Error("predict usecase error",
			xlogger.String("ticker", req.Ticker),
			xlogger.Int("days", req.Days),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, usecase.ToAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) Historical(c echo.Context) error {
	req := &models.HistoricalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.historical.Get(c.Request().Context(), req.Ticker, req.Period)
	if err != nil {
		h.logger.Error("historical usecase error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, usecase.ToAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) CheckModel(c echo.Context) error {
	req := &models.CheckModelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.check.Check(req.Ticker))
}

func (h *ForecastHandler) Search(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.search.Search(c.Request().Context(), req.Ticker)
	if err != nil {
		h.logger.Error("search usecase error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, usecase.ToAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}
