package usecase

import (
	"context"
	"errors"
	"net/http"

	"StockCast/internal/domain/models"
	xhttp "StockCast/pkg/http"
)

// ToAppError maps pipeline failures to HTTP-facing errors. Errors that are
// already AppErrors pass through; anything unknown becomes a 500.
func ToAppError(err error) error {
	if err == nil {
		return nil
	}
	return AppErrorOf(err)
}

// AppErrorOf is ToAppError for callers that need the concrete type. It never
// returns nil; a nil err maps to a generic internal error.
func AppErrorOf(err error) *xhttp.AppError {
	if err == nil {
		return xhttp.InternalError("Failed to generate predictions")
	}
	var (
		appErr  *xhttp.AppError
		insuff  *models.InsufficientDataError
		unavail *models.DataUnavailableError
		noModel *models.ModelNotFoundError
		noEval  *models.EmptyEvaluationSetError
		metric  *models.MetricsComputationError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &insuff):
		return xhttp.UnprocessableError("Not enough history to forecast").
			WithParam("stage", insuff.Stage).
			WithParam("have", insuff.Have).
			WithParam("need", insuff.Need).
			WithError(err)
	case errors.As(err, &unavail):
		return xhttp.BadGatewayError("Could not fetch market data").
			WithParam("ticker", unavail.Ticker).
			WithError(err)
	case errors.As(err, &noModel):
		return xhttp.NotFoundErrorf("No trained model found for %s", noModel.Ticker).
			WithParam("searched", noModel.Searched).
			WithError(err)
	case errors.As(err, &noEval):
		return xhttp.BadRequestError("Train fraction leaves no evaluation windows").WithError(err)
	case errors.As(err, &metric):
		return xhttp.InternalErrorf("Could not score predictions (%s)", metric.Metric).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "Forecast timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("Failed to generate predictions").WithError(err)
	}
}

// Stage labels an error for the errors_total metric.
func Stage(err error) string {
	var (
		insuff  *models.InsufficientDataError
		unavail *models.DataUnavailableError
		noModel *models.ModelNotFoundError
		noEval  *models.EmptyEvaluationSetError
		metric  *models.MetricsComputationError
	)
	switch {
	case errors.As(err, &unavail):
		return "fetch"
	case errors.As(err, &insuff):
		return "data"
	case errors.As(err, &noModel):
		return "model"
	case errors.As(err, &noEval), errors.As(err, &metric):
		return "evaluate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "predict"
	}
}

// retryable reports whether a queued job should be retried after err.
func retryable(err error) bool {
	var unavail *models.DataUnavailableError
	return errors.As(err, &unavail) || errors.Is(err, context.DeadlineExceeded)
}
