package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"StockCast/internal/domain/models"
	"StockCast/pkg/kafka"
	"StockCast/pkg/logger"
)

var _ kafka.MessageHandler = (*ForecastRequestHandler)(nil)

// ForecastRequestHandler consumes ForecastJob messages and refreshes the
// forecast for each. Only transient failures are returned to the consumer for
// retry; bad payloads and data or model problems are logged and dropped.
type ForecastRequestHandler struct {
	topic   string
	predict *PredictUseCase
	log     *logger.Logger
}

func NewForecastRequestHandler(topic string, predict *PredictUseCase, log *logger.Logger) *ForecastRequestHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ForecastRequestHandler{topic: topic, predict: predict, log: log}
}

func (h *ForecastRequestHandler) Topic() string { return h.topic }

func (h *ForecastRequestHandler) Handle(ctx context.Context, data []byte) error {
	var job models.ForecastJob
	if err := json.Unmarshal(data, &job); err != nil {
		h.predict.metrics.RecordError("consumer_unmarshal")
		h.log.Warn("invalid forecast job", logger.String("payload", string(data)), logger.Error(err))
		return nil
	}
	_, err := h.predict.Refresh(ctx, job.Ticker, job.Days)
	if err == nil {
		return nil
	}
	if retryable(err) {
		return fmt.Errorf("forecast job %s: %w", job.Ticker, err)
	}
	h.log.Warn("forecast job dropped",
		logger.String("ticker", job.Ticker),
		logger.Int("days", job.Days),
		logger.String("trace_id", kafka.TraceID(ctx)),
		logger.Error(err),
	)
	return nil
}
