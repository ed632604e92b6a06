package market

import (
	"context"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/pkg/logger"
)

var _ domrepo.BarSource = (*RetrySource)(nil)

// RetrySource retries a source up to attempts times, sleeping delay*(n+1)
// after the n-th failure. An empty result counts as a failure.
type RetrySource struct {
	src      domrepo.BarSource
	attempts int
	delay    time.Duration
	log      *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRetrySource(src domrepo.BarSource, attempts int, delay time.Duration, log *logger.Logger) *RetrySource {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RetrySource{src: src, attempts: attempts, delay: delay, log: log, sleep: sleepCtx}
}

func (r *RetrySource) Name() string { return r.src.Name() }

func (r *RetrySource) FetchDaily(ctx context.Context, ticker, period string) ([]models.Bar, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		bars, err := r.src.FetchDaily(ctx, ticker, period)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned no rows for %s", r.src.Name(), ticker)
		}
		lastErr = err
		r.log.Warn("fetch attempt failed",
			logger.String("source", r.src.Name()),
			logger.String("ticker", ticker),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
		if attempt == r.attempts-1 {
			break
		}
		if err := r.sleep(ctx, r.delay*time.Duration(attempt+1)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %d attempts: %w", r.src.Name(), r.attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
