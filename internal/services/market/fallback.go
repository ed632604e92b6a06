package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/service/metrics"
	"StockCast/pkg/logger"
)

var _ domrepo.BarSource = (*FallbackSource)(nil)

// FallbackSource tries each source in order and returns the first non-empty
// result. Bars fetched from a live source are written to the archive when
// one is set.
type FallbackSource struct {
	sources []domrepo.BarSource
	archive domrepo.BarStore
	log     *logger.Logger
}

type FallbackOption func(*FallbackSource)

// WithArchive saves bars fetched from any source other than the archive itself.
func WithArchive(store domrepo.BarStore) FallbackOption {
	return func(f *FallbackSource) {
		f.archive = store
	}
}

func WithFallbackLogger(log *logger.Logger) FallbackOption {
	return func(f *FallbackSource) {
		if log != nil {
			f.log = log
		}
	}
}

func NewFallbackSource(sources []domrepo.BarSource, opts ...FallbackOption) *FallbackSource {
	metrics.Register()
	f := &FallbackSource{log: logger.Nop()}
	for _, s := range sources {
		if s != nil {
			f.sources = append(f.sources, s)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FallbackSource) Name() string {
	if len(f.sources) == 0 {
		return "none"
	}
	return f.sources[0].Name()
}

func (f *FallbackSource) FetchDaily(ctx context.Context, ticker, period string) ([]models.Bar, error) {
	var errs []error
	for i, src := range f.sources {
		start := time.Now()
		bars, err := src.FetchDaily(ctx, ticker, period)
		metrics.FetchLatency.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())
		if err == nil && len(bars) == 0 {
			err = fmt.Errorf("%s: no rows", src.Name())
		}
		if err != nil {
			metrics.FetchErrors.WithLabelValues(src.Name()).Inc()
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			f.log.Warn("bar source failed",
				logger.String("source", src.Name()),
				logger.String("ticker", ticker),
				logger.Error(err),
			)
			continue
		}
		if i > 0 {
			metrics.FallbackUsed.WithLabelValues(src.Name()).Inc()
			f.log.Info("served by fallback source",
				logger.String("source", src.Name()),
				logger.String("ticker", ticker),
				logger.Int("rows", len(bars)),
			)
		}
		f.store(ctx, src, ticker, bars)
		return bars, nil
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no bar sources configured"))
	}
	return nil, &models.DataUnavailableError{Ticker: ticker, Err: errors.Join(errs...)}
}

func (f *FallbackSource) store(ctx context.Context, src domrepo.BarSource, ticker string, bars []models.Bar) {
	if f.archive == nil {
		return
	}
	if _, ok := src.(*ArchiveSource); ok {
		return
	}
	if err := f.archive.SaveBars(ctx, ticker, bars); err != nil {
		f.log.Warn("archive bars failed", logger.String("ticker", ticker), logger.Error(err))
	}
}

// NewChain builds the configured provider chain: the primary source with
// retries, then the archive, then synthetic data.
func NewChain(primary domrepo.BarSource, attempts int, delay time.Duration, archive domrepo.BarStore, synthetic bool, log *logger.Logger) *FallbackSource {
	var sources []domrepo.BarSource
	if primary != nil {
		sources = append(sources, NewRetrySource(primary, attempts, delay, log))
	}
	opts := []FallbackOption{WithFallbackLogger(log)}
	if archive != nil {
		sources = append(sources, NewArchiveSource(archive))
		opts = append(opts, WithArchive(archive))
	}
	if synthetic {
		sources = append(sources, NewSyntheticSource())
	}
	return NewFallbackSource(sources, opts...)
}
