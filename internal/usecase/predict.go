package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/service/cache"
	"StockCast/internal/services/forecast"
	xhttp "StockCast/pkg/http"
	"StockCast/pkg/logger"
	pkgmetrics "StockCast/pkg/metrics"
	"StockCast/pkg/util"
)

// PredictOptions holds the service-wide forecast defaults.
type PredictOptions struct {
	Engine          forecast.Config
	MaxDays         int
	PerformanceDays int
	CacheTTL        time.Duration
	Timeout         time.Duration
}

// PredictUseCase runs a forecast for one ticker and fans the result out to
// the cache, the archive and the results topic.
type PredictUseCase struct {
	opts      PredictOptions
	source    domrepo.BarSource
	loader    domsvc.ModelLoader
	cache     cache.BytesCache
	store     domrepo.BarStore
	publisher domrepo.ResultPublisher
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewPredictUseCase(
	opts PredictOptions,
	source domrepo.BarSource,
	loader domsvc.ModelLoader,
	c cache.BytesCache,
	store domrepo.BarStore,
	publisher domrepo.ResultPublisher,
	rec domrepo.Metrics,
	log *logger.Logger,
) *PredictUseCase {
	if log == nil {
		log = logger.Nop()
	}
	if rec == nil {
		rec = pkgmetrics.Nop{}
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 365
	}
	if opts.PerformanceDays <= 0 {
		opts.PerformanceDays = 30
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &PredictUseCase{
		opts:      opts,
		source:    source,
		loader:    loader,
		cache:     c,
		store:     store,
		publisher: publisher,
		metrics:   rec,
		log:       log,
		now:       time.Now,
	}
}

// Predict returns a cached forecast when one is fresh, otherwise runs the engine.
func (uc *PredictUseCase) Predict(ctx context.Context, ticker string, days int) (*PredictResponse, error) {
	ticker, err := uc.checkArgs(ticker, &days)
	if err != nil {
		return nil, err
	}
	if resp, ok := uc.cached(ctx, ticker, days); ok {
		return resp, nil
	}
	return uc.run(ctx, ticker, days)
}

// Refresh always runs the engine and overwrites the cached forecast.
func (uc *PredictUseCase) Refresh(ctx context.Context, ticker string, days int) (*PredictResponse, error) {
	ticker, err := uc.checkArgs(ticker, &days)
	if err != nil {
		return nil, err
	}
	return uc.run(ctx, ticker, days)
}

// Stream runs the engine uncached and reports every state change to observer.
func (uc *PredictUseCase) Stream(ctx context.Context, ticker string, days int, observer forecast.Observer) (*PredictResponse, error) {
	ticker, err := uc.checkArgs(ticker, &days)
	if err != nil {
		return nil, err
	}
	return uc.run(ctx, ticker, days, forecast.WithObserver(observer))
}

func (uc *PredictUseCase) checkArgs(ticker string, days *int) (string, error) {
	ticker = util.NormalizeTicker(ticker)
	if !xhttp.IsTicker(ticker) {
		return "", xhttp.BadRequestErrorf("invalid ticker %q", ticker)
	}
	if *days == 0 {
		*days = uc.opts.Engine.HorizonDays
	}
	if *days < 1 || *days > uc.opts.MaxDays {
		return "", xhttp.BadRequestErrorf("days must be between 1 and %d", uc.opts.MaxDays)
	}
	return ticker, nil
}

func (uc *PredictUseCase) cached(ctx context.Context, ticker string, days int) (*PredictResponse, bool) {
	if uc.cache == nil {
		return nil, false
	}
	b, ok, err := uc.cache.GetBytes(ctx, cache.ForecastKey(ticker, days))
	if err != nil {
		uc.log.Warn("forecast cache read failed", logger.String("ticker", ticker), logger.Error(err))
	}
	if ok {
		var resp PredictResponse
		if err := json.Unmarshal(b, &resp); err == nil {
			uc.metrics.RecordCache(true)
			resp.Cached = true
			return &resp, true
		}
	}
	uc.metrics.RecordCache(false)
	return nil, false
}

func (uc *PredictUseCase) run(ctx context.Context, ticker string, days int, opts ...forecast.Option) (*PredictResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
	defer cancel()

	cfg := uc.opts.Engine
	cfg.HorizonDays = days
	opts = append(opts, forecast.WithClock(uc.now))
	eng, err := forecast.New(ticker, uc.source, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	start := time.Now()
	res, err := eng.Run(ctx, uc.loader)
	uc.metrics.RecordLatency("forecast", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordError(Stage(err))
		uc.log.Error("forecast failed",
			logger.String("ticker", ticker),
			logger.Int("days", days),
			logger.String("state", eng.State().String()),
			logger.Error(err),
		)
		return nil, err
	}
	uc.metrics.RecordForecast(ticker, res.Model)
	uc.metrics.RecordQuality(ticker, res.Metrics)

	resp := newPredictResponse(res, BuildStockInfo(ticker, res.Bars), RecentPerformance(res.Bars, uc.opts.PerformanceDays))
	uc.log.Info("forecast complete",
		logger.String("ticker", ticker),
		logger.String("model", res.Model),
		logger.Int("days", days),
		logger.Float64("rmse", res.Metrics.RMSE),
		logger.Duration("duration_ms", time.Since(start)),
	)

	uc.fanOut(ctx, res, resp, days)
	return resp, nil
}

// fanOut stores and publishes a completed forecast. Failures are logged only.
func (uc *PredictUseCase) fanOut(ctx context.Context, res *models.ForecastResult, resp *PredictResponse, days int) {
	if uc.cache != nil && uc.opts.CacheTTL > 0 {
		if b, err := json.Marshal(resp); err == nil {
			if err := uc.cache.SetBytes(ctx, cache.ForecastKey(res.Ticker, days), b, uc.opts.CacheTTL); err != nil {
				uc.log.Warn("forecast cache write failed", logger.String("ticker", res.Ticker), logger.Error(err))
			}
		}
	}
	if uc.store != nil {
		if err := uc.store.SaveForecast(ctx, res); err != nil {
			uc.log.Warn("archive forecast failed", logger.String("ticker", res.Ticker), logger.Error(err))
		}
	}
	if uc.publisher != nil {
		ev := &models.ForecastEvent{
			Ticker:      res.Ticker,
			Model:       res.Model,
			Horizon:     days,
			LastClose:   res.LastClose(),
			Metrics:     res.Metrics,
			Future:      res.Future,
			GeneratedAt: res.GeneratedAt,
		}
		if err := uc.publisher.PublishForecast(ctx, ev); err != nil {
			uc.log.Warn("publish forecast failed", logger.String("ticker", res.Ticker), logger.Error(err))
		}
	}
}
