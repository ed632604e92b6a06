package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/service/cache"
	"StockCast/internal/services/forecast"
	"StockCast/internal/services/model"
	xhttp "StockCast/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

func linearBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + 0.5*float64(i)
		bars[i] = models.Bar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c - 0.25,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: int64(1_000_000 + i),
		}
	}
	return bars
}

type countingSource struct {
	mu      sync.Mutex
	bars    []models.Bar
	err     error
	calls   int
	periods []string
}

func (s *countingSource) Name() string { return "test" }

func (s *countingSource) FetchDaily(_ context.Context, _ string, period string) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.periods = append(s.periods, period)
	return s.bars, s.err
}

type fixedLoader struct {
	m    domsvc.SequenceModel
	path string
	err  error
}

func (l fixedLoader) Locate(string) (string, bool) { return l.path, l.err == nil && l.path != "" }

func (l fixedLoader) Load(context.Context, string) (domsvc.SequenceModel, string, error) {
	return l.m, "lstm_model.json", l.err
}

type memStore struct {
	forecasts []*models.ForecastResult
}

func (m *memStore) SaveBars(context.Context, string, []models.Bar) error { return nil }

func (m *memStore) LoadBars(context.Context, string, string) ([]models.Bar, error) { return nil, nil }

func (m *memStore) SaveForecast(_ context.Context, r *models.ForecastResult) error {
	m.forecasts = append(m.forecasts, r)
	return nil
}

func (m *memStore) Health(context.Context) error { return nil }

type memPublisher struct {
	events []*models.ForecastEvent
	err    error
}

func (p *memPublisher) PublishForecast(_ context.Context, ev *models.ForecastEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *memPublisher) Close() error { return nil }

type recMetrics struct {
	hits, misses int
	forecasts    int
	stages       []string
	quality      map[string]models.Metrics
}

func (r *recMetrics) RecordForecast(string, string) { r.forecasts++ }

func (r *recMetrics) RecordError(stage string) { r.stages = append(r.stages, stage) }

func (r *recMetrics) RecordLatency(string, float64) {}

func (r *recMetrics) RecordQuality(ticker string, m models.Metrics) {
	if r.quality == nil {
		r.quality = map[string]models.Metrics{}
	}
	r.quality[ticker] = m
}

func (r *recMetrics) RecordCache(hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

type fixture struct {
	uc      *PredictUseCase
	source  *countingSource
	store   *memStore
	pub     *memPublisher
	metrics *recMetrics
}

func newFixture(t *testing.T, loader domsvc.ModelLoader) *fixture {
	t.Helper()
	if loader == nil {
		naive, err := model.NewLinear(model.Spec{Name: "naive", Kind: model.KindNaive})
		require.NoError(t, err)
		loader = fixedLoader{m: naive, path: "models/lstm_model.json"}
	}
	f := &fixture{
		source:  &countingSource{bars: linearBars(549)},
		store:   &memStore{},
		pub:     &memPublisher{},
		metrics: &recMetrics{},
	}
	f.uc = NewPredictUseCase(PredictOptions{
		Engine:   forecast.DefaultConfig(),
		MaxDays:  365,
		CacheTTL: time.Minute,
	}, f.source, loader, cache.NewTTLCache(), f.store, f.pub, f.metrics, nil)
	f.uc.now = func() time.Time { return time.Date(2023, 7, 5, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestPredictRunsThenServesFromCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.uc.Predict(ctx, " aapl ", 5)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, "lstm_model.json", resp.Model)
	assert.Equal(t, []string{"max"}, f.source.periods)

	require.Len(t, resp.Future.Predictions, 5)
	assert.Equal(t, "2023-07-06", resp.Future.Dates[0])
	for _, p := range resp.Future.Predictions {
		assert.Equal(t, 374.0, p)
	}
	assert.Len(t, resp.Historical.Dates, 88)
	assert.Len(t, resp.Historical.Actual, 88)
	require.Len(t, resp.Bars, 549)
	assert.Equal(t, "2022-01-03", resp.Bars[0].Date)
	assert.Equal(t, 374.0, resp.Bars[548].Close)
	assert.InDelta(t, 0.5, resp.Metrics.MAE, 1e-9)
	assert.InDelta(t, 0.5, resp.Metrics.RMSE, 1e-9)

	require.NotNil(t, resp.Performance)
	assert.Equal(t, 374.0, resp.Performance.EndPrice)
	assert.Equal(t, 359.5, resp.Performance.StartPrice)
	require.NotNil(t, resp.Info)
	assert.Equal(t, 373.5, resp.Info.PreviousClose)
	assert.Equal(t, 0.5, resp.Info.Change)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, 5, f.pub.events[0].Horizon)
	assert.Equal(t, 374.0, f.pub.events[0].LastClose)
	require.Len(t, f.store.forecasts, 1)
	assert.Equal(t, 1, f.metrics.forecasts)
	assert.Contains(t, f.metrics.quality, "AAPL")

	again, err := f.uc.Predict(ctx, "AAPL", 5)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, resp.Future, again.Future)
	assert.Equal(t, resp.Bars, again.Bars)
	assert.Equal(t, 1, f.source.calls)
	assert.Equal(t, 1, f.metrics.hits)
	assert.Equal(t, 1, f.metrics.misses)

	_, err = f.uc.Predict(ctx, "AAPL", 6)
	require.NoError(t, err)
	assert.Equal(t, 2, f.source.calls)
}

func TestRefreshBypassesCache(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.uc.Predict(context.Background(), "AAPL", 3)
	require.NoError(t, err)
	resp, err := f.uc.Refresh(context.Background(), "AAPL", 3)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, f.source.calls)
	assert.Len(t, f.pub.events, 2)
}

func TestPredictArguments(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name   string
		ticker string
		days   int
	}{
		{name: "empty ticker", ticker: "", days: 5},
		{name: "bad ticker", ticker: "AA PL", days: 5},
		{name: "negative days", ticker: "AAPL", days: -1},
		{name: "beyond max", ticker: "AAPL", days: 366},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Predict(context.Background(), tt.ticker, tt.days)
			var appErr *xhttp.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, http.StatusBadRequest, appErr.Status)
		})
	}
	assert.Zero(t, f.source.calls)

	resp, err := f.uc.Predict(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Len(t, resp.Future.Dates, 30)
}

func TestPredictFailures(t *testing.T) {
	f := newFixture(t, fixedLoader{err: &models.ModelNotFoundError{Ticker: "AAPL"}})
	_, err := f.uc.Predict(context.Background(), "AAPL", 5)
	var mnf *models.ModelNotFoundError
	require.True(t, errors.As(err, &mnf))
	assert.Equal(t, []string{"model"}, f.metrics.stages)
	assert.Empty(t, f.pub.events)

	f = newFixture(t, nil)
	f.source.bars = linearBars(100)
	_, err = f.uc.Predict(context.Background(), "AAPL", 5)
	var insuff *models.InsufficientDataError
	require.True(t, errors.As(err, &insuff))
	assert.Equal(t, []string{"data"}, f.metrics.stages)
}

func TestPublishFailureDoesNotFailForecast(t *testing.T) {
	f := newFixture(t, nil)
	f.pub.err = errors.New("broker down")
	resp, err := f.uc.Predict(context.Background(), "AAPL", 2)
	require.NoError(t, err)
	assert.Len(t, resp.Future.Dates, 2)
}

func TestStreamReportsStates(t *testing.T) {
	f := newFixture(t, nil)
	var states []forecast.State
	resp, err := f.uc.Stream(context.Background(), "AAPL", 2, func(_, to forecast.State, _ error) {
		states = append(states, to)
	})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, []forecast.State{
		forecast.StateDataLoaded,
		forecast.StateWindowsReady,
		forecast.StateModelLoaded,
		forecast.StateEvaluated,
		forecast.StateForecasted,
	}, states)
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		stage  string
	}{
		{name: "insufficient", err: &models.InsufficientDataError{Stage: "windows", Have: 1, Need: 2}, status: 422, stage: "data"},
		{name: "unavailable", err: &models.DataUnavailableError{Ticker: "X"}, status: 502, stage: "fetch"},
		{name: "no model", err: &models.ModelNotFoundError{Ticker: "X"}, status: 404, stage: "model"},
		{name: "empty eval", err: &models.EmptyEvaluationSetError{Windows: 3}, status: 400, stage: "evaluate"},
		{name: "metrics", err: &models.MetricsComputationError{Metric: "mape"}, status: 500, stage: "evaluate"},
		{name: "timeout", err: context.DeadlineExceeded, status: 504, stage: "cancelled"},
		{name: "other", err: errors.New("boom"), status: 500, stage: "predict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appErr *xhttp.AppError
			require.True(t, errors.As(ToAppError(tt.err), &appErr))
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.stage, Stage(tt.err))
		})
	}
	assert.NoError(t, ToAppError(nil))

	bad := xhttp.BadRequestError("x")
	assert.Same(t, bad, ToAppError(bad))
}

func TestAppErrorOfNeverNil(t *testing.T) {
	for _, err := range []error{nil, errors.New("boom"), context.Canceled} {
		appErr := AppErrorOf(err)
		require.NotNil(t, appErr)
		assert.NotEmpty(t, appErr.Code)
		assert.NotEmpty(t, appErr.Message)
	}

	wrapped := fmt.Errorf("stream: %w", xhttp.NotFoundError("no model"))
	assert.Equal(t, http.StatusNotFound, AppErrorOf(wrapped).Status)
}

func TestBuildStockInfo(t *testing.T) {
	bars := linearBars(300)
	bars[299].Volume = models.MissingVolume
	info := BuildStockInfo("AAPL", bars)
	require.NotNil(t, info)
	assert.Equal(t, 100+0.5*298, info.CurrentPrice)
	assert.Equal(t, 100+0.5*297, info.PreviousClose)
	assert.Equal(t, 100+0.5*298+1, info.High52Week)
	assert.Equal(t, 100+0.5*47-1, info.Low52Week)
	assert.InDelta(t, 1_000_149, info.AvgVolume, 1e-6)

	assert.Nil(t, BuildStockInfo("AAPL", nil))
	one := BuildStockInfo("AAPL", linearBars(1))
	assert.Equal(t, one.CurrentPrice, one.PreviousClose)
}

func TestRecentPerformance(t *testing.T) {
	p := RecentPerformance(linearBars(100), 30)
	require.NotNil(t, p)
	assert.Equal(t, 135.0, p.StartPrice)
	assert.Equal(t, 149.5, p.EndPrice)
	assert.Equal(t, 14.5, p.Change)
	assert.InDelta(t, 14.5/135*100, p.ChangePct, 1e-9)
	assert.Equal(t, 150.5, p.High)
	assert.Equal(t, 134.0, p.Low)

	short := RecentPerformance(linearBars(10), 30)
	assert.Equal(t, 100.0, short.StartPrice)
	assert.Nil(t, RecentPerformance(nil, 30))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.2346, round(1.23456, 4))
	assert.Equal(t, -1.24, round(-1.235, 2))
	assert.Equal(t, 0.0, round(nanValue(), 2))
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}

func TestHistorical(t *testing.T) {
	src := &countingSource{bars: linearBars(5)}
	src.bars[2].Close = nanValue()
	uc := NewHistoricalUseCase(src)

	resp, err := uc.Get(context.Background(), "msft", "")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", resp.Ticker)
	assert.Equal(t, "1y", resp.Period)
	assert.Equal(t, []string{"1y"}, src.periods)
	require.Len(t, resp.Bars, 4)
	assert.Equal(t, "2022-01-03", resp.Bars[0].Date)

	src.bars = nil
	_, err = uc.Get(context.Background(), "MSFT", "5y")
	var du *models.DataUnavailableError
	assert.True(t, errors.As(err, &du))
}

func TestModelCheck(t *testing.T) {
	found := NewModelCheckUseCase(fixedLoader{path: "models/AAPL_lstm_model.h5"}).Check("aapl")
	assert.Equal(t, &ModelCheckResponse{Ticker: "AAPL", Exists: true, Path: "models/AAPL_lstm_model.h5"}, found)

	missing := NewModelCheckUseCase(fixedLoader{}).Check("AAPL")
	assert.False(t, missing.Exists)
	assert.Equal(t, "No model found", missing.Message)
}

func TestSearch(t *testing.T) {
	src := &countingSource{bars: linearBars(10)}
	info, err := NewSearchUseCase(src).Search(context.Background(), "tsla")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", info.Symbol)
	assert.Equal(t, 104.5, info.CurrentPrice)
	assert.Equal(t, 0.48, info.ChangePct)
	assert.Equal(t, []string{"1y"}, src.periods)

	src.err = &models.DataUnavailableError{Ticker: "TSLA"}
	_, err = NewSearchUseCase(src).Search(context.Background(), "TSLA")
	assert.Error(t, err)
}

func TestForecastRequestHandler(t *testing.T) {
	f := newFixture(t, nil)
	h := NewForecastRequestHandler("forecast.requests", f.uc, nil)
	assert.Equal(t, "forecast.requests", h.Topic())

	assert.NoError(t, h.Handle(context.Background(), []byte("{")))
	assert.Equal(t, []string{"consumer_unmarshal"}, f.metrics.stages)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"ticker":"AAPL","days":3}`)))
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, 3, f.pub.events[0].Horizon)

	f.source.err = &models.DataUnavailableError{Ticker: "AAPL"}
	assert.Error(t, h.Handle(context.Background(), []byte(`{"ticker":"AAPL","days":3}`)))

	f.source.err = nil
	f.source.bars = linearBars(100)
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"ticker":"AAPL","days":3}`)))
}

type recRefresher struct {
	mu      sync.Mutex
	tickers []string
}

func (r *recRefresher) Refresh(_ context.Context, ticker string, _ int) (*PredictResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickers = append(r.tickers, ticker)
	if ticker == "BAD" {
		return nil, errors.New("boom")
	}
	return &PredictResponse{Ticker: ticker}, nil
}

func TestScheduler(t *testing.T) {
	r := &recRefresher{}
	s, err := newScheduler("0 0 22 * * 1-5", []string{"AAPL", "BAD", "MSFT"}, 30, r, nil)
	require.NoError(t, err)
	s.RunOnce()
	assert.Equal(t, []string{"AAPL", "BAD", "MSFT"}, r.tickers)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	_, err = newScheduler("not a spec", nil, 30, r, nil)
	assert.Error(t, err)
}

func TestSchedulerParallel(t *testing.T) {
	r := &recRefresher{}
	tickers := []string{"AAPL", "BAD", "MSFT", "TSLA", "NVDA"}
	s, err := newScheduler("0 0 22 * * 1-5", tickers, 30, r, nil)
	require.NoError(t, err)
	s.SetParallelism(3)
	s.RunOnce()
	assert.ElementsMatch(t, tickers, r.tickers)

	s.SetParallelism(0)
	assert.Equal(t, 1, s.parallel)
}

type memLocker struct {
	held     map[string]string
	err      error
	next     int
	unlocked int
	lost     int
}

func (l *memLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.next++
	token := strconv.Itoa(l.next)
	l.held[key] = token
	return token, true, nil
}

func (l *memLocker) Unlock(_ context.Context, key, token string) error {
	if l.held[key] != token {
		l.lost++
		return cache.ErrLockLost
	}
	delete(l.held, key)
	l.unlocked++
	return nil
}

// stealingRefresher hands the lock to another holder mid-run, as if it expired.
type stealingRefresher struct {
	recRefresher
	locker *memLocker
}

func (r *stealingRefresher) Refresh(ctx context.Context, ticker string, days int) (*PredictResponse, error) {
	r.locker.held[cache.RefreshLockKey] = "other-replica"
	return r.recRefresher.Refresh(ctx, ticker, days)
}

func TestSchedulerLock(t *testing.T) {
	r := &recRefresher{}
	s, err := newScheduler("0 0 22 * * 1-5", []string{"AAPL"}, 30, r, nil)
	require.NoError(t, err)

	l := &memLocker{held: map[string]string{}}
	s.SetLocker(l)
	s.RunOnce()
	assert.Equal(t, []string{"AAPL"}, r.tickers)
	assert.Equal(t, 1, l.unlocked)
	assert.Empty(t, l.held)

	l.held[cache.RefreshLockKey] = "other-replica"
	s.RunOnce()
	assert.Len(t, r.tickers, 1)

	l.held = map[string]string{}
	l.err = errors.New("redis down")
	s.RunOnce()
	assert.Len(t, r.tickers, 1)
}

func TestSchedulerKeepsLockTakenByAnotherReplica(t *testing.T) {
	l := &memLocker{held: map[string]string{}}
	r := &stealingRefresher{locker: l}
	s, err := newScheduler("0 0 22 * * 1-5", []string{"AAPL"}, 30, r, nil)
	require.NoError(t, err)
	s.SetLocker(l)

	s.RunOnce()
	assert.Equal(t, []string{"AAPL"}, r.tickers)
	assert.Equal(t, 1, l.lost)
	assert.Equal(t, 0, l.unlocked)
	assert.Equal(t, "other-replica", l.held[cache.RefreshLockKey])
}
