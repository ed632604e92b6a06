// Package forecast drives a trained sequence model through evaluation and an
// autoregressive future rollout for one ticker.
//
// An Engine serves a single request and is not safe for concurrent use.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/services/evaluation"
	"StockCast/internal/services/series"
	"StockCast/internal/services/window"
	xutil "StockCast/pkg/util"
)

var (
	ErrTrainFraction = errors.New("train fraction must be positive and finite")
	ErrHorizon       = errors.New("horizon must be >= 1 day")
	ErrPredictCount  = errors.New("model returned wrong number of predictions")
)

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers a callback for state changes.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithClock overrides the time source used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine orchestrates fetch, clean, window, evaluate and forecast.
type Engine struct {
	cfg    Config
	ticker string
	source domrepo.BarSource

	state State
	err   error

	bars      []models.Bar
	store     *series.Store
	set       *window.Set
	model     domsvc.SequenceModel
	modelName string
	result    models.ForecastResult

	observers []Observer
	now       func() time.Time
}

// New creates an engine in StateCreated.
func New(ticker string, source domrepo.BarSource, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("forecast config: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("forecast: bar source is required")
	}
	e := &Engine{
		cfg:    cfg,
		ticker: ticker,
		source: source,
		state:  StateCreated,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) State() State { return e.state }

// Err returns the error that moved the engine to StateFailed.
func (e *Engine) Err() error { return e.err }

func (e *Engine) Config() Config { return e.cfg }

// Windows exposes the current window set. Nil before PrepareWindows.
func (e *Engine) Windows() *window.Set { return e.set }

// LoadData fetches the full history for the ticker.
func (e *Engine) LoadData(ctx context.Context) error {
	if err := e.require("LoadData", StateCreated); err != nil {
		return err
	}
	need := e.cfg.MinRows()
	bars, err := e.source.FetchDaily(ctx, e.ticker, e.cfg.Period)
	if err != nil {
		return e.fail(&models.DataUnavailableError{Ticker: e.ticker, Need: need, Err: err})
	}
	if len(bars) < need {
		return e.fail(&models.DataUnavailableError{Ticker: e.ticker, Rows: len(bars), Need: need})
	}
	e.bars = bars
	e.store = series.NewStore(bars)
	e.transition(StateDataLoaded)
	return nil
}

// PrepareWindows cleans the series, adds features and cuts windows.
func (e *Engine) PrepareWindows() error {
	if err := e.require("PrepareWindows", StateDataLoaded); err != nil {
		return err
	}
	e.store.Clean()
	if err := e.store.AddFeatures(); err != nil {
		return e.fail(err)
	}
	set, err := e.windows(e.cfg.TrainFraction)
	if err != nil {
		return e.fail(err)
	}
	if set.Len() < 2 {
		return e.fail(&models.InsufficientDataError{Stage: "windows", Have: set.Len(), Need: 2})
	}
	e.set = set
	e.transition(StateWindowsReady)
	return nil
}

// AttachModel stores an already trained model handle.
func (e *Engine) AttachModel(model domsvc.SequenceModel, name string) error {
	if err := e.require("AttachModel", StateWindowsReady); err != nil {
		return err
	}
	if model == nil {
		return e.fail(&models.ModelNotFoundError{Ticker: e.ticker})
	}
	e.model = model
	e.modelName = name
	e.transition(StateModelLoaded)
	return nil
}

// Evaluate predicts the chronological holdout that starts at floor(N*trainFraction)
// and scores the de-normalized predictions against the actual values. Fractions
// that are not positive and finite fail with ErrTrainFraction. A finite fraction
// of 1 or more leaves no holdout and fails with EmptyEvaluationSetError.
func (e *Engine) Evaluate(ctx context.Context, trainFraction float64) error {
	if err := e.require("Evaluate", StateModelLoaded); err != nil {
		return err
	}
	if !(trainFraction > 0) || math.IsInf(trainFraction, 1) {
		return e.fail(fmt.Errorf("%w, got %v", ErrTrainFraction, trainFraction))
	}
	set, err := e.windows(trainFraction)
	if err != nil {
		return e.fail(err)
	}
	e.set = set

	split := set.SplitIndex(trainFraction)
	if split >= set.Len() {
		return e.fail(&models.EmptyEvaluationSetError{Windows: set.Len(), TrainFraction: trainFraction})
	}
	preds, err := e.model.PredictBatch(ctx, set.Windows[split:])
	if err != nil {
		return e.fail(fmt.Errorf("predict evaluation windows: %w", err))
	}
	if len(preds) != set.Len()-split {
		return e.fail(fmt.Errorf("%w: got %d, want %d", ErrPredictCount, len(preds), set.Len()-split))
	}

	predicted := set.Scaler.InverseTransformAll(preds)
	actual := set.Scaler.InverseTransformAll(set.Targets[split:])
	metrics, err := evaluation.Calculate(actual, predicted)
	if err != nil {
		return e.fail(err)
	}

	e.result.EvalDates = append([]time.Time(nil), set.TargetDates[split:]...)
	e.result.Predictions = predicted
	e.result.Actuals = actual
	e.result.Metrics = metrics
	e.transition(StateEvaluated)
	return nil
}

// ForecastFuture rolls the model forward horizonDays steps, feeding each
// prediction back as the newest input. Dates step one calendar day from the day
// after the last observed bar.
func (e *Engine) ForecastFuture(ctx context.Context, horizonDays int) error {
	if err := e.require("ForecastFuture", StateEvaluated, StateForecasted); err != nil {
		return err
	}
	if horizonDays < 1 {
		return e.fail(fmt.Errorf("%w, got %d", ErrHorizon, horizonDays))
	}
	s := e.cfg.SequenceLength
	current := e.set.Tail(s)
	scaled := make([]float64, 0, horizonDays)
	for step := 0; step < horizonDays; step++ {
		out, err := e.model.PredictBatch(ctx, [][]float64{current})
		if err != nil {
			return e.fail(fmt.Errorf("predict step %d: %w", step+1, err))
		}
		if len(out) != 1 {
			return e.fail(fmt.Errorf("%w: got %d, want 1", ErrPredictCount, len(out)))
		}
		next := make([]float64, s)
		copy(next, current[1:])
		next[s-1] = out[0]
		current = next
		scaled = append(scaled, out[0])
	}

	last, _ := e.store.LastDate()
	prices := e.set.Scaler.InverseTransformAll(scaled)
	dates := xutil.CalendarDaysAfter(last, horizonDays)
	future := make([]models.ForecastPoint, horizonDays)
	for i := range future {
		future[i] = models.ForecastPoint{Date: dates[i], Price: prices[i]}
	}
	e.result.Future = future
	e.transition(StateForecasted)
	return nil
}

// Result returns the assembled forecast. It is complete only in StateForecasted.
func (e *Engine) Result() *models.ForecastResult {
	r := e.result
	r.Ticker = e.ticker
	r.Model = e.modelName
	r.Bars = e.bars
	r.GeneratedAt = e.now()
	return &r
}

// Run executes every stage in order, loading the model through loader after the
// windows are ready.
func (e *Engine) Run(ctx context.Context, loader domsvc.ModelLoader) (*models.ForecastResult, error) {
	if err := e.LoadData(ctx); err != nil {
		return nil, err
	}
	if err := e.PrepareWindows(); err != nil {
		return nil, err
	}
	var (
		model domsvc.SequenceModel
		name  string
	)
	if loader != nil {
		m, n, err := loader.Load(ctx, e.ticker)
		var mnf *models.ModelNotFoundError
		switch {
		case errors.As(err, &mnf):
			return nil, e.fail(err)
		case err != nil:
			return nil, e.fail(fmt.Errorf("load model: %w", err))
		}
		model, name = m, n
	}
	if err := e.AttachModel(model, name); err != nil {
		return nil, err
	}
	if err := e.Evaluate(ctx, e.cfg.TrainFraction); err != nil {
		return nil, err
	}
	if err := e.ForecastFuture(ctx, e.cfg.HorizonDays); err != nil {
		return nil, err
	}
	return e.Result(), nil
}

func (e *Engine) windows(trainFraction float64) (*window.Set, error) {
	if e.cfg.ScaleOnTrainOnly {
		return window.PrepareTrainScaled(e.store, e.cfg.SequenceLength, e.cfg.TargetColumn, trainFraction)
	}
	return window.Prepare(e.store, e.cfg.SequenceLength, e.cfg.TargetColumn)
}

func (e *Engine) require(op string, allowed ...State) error {
	for _, s := range allowed {
		if e.state == s {
			return nil
		}
	}
	return &StateError{Op: op, State: e.state}
}

func (e *Engine) transition(to State) {
	from := e.state
	e.state = to
	for _, o := range e.observers {
		o(from, to, e.err)
	}
}

func (e *Engine) fail(err error) error {
	e.err = err
	e.transition(StateFailed)
	return err
}
