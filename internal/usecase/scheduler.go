package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"StockCast/internal/service/cache"
	"StockCast/pkg/logger"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

type refresher interface {
	Refresh(ctx context.Context, ticker string, days int) (*PredictResponse, error)
}

// Scheduler refreshes the forecasts of a fixed ticker list on a cron spec
// with seconds precision.
type Scheduler struct {
	cron     *cron.Cron
	predict  refresher
	tickers  []string
	days     int
	timeout  time.Duration
	parallel int
	log      *logger.Logger
	locker   cache.Locker

	mu      sync.Mutex
	running bool
}

func NewScheduler(spec string, tickers []string, days int, predict *PredictUseCase, log *logger.Logger) (*Scheduler, error) {
	return newScheduler(spec, tickers, days, predict, log)
}

func newScheduler(spec string, tickers []string, days int, predict refresher, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		predict:  predict,
		tickers:  tickers,
		days:     days,
		timeout:  5 * time.Minute,
		parallel: 1,
		log:      log,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("register forecast refresh %q: %w", spec, err)
	}
	return s, nil
}

// SetLocker makes every run take a shared lock first, so one replica refreshes
// per tick.
func (s *Scheduler) SetLocker(l cache.Locker) {
	s.locker = l
}

// SetParallelism bounds how many tickers refresh at once. Values below 1 mean 1.
func (s *Scheduler) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	s.parallel = n
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Strings("tickers", s.tickers))
}

// Stop stops the cron and waits for a running refresh to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// RunOnce refreshes every ticker, at most parallel at a time. Overlapping runs
// are skipped.
func (s *Scheduler) RunOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("forecast refresh still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.locker != nil {
		ttl := s.timeout * time.Duration(len(s.tickers))
		token, ok, err := s.locker.TryLock(context.Background(), cache.RefreshLockKey, ttl)
		if err != nil {
			s.log.Error("forecast refresh lock failed", logger.Error(err))
			return
		}
		if !ok {
			s.log.Info("forecast refresh held by another replica")
			return
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), cache.RefreshLockKey, token); err != nil {
				s.log.Warn("forecast refresh unlock failed", logger.Error(err))
			}
		}()
	}

	var failed atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(s.parallel)
	for _, t := range s.tickers {
		t := t
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			if _, err := s.predict.Refresh(ctx, t, s.days); err != nil {
				failed.Add(1)
				s.log.Error("scheduled forecast failed", logger.String("ticker", t), logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("forecast refresh done",
		logger.Int("tickers", len(s.tickers)),
		logger.Int("failed", int(failed.Load())),
	)
}
