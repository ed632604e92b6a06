package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"StockCast/internal/usecase"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	scheduler  *usecase.Scheduler
	closers    []namedCloser
	periodic   []periodicTask

	stop chan struct{}
	wg   sync.WaitGroup
}

type periodicTask struct {
	name  string
	every time.Duration
	fn    func() int
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Option attaches an optional component to App.
type Option func(*App)

// WithConsumer runs the consumer with kh registered on it.
func WithConsumer(consumer *pkgkafka.Consumer, kh pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = consumer
		a.kh = kh
	}
}

func WithScheduler(s *usecase.Scheduler) Option {
	return func(a *App) {
		a.scheduler = s
	}
}

// WithCloser closes c during shutdown, after every producer of work has stopped.
// Closers run in the order they were added.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

// WithPeriodic runs fn every interval until shutdown. fn returns how many
// items it removed, which is logged at debug level.
func WithPeriodic(name string, every time.Duration, fn func() int) Option {
	return func(a *App) {
		if every > 0 && fn != nil {
			a.periodic = append(a.periodic, periodicTask{name: name, every: every, fn: fn})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(); err != nil {
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) start() error {
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		a.consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook()))
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.scheduler != nil {
		a.scheduler.Start()
		a.log.Info("forecast refresh scheduled",
			applogger.String("schedule", a.cfg.Forecast.Schedule),
			applogger.Strings("tickers", a.cfg.Forecast.Tickers),
		)
	}

	for _, t := range a.periodic {
		a.wg.Add(1)
		go a.runPeriodic(t)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

func (a *App) runPeriodic(t periodicTask) {
	defer a.wg.Done()
	ticker := time.NewTicker(t.every)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			if n := t.fn(); n > 0 {
				a.log.Debug("housekeeping", applogger.String("task", t.name), applogger.Int("removed", n))
			}
		}
	}
}

// shutdown stops intake first (HTTP, consumer, scheduler), then closes the
// clients the in-flight work writes to.
func (a *App) shutdown() {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.scheduler != nil {
		a.scheduler.Stop(ctx)
	}

	close(a.stop)
	a.wg.Wait()

	// flush aggregated error logs while the producer is still open
	a.log.RemoveCollector()

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("component", nc.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
