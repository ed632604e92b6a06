package di

import (
	"context"
	"fmt"
	"time"

	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/handler/api"
	internalrepo "StockCast/internal/repository"
	"StockCast/internal/service/cache"
	"StockCast/internal/service/ratelimit"
	"StockCast/internal/services/forecast"
	"StockCast/internal/services/market"
	"StockCast/internal/services/model"
	"StockCast/internal/services/series"
	"StockCast/internal/usecase"
	pkgch "StockCast/pkg/clickhouse"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/metrics"
	"StockCast/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and its schema. It
// returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideBarStore wraps the ClickHouse client. Without a client there is no
// archive and the interface stays nil.
func ProvideBarStore(chClient *pkgch.Client, cfg *config.Config, log *applogger.Logger) domrepo.BarStore {
	if chClient == nil {
		return nil
	}
	store := internalrepo.NewCHBarStore(chClient, cfg.ClickHouse.Database)
	store.SetLogger(log)
	return store
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideResultPublisher publishes forecasts to the results topic.
func ProvideResultPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.ResultPublisher {
	if producer == nil || cfg.Kafka.Topics.Results == "" {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Results)
}

// ProvideCache prefers Redis and falls back to the in-process cache when
// Redis is disabled or unreachable at startup.
func ProvideCache(cfg *config.Config, log *applogger.Logger) cache.BytesCache {
	if !cfg.Redis.Enabled {
		return cache.NewTTLCache()
	}
	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rc.Ping(ctx); err != nil {
		log.Warn("redis unavailable, using in-memory cache", applogger.String("addr", cfg.Redis.Addr), applogger.Error(err))
		_ = rc.Close()
		return cache.NewTTLCache()
	}
	return rc
}

// ProvideBarSource builds the provider chain from the market section.
func ProvideBarSource(cfg *config.Config, store domrepo.BarStore, log *applogger.Logger) domrepo.BarSource {
	var primary domrepo.BarSource
	if cfg.Market.Provider == "yahoo" {
		primary = market.NewYahooSource(cfg.Market.BaseURL, cfg.Market.Timeout)
	} else {
		primary = market.NewSyntheticSource()
	}

	var archive domrepo.BarStore
	if cfg.Market.ArchiveFallback {
		archive = store
	}
	synthetic := cfg.Market.SyntheticFallback && cfg.Market.Provider != "synthetic"
	return market.NewChain(primary, cfg.Market.MaxRetries, cfg.Market.RetryDelay, archive, synthetic, log)
}

// ProvideModelLoader resolves model files under model.dir. Binary models need
// model.service_url.
func ProvideModelLoader(cfg *config.Config, log *applogger.Logger) domsvc.ModelLoader {
	opts := []model.LoaderOption{model.WithLogger(log)}
	if cfg.Model.ServiceURL != "" {
		opts = append(opts, model.WithRemote(model.NewHTTPServiceBase(cfg.Model.ServiceURL, cfg.Model.Timeout), cfg.Model.Retries))
	}
	return model.NewFileLoader(cfg.Model.Dir, cfg.Model.Extensions, opts...)
}

// ProvidePredictUseCase creates the forecast use case.
func ProvidePredictUseCase(
	cfg *config.Config,
	source domrepo.BarSource,
	loader domsvc.ModelLoader,
	c cache.BytesCache,
	store domrepo.BarStore,
	pub domrepo.ResultPublisher,
	rec domrepo.Metrics,
	log *applogger.Logger,
) *usecase.PredictUseCase {
	f := cfg.Forecast
	opts := usecase.PredictOptions{
		Engine: forecast.Config{
			SequenceLength:   f.SequenceLength,
			TrainFraction:    f.TrainSize,
			HorizonDays:      f.PredictionDays,
			TargetColumn:     series.ColClose,
			Period:           f.FetchPeriod,
			ScaleOnTrainOnly: f.ScaleOnTrainOnly,
		},
		MaxDays:         f.MaxPredictionDays,
		PerformanceDays: f.PerformanceDays,
		CacheTTL:        f.CacheTTL,
	}
	return usecase.NewPredictUseCase(opts, source, loader, c, store, pub, rec, log)
}

func ProvideHistoricalUseCase(source domrepo.BarSource) *usecase.HistoricalUseCase {
	return usecase.NewHistoricalUseCase(source)
}

func ProvideModelCheckUseCase(loader domsvc.ModelLoader) *usecase.ModelCheckUseCase {
	return usecase.NewModelCheckUseCase(loader)
}

func ProvideSearchUseCase(source domrepo.BarSource) *usecase.SearchUseCase {
	return usecase.NewSearchUseCase(source)
}

// ProvideRateLimiter returns the per-IP limiter for the predict route, or nil
// when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New()
}

// ProvideForecastHandler creates the REST handler. The predict route gets the
// per-IP rate limit when enabled.
func ProvideForecastHandler(
	cfg *config.Config,
	log *applogger.Logger,
	limiter *ratelimit.Limiter,
	predict *usecase.PredictUseCase,
	historical *usecase.HistoricalUseCase,
	check *usecase.ModelCheckUseCase,
	search *usecase.SearchUseCase,
) *api.ForecastHandler {
	h := api.NewForecastHandler(log, predict, historical, check, search)
	if limiter != nil {
		h.UsePredictMiddleware(ratelimit.Middleware(limiter, cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec))
	}
	return h
}

func ProvideStreamHandler(log *applogger.Logger, predict *usecase.PredictUseCase) *api.StreamHandler {
	return api.NewStreamHandler(log, predict)
}

// ProvideHTTPServer creates the Echo server with every handler registered.
// /healthz reports the archive when one is configured.
func ProvideHTTPServer(
	cfg *config.Config,
	log *applogger.Logger,
	fh *api.ForecastHandler,
	sh *api.StreamHandler,
	store domrepo.BarStore,
) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithAddress(cfg.Server.Host, cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(metricsPath, cfg.Server.SlowThreshold),
		xhttp.WithLogger(log),
	}
	if store != nil {
		opts = append(opts, xhttp.WithHealth(store.Health))
	}
	return xhttp.NewServer([]xhttp.Handler{fh, sh}, opts...)
}

// ProvideScheduler creates the refresh scheduler, or nil when no schedule or
// tickers are configured. With Redis the run is locked across replicas.
func ProvideScheduler(cfg *config.Config, predict *usecase.PredictUseCase, c cache.BytesCache, log *applogger.Logger) (*usecase.Scheduler, error) {
	if cfg.Forecast.Schedule == "" || len(cfg.Forecast.Tickers) == 0 {
		return nil, nil
	}
	s, err := usecase.NewScheduler(cfg.Forecast.Schedule, cfg.Forecast.Tickers, cfg.Forecast.PredictionDays, predict, log)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	s.SetParallelism(cfg.Forecast.RefreshWorkers)
	if l, ok := c.(cache.Locker); ok {
		s.SetLocker(l)
	}
	return s, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil
// when the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideForecastRequestHandler consumes forecast jobs from the requests topic.
func ProvideForecastRequestHandler(cfg *config.Config, predict *usecase.PredictUseCase, log *applogger.Logger) *usecase.ForecastRequestHandler {
	return usecase.NewForecastRequestHandler(cfg.Kafka.Topics.Requests, predict, log)
}

// ProvideApp creates the application server. Error logs are shipped to the
// logs topic when log.collect is set and Kafka is enabled.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.ForecastRequestHandler,
	scheduler *usecase.Scheduler,
	producer *pkgkafka.Producer,
	pub domrepo.ResultPublisher,
	c cache.BytesCache,
	chClient *pkgch.Client,
	limiter *ratelimit.Limiter,
) *server.App {
	if cfg.Log.Collect && producer != nil && cfg.Kafka.Topics.Logs != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.FlushInterval,
			Topic:        cfg.Kafka.Topics.Logs,
			Publisher:    producer,
		})
	}

	opts := []server.Option{server.WithCloser("publisher", pub)}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	if scheduler != nil {
		opts = append(opts, server.WithScheduler(scheduler))
	}
	// KafkaPublisher owns the producer; close it directly only when nothing else does.
	if _, nop := pub.(internalrepo.NopPublisher); nop && producer != nil {
		opts = append(opts, server.WithCloser("kafka producer", producer))
	}
	switch cc := c.(type) {
	case *cache.RedisCache:
		opts = append(opts, server.WithCloser("redis", cc))
	case *cache.TTLCache:
		opts = append(opts, server.WithPeriodic("cache purge", time.Minute, cc.Purge))
	}
	if limiter != nil {
		opts = append(opts, server.WithPeriodic("ratelimit buckets", 5*time.Minute, func() int {
			return limiter.Forget(10 * time.Minute)
		}))
	}
	if chClient != nil {
		opts = append(opts, server.WithCloser("clickhouse", chClient))
	}
	return server.New(cfg, log, httpServer, opts...)
}
