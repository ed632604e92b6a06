package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORS            bool          `yaml:"cors"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		// Collect ships aggregated error logs to kafka.topics.logs.
		Collect       bool          `yaml:"collect"`
		FlushInterval time.Duration `yaml:"flush_interval"`
	} `yaml:"log"`
	Forecast ForecastConfig `yaml:"forecast"`
	Market   MarketConfig   `yaml:"market"`
	Model    ModelConfig    `yaml:"model"`
	Kafka    struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			Requests string `yaml:"requests"`
			Results  string `yaml:"results"`
			Logs     string `yaml:"logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled"`
		Capacity     int     `yaml:"capacity"`
		RefillPerSec float64 `yaml:"refill_per_sec"`
	} `yaml:"ratelimit"`
}

// ForecastConfig holds the defaults every forecast request starts from.
type ForecastConfig struct {
	SequenceLength    int           `yaml:"sequence_length"`
	TrainSize         float64       `yaml:"train_size"`
	PredictionDays    int           `yaml:"prediction_days"`
	MaxPredictionDays int           `yaml:"max_prediction_days"`
	PerformanceDays   int           `yaml:"performance_days"`
	HistoricalPeriod  string        `yaml:"historical_period"`
	FetchPeriod       string        `yaml:"fetch_period"`
	ScaleOnTrainOnly  bool          `yaml:"scale_on_train_only"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	// Schedule is a six-field cron spec. Empty disables scheduled refreshes.
	Schedule string   `yaml:"schedule"`
	Tickers  []string `yaml:"tickers"`
	// RefreshWorkers bounds concurrent refreshes in a scheduled run.
	RefreshWorkers int `yaml:"refresh_workers"`
}

type MarketConfig struct {
	Provider          string        `yaml:"provider"` // yahoo or synthetic
	BaseURL           string        `yaml:"base_url"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	Timeout           time.Duration `yaml:"timeout"`
	SyntheticFallback bool          `yaml:"synthetic_fallback"`
	// ArchiveFallback reads bars back from ClickHouse when the provider fails.
	ArchiveFallback bool `yaml:"archive_fallback"`
}

type ModelConfig struct {
	Dir        string        `yaml:"dir"`
	Extensions []string      `yaml:"extensions"`
	ServiceURL string        `yaml:"service_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
}

// Default returns a configuration that runs with no external services.
func Default() *Config {
	c := &Config{Environment: "development"}
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.CORS = true
	c.Server.SlowThreshold = 2 * time.Second
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"
	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Log.Output = "stdout"
	c.Log.FlushInterval = 30 * time.Second
	c.Forecast = ForecastConfig{
		SequenceLength:    60,
		TrainSize:         0.8,
		PredictionDays:    30,
		MaxPredictionDays: 365,
		PerformanceDays:   30,
		HistoricalPeriod:  "1y",
		FetchPeriod:       "max",
		CacheTTL:          300 * time.Second,
		RefreshWorkers:    2,
	}
	c.Market = MarketConfig{
		Provider:          "yahoo",
		BaseURL:           "https://query1.finance.yahoo.com",
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		Timeout:           30 * time.Second,
		SyntheticFallback: true,
	}
	c.Model = ModelConfig{
		Dir:        "models",
		Extensions: []string{".json", ".h5"},
		Timeout:    10 * time.Second,
		Retries:    2,
	}
	c.Kafka.RequiredAcks = -1
	c.Kafka.Topics.Requests = "forecast.requests"
	c.Kafka.Topics.Results = "forecast.results"
	c.Kafka.Topics.Logs = "stockcast.logs"
	c.Kafka.Consumer.GroupID = "stockcast"
	c.Kafka.Consumer.Workers = 4
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "stockcast"
	c.Redis.Addr = "localhost:6379"
	c.RateLimit.Capacity = 10
	c.RateLimit.RefillPerSec = 1
	return c
}

// Load reads a YAML file over Default() and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML file, then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("MODEL_SERVICE_URL"); v != "" {
		c.Model.ServiceURL = v
	}
	if v := os.Getenv("MARKET_PROVIDER"); v != "" {
		c.Market.Provider = v
	}
	if v := os.Getenv("TICKERS"); v != "" {
		c.Forecast.Tickers = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	f := c.Forecast
	if f.SequenceLength < 1 {
		return fmt.Errorf("forecast.sequence_length must be >= 1, got %d", f.SequenceLength)
	}
	if f.TrainSize <= 0 || f.TrainSize >= 1 {
		return fmt.Errorf("forecast.train_size must be in (0,1), got %v", f.TrainSize)
	}
	if f.MaxPredictionDays < 1 {
		return fmt.Errorf("forecast.max_prediction_days must be >= 1, got %d", f.MaxPredictionDays)
	}
	if f.PredictionDays < 1 || f.PredictionDays > f.MaxPredictionDays {
		return fmt.Errorf("forecast.prediction_days must be in [1,%d], got %d", f.MaxPredictionDays, f.PredictionDays)
	}
	switch c.Market.Provider {
	case "yahoo", "synthetic":
	default:
		return fmt.Errorf("market.provider must be 'yahoo' or 'synthetic', got '%s'", c.Market.Provider)
	}
	if c.Market.Provider == "yahoo" && c.Market.BaseURL == "" {
		return fmt.Errorf("market.base_url is required for provider yahoo")
	}
	if c.Market.MaxRetries < 1 {
		return fmt.Errorf("market.max_retries must be >= 1, got %d", c.Market.MaxRetries)
	}
	if len(c.Model.Extensions) == 0 {
		return fmt.Errorf("model.extensions cannot be empty")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer requires kafka.enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Market.ArchiveFallback && !c.ClickHouse.Enabled {
		return fmt.Errorf("market.archive_fallback requires clickhouse.enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity < 1 || c.RateLimit.RefillPerSec <= 0) {
		return fmt.Errorf("ratelimit needs capacity >= 1 and refill_per_sec > 0")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
