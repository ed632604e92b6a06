package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
server:
  port: 9090
forecast:
  sequence_length: 30
  tickers: [AAPL, MSFT]
market:
  provider: synthetic
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 30, c.Forecast.SequenceLength)
	assert.Equal(t, 0.8, c.Forecast.TrainSize)
	assert.Equal(t, 300*time.Second, c.Forecast.CacheTTL)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Forecast.Tickers)
	assert.Equal(t, "synthetic", c.Market.Provider)
	assert.Equal(t, []string{".json", ".h5"}, c.Model.Extensions)
	assert.Equal(t, "forecast.results", c.Kafka.Topics.Results)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not a map"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "forecast:\n  train_size: 1.5\n"))
	assert.ErrorContains(t, err, "train_size")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "no environment", mutate: func(c *Config) { c.Environment = "" }, wantErr: "environment"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "zero sequence", mutate: func(c *Config) { c.Forecast.SequenceLength = 0 }, wantErr: "sequence_length"},
		{name: "horizon above max", mutate: func(c *Config) { c.Forecast.PredictionDays = 400 }, wantErr: "prediction_days"},
		{name: "unknown provider", mutate: func(c *Config) { c.Market.Provider = "bloomberg" }, wantErr: "market.provider"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Kafka.Enabled = true }, wantErr: "kafka.brokers"},
		{name: "consumer without kafka", mutate: func(c *Config) { c.Kafka.Consumer.Enabled = true }, wantErr: "kafka.consumer"},
		{name: "archive without clickhouse", mutate: func(c *Config) { c.Market.ArchiveFallback = true }, wantErr: "archive_fallback"},
		{name: "clickhouse without host", mutate: func(c *Config) { c.ClickHouse.Enabled = true }, wantErr: "clickhouse.host"},
		{name: "empty extensions", mutate: func(c *Config) { c.Model.Extensions = nil }, wantErr: "model.extensions"},
		{name: "ratelimit without refill", mutate: func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.RefillPerSec = 0 }, wantErr: "ratelimit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("PORT", "7070")
	t.Setenv("TICKERS", "AAPL, TSLA,,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("MODEL_DIR", "/srv/models")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, c.Server.Port)
	assert.Equal(t, []string{"AAPL", "TSLA"}, c.Forecast.Tickers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache:6379", c.Redis.Addr)
	assert.Equal(t, "/srv/models", c.Model.Dir)
}
