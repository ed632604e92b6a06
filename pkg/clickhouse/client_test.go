package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestBuildOptions(t *testing.T) {
	cfg := ClientConfig{Port: 9000, Database: "default", User: "default"}
	for _, opt := range []ClientOption{
		WithAddress("ch.local", 0),
		WithDatabase("stockcast"),
		WithCredentials("", "secret"),
		WithTimeouts(2*time.Second, 0, 0),
		WithMaxExecutionTime(90 * time.Second),
		WithAsyncInsert(true, true),
	} {
		opt(&cfg)
	}

	opts := buildOptions(cfg)
	assert.Equal(t, []string{"ch.local:9000"}, opts.Addr)
	assert.Equal(t, "stockcast", opts.Auth.Database)
	assert.Equal(t, "default", opts.Auth.Username)
	assert.Equal(t, "secret", opts.Auth.Password)
	assert.Equal(t, ch.Native, opts.Protocol)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, 90, opts.Settings["max_execution_time"])
	assert.Equal(t, 1, opts.Settings["async_insert"])
	assert.Equal(t, 1, opts.Settings["wait_for_async_insert"])
}

func TestBuildOptionsHTTP(t *testing.T) {
	cfg := ClientConfig{Host: "::1", Port: 8123}
	WithHTTP(true)(&cfg)
	opts := buildOptions(cfg)
	assert.Equal(t, ch.HTTP, opts.Protocol)
	assert.Equal(t, []string{"[::1]:8123"}, opts.Addr)
	assert.Empty(t, opts.Settings)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
