package repository

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	pkgkafka "StockCast/pkg/kafka"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	stmts := Schema("stockcast")
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[1], "stockcast.daily_bars")
	assert.Contains(t, stmts[1], "ReplacingMergeTree")
	assert.Contains(t, stmts[2], "stockcast.forecasts")
	for _, s := range stmts {
		assert.True(t, strings.Contains(s, "IF NOT EXISTS"))
	}
}

func TestBarRowsSkipsIncomplete(t *testing.T) {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := barRows("AAPL", []models.Bar{
		{Date: d, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: d.AddDate(0, 0, 1), Open: math.NaN(), High: 2, Low: 1, Close: 1, Volume: 5},
		{Date: d.AddDate(0, 0, 2), Open: 1, High: 2, Low: 1, Close: 1, Volume: models.MissingVolume},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, []interface{}{"AAPL", d, 1.0, 2.0, 0.5, 1.5, int64(100)}, rows[0])
}

func TestForecastRow(t *testing.T) {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	res := &models.ForecastResult{
		Ticker:  "AAPL",
		Model:   "AAPL_lstm_model.json",
		Bars:    []models.Bar{{Close: 180}, {Close: 181.5}},
		Metrics: models.Metrics{MSE: 4, RMSE: 2, MAE: 1.5, MAPE: 0.9, R2: 0.95},
		Future: []models.ForecastPoint{
			{Date: d, Price: 182},
			{Date: d.AddDate(0, 0, 1), Price: 183},
		},
		GeneratedAt: d,
	}
	row := forecastRow(res)
	require.Len(t, row, 12)
	assert.Equal(t, uint16(2), row[3])
	assert.Equal(t, 181.5, row[4])
	assert.Equal(t, 0.95, row[9])
	assert.Equal(t, []time.Time{d, d.AddDate(0, 0, 1)}, row[10])
	assert.Equal(t, []float64{182, 183}, row[11])
}

type fakeBatch struct {
	topic  string
	msgs   []pkgkafka.Message
	closed bool
}

func (f *fakeBatch) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeBatch) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	fb := &fakeBatch{}
	p := &KafkaPublisher{producer: fb, topic: "forecast.results"}
	ev := &models.ForecastEvent{Ticker: "AAPL", Horizon: 5, LastClose: 181.5}

	require.NoError(t, p.PublishForecast(context.Background(), ev))
	require.NoError(t, p.PublishForecast(pkgkafka.WithTraceID(context.Background(), "job-1"), ev))

	assert.Equal(t, "forecast.results", fb.topic)
	require.Len(t, fb.msgs, 2)
	assert.Equal(t, "AAPL", string(fb.msgs[0].Key))
	_, err := uuid.Parse(fb.msgs[0].Headers["trace_id"])
	assert.NoError(t, err)
	assert.Equal(t, "job-1", fb.msgs[1].Headers["trace_id"])

	b, err := json.Marshal(fb.msgs[0].Value)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"horizon":5`)

	require.NoError(t, p.Close())
	assert.True(t, fb.closed)
}
