package market

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{
	"meta":{"symbol":"AAPL","currency":"USD","gmtoffset":-14400},
	"timestamp":[1704205800,1704292200,1704378600],
	"indicators":{"quote":[{
		"open":[187.15,184.22,null],
		"high":[188.44,185.88,183.08],
		"low":[183.89,183.43,180.88],
		"close":[185.64,184.25,181.91],
		"volume":[82488700,null,71983600]
	}]}
}],"error":null}}`

func TestYahooFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "max", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	bars, err := NewYahooSource(srv.URL, time.Second).FetchDaily(context.Background(), "AAPL", "max")
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 185.64, bars[0].Close)
	assert.Equal(t, int64(82488700), bars[0].Volume)
	assert.False(t, bars[1].HasVolume())
	assert.True(t, math.IsNaN(bars[2].Open))
	assert.True(t, bars[0].Complete())
	assert.False(t, bars[2].Complete())
}

func TestYahooErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "chart error", status: 200, body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`},
		{name: "empty result", status: 200, body: `{"chart":{"result":[],"error":null}}`},
		{name: "http error", status: 429, body: `Too Many Requests`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			_, err := NewYahooSource(srv.URL, time.Second).FetchDaily(context.Background(), "ZZZZ", "1y")
			assert.Error(t, err)
		})
	}
}

type stubSource struct {
	name  string
	bars  []models.Bar
	errs  []error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchDaily(context.Context, string, string) ([]models.Bar, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return s.bars, nil
}

func oneBar() []models.Bar {
	return []models.Bar{{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}
}

func TestRetrySourceLinearDelay(t *testing.T) {
	src := &stubSource{name: "yahoo", bars: oneBar(), errs: []error{errors.New("a"), errors.New("b")}}
	r := NewRetrySource(src, 3, time.Second, nil)
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	bars, err := r.FetchDaily(context.Background(), "AAPL", "max")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestRetrySourceGivesUp(t *testing.T) {
	boom := errors.New("timeout")
	src := &stubSource{name: "yahoo", errs: []error{boom, boom, boom}}
	r := NewRetrySource(src, 3, 0, nil)

	_, err := r.FetchDaily(context.Background(), "AAPL", "max")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, src.calls)

	empty := &stubSource{name: "yahoo"}
	_, err = NewRetrySource(empty, 2, 0, nil).FetchDaily(context.Background(), "AAPL", "max")
	assert.ErrorContains(t, err, "no rows")
	assert.Equal(t, 2, empty.calls)
}

func TestRetrySourceCancelled(t *testing.T) {
	src := &stubSource{name: "yahoo", errs: []error{errors.New("a"), errors.New("b")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRetrySource(src, 3, time.Hour, nil).FetchDaily(ctx, "AAPL", "max")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, src.calls)
}

func TestSyntheticDeterministic(t *testing.T) {
	end := time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)
	a := Synthesize("AAPL", end, SyntheticRows)
	b := Synthesize("aapl", end, SyntheticRows)
	require.Len(t, a, SyntheticRows)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0].Close, Synthesize("MSFT", end, 10)[0].Close)

	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), a[len(a)-1].Date)
	for i, bar := range a {
		wd := bar.Date.Weekday()
		require.NotEqual(t, time.Saturday, wd)
		require.NotEqual(t, time.Sunday, wd)
		if i > 0 {
			require.True(t, bar.Date.After(a[i-1].Date))
		}
		require.True(t, bar.Complete())
		require.GreaterOrEqual(t, bar.High, math.Max(bar.Open, bar.Close))
		require.LessOrEqual(t, bar.Low, math.Min(bar.Open, bar.Close))
		require.InDelta(t, bar.Close, bar.Open, bar.Close*0.01+1e-9)
		require.GreaterOrEqual(t, bar.Volume, int64(10_000_000))
		require.Less(t, bar.Volume, int64(120_000_000))
	}
}

func TestSyntheticPeriod(t *testing.T) {
	s := NewSyntheticSource()
	s.now = func() time.Time { return time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC) }

	all, err := s.FetchDaily(context.Background(), "AAPL", "max")
	require.NoError(t, err)
	assert.Len(t, all, SyntheticRows)

	year, err := s.FetchDaily(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	assert.True(t, len(year) > 250 && len(year) < 265)
	assert.False(t, year[0].Date.Before(time.Date(2023, 6, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, all[len(all)-1], year[len(year)-1])
}

type memStore struct {
	saved map[string][]models.Bar
	err   error
}

func (m *memStore) SaveBars(_ context.Context, ticker string, bars []models.Bar) error {
	if m.saved == nil {
		m.saved = map[string][]models.Bar{}
	}
	m.saved[ticker] = bars
	return nil
}

func (m *memStore) LoadBars(_ context.Context, ticker, _ string) ([]models.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.saved[ticker], nil
}

func (m *memStore) SaveForecast(context.Context, *models.ForecastResult) error { return nil }

func (m *memStore) Health(context.Context) error { return nil }

func TestFallbackOrder(t *testing.T) {
	primary := &stubSource{name: "yahoo", errs: []error{errors.New("down")}}
	second := &stubSource{name: "backup", bars: oneBar()}
	f := NewFallbackSource([]domrepo.BarSource{primary, second})

	bars, err := f.FetchDaily(context.Background(), "AAPL", "max")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, "yahoo", f.Name())

	bars, err = f.FetchDaily(context.Background(), "AAPL", "max")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 1, second.calls)
}

func TestFallbackAllFail(t *testing.T) {
	f := NewFallbackSource([]domrepo.BarSource{
		&stubSource{name: "a", errs: []error{errors.New("x")}},
		&stubSource{name: "b"},
	})
	_, err := f.FetchDaily(context.Background(), "AAPL", "max")
	var du *models.DataUnavailableError
	require.True(t, errors.As(err, &du))
	assert.Equal(t, "AAPL", du.Ticker)
	assert.ErrorContains(t, err, "b: no rows")

	_, err = NewFallbackSource(nil).FetchDaily(context.Background(), "AAPL", "max")
	assert.True(t, errors.As(err, &du))
}

func TestChainArchivesLiveBars(t *testing.T) {
	store := &memStore{}
	live := &stubSource{name: "yahoo", bars: oneBar()}
	chain := NewChain(live, 1, 0, store, true, nil)

	_, err := chain.FetchDaily(context.Background(), "AAPL", "max")
	require.NoError(t, err)
	assert.Len(t, store.saved["AAPL"], 1)

	down := &stubSource{name: "yahoo", errs: []error{errors.New("x")}}
	chain = NewChain(down, 1, 0, store, true, nil)
	bars, err := chain.FetchDaily(context.Background(), "AAPL", "max")
	require.NoError(t, err)
	assert.Equal(t, oneBar(), bars)

	chain = NewChain(down, 1, 0, &memStore{err: errors.New("ch down")}, true, nil)
	bars, err = chain.FetchDaily(context.Background(), "MSFT", "max")
	require.NoError(t, err)
	assert.Len(t, bars, SyntheticRows)
}
