package series

import (
	"math"
	"testing"
	"time"

	"StockCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func linearBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + 0.5*float64(i)
		bars[i] = models.Bar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c - 0.2,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1_000_000 + int64(i),
		}
	}
	return bars
}

func TestCleanFillsForwardThenBackward(t *testing.T) {
	nan := math.NaN()
	bars := []models.Bar{
		{Date: day0, Open: nan, High: nan, Low: nan, Close: nan, Volume: models.MissingVolume},
		{Date: day0.AddDate(0, 0, 1), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Date: day0.AddDate(0, 0, 2), Open: nan, High: 12, Low: nan, Close: nan, Volume: models.MissingVolume},
		{Date: day0.AddDate(0, 0, 3), Open: 11, High: 13, Low: 10, Close: 12, Volume: 300},
	}
	s := NewStore(bars)
	s.Clean()

	rows := s.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, 10.5, rows[0].Close, "leading gap is back-filled")
	assert.Equal(t, int64(100), rows[0].Volume)
	assert.Equal(t, 10.0, rows[2].Open, "interior gap is forward-filled")
	assert.Equal(t, 10.5, rows[2].Close)
	assert.Equal(t, 12.0, rows[2].High)
	assert.Equal(t, int64(100), rows[2].Volume)
	for _, r := range rows {
		assert.True(t, r.Complete())
	}
}

func TestCleanDropsDuplicatesAndSorts(t *testing.T) {
	bars := linearBars(5)
	shuffled := []models.Bar{bars[3], bars[0], bars[4], bars[1], bars[0], bars[2], bars[3]}
	s := NewStore(shuffled)
	s.Clean()

	got := s.Bars()
	require.Len(t, got, 5)
	for i := range got {
		assert.Equal(t, bars[i], got[i])
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	nan := math.NaN()
	bars := linearBars(30)
	bars[7].Close = nan
	bars[12] = bars[11]
	bars[0], bars[29] = bars[29], bars[0]

	once := NewStore(bars)
	once.Clean()
	twice := NewStore(bars)
	twice.Clean()
	twice.Clean()

	assert.Equal(t, once.Bars(), twice.Bars())
}

func TestAddFeaturesRequiresClean(t *testing.T) {
	s := NewStore(linearBars(10))
	assert.ErrorIs(t, s.AddFeatures(), ErrNotCleaned)

	_, err := s.Column(ColMA5)
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestAddFeaturesValues(t *testing.T) {
	s := NewStore(linearBars(120))
	s.Clean()
	require.NoError(t, s.AddFeatures())
	rows := s.Rows()

	assert.True(t, IsUndefined(rows[0].Returns))
	assert.True(t, IsUndefined(rows[0].PriceChange))
	assert.InDelta(t, 100.5/100-1, rows[1].Returns, 1e-12)
	assert.InDelta(t, 0.5, rows[1].PriceChange, 1e-12)

	assert.True(t, IsUndefined(rows[3].MA5))
	assert.InDelta(t, (100+100.5+101+101.5+102)/5, rows[4].MA5, 1e-9)
	assert.True(t, IsUndefined(rows[18].MA20))
	assert.False(t, IsUndefined(rows[19].MA20))
	assert.True(t, IsUndefined(rows[48].MA50))
	assert.InDelta(t, 100+0.5*24.5, rows[49].MA50, 1e-9)

	assert.True(t, IsUndefined(rows[19].Volatility))
	require.False(t, IsUndefined(rows[20].Volatility))

	// sample standard deviation of returns[1..20]
	var sum, sumSq float64
	for i := 1; i <= 20; i++ {
		sum += rows[i].Returns
	}
	mean := sum / 20
	for i := 1; i <= 20; i++ {
		d := rows[i].Returns - mean
		sumSq += d * d
	}
	assert.InDelta(t, math.Sqrt(sumSq/19), rows[20].Volatility, 1e-9)
}

func TestDefinedDropsWarmupRows(t *testing.T) {
	s := NewStore(linearBars(500))
	s.Clean()
	assert.Len(t, s.Defined(), 500, "no features means nothing undefined")

	require.NoError(t, s.AddFeatures())
	defined := s.Defined()
	require.Len(t, defined, 451)
	assert.Equal(t, day0.AddDate(0, 0, 49), defined[0].Date)
}

func TestRollingSkipsUndefinedRuns(t *testing.T) {
	nan := math.NaN()
	in := []float64{1, 2, 3, nan, 4, 5, 6, 7}
	out := rolling(in, 3, func(v []float64, p int) []float64 {
		res := make([]float64, len(v))
		for i := p - 1; i < len(v); i++ {
			res[i] = v[i-p+1] + v[i-p+2] + v[i]
		}
		return res
	})
	assert.Equal(t, 6.0, out[2])
	assert.True(t, IsUndefined(out[3]))
	assert.True(t, IsUndefined(out[4]))
	assert.True(t, IsUndefined(out[5]))
	assert.Equal(t, 15.0, out[6])
	assert.Equal(t, 18.0, out[7])
}

func TestLastDate(t *testing.T) {
	_, ok := NewStore(nil).LastDate()
	assert.False(t, ok)

	s := NewStore(linearBars(3))
	d, ok := s.LastDate()
	require.True(t, ok)
	assert.Equal(t, day0.AddDate(0, 0, 2), d)
}
