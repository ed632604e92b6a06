package market

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/pkg/util"
)

var _ domrepo.BarSource = (*SyntheticSource)(nil)

// SyntheticRows is five years of business days.
const SyntheticRows = 1260

// SyntheticSource generates a geometric random walk seeded by the ticker, so
// the same ticker on the same day always yields the same series.
type SyntheticSource struct {
	rows int
	now  func() time.Time
}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{rows: SyntheticRows, now: time.Now}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) FetchDaily(ctx context.Context, ticker, period string) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	bars := Synthesize(ticker, now, s.rows)
	since := domrepo.NormalizePeriod(period).Since(now)
	if period == "" || since.IsZero() {
		return bars, nil
	}
	since = util.StartOfDay(since)
	for i, b := range bars {
		if !b.Date.Before(since) {
			return bars[i:], nil
		}
	}
	return nil, nil
}

// Seed derives the generator seed from sha256(ticker) mod 2^32.
func Seed(ticker string) uint32 {
	sum := sha256.Sum256([]byte(strings.ToUpper(ticker)))
	return binary.BigEndian.Uint32(sum[len(sum)-4:])
}

// Synthesize builds n business-day bars ending at end.
func Synthesize(ticker string, end time.Time, n int) []models.Bar {
	dates := util.BusinessDaysUntil(time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC), n)
	r := rand.New(rand.NewSource(int64(Seed(ticker))))

	price := 50 + r.Float64()*200
	bars := make([]models.Bar, len(dates))
	for i, d := range dates {
		price *= math.Exp(0.0003 + 0.02*r.NormFloat64())
		open := price * (1 + (r.Float64()*0.02 - 0.01))
		hi := math.Max(open, price) * (1 + r.Float64()*0.02)
		lo := math.Min(open, price) * (1 - r.Float64()*0.02)
		bars[i] = models.Bar{
			Date:   d,
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  price,
			Volume: 10_000_000 + r.Int63n(110_000_000),
		}
	}
	return bars
}
