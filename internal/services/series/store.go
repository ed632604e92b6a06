// Package series holds the per-request table of daily bars and its derived features.
//
// Clean and AddFeatures mutate the store in place. Rows, Bars, Defined and Column
// return fresh slices that callers own.
package series

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"StockCast/internal/domain/models"
)

// Column names a numeric column of the series.
type Column string

const (
	ColOpen        Column = "Open"
	ColHigh        Column = "High"
	ColLow         Column = "Low"
	ColClose       Column = "Close"
	ColVolume      Column = "Volume"
	ColReturns     Column = "Returns"
	ColMA5         Column = "MA_5"
	ColMA20        Column = "MA_20"
	ColMA50        Column = "MA_50"
	ColVolatility  Column = "Volatility"
	ColPriceChange Column = "Price_Change"
)

// DerivedColumns lists the columns appended by AddFeatures.
var DerivedColumns = []Column{ColReturns, ColMA5, ColMA20, ColMA50, ColVolatility, ColPriceChange}

var (
	ErrNotCleaned    = errors.New("series: AddFeatures requires a cleaned series")
	ErrNoFeatures    = errors.New("series: derived column requested before AddFeatures")
	ErrUnknownColumn = errors.New("series: unknown column")
)

// Undefined is the marker stored in derived columns lacking enough history.
var Undefined = math.NaN()

// IsUndefined reports whether v is the undefined marker.
func IsUndefined(v float64) bool { return math.IsNaN(v) }

// Row is a bar plus its derived features.
type Row struct {
	models.Bar
	Returns     float64
	MA5         float64
	MA20        float64
	MA50        float64
	Volatility  float64
	PriceChange float64
}

// Value returns the value of column c.
func (r Row) Value(c Column) (float64, error) {
	switch c {
	case ColOpen:
		return r.Open, nil
	case ColHigh:
		return r.High, nil
	case ColLow:
		return r.Low, nil
	case ColClose:
		return r.Close, nil
	case ColVolume:
		if !r.HasVolume() {
			return Undefined, nil
		}
		return float64(r.Volume), nil
	case ColReturns:
		return r.Returns, nil
	case ColMA5:
		return r.MA5, nil
	case ColMA20:
		return r.MA20, nil
	case ColMA50:
		return r.MA50, nil
	case ColVolatility:
		return r.Volatility, nil
	case ColPriceChange:
		return r.PriceChange, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
	}
}

// Store owns the bars of a single forecast request.
type Store struct {
	rows     []Row
	cleaned  bool
	featured bool
}

// NewStore copies bars into a new store.
func NewStore(bars []models.Bar) *Store {
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = Row{Bar: b}
	}
	return &Store{rows: rows}
}

func (s *Store) Len() int { return len(s.rows) }

func (s *Store) Cleaned() bool { return s.cleaned }

func (s *Store) Featured() bool { return s.featured }

// Clean fills gaps forward then backward, drops exact duplicate bars and sorts
// ascending by date. Derived features are discarded. Calling Clean twice is the
// same as calling it once.
func (s *Store) Clean() {
	fillBars(s.rows)
	s.rows = dedupe(s.rows)
	sort.SliceStable(s.rows, func(i, j int) bool { return s.rows[i].Date.Before(s.rows[j].Date) })
	for i := range s.rows {
		s.rows[i] = Row{Bar: s.rows[i].Bar}
	}
	s.cleaned = true
	s.featured = false
}

// Rows returns a copy of the table.
func (s *Store) Rows() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Bars returns the bars in their current order.
func (s *Store) Bars() []models.Bar {
	out := make([]models.Bar, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Bar
	}
	return out
}

// Defined returns the rows with no undefined value in any column.
func (s *Store) Defined() []Row {
	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		if s.rowDefined(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) rowDefined(r Row) bool {
	if !r.Complete() {
		return false
	}
	if !s.featured {
		return true
	}
	for _, c := range DerivedColumns {
		v, _ := r.Value(c)
		if IsUndefined(v) {
			return false
		}
	}
	return true
}

// Column returns the values of c in row order.
func (s *Store) Column(c Column) ([]float64, error) {
	if isDerived(c) && !s.featured {
		return nil, ErrNoFeatures
	}
	out := make([]float64, len(s.rows))
	for i, r := range s.rows {
		v, err := r.Value(c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LastDate returns the date of the last row, or false on an empty store.
func (s *Store) LastDate() (time.Time, bool) {
	if len(s.rows) == 0 {
		return time.Time{}, false
	}
	return s.rows[len(s.rows)-1].Date, true
}

func isDerived(c Column) bool {
	for _, d := range DerivedColumns {
		if d == c {
			return true
		}
	}
	return false
}

func fillBars(rows []Row) {
	var (
		lastDate                   time.Time
		lastO, lastH, lastL, lastC = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		lastV                      = models.MissingVolume
	)
	for i := range rows {
		b := &rows[i].Bar
		lastDate = fillTime(&b.Date, lastDate)
		lastO = fillFloat(&b.Open, lastO)
		lastH = fillFloat(&b.High, lastH)
		lastL = fillFloat(&b.Low, lastL)
		lastC = fillFloat(&b.Close, lastC)
		lastV = fillVolume(&b.Volume, lastV)
	}
	lastDate = time.Time{}
	lastO, lastH, lastL, lastC = math.NaN(), math.NaN(), math.NaN(), math.NaN()
	lastV = models.MissingVolume
	for i := len(rows) - 1; i >= 0; i-- {
		b := &rows[i].Bar
		lastDate = fillTime(&b.Date, lastDate)
		lastO = fillFloat(&b.Open, lastO)
		lastH = fillFloat(&b.High, lastH)
		lastL = fillFloat(&b.Low, lastL)
		lastC = fillFloat(&b.Close, lastC)
		lastV = fillVolume(&b.Volume, lastV)
	}
}

func fillFloat(v *float64, last float64) float64 {
	if math.IsNaN(*v) {
		*v = last
	}
	return *v
}

func fillTime(v *time.Time, last time.Time) time.Time {
	if v.IsZero() {
		*v = last
	}
	return *v
}

func fillVolume(v *int64, last int64) int64 {
	if *v < 0 {
		*v = last
	}
	return *v
}

type barKey struct {
	date                   int64
	open, high, low, close uint64
	volume                 int64
}

func keyOf(b models.Bar) barKey {
	return barKey{
		date:   b.Date.UnixNano(),
		open:   math.Float64bits(b.Open),
		high:   math.Float64bits(b.High),
		low:    math.Float64bits(b.Low),
		close:  math.Float64bits(b.Close),
		volume: b.Volume,
	}
}

func dedupe(rows []Row) []Row {
	seen := make(map[barKey]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := keyOf(r.Bar)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
