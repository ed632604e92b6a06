// Package window cuts a normalized series column into fixed-length model inputs.
package window

import (
	"errors"
	"fmt"
	"math"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/services/series"
)

var ErrSequenceLength = errors.New("window: sequence length must be >= 1")

// Set is a chronologically ordered set of (window, target) pairs plus the
// scaler that normalized them.
type Set struct {
	SequenceLength int
	Column         series.Column
	Windows        [][]float64
	Targets        []float64
	TargetDates    []time.Time
	// Values and Dates are the raw column after undefined rows were dropped.
	Values []float64
	Dates  []time.Time
	Scaler *MinMaxScaler
}

func (s *Set) Len() int { return len(s.Windows) }

// SplitIndex returns floor(N * trainFraction) clamped to [0, N].
func (s *Set) SplitIndex(trainFraction float64) int {
	return splitIndex(len(s.Windows), trainFraction)
}

func splitIndex(n int, trainFraction float64) int {
	switch {
	case !(trainFraction > 0):
		return 0
	case trainFraction >= 1:
		return n
	}
	return int(math.Floor(float64(n) * trainFraction))
}

// Tail returns the normalized last n raw values.
func (s *Set) Tail(n int) []float64 {
	if n > len(s.Values) {
		n = len(s.Values)
	}
	return s.Scaler.TransformAll(s.Values[len(s.Values)-n:])
}

// Prepare drops undefined rows, fits the scaler over the whole remaining column
// and emits one window per index i in [s, L) covering [i-s, i) with target i.
func Prepare(store *series.Store, sequenceLength int, col series.Column) (*Set, error) {
	values, dates, err := column(store, sequenceLength, col)
	if err != nil {
		return nil, err
	}
	sc := &MinMaxScaler{}
	if err := sc.Fit(values); err != nil {
		return nil, err
	}
	return build(values, dates, sequenceLength, col, sc), nil
}

// PrepareTrainScaled is Prepare with the scaler fit only on the rows that feed
// training windows, so holdout values never shape the normalization.
func PrepareTrainScaled(store *series.Store, sequenceLength int, col series.Column, trainFraction float64) (*Set, error) {
	values, dates, err := column(store, sequenceLength, col)
	if err != nil {
		return nil, err
	}
	split := splitIndex(len(values)-sequenceLength, trainFraction)
	fitRows := sequenceLength + split
	if split == 0 {
		fitRows = sequenceLength
	}
	sc := &MinMaxScaler{}
	if err := sc.Fit(values[:fitRows]); err != nil {
		return nil, err
	}
	return build(values, dates, sequenceLength, col, sc), nil
}

func column(store *series.Store, sequenceLength int, col series.Column) ([]float64, []time.Time, error) {
	if sequenceLength < 1 {
		return nil, nil, fmt.Errorf("%w, got %d", ErrSequenceLength, sequenceLength)
	}
	rows := store.Defined()
	if len(rows) < sequenceLength+1 {
		return nil, nil, &models.InsufficientDataError{Stage: "window", Have: len(rows), Need: sequenceLength + 1}
	}
	values := make([]float64, len(rows))
	dates := make([]time.Time, len(rows))
	for i, r := range rows {
		v, err := r.Value(col)
		if err != nil {
			return nil, nil, err
		}
		values[i] = v
		dates[i] = r.Date
	}
	return values, dates, nil
}

func build(values []float64, dates []time.Time, s int, col series.Column, sc *MinMaxScaler) *Set {
	scaled := sc.TransformAll(values)
	n := len(values) - s
	set := &Set{
		SequenceLength: s,
		Column:         col,
		Windows:        make([][]float64, 0, n),
		Targets:        make([]float64, 0, n),
		TargetDates:    make([]time.Time, 0, n),
		Values:         values,
		Dates:          dates,
		Scaler:         sc,
	}
	for i := s; i < len(scaled); i++ {
		w := make([]float64, s)
		copy(w, scaled[i-s:i])
		set.Windows = append(set.Windows, w)
		set.Targets = append(set.Targets, scaled[i])
		set.TargetDates = append(set.TargetDates, dates[i])
	}
	return set
}
