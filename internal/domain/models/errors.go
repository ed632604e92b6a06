package models

import (
	"fmt"
	"strings"
)

// InsufficientDataError reports too few rows or windows to continue.
type InsufficientDataError struct {
	Stage string
	Have  int
	Need  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data at %s: have %d, need %d", e.Stage, e.Have, e.Need)
}

// DataUnavailableError reports that the fetch collaborator returned nothing usable.
type DataUnavailableError struct {
	Ticker string
	Rows   int
	Need   int
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data unavailable for %s: %v", e.Ticker, e.Err)
	}
	return fmt.Sprintf("data unavailable for %s: got %d rows, need %d", e.Ticker, e.Rows, e.Need)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// ModelNotFoundError reports that no trained model handle could be attached.
type ModelNotFoundError struct {
	Ticker   string
	Searched []string
}

func (e *ModelNotFoundError) Error() string {
	if len(e.Searched) == 0 {
		return fmt.Sprintf("no model available for %s", e.Ticker)
	}
	return fmt.Sprintf("no model found for %s (searched: %s)", e.Ticker, strings.Join(e.Searched, ", "))
}

// EmptyEvaluationSetError reports a train fraction that leaves no holdout windows.
type EmptyEvaluationSetError struct {
	Windows       int
	TrainFraction float64
}

func (e *EmptyEvaluationSetError) Error() string {
	return fmt.Sprintf("empty evaluation set: %d windows with train fraction %.3f", e.Windows, e.TrainFraction)
}

// MetricsComputationError names the metric that could not be computed.
type MetricsComputationError struct {
	Metric string
	Err    error
}

func (e *MetricsComputationError) Error() string {
	return fmt.Sprintf("compute %s: %v", e.Metric, e.Err)
}

func (e *MetricsComputationError) Unwrap() error { return e.Err }
