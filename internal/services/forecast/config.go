package forecast

import (
	"fmt"

	"StockCast/internal/services/series"
)

// Config holds the settings of one forecast request. Each request gets its own
// copy. Nothing reads configuration from package state.
type Config struct {
	SequenceLength int
	TrainFraction  float64
	HorizonDays    int
	TargetColumn   series.Column
	// Period is the lookback requested from the bar source.
	Period string
	// ScaleOnTrainOnly fits the normalizer on training rows only.
	ScaleOnTrainOnly bool
}

// DefaultConfig returns the standard daily-close setup.
func DefaultConfig() Config {
	return Config{
		SequenceLength: 60,
		TrainFraction:  0.8,
		HorizonDays:    30,
		TargetColumn:   series.ColClose,
		Period:         "max",
	}
}

// MinRows is the fewest fetched rows that can produce one training and one
// evaluation window.
func (c Config) MinRows() int { return c.SequenceLength + 2 }

func (c Config) Validate() error {
	if c.SequenceLength < 1 {
		return fmt.Errorf("sequence length must be >= 1, got %d", c.SequenceLength)
	}
	if c.TrainFraction <= 0 || c.TrainFraction >= 1 {
		return fmt.Errorf("train fraction must be in (0,1), got %v", c.TrainFraction)
	}
	if c.HorizonDays < 1 {
		return fmt.Errorf("horizon must be >= 1 day, got %d", c.HorizonDays)
	}
	if _, err := (series.Row{}).Value(c.TargetColumn); err != nil {
		return err
	}
	if c.Period == "" {
		return fmt.Errorf("period is required")
	}
	return nil
}
