package models

import (
	"math"
	"time"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Bar is one daily OHLCV record. Missing prices are NaN, a missing volume is negative.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// MissingVolume marks an absent volume value.
const MissingVolume int64 = -1

func (b Bar) HasVolume() bool { return b.Volume >= 0 }

// Complete reports whether every field of the bar carries a value.
func (b Bar) Complete() bool {
	return !b.Date.IsZero() &&
		!math.IsNaN(b.Open) && !math.IsNaN(b.High) &&
		!math.IsNaN(b.Low) && !math.IsNaN(b.Close) &&
		b.HasVolume()
}

// StockInfo is a quote summary derived from recent bars.
type StockInfo struct {
	Symbol        string  `json:"symbol"`
	Currency      string  `json:"currency"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Volume        int64   `json:"volume"`
	AvgVolume     float64 `json:"avg_volume"`
	High52Week    float64 `json:"52_week_high"`
	Low52Week     float64 `json:"52_week_low"`
}

// Performance summarizes the last N bars of a series.
type Performance struct {
	StartPrice float64 `json:"start_price"`
	EndPrice   float64 `json:"end_price"`
	Change     float64 `json:"change"`
	ChangePct  float64 `json:"change_pct"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	AvgVolume  float64 `json:"avg_volume"`
}
