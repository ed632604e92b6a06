package usecase

import (
	"math"

	"StockCast/internal/domain/models"
)

const tradingYear = 252

// BuildStockInfo summarizes the latest quote from daily bars. Average volume
// covers every bar; the 52-week range covers the last 252.
func BuildStockInfo(ticker string, bars []models.Bar) *models.StockInfo {
	bars = completeBars(bars)
	if len(bars) == 0 {
		return nil
	}
	last := bars[len(bars)-1]
	info := &models.StockInfo{
		Symbol:        ticker,
		Currency:      "USD",
		CurrentPrice:  last.Close,
		PreviousClose: last.Close,
		DayHigh:       last.High,
		DayLow:        last.Low,
		Volume:        last.Volume,
	}
	if len(bars) > 1 {
		info.PreviousClose = bars[len(bars)-2].Close
	}

	var vol float64
	for _, b := range bars {
		vol += float64(b.Volume)
	}
	info.AvgVolume = vol / float64(len(bars))

	year := bars[max(0, len(bars)-tradingYear):]
	info.High52Week, info.Low52Week = math.Inf(-1), math.Inf(1)
	for _, b := range year {
		info.High52Week = math.Max(info.High52Week, b.High)
		info.Low52Week = math.Min(info.Low52Week, b.Low)
	}
	return info
}

// RecentPerformance summarizes the last days bars.
func RecentPerformance(bars []models.Bar, days int) *models.Performance {
	bars = completeBars(bars)
	if len(bars) == 0 || days < 1 {
		return nil
	}
	recent := bars[max(0, len(bars)-days):]
	p := &models.Performance{
		StartPrice: recent[0].Close,
		EndPrice:   recent[len(recent)-1].Close,
		High:       math.Inf(-1),
		Low:        math.Inf(1),
	}
	p.Change = p.EndPrice - p.StartPrice
	if p.StartPrice != 0 {
		p.ChangePct = p.Change / p.StartPrice * 100
	}
	var vol float64
	for _, b := range recent {
		p.High = math.Max(p.High, b.High)
		p.Low = math.Min(p.Low, b.Low)
		vol += float64(b.Volume)
	}
	p.AvgVolume = vol / float64(len(recent))
	return p
}

func completeBars(bars []models.Bar) []models.Bar {
	for _, b := range bars {
		if !b.Complete() {
			out := make([]models.Bar, 0, len(bars))
			for _, c := range bars {
				if c.Complete() {
					out = append(out, c)
				}
			}
			return out
		}
	}
	return bars
}
