package util

import "time"

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CalendarDaysAfter returns n consecutive calendar days starting the day after last.
// Weekends and holidays are included.
func CalendarDaysAfter(last time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	base := StartOfDay(last)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.AddDate(0, 0, i+1)
	}
	return out
}

// BusinessDaysUntil returns the n weekdays ending at (or before) end, oldest first.
func BusinessDaysUntil(end time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, n)
	d := StartOfDay(end)
	for i := n - 1; i >= 0; {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out[i] = d
			i--
		}
		d = d.AddDate(0, 0, -1)
	}
	return out
}
