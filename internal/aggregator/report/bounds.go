package report

import "time"

// Window bounds are computed from local calendar dates in a fixed civil zone,
// then converted to UTC. All stored timestamps and comparisons stay UTC; the
// zone only decides where a day begins.

// DayBounds returns the UTC half-open bounds of one local calendar day.
func DayBounds(loc *time.Location, year int, month time.Month, day int) (time.Time, time.Time) {
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

// WeekBounds returns the UTC bounds of the 7 days ending at the end of the
// given local day.
func WeekBounds(loc *time.Location, year int, month time.Month, day int) (time.Time, time.Time) {
	end := time.Date(year, month, day, 23, 59, 59, 0, loc).Add(time.Second)
	start := end.AddDate(0, 0, -7)
	return start.UTC(), end.UTC()
}

// MonthBounds returns the UTC bounds of one full local calendar month.
func MonthBounds(loc *time.Location, year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	return start.UTC(), end.UTC()
}
