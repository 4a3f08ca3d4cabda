package core

import (
	"fmt"
	"time"
)

// Period scopes an aggregation to a calendar month. The zero Period means
// all time; a Period with only one of Year or Month set is treated the same.
type Period struct {
	Year  int
	Month int // 1-12
}

// AllTime is the unbounded period.
var AllTime = Period{}

// MonthPeriod builds a Period for the given year and month.
func MonthPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// IsAllTime reports whether the period is unbounded.
func (p Period) IsAllTime() bool {
	return p.Year == 0 || p.Month == 0
}

// Validate rejects months outside 1-12 on bounded periods.
func (p Period) Validate() error {
	if p.IsAllTime() {
		return nil
	}
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidDate, p.Month)
	}
	return nil
}

// Bounds returns the half-open date range [start, end) covered by the period.
func (p Period) Bounds() (start, end Date) {
	start = NewDate(p.Year, p.Month, 1)
	end = Date{Time: start.AddDate(0, 1, 0)}
	return start, end
}

// Prev returns the previous calendar month.
func (p Period) Prev() Period {
	start, _ := p.Bounds()
	return start.AddDatePeriod(0, -1)
}

// Label renders the period as "Jan 2024".
func (p Period) Label() string {
	if p.IsAllTime() {
		return "All time"
	}
	return time.Month(p.Month).String()[:3] + " " + fmt.Sprint(p.Year)
}

// AddDatePeriod shifts d by years and months and returns the resulting Period.
func (d Date) AddDatePeriod(years, months int) Period {
	return Date{Time: d.AddDate(years, months, 0)}.Period()
}
