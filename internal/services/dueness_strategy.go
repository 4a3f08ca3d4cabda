package services

import (
	"fmt"
	"time"

	"moneywise/internal/core"
)

// DuenessChecker decides whether a recurring template owes a new occurrence.
// last is the date of its most recent occurrence, today the processing day
// and anchor the template's own date, which fixes the day of month and month
// of year an occurrence falls on.
type DuenessChecker interface {
	IsDue(last, today, anchor core.Date) bool
}

// DailyChecker is due on any day after the last occurrence.
type DailyChecker struct{}

func (DailyChecker) IsDue(last, today, _ core.Date) bool {
	return last.IsZero() || today.After(last.Time)
}

// WeeklyChecker is due once 7 days have passed.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(last, today, _ core.Date) bool {
	if last.IsZero() {
		return true
	}
	return !today.Before(last.AddDate(0, 0, 7))
}

// MonthlyChecker is due in a later month once the anchor day is reached.
// Anchors past the end of a short month fall on its last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(last, today, anchor core.Date) bool {
	if last.IsZero() {
		return true
	}
	if !laterMonth(last, today) {
		return false
	}
	return today.Day() >= clampDay(today.Year(), today.Month(), anchor.Day())
}

// YearlyChecker is due in a later year once the anchor month and day are
// reached.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(last, today, anchor core.Date) bool {
	if last.IsZero() {
		return true
	}
	if today.Year() <= last.Year() {
		return false
	}
	switch {
	case today.Month() < anchor.Month():
		return false
	case today.Month() > anchor.Month():
		return true
	default:
		return today.Day() >= clampDay(today.Year(), today.Month(), anchor.Day())
	}
}

func laterMonth(a, b core.Date) bool {
	return b.Year() > a.Year() || (b.Year() == a.Year() && b.Month() > a.Month())
}

// clampDay returns day, or the last day of the month when it is shorter.
func clampDay(year, month, day int) int {
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a recurring frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return checker, nil
}
