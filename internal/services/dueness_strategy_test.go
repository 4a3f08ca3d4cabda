package services

import (
	"errors"
	"testing"

	"moneywise/internal/core"
)

func d(y, m, day int) core.Date { return core.NewDate(y, m, day) }

func TestDailyChecker_IsDue(t *testing.T) {
	checker := DailyChecker{}
	today := d(2024, 1, 15)

	tests := []struct {
		name string
		last core.Date
		want bool
	}{
		{"never occurred - is due", core.Date{}, true},
		{"occurred today - not due", d(2024, 1, 15), false},
		{"occurred yesterday - is due", d(2024, 1, 14), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.last, today, d(2024, 1, 1)); got != tt.want {
				t.Errorf("DailyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklyChecker_IsDue(t *testing.T) {
	checker := WeeklyChecker{}
	today := d(2024, 1, 15)

	tests := []struct {
		name string
		last core.Date
		want bool
	}{
		{"never occurred - is due", core.Date{}, true},
		{"3 days ago - not due", d(2024, 1, 12), false},
		{"6 days ago - not due", d(2024, 1, 9), false},
		{"7 days ago - is due", d(2024, 1, 8), true},
		{"10 days ago - is due", d(2024, 1, 5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.last, today, d(2024, 1, 1)); got != tt.want {
				t.Errorf("WeeklyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_IsDue(t *testing.T) {
	checker := MonthlyChecker{}

	tests := []struct {
		name   string
		last   core.Date
		today  core.Date
		anchor core.Date
		want   bool
	}{
		{"never occurred", core.Date{}, d(2024, 1, 15), d(2024, 1, 15), true},
		{"same month", d(2024, 1, 15), d(2024, 1, 30), d(2024, 1, 15), false},
		{"next month before anchor day", d(2024, 1, 15), d(2024, 2, 14), d(2024, 1, 15), false},
		{"next month on anchor day", d(2024, 1, 15), d(2024, 2, 15), d(2024, 1, 15), true},
		{"next month after anchor day", d(2024, 1, 15), d(2024, 2, 20), d(2024, 1, 15), true},
		{"anchor 31 clamps to end of February", d(2024, 1, 31), d(2024, 2, 29), d(2024, 1, 31), true},
		{"anchor 31 not yet in February", d(2024, 1, 31), d(2024, 2, 28), d(2024, 1, 31), false},
		{"anchor 31 in 30-day month", d(2024, 3, 31), d(2024, 4, 30), d(2024, 1, 31), true},
		{"across year boundary", d(2023, 12, 5), d(2024, 1, 5), d(2023, 12, 5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.last, tt.today, tt.anchor); got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYearlyChecker_IsDue(t *testing.T) {
	checker := YearlyChecker{}
	anchor := d(2023, 6, 15)

	tests := []struct {
		name  string
		last  core.Date
		today core.Date
		want  bool
	}{
		{"never occurred", core.Date{}, d(2024, 1, 1), true},
		{"same year", d(2023, 6, 15), d(2023, 12, 31), false},
		{"next year before anchor month", d(2023, 6, 15), d(2024, 5, 30), false},
		{"next year anchor month before day", d(2023, 6, 15), d(2024, 6, 14), false},
		{"next year on anchor day", d(2023, 6, 15), d(2024, 6, 15), true},
		{"next year past anchor month", d(2023, 6, 15), d(2024, 9, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.last, tt.today, anchor); got != tt.want {
				t.Errorf("YearlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("leap day anchor lands on Feb 28", func(t *testing.T) {
		if !checker.IsDue(d(2024, 2, 29), d(2025, 2, 28), d(2024, 2, 29)) {
			t.Error("expected due on Feb 28 of a non-leap year")
		}
	})
}

func TestGetDuenessChecker(t *testing.T) {
	for _, f := range []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		if _, err := GetDuenessChecker(f); err != nil {
			t.Errorf("GetDuenessChecker(%s) error = %v", f, err)
		}
	}
	for _, f := range []core.Frequency{core.None, "", "hourly"} {
		if _, err := GetDuenessChecker(f); !errors.Is(err, core.ErrInvalidFrequency) {
			t.Errorf("GetDuenessChecker(%q) error = %v, want ErrInvalidFrequency", f, err)
		}
	}
}
