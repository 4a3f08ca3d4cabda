// Package services holds the business operations of MoneyWise: identity and
// sessions, categories, the transaction ledger, aggregation, budgets, budget
// alerts and recurring transactions. Every operation takes the acting user
// explicitly; nothing reads ambient login state.
package services

import (
	"time"

	"moneywise/internal/log"
)

func componentLogger(l *log.Logger, component string) *log.Logger {
	if l == nil {
		l = log.New(log.DefaultConfig())
	}
	return l.WithComponent(component)
}

// clock is embedded by services that need the current time.
type clock struct {
	now func() time.Time
}

// SetClock overrides the time source, for tests.
func (c *clock) SetClock(now func() time.Time) {
	c.now = now
}

func (c *clock) current() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}
