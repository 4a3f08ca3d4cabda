package core

// BudgetState is the derived health of a budget.
type BudgetState string

const (
	OnTrack  BudgetState = "on_track"
	Warning  BudgetState = "warning"
	Alert    BudgetState = "alert"
	Exceeded BudgetState = "exceeded"
)

const (
	// DefaultAlertThreshold is the percentage at which a budget starts warning.
	DefaultAlertThreshold = 80

	alertPercent    = 90.0
	exceededPercent = 100.0
)

var stateRank = map[BudgetState]int{OnTrack: 0, Warning: 1, Alert: 2, Exceeded: 3}

// Rank orders states from on_track (0) to exceeded (3).
func (s BudgetState) Rank() int {
	return stateRank[s]
}

// BudgetStatus is a budget with the values derived from the ledger.
type BudgetStatus struct {
	Budget
	Spent          Money
	PercentageUsed float64
	Remaining      Money
	State          BudgetState
}

// ValidateThreshold checks the 1-100 alert threshold range.
func ValidateThreshold(threshold int) error {
	if threshold < 1 || threshold > 100 {
		return ErrInvalidThreshold
	}
	return nil
}

// PercentageUsed returns spent/amount*100, or 0 when amount is zero.
func PercentageUsed(amount, spent Money) float64 {
	if amount.Cents == 0 {
		return 0
	}
	return float64(spent.Cents*100) / float64(amount.Cents)
}

// StateFor evaluates exceeded, alert and warning in that priority order.
func StateFor(percentage float64, threshold int) BudgetState {
	switch {
	case percentage >= exceededPercent:
		return Exceeded
	case percentage >= alertPercent:
		return Alert
	case percentage >= float64(threshold):
		return Warning
	default:
		return OnTrack
	}
}

// EvaluateBudget derives the status of b given the amount spent in its month.
func EvaluateBudget(b Budget, spent Money) BudgetStatus {
	pct := PercentageUsed(b.Amount, spent)
	return BudgetStatus{
		Budget:         b,
		Spent:          spent,
		PercentageUsed: pct,
		Remaining:      b.Amount.Sub(spent),
		State:          StateFor(pct, b.AlertThreshold),
	}
}

// BarWidth clamps the percentage to 0-100 for progress bars.
func (s BudgetStatus) BarWidth() int {
	switch {
	case s.PercentageUsed <= 0:
		return 0
	case s.PercentageUsed >= 100:
		return 100
	default:
		return int(s.PercentageUsed + 0.5)
	}
}
