package core

// CategoryTotal is the sum of a category's transactions over a period.
type CategoryTotal struct {
	CategoryID int64
	Name       string
	Icon       string
	Color      string
	Total      Money
}

// Summary is the dashboard view of a period.
type Summary struct {
	Period    Period
	Income    Money
	Expenses  Money
	Net       Money
	Breakdown []CategoryTotal // expense categories only
}

// TrendPoint holds the income and expense totals of one month.
type TrendPoint struct {
	Period   Period
	Income   Money
	Expenses Money
}
