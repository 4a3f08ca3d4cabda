package core

// TransactionFilter narrows a transaction listing. Zero fields do not filter.
type TransactionFilter struct {
	CategoryID int64
	Type       TransactionType
	Period     Period
	Limit      int
}
