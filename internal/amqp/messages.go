package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// BudgetAlertMessage tells the alert worker that a budget crossed into a
// worse state after a transaction was added. It carries everything the
// notification needs so the worker never reads the database.
type BudgetAlertMessage struct {
	BudgetID       int64     `json:"budget_id"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Currency       string    `json:"currency"`
	CategoryName   string    `json:"category_name"`
	Month          string    `json:"month"` // YYYY-MM-DD, first of month
	AmountCents    int64     `json:"amount_cents"`
	SpentCents     int64     `json:"spent_cents"`
	PercentageUsed float64   `json:"percentage_used"`
	AlertThreshold int       `json:"alert_threshold"`
	PreviousState  string    `json:"previous_state"`
	State          string    `json:"state"`
	TransactionID  int64     `json:"transaction_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetAlertMessageFromJSON decodes a message and rejects ones missing the
// fields a notification cannot do without.
func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.BudgetID == 0 || msg.UserID == 0 || msg.State == "" {
		return nil, fmt.Errorf("incomplete budget alert message")
	}
	return &msg, nil
}
