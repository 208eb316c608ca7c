package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType determines which transaction leg classifies the activity's amount.
type ActivityType string

const (
	ActivityTypeExpense    ActivityType = "expense"
	ActivityTypeRevenue    ActivityType = "revenue"
	ActivityTypeInvestment ActivityType = "investment"
	ActivityTypeNeutral    ActivityType = "neutral"
)

// Activity is a user-facing financial event backed by one or more Transactions.
// Number is a server-assigned monotonic sequence (zero until confirmed).
// Amount and Status are derived and recomputed after every mutation; movement
// links and liabilities live in their own relations, keyed by activity ID.
type Activity struct {
	ID           string          `json:"id"`
	Number       int64           `json:"number,omitempty"`
	Name         string          `json:"name"`
	Date         time.Time       `json:"date"`
	Type         ActivityType    `json:"type"`
	Category     string          `json:"category,omitempty"`
	Subcategory  string          `json:"subcategory,omitempty"`
	Project      string          `json:"project,omitempty"`
	Transactions []Transaction   `json:"transactions"`
	Amount       decimal.Decimal `json:"amount"`
	Status       Status          `json:"status"`
}

// Project groups activities for reporting.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
