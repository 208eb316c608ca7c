package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Liability is one side of an inter-person debt produced by an activity.
// Two rows sharing a server-assigned LinkID are the debtor and creditor sides
// of the same debt; they carry same-magnitude, opposite-sign amounts.
type Liability struct {
	ID       string          `json:"id"`
	Account  string          `json:"account"`
	Activity string          `json:"activity"`
	Amount   decimal.Decimal `json:"amount"`
	LinkID   string          `json:"linkId,omitempty"`
	Date     time.Time       `json:"date"`
	Name     string          `json:"name"`
	Status   Status          `json:"status"`
}
