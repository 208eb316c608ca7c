package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Movement is one real bank-statement line to be reconciled against activities.
type Movement struct {
	ID      string          `json:"id"`
	Date    time.Time       `json:"date"`
	Amount  decimal.Decimal `json:"amount"`
	Account string          `json:"account"`
	Name    string          `json:"name"`
	Status  Status          `json:"status"`
}

// Link connects a Movement to an Activity for some portion of the movement's
// amount. It is a single relation: both the movement side and the activity side
// read the same row, so there is exactly one write path.
type Link struct {
	ID       string          `json:"id"`
	Movement string          `json:"movement"`
	Activity string          `json:"activity"`
	Amount   decimal.Decimal `json:"amount"`
}
