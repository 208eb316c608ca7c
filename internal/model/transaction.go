package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ledger posting between two accounts, owned by exactly
// one Activity. Amount is a positive magnitude; direction is FromAccount -> ToAccount.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	FromAccount string          `json:"fromAccount"`
	ToAccount   string          `json:"toAccount"`
	FromUser    string          `json:"fromUser,omitempty"`
	ToUser      string          `json:"toUser,omitempty"`
}

// Touches reports whether the posting moves money into or out of the account.
func (t Transaction) Touches(accountID string) bool {
	return t.FromAccount == accountID || t.ToAccount == accountID
}

// BankTransaction represents a parsed bank CSV row, before it becomes a Movement.
type BankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = expense, positive = income
	Reference   string
	Type        string // bank transaction type (ACH_DEBIT, etc.)
}
