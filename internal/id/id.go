package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// bankRowNamespace scopes deterministic import ids. Generated once, fixed forever.
var bankRowNamespace = uuid.MustParse("9f2c5c2e-40b1-4b86-9dd0-6a8f6c0a51d4")

// New returns a random entity id.
func New() string {
	return uuid.NewString()
}

// BankRow returns a deterministic movement id for an imported bank-statement
// row. Re-importing the same statement yields the same ids, so duplicate rows
// collapse instead of creating duplicate movements.
func BankRow(accountID string, date time.Time, amount decimal.Decimal, reference string) string {
	key := fmt.Sprintf("%s|%s|%s|%s", accountID, date.Format("2006-01-02"), amount.String(), reference)
	return uuid.NewSHA1(bankRowNamespace, []byte(key)).String()
}
