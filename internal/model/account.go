package model

import "github.com/shopspring/decimal"

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeBank        AccountType = "bank"
	AccountTypeCash        AccountType = "cash"
	AccountTypeInvestment  AccountType = "investment"
	AccountTypeLiabilities AccountType = "liabilities"
	AccountTypeExpense     AccountType = "expense"
	AccountTypeRevenue     AccountType = "revenue"
)

// Account is one entry in the chart of accounts.
// TracksMovements marks accounts backed by a real bank feed: activities touching
// them only count as completed once reconciled against imported movements.
type Account struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Type                AccountType      `json:"type"`
	StartingBalance     *decimal.Decimal `json:"startingBalance,omitempty"`
	StartingCashBalance *decimal.Decimal `json:"startingCashBalance,omitempty"`
	TracksMovements     bool             `json:"tracksMovements"`
}
