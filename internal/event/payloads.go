package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline-dev/ledgerline/internal/model"
)

// AccountCreated carries the full new account.
type AccountCreated struct {
	Account model.Account `json:"account"`
}

// AccountPatch is a partial account update; nil fields are untouched.
type AccountPatch struct {
	Name                *string            `json:"name,omitempty"`
	Type                *model.AccountType `json:"type,omitempty"`
	StartingBalance     *decimal.Decimal   `json:"startingBalance,omitempty"`
	StartingCashBalance *decimal.Decimal   `json:"startingCashBalance,omitempty"`
	TracksMovements     *bool              `json:"tracksMovements,omitempty"`
}

type AccountUpdated struct {
	ID    string       `json:"id"`
	Patch AccountPatch `json:"patch"`
}

type AccountDeleted struct {
	ID string `json:"id"`
}

// ActivityCreated carries the activity (with embedded transactions) and any
// liabilities it produces. Number and liability LinkIDs are zero until the
// server fills them in; the confirmed payload echoes them back.
type ActivityCreated struct {
	Activity    model.Activity    `json:"activity"`
	Liabilities []model.Liability `json:"liabilities,omitempty"`
}

// ActivityPatch is a partial activity update. Transactions and Liabilities
// replace the whole set when present (last-writer-wins per field).
type ActivityPatch struct {
	Name         *string              `json:"name,omitempty"`
	Date         *time.Time           `json:"date,omitempty"`
	Type         *model.ActivityType  `json:"type,omitempty"`
	Category     *string              `json:"category,omitempty"`
	Subcategory  *string              `json:"subcategory,omitempty"`
	Project      *string              `json:"project,omitempty"`
	Transactions *[]model.Transaction `json:"transactions,omitempty"`
	Liabilities  *[]model.Liability   `json:"liabilities,omitempty"`
}

type ActivityUpdated struct {
	ID    string        `json:"id"`
	Patch ActivityPatch `json:"patch"`
}

type ActivityDeleted struct {
	ID string `json:"id"`
}

type MovementCreated struct {
	Movement model.Movement `json:"movement"`
}

// MovementPatch is a partial movement update; nil fields are untouched.
type MovementPatch struct {
	Date    *time.Time       `json:"date,omitempty"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Account *string          `json:"account,omitempty"`
	Name    *string          `json:"name,omitempty"`
}

type MovementUpdated struct {
	ID    string        `json:"id"`
	Patch MovementPatch `json:"patch"`
}

type MovementDeleted struct {
	ID string `json:"id"`
}

type LinkCreated struct {
	Link model.Link `json:"link"`
}

type LinkUpdated struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

type LinkDeleted struct {
	ID string `json:"id"`
}

type ProjectCreated struct {
	Project model.Project `json:"project"`
}

type ProjectUpdated struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProjectDeleted struct {
	ID string `json:"id"`
}
