package event

import "github.com/ledgerline-dev/ledgerline/internal/model"

// Patch application is shared by the authoritative server and the client's
// optimistic path so both converge on identical field-level last-writer-wins.

// Apply copies the patch's set fields onto the account.
func (p AccountPatch) Apply(a *model.Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.StartingBalance != nil {
		a.StartingBalance = p.StartingBalance
	}
	if p.StartingCashBalance != nil {
		a.StartingCashBalance = p.StartingCashBalance
	}
	if p.TracksMovements != nil {
		a.TracksMovements = *p.TracksMovements
	}
}

// Apply copies the patch's set fields onto the activity. Transactions replace
// the whole slice; liability replacement is handled by the caller because it
// touches the liabilities relation, not the activity row.
func (p ActivityPatch) Apply(a *model.Activity) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Category != nil {
		a.Category = *p.Category
	}
	if p.Subcategory != nil {
		a.Subcategory = *p.Subcategory
	}
	if p.Project != nil {
		a.Project = *p.Project
	}
	if p.Transactions != nil {
		a.Transactions = *p.Transactions
	}
}

// Apply copies the patch's set fields onto the movement.
func (p MovementPatch) Apply(m *model.Movement) {
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.Amount != nil {
		m.Amount = *p.Amount
	}
	if p.Account != nil {
		m.Account = *p.Account
	}
	if p.Name != nil {
		m.Name = *p.Name
	}
}
