// Package reconcile derives activity amounts and reconciliation statuses from
// already-loaded entities. It performs no I/O and holds no state; account and
// movement lookups are injected so the engine stays independent of the stores.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline-dev/ledgerline/internal/model"
)

// AccountInfo is the slice of an Account the engine needs.
type AccountInfo struct {
	Type            model.AccountType
	TracksMovements bool
}

// AccountLookup resolves an account ID to its classification.
// The second return is false for unknown (e.g. concurrently deleted) accounts.
type AccountLookup func(accountID string) (AccountInfo, bool)

// MovementLookup resolves a movement ID referenced by a link row.
type MovementLookup func(movementID string) (model.Movement, bool)

// Amount computes an activity's signed amount from its transactions.
//
// Each transaction contributes through the leg matching the activity type's
// semantic role: an expense counts postings into expense accounts, revenue
// counts postings out of revenue accounts, an investment counts postings into
// investment accounts. A reversed leg (e.g. a refund posting out of an expense
// account) subtracts. Neutral activities report the gross sum of all postings.
func Amount(typ model.ActivityType, transactions []model.Transaction, accounts AccountLookup) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		switch typ {
		case model.ActivityTypeExpense:
			total = total.Add(legContribution(tx, model.AccountTypeExpense, accounts))
		case model.ActivityTypeRevenue:
			// Revenue flows out of a revenue account into the business.
			total = total.Sub(legContribution(tx, model.AccountTypeRevenue, accounts))
		case model.ActivityTypeInvestment:
			total = total.Add(legContribution(tx, model.AccountTypeInvestment, accounts))
		case model.ActivityTypeNeutral:
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// legContribution returns +amount if the posting moves into an account of the
// given type, -amount if it moves out of one, zero otherwise.
func legContribution(tx model.Transaction, at model.AccountType, accounts AccountLookup) decimal.Decimal {
	if info, ok := accounts(tx.ToAccount); ok && info.Type == at {
		return tx.Amount
	}
	if info, ok := accounts(tx.FromAccount); ok && info.Type == at {
		return tx.Amount.Neg()
	}
	return decimal.Zero
}

// ActivityStatus derives an activity's reconciliation status.
//
// A future-dated activity is scheduled. Otherwise, for every account touched by
// the activity's transactions that tracks movements, the link amounts resolved
// to movements on that account must equal the transaction total attributable to
// that account. If every tracked account closes (or none is touched), the
// activity is completed; otherwise incomplete.
func ActivityStatus(date time.Time, now time.Time, transactions []model.Transaction, links []model.Link, accounts AccountLookup, movements MovementLookup) model.Status {
	if date.After(now) {
		return model.StatusScheduled
	}

	// Transaction total per touched tracked account.
	wanted := make(map[string]decimal.Decimal)
	for _, tx := range transactions {
		for _, acct := range []string{tx.FromAccount, tx.ToAccount} {
			info, ok := accounts(acct)
			if !ok || !info.TracksMovements {
				continue
			}
			wanted[acct] = wanted[acct].Add(tx.Amount)
		}
	}
	if len(wanted) == 0 {
		return model.StatusCompleted
	}

	// Link amounts grouped by the linked movement's account.
	linked := make(map[string]decimal.Decimal)
	for _, l := range links {
		mov, ok := movements(l.Movement)
		if !ok {
			continue
		}
		linked[mov.Account] = linked[mov.Account].Add(l.Amount)
	}

	for acct, want := range wanted {
		if !linked[acct].Equal(want) {
			return model.StatusIncomplete
		}
	}
	return model.StatusCompleted
}

// MovementStatus is completed iff the movement's link amounts sum exactly to
// the movement amount.
func MovementStatus(m model.Movement, links []model.Link) model.Status {
	total := decimal.Zero
	for _, l := range links {
		total = total.Add(l.Amount)
	}
	if total.Equal(m.Amount) {
		return model.StatusCompleted
	}
	return model.StatusIncomplete
}

// LiabilityStatus is completed when there is nothing to reconcile against yet
// (no paired row), or when both sides carry the same magnitude.
func LiabilityStatus(l model.Liability, pair *model.Liability) model.Status {
	if pair == nil {
		return model.StatusCompleted
	}
	if l.Amount.Abs().Equal(pair.Amount.Abs()) {
		return model.StatusCompleted
	}
	return model.StatusIncomplete
}
