// Package ledger holds the client's materialized view of every aggregate:
// accounts, activities, movements, liabilities and projects, plus the single
// movement/activity link relation. It is mutated on two paths that must
// converge: the optimistic local path (ApplyLocal, with rollback snapshots)
// and the remote path (HandleEvent, idempotent). All mutations run under one
// mutex so cross-aggregate propagation is never observed half-applied.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/ledgerline-dev/ledgerline/internal/model"
	"github.com/ledgerline-dev/ledgerline/internal/reconcile"
)

// Ledger is one client replica's in-memory state.
type Ledger struct {
	mu sync.Mutex

	accounts    map[string]model.Account
	activities  map[string]model.Activity
	movements   map[string]model.Movement
	projects    map[string]model.Project
	liabilities map[string]model.Liability

	liabsByActivity map[string]map[string]bool
	liabsByLinkID   map[string]map[string]bool

	links linkIndex

	now func() time.Time
}

// New creates an empty replica.
func New() *Ledger {
	return &Ledger{
		accounts:        make(map[string]model.Account),
		activities:      make(map[string]model.Activity),
		movements:       make(map[string]model.Movement),
		projects:        make(map[string]model.Project),
		liabilities:     make(map[string]model.Liability),
		liabsByActivity: make(map[string]map[string]bool),
		liabsByLinkID:   make(map[string]map[string]bool),
		links:           newLinkIndex(),
		now:             time.Now,
	}
}

// SetClock overrides the time source used for scheduled-vs-due decisions. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Account returns an account by ID.
func (l *Ledger) Account(id string) (model.Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[id]
	return a, ok
}

// Activity returns an activity by ID, with derived amount and status.
func (l *Ledger) Activity(id string) (model.Activity, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.activities[id]
	return a, ok
}

// Movement returns a movement by ID.
func (l *Ledger) Movement(id string) (model.Movement, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.movements[id]
	return m, ok
}

// Liability returns a liability by ID.
func (l *Ledger) Liability(id string) (model.Liability, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	li, ok := l.liabilities[id]
	return li, ok
}

// Project returns a project by ID.
func (l *Ledger) Project(id string) (model.Project, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.projects[id]
	return p, ok
}

// MovementLinks returns the link rows attached to a movement, ordered by link ID.
func (l *Ledger) MovementLinks(movementID string) []model.Link {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.links.byMovementList(movementID)
}

// ActivityLinks returns the link rows attached to an activity, ordered by link ID.
func (l *Ledger) ActivityLinks(activityID string) []model.Link {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.links.byActivityList(activityID)
}

// ActivityLiabilities returns the liabilities produced by an activity, ordered by ID.
func (l *Ledger) ActivityLiabilities(activityID string) []model.Liability {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.liabsByActivity[activityID]
	out := make([]model.Liability, 0, len(ids))
	for id := range ids {
		out = append(out, l.liabilities[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Movements returns every movement, ordered by ID.
func (l *Ledger) Movements() []model.Movement {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.Movement, 0, len(l.movements))
	for _, m := range l.movements {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// accountInfo adapts the accounts map to the engine's injected lookup.
func (l *Ledger) accountInfo(id string) (reconcile.AccountInfo, bool) {
	a, ok := l.accounts[id]
	if !ok {
		return reconcile.AccountInfo{}, false
	}
	return reconcile.AccountInfo{Type: a.Type, TracksMovements: a.TracksMovements}, true
}

// movementByID adapts the movements map to the engine's injected resolver.
func (l *Ledger) movementByID(id string) (model.Movement, bool) {
	m, ok := l.movements[id]
	return m, ok
}

// recomputeActivity refreshes an activity's derived amount and status.
func (l *Ledger) recomputeActivity(id string) {
	a, ok := l.activities[id]
	if !ok {
		return
	}
	a.Amount = reconcile.Amount(a.Type, a.Transactions, l.accountInfo)
	a.Status = reconcile.ActivityStatus(a.Date, l.now(), a.Transactions, l.links.byActivityList(id), l.accountInfo, l.movementByID)
	l.activities[id] = a
}

// recomputeMovement refreshes a movement's derived status.
func (l *Ledger) recomputeMovement(id string) {
	m, ok := l.movements[id]
	if !ok {
		return
	}
	m.Status = reconcile.MovementStatus(m, l.links.byMovementList(id))
	l.movements[id] = m
}

// recomputeLiability refreshes a liability's derived status against its pair.
func (l *Ledger) recomputeLiability(id string) {
	li, ok := l.liabilities[id]
	if !ok {
		return
	}
	li.Status = reconcile.LiabilityStatus(li, l.pairOf(li))
	l.liabilities[id] = li
}

// pairOf returns the other side of a liability's debt, if both carry the same
// server-assigned link id.
func (l *Ledger) pairOf(li model.Liability) *model.Liability {
	if li.LinkID == "" {
		return nil
	}
	for otherID := range l.liabsByLinkID[li.LinkID] {
		if otherID == li.ID {
			continue
		}
		other := l.liabilities[otherID]
		return &other
	}
	return nil
}

// recomputeAccountActivities refreshes every activity touching the account.
func (l *Ledger) recomputeAccountActivities(accountID string) {
	for id, a := range l.activities {
		for _, tx := range a.Transactions {
			if tx.Touches(accountID) {
				l.recomputeActivity(id)
				break
			}
		}
	}
}

// recomputeAll refreshes every derived field. Used after a rollback, where the
// set of affected rows is not worth tracking precisely.
func (l *Ledger) recomputeAll() {
	for id := range l.activities {
		l.recomputeActivity(id)
	}
	for id := range l.movements {
		l.recomputeMovement(id)
	}
	for id := range l.liabilities {
		l.recomputeLiability(id)
	}
}

// putLiability upserts a liability row and maintains both indexes.
func (l *Ledger) putLiability(li model.Liability) {
	l.removeLiability(li.ID)
	l.liabilities[li.ID] = li

	if l.liabsByActivity[li.Activity] == nil {
		l.liabsByActivity[li.Activity] = make(map[string]bool)
	}
	l.liabsByActivity[li.Activity][li.ID] = true

	if li.LinkID != "" {
		if l.liabsByLinkID[li.LinkID] == nil {
			l.liabsByLinkID[li.LinkID] = make(map[string]bool)
		}
		l.liabsByLinkID[li.LinkID][li.ID] = true
	}
}

// removeLiability deletes a liability row and its index entries. No-op for
// unknown IDs.
func (l *Ledger) removeLiability(id string) {
	li, ok := l.liabilities[id]
	if !ok {
		return
	}
	delete(l.liabilities, id)
	if ids := l.liabsByActivity[li.Activity]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(l.liabsByActivity, li.Activity)
		}
	}
	if li.LinkID != "" {
		if ids := l.liabsByLinkID[li.LinkID]; ids != nil {
			delete(ids, id)
			if len(ids) == 0 {
				delete(l.liabsByLinkID, li.LinkID)
			}
		}
	}
}
