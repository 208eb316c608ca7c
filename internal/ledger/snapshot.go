package ledger

import "github.com/ledgerline-dev/ledgerline/internal/model"

// Snapshot captures what ApplyLocal changed, in a form that fully reverses it:
// the prior state of every touched row, plus the IDs of rows the command
// created. It serializes to JSON so the sync queue can persist it alongside
// the pending mutation.
type Snapshot struct {
	Accounts    []model.Account   `json:"accounts,omitempty"`
	Activities  []model.Activity  `json:"activities,omitempty"`
	Movements   []model.Movement  `json:"movements,omitempty"`
	Links       []model.Link      `json:"links,omitempty"`
	Liabilities []model.Liability `json:"liabilities,omitempty"`
	Projects    []model.Project   `json:"projects,omitempty"`
	Created     CreatedIDs        `json:"created"`
}

// CreatedIDs lists rows to delete when compensating a failed command.
type CreatedIDs struct {
	Accounts    []string `json:"accounts,omitempty"`
	Activities  []string `json:"activities,omitempty"`
	Movements   []string `json:"movements,omitempty"`
	Links       []string `json:"links,omitempty"`
	Liabilities []string `json:"liabilities,omitempty"`
	Projects    []string `json:"projects,omitempty"`
}

// compensate reverses the command the snapshot was captured for: created rows
// are deleted, captured rows are restored, and derived state is recomputed.
// Caller must hold the ledger mutex.
func (l *Ledger) compensate(snap Snapshot) {
	for _, id := range snap.Created.Links {
		l.links.remove(id)
	}
	for _, id := range snap.Created.Liabilities {
		l.removeLiability(id)
	}
	for _, id := range snap.Created.Activities {
		delete(l.activities, id)
	}
	for _, id := range snap.Created.Movements {
		delete(l.movements, id)
	}
	for _, id := range snap.Created.Accounts {
		delete(l.accounts, id)
	}
	for _, id := range snap.Created.Projects {
		delete(l.projects, id)
	}

	for _, a := range snap.Accounts {
		l.accounts[a.ID] = a
	}
	for _, a := range snap.Activities {
		l.activities[a.ID] = a
	}
	for _, m := range snap.Movements {
		l.movements[m.ID] = m
	}
	for _, link := range snap.Links {
		l.links.put(link)
	}
	for _, li := range snap.Liabilities {
		l.putLiability(li)
	}
	for _, p := range snap.Projects {
		l.projects[p.ID] = p
	}

	l.recomputeAll()
}
