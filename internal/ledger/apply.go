package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/ledgerline-dev/ledgerline/internal/event"
	"github.com/ledgerline-dev/ledgerline/internal/model"
)

// ApplyLocal applies a command optimistically and returns the snapshot needed
// to reverse it if the server later rejects the mutation. Updates or deletes
// of IDs this replica no longer holds are tolerated as no-ops, because remote
// deletes race with local intent.
func (l *Ledger) ApplyLocal(cmd Command) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var snap Snapshot
	if err := l.dispatch(cmd.Type, cmd.Payload, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// HandleEvent applies a remote or caught-up event. Idempotent: applying the
// same event twice leaves the same state as applying it once, and the end
// state matches the optimistic path for the logically equivalent command.
func (l *Ledger) HandleEvent(ev event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dispatch(ev.Type, ev.Payload, nil)
}

// HandleMutationSuccess merges server-assigned fields from the confirmed
// payload: the activity number, and liability link ids fanned out to every
// row the command produced.
func (l *Ledger) HandleMutationSuccess(cmd Command, confirmed json.RawMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch cmd.Type {
	case event.TypeActivityCreated:
		p, err := event.DecodeRaw[event.ActivityCreated](cmd.Type, confirmed)
		if err != nil {
			return err
		}
		if a, ok := l.activities[p.Activity.ID]; ok {
			a.Number = p.Activity.Number
			l.activities[p.Activity.ID] = a
		}
		l.mergeLiabilityLinks(p.Liabilities)
	case event.TypeActivityUpdated:
		p, err := event.DecodeRaw[event.ActivityUpdated](cmd.Type, confirmed)
		if err != nil {
			return err
		}
		if p.Patch.Liabilities != nil {
			l.mergeLiabilityLinks(*p.Patch.Liabilities)
		}
	}
	return nil
}

// HandleMutationError reverses a rejected command using the snapshot captured
// when it was applied optimistically.
func (l *Ledger) HandleMutationError(cmd Command, snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.compensate(snap)
}

// mergeLiabilityLinks fans server-assigned link ids out to local rows and
// refreshes pairing status on both sides of each debt.
func (l *Ledger) mergeLiabilityLinks(confirmed []model.Liability) {
	for _, c := range confirmed {
		li, ok := l.liabilities[c.ID]
		if !ok {
			continue
		}
		li.LinkID = c.LinkID
		l.putLiability(li)
	}
	for _, c := range confirmed {
		l.recomputeLiability(c.ID)
		if pair := l.pairOf(model.Liability{ID: c.ID, LinkID: c.LinkID}); pair != nil {
			l.recomputeLiability(pair.ID)
		}
	}
}

// dispatch decodes the payload for typ and applies it. snap is non-nil on the
// optimistic path and collects rollback state; the remote path passes nil.
func (l *Ledger) dispatch(typ event.Type, payload json.RawMessage, snap *Snapshot) error {
	switch typ {
	case event.TypeAccountCreated:
		p, err := event.DecodeRaw[event.AccountCreated](typ, payload)
		if err != nil {
			return err
		}
		l.applyAccountCreated(p, snap)
	case event.TypeAccountUpdated:
		p, err := event.DecodeRaw[event.AccountUpdated](typ, payload)
		if err != nil {
			return err
		}
		l.applyAccountUpdated(p, snap)
	case event.TypeAccountDeleted:
		p, err := event.DecodeRaw[event.AccountDeleted](typ, payload)
		if err != nil {
			return err
		}
		l.applyAccountDeleted(p, snap)
	case event.TypeActivityCreated:
		p, err := event.DecodeRaw[event.ActivityCreated](typ, payload)
		if err != nil {
			return err
		}
		l.applyActivityCreated(p, snap)
	case event.TypeActivityUpdated:
		p, err := event.DecodeRaw[event.ActivityUpdated](typ, payload)
		if err != nil {
			return err
		}
		l.applyActivityUpdated(p, snap)
	case event.TypeActivityDeleted:
		p, err := event.DecodeRaw[event.ActivityDeleted](typ, payload)
		if err != nil {
			return err
		}
		l.applyActivityDeleted(p, snap)
	case event.TypeMovementCreated:
		p, err := event.DecodeRaw[event.MovementCreated](typ, payload)
		if err != nil {
			return err
		}
		l.applyMovementCreated(p, snap)
	case event.TypeMovementUpdated:
		p, err := event.DecodeRaw[event.MovementUpdated](typ, payload)
		if err != nil {
			return err
		}
		l.applyMovementUpdated(p, snap)
	case event.TypeMovementDeleted:
		p, err := event.DecodeRaw[event.MovementDeleted](typ, payload)
		if err != nil {
			return err
		}
		l.applyMovementDeleted(p, snap)
	case event.TypeLinkCreated:
		p, err := event.DecodeRaw[event.LinkCreated](typ, payload)
		if err != nil {
			return err
		}
		l.applyLinkCreated(p, snap)
	case event.TypeLinkUpdated:
		p, err := event.DecodeRaw[event.LinkUpdated](typ, payload)
		if err != nil {
			return err
		}
		l.applyLinkUpdated(p, snap)
	case event.TypeLinkDeleted:
		p, err := event.DecodeRaw[event.LinkDeleted](typ, payload)
		if err != nil {
			return err
		}
		l.applyLinkDeleted(p, snap)
	case event.TypeProjectCreated:
		p, err := event.DecodeRaw[event.ProjectCreated](typ, payload)
		if err != nil {
			return err
		}
		l.applyProjectCreated(p, snap)
	case event.TypeProjectUpdated:
		p, err := event.DecodeRaw[event.ProjectUpdated](typ, payload)
		if err != nil {
			return err
		}
		l.applyProjectUpdated(p, snap)
	case event.TypeProjectDeleted:
		p, err := event.DecodeRaw[event.ProjectDeleted](typ, payload)
		if err != nil {
			return err
		}
		l.applyProjectDeleted(p, snap)
	default:
		return fmt.Errorf("unknown event type %q", typ)
	}
	return nil
}

func (l *Ledger) applyAccountCreated(p event.AccountCreated, snap *Snapshot) {
	if snap != nil {
		snap.Created.Accounts = append(snap.Created.Accounts, p.Account.ID)
	}
	l.accounts[p.Account.ID] = p.Account
	l.recomputeAccountActivities(p.Account.ID)
}

func (l *Ledger) applyAccountUpdated(p event.AccountUpdated, snap *Snapshot) {
	acct, ok := l.accounts[p.ID]
	if !ok {
		return
	}
	if snap != nil {
		snap.Accounts = append(snap.Accounts, acct)
	}
	p.Patch.Apply(&acct)
	l.accounts[p.ID] = acct
	l.recomputeAccountActivities(p.ID)
}

func (l *Ledger) applyAccountDeleted(p event.AccountDeleted, snap *Snapshot) {
	acct, ok := l.accounts[p.ID]
	if !ok {
		return
	}
	if snap != nil {
		snap.Accounts = append(snap.Accounts, acct)
	}
	delete(l.accounts, p.ID)
	l.recomputeAccountActivities(p.ID)
}

func (l *Ledger) applyActivityCreated(p event.ActivityCreated, snap *Snapshot) {
	if snap != nil {
		snap.Created.Activities = append(snap.Created.Activities, p.Activity.ID)
		for _, li := range p.Liabilities {
			snap.Created.Liabilities = append(snap.Created.Liabilities, li.ID)
		}
	}
	l.activities[p.Activity.ID] = p.Activity
	for _, li := range p.Liabilities {
		l.putLiability(li)
	}
	l.recomputeActivity(p.Activity.ID)
	for _, li := range p.Liabilities {
		l.recomputeLiability(li.ID)
	}
}

func (l *Ledger) applyActivityUpdated(p event.ActivityUpdated, snap *Snapshot) {
	act, ok := l.activities[p.ID]
	if !ok {
		return
	}
	if snap != nil {
		snap.Activities = append(snap.Activities, act)
	}

	p.Patch.Apply(&act)
	l.activities[p.ID] = act

	if p.Patch.Liabilities != nil {
		prior := l.activityLiabilityIDs(p.ID)
		for _, id := range prior {
			if snap != nil {
				snap.Liabilities = append(snap.Liabilities, l.liabilities[id])
			}
			l.removeLiability(id)
		}
		for _, li := range *p.Patch.Liabilities {
			if snap != nil {
				snap.Created.Liabilities = append(snap.Created.Liabilities, li.ID)
			}
			l.putLiability(li)
		}
		for _, li := range *p.Patch.Liabilities {
			l.recomputeLiability(li.ID)
		}
	}
	l.recomputeActivity(p.ID)
}

func (l *Ledger) applyActivityDeleted(p event.ActivityDeleted, snap *Snapshot) {
	act, ok := l.activities[p.ID]
	if !ok {
		return
	}
	if snap != nil {
		snap.Activities = append(snap.Activities, act)
	}

	// Sever link rows and remember the movements they pointed at.
	severed := l.links.byActivityList(p.ID)
	for _, link := range severed {
		if snap != nil {
			snap.Links = append(snap.Links, link)
		}
		l.links.remove(link.ID)
	}

	for _, id := range l.activityLiabilityIDs(p.ID) {
		if snap != nil {
			snap.Liabilities = append(snap.Liabilities, l.liabilities[id])
		}
		l.removeLiability(id)
	}

	delete(l.activities, p.ID)
	for _, link := range severed {
		l.recomputeMovement(link.Movement)
	}
}

func (l *Ledger) applyMovementCreated(p event.MovementCreated, snap *Snapshot) {
	if snap != nil {
		snap.Created.Movements = append(snap.Created.Movements, p.Movement.ID)
	}
	l.movements[p.Movement.ID] = p.Movement
	l.recomputeMovement(p.Movement.ID)
}

func (l *Ledger) applyMovementUpdated(p event.MovementUpdated, snap *Snapshot) {
	mov, ok := l.movements[p.ID]
	if !ok {
		return
	}
	if snap != nil {
		snap.Movements = append(snap.Movements, mov)
	}
	p.Patch.Apply(&mov)
	l.movements[p.ID] = mov
	l.recomputeMovement(p.ID)
	for _, link := range l.links.byMovementList(p.ID) {
		l.recomputeActivity(link.Activity)
	}
}

func (l *Ledger) applyMovementDeleted(p event.MovementDeleted, snap *Snapshot) {
	mov, ok := l.movements[p.ID]
	if !ok {
		return
	}
	if snap != nil {
		snap.Movements = append(snap.Movements, mov)
	}

	severed := l.links.byMovementList(p.ID)
	for _, link := range severed {
		if snap != nil {
			snap.Links = append(snap.Links, link)
		}
		l.links.remove(link.ID)
	}

	delete(l.movements, p.ID)
	for _, link := range severed {
		l.recomputeActivity(link.Activity)
	}
}

func (l *Ledger) applyLinkCreated(p event.LinkCreated, snap *Snapshot) {
	if snap != nil {
		snap.Created.Links = append(snap.Created.Links, p.Link.ID)
	}
	l.links.put(p.Link)
	l.recomputeMovement(p.Link.Movement)
	l.recomputeActivity(p.Link.Activity)
}

func (l *Ledger) applyLinkUpdated(p event.LinkUpdated, snap *Snapshot) {
	link, ok := l.links.get(p.ID)
	if !ok {
		return
	}
	if snap != nil {
		snap.Links = append(snap.Links, link)
	}
	link.Amount = p.Amount
	l.links.put(link)
	l.recomputeMovement(link.Movement)
	l.recomputeActivity(link.Activity)
}

func (l *Ledger) applyLinkDeleted(p event.LinkDeleted, snap *Snapshot) {
	link, ok := l.links.get(p.ID)
	if !ok {
		return
	}
	if snap != nil {
		snap.Links = append(snap.Links, link)
	}
	l.links.remove(p.ID)
	l.recomputeMovement(link.Movement)
	l.recomputeActivity(link.Activity)
}

func (l *Ledger) applyProjectCreated(p event.ProjectCreated, snap *Snapshot) {
	if snap != nil {
		snap.Created.Projects = append(snap.Created.Projects, p.Project.ID)
	}
	l.projects[p.Project.ID] = p.Project
}

func (l *Ledger) applyProjectUpdated(p event.ProjectUpdated, snap *Snapshot) {
	proj, ok := l.projects[p.ID]
	if !ok {
		return
	}
	if snap != nil {
		snap.Projects = append(snap.Projects, proj)
	}
	proj.Name = p.Name
	l.projects[p.ID] = proj
}

func (l *Ledger) applyProjectDeleted(p event.ProjectDeleted, snap *Snapshot) {
	proj, ok := l.projects[p.ID]
	if !ok {
		return
	}
	if snap != nil {
		snap.Projects = append(snap.Projects, proj)
	}
	delete(l.projects, p.ID)
}

// activityLiabilityIDs returns a stable copy of the liability IDs for an
// activity; callers mutate the index while iterating.
func (l *Ledger) activityLiabilityIDs(activityID string) []string {
	ids := make([]string, 0, len(l.liabsByActivity[activityID]))
	for id := range l.liabsByActivity[activityID] {
		ids = append(ids, id)
	}
	return ids
}
