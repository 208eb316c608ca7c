package ledger

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline-dev/ledgerline/internal/event"
	"github.com/ledgerline-dev/ledgerline/internal/model"
)

// Command is one user intent: an operation name plus its payload, encoded
// exactly as the server will echo it back as an event. Commands are built by
// the constructors below, applied optimistically via ApplyLocal, and reversed
// via the snapshot captured at apply time.
type Command struct {
	Type    event.Type      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newCommand(typ event.Type, payload any) (Command, error) {
	raw, err := event.Marshal(payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Type: typ, Payload: raw}, nil
}

// NewCreateAccount builds a create command, generating the client-side ID.
// Returns the command and the generated ID.
func NewCreateAccount(a model.Account) (Command, string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cmd, err := newCommand(event.TypeAccountCreated, event.AccountCreated{Account: a})
	return cmd, a.ID, err
}

// NewUpdateAccount builds a partial-update command.
func NewUpdateAccount(id string, patch event.AccountPatch) (Command, error) {
	return newCommand(event.TypeAccountUpdated, event.AccountUpdated{ID: id, Patch: patch})
}

// NewDeleteAccount builds a delete command.
func NewDeleteAccount(id string) (Command, error) {
	return newCommand(event.TypeAccountDeleted, event.AccountDeleted{ID: id})
}

// NewCreateActivity builds a create command for an activity and the liabilities
// it produces. Client-side IDs are generated for the activity, its
// transactions and its liabilities; the server later assigns the activity
// number and liability link ids.
func NewCreateActivity(a model.Activity, liabilities []model.Liability) (Command, string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	for i := range a.Transactions {
		if a.Transactions[i].ID == "" {
			a.Transactions[i].ID = uuid.NewString()
		}
	}
	for i := range liabilities {
		if liabilities[i].ID == "" {
			liabilities[i].ID = uuid.NewString()
		}
		liabilities[i].Activity = a.ID
		if liabilities[i].Date.IsZero() {
			liabilities[i].Date = a.Date
		}
	}
	cmd, err := newCommand(event.TypeActivityCreated, event.ActivityCreated{Activity: a, Liabilities: liabilities})
	return cmd, a.ID, err
}

// NewUpdateActivity builds a partial-update command. If the patch replaces
// liabilities, client-side IDs are generated for the new rows.
func NewUpdateActivity(id string, patch event.ActivityPatch) (Command, error) {
	if patch.Transactions != nil {
		txs := *patch.Transactions
		for i := range txs {
			if txs[i].ID == "" {
				txs[i].ID = uuid.NewString()
			}
		}
	}
	if patch.Liabilities != nil {
		liabs := *patch.Liabilities
		for i := range liabs {
			if liabs[i].ID == "" {
				liabs[i].ID = uuid.NewString()
			}
			liabs[i].Activity = id
		}
	}
	return newCommand(event.TypeActivityUpdated, event.ActivityUpdated{ID: id, Patch: patch})
}

// NewDeleteActivity builds a delete command. Applying it severs the activity's
// link rows and removes its liabilities.
func NewDeleteActivity(id string) (Command, error) {
	return newCommand(event.TypeActivityDeleted, event.ActivityDeleted{ID: id})
}

// NewCreateMovement builds a create command, generating the client-side ID.
func NewCreateMovement(m model.Movement) (Command, string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	cmd, err := newCommand(event.TypeMovementCreated, event.MovementCreated{Movement: m})
	return cmd, m.ID, err
}

// NewUpdateMovement builds a partial-update command.
func NewUpdateMovement(id string, patch event.MovementPatch) (Command, error) {
	return newCommand(event.TypeMovementUpdated, event.MovementUpdated{ID: id, Patch: patch})
}

// NewDeleteMovement builds a delete command. Applying it severs the movement's
// link rows.
func NewDeleteMovement(id string) (Command, error) {
	return newCommand(event.TypeMovementDeleted, event.MovementDeleted{ID: id})
}

// NewCreateLink builds a command linking amount of a movement to an activity.
func NewCreateLink(movementID, activityID string, amount decimal.Decimal) (Command, string, error) {
	link := model.Link{ID: uuid.NewString(), Movement: movementID, Activity: activityID, Amount: amount}
	cmd, err := newCommand(event.TypeLinkCreated, event.LinkCreated{Link: link})
	return cmd, link.ID, err
}

// NewUpdateLink builds a command changing a link's reconciled amount.
func NewUpdateLink(id string, amount decimal.Decimal) (Command, error) {
	return newCommand(event.TypeLinkUpdated, event.LinkUpdated{ID: id, Amount: amount})
}

// NewDeleteLink builds a command severing one link row.
func NewDeleteLink(id string) (Command, error) {
	return newCommand(event.TypeLinkDeleted, event.LinkDeleted{ID: id})
}

// NewCreateProject builds a create command, generating the client-side ID.
func NewCreateProject(p model.Project) (Command, string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cmd, err := newCommand(event.TypeProjectCreated, event.ProjectCreated{Project: p})
	return cmd, p.ID, err
}

// NewUpdateProject builds a rename command.
func NewUpdateProject(id, name string) (Command, error) {
	return newCommand(event.TypeProjectUpdated, event.ProjectUpdated{ID: id, Name: name})
}

// NewDeleteProject builds a delete command.
func NewDeleteProject(id string) (Command, error) {
	return newCommand(event.TypeProjectDeleted, event.ProjectDeleted{ID: id})
}
