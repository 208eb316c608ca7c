// Package server applies mutations to the authoritative domain state and the
// append-only event log in a single transaction, then publishes the committed
// event to live sessions. It assigns the fields only the server may assign:
// activity sequence numbers and liability pair link ids.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline-dev/ledgerline/internal/event"
	"github.com/ledgerline-dev/ledgerline/internal/eventlog"
	"github.com/ledgerline-dev/ledgerline/internal/model"
)

// Session identifies the caller of a mutation or subscription.
type Session struct {
	User      string
	ClientID  string
	Workspace string
}

// Request is one mutation: the operation name plus its payload, in the same
// encoding the resulting event will carry.
type Request struct {
	Type    event.Type
	Payload json.RawMessage
}

// Result returns the committed event and its payload with server-assigned
// fields filled in (activity number, liability link ids).
type Result struct {
	Payload json.RawMessage
	Event   event.Event
}

// Core handles mutations against one shared database.
type Core struct {
	log    *eventlog.Log
	broker *eventlog.Broker
	logger *zap.Logger
	newID  func() string
}

// New creates a Core over an open event log, applying the domain schema to the
// same database so domain writes and event appends share transactions.
func New(log *eventlog.Log, broker *eventlog.Broker, logger *zap.Logger) (*Core, error) {
	if _, err := log.DB().Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("applying domain schema: %w", err)
	}
	return &Core{log: log, broker: broker, logger: logger, newID: uuid.NewString}, nil
}

// Mutate validates and applies one mutation. On success the domain rows and
// the event row are committed atomically, the event is published to other live
// sessions, and the filled payload is returned for local reconciliation.
func (c *Core) Mutate(ctx context.Context, sess Session, req Request) (Result, error) {
	tx, err := c.log.DB().BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("beginning mutation: %w", err)
	}
	store := docStore{tx: tx, workspace: sess.Workspace}

	filled, err := c.apply(ctx, store, req)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, errNotFound) {
			return Result{}, reject("%s: %v", req.Type, err)
		}
		return Result{}, err
	}

	raw, err := event.Marshal(filled)
	if err != nil {
		tx.Rollback()
		return Result{}, err
	}

	ev := c.log.Stamp(event.Event{
		ID:        c.newID(),
		Type:      req.Type,
		Payload:   raw,
		ClientID:  sess.ClientID,
		User:      sess.User,
		Workspace: sess.Workspace,
	})
	if err := c.log.AppendTx(ctx, tx, ev); err != nil {
		tx.Rollback()
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("committing mutation: %w", err)
	}

	c.logger.Debug("mutation committed",
		zap.String("type", string(req.Type)),
		zap.String("user", sess.User),
		zap.String("client", sess.ClientID))

	c.broker.Publish(ev)
	return Result{Payload: raw, Event: ev}, nil
}

// CatchUp returns the session's missed events since lastSync.
func (c *Core) CatchUp(ctx context.Context, sess Session, lastSync float64) ([]event.Event, error) {
	return c.log.CatchUp(ctx, lastSync, sess.User, sess.ClientID)
}

// Subscribe opens a live event stream for the session. Like catch-up, the
// stream excludes the session's own writes.
func (c *Core) Subscribe(sess Session) (<-chan event.Event, func()) {
	return c.broker.Subscribe(sess.User, sess.ClientID)
}

// apply dispatches to the per-operation handler and returns the payload with
// server-assigned fields filled in.
func (c *Core) apply(ctx context.Context, store docStore, req Request) (any, error) {
	switch req.Type {
	case event.TypeAccountCreated:
		return c.accountCreated(ctx, store, req)
	case event.TypeAccountUpdated:
		return c.accountUpdated(ctx, store, req)
	case event.TypeAccountDeleted:
		return c.accountDeleted(ctx, store, req)
	case event.TypeActivityCreated:
		return c.activityCreated(ctx, store, req)
	case event.TypeActivityUpdated:
		return c.activityUpdated(ctx, store, req)
	case event.TypeActivityDeleted:
		return c.activityDeleted(ctx, store, req)
	case event.TypeMovementCreated:
		return c.movementCreated(ctx, store, req)
	case event.TypeMovementUpdated:
		return c.movementUpdated(ctx, store, req)
	case event.TypeMovementDeleted:
		return c.movementDeleted(ctx, store, req)
	case event.TypeLinkCreated:
		return c.linkCreated(ctx, store, req)
	case event.TypeLinkUpdated:
		return c.linkUpdated(ctx, store, req)
	case event.TypeLinkDeleted:
		return c.linkDeleted(ctx, store, req)
	case event.TypeProjectCreated:
		return c.projectCreated(ctx, store, req)
	case event.TypeProjectUpdated:
		return c.projectUpdated(ctx, store, req)
	case event.TypeProjectDeleted:
		return c.projectDeleted(ctx, store, req)
	default:
		return nil, reject("unknown mutation type %q", req.Type)
	}
}

func (c *Core) accountCreated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.AccountCreated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	if p.Account.ID == "" {
		return nil, reject("account id is required")
	}
	if exists, err := store.exists(ctx, kindAccount, p.Account.ID); err != nil {
		return nil, err
	} else if exists {
		return nil, reject("account %s already exists", p.Account.ID)
	}
	if err := store.put(ctx, kindAccount, p.Account.ID, p.Account); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) accountUpdated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.AccountUpdated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var acct model.Account
	if err := store.get(ctx, kindAccount, p.ID, &acct); err != nil {
		return nil, err
	}
	p.Patch.Apply(&acct)
	if err := store.put(ctx, kindAccount, p.ID, acct); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) accountDeleted(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.AccountDeleted](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var acct model.Account
	if err := store.get(ctx, kindAccount, p.ID, &acct); err != nil {
		return nil, err
	}
	if err := store.delete(ctx, kindAccount, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) activityCreated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.ActivityCreated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	if p.Activity.ID == "" {
		return nil, reject("activity id is required")
	}
	if len(p.Activity.Transactions) == 0 {
		return nil, reject("activity %s has no transactions", p.Activity.ID)
	}
	if exists, err := store.exists(ctx, kindActivity, p.Activity.ID); err != nil {
		return nil, err
	} else if exists {
		return nil, reject("activity %s already exists", p.Activity.ID)
	}

	number, err := store.nextSeq(ctx, seqActivityNumber)
	if err != nil {
		return nil, err
	}
	p.Activity.Number = number
	c.pairLiabilities(p.Liabilities)

	if err := store.put(ctx, kindActivity, p.Activity.ID, p.Activity); err != nil {
		return nil, err
	}
	for _, l := range p.Liabilities {
		if err := store.put(ctx, kindLiability, l.ID, l); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (c *Core) activityUpdated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.ActivityUpdated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var act model.Activity
	if err := store.get(ctx, kindActivity, p.ID, &act); err != nil {
		return nil, err
	}
	p.Patch.Apply(&act)
	if err := store.put(ctx, kindActivity, p.ID, act); err != nil {
		return nil, err
	}

	if p.Patch.Liabilities != nil {
		if err := c.deleteActivityLiabilities(ctx, store, p.ID); err != nil {
			return nil, err
		}
		c.pairLiabilities(*p.Patch.Liabilities)
		for _, l := range *p.Patch.Liabilities {
			if err := store.put(ctx, kindLiability, l.ID, l); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (c *Core) activityDeleted(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.ActivityDeleted](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var act model.Activity
	if err := store.get(ctx, kindActivity, p.ID, &act); err != nil {
		return nil, err
	}
	if err := store.delete(ctx, kindActivity, p.ID); err != nil {
		return nil, err
	}
	if err := c.deleteActivityLiabilities(ctx, store, p.ID); err != nil {
		return nil, err
	}
	// Sever every link row referencing the activity.
	links, err := listDocs[model.Link](ctx, store, kindLink)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Activity == p.ID {
			if err := store.delete(ctx, kindLink, l.ID); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (c *Core) movementCreated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.MovementCreated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	if p.Movement.ID == "" {
		return nil, reject("movement id is required")
	}
	if p.Movement.Account == "" {
		return nil, reject("movement %s has no account", p.Movement.ID)
	}
	if exists, err := store.exists(ctx, kindAccount, p.Movement.Account); err != nil {
		return nil, err
	} else if !exists {
		return nil, reject("movement %s references unknown account %s", p.Movement.ID, p.Movement.Account)
	}
	if err := store.put(ctx, kindMovement, p.Movement.ID, p.Movement); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) movementUpdated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.MovementUpdated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var mov model.Movement
	if err := store.get(ctx, kindMovement, p.ID, &mov); err != nil {
		return nil, err
	}
	p.Patch.Apply(&mov)
	if err := store.put(ctx, kindMovement, p.ID, mov); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) movementDeleted(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.MovementDeleted](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var mov model.Movement
	if err := store.get(ctx, kindMovement, p.ID, &mov); err != nil {
		return nil, err
	}
	if err := store.delete(ctx, kindMovement, p.ID); err != nil {
		return nil, err
	}
	links, err := listDocs[model.Link](ctx, store, kindLink)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Movement == p.ID {
			if err := store.delete(ctx, kindLink, l.ID); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (c *Core) linkCreated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.LinkCreated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	if p.Link.ID == "" {
		return nil, reject("link id is required")
	}
	if exists, err := store.exists(ctx, kindMovement, p.Link.Movement); err != nil {
		return nil, err
	} else if !exists {
		return nil, reject("link %s references unknown movement %s", p.Link.ID, p.Link.Movement)
	}
	if exists, err := store.exists(ctx, kindActivity, p.Link.Activity); err != nil {
		return nil, err
	} else if !exists {
		return nil, reject("link %s references unknown activity %s", p.Link.ID, p.Link.Activity)
	}
	if err := store.put(ctx, kindLink, p.Link.ID, p.Link); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) linkUpdated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.LinkUpdated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var link model.Link
	if err := store.get(ctx, kindLink, p.ID, &link); err != nil {
		return nil, err
	}
	link.Amount = p.Amount
	if err := store.put(ctx, kindLink, p.ID, link); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) linkDeleted(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.LinkDeleted](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var link model.Link
	if err := store.get(ctx, kindLink, p.ID, &link); err != nil {
		return nil, err
	}
	if err := store.delete(ctx, kindLink, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) projectCreated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.ProjectCreated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	if p.Project.ID == "" {
		return nil, reject("project id is required")
	}
	if err := store.put(ctx, kindProject, p.Project.ID, p.Project); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) projectUpdated(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.ProjectUpdated](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var proj model.Project
	if err := store.get(ctx, kindProject, p.ID, &proj); err != nil {
		return nil, err
	}
	proj.Name = p.Name
	if err := store.put(ctx, kindProject, p.ID, proj); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) projectDeleted(ctx context.Context, store docStore, req Request) (any, error) {
	p, err := event.DecodeRaw[event.ProjectDeleted](req.Type, req.Payload)
	if err != nil {
		return nil, reject("%v", err)
	}
	var proj model.Project
	if err := store.get(ctx, kindProject, p.ID, &proj); err != nil {
		return nil, err
	}
	if err := store.delete(ctx, kindProject, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Core) deleteActivityLiabilities(ctx context.Context, store docStore, activityID string) error {
	liabs, err := listDocs[model.Liability](ctx, store, kindLiability)
	if err != nil {
		return err
	}
	for _, l := range liabs {
		if l.Activity == activityID {
			if err := store.delete(ctx, kindLiability, l.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// pairLiabilities assigns a shared link id to each opposite-sign, equal
// magnitude pair of unlinked rows; leftovers get their own id so later
// counterentries can attach to them.
func (c *Core) pairLiabilities(liabs []model.Liability) {
	for i := range liabs {
		if liabs[i].LinkID != "" {
			continue
		}
		linkID := c.newID()
		liabs[i].LinkID = linkID
		for j := i + 1; j < len(liabs); j++ {
			if liabs[j].LinkID != "" {
				continue
			}
			if liabs[j].Amount.Equal(liabs[i].Amount.Neg()) {
				liabs[j].LinkID = linkID
				break
			}
		}
	}
}
