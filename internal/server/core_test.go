package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerline-dev/ledgerline/internal/event"
	"github.com/ledgerline-dev/ledgerline/internal/eventlog"
	"github.com/ledgerline-dev/ledgerline/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	log, err := eventlog.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	core, err := New(log, eventlog.NewBroker(), zap.NewNop())
	require.NoError(t, err)
	return core
}

func testSession() Session {
	return Session{User: "don", ClientID: "client-a", Workspace: "personal"}
}

func request(t *testing.T, typ event.Type, payload any) Request {
	t.Helper()
	raw, err := event.Marshal(payload)
	require.NoError(t, err)
	return Request{Type: typ, Payload: raw}
}

func mustMutate(t *testing.T, core *Core, sess Session, typ event.Type, payload any) Result {
	t.Helper()
	res, err := core.Mutate(context.Background(), sess, request(t, typ, payload))
	require.NoError(t, err)
	return res
}

func bankAccount() model.Account {
	return model.Account{ID: "bank", Name: "Checking", Type: model.AccountTypeBank, TracksMovements: true}
}

func rentActivity(id string) model.Activity {
	return model.Activity{
		ID: id, Name: "Rent", Date: date(2024, 5, 10), Type: model.ActivityTypeExpense,
		Transactions: []model.Transaction{{ID: "t-" + id, Amount: dec("50"), FromAccount: "bank", ToAccount: "rent"}},
	}
}

func TestMutate_AccountLifecycle(t *testing.T) {
	core := newTestCore(t)
	sess := testSession()

	res := mustMutate(t, core, sess, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})
	assert.Equal(t, event.TypeAccountCreated, res.Event.Type)
	assert.Equal(t, "client-a", res.Event.ClientID)
	assert.NotZero(t, res.Event.CreatedAt)

	name := "Main checking"
	mustMutate(t, core, sess, event.TypeAccountUpdated, event.AccountUpdated{
		ID: "bank", Patch: event.AccountPatch{Name: &name},
	})
	mustMutate(t, core, sess, event.TypeAccountDeleted, event.AccountDeleted{ID: "bank"})
}

func TestMutate_RejectsDuplicateAccount(t *testing.T) {
	core := newTestCore(t)
	sess := testSession()

	mustMutate(t, core, sess, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})
	_, err := core.Mutate(context.Background(), sess, request(t, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()}))

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "already exists")
}

func TestMutate_ActivityNumbersAreSequential(t *testing.T) {
	core := newTestCore(t)
	sess := testSession()
	mustMutate(t, core, sess, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})

	res1 := mustMutate(t, core, sess, event.TypeActivityCreated, event.ActivityCreated{Activity: rentActivity("a1")})
	res2 := mustMutate(t, core, sess, event.TypeActivityCreated, event.ActivityCreated{Activity: rentActivity("a2")})

	p1, err := event.DecodeRaw[event.ActivityCreated](event.TypeActivityCreated, res1.Payload)
	require.NoError(t, err)
	p2, err := event.DecodeRaw[event.ActivityCreated](event.TypeActivityCreated, res2.Payload)
	require.NoError(t, err)

	assert.Equal(t, int64(1), p1.Activity.Number)
	assert.Equal(t, int64(2), p2.Activity.Number)
}

func TestMutate_PairsOppositeSignLiabilities(t *testing.T) {
	core := newTestCore(t)
	sess := testSession()
	mustMutate(t, core, sess, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})

	res := mustMutate(t, core, sess, event.TypeActivityCreated, event.ActivityCreated{
		Activity: rentActivity("a1"),
		Liabilities: []model.Liability{
			{ID: "d1", Account: "alice", Activity: "a1", Amount: dec("25")},
			{ID: "d2", Account: "alice", Activity: "a1", Amount: dec("-25")},
			{ID: "d3", Account: "bob", Activity: "a1", Amount: dec("10")},
		},
	})

	p, err := event.DecodeRaw[event.ActivityCreated](event.TypeActivityCreated, res.Payload)
	require.NoError(t, err)
	require.Len(t, p.Liabilities, 3)

	assert.NotEmpty(t, p.Liabilities[0].LinkID)
	assert.Equal(t, p.Liabilities[0].LinkID, p.Liabilities[1].LinkID, "opposite-sign equal-magnitude rows share a link id")
	assert.NotEmpty(t, p.Liabilities[2].LinkID)
	assert.NotEqual(t, p.Liabilities[0].LinkID, p.Liabilities[2].LinkID, "the leftover gets its own id")
}

func TestMutate_Rejections(t *testing.T) {
	core := newTestCore(t)
	sess := testSession()
	mustMutate(t, core, sess, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})

	tests := []struct {
		name    string
		typ     event.Type
		payload any
		reason  string
	}{
		{
			name: "activity without transactions",
			typ:  event.TypeActivityCreated,
			payload: event.ActivityCreated{Activity: model.Activity{
				ID: "a1", Name: "Empty", Date: date(2024, 5, 10), Type: model.ActivityTypeExpense,
			}},
			reason: "has no transactions",
		},
		{
			name: "movement on unknown account",
			typ:  event.TypeMovementCreated,
			payload: event.MovementCreated{Movement: model.Movement{
				ID: "m1", Date: date(2024, 5, 10), Amount: dec("50"), Account: "nope",
			}},
			reason: "unknown account",
		},
		{
			name:    "link to unknown movement",
			typ:     event.TypeLinkCreated,
			payload: event.LinkCreated{Link: model.Link{ID: "l1", Movement: "nope", Activity: "nope", Amount: dec("1")}},
			reason:  "unknown movement",
		},
		{
			name:    "update of missing activity",
			typ:     event.TypeActivityUpdated,
			payload: event.ActivityUpdated{ID: "nope"},
			reason:  "not found",
		},
		{
			name:    "unknown mutation type",
			typ:     event.Type("account.exploded"),
			payload: struct{}{},
			reason:  "unknown mutation type",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := core.Mutate(context.Background(), sess, request(t, tc.typ, tc.payload))
			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Contains(t, rejected.Reason, tc.reason)
		})
	}

	// Rejected mutations leave no trace in the log.
	events, err := core.CatchUp(context.Background(), Session{User: "don", ClientID: "other"}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeAccountCreated, events[0].Type)
}

func TestMutate_ActivityDeleteCascades(t *testing.T) {
	core := newTestCore(t)
	sess := testSession()
	mustMutate(t, core, sess, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})
	mustMutate(t, core, sess, event.TypeActivityCreated, event.ActivityCreated{
		Activity: rentActivity("a1"),
		Liabilities: []model.Liability{
			{ID: "d1", Account: "alice", Activity: "a1", Amount: dec("25")},
		},
	})
	mustMutate(t, core, sess, event.TypeMovementCreated, event.MovementCreated{Movement: model.Movement{
		ID: "m1", Date: date(2024, 5, 10), Amount: dec("50"), Account: "bank", Name: "RENT LLC",
	}})
	mustMutate(t, core, sess, event.TypeLinkCreated, event.LinkCreated{Link: model.Link{
		ID: "l1", Movement: "m1", Activity: "a1", Amount: dec("50"),
	}})

	mustMutate(t, core, sess, event.TypeActivityDeleted, event.ActivityDeleted{ID: "a1"})

	// The link row is gone with its activity: updating it is now a rejection.
	_, err := core.Mutate(context.Background(), sess, request(t, event.TypeLinkUpdated, event.LinkUpdated{ID: "l1", Amount: dec("10")}))
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
}

func TestMutate_PublishesToOtherSessions(t *testing.T) {
	core := newTestCore(t)
	sess := testSession()

	own, cancelOwn := core.Subscribe(sess)
	defer cancelOwn()
	other, cancelOther := core.Subscribe(Session{User: "don", ClientID: "client-b"})
	defer cancelOther()

	res := mustMutate(t, core, sess, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})

	select {
	case ev := <-other:
		assert.Equal(t, res.Event.ID, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("expected the committed event on the other session's stream")
	}
	select {
	case <-own:
		t.Fatal("a session must not see its own writes")
	default:
	}
}

func TestCatchUp_ExcludesOwnWrites(t *testing.T) {
	core := newTestCore(t)
	sess := testSession()

	mustMutate(t, core, sess, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})
	mustMutate(t, core, sess, event.TypeProjectCreated, event.ProjectCreated{Project: model.Project{ID: "p1", Name: "House"}})

	events, err := core.CatchUp(context.Background(), sess, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = core.CatchUp(context.Background(), Session{User: "don", ClientID: "client-b"}, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestMutate_WorkspacesAreIsolated(t *testing.T) {
	core := newTestCore(t)

	personal := Session{User: "don", ClientID: "client-a", Workspace: "personal"}
	business := Session{User: "don", ClientID: "client-a", Workspace: "business"}

	mustMutate(t, core, personal, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})

	// The same account id is free in the other workspace, and movements there
	// cannot see the personal chart.
	mustMutate(t, core, business, event.TypeAccountCreated, event.AccountCreated{Account: bankAccount()})

	_, err := core.Mutate(context.Background(), Session{User: "don", ClientID: "client-a", Workspace: "empty"},
		request(t, event.TypeMovementCreated, event.MovementCreated{Movement: model.Movement{
			ID: "m1", Date: date(2024, 5, 10), Amount: dec("50"), Account: "bank",
		}}))
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
}
