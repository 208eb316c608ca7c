package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-dev/ledgerline/internal/event"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func appendEvent(t *testing.T, log *Log, typ event.Type, clientID, user string) event.Event {
	t.Helper()
	ev, err := log.Append(context.Background(), event.Event{
		Type:     typ,
		Payload:  []byte(`{}`),
		ClientID: clientID,
		User:     user,
	})
	require.NoError(t, err)
	return ev
}

func TestAppendAndCatchUp(t *testing.T) {
	log := openTestLog(t)

	appendEvent(t, log, event.TypeAccountCreated, "client-a", "don")
	appendEvent(t, log, event.TypeMovementCreated, "client-b", "don")
	appendEvent(t, log, event.TypeProjectCreated, "client-a", "jen")

	// client-a catching up from zero sees only other clients' events for don.
	got, err := log.CatchUp(context.Background(), 0, "don", "client-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, event.TypeMovementCreated, got[0].Type)
	assert.Equal(t, "client-b", got[0].ClientID)

	// A brand new client sees both of don's events, in order, and none of jen's.
	got, err = log.CatchUp(context.Background(), 0, "don", "client-c")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, event.TypeAccountCreated, got[0].Type)
	assert.Equal(t, event.TypeMovementCreated, got[1].Type)
	assert.Less(t, got[0].CreatedAt, got[1].CreatedAt)
}

func TestCatchUp_CursorExcludesSeenEvents(t *testing.T) {
	log := openTestLog(t)

	first := appendEvent(t, log, event.TypeAccountCreated, "client-a", "don")
	second := appendEvent(t, log, event.TypeMovementCreated, "client-a", "don")

	got, err := log.CatchUp(context.Background(), first.CreatedAt, "don", "client-b")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second.ID, got[0].ID)

	got, err = log.CatchUp(context.Background(), second.CreatedAt, "don", "client-b")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppend_DuplicateIDIgnored(t *testing.T) {
	log := openTestLog(t)

	ev := appendEvent(t, log, event.TypeAccountCreated, "client-a", "don")
	_, err := log.Append(context.Background(), ev)
	require.NoError(t, err)

	got, err := log.Replay(context.Background(), "don")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReplay_IncludesOwnEvents(t *testing.T) {
	log := openTestLog(t)

	appendEvent(t, log, event.TypeAccountCreated, "client-a", "don")
	appendEvent(t, log, event.TypeMovementCreated, "client-a", "don")
	appendEvent(t, log, event.TypeProjectCreated, "client-b", "jen")

	got, err := log.Replay(context.Background(), "don")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "client-a", got[0].ClientID)
	assert.Equal(t, "client-a", got[1].ClientID)
}

func TestStamp_MonotonicTimestamps(t *testing.T) {
	log := openTestLog(t)

	// Freeze the clock so every raw timestamp collides.
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	log.SetClock(func() time.Time { return frozen })

	a := log.Stamp(event.Event{Type: event.TypeAccountCreated})
	b := log.Stamp(event.Event{Type: event.TypeMovementCreated})
	c := log.Stamp(event.Event{Type: event.TypeLinkCreated})

	assert.Less(t, a.CreatedAt, b.CreatedAt)
	assert.Less(t, b.CreatedAt, c.CreatedAt)
	assert.NotEmpty(t, a.ID)
}

func TestStamp_KeepsExistingID(t *testing.T) {
	log := openTestLog(t)
	ev := log.Stamp(event.Event{ID: "fixed", Type: event.TypeAccountCreated})
	assert.Equal(t, "fixed", ev.ID)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	log, err := Open(path)
	require.NoError(t, err)
	appendEvent(t, log, event.TypeAccountCreated, "client-a", "don")
	require.NoError(t, log.Close())

	log, err = Open(path)
	require.NoError(t, err)
	defer log.Close()

	got, err := log.Replay(context.Background(), "don")
	require.NoError(t, err)
	assert.Len(t, got, 1, "events survive reopen")
}
