package syncclient

import (
	"context"
	"encoding/json"

	"github.com/ledgerline-dev/ledgerline/internal/event"
	"github.com/ledgerline-dev/ledgerline/internal/server"
)

// Loopback is an in-process Transport bound directly to a server Core. It is
// the transport used by the CLI and tests; network wiring stays outside this
// module's scope.
type Loopback struct {
	core *server.Core
	sess server.Session
}

// NewLoopback binds a session to an in-process server core.
func NewLoopback(core *server.Core, sess server.Session) *Loopback {
	return &Loopback{core: core, sess: sess}
}

// Mutate forwards one mutation to the core.
func (t *Loopback) Mutate(ctx context.Context, typ event.Type, payload json.RawMessage) (MutationReply, error) {
	res, err := t.core.Mutate(ctx, t.sess, server.Request{Type: typ, Payload: payload})
	if err != nil {
		return MutationReply{}, err
	}
	return MutationReply{Payload: res.Payload, CreatedAt: res.Event.CreatedAt}, nil
}

// Events runs the catch-up query.
func (t *Loopback) Events(ctx context.Context, lastSync float64) ([]event.Event, error) {
	return t.core.CatchUp(ctx, t.sess, lastSync)
}

// Subscribe opens a live stream for the session.
func (t *Loopback) Subscribe(_ context.Context) (<-chan event.Event, func(), error) {
	ch, cancel := t.core.Subscribe(t.sess)
	return ch, cancel, nil
}
