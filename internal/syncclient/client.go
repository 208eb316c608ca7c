// Package syncclient keeps one client replica consistent with the server: it
// owns the durable mutation queue, the single-flight drain loop, the live
// event subscription, and the catch-up reconcile performed after reconnect.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline-dev/ledgerline/internal/event"
	"github.com/ledgerline-dev/ledgerline/internal/ledger"
)

// State is the drain loop's externally visible mode.
type State string

const (
	StateIdle                   State = "idle"
	StateDraining               State = "draining"
	StateWaitingForConnectivity State = "waiting-for-connectivity"
)

// ErrUnreachable marks transient transport failures: the request may never
// have reached the server, so the queue entry is retried unchanged.
var ErrUnreachable = errors.New("server unreachable")

// MutationReply is the server's answer to a committed mutation: the payload
// with server-assigned fields filled in, and the event's timestamp.
type MutationReply struct {
	Payload   json.RawMessage
	CreatedAt float64
}

// Transport is the wire boundary. Mutate returns ErrUnreachable (possibly
// wrapped) for transient failures; any other error is an application
// rejection and must not be retried.
type Transport interface {
	Mutate(ctx context.Context, typ event.Type, payload json.RawMessage) (MutationReply, error)
	Events(ctx context.Context, lastSync float64) ([]event.Event, error)
	Subscribe(ctx context.Context) (<-chan event.Event, func(), error)
}

const (
	defaultRequestTimeout = 15 * time.Second
	backoffInitial        = time.Second
	backoffMax            = 30 * time.Second
)

// Client drives one replica's ledger from both directions: local commands out
// through the queue, remote events in through the subscription.
type Client struct {
	queue     *Queue
	ledger    *ledger.Ledger
	transport Transport
	logger    *zap.Logger
	clientID  string

	requestTimeout time.Duration

	mu       sync.Mutex
	state    State
	inFlight bool

	kick chan struct{}
}

// New loads the stable clientId from the queue database and returns a client
// in the Idle state. Run must be called to start background draining.
func New(ctx context.Context, queue *Queue, led *ledger.Ledger, transport Transport, logger *zap.Logger) (*Client, error) {
	clientID, err := queue.ClientID(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{
		queue:          queue,
		ledger:         led,
		transport:      transport,
		logger:         logger,
		clientID:       clientID,
		requestTimeout: defaultRequestTimeout,
		state:          StateIdle,
		kick:           make(chan struct{}, 1),
	}, nil
}

// ClientID returns this installation's stable identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// State returns the drain loop's current mode.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetRequestTimeout bounds each in-flight mutation. Test hook.
func (c *Client) SetRequestTimeout(d time.Duration) {
	c.requestTimeout = d
}

// Submit applies a command optimistically and enqueues it for delivery. The
// local ledger reflects the change immediately; the queue preserves intent
// order toward the server.
func (c *Client) Submit(ctx context.Context, cmd ledger.Command) error {
	snap, err := c.ledger.ApplyLocal(cmd)
	if err != nil {
		return fmt.Errorf("applying %s locally: %w", cmd.Type, err)
	}
	rawSnap, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding rollback snapshot: %w", err)
	}
	if err := c.queue.Push(ctx, cmd, rawSnap); err != nil {
		return err
	}
	c.kickDrain()
	return nil
}

// kickDrain nudges the run loop without blocking.
func (c *Client) kickDrain() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Drain sends pending mutations one at a time, strictly FIFO, until the queue
// is empty or a transient failure pauses it. At most one request is in flight
// at any time; this is what makes server-visible order equal intent order.
func (c *Client) Drain(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.state = StateDraining
	c.mu.Unlock()

	err := c.drainLoop(ctx)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.state = StateWaitingForConnectivity
	} else {
		c.state = StateIdle
	}
	c.mu.Unlock()
	return err
}

func (c *Client) drainLoop(ctx context.Context) error {
	for {
		entry, ok, err := c.queue.Head(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		rctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		reply, err := c.transport.Mutate(rctx, entry.Command.Type, entry.Command.Payload)
		cancel()

		switch {
		case err == nil:
			if err := c.ledger.HandleMutationSuccess(entry.Command, reply.Payload); err != nil {
				return fmt.Errorf("merging server result for %s: %w", entry.Command.Type, err)
			}
		case transient(err):
			// Entry stays at the head; retried unchanged after backoff.
			c.logger.Warn("mutation delivery paused",
				zap.String("type", string(entry.Command.Type)),
				zap.Error(err))
			return err
		default:
			// Application rejection: roll back the optimistic change and move on.
			if len(entry.Snapshot) == 0 {
				return fmt.Errorf("rejected %s has no rollback snapshot", entry.Command.Type)
			}
			var snap ledger.Snapshot
			if jerr := json.Unmarshal(entry.Snapshot, &snap); jerr != nil {
				return fmt.Errorf("decoding rollback snapshot for %s: %w", entry.Command.Type, jerr)
			}
			c.ledger.HandleMutationError(entry.Command, snap)
			c.logger.Warn("mutation rejected, rolled back",
				zap.String("type", string(entry.Command.Type)),
				zap.Error(err))
		}

		if err := c.queue.Pop(ctx, entry.Seq); err != nil {
			return err
		}
	}
}

// transient reports whether the failure means the request may not have
// reached the server. Timeouts count: a hung request must not block the queue.
func transient(err error) bool {
	return errors.Is(err, ErrUnreachable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Reconcile recovers after reconnect: local intent drains first; only once
// the queue is empty are missed remote events caught up and applied.
func (c *Client) Reconcile(ctx context.Context) error {
	if err := c.Drain(ctx); err != nil {
		return err
	}
	n, err := c.queue.Len(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	cursor, err := c.queue.Cursor(ctx)
	if err != nil {
		return err
	}
	events, err := c.transport.Events(ctx, cursor)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := c.applyRemote(ctx, ev); err != nil {
			return err
		}
	}
	c.logger.Debug("reconcile complete", zap.Int("events", len(events)))
	return nil
}

// applyRemote feeds one pushed or caught-up event into the ledger and
// advances the cursor. Own events are skipped defensively (the server already
// filters them) but still advance the cursor to keep it monotonic.
func (c *Client) applyRemote(ctx context.Context, ev event.Event) error {
	if ev.ClientID != c.clientID {
		if err := c.ledger.HandleEvent(ev); err != nil {
			return fmt.Errorf("applying event %s: %w", ev.Type, err)
		}
	}
	cursor, err := c.queue.Cursor(ctx)
	if err != nil {
		return err
	}
	if ev.CreatedAt > cursor {
		if err := c.queue.SetCursor(ctx, ev.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the background machinery: a drain scheduler with capped
// exponential backoff, and the live subscription pump. Blocks until ctx is
// cancelled; a dropped stream triggers a fresh Reconcile before resubscribing.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.runDrainScheduler(ctx) })
	g.Go(func() error { return c.runSubscription(ctx) })
	if err := g.Wait(); errors.Is(err, context.Canceled) {
		return nil
	} else if err != nil {
		return err
	}
	return nil
}

func (c *Client) runDrainScheduler(ctx context.Context) error {
	backoff := backoffInitial
	var retry <-chan time.Time

	// Deliver anything left over from a previous run.
	c.kickDrain()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.kick:
		case <-retry:
		}

		if err := c.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			retry = time.After(backoff)
			backoff = min(backoff*2, backoffMax)
			continue
		}
		backoff = backoffInitial
		retry = nil
	}
}

func (c *Client) runSubscription(ctx context.Context) error {
	backoff := backoffInitial
	for {
		ch, cancel, err := c.transport.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, backoffMax)
			continue
		}
		backoff = backoffInitial

		// Streams can open mid-gap; reconcile to cover events missed while down.
		if err := c.Reconcile(ctx); err != nil && ctx.Err() != nil {
			cancel()
			return ctx.Err()
		}

		if err := c.pump(ctx, ch); err != nil {
			cancel()
			return err
		}
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Info("event stream dropped, reconnecting")
	}
}

// pump applies pushed events until the stream closes or ctx is cancelled.
func (c *Client) pump(ctx context.Context, ch <-chan event.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := c.applyRemote(ctx, ev); err != nil {
				return err
			}
		}
	}
}
