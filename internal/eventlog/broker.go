package eventlog

import (
	"sync"

	"github.com/ledgerline-dev/ledgerline/internal/event"
)

// subscriberBuffer bounds each live stream. A subscriber that falls this far
// behind misses events and recovers them through the catch-up query.
const subscriberBuffer = 64

type subscriber struct {
	user     string
	clientID string
	ch       chan event.Event
}

// Broker fans committed events out to live subscriptions, keyed by user.
// Delivery excludes the subscriber's own clientID, matching the catch-up
// query, so a session never sees its own writes echoed back.
type Broker struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*subscriber)}
}

// Subscribe opens a live stream for one session. The returned cancel function
// closes the channel and must be called exactly once.
func (b *Broker) Subscribe(user, clientID string) (<-chan event.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &subscriber{user: user, clientID: clientID, ch: make(chan event.Event, subscriberBuffer)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers a committed event to every live subscription for its user,
// except the originating session.
func (b *Broker) Publish(ev event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.user != ev.User || sub.clientID == ev.ClientID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Slow consumer: drop the event; catch-up repairs the gap.
		}
	}
}
