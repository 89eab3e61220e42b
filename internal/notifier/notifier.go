// Package notifier broadcasts change events on per-subscription channels to
// in-process subscribers (SSE streams, caches, dashboards). Delivery is FIFO
// per channel; each subscriber has an unbounded queue so bursts never drop
// events.
package notifier

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/shared/metrics"
	"github.com/amal-center/platform/internal/shared/types"
)

// EventType discriminates realtime event variants.
type EventType string

const (
	EventSubscriptionUpdated     EventType = "subscription_updated"
	EventSessionsRescheduled     EventType = "sessions_rescheduled"
	EventModificationImplemented EventType = "modification_implemented"
	EventModificationRolledBack  EventType = "modification_rolled_back"
	EventCacheInvalidated        EventType = "cache_invalidated"
)

// Event is one realtime change notification.
type Event struct {
	Type           EventType      `json:"type"`
	SubscriptionID types.ID       `json:"subscription_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Data           map[string]any `json:"data,omitempty"`
}

// Callback receives events for one subscription, in publish order.
type Callback func(Event)

// subscriber owns an unbounded FIFO queue drained by a dedicated goroutine,
// so a slow callback never blocks the publisher or other subscribers.
type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	cb     Callback
}

func newSubscriber(cb Callback) *subscriber {
	s := &subscriber{cb: cb}
	s.cond = sync.NewCond(&s.mu)
	go s.drain()
	return s
}

func (s *subscriber) enqueue(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed && len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.cb(e)
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

// Notifier fans events out to per-subscription subscribers and, when a relay
// is attached, to the event bus.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[types.ID]map[uint64]*subscriber
	nextID uint64
	relay  *Relay
	logger *zap.Logger
	closed bool
}

// New creates a notifier.
func New(logger *zap.Logger) *Notifier {
	return &Notifier{
		subs:   make(map[types.ID]map[uint64]*subscriber),
		logger: logger,
	}
}

// WithRelay attaches a bus relay that receives every broadcast event.
func (n *Notifier) WithRelay(r *Relay) *Notifier {
	n.relay = r
	return n
}

// Subscribe registers a callback for one subscription's events and returns
// the function that removes it.
func (n *Notifier) Subscribe(subscriptionID types.ID, cb Callback) func() {
	sub := newSubscriber(cb)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		sub.close()
		return func() {}
	}
	n.nextID++
	id := n.nextID
	if n.subs[subscriptionID] == nil {
		n.subs[subscriptionID] = make(map[uint64]*subscriber)
	}
	n.subs[subscriptionID][id] = sub
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			if channel, ok := n.subs[subscriptionID]; ok {
				delete(channel, id)
				if len(channel) == 0 {
					delete(n.subs, subscriptionID)
				}
			}
			n.mu.Unlock()
			sub.close()
		})
	}
}

// Broadcast publishes an event to every subscriber of its subscription
// channel and to the attached relay. Never blocks on subscribers.
func (n *Notifier) Broadcast(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	n.mu.RLock()
	channel := n.subs[e.SubscriptionID]
	for _, sub := range channel {
		sub.enqueue(e)
	}
	relay := n.relay
	n.mu.RUnlock()

	if relay != nil {
		relay.Forward(e)
	}
	metrics.RecordRealtimeEvent(string(e.Type))
}

// SubscriberCount reports how many callbacks watch a subscription.
func (n *Notifier) SubscriberCount(subscriptionID types.ID) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[subscriptionID])
}

// Close shuts every subscriber queue down.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for _, channel := range n.subs {
		for _, sub := range channel {
			sub.close()
		}
	}
	n.subs = make(map[types.ID]map[uint64]*subscriber)
}
