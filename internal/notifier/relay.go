package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/shared/events"
)

// Publisher is the bus surface the relay forwards to.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Relay forwards broadcast events to the event bus with retry/backoff. It is
// fully decoupled from the commit path: a bus outage delays external fanout
// but never fails a broadcast.
type Relay struct {
	bus        Publisher
	backoff    Backoff
	maxRetries int
	logger     *zap.Logger

	queue  chan Event
	stopCh chan struct{}
	done   chan struct{}
}

// NewRelay creates a bus relay.
func NewRelay(bus Publisher, backoff Backoff, logger *zap.Logger) *Relay {
	return &Relay{
		bus:        bus,
		backoff:    backoff,
		maxRetries: 5,
		logger:     logger,
		queue:      make(chan Event, 1024),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the forwarding loop.
func (r *Relay) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop ends the forwarding loop and waits for it to exit.
func (r *Relay) Stop() {
	close(r.stopCh)
	<-r.done
}

// Forward queues an event for bus publication. A full queue drops the event
// with a log line; local subscribers already received it.
func (r *Relay) Forward(e Event) {
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("relay queue full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("subscription_id", e.SubscriptionID.String()),
		)
	}
}

func (r *Relay) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case e := <-r.queue:
			r.publish(ctx, e)
		}
	}
}

func (r *Relay) publish(ctx context.Context, e Event) {
	busEvent := events.NewEvent("realtime."+string(e.Type), "notifier", e.Data).
		WithSubscription(e.SubscriptionID)
	busEvent.Timestamp = e.Timestamp

	for attempt := 0; ; attempt++ {
		err := r.bus.Publish(ctx, busEvent)
		if err == nil {
			return
		}
		if attempt >= r.maxRetries {
			r.logger.Error("relay gave up publishing event",
				zap.String("type", string(e.Type)),
				zap.String("subscription_id", e.SubscriptionID.String()),
				zap.Error(err),
			)
			return
		}
		select {
		case <-time.After(r.backoff.Delay(attempt)):
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
