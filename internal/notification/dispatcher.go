package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/shared/metrics"
)

var errSendFailed = errors.New("send failed")

// DispatcherConfig holds dispatcher tuning.
type DispatcherConfig struct {
	Workers       int
	BufferSize    int
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultDispatcherConfig returns default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:       4,
		BufferSize:    1000,
		RetryAttempts: 3,
		RetryDelay:    30 * time.Second,
	}
}

// Dispatcher fans notifications out to a provider through a worker pool.
// Dispatch is fire-and-forget for callers: a full buffer or a provider
// failure never propagates back to the commit path.
type Dispatcher struct {
	provider Provider
	config   DispatcherConfig
	logger   *zap.Logger

	mu      sync.Mutex
	stats   Stats
	started bool

	notifCh chan *Notification
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(provider Provider, config DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	return &Dispatcher{
		provider: provider,
		config:   config,
		logger:   logger,
		stats:    Stats{ByStakeholder: make(map[Stakeholder]int64)},
		notifCh:  make(chan *Notification, config.BufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true
	d.mu.Unlock()

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return nil
}

// Stop drains the workers.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not started")
	}
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
	return nil
}

// Dispatch queues a notification for delivery. A full buffer drops the
// notification with a log line rather than blocking the caller.
func (d *Dispatcher) Dispatch(n *Notification) {
	if n.ID == "" {
		n.ID = fmt.Sprintf("ntf-%d", time.Now().UnixNano())
	}
	n.CreatedAt = time.Now()
	n.Status = StatusPending

	d.mu.Lock()
	d.stats.TotalQueued++
	d.mu.Unlock()

	select {
	case d.notifCh <- n:
	default:
		d.logger.Warn("notification buffer full, dropping",
			zap.String("stakeholder", string(n.Stakeholder)),
			zap.String("subscription_id", n.SubscriptionID.String()),
		)
		d.recordOutcome(n, errors.New("buffer full"))
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case n := <-d.notifCh:
			d.process(ctx, n)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, n *Notification) {
	err := d.provider.Send(ctx, n)
	if err == nil {
		now := time.Now()
		n.SentAt = &now
		d.recordOutcome(n, nil)
		return
	}

	n.ErrorMessage = err.Error()
	n.RetryCount++
	if n.RetryCount >= d.config.RetryAttempts {
		d.recordOutcome(n, err)
		return
	}

	// Re-queue after the retry delay without holding a worker.
	go func() {
		select {
		case <-time.After(d.config.RetryDelay):
		case <-d.stopCh:
			return
		}
		select {
		case d.notifCh <- n:
		default:
		}
	}()
}

func (d *Dispatcher) recordOutcome(n *Notification, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.ByStakeholder[n.Stakeholder]++
	if err != nil {
		n.Status = StatusFailed
		d.stats.TotalFailed++
	} else {
		n.Status = StatusSent
		d.stats.TotalSent++
	}
	if d.stats.TotalQueued > 0 {
		d.stats.DeliveryRate = float64(d.stats.TotalSent) / float64(d.stats.TotalQueued)
	}
	metrics.RecordNotification(string(n.Stakeholder), err == nil)
}

// GetStats returns a snapshot of dispatcher statistics.
func (d *Dispatcher) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := d.stats
	snapshot.ByStakeholder = make(map[Stakeholder]int64, len(d.stats.ByStakeholder))
	for k, v := range d.stats.ByStakeholder {
		snapshot.ByStakeholder[k] = v
	}
	return snapshot
}
