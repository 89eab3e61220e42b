package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Provider delivers a notification over some external channel. Delivery
// channels themselves (email, SMS, push) live behind this boundary.
type Provider interface {
	Send(ctx context.Context, n *Notification) error
}

// LogProvider writes notifications to the structured log. It is the default
// provider in environments without a delivery integration.
type LogProvider struct {
	logger *zap.Logger
}

// NewLogProvider creates a provider that logs instead of delivering.
func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Send(_ context.Context, n *Notification) error {
	p.logger.Info("notification",
		zap.String("stakeholder", string(n.Stakeholder)),
		zap.String("subscription_id", n.SubscriptionID.String()),
		zap.String("subject", n.Subject),
		zap.String("subject_ar", n.SubjectAr),
	)
	return nil
}

// CaptureProvider records every notification it receives. Used in tests.
type CaptureProvider struct {
	mu       sync.Mutex
	sent     []*Notification
	failNext bool
}

// NewCaptureProvider creates an in-memory capture provider.
func NewCaptureProvider() *CaptureProvider {
	return &CaptureProvider{}
}

func (p *CaptureProvider) Send(_ context.Context, n *Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext {
		p.failNext = false
		return errSendFailed
	}
	p.sent = append(p.sent, n)
	return nil
}

// Sent returns a copy of the captured notifications.
func (p *CaptureProvider) Sent() []*Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Notification, len(p.sent))
	copy(out, p.sent)
	return out
}

// FailNext makes the next Send return an error.
func (p *CaptureProvider) FailNext() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = true
}
