package notification

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/shared/types"
)

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}

func testNotification(st Stakeholder) *Notification {
	return &Notification{
		SubscriptionID: types.NewID(),
		ModificationID: types.NewID(),
		Stakeholder:    st,
		Subject:        "Subscription freeze applied",
		SubjectAr:      "تم تطبيق تجميد الاشتراك",
	}
}

func TestDispatcherDelivers(t *testing.T) {
	provider := NewCaptureProvider()
	d := NewDispatcher(provider, DispatcherConfig{Workers: 2, BufferSize: 16, RetryAttempts: 3, RetryDelay: 10 * time.Millisecond}, zap.NewNop())

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer d.Stop()

	d.Dispatch(testNotification(StakeholderParent))
	d.Dispatch(testNotification(StakeholderTherapist))
	d.Dispatch(testNotification(StakeholderBillingAdmin))

	waitUntil(t, func() bool { return len(provider.Sent()) == 3 })

	for _, n := range provider.Sent() {
		if n.Status != StatusSent {
			t.Errorf("Expected status %s, got %s", StatusSent, n.Status)
		}
		if n.SentAt == nil {
			t.Error("Expected SentAt to be stamped")
		}
		if n.ID == "" {
			t.Error("Expected dispatch to assign an id")
		}
	}

	stats := d.GetStats()
	if stats.TotalQueued != 3 || stats.TotalSent != 3 || stats.TotalFailed != 0 {
		t.Errorf("Expected 3 queued/3 sent/0 failed, got %+v", stats)
	}
	if stats.ByStakeholder[StakeholderParent] != 1 {
		t.Errorf("Expected 1 parent notification, got %d", stats.ByStakeholder[StakeholderParent])
	}
	if stats.DeliveryRate != 1 {
		t.Errorf("Expected delivery rate 1, got %f", stats.DeliveryRate)
	}
}

func TestDispatcherRetriesFailedSend(t *testing.T) {
	provider := NewCaptureProvider()
	d := NewDispatcher(provider, DispatcherConfig{Workers: 1, BufferSize: 16, RetryAttempts: 3, RetryDelay: 10 * time.Millisecond}, zap.NewNop())

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer d.Stop()

	provider.FailNext()
	d.Dispatch(testNotification(StakeholderParent))

	// The first attempt fails; the retry lands after the delay.
	waitUntil(t, func() bool { return len(provider.Sent()) == 1 })

	sent := provider.Sent()[0]
	if sent.RetryCount != 1 {
		t.Errorf("Expected 1 retry, got %d", sent.RetryCount)
	}
	if sent.Status != StatusSent {
		t.Errorf("Expected eventual delivery, got %s", sent.Status)
	}
}

func TestDispatcherDropsOnFullBuffer(t *testing.T) {
	provider := NewCaptureProvider()
	// Never started: nothing drains the buffer.
	d := NewDispatcher(provider, DispatcherConfig{Workers: 1, BufferSize: 1, RetryAttempts: 1, RetryDelay: time.Millisecond}, zap.NewNop())

	d.Dispatch(testNotification(StakeholderParent))
	d.Dispatch(testNotification(StakeholderParent)) // buffer full, dropped

	stats := d.GetStats()
	if stats.TotalQueued != 2 {
		t.Errorf("Expected 2 queued, got %d", stats.TotalQueued)
	}
	if stats.TotalFailed != 1 {
		t.Errorf("Expected 1 failed (dropped), got %d", stats.TotalFailed)
	}
}

func TestDispatcherStartStopGuards(t *testing.T) {
	d := NewDispatcher(NewCaptureProvider(), DefaultDispatcherConfig(), zap.NewNop())

	if err := d.Stop(); err == nil {
		t.Error("Expected an error stopping a dispatcher that never started")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Error("Expected an error starting twice")
	}
	if err := d.Stop(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
