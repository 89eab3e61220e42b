package rescheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/calendar"
	"github.com/amal-center/platform/internal/session"
	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/types"
)

func date(s string) time.Time {
	d, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeStore struct {
	mu       sync.Mutex
	affected []session.ScheduledSession
	pool     []session.ScheduledSession
	applied  map[types.ID][]session.Assignment
}

func newFakeStore() *fakeStore {
	return &fakeStore{applied: map[types.ID][]session.Assignment{}}
}

func (f *fakeStore) ListScheduledInWindow(_ context.Context, subID types.ID, from, to time.Time) ([]session.ScheduledSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []session.ScheduledSession
	for _, s := range f.affected {
		d := types.DateOnly(s.Date)
		if s.SubscriptionID == subID && !d.Before(from) && !d.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListForConflictCheck(_ context.Context, _ []types.ID, _ []string, _, _ time.Time) ([]session.ScheduledSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.ScheduledSession, len(f.pool))
	copy(out, f.pool)
	return append(out, f.affected...), nil
}

func (f *fakeStore) ApplyReassignments(_ context.Context, token types.ID, changes []session.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied[token] = changes
	return nil
}

func (f *fakeStore) RestoreSnapshot(_ context.Context, token types.ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changes, ok := f.applied[token]
	if !ok {
		return 0, errors.NotFound("reschedule snapshot", token.String())
	}
	delete(f.applied, token)
	return len(changes), nil
}

func testEngine(store SessionStore, horizonDays int) *Engine {
	cal := calendar.New(calendar.WithNow(func() time.Time { return date("2025-06-01") }))
	return NewEngine(store, cal, NewGuard(), horizonDays, 50, time.Second, zap.NewNop())
}

func scheduled(subID, therapistID types.ID, day, start, end, room string) session.ScheduledSession {
	return session.ScheduledSession{
		ID:              types.NewID(),
		SubscriptionID:  subID,
		Date:            date(day),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: 60,
		TherapistID:     therapistID,
		RoomLocation:    room,
		Status:          session.StatusScheduled,
	}
}

func TestRescheduleShiftsSessionsByAdjustment(t *testing.T) {
	subID := types.NewID()
	therapist := types.NewID()
	store := newFakeStore()
	store.affected = []session.ScheduledSession{
		scheduled(subID, therapist, "2025-06-02", "10:00", "11:00", "room-a"), // Monday
		scheduled(subID, therapist, "2025-06-04", "10:00", "11:00", "room-a"), // Wednesday
	}
	engine := testEngine(store, 14)

	result, err := engine.RescheduleSessionsForFreeze(context.Background(), &Request{
		SubscriptionID:  subID,
		FreezeStartDate: date("2025-06-01"),
		FreezeEndDate:   date("2025-06-07"),
		FreezeDays:      7,
		AdjustmentDays:  7,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.SessionsRescheduled != 2 {
		t.Errorf("Expected 2 rescheduled sessions, got %d", result.SessionsRescheduled)
	}
	if len(result.ConflictsDetected) != 0 {
		t.Errorf("Expected no conflicts, got %+v", result.ConflictsDetected)
	}
	if result.RollbackToken.IsZero() {
		t.Error("Expected a rollback token")
	}

	expected := map[string]string{"2025-06-09": "", "2025-06-11": ""}
	for _, a := range result.NewAssignments {
		day := types.FormatDate(a.Date)
		if _, ok := expected[day]; !ok {
			t.Errorf("Unexpected new date %s", day)
		}
		delete(expected, day)
		if a.StartTime != "10:00" || a.TherapistID != therapist {
			t.Errorf("Expected slot details preserved, got %+v", a)
		}
		if a.Status != session.StatusRescheduled {
			t.Errorf("Expected moved session stamped %s, got %s", session.StatusRescheduled, a.Status)
		}
	}
	if len(expected) != 0 {
		t.Errorf("Missing shifted dates: %v", expected)
	}
}

func TestRescheduleSkipsOccupiedSlot(t *testing.T) {
	subID := types.NewID()
	therapist := types.NewID()
	store := newFakeStore()
	store.affected = []session.ScheduledSession{
		scheduled(subID, therapist, "2025-06-02", "10:00", "11:00", "room-a"),
	}
	// Another student already holds the therapist's preferred shifted slot.
	store.pool = []session.ScheduledSession{
		scheduled(types.NewID(), therapist, "2025-06-09", "10:00", "11:00", "room-b"),
	}
	engine := testEngine(store, 14)

	result, err := engine.RescheduleSessionsForFreeze(context.Background(), &Request{
		SubscriptionID:  subID,
		FreezeStartDate: date("2025-06-01"),
		FreezeEndDate:   date("2025-06-07"),
		FreezeDays:      7,
		AdjustmentDays:  7,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.SessionsRescheduled != 1 {
		t.Fatalf("Expected 1 rescheduled session, got %d", result.SessionsRescheduled)
	}
	got := types.FormatDate(result.NewAssignments[0].Date)
	if got != "2025-06-10" {
		t.Errorf("Expected fallback to 2025-06-10, got %s", got)
	}
}

func TestRescheduleMarksUnplaceableForManualHandling(t *testing.T) {
	subID := types.NewID()
	therapist := types.NewID()
	store := newFakeStore()
	store.affected = []session.ScheduledSession{
		scheduled(subID, therapist, "2025-06-02", "10:00", "11:00", "room-a"),
		scheduled(subID, therapist, "2025-06-04", "10:00", "11:00", "room-a"),
	}
	// Block the therapist at 10:00 on every candidate day within a short horizon.
	for _, day := range []string{
		"2025-06-09", "2025-06-10", "2025-06-11", "2025-06-12", "2025-06-13",
		"2025-06-14", "2025-06-15", "2025-06-16",
	} {
		store.pool = append(store.pool,
			scheduled(types.NewID(), therapist, day, "10:00", "11:00", "room-b"))
	}
	engine := testEngine(store, 3)

	result, err := engine.RescheduleSessionsForFreeze(context.Background(), &Request{
		SubscriptionID:  subID,
		FreezeStartDate: date("2025-06-01"),
		FreezeEndDate:   date("2025-06-07"),
		FreezeDays:      7,
		AdjustmentDays:  7,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	totalAffected := 2
	if result.SessionsRescheduled+len(result.ConflictsDetected) != totalAffected {
		t.Errorf("Expected rescheduled+conflicts to equal %d, got %d+%d",
			totalAffected, result.SessionsRescheduled, len(result.ConflictsDetected))
	}
	if len(result.ConflictsDetected) == 0 {
		t.Fatal("Expected at least one conflict")
	}

	// The unplaceable sessions are committed with the manual status, not dropped.
	committed := store.applied[result.RollbackToken]
	if len(committed) != totalAffected {
		t.Fatalf("Expected %d committed assignments, got %d", totalAffected, len(committed))
	}
	manual := 0
	for _, a := range committed {
		if a.Status == session.StatusManualReschedule {
			manual++
		}
	}
	if manual != len(result.ConflictsDetected) {
		t.Errorf("Expected %d manual assignments, got %d", len(result.ConflictsDetected), manual)
	}
}

func TestRescheduleBatchIsInternallyConflictFree(t *testing.T) {
	subID := types.NewID()
	therapist := types.NewID()
	store := newFakeStore()
	// The Friday session's shifted date falls on a weekend and rolls forward
	// onto the Sunday session's preferred day. The engine must see its own
	// earlier placement and push the second session one day further.
	store.affected = []session.ScheduledSession{
		scheduled(subID, therapist, "2025-06-06", "10:00", "11:00", "room-a"), // Friday
		scheduled(subID, therapist, "2025-06-08", "10:00", "11:00", "room-a"), // Sunday
	}
	engine := testEngine(store, 14)

	result, err := engine.RescheduleSessionsForFreeze(context.Background(), &Request{
		SubscriptionID:  subID,
		FreezeStartDate: date("2025-06-01"),
		FreezeEndDate:   date("2025-06-08"),
		FreezeDays:      8,
		AdjustmentDays:  7,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.SessionsRescheduled != 2 {
		t.Fatalf("Expected 2 rescheduled sessions, got %d", result.SessionsRescheduled)
	}
	days := map[string]bool{}
	for _, a := range result.NewAssignments {
		days[types.FormatDate(a.Date)] = true
	}
	if !days["2025-06-15"] || !days["2025-06-16"] {
		t.Errorf("Expected placements on 2025-06-15 and 2025-06-16, got %v", days)
	}
	for i := range result.NewAssignments {
		for j := i + 1; j < len(result.NewAssignments); j++ {
			if assignmentConflicts(result.NewAssignments[i], result.NewAssignments[j]) {
				t.Errorf("Assignments %d and %d conflict: %+v / %+v",
					i, j, result.NewAssignments[i], result.NewAssignments[j])
			}
		}
	}
}

func TestRescheduleEmptyWindow(t *testing.T) {
	subID := types.NewID()
	engine := testEngine(newFakeStore(), 14)

	result, err := engine.RescheduleSessionsForFreeze(context.Background(), &Request{
		SubscriptionID:  subID,
		FreezeStartDate: date("2025-06-01"),
		FreezeEndDate:   date("2025-06-07"),
		FreezeDays:      7,
		AdjustmentDays:  7,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Success || result.SessionsRescheduled != 0 || len(result.ConflictsDetected) != 0 {
		t.Errorf("Expected clean empty result, got %+v", result)
	}
	if result.RollbackToken.IsZero() {
		t.Error("Expected a rollback token even for an empty window")
	}
}

func TestRescheduleRejectsConcurrentCommit(t *testing.T) {
	subID := types.NewID()
	store := newFakeStore()
	engine := testEngine(store, 14)

	if err := engine.guard.Acquire(subID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer engine.guard.Release(subID)

	_, err := engine.RescheduleSessionsForFreeze(context.Background(), &Request{
		SubscriptionID:  subID,
		FreezeStartDate: date("2025-06-01"),
		FreezeEndDate:   date("2025-06-07"),
	})
	if err == nil {
		t.Fatal("Expected a conflict error while another commit holds the guard")
	}
	if !errors.IsConflict(err) {
		t.Errorf("Expected conflict error, got %v", err)
	}
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	subID := types.NewID()
	therapist := types.NewID()
	store := newFakeStore()
	store.affected = []session.ScheduledSession{
		scheduled(subID, therapist, "2025-06-02", "10:00", "11:00", "room-a"),
		scheduled(subID, therapist, "2025-06-04", "10:00", "11:00", "room-a"),
	}
	engine := testEngine(store, 14)

	result, err := engine.RescheduleSessionsForFreeze(context.Background(), &Request{
		SubscriptionID:  subID,
		FreezeStartDate: date("2025-06-01"),
		FreezeEndDate:   date("2025-06-07"),
		FreezeDays:      7,
		AdjustmentDays:  7,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	restored, err := engine.Rollback(context.Background(), subID, result.RollbackToken)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if restored != 2 {
		t.Errorf("Expected 2 restored sessions, got %d", restored)
	}

	// A second rollback of the same token finds nothing.
	if _, err := engine.Rollback(context.Background(), subID, result.RollbackToken); !errors.IsNotFound(err) {
		t.Errorf("Expected not-found on repeated rollback, got %v", err)
	}
}

func TestApplyAdjustments(t *testing.T) {
	subID := types.NewID()
	store := newFakeStore()
	engine := testEngine(store, 14)

	changes := []session.Assignment{
		{SessionID: types.NewID(), Date: date("2025-06-10"), StartTime: "09:00", EndTime: "10:00", Status: session.StatusScheduled},
	}
	result, err := engine.ApplyAdjustments(context.Background(), subID, changes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.RollbackToken.IsZero() {
		t.Fatal("Expected a rollback token")
	}
	if result.SessionsRescheduled != 1 || len(result.ConflictsDetected) != 0 {
		t.Errorf("Expected 1 applied assignment and no conflicts, got %d/%d",
			result.SessionsRescheduled, len(result.ConflictsDetected))
	}
	if len(store.applied[result.RollbackToken]) != 1 {
		t.Errorf("Expected 1 committed assignment, got %d", len(store.applied[result.RollbackToken]))
	}
}

func TestApplyAdjustmentsRejectsConflictingSlot(t *testing.T) {
	subID := types.NewID()
	therapist := types.NewID()
	store := newFakeStore()
	// The therapist is already booked at the requested slot.
	store.pool = []session.ScheduledSession{
		scheduled(types.NewID(), therapist, "2025-06-10", "09:00", "10:00", "room-b"),
	}
	engine := testEngine(store, 14)

	changes := []session.Assignment{
		{SessionID: types.NewID(), Date: date("2025-06-10"), StartTime: "09:30", EndTime: "10:30",
			TherapistID: therapist, RoomLocation: "room-a", Status: session.StatusScheduled},
		{SessionID: types.NewID(), Date: date("2025-06-11"), StartTime: "09:00", EndTime: "10:00",
			TherapistID: therapist, RoomLocation: "room-a", Status: session.StatusScheduled},
	}
	result, err := engine.ApplyAdjustments(context.Background(), subID, changes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.SessionsRescheduled != 1 {
		t.Errorf("Expected 1 applied assignment, got %d", result.SessionsRescheduled)
	}
	if len(result.ConflictsDetected) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(result.ConflictsDetected))
	}
	if result.ConflictsDetected[0].SessionID != changes[0].SessionID {
		t.Errorf("Expected the overlapping assignment reported, got %+v", result.ConflictsDetected[0])
	}
	committed := store.applied[result.RollbackToken]
	if len(committed) != 1 || committed[0].SessionID != changes[1].SessionID {
		t.Errorf("Expected only the conflict-free assignment committed, got %+v", committed)
	}
}

func TestApplyAdjustmentsRejectsOverlapWithinBatch(t *testing.T) {
	subID := types.NewID()
	therapist := types.NewID()
	engine := testEngine(newFakeStore(), 14)

	// Two assignments in the same batch claim the same therapist slot; the
	// second must be rejected even with an empty store.
	changes := []session.Assignment{
		{SessionID: types.NewID(), Date: date("2025-06-10"), StartTime: "09:00", EndTime: "10:00",
			TherapistID: therapist, RoomLocation: "room-a", Status: session.StatusScheduled},
		{SessionID: types.NewID(), Date: date("2025-06-10"), StartTime: "09:00", EndTime: "10:00",
			TherapistID: therapist, RoomLocation: "room-b", Status: session.StatusScheduled},
	}
	result, err := engine.ApplyAdjustments(context.Background(), subID, changes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.SessionsRescheduled != 1 || len(result.ConflictsDetected) != 1 {
		t.Errorf("Expected 1 applied and 1 conflict, got %d/%d",
			result.SessionsRescheduled, len(result.ConflictsDetected))
	}
}

func TestRescheduleRejectsOversizedBatch(t *testing.T) {
	subID := types.NewID()
	therapist := types.NewID()
	store := newFakeStore()
	store.affected = []session.ScheduledSession{
		scheduled(subID, therapist, "2025-06-02", "10:00", "11:00", "room-a"),
		scheduled(subID, therapist, "2025-06-03", "10:00", "11:00", "room-a"),
	}
	cal := calendar.New(calendar.WithNow(func() time.Time { return date("2025-06-01") }))
	engine := NewEngine(store, cal, NewGuard(), 14, 1, time.Second, zap.NewNop())

	_, err := engine.RescheduleSessionsForFreeze(context.Background(), &Request{
		SubscriptionID:  subID,
		FreezeStartDate: date("2025-06-01"),
		FreezeEndDate:   date("2025-06-07"),
		FreezeDays:      7,
		AdjustmentDays:  7,
	})
	if err == nil {
		t.Fatal("Expected an error when the affected set exceeds the batch ceiling")
	}
	if len(store.applied) != 0 {
		t.Errorf("Expected nothing committed, got %d batches", len(store.applied))
	}

	changes := []session.Assignment{
		{SessionID: types.NewID(), Date: date("2025-06-10"), Status: session.StatusScheduled},
		{SessionID: types.NewID(), Date: date("2025-06-11"), Status: session.StatusScheduled},
	}
	if _, err := engine.ApplyAdjustments(context.Background(), subID, changes); err == nil {
		t.Error("Expected an error when adjustments exceed the batch ceiling")
	}
}

func TestGuardSingleHolder(t *testing.T) {
	guard := NewGuard()
	subID := types.NewID()

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := guard.Acquire(subID); err == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 1 {
		t.Errorf("Expected exactly 1 successful acquire, got %d", acquired)
	}

	guard.Release(subID)
	if err := guard.Acquire(subID); err != nil {
		t.Errorf("Expected acquire after release to succeed, got %v", err)
	}
}
