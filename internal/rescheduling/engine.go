// Package rescheduling moves the sessions displaced by a freeze to new
// conflict-free slots. Scheduling conflicts are data carried in the result;
// only store failures are errors.
package rescheduling

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/calendar"
	"github.com/amal-center/platform/internal/session"
	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/metrics"
	"github.com/amal-center/platform/internal/shared/types"
)

// Request describes a validated freeze whose displaced sessions need new
// slots. AdjustmentDays comes from the timeline calculation, not the raw
// freeze length.
type Request struct {
	SubscriptionID  types.ID  `json:"subscription_id"`
	StudentID       types.ID  `json:"student_id"`
	FreezeStartDate time.Time `json:"freeze_start_date"`
	FreezeEndDate   time.Time `json:"freeze_end_date"`
	FreezeDays      int       `json:"freeze_days"`
	AdjustmentDays  int       `json:"adjustment_days"`
}

// Conflict is a session the engine could not place within the search horizon.
// The session is marked requires_manual_reschedule, never dropped.
type Conflict struct {
	SessionID    types.ID  `json:"session_id"`
	OriginalDate time.Time `json:"original_date"`
	Message      string    `json:"message"`
	MessageAr    string    `json:"message_ar"`
}

// Result reports the outcome of a reschedule commit. Invariant:
// SessionsRescheduled + len(ConflictsDetected) equals the number of sessions
// that fell inside the freeze window.
type Result struct {
	Success             bool                 `json:"success"`
	SessionsRescheduled int                  `json:"sessions_rescheduled"`
	ConflictsDetected   []Conflict           `json:"conflicts_detected"`
	NewAssignments      []session.Assignment `json:"new_assignments"`
	RollbackToken       types.ID             `json:"rollback_token"`
	ExecutionTimeMs     int64                `json:"execution_time_ms"`
}

// SessionStore is the session persistence the engine depends on.
type SessionStore interface {
	ListScheduledInWindow(ctx context.Context, subID types.ID, from, to time.Time) ([]session.ScheduledSession, error)
	ListForConflictCheck(ctx context.Context, therapistIDs []types.ID, rooms []string, from, to time.Time) ([]session.ScheduledSession, error)
	ApplyReassignments(ctx context.Context, token types.ID, changes []session.Assignment) error
	RestoreSnapshot(ctx context.Context, token types.ID) (int, error)
}

// Engine finds conflict-free slots for displaced sessions and commits the
// whole batch as one transaction scope.
type Engine struct {
	store        SessionStore
	cal          calendar.Calendar
	guard        *Guard
	horizonDays  int
	maxBatch     int
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewEngine creates a rescheduling engine. maxBatch caps how many sessions a
// single commit may move.
func NewEngine(store SessionStore, cal calendar.Calendar, guard *Guard, horizonDays, maxBatch int, storeTimeout time.Duration, logger *zap.Logger) *Engine {
	if horizonDays <= 0 {
		horizonDays = 14
	}
	if maxBatch <= 0 {
		maxBatch = 50
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Engine{
		store:        store,
		cal:          cal,
		guard:        guard,
		horizonDays:  horizonDays,
		maxBatch:     maxBatch,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// RescheduleSessionsForFreeze moves every scheduled session inside the freeze
// window forward by the adjustment, searching day-by-day within the horizon
// when the preferred slot is taken. Earlier sessions get priority for
// preferred slots. At most one commit runs per subscription at a time.
func (e *Engine) RescheduleSessionsForFreeze(ctx context.Context, req *Request) (*Result, error) {
	if err := e.guard.Acquire(req.SubscriptionID); err != nil {
		return nil, err
	}
	defer e.guard.Release(req.SubscriptionID)

	started := time.Now()

	freezeStart := types.DateOnly(req.FreezeStartDate)
	freezeEnd := types.DateOnly(req.FreezeEndDate)

	affected, err := e.listAffected(ctx, req.SubscriptionID, freezeStart, freezeEnd)
	if err != nil {
		return nil, err
	}
	if len(affected) > e.maxBatch {
		return nil, errors.BadRequest(fmt.Sprintf(
			"freeze affects %d sessions, exceeding the batch ceiling of %d", len(affected), e.maxBatch))
	}

	token := types.NewID()
	result := &Result{
		Success:           true,
		ConflictsDetected: []Conflict{},
		RollbackToken:     token,
	}

	if len(affected) == 0 {
		result.ExecutionTimeMs = time.Since(started).Milliseconds()
		return result, nil
	}

	pool, err := e.loadConflictPool(ctx, affected, freezeStart, freezeEnd, req.AdjustmentDays)
	if err != nil {
		return nil, err
	}

	changes := make([]session.Assignment, 0, len(affected))
	var placed []session.Assignment

	for i := range affected {
		s := &affected[i]
		slot, found := e.findSlot(s, req.AdjustmentDays, pool, placed)
		if !found {
			manual := session.AssignmentOf(s)
			manual.Status = session.StatusManualReschedule
			changes = append(changes, manual)
			result.ConflictsDetected = append(result.ConflictsDetected, Conflict{
				SessionID:    s.ID,
				OriginalDate: types.DateOnly(s.Date),
				Message:      "no conflict-free slot within the search horizon",
				MessageAr:    "لا يوجد موعد متاح خالٍ من التعارض ضمن فترة البحث",
			})
			continue
		}

		changes = append(changes, slot)
		placed = append(placed, slot)
		result.NewAssignments = append(result.NewAssignments, slot)
		result.SessionsRescheduled++
	}

	if err := e.applyReassignments(ctx, token, changes); err != nil {
		return nil, err
	}

	result.ExecutionTimeMs = time.Since(started).Milliseconds()
	metrics.RecordReschedule(result.SessionsRescheduled, len(result.ConflictsDetected), time.Since(started))
	e.logger.Info("reschedule committed",
		zap.String("subscription_id", req.SubscriptionID.String()),
		zap.Int("rescheduled", result.SessionsRescheduled),
		zap.Int("conflicts", len(result.ConflictsDetected)),
		zap.Int64("execution_ms", result.ExecutionTimeMs),
	)
	return result, nil
}

// ApplyAdjustments commits caller-supplied session assignments under the
// per-subscription guard. Used by non-freeze modifications whose new slots
// are chosen by the caller rather than searched for. Every candidate runs
// through the same therapist/room overlap check as the freeze path; a
// conflicting assignment is left in place and reported, never committed.
func (e *Engine) ApplyAdjustments(ctx context.Context, subID types.ID, changes []session.Assignment) (*Result, error) {
	if err := e.guard.Acquire(subID); err != nil {
		return nil, err
	}
	defer e.guard.Release(subID)

	if len(changes) > e.maxBatch {
		return nil, errors.BadRequest(fmt.Sprintf(
			"adjustment moves %d sessions, exceeding the batch ceiling of %d", len(changes), e.maxBatch))
	}

	started := time.Now()
	token := types.NewID()
	result := &Result{
		Success:           true,
		ConflictsDetected: []Conflict{},
		RollbackToken:     token,
	}

	if len(changes) == 0 {
		result.ExecutionTimeMs = time.Since(started).Milliseconds()
		return result, nil
	}

	pool, err := e.loadAdjustmentPool(ctx, changes)
	if err != nil {
		return nil, err
	}

	accepted := make([]session.Assignment, 0, len(changes))
	var placed []session.Assignment
	for _, change := range changes {
		if e.slotConflicts(change, pool, placed) {
			result.ConflictsDetected = append(result.ConflictsDetected, Conflict{
				SessionID:    change.SessionID,
				OriginalDate: types.DateOnly(change.Date),
				Message:      "requested slot conflicts with an existing session",
				MessageAr:    "الموعد المطلوب يتعارض مع جلسة قائمة",
			})
			continue
		}
		accepted = append(accepted, change)
		placed = append(placed, change)
		result.NewAssignments = append(result.NewAssignments, change)
		result.SessionsRescheduled++
	}

	if err := e.applyReassignments(ctx, token, accepted); err != nil {
		return nil, err
	}

	result.ExecutionTimeMs = time.Since(started).Milliseconds()
	e.logger.Info("adjustments committed",
		zap.String("subscription_id", subID.String()),
		zap.Int("applied", result.SessionsRescheduled),
		zap.Int("conflicts", len(result.ConflictsDetected)),
	)
	return result, nil
}

// Rollback restores the assignments snapshotted under a commit's rollback
// token. Returns the number of sessions restored.
func (e *Engine) Rollback(ctx context.Context, subID, token types.ID) (int, error) {
	if err := e.guard.Acquire(subID); err != nil {
		return 0, err
	}
	defer e.guard.Release(subID)

	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	restored, err := e.store.RestoreSnapshot(ctx, token)
	if err != nil {
		return 0, e.storeError(err, "failed to restore reschedule snapshot")
	}
	e.logger.Info("reschedule rolled back",
		zap.String("subscription_id", subID.String()),
		zap.Int("restored", restored),
	)
	return restored, nil
}

// findSlot returns the first conflict-free working-day slot for a displaced
// session, preserving time-of-day, therapist and room. It starts at the date
// shifted by the adjustment and scans forward within the horizon. Moved
// sessions are stamped rescheduled.
func (e *Engine) findSlot(s *session.ScheduledSession, adjustmentDays int, pool []session.ScheduledSession, placed []session.Assignment) (session.Assignment, bool) {
	candidate := session.AssignmentOf(s)
	candidate.Status = session.StatusRescheduled
	base := types.DateOnly(s.Date).AddDate(0, 0, adjustmentDays)

	for offset := 0; offset <= e.horizonDays; offset++ {
		date := base.AddDate(0, 0, offset)
		if !calendar.IsWorkingDay(e.cal, date) {
			continue
		}
		candidate.Date = date
		if !e.slotConflicts(candidate, pool, placed) {
			return candidate, true
		}
	}
	return session.Assignment{}, false
}

func (e *Engine) slotConflicts(candidate session.Assignment, pool []session.ScheduledSession, placed []session.Assignment) bool {
	for i := range pool {
		if assignmentConflicts(candidate, session.AssignmentOf(&pool[i])) {
			return true
		}
	}
	for _, p := range placed {
		if assignmentConflicts(candidate, p) {
			return true
		}
	}
	return false
}

// assignmentConflicts mirrors the session overlap invariant: same day, shared
// therapist or room, overlapping time ranges.
func assignmentConflicts(a, b session.Assignment) bool {
	if a.SessionID == b.SessionID {
		return false
	}
	if !a.Status.Active() || !b.Status.Active() {
		return false
	}
	if !types.DateOnly(a.Date).Equal(types.DateOnly(b.Date)) {
		return false
	}
	if a.TherapistID != b.TherapistID && a.RoomLocation != b.RoomLocation {
		return false
	}
	tr := types.TimeRange{Start: a.StartTime, End: a.EndTime}
	return tr.Overlaps(types.TimeRange{Start: b.StartTime, End: b.EndTime})
}

func (e *Engine) listAffected(ctx context.Context, subID types.ID, from, to time.Time) ([]session.ScheduledSession, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	affected, err := e.store.ListScheduledInWindow(ctx, subID, from, to)
	if err != nil {
		return nil, e.storeError(err, "failed to load affected sessions")
	}
	return affected, nil
}

// loadConflictPool fetches every session that could collide with a candidate
// slot: any non-cancelled session sharing a therapist or room with the batch,
// inside the shifted window plus the search horizon. Sessions being moved are
// excluded; their old slots are vacated by the same commit.
func (e *Engine) loadConflictPool(ctx context.Context, affected []session.ScheduledSession, freezeStart, freezeEnd time.Time, adjustmentDays int) ([]session.ScheduledSession, error) {
	therapists := make([]types.ID, 0, len(affected))
	rooms := make([]string, 0, len(affected))
	seenTherapist := map[types.ID]bool{}
	seenRoom := map[string]bool{}
	moving := make(map[types.ID]bool, len(affected))
	for i := range affected {
		s := &affected[i]
		moving[s.ID] = true
		if !seenTherapist[s.TherapistID] {
			seenTherapist[s.TherapistID] = true
			therapists = append(therapists, s.TherapistID)
		}
		if !seenRoom[s.RoomLocation] {
			seenRoom[s.RoomLocation] = true
			rooms = append(rooms, s.RoomLocation)
		}
	}

	from := types.DateOnly(freezeStart)
	to := types.DateOnly(freezeEnd).AddDate(0, 0, adjustmentDays+e.horizonDays)

	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	pool, err := e.store.ListForConflictCheck(ctx, therapists, rooms, from, to)
	if err != nil {
		return nil, e.storeError(err, "failed to load conflict pool")
	}

	kept := pool[:0]
	for i := range pool {
		if !moving[pool[i].ID] {
			kept = append(kept, pool[i])
		}
	}
	return kept, nil
}

// loadAdjustmentPool fetches the sessions a caller-supplied assignment batch
// could collide with, spanning the batch's therapists, rooms and date range.
// The sessions being moved are excluded; their old slots are vacated by the
// same commit.
func (e *Engine) loadAdjustmentPool(ctx context.Context, changes []session.Assignment) ([]session.ScheduledSession, error) {
	therapists := make([]types.ID, 0, len(changes))
	rooms := make([]string, 0, len(changes))
	seenTherapist := map[types.ID]bool{}
	seenRoom := map[string]bool{}
	moving := make(map[types.ID]bool, len(changes))

	from := types.DateOnly(changes[0].Date)
	to := from
	for _, c := range changes {
		moving[c.SessionID] = true
		date := types.DateOnly(c.Date)
		if date.Before(from) {
			from = date
		}
		if date.After(to) {
			to = date
		}
		if !seenTherapist[c.TherapistID] {
			seenTherapist[c.TherapistID] = true
			therapists = append(therapists, c.TherapistID)
		}
		if !seenRoom[c.RoomLocation] {
			seenRoom[c.RoomLocation] = true
			rooms = append(rooms, c.RoomLocation)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	pool, err := e.store.ListForConflictCheck(ctx, therapists, rooms, from, to)
	if err != nil {
		return nil, e.storeError(err, "failed to load conflict pool")
	}

	kept := pool[:0]
	for i := range pool {
		if !moving[pool[i].ID] {
			kept = append(kept, pool[i])
		}
	}
	return kept, nil
}

func (e *Engine) applyReassignments(ctx context.Context, token types.ID, changes []session.Assignment) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	if err := e.store.ApplyReassignments(ctx, token, changes); err != nil {
		return e.storeError(err, "failed to commit reassignments")
	}
	return nil
}

// storeError maps a timed-out store call to a retryable infrastructure
// failure; everything else passes through.
func (e *Engine) storeError(err error, message string) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Infrastructure(err, message)
	}
	return err
}
