package session

import (
	"time"

	"github.com/amal-center/platform/internal/shared/types"
)

// Status of a scheduled session
type Status string

const (
	StatusScheduled        Status = "scheduled"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusRescheduled      Status = "rescheduled"
	StatusManualReschedule Status = "requires_manual_reschedule"
)

// Active reports whether the session still occupies its therapist and room.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// ScheduledSession is one therapy session on the calendar. Invariant: no two
// sessions sharing a therapist or a room may overlap in time while both are
// in a non-cancelled state.
type ScheduledSession struct {
	ID              types.ID  `json:"id"`
	SubscriptionID  types.ID  `json:"subscription_id"`
	Date            time.Time `json:"date"`
	StartTime       string    `json:"start_time"` // "15:04"
	EndTime         string    `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	TherapistID     types.ID  `json:"therapist_id"`
	RoomLocation    string    `json:"room_location"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TimeRange returns the session's wall-clock range.
func (s *ScheduledSession) TimeRange() types.TimeRange {
	return types.TimeRange{Start: s.StartTime, End: s.EndTime}
}

// ConflictsWith reports whether two sessions violate the overlap invariant:
// same day, overlapping times, and a shared therapist or room, with both in a
// non-cancelled state.
func (s *ScheduledSession) ConflictsWith(other *ScheduledSession) bool {
	if s.ID == other.ID {
		return false
	}
	if !s.Status.Active() || !other.Status.Active() {
		return false
	}
	if !types.DateOnly(s.Date).Equal(types.DateOnly(other.Date)) {
		return false
	}
	if s.TherapistID != other.TherapistID && s.RoomLocation != other.RoomLocation {
		return false
	}
	return s.TimeRange().Overlaps(other.TimeRange())
}

// Assignment is a session's slot at a point in time: the unit of the
// reschedule commit and of the rollback snapshot.
type Assignment struct {
	SessionID    types.ID  `json:"session_id"`
	Date         time.Time `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	TherapistID  types.ID  `json:"therapist_id"`
	RoomLocation string    `json:"room_location"`
	Status       Status    `json:"status"`
}

// AssignmentOf captures the current slot of a session.
func AssignmentOf(s *ScheduledSession) Assignment {
	return Assignment{
		SessionID:    s.ID,
		Date:         types.DateOnly(s.Date),
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		TherapistID:  s.TherapistID,
		RoomLocation: s.RoomLocation,
		Status:       s.Status,
	}
}
