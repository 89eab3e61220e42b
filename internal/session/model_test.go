package session

import (
	"testing"
	"time"

	"github.com/amal-center/platform/internal/shared/types"
)

func date(s string) time.Time {
	d, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestConflictsWith(t *testing.T) {
	therapist := types.NewID()
	otherTherapist := types.NewID()

	base := ScheduledSession{
		ID:           types.NewID(),
		Date:         date("2025-06-02"),
		StartTime:    "10:00",
		EndTime:      "11:00",
		TherapistID:  therapist,
		RoomLocation: "room-a",
		Status:       StatusScheduled,
	}

	tests := []struct {
		name     string
		other    ScheduledSession
		conflict bool
	}{
		{
			name: "same therapist overlapping time",
			other: ScheduledSession{
				ID: types.NewID(), Date: date("2025-06-02"),
				StartTime: "10:30", EndTime: "11:30",
				TherapistID: therapist, RoomLocation: "room-b",
				Status: StatusScheduled,
			},
			conflict: true,
		},
		{
			name: "same room overlapping time",
			other: ScheduledSession{
				ID: types.NewID(), Date: date("2025-06-02"),
				StartTime: "10:30", EndTime: "11:30",
				TherapistID: otherTherapist, RoomLocation: "room-a",
				Status: StatusScheduled,
			},
			conflict: true,
		},
		{
			name: "different day",
			other: ScheduledSession{
				ID: types.NewID(), Date: date("2025-06-03"),
				StartTime: "10:00", EndTime: "11:00",
				TherapistID: therapist, RoomLocation: "room-a",
				Status: StatusScheduled,
			},
			conflict: false,
		},
		{
			name: "adjacent times do not overlap",
			other: ScheduledSession{
				ID: types.NewID(), Date: date("2025-06-02"),
				StartTime: "11:00", EndTime: "12:00",
				TherapistID: therapist, RoomLocation: "room-a",
				Status: StatusScheduled,
			},
			conflict: false,
		},
		{
			name: "different therapist and room",
			other: ScheduledSession{
				ID: types.NewID(), Date: date("2025-06-02"),
				StartTime: "10:00", EndTime: "11:00",
				TherapistID: otherTherapist, RoomLocation: "room-b",
				Status: StatusScheduled,
			},
			conflict: false,
		},
		{
			name: "cancelled session frees the slot",
			other: ScheduledSession{
				ID: types.NewID(), Date: date("2025-06-02"),
				StartTime: "10:00", EndTime: "11:00",
				TherapistID: therapist, RoomLocation: "room-a",
				Status: StatusCancelled,
			},
			conflict: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.ConflictsWith(&tt.other); got != tt.conflict {
				t.Errorf("Expected conflict=%v, got %v", tt.conflict, got)
			}
			// Symmetric.
			if got := tt.other.ConflictsWith(&base); got != tt.conflict {
				t.Errorf("Expected symmetric conflict=%v, got %v", tt.conflict, got)
			}
		})
	}
}

func TestConflictsWithSelf(t *testing.T) {
	s := ScheduledSession{
		ID: types.NewID(), Date: date("2025-06-02"),
		StartTime: "10:00", EndTime: "11:00",
		TherapistID: types.NewID(), RoomLocation: "room-a",
		Status: StatusScheduled,
	}
	if s.ConflictsWith(&s) {
		t.Error("Expected a session to never conflict with itself")
	}
}

func TestAssignmentOf(t *testing.T) {
	s := ScheduledSession{
		ID:           types.NewID(),
		Date:         time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC), // time-of-day noise
		StartTime:    "10:00",
		EndTime:      "11:00",
		TherapistID:  types.NewID(),
		RoomLocation: "room-a",
		Status:       StatusScheduled,
	}

	a := AssignmentOf(&s)
	if a.SessionID != s.ID || a.TherapistID != s.TherapistID || a.RoomLocation != s.RoomLocation {
		t.Errorf("Expected slot details carried over, got %+v", a)
	}
	if !a.Date.Equal(date("2025-06-02")) {
		t.Errorf("Expected date truncated to day, got %s", a.Date)
	}
}

func TestStatusActive(t *testing.T) {
	if StatusCancelled.Active() {
		t.Error("Expected cancelled to be inactive")
	}
	for _, st := range []Status{StatusScheduled, StatusCompleted, StatusRescheduled, StatusManualReschedule} {
		if !st.Active() {
			t.Errorf("Expected %s to occupy its slot", st)
		}
	}
}
