// Package modification defines the modification request pipeline's input
// types and the HTTP surface that drives it.
package modification

import (
	"time"

	"github.com/amal-center/platform/internal/shared/types"
)

// Type discriminates the closed set of modification variants.
type Type string

const (
	TypeFreeze          Type = "freeze"
	TypeScheduleChange  Type = "schedule_change"
	TypeTherapistChange Type = "therapist_change"
	TypeProgramChange   Type = "program_change"
)

// Valid reports whether t is a known modification type.
func (t Type) Valid() bool {
	switch t {
	case TypeFreeze, TypeScheduleChange, TypeTherapistChange, TypeProgramChange:
		return true
	}
	return false
}

// Scope limits which part of the enrollment a modification touches.
type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeSessionsOnly Scope = "sessions_only"
	ScopeFutureOnly   Scope = "future_only"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeAll, ScopeSessionsOnly, ScopeFutureOnly:
		return true
	}
	return false
}

// Request is the transient input to the modification pipeline. It is
// validated at the boundary and persisted as an audit record only after
// commit.
type Request struct {
	ID             types.ID       `json:"id"`
	SubscriptionID types.ID       `json:"subscription_id"`
	Type           Type           `json:"type"`
	Scope          Scope          `json:"scope"`
	EffectiveDate  time.Time      `json:"effective_date"`
	RequestedBy    types.ID       `json:"requested_by"`
	Changes        ProposedChange `json:"proposed_changes"`
}

// ProposedChange carries the type-specific payload. Exactly the fields for
// the request's Type are set; the rest stay zero.
type ProposedChange struct {
	// Freeze
	FreezeStartDate time.Time `json:"freeze_start_date,omitempty"`
	FreezeEndDate   time.Time `json:"freeze_end_date,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	IncludeWeekends bool      `json:"include_weekends,omitempty"`
	ExcludeHolidays bool      `json:"exclude_holidays,omitempty"`

	// Schedule change
	NewStartTime string `json:"new_start_time,omitempty"`
	NewEndTime   string `json:"new_end_time,omitempty"`
	ShiftDays    int    `json:"shift_days,omitempty"`

	// Therapist change
	NewTherapistID types.ID `json:"new_therapist_id,omitempty"`

	// Program change
	NewProgramID  types.ID  `json:"new_program_id,omitempty"`
	NewEndDate    time.Time `json:"new_end_date,omitempty"`
	SessionsDelta int       `json:"sessions_delta,omitempty"`
}

// FreezeDays returns the inclusive length of the freeze window, or zero for
// non-freeze requests.
func (r *Request) FreezeDays() int {
	if r.Type != TypeFreeze {
		return 0
	}
	start := types.DateOnly(r.Changes.FreezeStartDate)
	end := types.DateOnly(r.Changes.FreezeEndDate)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// ChangeMap flattens the proposed change for the audit record.
func (r *Request) ChangeMap() map[string]any {
	m := map[string]any{}
	switch r.Type {
	case TypeFreeze:
		m["freeze_start_date"] = types.FormatDate(r.Changes.FreezeStartDate)
		m["freeze_end_date"] = types.FormatDate(r.Changes.FreezeEndDate)
		m["reason"] = r.Changes.Reason
		m["include_weekends"] = r.Changes.IncludeWeekends
		m["exclude_holidays"] = r.Changes.ExcludeHolidays
	case TypeScheduleChange:
		m["new_start_time"] = r.Changes.NewStartTime
		m["new_end_time"] = r.Changes.NewEndTime
		m["shift_days"] = r.Changes.ShiftDays
	case TypeTherapistChange:
		m["new_therapist_id"] = r.Changes.NewTherapistID.String()
	case TypeProgramChange:
		m["new_program_id"] = r.Changes.NewProgramID.String()
		if !r.Changes.NewEndDate.IsZero() {
			m["new_end_date"] = types.FormatDate(r.Changes.NewEndDate)
		}
		m["sessions_delta"] = r.Changes.SessionsDelta
	}
	return m
}
