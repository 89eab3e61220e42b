package subscription

import (
	"time"

	"github.com/amal-center/platform/internal/shared/types"
)

// Status of a subscription
type Status string

const (
	StatusActive    Status = "active"
	StatusFrozen    Status = "frozen"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Subscription is a student's multi-session therapy program enrollment.
// Invariants: FreezeDaysUsed <= FreezeDaysAllowed and EndDate >=
// OriginalEndDate (freezes only extend, never shrink).
type Subscription struct {
	ID                types.ID  `json:"id"`
	StudentID         types.ID  `json:"student_id"`
	ProgramID         types.ID  `json:"program_id"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	OriginalEndDate   time.Time `json:"original_end_date"`
	FreezeDaysAllowed int       `json:"freeze_days_allowed"`
	FreezeDaysUsed    int       `json:"freeze_days_used"`
	Status            Status    `json:"status"`
	SessionsTotal     int       `json:"sessions_total"`
	SessionsCompleted int       `json:"sessions_completed"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RemainingFreezeDays returns the unused freeze budget.
func (s *Subscription) RemainingFreezeDays() int {
	return s.FreezeDaysAllowed - s.FreezeDaysUsed
}

// FreezeStatus of a freeze record
type FreezeStatus string

const (
	FreezeStatusActive    FreezeStatus = "active"
	FreezeStatusCompleted FreezeStatus = "completed"
	FreezeStatusCancelled FreezeStatus = "cancelled"
)

// Freeze is a committed pause of a subscription over a date range.
// AdjustmentDays is the end-date extension the freeze applied; reverting the
// freeze subtracts exactly this delta, so concurrent freezes never clobber
// each other's accounting.
type Freeze struct {
	ID             types.ID     `json:"id"`
	SubscriptionID types.ID     `json:"subscription_id"`
	StartDate      time.Time    `json:"start_date"`
	EndDate        time.Time    `json:"end_date"`
	Days           int          `json:"days"`
	AdjustmentDays int          `json:"adjustment_days"`
	Reason         string       `json:"reason"`
	RequestedBy    types.ID     `json:"requested_by"`
	Status         FreezeStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ApprovalStatus of a modification
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalPending  ApprovalStatus = "pending"
)

// ModificationRecord is the audit record of a committed modification. It is
// written only after commit; the rollback token is the sole handle for
// reversing the change.
type ModificationRecord struct {
	ID              types.ID       `json:"id"`
	SubscriptionID  types.ID       `json:"subscription_id"`
	Type            string         `json:"type"`
	Scope           string         `json:"scope"`
	EffectiveDate   time.Time      `json:"effective_date"`
	ProposedChanges map[string]any `json:"proposed_changes"`
	RequestedBy     types.ID       `json:"requested_by"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	RollbackToken   types.ID       `json:"rollback_token"`
	ImplementedAt   time.Time      `json:"implemented_at"`
	RolledBackAt    *time.Time     `json:"rolled_back_at,omitempty"`
}
