// Package impact previews the consequences of a proposed modification and
// drives commit and rollback of approved ones.
package impact

import (
	"time"

	"github.com/amal-center/platform/internal/modification"
	"github.com/amal-center/platform/internal/notification"
	"github.com/amal-center/platform/internal/rescheduling"
	"github.com/amal-center/platform/internal/shared/types"
	"github.com/amal-center/platform/internal/validation"
)

// Severity classifies how disruptive a modification is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// CostImplications is the billing delta of a modification: the adjusted
// projection minus the original. The system only estimates; a separate
// billing system applies charges.
type CostImplications struct {
	OriginalProjection float64 `json:"original_projection"`
	AdjustedProjection float64 `json:"adjusted_projection"`
	Delta              float64 `json:"delta"`
	Currency           string  `json:"currency"`
}

// Analysis is a computed preview of one modification. Advisory until the
// commit path reruns the same logic against current state.
type Analysis struct {
	ModificationID                   types.ID                   `json:"modification_id"`
	SubscriptionID                   types.ID                   `json:"subscription_id"`
	Type                             modification.Type          `json:"type"`
	AffectedSessionCount             int                        `json:"affected_session_count"`
	AffectedTherapistCount           int                        `json:"affected_therapist_count"`
	TotalRemainingSessions           int                        `json:"total_remaining_sessions"`
	ScheduleDisruptionPercentage     float64                    `json:"schedule_disruption_percentage"`
	OverallSeverity                  Severity                   `json:"overall_severity"`
	CostImplications                 CostImplications           `json:"cost_implications"`
	StakeholderNotificationsRequired []notification.Stakeholder `json:"stakeholder_notifications_required"`
	EstimatedAdjustmentTimeMinutes   int                        `json:"estimated_adjustment_time_minutes"`
	AnalyzedAt                       time.Time                  `json:"analyzed_at"`
}

// Scenario is one analyzed candidate in a comparison, with its composite
// score (lower is better).
type Scenario struct {
	Index    int       `json:"index"`
	Analysis *Analysis `json:"analysis"`
	Score    float64   `json:"score"`
}

// Comparison ranks candidate change-sets for one subscription. Index fields
// refer to the caller's request order.
type Comparison struct {
	SubscriptionID  types.ID   `json:"subscription_id"`
	Scenarios       []Scenario `json:"scenarios"`
	Recommended     int        `json:"recommended"`
	LowestCost      int        `json:"lowest_cost"`
	LeastDisruptive int        `json:"least_disruptive"`
	Fastest         int        `json:"fastest"`
}

// BulkFailure is one enrollment that could not be analyzed. Failures never
// abort the batch.
type BulkFailure struct {
	SubscriptionID string `json:"subscription_id"`
	Code           string `json:"code"`
	Message        string `json:"message"`
	MessageAr      string `json:"message_ar"`
}

// BulkAggregate totals are computed over successful analyses only.
type BulkAggregate struct {
	TotalAffectedSessions   int      `json:"total_affected_sessions"`
	TotalAffectedTherapists int      `json:"total_affected_therapists"`
	TotalCostDelta          float64  `json:"total_cost_delta"`
	HighestSeverity         Severity `json:"highest_severity"`
}

// BulkResult partitions a bulk analysis into successes and failures.
type BulkResult struct {
	Successful []*Analysis   `json:"successful_analyses"`
	Failed     []BulkFailure `json:"failed_analyses"`
	Aggregate  BulkAggregate `json:"aggregate"`
}

// ImplementResult reports the outcome of committing an approved modification.
// A validation failure is carried as data with Success=false.
type ImplementResult struct {
	Success        bool                 `json:"success"`
	Validation     *validation.Result   `json:"validation,omitempty"`
	ModificationID types.ID             `json:"modification_id,omitempty"`
	RollbackToken  types.ID             `json:"rollback_token,omitempty"`
	NewEndDate     time.Time            `json:"new_end_date,omitempty"`
	Analysis       *Analysis            `json:"analysis,omitempty"`
	Reschedule     *rescheduling.Result `json:"reschedule,omitempty"`
}

// RollbackResult reports a reversed modification.
type RollbackResult struct {
	ModificationID   types.ID `json:"modification_id"`
	SessionsRestored int      `json:"sessions_restored"`
}
