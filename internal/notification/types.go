// Package notification delivers structured bilingual payloads to the
// stakeholders of a committed modification. It sits outside the transactional
// boundary: a failed dispatch never affects an already-committed change.
package notification

import (
	"time"

	"github.com/amal-center/platform/internal/shared/types"
)

// Stakeholder identifies who receives a notification.
type Stakeholder string

const (
	StakeholderParent       Stakeholder = "parent"
	StakeholderTherapist    Stakeholder = "therapist"
	StakeholderBillingAdmin Stakeholder = "billing_admin"
)

// Status tracks a notification through the dispatch pipeline.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is one bilingual payload addressed to a stakeholder.
type Notification struct {
	ID             string         `json:"id"`
	SubscriptionID types.ID       `json:"subscription_id"`
	ModificationID types.ID       `json:"modification_id"`
	Stakeholder    Stakeholder    `json:"stakeholder"`
	Subject        string         `json:"subject"`
	SubjectAr      string         `json:"subject_ar"`
	Body           string         `json:"body"`
	BodyAr         string         `json:"body_ar"`
	Data           map[string]any `json:"data,omitempty"`
	Status         Status         `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	RetryCount     int            `json:"retry_count"`
	CreatedAt      time.Time      `json:"created_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
}

// Stats aggregates dispatcher outcomes.
type Stats struct {
	TotalQueued   int64                 `json:"total_queued"`
	TotalSent     int64                 `json:"total_sent"`
	TotalFailed   int64                 `json:"total_failed"`
	ByStakeholder map[Stakeholder]int64 `json:"by_stakeholder"`
	DeliveryRate  float64               `json:"delivery_rate"`
}
