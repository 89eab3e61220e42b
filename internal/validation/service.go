// Package validation gates proposed modifications against business rules
// before any mutation. Rule violations are structured data, never Go errors;
// only store failures surface as errors.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/calendar"
	"github.com/amal-center/platform/internal/modification"
	"github.com/amal-center/platform/internal/session"
	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/types"
	"github.com/amal-center/platform/internal/subscription"
)

// Rule codes carried by violations.
const (
	CodeInvalidDateRange  = "INVALID_DATE_RANGE"
	CodeFreezeBudget      = "FREEZE_BUDGET_EXCEEDED"
	CodeOverlappingFreeze = "OVERLAPPING_FREEZE"
	CodeReasonTooShort    = "REASON_TOO_SHORT"
	CodeNotActive         = "SUBSCRIPTION_NOT_ACTIVE"
	CodeUnknownType       = "UNKNOWN_MODIFICATION_TYPE"
	CodeUnknownScope      = "UNKNOWN_SCOPE"
	CodeMissingField      = "MISSING_FIELD"
	CodeNoFutureSessions  = "NO_FUTURE_SESSIONS"
	CodeNotFound          = "SUBSCRIPTION_NOT_FOUND"
	CodePastWindow        = "FREEZE_IN_PAST"
	CodeEmptyWindow       = "NO_SESSIONS_IN_WINDOW"
)

// Violation is one failed or advisory business rule.
type Violation struct {
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
	MessageAr string `json:"message_ar"`
}

// Result is the outcome of a validation pass.
type Result struct {
	Valid    bool        `json:"valid"`
	Errors   []Violation `json:"errors"`
	Warnings []Violation `json:"warnings"`
}

func (r *Result) addError(v Violation) {
	r.Errors = append(r.Errors, v)
	r.Valid = false
}

func (r *Result) addWarning(v Violation) {
	r.Warnings = append(r.Warnings, v)
}

// FreezeRequest is a proposed subscription pause.
type FreezeRequest struct {
	SubscriptionID types.ID  `json:"subscription_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Reason         string    `json:"reason"`
	RequestedBy    types.ID  `json:"requested_by"`
}

// Days returns the inclusive freeze window length.
func (f *FreezeRequest) Days() int {
	start := types.DateOnly(f.StartDate)
	end := types.DateOnly(f.EndDate)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// SubscriptionStore is the subset of subscription persistence validation reads.
type SubscriptionStore interface {
	Get(ctx context.Context, id types.ID) (*subscription.Subscription, error)
	ActiveFreezeOverlapping(ctx context.Context, subID types.ID, start, end time.Time) (*subscription.Freeze, error)
}

// SessionStore is the subset of session persistence validation reads.
type SessionStore interface {
	CountRemaining(ctx context.Context, subID types.ID, after time.Time) (int, error)
	ListScheduledInWindow(ctx context.Context, subID types.ID, from, to time.Time) ([]session.ScheduledSession, error)
}

// Service validates freeze and modification requests.
type Service struct {
	subs      SubscriptionStore
	sessions  SessionStore
	cal       calendar.Calendar
	minReason int
	logger    *zap.Logger
}

// NewService creates a validation service.
func NewService(subs SubscriptionStore, sessions SessionStore, cal calendar.Calendar, minReasonLen int, logger *zap.Logger) *Service {
	if minReasonLen <= 0 {
		minReasonLen = 10
	}
	return &Service{subs: subs, sessions: sessions, cal: cal, minReason: minReasonLen, logger: logger}
}

// ValidateFreezeRequest checks a freeze proposal against every business rule.
// The returned error is non-nil only for infrastructure failures.
func (s *Service) ValidateFreezeRequest(ctx context.Context, req *FreezeRequest) (*Result, error) {
	result := &Result{Valid: true}

	start := types.DateOnly(req.StartDate)
	end := types.DateOnly(req.EndDate)

	if end.Before(start) {
		result.addError(Violation{
			Code:      CodeInvalidDateRange,
			Field:     "end_date",
			Message:   "freeze end date must not precede start date",
			MessageAr: "يجب ألا يسبق تاريخ نهاية التجميد تاريخ البداية",
		})
	}

	if strings.TrimSpace(req.Reason) == "" || len(strings.TrimSpace(req.Reason)) < s.minReason {
		result.addError(Violation{
			Code:      CodeReasonTooShort,
			Field:     "reason",
			Message:   fmt.Sprintf("freeze reason must be at least %d characters", s.minReason),
			MessageAr: fmt.Sprintf("يجب أن يكون سبب التجميد %d أحرف على الأقل", s.minReason),
		})
	}

	sub, err := s.subs.Get(ctx, req.SubscriptionID)
	if err != nil {
		if errors.IsNotFound(err) {
			result.addError(Violation{
				Code:      CodeNotFound,
				Field:     "subscription_id",
				Message:   "subscription does not exist",
				MessageAr: "الاشتراك غير موجود",
			})
			return result, nil
		}
		return nil, err
	}

	if sub.Status != subscription.StatusActive {
		result.addError(Violation{
			Code:      CodeNotActive,
			Field:     "subscription_id",
			Message:   fmt.Sprintf("subscription is %s, only active subscriptions can be frozen", sub.Status),
			MessageAr: "لا يمكن تجميد إلا الاشتراكات النشطة",
		})
	}

	days := req.Days()
	if days > 0 && sub.FreezeDaysUsed+days > sub.FreezeDaysAllowed {
		result.addError(Violation{
			Code:  CodeFreezeBudget,
			Field: "end_date",
			Message: fmt.Sprintf("freeze of %d days exceeds remaining budget of %d days",
				days, sub.RemainingFreezeDays()),
			MessageAr: fmt.Sprintf("تجميد %d يوماً يتجاوز الرصيد المتبقي (%d يوماً)",
				days, sub.RemainingFreezeDays()),
		})
	}

	if !end.Before(start) {
		overlap, err := s.subs.ActiveFreezeOverlapping(ctx, req.SubscriptionID, start, end)
		if err != nil {
			return nil, err
		}
		if overlap != nil {
			result.addError(Violation{
				Code:      CodeOverlappingFreeze,
				Field:     "start_date",
				Message:   "an active freeze already covers part of this window",
				MessageAr: "يوجد تجميد نشط يغطي جزءاً من هذه الفترة",
			})
		}
	}

	// Advisory checks.
	if start.Before(s.cal.Today()) {
		result.addWarning(Violation{
			Code:      CodePastWindow,
			Field:     "start_date",
			Message:   "freeze window starts in the past",
			MessageAr: "تبدأ فترة التجميد في الماضي",
		})
	}
	if result.Valid {
		inWindow, err := s.sessions.ListScheduledInWindow(ctx, req.SubscriptionID, start, end)
		if err != nil {
			return nil, err
		}
		if len(inWindow) == 0 {
			result.addWarning(Violation{
				Code:      CodeEmptyWindow,
				Message:   "no scheduled sessions fall inside the freeze window",
				MessageAr: "لا توجد جلسات مجدولة ضمن فترة التجميد",
			})
		}
	}

	return result, nil
}

// ValidateModificationRequest applies the analogous contract for non-freeze
// modifications: referential integrity of all ids and scope consistency.
func (s *Service) ValidateModificationRequest(ctx context.Context, req *modification.Request) (*Result, error) {
	result := &Result{Valid: true}

	if !req.Type.Valid() {
		result.addError(Violation{
			Code:      CodeUnknownType,
			Field:     "type",
			Message:   fmt.Sprintf("unknown modification type %q", req.Type),
			MessageAr: "نوع تعديل غير معروف",
		})
		return result, nil
	}
	if !req.Scope.Valid() {
		result.addError(Violation{
			Code:      CodeUnknownScope,
			Field:     "scope",
			Message:   fmt.Sprintf("unknown scope %q", req.Scope),
			MessageAr: "نطاق غير معروف",
		})
	}

	if req.Type == modification.TypeFreeze {
		freezeReq := &FreezeRequest{
			SubscriptionID: req.SubscriptionID,
			StartDate:      req.Changes.FreezeStartDate,
			EndDate:        req.Changes.FreezeEndDate,
			Reason:         req.Changes.Reason,
			RequestedBy:    req.RequestedBy,
		}
		return s.ValidateFreezeRequest(ctx, freezeReq)
	}

	sub, err := s.subs.Get(ctx, req.SubscriptionID)
	if err != nil {
		if errors.IsNotFound(err) {
			result.addError(Violation{
				Code:      CodeNotFound,
				Field:     "subscription_id",
				Message:   "subscription does not exist",
				MessageAr: "الاشتراك غير موجود",
			})
			return result, nil
		}
		return nil, err
	}

	if sub.Status != subscription.StatusActive && sub.Status != subscription.StatusFrozen {
		result.addError(Violation{
			Code:      CodeNotActive,
			Field:     "subscription_id",
			Message:   fmt.Sprintf("subscription is %s and cannot be modified", sub.Status),
			MessageAr: "لا يمكن تعديل هذا الاشتراك في حالته الحالية",
		})
	}

	switch req.Type {
	case modification.TypeTherapistChange:
		if req.Changes.NewTherapistID.IsZero() {
			result.addError(missingField("new_therapist_id"))
		}
	case modification.TypeScheduleChange:
		if req.Changes.NewStartTime == "" && req.Changes.ShiftDays == 0 {
			result.addError(missingField("new_start_time"))
		}
		if req.Changes.NewStartTime != "" {
			tr := types.TimeRange{Start: req.Changes.NewStartTime, End: req.Changes.NewEndTime}
			if !tr.Valid() {
				result.addError(Violation{
					Code:      CodeInvalidDateRange,
					Field:     "new_start_time",
					Message:   "new session times must form a valid range",
					MessageAr: "يجب أن تشكل أوقات الجلسة الجديدة نطاقاً صالحاً",
				})
			}
		}
	case modification.TypeProgramChange:
		if req.Changes.NewProgramID.IsZero() && req.Changes.NewEndDate.IsZero() && req.Changes.SessionsDelta == 0 {
			result.addError(missingField("new_program_id"))
		}
	}

	if req.Scope == modification.ScopeFutureOnly {
		remaining, err := s.sessions.CountRemaining(ctx, req.SubscriptionID, s.cal.Today())
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			result.addError(Violation{
				Code:      CodeNoFutureSessions,
				Field:     "scope",
				Message:   "future_only scope requires at least one not-yet-occurred session",
				MessageAr: "يتطلب نطاق الجلسات المستقبلية وجود جلسة واحدة قادمة على الأقل",
			})
		}
	}

	return result, nil
}

func missingField(field string) Violation {
	return Violation{
		Code:      CodeMissingField,
		Field:     field,
		Message:   fmt.Sprintf("%s is required for this modification type", field),
		MessageAr: "حقل مطلوب لهذا النوع من التعديل",
	}
}
