package validation

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/calendar"
	"github.com/amal-center/platform/internal/modification"
	"github.com/amal-center/platform/internal/session"
	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/types"
	"github.com/amal-center/platform/internal/subscription"
)

func date(s string) time.Time {
	d, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeSubStore struct {
	subs    map[types.ID]*subscription.Subscription
	overlap *subscription.Freeze
}

func (f *fakeSubStore) Get(_ context.Context, id types.ID) (*subscription.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, errors.NotFound("subscription", id.String())
	}
	return sub, nil
}

func (f *fakeSubStore) ActiveFreezeOverlapping(_ context.Context, _ types.ID, _, _ time.Time) (*subscription.Freeze, error) {
	return f.overlap, nil
}

type fakeSessionStore struct {
	remaining int
	inWindow  []session.ScheduledSession
}

func (f *fakeSessionStore) CountRemaining(_ context.Context, _ types.ID, _ time.Time) (int, error) {
	return f.remaining, nil
}

func (f *fakeSessionStore) ListScheduledInWindow(_ context.Context, _ types.ID, _, _ time.Time) ([]session.ScheduledSession, error) {
	return f.inWindow, nil
}

func testService(subs *fakeSubStore, sessions *fakeSessionStore) *Service {
	cal := calendar.New(calendar.WithNow(func() time.Time { return date("2025-06-01") }))
	return NewService(subs, sessions, cal, 10, zap.NewNop())
}

func activeSubscription(id types.ID) *subscription.Subscription {
	return &subscription.Subscription{
		ID:                id,
		StudentID:         types.NewID(),
		ProgramID:         types.NewID(),
		StartDate:         date("2025-01-01"),
		EndDate:           date("2025-08-31"),
		OriginalEndDate:   date("2025-08-31"),
		FreezeDaysAllowed: 30,
		FreezeDaysUsed:    5,
		Status:            subscription.StatusActive,
		SessionsTotal:     48,
		SessionsCompleted: 20,
	}
}

func hasViolation(violations []Violation, code string) bool {
	for _, v := range violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func TestValidateFreezeRequest(t *testing.T) {
	subID := types.NewID()

	tests := []struct {
		name      string
		mutate    func(*FreezeRequest, *fakeSubStore)
		wantValid bool
		wantCode  string
	}{
		{
			name:      "valid request",
			mutate:    func(*FreezeRequest, *fakeSubStore) {},
			wantValid: true,
		},
		{
			name: "end before start",
			mutate: func(r *FreezeRequest, _ *fakeSubStore) {
				r.StartDate = date("2025-06-10")
				r.EndDate = date("2025-06-05")
			},
			wantCode: CodeInvalidDateRange,
		},
		{
			name: "reason too short",
			mutate: func(r *FreezeRequest, _ *fakeSubStore) {
				r.Reason = "sick"
			},
			wantCode: CodeReasonTooShort,
		},
		{
			name: "budget exceeded",
			mutate: func(r *FreezeRequest, _ *fakeSubStore) {
				r.EndDate = date("2025-07-15") // 41 days, only 25 remain
			},
			wantCode: CodeFreezeBudget,
		},
		{
			name: "overlapping active freeze",
			mutate: func(_ *FreezeRequest, s *fakeSubStore) {
				s.overlap = &subscription.Freeze{ID: types.NewID()}
			},
			wantCode: CodeOverlappingFreeze,
		},
		{
			name: "subscription not active",
			mutate: func(_ *FreezeRequest, s *fakeSubStore) {
				s.subs[subID].Status = subscription.StatusFrozen
			},
			wantCode: CodeNotActive,
		},
		{
			name: "subscription missing",
			mutate: func(r *FreezeRequest, _ *fakeSubStore) {
				r.SubscriptionID = types.NewID()
			},
			wantCode: CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &fakeSubStore{subs: map[types.ID]*subscription.Subscription{
				subID: activeSubscription(subID),
			}}
			sessions := &fakeSessionStore{remaining: 10, inWindow: []session.ScheduledSession{{ID: types.NewID()}}}
			svc := testService(subs, sessions)

			req := &FreezeRequest{
				SubscriptionID: subID,
				StartDate:      date("2025-06-05"),
				EndDate:        date("2025-06-11"),
				Reason:         "family travel abroad",
				RequestedBy:    types.NewID(),
			}
			tt.mutate(req, subs)

			result, err := svc.ValidateFreezeRequest(context.Background(), req)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result.Valid != tt.wantValid {
				t.Errorf("Expected valid=%v, got %v (errors: %+v)", tt.wantValid, result.Valid, result.Errors)
			}
			if tt.wantCode != "" && !hasViolation(result.Errors, tt.wantCode) {
				t.Errorf("Expected violation %s, got %+v", tt.wantCode, result.Errors)
			}
		})
	}
}

func TestValidateFreezeRequestWarnings(t *testing.T) {
	subID := types.NewID()
	subs := &fakeSubStore{subs: map[types.ID]*subscription.Subscription{
		subID: activeSubscription(subID),
	}}
	sessions := &fakeSessionStore{remaining: 10}
	svc := testService(subs, sessions)

	// Valid request whose window starts in the past and holds no sessions.
	result, err := svc.ValidateFreezeRequest(context.Background(), &FreezeRequest{
		SubscriptionID: subID,
		StartDate:      date("2025-05-20"),
		EndDate:        date("2025-05-26"),
		Reason:         "retroactive freeze documentation",
		RequestedBy:    types.NewID(),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Expected request to be valid, errors: %+v", result.Errors)
	}
	if !hasViolation(result.Warnings, CodePastWindow) {
		t.Errorf("Expected past-window warning, got %+v", result.Warnings)
	}
	if !hasViolation(result.Warnings, CodeEmptyWindow) {
		t.Errorf("Expected empty-window warning, got %+v", result.Warnings)
	}
}

func TestValidateModificationRequest(t *testing.T) {
	subID := types.NewID()

	tests := []struct {
		name      string
		request   modification.Request
		remaining int
		wantValid bool
		wantCode  string
	}{
		{
			name: "valid therapist change",
			request: modification.Request{
				SubscriptionID: subID,
				Type:           modification.TypeTherapistChange,
				Scope:          modification.ScopeFutureOnly,
				Changes:        modification.ProposedChange{NewTherapistID: types.NewID()},
			},
			remaining: 3,
			wantValid: true,
		},
		{
			name: "unknown type",
			request: modification.Request{
				SubscriptionID: subID,
				Type:           "vacation",
				Scope:          modification.ScopeAll,
			},
			wantCode: CodeUnknownType,
		},
		{
			name: "unknown scope",
			request: modification.Request{
				SubscriptionID: subID,
				Type:           modification.TypeTherapistChange,
				Scope:          "some",
				Changes:        modification.ProposedChange{NewTherapistID: types.NewID()},
			},
			remaining: 3,
			wantCode:  CodeUnknownScope,
		},
		{
			name: "therapist change without therapist",
			request: modification.Request{
				SubscriptionID: subID,
				Type:           modification.TypeTherapistChange,
				Scope:          modification.ScopeAll,
			},
			remaining: 3,
			wantCode:  CodeMissingField,
		},
		{
			name: "schedule change with inverted times",
			request: modification.Request{
				SubscriptionID: subID,
				Type:           modification.TypeScheduleChange,
				Scope:          modification.ScopeAll,
				Changes:        modification.ProposedChange{NewStartTime: "11:00", NewEndTime: "10:00"},
			},
			remaining: 3,
			wantCode:  CodeInvalidDateRange,
		},
		{
			name: "future_only with nothing remaining",
			request: modification.Request{
				SubscriptionID: subID,
				Type:           modification.TypeTherapistChange,
				Scope:          modification.ScopeFutureOnly,
				Changes:        modification.ProposedChange{NewTherapistID: types.NewID()},
			},
			remaining: 0,
			wantCode:  CodeNoFutureSessions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &fakeSubStore{subs: map[types.ID]*subscription.Subscription{
				subID: activeSubscription(subID),
			}}
			svc := testService(subs, &fakeSessionStore{remaining: tt.remaining})

			result, err := svc.ValidateModificationRequest(context.Background(), &tt.request)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result.Valid != tt.wantValid {
				t.Errorf("Expected valid=%v, got %v (errors: %+v)", tt.wantValid, result.Valid, result.Errors)
			}
			if tt.wantCode != "" && !hasViolation(result.Errors, tt.wantCode) {
				t.Errorf("Expected violation %s, got %+v", tt.wantCode, result.Errors)
			}
		})
	}
}

func TestValidateModificationRoutesFreezeThroughFreezeRules(t *testing.T) {
	subID := types.NewID()
	subs := &fakeSubStore{subs: map[types.ID]*subscription.Subscription{
		subID: activeSubscription(subID),
	}}
	svc := testService(subs, &fakeSessionStore{remaining: 10, inWindow: []session.ScheduledSession{{ID: types.NewID()}}})

	result, err := svc.ValidateModificationRequest(context.Background(), &modification.Request{
		SubscriptionID: subID,
		Type:           modification.TypeFreeze,
		Scope:          modification.ScopeAll,
		Changes: modification.ProposedChange{
			FreezeStartDate: date("2025-06-05"),
			FreezeEndDate:   date("2025-06-11"),
			Reason:          "bad",
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Valid {
		t.Fatal("Expected freeze rules to reject the short reason")
	}
	if !hasViolation(result.Errors, CodeReasonTooShort) {
		t.Errorf("Expected reason violation, got %+v", result.Errors)
	}
}
