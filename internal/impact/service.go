package impact

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amal-center/platform/internal/calendar"
	"github.com/amal-center/platform/internal/modification"
	"github.com/amal-center/platform/internal/notification"
	"github.com/amal-center/platform/internal/notifier"
	"github.com/amal-center/platform/internal/rescheduling"
	"github.com/amal-center/platform/internal/session"
	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/events"
	"github.com/amal-center/platform/internal/shared/metrics"
	"github.com/amal-center/platform/internal/shared/types"
	"github.com/amal-center/platform/internal/subscription"
	"github.com/amal-center/platform/internal/timeline"
	"github.com/amal-center/platform/internal/validation"
)

// Severity scoring weights: type base plus capped session/therapist
// contributions plus disruption percentage.
const (
	sessionWeight    = 0.3
	sessionCap       = 10
	therapistWeight  = 0.4
	therapistCap     = 5
	disruptionWeight = 5.0

	mediumThreshold = 3.0
	highThreshold   = 6.0
)

// SubscriptionStore is the subscription persistence the service depends on.
// ApplyFreeze enforces the no-overlapping-active-freeze rule and the budget
// inside its own transaction and returns the committed end date; RevertFreeze
// reverses exactly one freeze by ID.
type SubscriptionStore interface {
	Get(ctx context.Context, id types.ID) (*subscription.Subscription, error)
	ApplyFreeze(ctx context.Context, freeze *subscription.Freeze) (time.Time, error)
	RevertFreeze(ctx context.Context, freezeID types.ID) error
	RecordModification(ctx context.Context, rec *subscription.ModificationRecord) error
	GetModification(ctx context.Context, id types.ID) (*subscription.ModificationRecord, error)
	MarkRolledBack(ctx context.Context, id types.ID) error
}

// SessionStore is the session persistence the service reads.
type SessionStore interface {
	ListScheduledInWindow(ctx context.Context, subID types.ID, from, to time.Time) ([]session.ScheduledSession, error)
	CountRemaining(ctx context.Context, subID types.ID, after time.Time) (int, error)
}

// Validator revalidates requests on the commit path.
type Validator interface {
	ValidateModificationRequest(ctx context.Context, req *modification.Request) (*validation.Result, error)
}

// Rescheduler is the engine surface the commit path drives.
type Rescheduler interface {
	RescheduleSessionsForFreeze(ctx context.Context, req *rescheduling.Request) (*rescheduling.Result, error)
	ApplyAdjustments(ctx context.Context, subID types.ID, changes []session.Assignment) (*rescheduling.Result, error)
	Rollback(ctx context.Context, subID, token types.ID) (int, error)
}

// Publisher is the event bus surface for committed-modification events.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Broadcaster is the realtime notifier surface.
type Broadcaster interface {
	Broadcast(e notifier.Event)
}

// Dispatcher receives stakeholder notifications outside the transactional
// boundary.
type Dispatcher interface {
	Dispatch(n *notification.Notification)
}

// Billing holds the flat projection parameters.
type Billing struct {
	SessionRate float64
	Currency    string
}

// Service computes impact previews and drives commit/rollback.
type Service struct {
	subs        SubscriptionStore
	sessions    SessionStore
	validator   Validator
	tl          *timeline.Manager
	engine      Rescheduler
	cal         calendar.Calendar
	bus         Publisher
	broadcaster Broadcaster
	dispatcher  Dispatcher
	billing     Billing
	bulkWorkers int
	logger      *zap.Logger
}

// NewService creates an impact analysis service.
func NewService(
	subs SubscriptionStore,
	sessions SessionStore,
	validator Validator,
	tl *timeline.Manager,
	engine Rescheduler,
	cal calendar.Calendar,
	bus Publisher,
	broadcaster Broadcaster,
	dispatcher Dispatcher,
	billing Billing,
	logger *zap.Logger,
) *Service {
	return &Service{
		subs:        subs,
		sessions:    sessions,
		validator:   validator,
		tl:          tl,
		engine:      engine,
		cal:         cal,
		bus:         bus,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		billing:     billing,
		bulkWorkers: 8,
		logger:      logger,
	}
}

// Analyze computes a fresh impact preview for one modification.
func (s *Service) Analyze(ctx context.Context, req *modification.Request) (*Analysis, error) {
	sub, err := s.subs.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyze(ctx, sub, req)
	if err != nil {
		return nil, err
	}
	metrics.RecordImpactAnalysis("single", string(analysis.OverallSeverity))
	return analysis, nil
}

func (s *Service) analyze(ctx context.Context, sub *subscription.Subscription, req *modification.Request) (*Analysis, error) {
	affected, err := s.affectedSessions(ctx, sub, req)
	if err != nil {
		return nil, err
	}

	remaining, err := s.sessions.CountRemaining(ctx, sub.ID, s.cal.Today())
	if err != nil {
		return nil, err
	}

	therapists := map[types.ID]bool{}
	for i := range affected {
		therapists[affected[i].TherapistID] = true
	}

	disruption := 0.0
	if remaining > 0 {
		disruption = float64(len(affected)) / float64(remaining)
	}

	severity := classifySeverity(severityScore(req.Type, len(affected), len(therapists), disruption))
	cost := s.costImplications(req, remaining)

	return &Analysis{
		ModificationID:                   req.ID,
		SubscriptionID:                   sub.ID,
		Type:                             req.Type,
		AffectedSessionCount:             len(affected),
		AffectedTherapistCount:           len(therapists),
		TotalRemainingSessions:           remaining,
		ScheduleDisruptionPercentage:     disruption,
		OverallSeverity:                  severity,
		CostImplications:                 cost,
		StakeholderNotificationsRequired: stakeholders(req.Type, severity, len(therapists), cost.Delta),
		EstimatedAdjustmentTimeMinutes:   estimateMinutes(len(affected), len(therapists), severity),
		AnalyzedAt:                       time.Now().UTC(),
	}, nil
}

// affectedSessions resolves which scheduled sessions a modification touches:
// the freeze window for freezes, the remaining program window otherwise.
func (s *Service) affectedSessions(ctx context.Context, sub *subscription.Subscription, req *modification.Request) ([]session.ScheduledSession, error) {
	if req.Type == modification.TypeFreeze {
		return s.sessions.ListScheduledInWindow(ctx, sub.ID,
			types.DateOnly(req.Changes.FreezeStartDate),
			types.DateOnly(req.Changes.FreezeEndDate),
		)
	}

	from := types.DateOnly(req.EffectiveDate)
	if req.EffectiveDate.IsZero() || req.Scope == modification.ScopeFutureOnly {
		from = s.cal.Today()
	}
	return s.sessions.ListScheduledInWindow(ctx, sub.ID, from, types.DateOnly(sub.EndDate))
}

func (s *Service) costImplications(req *modification.Request, remaining int) CostImplications {
	original := s.billing.SessionRate * float64(remaining)
	adjusted := original
	if req.Type == modification.TypeProgramChange {
		adjusted = s.billing.SessionRate * float64(remaining+req.Changes.SessionsDelta)
	}
	return CostImplications{
		OriginalProjection: original,
		AdjustedProjection: adjusted,
		Delta:              adjusted - original,
		Currency:           s.billing.Currency,
	}
}

func severityScore(t modification.Type, sessions, therapists int, disruption float64) float64 {
	base := 0.0
	switch t {
	case modification.TypeFreeze:
		base = 1
	case modification.TypeScheduleChange, modification.TypeTherapistChange:
		base = 2
	case modification.TypeProgramChange:
		base = 3
	}
	score := base
	score += float64(min(sessions, sessionCap)) * sessionWeight
	score += float64(min(therapists, therapistCap)) * therapistWeight
	score += disruption * disruptionWeight
	return score
}

func classifySeverity(score float64) Severity {
	switch {
	case score < mediumThreshold:
		return SeverityLow
	case score < highThreshold:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

func stakeholders(t modification.Type, severity Severity, therapists int, costDelta float64) []notification.Stakeholder {
	set := []notification.Stakeholder{notification.StakeholderParent}
	if therapists > 0 || t == modification.TypeTherapistChange {
		set = append(set, notification.StakeholderTherapist)
	}
	if costDelta != 0 || severity == SeverityHigh || t == modification.TypeFreeze {
		set = append(set, notification.StakeholderBillingAdmin)
	}
	return set
}

func estimateMinutes(sessions, therapists int, severity Severity) int {
	minutes := sessions*5 + therapists*10
	if severity == SeverityHigh {
		minutes += 30
	}
	return minutes
}

// AnalyzeScenarios analyzes candidate change-sets for one subscription and
// ranks them by a composite of severity and normalized cost (lower is
// better), reporting per-metric bests by request index.
func (s *Service) AnalyzeScenarios(ctx context.Context, subscriptionID types.ID, candidates []modification.Request) (*Comparison, error) {
	if len(candidates) == 0 {
		return nil, errors.BadRequest("at least one scenario is required")
	}

	sub, err := s.subs.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	scenarios := make([]Scenario, len(candidates))
	maxAbsDelta := 0.0
	for i := range candidates {
		req := candidates[i]
		req.SubscriptionID = subscriptionID
		analysis, err := s.analyze(ctx, sub, &req)
		if err != nil {
			return nil, err
		}
		scenarios[i] = Scenario{Index: i, Analysis: analysis}
		maxAbsDelta = math.Max(maxAbsDelta, math.Abs(analysis.CostImplications.Delta))
		metrics.RecordImpactAnalysis("scenario", string(analysis.OverallSeverity))
	}

	cmp := &Comparison{SubscriptionID: subscriptionID, Scenarios: scenarios}
	for i := range scenarios {
		a := scenarios[i].Analysis
		costNorm := 0.0
		if maxAbsDelta > 0 {
			costNorm = math.Abs(a.CostImplications.Delta) / maxAbsDelta
		}
		scenarios[i].Score = float64(a.OverallSeverity.rank()) + costNorm

		if scenarios[i].Score < scenarios[cmp.Recommended].Score {
			cmp.Recommended = i
		}
		if math.Abs(a.CostImplications.Delta) < math.Abs(scenarios[cmp.LowestCost].Analysis.CostImplications.Delta) {
			cmp.LowestCost = i
		}
		if a.ScheduleDisruptionPercentage < scenarios[cmp.LeastDisruptive].Analysis.ScheduleDisruptionPercentage {
			cmp.LeastDisruptive = i
		}
		if a.EstimatedAdjustmentTimeMinutes < scenarios[cmp.Fastest].Analysis.EstimatedAdjustmentTimeMinutes {
			cmp.Fastest = i
		}
	}
	return cmp, nil
}

// AnalyzeBulk analyzes one modification template against many enrollments
// with bounded concurrency. Malformed or missing ids are collected as
// failures and never abort the batch; aggregates cover successes only.
func (s *Service) AnalyzeBulk(ctx context.Context, subscriptionIDs []string, template modification.Request) (*BulkResult, error) {
	type slot struct {
		analysis *Analysis
		failure  *BulkFailure
	}
	slots := make([]slot, len(subscriptionIDs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkWorkers)

	for i, raw := range subscriptionIDs {
		g.Go(func() error {
			id, err := types.ParseID(raw)
			if err != nil {
				mu.Lock()
				slots[i].failure = &BulkFailure{
					SubscriptionID: raw,
					Code:           "MALFORMED_ID",
					Message:        "subscription id is not a valid identifier",
					MessageAr:      "معرف الاشتراك غير صالح",
				}
				mu.Unlock()
				return nil
			}

			req := template
			req.SubscriptionID = id
			analysis, err := s.Analyze(gctx, &req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				code := "ANALYSIS_FAILED"
				if errors.IsNotFound(err) {
					code = "NOT_FOUND"
				}
				slots[i].failure = &BulkFailure{
					SubscriptionID: raw,
					Code:           code,
					Message:        err.Error(),
					MessageAr:      "تعذر تحليل هذا الاشتراك",
				}
				return nil
			}
			slots[i].analysis = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BulkResult{
		Successful: []*Analysis{},
		Failed:     []BulkFailure{},
		Aggregate:  BulkAggregate{HighestSeverity: SeverityLow},
	}
	for _, sl := range slots {
		if sl.failure != nil {
			result.Failed = append(result.Failed, *sl.failure)
			continue
		}
		a := sl.analysis
		result.Successful = append(result.Successful, a)
		result.Aggregate.TotalAffectedSessions += a.AffectedSessionCount
		result.Aggregate.TotalAffectedTherapists += a.AffectedTherapistCount
		result.Aggregate.TotalCostDelta += a.CostImplications.Delta
		if a.OverallSeverity.rank() > result.Aggregate.HighestSeverity.rank() {
			result.Aggregate.HighestSeverity = a.OverallSeverity
		}
	}
	metrics.RecordImpactAnalysis("bulk", string(result.Aggregate.HighestSeverity))
	return result, nil
}

// Implement commits an approved modification: revalidates against current
// state, recomputes the timeline, drives the engine, persists the audit
// record and fans out events. Notification dispatch is fire-and-forget.
func (s *Service) Implement(ctx context.Context, req *modification.Request, adjustments []session.Assignment, approval subscription.ApprovalStatus) (*ImplementResult, error) {
	if approval != subscription.ApprovalApproved {
		return nil, errors.BadRequest("only approved modifications can be implemented")
	}

	vres, err := s.validator.ValidateModificationRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if !vres.Valid {
		return &ImplementResult{Success: false, Validation: vres}, nil
	}

	sub, err := s.subs.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	if req.ID == "" {
		req.ID = types.NewID()
	}

	analysis, err := s.analyze(ctx, sub, req)
	if err != nil {
		return nil, err
	}

	if req.Type == modification.TypeFreeze {
		return s.implementFreeze(ctx, sub, req, analysis, approval)
	}
	return s.implementAdjustments(ctx, sub, req, adjustments, analysis, approval)
}

func (s *Service) implementFreeze(ctx context.Context, sub *subscription.Subscription, req *modification.Request, analysis *Analysis, approval subscription.ApprovalStatus) (*ImplementResult, error) {
	days := req.FreezeDays()
	tl := s.tl.CalculateNewEndDate(sub.ID, sub.EndDate, days, timeline.Options{
		ExcludeHolidays: req.Changes.ExcludeHolidays,
		IncludeWeekends: req.Changes.IncludeWeekends,
		EffectiveDate:   req.Changes.FreezeStartDate,
	})

	freeze := &subscription.Freeze{
		ID:             types.NewID(),
		SubscriptionID: sub.ID,
		StartDate:      types.DateOnly(req.Changes.FreezeStartDate),
		EndDate:        types.DateOnly(req.Changes.FreezeEndDate),
		Days:           days,
		// The full end-date delta, including any holiday roll of the landing
		// date. The store applies it relative to the end date it sees at
		// commit time, so concurrent freezes compose instead of clobbering.
		AdjustmentDays: daysBetween(types.DateOnly(sub.EndDate), tl.NewEndDate),
		Reason:         req.Changes.Reason,
		RequestedBy:    req.RequestedBy,
		Status:         subscription.FreezeStatusActive,
	}
	newEndDate, err := s.subs.ApplyFreeze(ctx, freeze)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.RescheduleSessionsForFreeze(ctx, &rescheduling.Request{
		SubscriptionID:  sub.ID,
		StudentID:       sub.StudentID,
		FreezeStartDate: freeze.StartDate,
		FreezeEndDate:   freeze.EndDate,
		FreezeDays:      days,
		AdjustmentDays:  tl.AdjustmentDays,
	})
	if err != nil {
		// The freeze committed but the reschedule did not; undo this freeze
		// (and only this one) so the caller can retry the whole modification.
		if rerr := s.subs.RevertFreeze(ctx, freeze.ID); rerr != nil {
			s.logger.Error("failed to revert freeze after reschedule failure",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("freeze_id", freeze.ID.String()),
				zap.Error(rerr),
			)
		}
		return nil, err
	}

	changes := req.ChangeMap()
	changes["freeze_id"] = freeze.ID.String()
	changes["days"] = days
	changes["previous_end_date"] = types.FormatDate(sub.EndDate)
	changes["new_end_date"] = types.FormatDate(newEndDate)

	rec := &subscription.ModificationRecord{
		ID:              req.ID,
		SubscriptionID:  sub.ID,
		Type:            string(req.Type),
		Scope:           string(req.Scope),
		EffectiveDate:   freeze.StartDate,
		ProposedChanges: changes,
		RequestedBy:     req.RequestedBy,
		ApprovalStatus:  approval,
		RollbackToken:   res.RollbackToken,
	}
	if err := s.subs.RecordModification(ctx, rec); err != nil {
		return nil, err
	}

	metrics.RecordFreezeCommitted()
	s.fanOutCommit(sub.ID, rec, analysis, res, newEndDate)

	return &ImplementResult{
		Success:        true,
		ModificationID: rec.ID,
		RollbackToken:  res.RollbackToken,
		NewEndDate:     newEndDate,
		Analysis:       analysis,
		Reschedule:     res,
	}, nil
}

func (s *Service) implementAdjustments(ctx context.Context, sub *subscription.Subscription, req *modification.Request, adjustments []session.Assignment, analysis *Analysis, approval subscription.ApprovalStatus) (*ImplementResult, error) {
	res, err := s.engine.ApplyAdjustments(ctx, sub.ID, adjustments)
	if err != nil {
		return nil, err
	}

	rec := &subscription.ModificationRecord{
		ID:              req.ID,
		SubscriptionID:  sub.ID,
		Type:            string(req.Type),
		Scope:           string(req.Scope),
		EffectiveDate:   types.DateOnly(req.EffectiveDate),
		ProposedChanges: req.ChangeMap(),
		RequestedBy:     req.RequestedBy,
		ApprovalStatus:  approval,
		RollbackToken:   res.RollbackToken,
	}
	if err := s.subs.RecordModification(ctx, rec); err != nil {
		return nil, err
	}

	s.fanOutCommit(sub.ID, rec, analysis, res, sub.EndDate)

	return &ImplementResult{
		Success:        true,
		ModificationID: rec.ID,
		RollbackToken:  res.RollbackToken,
		NewEndDate:     sub.EndDate,
		Analysis:       analysis,
		Reschedule:     res,
	}, nil
}

// Rollback reverses a committed modification via its rollback token: restores
// the snapshotted session set, reverts freeze accounting, and stamps the
// audit record.
func (s *Service) Rollback(ctx context.Context, modificationID types.ID) (*RollbackResult, error) {
	rec, err := s.subs.GetModification(ctx, modificationID)
	if err != nil {
		return nil, err
	}
	if rec.RolledBackAt != nil {
		return nil, errors.Conflict("modification already rolled back", "تم التراجع عن هذا التعديل مسبقاً")
	}

	restored, err := s.engine.Rollback(ctx, rec.SubscriptionID, rec.RollbackToken)
	if err != nil {
		// A freeze that displaced no sessions has an empty snapshot; there is
		// nothing to restore but the freeze itself must still be reverted.
		if !errors.IsNotFound(err) {
			return nil, err
		}
		restored = 0
	}

	if rec.Type == string(modification.TypeFreeze) {
		freezeID := types.ID(changeString(rec.ProposedChanges, "freeze_id"))
		if freezeID == "" {
			return nil, errors.BadRequest("modification record has no freeze reference")
		}
		if err := s.subs.RevertFreeze(ctx, freezeID); err != nil {
			return nil, err
		}
	}

	if err := s.subs.MarkRolledBack(ctx, rec.ID); err != nil {
		return nil, err
	}

	metrics.RecordRollback()
	s.fanOutRollback(rec, restored)

	return &RollbackResult{ModificationID: rec.ID, SessionsRestored: restored}, nil
}

// fanOutCommit publishes commit events and stakeholder notifications.
// Fire-and-forget: a failed broadcast never affects the committed change.
func (s *Service) fanOutCommit(subID types.ID, rec *subscription.ModificationRecord, analysis *Analysis, res *rescheduling.Result, newEndDate time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := map[string]any{
			"modification_id": rec.ID.String(),
			"type":            rec.Type,
			"new_end_date":    types.FormatDate(newEndDate),
			"severity":        string(analysis.OverallSeverity),
		}
		if res != nil {
			data["sessions_rescheduled"] = res.SessionsRescheduled
			data["conflicts_detected"] = len(res.ConflictsDetected)
			data["rollback_token"] = res.RollbackToken.String()
		}

		event := events.NewEvent("modification.implemented", "impact", data).
			WithSubscription(subID).
			WithActor(rec.RequestedBy, "staff")
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish commit event", zap.Error(err))
		}

		s.broadcaster.Broadcast(notifier.Event{Type: notifier.EventModificationImplemented, SubscriptionID: subID, Data: data})
		if res != nil && res.SessionsRescheduled > 0 {
			s.broadcaster.Broadcast(notifier.Event{Type: notifier.EventSessionsRescheduled, SubscriptionID: subID, Data: data})
		}
		s.broadcaster.Broadcast(notifier.Event{Type: notifier.EventSubscriptionUpdated, SubscriptionID: subID})
		s.broadcaster.Broadcast(notifier.Event{Type: notifier.EventCacheInvalidated, SubscriptionID: subID})

		for _, n := range buildNotifications(rec, analysis, newEndDate) {
			s.dispatcher.Dispatch(n)
		}
	}()
}

func (s *Service) fanOutRollback(rec *subscription.ModificationRecord, restored int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := map[string]any{
			"modification_id":   rec.ID.String(),
			"sessions_restored": restored,
		}
		event := events.NewEvent("modification.rolled_back", "impact", data).
			WithSubscription(rec.SubscriptionID)
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish rollback event", zap.Error(err))
		}

		s.broadcaster.Broadcast(notifier.Event{Type: notifier.EventModificationRolledBack, SubscriptionID: rec.SubscriptionID, Data: data})
		s.broadcaster.Broadcast(notifier.Event{Type: notifier.EventSubscriptionUpdated, SubscriptionID: rec.SubscriptionID})
		s.broadcaster.Broadcast(notifier.Event{Type: notifier.EventCacheInvalidated, SubscriptionID: rec.SubscriptionID})
	}()
}

// buildNotifications renders bilingual payloads for every required
// stakeholder of a committed modification.
func buildNotifications(rec *subscription.ModificationRecord, analysis *Analysis, newEndDate time.Time) []*notification.Notification {
	subject, subjectAr := subjectFor(modification.Type(rec.Type))
	body := fmt.Sprintf("Subscription %s was modified (%s). New end date: %s.",
		rec.SubscriptionID, rec.Type, types.FormatDate(newEndDate))
	bodyAr := fmt.Sprintf("تم تعديل الاشتراك %s (%s). تاريخ الانتهاء الجديد: %s.",
		rec.SubscriptionID, rec.Type, types.FormatDate(newEndDate))

	out := make([]*notification.Notification, 0, len(analysis.StakeholderNotificationsRequired))
	for _, st := range analysis.StakeholderNotificationsRequired {
		out = append(out, &notification.Notification{
			SubscriptionID: rec.SubscriptionID,
			ModificationID: rec.ID,
			Stakeholder:    st,
			Subject:        subject,
			SubjectAr:      subjectAr,
			Body:           body,
			BodyAr:         bodyAr,
			Data: map[string]any{
				"severity": string(analysis.OverallSeverity),
				"type":     rec.Type,
			},
		})
	}
	return out
}

// daysBetween returns the whole-day delta from one date to another.
func daysBetween(from, to time.Time) int {
	return int(types.DateOnly(to).Sub(types.DateOnly(from)).Hours() / 24)
}

func changeString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func subjectFor(t modification.Type) (string, string) {
	switch t {
	case modification.TypeFreeze:
		return "Subscription freeze applied", "تم تطبيق تجميد الاشتراك"
	case modification.TypeScheduleChange:
		return "Session schedule changed", "تم تغيير جدول الجلسات"
	case modification.TypeTherapistChange:
		return "Therapist assignment changed", "تم تغيير المعالج"
	case modification.TypeProgramChange:
		return "Program terms changed", "تم تغيير شروط البرنامج"
	}
	return "Subscription modified", "تم تعديل الاشتراك"
}
