// Package api exposes the modification pipeline over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amal-center/platform/internal/impact"
	"github.com/amal-center/platform/internal/modification"
	"github.com/amal-center/platform/internal/notifier"
	"github.com/amal-center/platform/internal/rescheduling"
	"github.com/amal-center/platform/internal/session"
	"github.com/amal-center/platform/internal/shared/auth"
	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/types"
	"github.com/amal-center/platform/internal/subscription"
	"github.com/amal-center/platform/internal/timeline"
	"github.com/amal-center/platform/internal/validation"
)

// Handler provides HTTP handlers for the modification pipeline
type Handler struct {
	validator *validation.Service
	tl        *timeline.Manager
	engine    *rescheduling.Engine
	impact    *impact.Service
	subs      *subscription.Repository
	sessions  *session.Repository
	notifier  *notifier.Notifier
}

// NewHandler creates a new modification handler
func NewHandler(
	validator *validation.Service,
	tl *timeline.Manager,
	engine *rescheduling.Engine,
	impactSvc *impact.Service,
	subs *subscription.Repository,
	sessions *session.Repository,
	rt *notifier.Notifier,
) *Handler {
	return &Handler{
		validator: validator,
		tl:        tl,
		engine:    engine,
		impact:    impactSvc,
		subs:      subs,
		sessions:  sessions,
		notifier:  rt,
	}
}

// Routes registers the modification pipeline routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/freezes", func(r chi.Router) {
		r.Post("/validate", h.ValidateFreeze)
		r.Post("/reschedule", h.RescheduleForFreeze)
	})

	r.Post("/timeline/calculate", h.CalculateTimeline)

	r.Route("/modifications", func(r chi.Router) {
		r.Post("/validate", h.ValidateModification)
		r.Post("/implement", h.Implement)

		r.Route("/{modificationID}", func(r chi.Router) {
			r.Get("/", h.GetModification)
			r.Post("/rollback", h.Rollback)
		})
	})

	r.Route("/impact", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
		r.Post("/scenarios", h.AnalyzeScenarios)
		r.Post("/bulk", h.AnalyzeBulk)
	})

	r.Route("/subscriptions/{subscriptionID}", func(r chi.Router) {
		r.Get("/", h.GetSubscription)
		r.Get("/sessions", h.ListSessions)
		r.Get("/modifications", h.ListModifications)
		r.Get("/events", h.StreamEvents)
	})

	return r
}

// ValidateFreeze checks a freeze proposal without mutating anything
func (h *Handler) ValidateFreeze(w http.ResponseWriter, r *http.Request) {
	var req validation.FreezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = auth.RequesterID(r.Context())
	}

	result, err := h.validator.ValidateFreezeRequest(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

// ValidateModification checks a non-freeze modification proposal
func (h *Handler) ValidateModification(w http.ResponseWriter, r *http.Request) {
	var req modification.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = auth.RequesterID(r.Context())
	}

	result, err := h.validator.ValidateModificationRequest(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

type timelineRequest struct {
	SubscriptionID  types.ID   `json:"subscription_id"`
	FreezeDays      int        `json:"freeze_days"`
	ExcludeHolidays bool       `json:"exclude_holidays"`
	IncludeWeekends bool       `json:"include_weekends"`
	EffectiveDate   *time.Time `json:"effective_date,omitempty"`
}

// CalculateTimeline previews the extended end date for a freeze
func (h *Handler) CalculateTimeline(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.BadRequest("invalid request body"))
		return
	}

	sub, err := h.subs.Get(r.Context(), req.SubscriptionID)
	if err != nil {
		respondError(w, err)
		return
	}

	opts := timeline.Options{
		ExcludeHolidays: req.ExcludeHolidays,
		IncludeWeekends: req.IncludeWeekends,
	}
	if req.EffectiveDate != nil {
		opts.EffectiveDate = *req.EffectiveDate
	}

	result := h.tl.CalculateNewEndDate(sub.ID, sub.EndDate, req.FreezeDays, opts)
	respond(w, http.StatusOK, result)
}

// RescheduleForFreeze runs the engine directly for a validated freeze window
func (h *Handler) RescheduleForFreeze(w http.ResponseWriter, r *http.Request) {
	var req rescheduling.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.BadRequest("invalid request body"))
		return
	}

	result, err := h.engine.RescheduleSessionsForFreeze(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

// Analyze previews the impact of one modification
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req modification.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.BadRequest("invalid request body"))
		return
	}

	analysis, err := h.impact.Analyze(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, analysis)
}

type scenariosRequest struct {
	SubscriptionID types.ID               `json:"subscription_id"`
	Scenarios      []modification.Request `json:"scenarios"`
}

// AnalyzeScenarios compares candidate change-sets for one subscription
func (h *Handler) AnalyzeScenarios(w http.ResponseWriter, r *http.Request) {
	var req scenariosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.BadRequest("invalid request body"))
		return
	}

	comparison, err := h.impact.AnalyzeScenarios(r.Context(), req.SubscriptionID, req.Scenarios)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, comparison)
}

type bulkRequest struct {
	SubscriptionIDs []string             `json:"subscription_ids"`
	Modification    modification.Request `json:"modification"`
}

// AnalyzeBulk analyzes one modification against many enrollments
func (h *Handler) AnalyzeBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.BadRequest("invalid request body"))
		return
	}
	if len(req.SubscriptionIDs) == 0 {
		respondError(w, errors.BadRequest("subscription_ids is required"))
		return
	}

	result, err := h.impact.AnalyzeBulk(r.Context(), req.SubscriptionIDs, req.Modification)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

type implementRequest struct {
	Request        modification.Request        `json:"request"`
	Adjustments    []session.Assignment        `json:"adjustments,omitempty"`
	ApprovalStatus subscription.ApprovalStatus `json:"approval_status"`
}

// Implement commits an approved modification
func (h *Handler) Implement(w http.ResponseWriter, r *http.Request) {
	var req implementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Request.RequestedBy == "" {
		req.Request.RequestedBy = auth.RequesterID(r.Context())
	}

	result, err := h.impact.Implement(r.Context(), &req.Request, req.Adjustments, req.ApprovalStatus)
	if err != nil {
		respondError(w, err)
		return
	}
	if !result.Success {
		respond(w, http.StatusUnprocessableEntity, result)
		return
	}
	respond(w, http.StatusOK, result)
}

// Rollback reverses a committed modification
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "modificationID"))
	if err != nil {
		respondError(w, errors.BadRequest("invalid modification ID"))
		return
	}

	result, err := h.impact.Rollback(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

// GetModification returns a modification audit record
func (h *Handler) GetModification(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "modificationID"))
	if err != nil {
		respondError(w, errors.BadRequest("invalid modification ID"))
		return
	}

	rec, err := h.subs.GetModification(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, rec)
}

// GetSubscription returns a subscription
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, errors.BadRequest("invalid subscription ID"))
		return
	}

	sub, err := h.subs.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, sub)
}

// ListSessions lists a subscription's sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, errors.BadRequest("invalid subscription ID"))
		return
	}

	sessions, err := h.sessions.ListBySubscription(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// ListModifications lists a subscription's audit trail
func (h *Handler) ListModifications(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, errors.BadRequest("invalid subscription ID"))
		return
	}

	records, err := h.subs.ListModifications(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"modifications": records,
		"total":         len(records),
	})
}

// StreamEvents exposes a subscription's realtime events over SSE
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, errors.BadRequest("invalid subscription ID"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, errors.Internal(fmt.Errorf("streaming unsupported")))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	eventCh := make(chan notifier.Event, 64)
	done := make(chan struct{})
	unsubscribe := h.notifier.Subscribe(id, func(e notifier.Event) {
		select {
		case eventCh <- e:
		case <-done:
		}
	})
	defer func() {
		close(done)
		unsubscribe()
	}()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case e := <-eventCh:
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			flusher.Flush()
		}
	}
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func respondError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error": map[string]any{
				"code":       appErr.Code,
				"message":    appErr.Message,
				"message_ar": appErr.MessageAr,
				"details":    appErr.Details,
			},
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]any{"code": "INTERNAL_ERROR", "message": "internal server error"},
	})
}
