package api

import (
	"fmt"
	"net/http"
	"time"

	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/domain"
)

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeGoalsRead)
	if !ok {
		return
	}
	goals, err := h.service.ListGoals(r.Context(), actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toGoalViews(goals)})
}

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeGoalsWrite)
	if !ok {
		return
	}
	var req CreateGoalRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	goal, err := h.service.CreateGoal(r.Context(), actor, domain.NewGoal{
		Title:            req.Title,
		Type:             domain.GoalType(req.GoalType),
		ActivityCategory: req.ActivityCategory,
		TargetValue:      req.TargetValue,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalView(*goal))
}

func (h *Handler) deleteGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeGoalsWrite)
	if !ok {
		return
	}
	if err := h.service.DeleteGoal(r.Context(), actor, r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completeGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeGoalsWrite)
	if !ok {
		return
	}
	goal, err := h.service.CompleteGoal(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(*goal))
}

func (h *Handler) goalProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeGoalsRead)
	if !ok {
		return
	}
	now, err := h.localNow(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	items, err := h.service.GoalProgress(r.Context(), actor, now)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toGoalProgressViews(items)})
}

func (h *Handler) weeklyStatistics(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}
	now, err := h.localNow(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	stats, err := h.service.WeeklyStatistics(r.Context(), actor, now)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyStatisticsView(stats))
}

func (h *Handler) insights(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Insights(r.Context(), actor))
}

// localNow returns the current instant in the zone named by the tz query
// parameter. Calendar days are computed in that zone; UTC by default.
func (h *Handler) localNow(r *http.Request) (time.Time, error) {
	name := r.URL.Query().Get("tz")
	if name == "" {
		return h.now().UTC(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unknown time zone %q", domain.ErrValidation, name)
	}
	return h.now().In(loc), nil
}
