package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/persistence"
)

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}
	query, err := parseActivityQuery(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	items, next, err := h.service.ListActivities(r.Context(), actor, query)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      toActivityViews(items),
		NextCursor: persistence.EncodeCursor(next),
	})
}

// parseActivityQuery reads status, from, to, limit and cursor.
func parseActivityQuery(r *http.Request) (domain.ActivityQuery, error) {
	values := r.URL.Query()
	query := domain.ActivityQuery{Status: domain.ReviewStatus(values.Get("status"))}
	if query.Status != "" && !query.Status.Valid() {
		return query, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, query.Status)
	}
	var err error
	if query.From, err = parseTimeParam(values.Get("from")); err != nil {
		return query, err
	}
	if query.To, err = parseTimeParam(values.Get("to")); err != nil {
		return query, err
	}
	if raw := values.Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit <= 0 {
			return query, fmt.Errorf("%w: limit must be a positive integer", domain.ErrValidation)
		}
		query.Limit = limit
	}
	if query.Cursor, err = persistence.DecodeCursor(values.Get("cursor")); err != nil {
		return query, err
	}
	return query, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	if day, err := time.Parse(time.DateOnly, raw); err == nil {
		return day, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an RFC 3339 timestamp or date", domain.ErrValidation, raw)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), actor, r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reviewActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeReviewsWrite)
	if !ok {
		return
	}
	var req ReviewRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	activity, err := h.service.ReviewActivity(r.Context(), actor, r.PathValue("id"), domain.ReviewStatus(req.Status))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) pendingReviews(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeReviewsWrite)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	pending, err := h.service.PendingReviews(r.Context(), actor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	items := make([]PendingReviewView, 0, len(pending))
	for _, p := range pending {
		items = append(items, PendingReviewView{Activity: toActivityView(p.Activity), Username: p.Username})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
