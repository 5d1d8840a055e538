package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/live"
)

// stream serves live snapshots of a collection as server-sent events.
// Admins may pass scope=all on activities to follow every user's records.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	collection, err := live.ParseCollection(r.PathValue("collection"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	scope := auth.ScopeActivitiesRead
	if collection == live.CollectionGoals {
		scope = auth.ScopeGoalsRead
	}
	actor, ok := h.authorize(w, r, scope)
	if !ok {
		return
	}

	filter := live.Filter{
		Collection: collection,
		UserID:     actor.UserID,
		Status:     domain.ReviewStatus(r.URL.Query().Get("status")),
	}
	if r.URL.Query().Get("scope") == "all" {
		if collection != live.CollectionActivities || !actor.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "only admins may follow all users' activities")
			return
		}
		filter.UserID = ""
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "server_error", "streaming is not supported")
		return
	}
	snapshots, err := h.hub.Subscribe(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, open := <-snapshots:
			if !open {
				return
			}
			if err := writeSnapshot(w, snap); err != nil {
				h.logger.Debug("stream closed", zap.String("user_id", actor.UserID), zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeSnapshot(w http.ResponseWriter, snap live.Snapshot) error {
	view := SnapshotView{Collection: string(snap.Collection), At: snap.At}
	switch snap.Collection {
	case live.CollectionGoals:
		view.Goals = toGoalViews(snap.Goals)
	default:
		view.Activities = toActivityViews(snap.Activities)
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
	return err
}
