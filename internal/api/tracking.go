package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/observability"
	"example.com/smartroutine/internal/recorder"
)

func (h *Handler) trackingStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}
	h.writeTrackingStatus(w, r, h.recorders.For(actor.UserID))
}

func (h *Handler) writeTrackingStatus(w http.ResponseWriter, r *http.Request, rec *recorder.Recorder) {
	status, err := rec.Status(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrackingView(status))
}

func (h *Handler) startTracking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	var req StartTrackingRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	activityType := domain.ActivityType(req.ActivityType)
	var details domain.Details
	if len(req.Details) > 0 && string(req.Details) != "null" {
		parsed, err := domain.ParseDetails(activityType, req.Details)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		details = parsed
	}

	rec := h.recorders.For(actor.UserID)
	// The session outlives this request; the recorder ticker is not bound to it.
	if err := rec.Start(context.WithoutCancel(r.Context()), req.Name, activityType, details); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.logger.Info("tracking started", zap.String("user_id", actor.UserID), zap.String("activity_type", req.ActivityType))
	h.writeTrackingStatus(w, r, rec)
}

func (h *Handler) attachEvidence(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	evidence, err := h.readEvidence(w, r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	rec := h.recorders.For(actor.UserID)
	if err := rec.AttachEvidence(r.Context(), evidence); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeTrackingStatus(w, r, rec)
}

// readEvidence extracts the multipart "file" part, bounded by maxEvidenceBytes.
func (h *Handler) readEvidence(w http.ResponseWriter, r *http.Request) (recorder.Evidence, error) {
	// Leave room for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxEvidenceBytes+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return recorder.Evidence{}, fmt.Errorf("%w: evidence exceeds %d bytes", domain.ErrValidation, h.maxEvidenceBytes)
		}
		return recorder.Evidence{}, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxEvidenceBytes+1))
	if err != nil {
		return recorder.Evidence{}, fmt.Errorf("%w: read evidence: %v", domain.ErrValidation, err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return recorder.Evidence{Name: header.Filename, ContentType: contentType, Data: data}, nil
}

func (h *Handler) finishTracking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	activity, err := h.recorders.For(actor.UserID).Finish(r.Context())
	observability.RecordRecorderFinish(finishOutcome(err))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func finishOutcome(err error) string {
	switch {
	case err == nil:
		return "recorded"
	case errors.Is(err, domain.ErrNotTracking):
		return "not_tracking"
	case errors.Is(err, domain.ErrUpload):
		return "upload_failed"
	case errors.Is(err, domain.ErrValidation):
		return "rejected"
	}
	return "storage_failed"
}
