package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"meetpoint/internal/status"
	"meetpoint/models"
)

const participantHeader = "X-Participant-ID"

// participantID reads the caller's identity header. There are no accounts;
// participants hold an opaque id handed out at create/join time.
func participantID(e *core.RequestEvent) (string, error) {
	id := e.Request.Header.Get(participantHeader)
	if id == "" {
		return "", apis.NewBadRequestError("Missing "+participantHeader+" header", nil)
	}
	return id, nil
}

// apiError maps service sentinels onto PocketBase API errors.
func apiError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", err)
	case errors.Is(err, status.ErrForbidden), errors.Is(err, status.ErrPermissionDenied):
		return apis.NewForbiddenError("Not allowed", err)
	case errors.Is(err, status.ErrSessionLocked):
		return apis.NewApiError(http.StatusConflict, "Session is locked", err)
	case errors.Is(err, status.ErrSessionFull):
		return apis.NewApiError(http.StatusConflict, "Session is full", err)
	case errors.Is(err, status.ErrInvalidArgument):
		return apis.NewBadRequestError("Invalid request", err)
	case errors.Is(err, status.ErrUpstreamUnavailable):
		return apis.NewApiError(http.StatusServiceUnavailable, "Venue search is temporarily unavailable", err)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Something went wrong", err)
	}
}

// sessionJSON is the snapshot envelope every mutation returns.
func sessionJSON(e *core.RequestEvent, code int, sess *models.Session) error {
	return e.JSON(code, map[string]any{
		"session": sess,
		"phase":   sess.Phase(),
	})
}
