package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"meetpoint/models"
	"meetpoint/services"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Create(e *core.RequestEvent) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sess, err := h.sessions.Create(e.Request.Context(), req.Name)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"session":        sess,
		"phase":          sess.Phase(),
		"participant_id": sess.HostID,
	})
}

func (h *SessionHandler) Join(e *core.RequestEvent) error {
	code := e.Request.PathValue("code")

	var req struct {
		Name string `json:"name"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	participant, sess, err := h.sessions.Join(e.Request.Context(), code, req.Name)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"session":        sess,
		"phase":          sess.Phase(),
		"participant_id": participant.ID,
	})
}

func (h *SessionHandler) Get(e *core.RequestEvent) error {
	sess, err := h.sessions.Get(e.Request.Context(), e.Request.PathValue("code"))
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}

func (h *SessionHandler) SetLocation(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	var req struct {
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Kind    string  `json:"kind"`
		Address string  `json:"address"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	loc := models.Location{
		Lat:     req.Lat,
		Lng:     req.Lng,
		Kind:    models.LocationKind(req.Kind),
		Address: req.Address,
	}
	if loc.Kind == "" {
		loc.Kind = models.LocationManual
	}

	sess, err := h.sessions.SetLocation(e.Request.Context(), e.Request.PathValue("code"), pid, loc)
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}

func (h *SessionHandler) SetReady(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	sess, err := h.sessions.SetReady(e.Request.Context(), e.Request.PathValue("code"), pid)
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}

func (h *SessionHandler) SetMidpointMode(e *core.RequestEvent) error {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sess, err := h.sessions.SetMidpointMode(e.Request.Context(), e.Request.PathValue("code"), models.MidpointMode(req.Mode))
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}

func (h *SessionHandler) SetLocked(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	var req struct {
		Locked bool `json:"locked"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sess, err := h.sessions.SetLocked(e.Request.Context(), e.Request.PathValue("code"), pid, req.Locked)
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}

func (h *SessionHandler) Leave(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Leave(e.Request.Context(), e.Request.PathValue("code"), pid)
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}

func (h *SessionHandler) Remove(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Remove(
		e.Request.Context(),
		e.Request.PathValue("code"),
		pid,
		e.Request.PathValue("participantId"),
	)
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}

func (h *SessionHandler) End(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	if err := h.sessions.End(e.Request.Context(), e.Request.PathValue("code"), pid); err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"message": "Session ended"})
}

func (h *SessionHandler) Touch(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Touch(e.Request.Context(), e.Request.PathValue("code"), pid)
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}
