package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"meetpoint/services"
)

type VoteHandler struct {
	votes *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

func (h *VoteHandler) Cast(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	var req struct {
		VenueID string `json:"venue_id"`
		Approve bool   `json:"approve"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.VenueID == "" {
		return apis.NewBadRequestError("venue_id is required", nil)
	}

	sess, err := h.votes.Cast(e.Request.Context(), e.Request.PathValue("code"), pid, req.VenueID, req.Approve)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"session":       sess,
		"phase":         sess.Phase(),
		"matched_venue": sess.MatchedVenue,
	})
}

func (h *VoteHandler) Insights(e *core.RequestEvent) error {
	insights, err := h.votes.Insights(e.Request.Context(), e.Request.PathValue("code"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, insights)
}

func (h *VoteHandler) History(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	records, err := h.votes.History(e.Request.Context(), pid)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"history": records})
}
