package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"meetpoint/models"
	"meetpoint/services"
)

type VenueHandler struct {
	venues   *services.VenueService
	sessions *services.SessionService
}

func NewVenueHandler(venues *services.VenueService, sessions *services.SessionService) *VenueHandler {
	return &VenueHandler{venues: venues, sessions: sessions}
}

func (h *VenueHandler) Refresh(e *core.RequestEvent) error {
	var req struct {
		RadiusMeters  int      `json:"radius_meters"`
		Categories    []string `json:"categories"`
		MinRating     float64  `json:"min_rating"`
		MaxPriceLevel int      `json:"max_price_level"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	filters := models.VenueFilters{
		RadiusMeters:  req.RadiusMeters,
		Categories:    req.Categories,
		MinRating:     req.MinRating,
		MaxPriceLevel: req.MaxPriceLevel,
	}

	sess, err := h.venues.Refresh(e.Request.Context(), e.Request.PathValue("code"), filters)
	if err != nil {
		// The session survives a provider outage; report 503 with
		// whatever (possibly empty) list we ended up with.
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}

func (h *VenueHandler) List(e *core.RequestEvent) error {
	sess, err := h.sessions.Get(e.Request.Context(), e.Request.PathValue("code"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"venues": sess.Venues,
		"phase":  sess.Phase(),
	})
}

func (h *VenueHandler) Block(e *core.RequestEvent) error {
	pid, err := participantID(e)
	if err != nil {
		return err
	}

	sess, err := h.venues.Block(
		e.Request.Context(),
		e.Request.PathValue("code"),
		pid,
		e.Request.PathValue("venueId"),
	)
	if err != nil {
		return apiError(err)
	}
	return sessionJSON(e, http.StatusOK, sess)
}
