package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"meetpoint/internal/geocode"
)

type GeocodeHandler struct {
	geocoder geocode.Geocoder
}

func NewGeocodeHandler(geocoder geocode.Geocoder) *GeocodeHandler {
	return &GeocodeHandler{geocoder: geocoder}
}

// Resolve handles both directions: an address resolves to coordinates, a
// lat/lng pair resolves to an address.
func (h *GeocodeHandler) Resolve(e *core.RequestEvent) error {
	var req struct {
		Address string   `json:"address"`
		Lat     *float64 `json:"lat"`
		Lng     *float64 `json:"lng"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	switch {
	case req.Address != "":
		loc, err := h.geocoder.Forward(e.Request.Context(), req.Address)
		if err != nil {
			return apiError(err)
		}
		if loc == nil {
			return apis.NewNotFoundError("Address not found", nil)
		}
		return e.JSON(http.StatusOK, map[string]any{"location": loc})
	case req.Lat != nil && req.Lng != nil:
		address, err := h.geocoder.Reverse(e.Request.Context(), *req.Lat, *req.Lng)
		if err != nil {
			return apiError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{"address": address})
	default:
		return apis.NewBadRequestError("Provide an address or a lat/lng pair", nil)
	}
}
