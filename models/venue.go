package models

type Venue struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Address    string  `json:"address"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Rating     float64 `json:"rating,omitempty"`      // 0 when the provider gave none
	PriceLevel int     `json:"price_level,omitempty"` // 1-4, 0 when unknown
	PhotoRef   string  `json:"photo_ref,omitempty"`
	DistanceKm float64 `json:"distance_km"`
	Rank       int     `json:"rank"`
}

// VenueFilters narrows a venue search around the session midpoint.
type VenueFilters struct {
	RadiusMeters  int      `json:"radius_meters"`
	Categories    []string `json:"categories"`
	MinRating     float64  `json:"min_rating"`
	MaxPriceLevel int      `json:"max_price_level"`
}

func DefaultVenueFilters() VenueFilters {
	return VenueFilters{
		RadiusMeters:  2000,
		Categories:    []string{"restaurant", "cafe", "bar"},
		MinRating:     0,
		MaxPriceLevel: 4,
	}
}
