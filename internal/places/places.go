package places

import (
	"context"
)

// Place is one raw provider record. Optional fields stay zero-valued when
// the provider omits them.
type Place struct {
	ID         string
	Name       string
	Address    string
	Lat        float64
	Lng        float64
	Rating     float64
	PriceLevel int
	PhotoRef   string
	Categories []string
}

// Searcher is the venue-search collaborator boundary.
type Searcher interface {
	SearchNearby(ctx context.Context, lat, lng float64, radiusMeters int, categories []string) ([]Place, error)
}
