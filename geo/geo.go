package geo

import (
	"fmt"
	"math"

	"meetpoint/internal/status"
	"meetpoint/models"
)

const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// Centroid averages latitudes and longitudes independently. A flat-earth
// approximation, fine at single-metro scale. The input must be non-empty.
func Centroid(locations []models.Location) (models.Location, error) {
	if len(locations) == 0 {
		return models.Location{}, fmt.Errorf("centroid of empty location set: %w", status.ErrInvalidArgument)
	}

	var sumLat, sumLng float64
	for _, loc := range locations {
		sumLat += loc.Lat
		sumLng += loc.Lng
	}

	n := float64(len(locations))
	return models.Location{
		Lat:  sumLat / n,
		Lng:  sumLng / n,
		Kind: models.LocationManual,
	}, nil
}
