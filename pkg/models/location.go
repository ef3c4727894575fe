package models

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean radius of Earth in kilometers.
const EarthRadiusKm = 6371.0

// Location is a point in decimal degrees on the WGS-84 ellipsoid.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate validates the location bounds
func (l Location) Validate() error {
	var errors ValidationErrors

	errors.AddIf(l.Lat < -90 || l.Lat > 90, "Lat", l.Lat,
		"Lat must be in range [-90,90]")
	errors.AddIf(l.Lng < -180 || l.Lng > 180, "Lng", l.Lng,
		"Lng must be in range [-180,180]")

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// DistanceKm returns the great-circle distance to another location in
// kilometers using the haversine formula.
func (l Location) DistanceKm(other Location) float64 {
	dLat := degToRad(other.Lat - l.Lat)
	dLng := degToRad(other.Lng - l.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(l.Lat))*math.Cos(degToRad(other.Lat))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// ZoneKey buckets the location into a 0.5 degree grid cell key used for
// zone familiarity scoring and preposition clustering.
func (l Location) ZoneKey() string {
	return fmt.Sprintf("zone_%d_%d",
		int(math.Floor(l.Lat/0.5)), int(math.Floor(l.Lng/0.5)))
}

// RoundedKey returns the location rounded to 4 decimal degrees, the
// resolution used for ETA cache keys (~11m).
func (l Location) RoundedKey() string {
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lng)
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
