// Package geo provides the geographic primitives used across the
// dispatcher: great-circle distance, constant-speed travel-time
// estimation, and radius scans over rider populations.
//
// All distances use the haversine formula on WGS-84 coordinates. Travel
// time assumes a constant average speed; the ETA model layers traffic and
// per-rider multipliers on top.
package geo

import (
	"math"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

const (
	// DefaultSpeedKmh is the assumed average city riding speed.
	DefaultSpeedKmh = 25.0

	// DefaultTrafficFactor is the baseline congestion multiplier applied
	// when no live traffic signal is available.
	DefaultTrafficFactor = 1.2
)

// DistanceKm returns the great-circle distance between two points in
// kilometers.
func DistanceKm(a, b models.Location) float64 {
	return a.DistanceKm(b)
}

// TravelTimeMinutes estimates travel time between two points in whole
// minutes at the given average speed and traffic factor. Zero-distance
// inputs yield exactly 0 minutes.
func TravelTimeMinutes(origin, dest models.Location, speedKmh, trafficFactor float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	if trafficFactor <= 0 {
		trafficFactor = DefaultTrafficFactor
	}

	dist := DistanceKm(origin, dest)
	if dist == 0 {
		return 0
	}

	minutes := dist / speedKmh * 60.0 * trafficFactor
	return int(math.Round(minutes))
}

// WithinRadius returns the subset of ids whose location lies within
// radiusKm of the target.
func WithinRadius(target models.Location, locations map[string]models.Location, radiusKm float64) []string {
	inside := make([]string, 0)
	for id, loc := range locations {
		if DistanceKm(target, loc) <= radiusKm {
			inside = append(inside, id)
		}
	}
	return inside
}

// RouteDistanceKm returns the total distance of an ordered sequence of
// points in kilometers.
func RouteDistanceKm(points []models.Location) float64 {
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		total += DistanceKm(points[i], points[i+1])
	}
	return total
}
