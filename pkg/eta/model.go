// Package eta implements the travel-time estimation model: pure
// distance-based base time, hour-of-day traffic multipliers, per-rider
// speed multipliers learned online via EWMA, building service times, and
// a bounded estimate cache keyed by rounded endpoints and departure minute.
package eta

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/fleetloop/lastmile-dispatch/pkg/geo"
	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

const (
	// ewmaAlpha is the smoothing parameter for per-rider speed updates.
	ewmaAlpha = 0.1

	// Traffic multipliers by hour-of-day band.
	peakTrafficMultiplier  = 1.5
	nightTrafficMultiplier = 1.1

	minConfidence = 0.75
	maxConfidence = 0.95
)

// Estimate is the output contract of a single ETA estimation.
type Estimate struct {
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	Confidence               float64 `json:"confidence"`
	BaseTimeMinutes          int     `json:"base_time_minutes"`
	TrafficMultiplier        float64 `json:"traffic_multiplier"`
	RiderSpeedMultiplier     float64 `json:"rider_speed_multiplier"`
	ServiceTimeMinutes       int     `json:"service_time_minutes"`
}

// RouteLeg is one leg of a chained route estimate.
type RouteLeg struct {
	From     models.Location `json:"from"`
	To       models.Location `json:"to"`
	Estimate Estimate        `json:"estimate"`
}

// RouteEstimate is the result of chaining pairwise estimates over an
// ordered list of locations.
type RouteEstimate struct {
	TotalDurationMinutes int        `json:"total_duration_minutes"`
	Legs                 []RouteLeg `json:"legs"`
}

// RiderModel tracks the learned speed profile of a single rider. Models
// are created lazily on first use and live for the process lifetime.
type RiderModel struct {
	RiderID            string          `json:"rider_id"`
	SpeedMultiplier    float64         `json:"speed_multiplier"`
	FamiliarZones      map[string]bool `json:"familiar_zones"`
	TrainingDatapoints int             `json:"training_datapoints"`
	LastUpdated        time.Time       `json:"last_updated"`
}

// CacheStats exposes cache sizes for telemetry.
type CacheStats struct {
	Entries     int `json:"entries"`
	RiderModels int `json:"rider_models"`
}

type cacheEntry struct {
	estimate Estimate
	storedAt time.Time
}

// Model owns the ETA cache and the per-rider speed models for one engine
// instance. It is not safe for concurrent use; the engine serializes
// access around cycles.
type Model struct {
	cacheTTL     time.Duration
	serviceTimes map[string]int

	cache       map[string]cacheEntry
	riderModels map[string]*RiderModel
	rng         *rand.Rand
	now         func() time.Time
}

// NewModel creates an ETA model. serviceTimes maps building-type keys
// (restaurant_pickup, apartment_delivery, ...) to service minutes. A nil
// rng falls back to an unseeded source.
func NewModel(cacheTTL time.Duration, serviceTimes map[string]int, rng *rand.Rand) *Model {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if serviceTimes == nil {
		serviceTimes = map[string]int{}
	}
	return &Model{
		cacheTTL:     cacheTTL,
		serviceTimes: serviceTimes,
		cache:        make(map[string]cacheEntry),
		riderModels:  make(map[string]*RiderModel),
		rng:          rng,
		now:          time.Now,
	}
}

// SetClock overrides the model's wall clock. Used by tests and by the
// engine to keep cache timestamps aligned with the cycle instant.
func (m *Model) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// EstimateETA produces a duration estimate for a single trip. riderID and
// buildingType may be empty. Invalid or degenerate inputs still produce a
// well-formed estimate (equal endpoints yield 0 travel minutes plus any
// service time).
func (m *Model) EstimateETA(origin, dest models.Location, departure time.Time, riderID, buildingType string) Estimate {
	key := cacheKey(origin, dest, departure)
	if entry, ok := m.cache[key]; ok {
		if m.now().Sub(entry.storedAt) < m.cacheTTL {
			return entry.estimate
		}
		delete(m.cache, key)
	}

	baseTime := geo.TravelTimeMinutes(origin, dest, geo.DefaultSpeedKmh, 1.0)
	traffic := TrafficMultiplier(departure)

	riderMultiplier := 1.0
	if riderID != "" {
		riderMultiplier = m.riderModel(riderID).SpeedMultiplier
	}

	serviceTime := m.serviceTimes[buildingType]

	travelTime := int(math.Round(float64(baseTime) * traffic * riderMultiplier))

	est := Estimate{
		EstimatedDurationMinutes: travelTime + serviceTime,
		Confidence:               m.confidence(traffic),
		BaseTimeMinutes:          baseTime,
		TrafficMultiplier:        traffic,
		RiderSpeedMultiplier:     riderMultiplier,
		ServiceTimeMinutes:       serviceTime,
	}

	m.cache[key] = cacheEntry{estimate: est, storedAt: m.now()}
	return est
}

// EstimateRouteETA chains pairwise estimates over an ordered location
// list, advancing the departure clock by each leg's duration.
func (m *Model) EstimateRouteETA(locations []models.Location, start time.Time, riderID string) RouteEstimate {
	result := RouteEstimate{Legs: make([]RouteLeg, 0, len(locations))}
	clock := start

	for i := 0; i < len(locations)-1; i++ {
		est := m.EstimateETA(locations[i], locations[i+1], clock, riderID, "")
		result.Legs = append(result.Legs, RouteLeg{
			From:     locations[i],
			To:       locations[i+1],
			Estimate: est,
		})
		result.TotalDurationMinutes += est.EstimatedDurationMinutes
		clock = clock.Add(time.Duration(est.EstimatedDurationMinutes) * time.Minute)
	}

	return result
}

// UpdateRiderModel folds an observed trip into the rider's speed model:
// multiplier <- 0.9*old + 0.1*(estimated/max(actual,1)). The zone is
// added to the rider's familiar set.
func (m *Model) UpdateRiderModel(riderID string, actualMinutes, estimatedMinutes float64, zone string) {
	model := m.riderModel(riderID)

	observed := estimatedMinutes / math.Max(actualMinutes, 1)
	model.SpeedMultiplier = (1-ewmaAlpha)*model.SpeedMultiplier + ewmaAlpha*observed
	if zone != "" {
		model.FamiliarZones[zone] = true
	}
	model.TrainingDatapoints++
	model.LastUpdated = m.now()
}

// RiderSpeedMultiplier returns the current multiplier for a rider,
// lazily initializing the model on first use.
func (m *Model) RiderSpeedMultiplier(riderID string) float64 {
	return m.riderModel(riderID).SpeedMultiplier
}

// ClearExpiredCache sweeps entries older than the cache TTL and returns
// the number removed.
func (m *Model) ClearExpiredCache() int {
	removed := 0
	cutoff := m.now().Add(-m.cacheTTL)
	for key, entry := range m.cache {
		if entry.storedAt.Before(cutoff) {
			delete(m.cache, key)
			removed++
		}
	}
	return removed
}

// GetCacheStats exposes cache and model counts for telemetry.
func (m *Model) GetCacheStats() CacheStats {
	return CacheStats{
		Entries:     len(m.cache),
		RiderModels: len(m.riderModels),
	}
}

func (m *Model) riderModel(riderID string) *RiderModel {
	if model, ok := m.riderModels[riderID]; ok {
		return model
	}
	model := &RiderModel{
		RiderID:         riderID,
		SpeedMultiplier: 0.8 + m.rng.Float64()*0.4,
		FamiliarZones:   make(map[string]bool),
		LastUpdated:     m.now(),
	}
	m.riderModels[riderID] = model
	return model
}

// confidence degrades from the ceiling as the traffic multiplier moves
// away from free flow, with a small jitter. Always within [0.75, 0.95].
func (m *Model) confidence(traffic float64) float64 {
	c := maxConfidence - 0.3*math.Abs(traffic-1.0) - m.rng.Float64()*0.02
	return math.Max(minConfidence, math.Min(maxConfidence, c))
}

// TrafficMultiplier maps the local hour of the departure instant to a
// congestion band: peak 08-10 and 17-19 -> 1.5, night 22-06 -> 1.1,
// otherwise 1.0.
func TrafficMultiplier(departure time.Time) float64 {
	hour := departure.Hour()
	switch {
	case (hour >= 8 && hour < 10) || (hour >= 17 && hour < 19):
		return peakTrafficMultiplier
	case hour >= 22 || hour < 6:
		return nightTrafficMultiplier
	default:
		return 1.0
	}
}

func cacheKey(origin, dest models.Location, departure time.Time) string {
	return fmt.Sprintf("%s|%s|%d",
		origin.RoundedKey(), dest.RoundedKey(), departure.Truncate(time.Minute).Unix())
}
