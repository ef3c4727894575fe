// Package candidates implements per-order candidate rider selection: an
// adaptive-radius geographic filter followed by six hard-constraint
// checks (capacity, vehicle capability, shift end, fatigue, SLA
// reachability, availability).
package candidates

import (
	"time"

	"github.com/fleetloop/lastmile-dispatch/pkg/geo"
	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

const (
	// deliveryServiceMinutes is the fixed handover time at the door.
	deliveryServiceMinutes = 3

	// shiftEndBufferMinutes must remain between an estimated round trip
	// and the rider's shift end.
	shiftEndBufferMinutes = 5
)

// Config holds the tunables for candidate generation.
type Config struct {
	InitialRadiusKm                 float64
	ExpandedRadiusKm                float64
	MaxRadiusKm                     float64
	RadiusExpansionMinutesThreshold float64
	MaxContinuousDrivingMinutes     int
	MaxShiftDrivingMinutes          int
}

// Result is the per-order outcome of candidate generation. FailedChecks
// records, for every geographically eligible rider that was rejected,
// the identifiers of the checks it failed.
type Result struct {
	OrderID           string              `json:"order_id"`
	CandidateRiderIDs []string            `json:"candidate_rider_ids"`
	RadiusUsedKm      float64             `json:"radius_used_km"`
	FailureReason     string              `json:"failure_reason,omitempty"`
	FailedChecks      map[string][]string `json:"failed_checks,omitempty"`
}

// Generator filters the rider population down to feasible candidates for
// a single order.
type Generator struct {
	cfg Config
}

// NewGenerator creates a candidate generator with the given config.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate runs the two-phase filter for one order against the full
// rider population.
func (g *Generator) Generate(order *models.Order, riders map[string]*models.Rider, now time.Time) Result {
	result := Result{
		OrderID:      order.ID,
		FailedChecks: make(map[string][]string),
	}

	locations := make(map[string]models.Location, len(riders))
	for id, rider := range riders {
		locations[id] = rider.Location
	}

	nearby, radius := g.geographicFilter(order, locations, now)
	result.RadiusUsedKm = radius
	if len(nearby) == 0 {
		result.FailureReason = models.FailureNoRidersInRadius
		result.CandidateRiderIDs = []string{}
		return result
	}

	passed := make([]string, 0, len(nearby))
	for _, riderID := range nearby {
		rider := riders[riderID]
		if rider == nil {
			continue
		}
		failed := g.runChecks(order, rider, now)
		if len(failed) == 0 {
			passed = append(passed, riderID)
		} else {
			result.FailedChecks[riderID] = failed
		}
	}

	result.CandidateRiderIDs = passed
	if len(passed) == 0 {
		result.FailureReason = models.FailureAllRidersConstraint
	}
	return result
}

// geographicFilter scans outward through the configured radius ladder.
// Orders close to their SLA deadline skip straight to the maximum radius.
func (g *Generator) geographicFilter(order *models.Order, locations map[string]models.Location, now time.Time) ([]string, float64) {
	pickup := order.Pickup.Location

	if order.SLAMinutesRemaining(now) <= g.cfg.RadiusExpansionMinutesThreshold {
		return geo.WithinRadius(pickup, locations, g.cfg.MaxRadiusKm), g.cfg.MaxRadiusKm
	}

	for _, radius := range []float64{g.cfg.InitialRadiusKm, g.cfg.ExpandedRadiusKm, g.cfg.MaxRadiusKm} {
		if found := geo.WithinRadius(pickup, locations, radius); len(found) > 0 {
			return found, radius
		}
	}
	return nil, g.cfg.MaxRadiusKm
}

// runChecks runs all six hard-constraint checks and returns the
// identifiers of every failed check.
func (g *Generator) runChecks(order *models.Order, rider *models.Rider, now time.Time) []string {
	failed := make([]string, 0)

	if !rider.CanCarry(order.Payload) {
		failed = append(failed, models.CheckCapacityExceeded)
	}
	if !vehicleCompatible(order.Payload, rider.Vehicle) {
		failed = append(failed, models.CheckVehicleIncompatible)
	}
	if !g.shiftAllows(order, rider, now) {
		failed = append(failed, models.CheckShiftEndTime)
	}
	if rider.Shift.ContinuousDrivingMinutes >= g.cfg.MaxContinuousDrivingMinutes ||
		rider.Shift.TotalShiftDrivingMinutes >= g.cfg.MaxShiftDrivingMinutes {
		failed = append(failed, models.CheckFatigueLimitExceeded)
	}
	if !slaReachable(order, rider, now) {
		failed = append(failed, models.CheckSLAInfeasible)
	}
	if !rider.IsAvailable() {
		failed = append(failed, models.CheckRiderUnavailable)
	}

	return failed
}

// vehicleCompatible checks the order's vehicle requirement and payload
// capability demands against the rider's vehicle.
func vehicleCompatible(payload models.Payload, vehicle models.Vehicle) bool {
	switch payload.VehicleRequirement {
	case models.REQUIRE_BIKE, models.REQUIRE_CAR, models.REQUIRE_VAN:
		if string(payload.VehicleRequirement) != string(vehicle.Type) {
			return false
		}
	case models.REQUIRE_REFRIGERATED:
		if !vehicle.HasCapability(models.CAP_COLD_CHAIN) {
			return false
		}
	}

	if payload.Fragile && !vehicle.HasCapability(models.CAP_FRAGILE) {
		return false
	}
	if payload.RequiresColdChain && !vehicle.HasCapability(models.CAP_COLD_CHAIN) {
		return false
	}
	return true
}

// shiftAllows estimates the full round trip (approach, pickup wait, leg
// to delivery, handover) and requires it to finish with a buffer before
// the rider's shift end.
func (g *Generator) shiftAllows(order *models.Order, rider *models.Rider, now time.Time) bool {
	toPickup := geo.TravelTimeMinutes(rider.Location, order.Pickup.Location,
		geo.DefaultSpeedKmh, geo.DefaultTrafficFactor)
	toDelivery := geo.TravelTimeMinutes(order.Pickup.Location, order.Delivery.Location,
		geo.DefaultSpeedKmh, geo.DefaultTrafficFactor)

	tripMinutes := toPickup + order.Pickup.EstimatedPickupWaitMinutes + toDelivery + deliveryServiceMinutes
	finish := now.Add(time.Duration(tripMinutes) * time.Minute)

	return !finish.After(rider.Shift.EndTime.Add(-shiftEndBufferMinutes * time.Minute))
}

// slaReachable checks the optimistic no-traffic trip time against the
// order's SLA deadline.
func slaReachable(order *models.Order, rider *models.Rider, now time.Time) bool {
	toPickup := geo.TravelTimeMinutes(rider.Location, order.Pickup.Location, geo.DefaultSpeedKmh, 1.0)
	toDelivery := geo.TravelTimeMinutes(order.Pickup.Location, order.Delivery.Location, geo.DefaultSpeedKmh, 1.0)

	optimistic := now.Add(time.Duration(toPickup+toDelivery) * time.Minute)
	return !optimistic.After(order.SLADeadline)
}
