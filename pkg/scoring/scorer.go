// Package scoring computes the multi-objective cost of pairing an order
// with a rider. Six factors contribute: travel time, SLA breach risk,
// straight-line distance, batch disruption, workload imbalance, and a
// negative affinity reward. The final cost is the weighted sum.
package scoring

import (
	"math"
	"time"

	"github.com/fleetloop/lastmile-dispatch/pkg/eta"
	"github.com/fleetloop/lastmile-dispatch/pkg/geo"
	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

const (
	// emptyRiderTimeScaleMinutes normalizes the pickup+delivery ETA for
	// riders with no current assignments.
	emptyRiderTimeScaleMinutes = 120.0

	// insertionTimeScaleMinutes normalizes the insertion cost for riders
	// that already carry a route.
	insertionTimeScaleMinutes = 60.0

	// distanceScaleKm normalizes the rider-to-pickup distance.
	distanceScaleKm = 20.0

	// insertionDetourPenaltyMinutes is the fixed charge representing the
	// paired delivery detour when inserting a new pickup into a route.
	insertionDetourPenaltyMinutes = 10.0

	// disruptionPerOrder is the per-assigned-order proxy for the added
	// SLA pressure a new stop places on a loaded rider.
	disruptionPerOrder = 0.2

	workloadKnee = 0.7
)

// Scorer evaluates (order, rider) pairs against the configured weights.
type Scorer struct {
	weights      Weights
	etaModel     *eta.Model
	sigmoidScale float64
}

// NewScorer creates a scorer. sigmoidScale controls the steepness of the
// SLA risk curve; smaller values penalize negative slack harder.
func NewScorer(weights Weights, etaModel *eta.Model, sigmoidScale float64) *Scorer {
	if sigmoidScale <= 0 {
		sigmoidScale = 10
	}
	return &Scorer{
		weights:      weights,
		etaModel:     etaModel,
		sigmoidScale: sigmoidScale,
	}
}

// Weights returns the weight profile in use.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes the weighted cost and per-factor breakdown for
// assigning the order to the rider at the given instant.
func (s *Scorer) Score(order *models.Order, rider *models.Rider, now time.Time) models.CostBreakdown {
	breakdown := models.CostBreakdown{
		TimeCost:            s.timeCost(order, rider, now),
		SLARiskCost:         s.slaRiskCost(order, rider, now),
		DistanceCost:        distanceCost(order, rider),
		BatchDisruptionCost: batchDisruptionCost(rider),
		WorkloadCost:        workloadCost(rider),
		AffinityCost:        affinityCost(order, rider),
	}

	breakdown.Total = s.weights.Time*breakdown.TimeCost +
		s.weights.SLARisk*breakdown.SLARiskCost +
		s.weights.Distance*breakdown.DistanceCost +
		s.weights.BatchDisruption*breakdown.BatchDisruptionCost +
		s.weights.Workload*breakdown.WorkloadCost +
		s.weights.Affinity*breakdown.AffinityCost

	return breakdown
}

// timeCost is the normalized travel-time factor. Riders with no current
// assignments are scored on the pickup+delivery ETA chain; loaded riders
// are scored on the cheapest insertion of the new pickup.
func (s *Scorer) timeCost(order *models.Order, rider *models.Rider, now time.Time) float64 {
	if len(rider.CurrentAssignments) == 0 {
		toPickup := s.etaModel.EstimateETA(rider.Location, order.Pickup.Location, now, rider.ID, "")
		pickupDone := now.Add(time.Duration(toPickup.EstimatedDurationMinutes) * time.Minute)
		toDelivery := s.etaModel.EstimateETA(order.Pickup.Location, order.Delivery.Location, pickupDone, rider.ID, "")

		total := float64(toPickup.EstimatedDurationMinutes + toDelivery.EstimatedDurationMinutes)
		return clamp01(total / emptyRiderTimeScaleMinutes)
	}

	return clamp01(insertionCostMinutes(order, rider) / insertionTimeScaleMinutes)
}

// slaRiskCost maps the estimated slack to a breach probability via a
// sigmoid: zero slack scores 0.5, large positive slack tends to 0,
// large negative slack tends to 1.
func (s *Scorer) slaRiskCost(order *models.Order, rider *models.Rider, now time.Time) float64 {
	est := s.etaModel.EstimateETA(rider.Location, order.Delivery.Location, now, rider.ID, "")
	travel := time.Duration(est.EstimatedDurationMinutes) * time.Minute

	slackMinutes := order.SLADeadline.Sub(now.Add(travel)).Minutes()
	risk := 1.0 / (1.0 + math.Exp(slackMinutes/s.sigmoidScale))
	return clamp01(risk)
}

func distanceCost(order *models.Order, rider *models.Rider) float64 {
	return clamp01(geo.DistanceKm(rider.Location, order.Pickup.Location) / distanceScaleKm)
}

func batchDisruptionCost(rider *models.Rider) float64 {
	if len(rider.CurrentRoute) == 0 {
		return 0
	}
	return clamp01(disruptionPerOrder * float64(len(rider.CurrentAssignments)))
}

// workloadCost is zero below the knee and ramps linearly to 1 as the
// blended load score approaches full capacity.
func workloadCost(rider *models.Rider) float64 {
	if rider.Vehicle.MaxWeightKg <= 0 || rider.Vehicle.MaxItems <= 0 {
		return 0
	}

	loadScore := 0.7*(rider.Load.WeightKg/rider.Vehicle.MaxWeightKg) +
		0.3*(float64(rider.Load.ItemCount)/float64(rider.Vehicle.MaxItems))

	if loadScore < workloadKnee {
		return 0
	}
	return math.Min(1, (loadScore-workloadKnee)/(1-workloadKnee))
}

// affinityCost is a signed reward in [-1, 0] combining zone familiarity,
// historical success rate, and speed multiplier headroom.
func affinityCost(order *models.Order, rider *models.Rider) float64 {
	zone := order.Delivery.Location.ZoneKey()

	affinity := 0.5*rider.ZoneFamiliarity(zone) +
		0.3*rider.Performance.AvgDeliverySuccessRate +
		0.2*math.Max(0, rider.Performance.AvgSpeedMultiplier-0.9)

	return -clamp01(affinity)
}

// insertionCostMinutes finds the cheapest position to splice the new
// pickup into the rider's current route. The triangle detour in km is
// converted to minutes at the default speed, plus a fixed penalty for
// the paired delivery detour.
func insertionCostMinutes(order *models.Order, rider *models.Rider) float64 {
	route := rider.CurrentRoute
	pickup := order.Pickup.Location

	if len(route) < 2 {
		detourKm := geo.DistanceKm(rider.Location, pickup)
		return detourKm/geo.DefaultSpeedKmh*60 + insertionDetourPenaltyMinutes
	}

	best := math.MaxFloat64
	for insertPos := 0; insertPos < len(route); insertPos++ {
		prev := rider.Location
		if insertPos > 0 {
			prev = route[insertPos-1].Location
		}
		next := route[insertPos].Location

		detourKm := geo.DistanceKm(prev, pickup) + geo.DistanceKm(pickup, next) - geo.DistanceKm(prev, next)
		if detourKm < best {
			best = detourKm
		}
	}

	return best/geo.DefaultSpeedKmh*60 + insertionDetourPenaltyMinutes
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
