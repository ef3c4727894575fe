// Package simulation generates synthetic demand and drives the
// dispatcher through repeated cycles for demos and load studies.
package simulation

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

// DemandPattern selects a demand shape for order generation.
type DemandPattern string

const (
	SteadyDemand    DemandPattern = "steady"
	LunchRushDemand DemandPattern = "lunch_rush"
	SurgeWaveDemand DemandPattern = "surge_wave"
)

// Scenario configures one simulation run.
type Scenario struct {
	Name            string        `json:"name"`
	Pattern         DemandPattern `json:"pattern"`
	CenterLat       float64       `json:"center_lat"`
	CenterLng       float64       `json:"center_lng"`
	SpreadDegrees   float64       `json:"spread_degrees"`
	RiderCount      int           `json:"rider_count"`
	OrdersPerCycle  int           `json:"orders_per_cycle"`
	Cycles          int           `json:"cycles"`
	CycleInterval   time.Duration `json:"cycle_interval"`
	SLAWindowMin    int           `json:"sla_window_minutes"`
	HighPriorityPct float64       `json:"high_priority_pct"`
}

// DefaultScenario is a small steady-state run centered on Stockholm.
func DefaultScenario() Scenario {
	return Scenario{
		Name:            "steady-stockholm",
		Pattern:         SteadyDemand,
		CenterLat:       59.3293,
		CenterLng:       18.0686,
		SpreadDegrees:   0.08,
		RiderCount:      20,
		OrdersPerCycle:  15,
		Cycles:          10,
		CycleInterval:   30 * time.Second,
		SLAWindowMin:    45,
		HighPriorityPct: 0.1,
	}
}

// Generator produces synthetic orders and riders for a scenario.
type Generator struct {
	scenario Scenario
	rng      *rand.Rand

	orderSeq int
}

// NewGenerator creates a demand generator. A nil rng falls back to an
// unseeded source.
func NewGenerator(scenario Scenario, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{scenario: scenario, rng: rng}
}

// Riders builds the initial fleet: a mix of bikes, cars, and vans spread
// around the scenario center, all on shift for the full run.
func (g *Generator) Riders(now time.Time) map[string]*models.Rider {
	riders := make(map[string]*models.Rider, g.scenario.RiderCount)

	for i := 0; i < g.scenario.RiderCount; i++ {
		id := fmt.Sprintf("rider_%03d", i)
		riders[id] = &models.Rider{
			ID:       id,
			Location: g.randomLocation(),
			Status:   models.RIDER_ACTIVE,
			Vehicle:  g.vehicleFor(i),
			Shift: models.Shift{
				StartTime: now.Add(-1 * time.Hour),
				EndTime:   now.Add(8 * time.Hour),
			},
			CurrentAssignments: []string{},
			Performance: models.Performance{
				ZoneFamiliarityScores:  map[string]float64{},
				AvgDeliverySuccessRate: 0.85 + g.rng.Float64()*0.15,
				AvgSpeedMultiplier:     1.0,
			},
		}
	}
	return riders
}

// OrdersForCycle generates the new demand for one cycle, scaled by the
// scenario's pattern at the given cycle index.
func (g *Generator) OrdersForCycle(cycleIndex int, now time.Time) map[string]*models.Order {
	count := g.orderCount(cycleIndex)
	orders := make(map[string]*models.Order, count)

	for i := 0; i < count; i++ {
		g.orderSeq++
		id := fmt.Sprintf("order_%05d", g.orderSeq)

		priority := models.PRIORITY_NORMAL
		if g.rng.Float64() < g.scenario.HighPriorityPct {
			priority = models.PRIORITY_HIGH
		}

		weight := 0.5 + g.rng.Float64()*4.5
		orders[id] = &models.Order{
			ID:        id,
			Status:    models.PENDING_ASSIGNMENT,
			Priority:  priority,
			CreatedAt: now,
			Pickup: models.PickupPoint{
				Location:                   g.randomLocation(),
				EstimatedPickupWaitMinutes: 2 + g.rng.Intn(6),
			},
			Delivery: models.DeliveryPoint{
				Location: g.randomLocation(),
			},
			Payload: models.Payload{
				WeightKg:     weight,
				VolumeLiters: weight * 2,
				ItemCount:    1 + g.rng.Intn(3),
			},
			SLADeadline: now.Add(time.Duration(g.scenario.SLAWindowMin) * time.Minute),
		}
	}
	return orders
}

// orderCount applies the demand pattern to the base rate.
func (g *Generator) orderCount(cycleIndex int) int {
	base := g.scenario.OrdersPerCycle

	switch g.scenario.Pattern {
	case LunchRushDemand:
		// Ramp up over the middle third of the run, then back down.
		third := g.scenario.Cycles / 3
		if third > 0 && cycleIndex >= third && cycleIndex < 2*third {
			return base * 3
		}
		return base
	case SurgeWaveDemand:
		// Alternate calm and overload cycles.
		if cycleIndex%4 == 3 {
			return base * 5
		}
		return base
	default:
		jitter := 0
		if base > 4 {
			jitter = g.rng.Intn(base/2) - base/4
		}
		return base + jitter
	}
}

func (g *Generator) randomLocation() models.Location {
	spread := g.scenario.SpreadDegrees
	return models.Location{
		Lat: g.scenario.CenterLat + (g.rng.Float64()*2-1)*spread,
		Lng: g.scenario.CenterLng + (g.rng.Float64()*2-1)*spread,
	}
}

func (g *Generator) vehicleFor(i int) models.Vehicle {
	switch i % 4 {
	case 0:
		return models.Vehicle{
			Type: models.VEHICLE_CAR, MaxWeightKg: 50, MaxVolumeLiters: 200, MaxItems: 5,
			Capabilities: []models.VehicleCapability{models.CAP_FRAGILE},
		}
	case 1:
		return models.Vehicle{
			Type: models.VEHICLE_VAN, MaxWeightKg: 200, MaxVolumeLiters: 1000, MaxItems: 8,
			Capabilities: []models.VehicleCapability{models.CAP_COLD_CHAIN, models.CAP_FRAGILE},
		}
	default:
		return models.Vehicle{
			Type: models.VEHICLE_BIKE, MaxWeightKg: 10, MaxVolumeLiters: 40, MaxItems: 3,
		}
	}
}
