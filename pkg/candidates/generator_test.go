package candidates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

func testConfig() Config {
	return Config{
		InitialRadiusKm:                 5,
		ExpandedRadiusKm:                10,
		MaxRadiusKm:                     20,
		RadiusExpansionMinutesThreshold: 20,
		MaxContinuousDrivingMinutes:     120,
		MaxShiftDrivingMinutes:          480,
	}
}

func bikeRider(id string, loc models.Location, now time.Time) *models.Rider {
	return &models.Rider{
		ID:       id,
		Status:   models.RIDER_ACTIVE,
		Location: loc,
		Vehicle: models.Vehicle{
			Type:            models.VEHICLE_BIKE,
			MaxWeightKg:     5,
			MaxVolumeLiters: 40,
			MaxItems:        3,
		},
		Shift: models.Shift{
			StartTime: now.Add(-2 * time.Hour),
			EndTime:   now.Add(6 * time.Hour),
		},
		CurrentAssignments: []string{},
	}
}

func testOrder(now time.Time) *models.Order {
	return &models.Order{
		ID:          "order_1",
		Status:      models.PENDING_ASSIGNMENT,
		Priority:    models.PRIORITY_NORMAL,
		SLADeadline: now.Add(60 * time.Minute),
		Pickup: models.PickupPoint{
			Location:                   models.Location{Lat: 12.9716, Lng: 77.5946},
			EstimatedPickupWaitMinutes: 3,
		},
		Delivery: models.DeliveryPoint{
			Location: models.Location{Lat: 12.9750, Lng: 77.6010},
		},
		Payload: models.Payload{WeightKg: 1, VolumeLiters: 2, ItemCount: 1},
	}
}

func TestGenerate_NearbyRiderPasses(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()
	order := testOrder(now)

	riders := map[string]*models.Rider{
		"r1": bikeRider("r1", models.Location{Lat: 12.9720, Lng: 77.5910}, now),
	}

	result := g.Generate(order, riders, now)

	assert.Equal(t, []string{"r1"}, result.CandidateRiderIDs)
	assert.Empty(t, result.FailureReason)
	assert.Equal(t, 5.0, result.RadiusUsedKm)
}

func TestGenerate_NoRidersInRadius(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()
	order := testOrder(now)

	riders := map[string]*models.Rider{
		"far": bikeRider("far", models.Location{Lat: 14.5, Lng: 79.0}, now),
	}

	result := g.Generate(order, riders, now)

	assert.Empty(t, result.CandidateRiderIDs)
	assert.Equal(t, models.FailureNoRidersInRadius, result.FailureReason)
}

func TestGenerate_RadiusLadderExpands(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()
	order := testOrder(now)

	// Roughly 8 km north of the pickup: outside 5 km, inside 10 km.
	riders := map[string]*models.Rider{
		"mid": bikeRider("mid", models.Location{Lat: 13.0436, Lng: 77.5946}, now),
	}

	result := g.Generate(order, riders, now)

	assert.Equal(t, []string{"mid"}, result.CandidateRiderIDs)
	assert.Equal(t, 10.0, result.RadiusUsedKm)
}

func TestGenerate_TightSLASkipsToMaxRadius(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()

	order := testOrder(now)
	order.SLADeadline = now.Add(19 * time.Minute)

	riders := map[string]*models.Rider{
		"near": bikeRider("near", models.Location{Lat: 12.9720, Lng: 77.5910}, now),
	}

	result := g.Generate(order, riders, now)
	assert.Equal(t, 20.0, result.RadiusUsedKm)
}

func TestGenerate_SLAExactlyAtThresholdExpands(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()

	// Slack exactly at the threshold already takes the max radius; the
	// ladder is only walked with slack strictly above it.
	order := testOrder(now)
	order.SLADeadline = now.Add(20 * time.Minute)

	riders := map[string]*models.Rider{
		"near": bikeRider("near", models.Location{Lat: 12.9720, Lng: 77.5910}, now),
	}

	result := g.Generate(order, riders, now)
	assert.Equal(t, 20.0, result.RadiusUsedKm)
}

func TestGenerate_SLAAboveThresholdWalksLadder(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()

	order := testOrder(now)
	order.SLADeadline = now.Add(20*time.Minute + time.Second)

	riders := map[string]*models.Rider{
		"near": bikeRider("near", models.Location{Lat: 12.9720, Lng: 77.5910}, now),
	}

	result := g.Generate(order, riders, now)
	assert.Equal(t, 5.0, result.RadiusUsedKm)
}

func TestGenerate_HeavyPayloadFailsAllBikes(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()

	order := testOrder(now)
	order.Payload = models.Payload{WeightKg: 1000, VolumeLiters: 10, ItemCount: 1}

	riders := map[string]*models.Rider{}
	for _, id := range []string{"b1", "b2", "b3"} {
		riders[id] = bikeRider(id, models.Location{Lat: 12.9720, Lng: 77.5910}, now)
	}

	result := g.Generate(order, riders, now)

	assert.Empty(t, result.CandidateRiderIDs)
	assert.Equal(t, models.FailureAllRidersConstraint, result.FailureReason)
	for _, id := range []string{"b1", "b2", "b3"} {
		assert.Contains(t, result.FailedChecks[id], models.CheckCapacityExceeded)
	}
}

func TestGenerate_VehicleRequirementEnforced(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()

	order := testOrder(now)
	order.Payload.VehicleRequirement = models.REQUIRE_VAN

	riders := map[string]*models.Rider{
		"bike": bikeRider("bike", models.Location{Lat: 12.9720, Lng: 77.5910}, now),
	}

	result := g.Generate(order, riders, now)
	assert.Contains(t, result.FailedChecks["bike"], models.CheckVehicleIncompatible)
}

func TestGenerate_RefrigeratedNeedsColdChain(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()

	order := testOrder(now)
	order.Payload.VehicleRequirement = models.REQUIRE_REFRIGERATED

	plain := bikeRider("plain", models.Location{Lat: 12.9720, Lng: 77.5910}, now)
	cold := bikeRider("cold", models.Location{Lat: 12.9721, Lng: 77.5912}, now)
	cold.Vehicle.Capabilities = []models.VehicleCapability{models.CAP_COLD_CHAIN}

	result := g.Generate(order, map[string]*models.Rider{"plain": plain, "cold": cold}, now)

	assert.Contains(t, result.CandidateRiderIDs, "cold")
	assert.Contains(t, result.FailedChecks["plain"], models.CheckVehicleIncompatible)
}

func TestGenerate_FatigueBoundary(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()
	order := testOrder(now)

	atLimit := bikeRider("at_limit", models.Location{Lat: 12.9720, Lng: 77.5910}, now)
	atLimit.Shift.ContinuousDrivingMinutes = 120

	underLimit := bikeRider("under_limit", models.Location{Lat: 12.9721, Lng: 77.5912}, now)
	underLimit.Shift.ContinuousDrivingMinutes = 119

	result := g.Generate(order, map[string]*models.Rider{"at_limit": atLimit, "under_limit": underLimit}, now)

	assert.Contains(t, result.FailedChecks["at_limit"], models.CheckFatigueLimitExceeded)
	assert.Contains(t, result.CandidateRiderIDs, "under_limit")
}

func TestGenerate_ShiftEndRejects(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()
	order := testOrder(now)

	ending := bikeRider("ending", models.Location{Lat: 12.9720, Lng: 77.5910}, now)
	ending.Shift.EndTime = now.Add(2 * time.Minute)

	result := g.Generate(order, map[string]*models.Rider{"ending": ending}, now)
	assert.Contains(t, result.FailedChecks["ending"], models.CheckShiftEndTime)
}

func TestGenerate_SLAUnreachableRejects(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()

	order := testOrder(now)
	// Deadline arrives before any rider could plausibly finish the trip.
	order.SLADeadline = now.Add(1 * time.Minute)

	// 15 km away: geographically eligible at max radius but hopeless.
	rider := bikeRider("r1", models.Location{Lat: 13.105, Lng: 77.5946}, now)

	result := g.Generate(order, map[string]*models.Rider{"r1": rider}, now)
	assert.Contains(t, result.FailedChecks["r1"], models.CheckSLAInfeasible)
}

func TestGenerate_OfflineRiderRejected(t *testing.T) {
	g := NewGenerator(testConfig())
	now := time.Now()
	order := testOrder(now)

	offline := bikeRider("offline", models.Location{Lat: 12.9720, Lng: 77.5910}, now)
	offline.Status = models.RIDER_OFFLINE

	result := g.Generate(order, map[string]*models.Rider{"offline": offline}, now)

	require.Empty(t, result.CandidateRiderIDs)
	assert.Contains(t, result.FailedChecks["offline"], models.CheckRiderUnavailable)
}
