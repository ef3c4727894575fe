package surge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
	"github.com/fleetloop/lastmile-dispatch/pkg/scoring"
)

func testHandler() *Handler {
	return NewHandler(Config{
		SoftRatio:             1.2,
		HardRatio:             1.5,
		CrisisRatio:           2.0,
		BatchSizeIncrement:    1,
		RadiusExpansionFactor: 1.5,
	})
}

func TestDetect_LevelBoundaries(t *testing.T) {
	h := testHandler()

	// 20 riders with maxItems=5 gives availableCapacity=100.
	cases := []struct {
		pending int
		level   models.SurgeLevel
	}{
		{50, models.SURGE_NORMAL},
		{150, models.SURGE_SOFT},
		{175, models.SURGE_HARD},
		{250, models.SURGE_CRISIS},
	}

	for _, tc := range cases {
		state := h.Detect(tc.pending, 20, 5)
		assert.Equal(t, tc.level, state.Level, "pending=%d", tc.pending)
		assert.Equal(t, 100, state.AvailableCapacity)
		assert.InDelta(t, float64(tc.pending)/100, state.DemandSupplyRatio, 1e-9)
	}
}

func TestDetect_ExactThresholdsEscalate(t *testing.T) {
	h := testHandler()

	assert.Equal(t, models.SURGE_SOFT, h.Detect(120, 20, 5).Level)
	assert.Equal(t, models.SURGE_HARD, h.Detect(150, 20, 5).Level)
	assert.Equal(t, models.SURGE_CRISIS, h.Detect(200, 20, 5).Level)
}

func TestDetect_ZeroCapacityUsesFloorOfOne(t *testing.T) {
	h := testHandler()
	state := h.Detect(10, 0, 0)

	assert.Equal(t, models.SURGE_CRISIS, state.Level)
	assert.InDelta(t, 10.0, state.DemandSupplyRatio, 1e-9)
}

func TestDetect_ActionTokens(t *testing.T) {
	h := testHandler()

	assert.Empty(t, h.Detect(50, 20, 5).RecommendedActions)

	soft := h.Detect(130, 20, 5)
	assert.Contains(t, soft.RecommendedActions, models.ActionIncreaseBatchSizesBy1)
	assert.Contains(t, soft.RecommendedActions, models.ActionExpandCandidateRadius50)
	assert.Contains(t, soft.RecommendedActions, models.ActionReduceFairnessWeight)

	hard := h.Detect(175, 20, 5)
	assert.Contains(t, hard.RecommendedActions, models.ActionEnablePrepositioning)
	assert.Contains(t, hard.RecommendedActions, models.ActionHoldSLAOrders)

	crisis := h.Detect(250, 20, 5)
	assert.Contains(t, crisis.RecommendedActions, models.ActionActivateEmergencyProto)
	assert.Contains(t, crisis.RecommendedActions, models.ActionRequestAdditionalSupply)
}

func TestApply_NormalIsNoop(t *testing.T) {
	h := testHandler()
	weights := scoring.DefaultWeights()

	adj := h.Apply(models.SURGE_NORMAL, weights, nil, nil, time.Now())

	assert.Equal(t, weights, adj.Weights)
	assert.Equal(t, 0, adj.BatchSizeDelta)
	assert.Equal(t, 1.0, adj.RadiusMultiplier)
	assert.False(t, adj.UseGreedy)
	assert.Empty(t, adj.HeldOrderIDs)
}

func TestApply_SoftSurgeAdjustments(t *testing.T) {
	h := testHandler()
	weights := scoring.DefaultWeights()

	adj := h.Apply(models.SURGE_SOFT, weights, nil, nil, time.Now())

	assert.InDelta(t, weights.Workload*0.5, adj.Weights.Workload, 1e-9)
	assert.InDelta(t, weights.SLARisk*1.2, adj.Weights.SLARisk, 1e-9)
	assert.Equal(t, 1, adj.BatchSizeDelta)
	assert.InDelta(t, 1.5, adj.RadiusMultiplier, 1e-9)
}

func TestApply_HardSurgeHoldsAndPrepositions(t *testing.T) {
	h := testHandler()
	now := time.Now()

	orders := []*models.Order{
		{
			ID:          "urgent",
			Priority:    models.PRIORITY_NORMAL,
			SLADeadline: now.Add(10 * time.Minute),
			Pickup:      models.PickupPoint{Location: models.Location{Lat: 12.97, Lng: 77.59}},
		},
		{
			ID:          "relaxed",
			Priority:    models.PRIORITY_NORMAL,
			SLADeadline: now.Add(2 * time.Hour),
			Pickup:      models.PickupPoint{Location: models.Location{Lat: 12.98, Lng: 77.60}},
		},
		{
			ID:          "high",
			Priority:    models.PRIORITY_HIGH,
			SLADeadline: now.Add(3 * time.Hour),
			Pickup:      models.PickupPoint{Location: models.Location{Lat: 12.99, Lng: 77.61}},
		},
	}
	riders := map[string]*models.Rider{
		"idle": {ID: "idle", Status: models.RIDER_ACTIVE, CurrentAssignments: []string{}},
		"busy": {ID: "busy", Status: models.RIDER_ON_DELIVERY, CurrentAssignments: []string{"x"}},
	}

	adj := h.Apply(models.SURGE_HARD, scoring.DefaultWeights(), orders, riders, now)

	assert.Equal(t, 0.0, adj.Weights.Workload)
	assert.InDelta(t, 0.5, adj.Weights.SLARisk, 1e-9)
	assert.InDelta(t, 0.3, adj.Weights.Time, 1e-9)
	assert.InDelta(t, 0.2, adj.Weights.Distance, 1e-9)
	assert.Equal(t, 2, adj.BatchSizeDelta)
	assert.InDelta(t, 2.25, adj.RadiusMultiplier, 1e-9)

	// Only the relaxed normal order has >30 min of headroom.
	assert.Equal(t, []string{"relaxed"}, adj.HeldOrderIDs)

	require.Len(t, adj.PrepositionTargets, 1)
	assert.Equal(t, "idle", adj.PrepositionTargets[0].RiderID)
	assert.Equal(t, 3, adj.PrepositionTargets[0].Demand)
}

func TestApply_CrisisForcesGreedy(t *testing.T) {
	h := testHandler()
	adj := h.Apply(models.SURGE_CRISIS, scoring.DefaultWeights(), nil, nil, time.Now())

	assert.True(t, adj.UseGreedy)
	assert.Equal(t, scoring.DefaultWeights(), adj.Weights)
}

func TestPrepositionTargets_PairsTopClustersWithIdleRiders(t *testing.T) {
	h := testHandler()

	// Two pickups share a half-degree cell, one sits far away.
	orders := []*models.Order{
		{ID: "a", Pickup: models.PickupPoint{Location: models.Location{Lat: 12.97, Lng: 77.59}}},
		{ID: "b", Pickup: models.PickupPoint{Location: models.Location{Lat: 12.98, Lng: 77.60}}},
		{ID: "c", Pickup: models.PickupPoint{Location: models.Location{Lat: 20.10, Lng: 70.10}}},
	}
	riders := map[string]*models.Rider{
		"r1": {ID: "r1", Status: models.RIDER_ACTIVE, CurrentAssignments: []string{}},
		"r2": {ID: "r2", Status: models.RIDER_ACTIVE, CurrentAssignments: []string{}},
		"r3": {ID: "r3", Status: models.RIDER_OFFLINE, CurrentAssignments: []string{}},
	}

	targets := h.PrepositionTargets(orders, riders)
	require.Len(t, targets, 2)

	// Densest cluster first, idle riders in stable id order.
	assert.Equal(t, "r1", targets[0].RiderID)
	assert.Equal(t, 2, targets[0].Demand)
	assert.InDelta(t, 12.975, targets[0].Centroid.Lat, 1e-9)
	assert.Equal(t, "r2", targets[1].RiderID)
	assert.Equal(t, 1, targets[1].Demand)
}
