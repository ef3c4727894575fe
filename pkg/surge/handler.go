// Package surge classifies demand/supply pressure each cycle and derives
// the per-level response: scoring weight shifts, batch size and radius
// expansion, held orders, preposition targets, and the crisis directive
// to skip global optimization.
package surge

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
	"github.com/fleetloop/lastmile-dispatch/pkg/scoring"
)

// holdDeadlineBufferMinutes: under hard surge, normal-priority orders
// with at least this much deadline headroom are deferred a cycle.
const holdDeadlineBufferMinutes = 30

// clusterCellDegrees is the lat/lng bucket size for demand clustering.
const clusterCellDegrees = 0.5

// Config holds the surge classification thresholds and response factors.
type Config struct {
	SoftRatio             float64
	HardRatio             float64
	CrisisRatio           float64
	BatchSizeIncrement    int
	RadiusExpansionFactor float64
}

// Adjustments is the surge response applied by the orchestrator for one
// cycle. Zero-value means "no change".
type Adjustments struct {
	Weights            scoring.Weights            `json:"weights"`
	BatchSizeDelta     int                        `json:"batch_size_delta"`
	RadiusMultiplier   float64                    `json:"radius_multiplier"`
	HeldOrderIDs       []string                   `json:"held_order_ids"`
	PrepositionTargets []models.PrepositionTarget `json:"preposition_targets"`
	UseGreedy          bool                       `json:"use_greedy"`
}

// Handler detects surge levels and produces per-level adjustments.
type Handler struct {
	cfg   Config
	drift *DriftDetector
}

// NewHandler creates a surge handler with the given thresholds. The
// drift detector starts centered on a balanced market (ratio 1.0) with
// noise tuned to typical cycle-to-cycle jitter.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		cfg:   cfg,
		drift: NewDriftDetector(1.0, 0.15),
	}
}

// RecordRatio feeds one cycle's demand/supply ratio to the drift
// detector. Called once per cycle after Detect.
func (h *Handler) RecordRatio(ratio float64, now time.Time) DriftObservation {
	return h.drift.Observe(ratio, now)
}

// DriftStats snapshots the demand drift detector for telemetry.
func (h *Handler) DriftStats() DriftStats {
	return h.drift.Stats()
}

// Detect classifies the demand/supply ratio. availableCapacity is
// availableRiders times the batch capacity of the current fleet; the
// ratio divides pending orders by max(capacity, 1).
func (h *Handler) Detect(pendingOrders, availableRiders, activeBatchCapacity int) models.SurgeState {
	capacity := availableRiders * activeBatchCapacity
	ratio := float64(pendingOrders) / math.Max(float64(capacity), 1)

	state := models.SurgeState{
		DemandSupplyRatio: ratio,
		PendingOrderCount: pendingOrders,
		AvailableCapacity: capacity,
	}

	switch {
	case ratio >= h.cfg.CrisisRatio:
		state.Level = models.SURGE_CRISIS
		state.RecommendedActions = []string{
			models.ActionEscalateSLAWindows,
			models.ActionNotifyCustomers,
			models.ActionActivateEmergencyProto,
			models.ActionRequestAdditionalSupply,
		}
	case ratio >= h.cfg.HardRatio:
		state.Level = models.SURGE_HARD
		state.RecommendedActions = []string{
			models.ActionEnablePrepositioning,
			models.ActionHoldSLAOrders,
			models.ActionIncreaseBatchSizes,
			models.ActionExpandSearchRadius,
		}
	case ratio >= h.cfg.SoftRatio:
		state.Level = models.SURGE_SOFT
		state.RecommendedActions = []string{
			models.ActionIncreaseBatchSizesBy1,
			models.ActionExpandCandidateRadius50,
			models.ActionReduceFairnessWeight,
		}
	default:
		state.Level = models.SURGE_NORMAL
		state.RecommendedActions = []string{}
	}

	return state
}

// Apply derives the cycle adjustments for a surge level. Pending orders
// and riders feed the hard-surge hold list and preposition targets.
func (h *Handler) Apply(
	level models.SurgeLevel,
	weights scoring.Weights,
	pendingOrders []*models.Order,
	riders map[string]*models.Rider,
	now time.Time,
) Adjustments {
	adj := Adjustments{
		Weights:          weights,
		RadiusMultiplier: 1.0,
	}

	switch level {
	case models.SURGE_SOFT:
		adj.Weights.Workload *= 0.5
		adj.Weights.SLARisk = math.Min(1, adj.Weights.SLARisk*1.2)
		adj.BatchSizeDelta = h.cfg.BatchSizeIncrement
		adj.RadiusMultiplier = h.cfg.RadiusExpansionFactor

	case models.SURGE_HARD:
		adj.Weights.Workload = 0
		adj.Weights.SLARisk = 0.5
		adj.Weights.Time = 0.3
		adj.Weights.Distance = 0.2
		adj.BatchSizeDelta = 2 * h.cfg.BatchSizeIncrement
		adj.RadiusMultiplier = h.cfg.RadiusExpansionFactor * h.cfg.RadiusExpansionFactor
		adj.HeldOrderIDs = holdableOrders(pendingOrders, now)
		adj.PrepositionTargets = h.PrepositionTargets(pendingOrders, riders)

	case models.SURGE_CRISIS:
		adj.UseGreedy = true
	}

	return adj
}

// holdableOrders lists normal-priority orders with enough deadline
// headroom to sit out the cycle.
func holdableOrders(orders []*models.Order, now time.Time) []string {
	cutoff := now.Add(holdDeadlineBufferMinutes * time.Minute)
	held := make([]string, 0)
	for _, order := range orders {
		if order.Priority == models.PRIORITY_NORMAL && order.SLADeadline.After(cutoff) {
			held = append(held, order.ID)
		}
	}
	return held
}

// PrepositionTargets clusters pending orders into half-degree cells,
// takes the centroids of the most-populated cells, and pairs each with
// an idle rider (N = min(idle riders, clusters)).
func (h *Handler) PrepositionTargets(orders []*models.Order, riders map[string]*models.Rider) []models.PrepositionTarget {
	type cluster struct {
		count  int
		sumLat float64
		sumLng float64
	}

	cells := make(map[string]*cluster)
	for _, order := range orders {
		loc := order.Pickup.Location
		key := fmt.Sprintf("%d:%d",
			int(math.Floor(loc.Lat/clusterCellDegrees)),
			int(math.Floor(loc.Lng/clusterCellDegrees)))
		c, ok := cells[key]
		if !ok {
			c = &cluster{}
			cells[key] = c
		}
		c.count++
		c.sumLat += loc.Lat
		c.sumLng += loc.Lng
	}

	clusters := make([]*cluster, 0, len(cells))
	for _, c := range cells {
		clusters = append(clusters, c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].count > clusters[j].count
	})

	idle := make([]string, 0)
	for id, rider := range riders {
		if rider.Status == models.RIDER_ACTIVE && len(rider.CurrentAssignments) == 0 {
			idle = append(idle, id)
		}
	}
	sort.Strings(idle)

	n := len(idle)
	if len(clusters) < n {
		n = len(clusters)
	}

	targets := make([]models.PrepositionTarget, 0, n)
	for i := 0; i < n; i++ {
		c := clusters[i]
		targets = append(targets, models.PrepositionTarget{
			RiderID: idle[i],
			Centroid: models.Location{
				Lat: c.sumLat / float64(c.count),
				Lng: c.sumLng / float64(c.count),
			},
			Demand: c.count,
		})
	}
	return targets
}
