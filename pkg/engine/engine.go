// Package engine wires the dispatcher subsystems into the assignment
// cycle: surge detection, candidate generation, scoring, global
// matching, state mutation, and reassignment trigger handling. One
// Engine owns the orders, riders, assignments, ETA caches, and cycle
// history for its process lifetime.
package engine

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetloop/lastmile-dispatch/pkg/assignment"
	"github.com/fleetloop/lastmile-dispatch/pkg/batching"
	"github.com/fleetloop/lastmile-dispatch/pkg/candidates"
	"github.com/fleetloop/lastmile-dispatch/pkg/eta"
	"github.com/fleetloop/lastmile-dispatch/pkg/models"
	"github.com/fleetloop/lastmile-dispatch/pkg/reassign"
	"github.com/fleetloop/lastmile-dispatch/pkg/scoring"
	"github.com/fleetloop/lastmile-dispatch/pkg/surge"
)

// State is a snapshot of the engine's owned entities, exposed for
// external callers and the HTTP surface.
type State struct {
	Orders      map[string]*models.Order      `json:"orders"`
	Riders      map[string]*models.Rider      `json:"riders"`
	Assignments map[string]*models.Assignment `json:"assignments"`
	CycleCount  int                           `json:"cycle_count"`
	SurgeState  models.SurgeState             `json:"surge_state"`
}

// Metrics aggregates engine telemetry across cycles.
type Metrics struct {
	CycleCount        int                           `json:"cycle_count"`
	LastCycle         *models.AssignmentCycleResult `json:"last_cycle"`
	SurgeState        models.SurgeState             `json:"surge_state"`
	ReassignmentStats reassign.Stats                `json:"reassignment_stats"`
	TotalAssignments  int                           `json:"total_assignments"`
	ETACacheStats     eta.CacheStats                `json:"eta_cache_stats"`
	DemandDrift       surge.DriftStats              `json:"demand_drift"`
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock injects the engine's wall clock. Tests use this to drive
// deterministic cycles.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRand injects a seedable random source, plumbed into the ETA model.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// Engine is the assignment cycle orchestrator. Concurrent ExecuteCycle
// calls on the same engine are serialized; a cycle is atomic from the
// caller's perspective.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	orders      map[string]*models.Order
	riders      map[string]*models.Rider
	assignments map[string]*models.Assignment

	etaModel     *eta.Model
	surgeHandler *surge.Handler
	reassigner   *reassign.Engine

	cycleCounter     int
	totalAssignments int
	surgeState       models.SurgeState
	history          []*models.AssignmentCycleResult

	now func() time.Time
	rng *rand.Rand
}

// New creates an engine from a validated configuration.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:         cfg,
		orders:      make(map[string]*models.Order),
		riders:      make(map[string]*models.Rider),
		assignments: make(map[string]*models.Assignment),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.etaModel = eta.NewModel(cfg.ETACacheTTL(), cfg.ETA.ServiceTimeDefaults, e.rng)
	e.surgeHandler = surge.NewHandler(surge.Config{
		SoftRatio:             cfg.Surge.SoftSurgeRatio,
		HardRatio:             cfg.Surge.HardSurgeRatio,
		CrisisRatio:           cfg.Surge.CrisisRatio,
		BatchSizeIncrement:    cfg.Surge.BatchSizeIncrement,
		RadiusExpansionFactor: cfg.Surge.RadiusExpansionFactor,
	})
	e.reassigner = reassign.NewEngine(reassign.Config{
		MaxReassignmentAttempts:             cfg.Reassignment.MaxReassignmentAttempts,
		SuppressionRadiusMeters:             cfg.Reassignment.SuppressionRadiusMeters,
		TriggerEtaSpikeMinutes:              cfg.Reassignment.TriggerEtaSpikeMinutes,
		TriggerHighPrioritySlaCutoffMinutes: cfg.Reassignment.TriggerHighPrioritySlaCutoffMinutes,
	}, e.etaModel)

	return e
}

// Config returns the engine's immutable configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ETAModel exposes the estimation model for observed-trip feedback.
func (e *Engine) ETAModel() *eta.Model {
	return e.etaModel
}

// UpdateState hands a snapshot of orders and riders to the engine. The
// engine owns the passed maps until the next snapshot; mutating them
// externally while a cycle runs has undefined effects.
func (e *Engine) UpdateState(orders map[string]*models.Order, riders map[string]*models.Rider) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if orders != nil {
		e.orders = orders
	}
	if riders != nil {
		e.riders = riders
	}
}

// ExecuteCycle runs one assignment cycle at the engine's current clock.
func (e *Engine) ExecuteCycle() *models.AssignmentCycleResult {
	return e.ExecuteCycleAt(e.now())
}

// ExecuteCycleAt runs one assignment cycle with an explicit instant. All
// time-dependent computation inside the cycle sees the same now.
func (e *Engine) ExecuteCycleAt(now time.Time) *models.AssignmentCycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.etaModel.SetClock(func() time.Time { return now })

	cycleID := fmt.Sprintf("cycle_%d_%d", now.UnixMilli(), e.cycleCounter)
	e.cycleCounter++

	result := &models.AssignmentCycleResult{
		CycleID:       cycleID,
		Timestamp:     now,
		Decisions:     []models.AssignmentDecision{},
		Reassignments: []models.ReassignmentEvent{},
		Metrics: models.CycleMetrics{
			RiderUtilization: make(map[string]float64),
		},
	}

	e.surgeState = e.detectSurge()
	result.SurgeLevel = e.surgeState.Level
	e.surgeHandler.RecordRatio(e.surgeState.DemandSupplyRatio, now)

	pending := e.pendingOrders()
	if len(pending) == 0 {
		e.finishCycle(result)
		return result
	}

	adj := e.surgeHandler.Apply(e.surgeState.Level, e.cfg.Weights, pending, e.riders, now)
	held := make(map[string]bool, len(adj.HeldOrderIDs))
	for _, id := range adj.HeldOrderIDs {
		held[id] = true
	}

	eligible := make([]*models.Order, 0, len(pending))
	for _, order := range pending {
		if !held[order.ID] {
			eligible = append(eligible, order)
		}
	}

	matrix, breakdowns := e.buildMatrix(eligible, adj, now)

	var solved assignment.Result
	if adj.UseGreedy {
		solved = assignment.NewAdaptiveOptimizer(e.optimizerConfig()).ForceGreedy(matrix)
	} else {
		solved = assignment.NewAdaptiveOptimizer(e.optimizerConfig()).Optimize(matrix)
	}
	result.Algorithm = solved.Algorithm

	e.applyDecisions(result, solved, breakdowns, adj, cycleID, now)
	result.FailureCount = len(pending) - result.SuccessCount

	e.applyReassignmentTriggers(result, now)
	e.aggregateMetrics(result)
	e.finishCycle(result)
	return result
}

// GetState snapshots the engine's owned entities.
func (e *Engine) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		Orders:      e.orders,
		Riders:      e.riders,
		Assignments: e.assignments,
		CycleCount:  e.cycleCounter,
		SurgeState:  e.surgeState,
	}
}

// GetMetrics snapshots engine telemetry.
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := Metrics{
		CycleCount:        e.cycleCounter,
		SurgeState:        e.surgeState,
		ReassignmentStats: e.reassigner.GetStats(),
		TotalAssignments:  e.totalAssignments,
		ETACacheStats:     e.etaModel.GetCacheStats(),
		DemandDrift:       e.surgeHandler.DriftStats(),
	}
	if len(e.history) > 0 {
		m.LastCycle = e.history[len(e.history)-1]
	}
	return m
}

// History returns the accumulated cycle results.
func (e *Engine) History() []*models.AssignmentCycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.AssignmentCycleResult, len(e.history))
	copy(out, e.history)
	return out
}

// Reassigner exposes the reassignment guard surface for callers that
// feed external reassignment events.
func (e *Engine) Reassigner() *reassign.Engine {
	return e.reassigner
}

func (e *Engine) detectSurge() models.SurgeState {
	pendingCount := 0
	for _, order := range e.orders {
		if order.IsPending() {
			pendingCount++
		}
	}

	available := 0
	batchCapacity := 0
	for _, rider := range e.riders {
		if rider.IsAvailable() {
			available++
		}
		if rider.Vehicle.MaxItems > batchCapacity {
			batchCapacity = rider.Vehicle.MaxItems
		}
	}

	return e.surgeHandler.Detect(pendingCount, available, batchCapacity)
}

// pendingOrders returns pending orders in stable id order, bounded by
// the per-cycle cap.
func (e *Engine) pendingOrders() []*models.Order {
	pending := make([]*models.Order, 0)
	for _, order := range e.orders {
		if order.IsPending() {
			pending = append(pending, order)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	if e.cfg.Cycle.MaxOrdersPerCycle > 0 && len(pending) > e.cfg.Cycle.MaxOrdersPerCycle {
		pending = pending[:e.cfg.Cycle.MaxOrdersPerCycle]
	}
	return pending
}

// buildMatrix generates candidates and scores every (order, candidate)
// pair, pivoting the results into a dense cost matrix with sentinel
// entries for infeasible pairs.
func (e *Engine) buildMatrix(
	orders []*models.Order,
	adj surge.Adjustments,
	now time.Time,
) (assignment.Matrix, map[string]map[string]models.CostBreakdown) {
	generator := candidates.NewGenerator(candidates.Config{
		InitialRadiusKm:                 e.cfg.Candidates.InitialRadiusKm * adj.RadiusMultiplier,
		ExpandedRadiusKm:                e.cfg.Candidates.ExpandedRadiusKm * adj.RadiusMultiplier,
		MaxRadiusKm:                     e.cfg.Candidates.MaxRadiusKm * adj.RadiusMultiplier,
		RadiusExpansionMinutesThreshold: e.cfg.Candidates.RadiusExpansionMinutesThreshold,
		MaxContinuousDrivingMinutes:     e.cfg.Fatigue.MaxContinuousDrivingMinutes,
		MaxShiftDrivingMinutes:          e.cfg.Fatigue.MaxShiftDrivingMinutes,
	})
	scorer := scoring.NewScorer(adj.Weights, e.etaModel, e.cfg.SLA.SLARiskSigmoidScale)

	breakdowns := make(map[string]map[string]models.CostBreakdown)
	riderSet := make(map[string]bool)
	candidateLists := make(map[string][]string, len(orders))

	for _, order := range orders {
		res := generator.Generate(order, e.riders, now)
		list := e.capCandidates(order, res.CandidateRiderIDs)
		candidateLists[order.ID] = list

		if len(list) == 0 {
			continue
		}
		breakdowns[order.ID] = make(map[string]models.CostBreakdown, len(list))
		for _, riderID := range list {
			rider := e.riders[riderID]
			if rider == nil {
				continue
			}
			breakdowns[order.ID][riderID] = scorer.Score(order, rider, now)
			riderSet[riderID] = true
		}
	}

	riderIDs := make([]string, 0, len(riderSet))
	for id := range riderSet {
		riderIDs = append(riderIDs, id)
	}
	sort.Strings(riderIDs)

	orderIDs := make([]string, 0, len(orders))
	for _, order := range orders {
		orderIDs = append(orderIDs, order.ID)
	}

	matrix := assignment.Matrix{
		OrderIDs: orderIDs,
		RiderIDs: riderIDs,
		Cost:     make([][]float64, len(orderIDs)),
	}
	riderIndex := make(map[string]int, len(riderIDs))
	for j, id := range riderIDs {
		riderIndex[id] = j
	}

	for i, orderID := range orderIDs {
		matrix.Cost[i] = make([]float64, len(riderIDs))
		for j := range matrix.Cost[i] {
			matrix.Cost[i][j] = assignment.SentinelCost
		}
		for _, riderID := range candidateLists[orderID] {
			if bd, ok := breakdowns[orderID][riderID]; ok {
				matrix.Cost[i][riderIndex[riderID]] = bd.Total
			}
		}
	}

	return matrix, breakdowns
}

// capCandidates bounds the per-order candidate list to the nearest
// MaxRidersPerAssignment riders.
func (e *Engine) capCandidates(order *models.Order, riderIDs []string) []string {
	limit := e.cfg.Cycle.MaxRidersPerAssignment
	if limit <= 0 || len(riderIDs) <= limit {
		sorted := make([]string, len(riderIDs))
		copy(sorted, riderIDs)
		sort.Strings(sorted)
		return sorted
	}

	sorted := make([]string, len(riderIDs))
	copy(sorted, riderIDs)
	sort.Slice(sorted, func(a, b int) bool {
		da := e.riders[sorted[a]].Location.DistanceKm(order.Pickup.Location)
		db := e.riders[sorted[b]].Location.DistanceKm(order.Pickup.Location)
		if da == db {
			return sorted[a] < sorted[b]
		}
		return da < db
	})
	return sorted[:limit]
}

// applyDecisions mutates engine state for every solved pair: order
// transitions, rider assignment append, live assignment replacement, and
// route re-batching for loaded riders.
func (e *Engine) applyDecisions(
	result *models.AssignmentCycleResult,
	solved assignment.Result,
	breakdowns map[string]map[string]models.CostBreakdown,
	adj surge.Adjustments,
	cycleID string,
	now time.Time,
) {
	orderIDs := make([]string, 0, len(solved.Assignments))
	for orderID := range solved.Assignments {
		orderIDs = append(orderIDs, orderID)
	}
	sort.Strings(orderIDs)

	touchedRiders := make(map[string]bool)

	for _, orderID := range orderIDs {
		riderID := solved.Assignments[orderID]
		order := e.orders[orderID]
		rider := e.riders[riderID]
		if order == nil || rider == nil {
			continue
		}

		sequenceIndex := len(rider.CurrentAssignments)
		rider.CurrentAssignments = append(rider.CurrentAssignments, orderID)
		touchedRiders[riderID] = true

		order.Status = models.ASSIGNED
		order.AssignedRiderID = riderID
		order.AssignmentAttempts++

		breakdown := breakdowns[orderID][riderID]
		e.recordAssignment(order, rider, breakdown, cycleID, now)

		result.Decisions = append(result.Decisions, models.AssignmentDecision{
			OrderID:       orderID,
			RiderID:       riderID,
			SequenceIndex: sequenceIndex,
			Cost:          breakdown.Total,
			Breakdown:     breakdown,
		})
		result.SuccessCount++
		e.totalAssignments++
	}

	e.rebatchRiders(touchedRiders, adj)
}

// recordAssignment replaces the order's live assignment record.
func (e *Engine) recordAssignment(
	order *models.Order,
	rider *models.Rider,
	breakdown models.CostBreakdown,
	cycleID string,
	now time.Time,
) {
	toPickup := e.etaModel.EstimateETA(rider.Location, order.Pickup.Location, now, rider.ID, "")
	pickupAt := now.Add(time.Duration(toPickup.EstimatedDurationMinutes) * time.Minute)
	toDelivery := e.etaModel.EstimateETA(order.Pickup.Location, order.Delivery.Location, pickupAt, rider.ID, "")
	deliveryAt := pickupAt.Add(time.Duration(toDelivery.EstimatedDurationMinutes) * time.Minute)

	reassignmentCount := 0
	if prev, ok := e.assignments[order.ID]; ok {
		reassignmentCount = prev.ReassignmentCount
	}

	e.assignments[order.ID] = &models.Assignment{
		ID:                  uuid.NewString(),
		OrderID:             order.ID,
		RiderID:             rider.ID,
		AssignedAt:          now,
		CycleID:             cycleID,
		CostBreakdown:       breakdown,
		EstimatedPickupAt:   pickupAt,
		EstimatedDeliveryAt: deliveryAt,
		SLADeadline:         order.SLADeadline,
		SLASlackMinutes:     order.SLADeadline.Sub(deliveryAt).Minutes(),
		ReassignmentCount:   reassignmentCount,
		Status:              models.ASSIGNMENT_DISPATCHED,
	}
}

// rebatchRiders recomputes the stop sequence for every rider that
// received new orders this cycle. Infeasible batches keep the previous
// route; the next cycle's scoring still sees the appended assignment.
func (e *Engine) rebatchRiders(touched map[string]bool, adj surge.Adjustments) {
	batchSizes := make(map[models.VehicleType]int, len(e.cfg.Batching.MaxBatchSize))
	for vehicle, size := range e.cfg.Batching.MaxBatchSize {
		batchSizes[vehicle] = size + adj.BatchSizeDelta
	}
	optimizer := batching.NewOptimizer(batching.Config{
		MaxBatchSize:            batchSizes,
		MaxBatchDurationMinutes: e.cfg.Batching.MaxBatchDurationMinutes,
		TwoOptIterationLimit:    e.cfg.Batching.TwoOptIterationLimit,
	})

	for riderID := range touched {
		rider := e.riders[riderID]
		if rider == nil {
			continue
		}

		orders := make([]*models.Order, 0, len(rider.CurrentAssignments))
		for _, orderID := range rider.CurrentAssignments {
			if order, ok := e.orders[orderID]; ok {
				orders = append(orders, order)
			}
		}
		if len(orders) == 0 {
			continue
		}

		batch, err := optimizer.Optimize(rider, orders)
		if err != nil {
			continue
		}
		rider.CurrentRoute = batch.Stops
	}
}

// applyReassignmentTriggers runs trigger detection and, for every
// permitted trigger, frees the order for the next cycle. Applied
// tear-ups are recorded on the cycle result so callers can persist and
// count them.
func (e *Engine) applyReassignmentTriggers(result *models.AssignmentCycleResult, now time.Time) {
	triggers := e.reassigner.DetectTriggers(e.orders, e.riders, e.assignments, now)

	for _, trigger := range triggers {
		if !trigger.Actionable() {
			continue
		}
		order := e.orders[trigger.OrderID]
		if order == nil || order.Status != models.ASSIGNED {
			continue
		}
		if !e.reassigner.CanReassign(order.ID, now) {
			continue
		}
		fromRiderID := order.AssignedRiderID
		if rider, ok := e.riders[fromRiderID]; ok {
			if trigger.Kind != reassign.TRIGGER_RIDER_OFFLINE && e.reassigner.IsSuppressed(rider, order.Pickup.Location) {
				continue
			}
			e.detachOrder(rider, order.ID)
		}

		order.Status = models.PENDING_ASSIGNMENT
		order.AssignedRiderID = ""
		e.reassigner.RecordReassignment(order.ID, now)

		if a, ok := e.assignments[order.ID]; ok {
			a.Status = models.ASSIGNMENT_REASSIGNED
			a.ReassignmentCount++
		}

		result.Reassignments = append(result.Reassignments, models.ReassignmentEvent{
			OrderID:     order.ID,
			FromRiderID: fromRiderID,
			TriggerKind: string(trigger.Kind),
			Detail:      trigger.Detail,
			Attempt:     e.reassigner.ReassignmentCount(order.ID),
		})
	}
}

// detachOrder removes an order from a rider's assignment list and route.
func (e *Engine) detachOrder(rider *models.Rider, orderID string) {
	kept := rider.CurrentAssignments[:0]
	for _, id := range rider.CurrentAssignments {
		if id != orderID {
			kept = append(kept, id)
		}
	}
	rider.CurrentAssignments = kept

	stops := make([]models.RouteStop, 0, len(rider.CurrentRoute))
	for _, stop := range rider.CurrentRoute {
		if stop.OrderID != orderID {
			stop.SequenceIndex = len(stops)
			stops = append(stops, stop)
		}
	}
	rider.CurrentRoute = stops
}

// aggregateMetrics computes the per-cycle quality measures: mean
// decision cost, total SLA slack, and item-count utilization per rider.
func (e *Engine) aggregateMetrics(result *models.AssignmentCycleResult) {
	if len(result.Decisions) > 0 {
		totalCost := 0.0
		totalSlack := 0.0
		for _, decision := range result.Decisions {
			totalCost += decision.Cost
			if a, ok := e.assignments[decision.OrderID]; ok {
				totalSlack += a.SLASlackMinutes
			}
		}
		result.Metrics.AvgCost = totalCost / float64(len(result.Decisions))
		result.Metrics.TotalSLASlackMinutes = totalSlack
	}

	for id, rider := range e.riders {
		if rider.Vehicle.MaxItems <= 0 {
			continue
		}
		result.Metrics.RiderUtilization[id] =
			float64(len(rider.CurrentAssignments)) / float64(rider.Vehicle.MaxItems)
	}
}

func (e *Engine) finishCycle(result *models.AssignmentCycleResult) {
	e.etaModel.ClearExpiredCache()
	e.history = append(e.history, result)
}

func (e *Engine) optimizerConfig() assignment.Config {
	return assignment.Config{
		HungarianThreshold: e.cfg.Cycle.HungarianThreshold,
		Timeout:            e.cfg.OptimizerTimeout(),
	}
}
