package simulation

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/fleetloop/lastmile-dispatch/internal/database"
	"github.com/fleetloop/lastmile-dispatch/internal/metrics"
	"github.com/fleetloop/lastmile-dispatch/pkg/engine"
	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

// RunnerOptions wires the optional sinks for a simulation run.
type RunnerOptions struct {
	Repo      *database.Repository
	Collector *metrics.Collector
	// Realtime sleeps the scenario's cycle interval between cycles;
	// otherwise the clock advances virtually and the run completes as
	// fast as it computes.
	Realtime bool
}

// Runner drives the dispatcher through a scripted demand scenario.
type Runner struct {
	scenario  Scenario
	engine    *engine.Engine
	generator *Generator
	opts      RunnerOptions
}

// Summary aggregates a completed run.
type Summary struct {
	Cycles           int     `json:"cycles"`
	TotalOrders      int     `json:"total_orders"`
	TotalAssigned    int     `json:"total_assigned"`
	TotalUnassigned  int     `json:"total_unassigned"`
	PeakSurgeLevel   string  `json:"peak_surge_level"`
	AvgCycleCost     float64 `json:"avg_cycle_cost"`
	TotalSlackMin    float64 `json:"total_slack_minutes"`
	ReassignedOrders int     `json:"reassigned_orders"`
}

// NewRunner creates a runner for the scenario. The engine's clock is
// driven by the runner.
func NewRunner(scenario Scenario, eng *engine.Engine, rng *rand.Rand, opts RunnerOptions) *Runner {
	return &Runner{
		scenario:  scenario,
		engine:    eng,
		generator: NewGenerator(scenario, rng),
		opts:      opts,
	}
}

// Run executes the scenario until the cycle count is reached or the
// context is cancelled.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	now := time.Now()
	orders := make(map[string]*models.Order)
	riders := r.generator.Riders(now)
	r.engine.UpdateState(orders, riders)

	summary := Summary{PeakSurgeLevel: string(models.SURGE_NORMAL)}
	peak := 0
	costSum := 0.0
	costCycles := 0

	log.Printf("[sim] scenario=%s riders=%d cycles=%d pattern=%s",
		r.scenario.Name, r.scenario.RiderCount, r.scenario.Cycles, r.scenario.Pattern)

	for i := 0; i < r.scenario.Cycles; i++ {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		fresh := r.generator.OrdersForCycle(i, now)
		for id, order := range fresh {
			orders[id] = order
		}
		summary.TotalOrders += len(fresh)

		started := time.Now()
		result := r.engine.ExecuteCycleAt(now)
		elapsed := time.Since(started)

		summary.Cycles++
		summary.TotalAssigned += result.SuccessCount
		summary.TotalUnassigned += result.FailureCount
		if result.SuccessCount > 0 {
			costSum += result.Metrics.AvgCost
			costCycles++
		}
		if rank := surgeRank(result.SurgeLevel); rank > peak {
			peak = rank
			summary.PeakSurgeLevel = string(result.SurgeLevel)
		}
		summary.TotalSlackMin += result.Metrics.TotalSLASlackMinutes

		log.Printf("[sim] cycle=%d new=%d assigned=%d failed=%d surge=%s solver=%s avg_cost=%.3f",
			i, len(fresh), result.SuccessCount, result.FailureCount,
			result.SurgeLevel, result.Algorithm, result.Metrics.AvgCost)

		state := r.engine.GetState()
		if r.opts.Collector != nil {
			r.opts.Collector.ObserveCycle(result, state.SurgeState, elapsed)
			r.opts.Collector.ObserveReassignments(len(result.Reassignments))
		}
		if r.opts.Repo != nil {
			pending := result.SuccessCount + result.FailureCount
			if err := r.opts.Repo.SaveCycle(result, pending, state.SurgeState.DemandSupplyRatio); err != nil {
				return summary, err
			}
			if err := r.opts.Repo.SaveSurgeState(state.SurgeState, result.Timestamp); err != nil {
				return summary, err
			}
			for _, event := range result.Reassignments {
				if err := r.opts.Repo.SaveReassignment(event, result.Timestamp); err != nil {
					return summary, err
				}
			}
		}

		r.settleDeliveries(orders, riders)

		if r.opts.Realtime {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(r.scenario.CycleInterval):
			}
		}
		now = now.Add(r.scenario.CycleInterval)
	}

	summary.ReassignedOrders = r.engine.GetMetrics().ReassignmentStats.TotalReassignments
	if costCycles > 0 {
		summary.AvgCycleCost = costSum / float64(costCycles)
	}
	return summary, nil
}

// settleDeliveries completes every assigned order between cycles,
// freeing riders for the next wave. A real integration would feed
// courier-app events here.
func (r *Runner) settleDeliveries(orders map[string]*models.Order, riders map[string]*models.Rider) {
	for _, order := range orders {
		if order.Status != models.ASSIGNED {
			continue
		}
		order.Status = models.DELIVERED
		if rider, ok := riders[order.AssignedRiderID]; ok {
			kept := rider.CurrentAssignments[:0]
			for _, id := range rider.CurrentAssignments {
				if id != order.ID {
					kept = append(kept, id)
				}
			}
			rider.CurrentAssignments = kept
			if len(kept) == 0 {
				rider.CurrentRoute = nil
				// Riders end up where they last delivered.
				rider.Location = order.Delivery.Location
			}
		}
	}
}

func surgeRank(level models.SurgeLevel) int {
	switch level {
	case models.SURGE_SOFT:
		return 1
	case models.SURGE_HARD:
		return 2
	case models.SURGE_CRISIS:
		return 3
	default:
		return 0
	}
}
