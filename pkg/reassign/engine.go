// Package reassign detects conditions under which live assignments
// should be torn up and the affected orders returned to the pending pool:
// rider loss, ETA spikes, high-priority arrivals, and newly idle riders.
// Per-order attempt caps and proximity suppression guard against churn.
package reassign

import (
	"fmt"
	"time"

	"github.com/fleetloop/lastmile-dispatch/pkg/eta"
	"github.com/fleetloop/lastmile-dispatch/pkg/geo"
	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

// TriggerKind identifies the four trigger classes.
type TriggerKind string

const (
	TRIGGER_RIDER_OFFLINE TriggerKind = "rider_offline"
	TRIGGER_ETA_SPIKE     TriggerKind = "eta_spike"
	TRIGGER_HIGH_PRIORITY TriggerKind = "high_priority_arrival"
	TRIGGER_NEW_RIDER     TriggerKind = "new_rider_online"
)

// minReassignInterval is the cooldown between reassignments of the same
// order.
const minReassignInterval = 30 * time.Second

// highPriorityProximityKm bounds how close a normal order's rider must
// be to a squeezed priority order's pickup to be considered for bumping.
const highPriorityProximityKm = 3.0

// Trigger is one detected reassignment condition. OrderID is empty for
// the purely advisory new_rider_online kind.
type Trigger struct {
	Kind    TriggerKind `json:"kind"`
	OrderID string      `json:"order_id,omitempty"`
	RiderID string      `json:"rider_id,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// Actionable reports whether the trigger names an order to reassign.
func (t Trigger) Actionable() bool {
	return t.Kind != TRIGGER_NEW_RIDER && t.OrderID != ""
}

// Config holds the reassignment tunables.
type Config struct {
	MaxReassignmentAttempts             int
	SuppressionRadiusMeters             float64
	TriggerEtaSpikeMinutes              float64
	TriggerHighPrioritySlaCutoffMinutes float64
}

// Stats summarizes reassignment activity for telemetry.
type Stats struct {
	TotalReassignments int            `json:"total_reassignments"`
	OrdersAtCap        int            `json:"orders_at_cap"`
	ByOrder            map[string]int `json:"by_order"`
}

// Engine owns the per-order reassignment counters for the process
// lifetime and evaluates triggers each cycle.
type Engine struct {
	cfg      Config
	etaModel *eta.Model

	counts           map[string]int
	lastReassignedAt map[string]time.Time
}

// NewEngine creates a reassignment engine.
func NewEngine(cfg Config, etaModel *eta.Model) *Engine {
	return &Engine{
		cfg:              cfg,
		etaModel:         etaModel,
		counts:           make(map[string]int),
		lastReassignedAt: make(map[string]time.Time),
	}
}

// DetectTriggers scans the live assignments for the four trigger
// classes. It performs no mutation; the orchestrator applies guards and
// state transitions.
func (e *Engine) DetectTriggers(
	orders map[string]*models.Order,
	riders map[string]*models.Rider,
	assignments map[string]*models.Assignment,
	now time.Time,
) []Trigger {
	triggers := make([]Trigger, 0)

	triggers = append(triggers, e.detectRiderOffline(riders, assignments)...)
	triggers = append(triggers, e.detectEtaSpikes(orders, riders, assignments, now)...)
	triggers = append(triggers, e.detectHighPriorityArrivals(orders, riders, assignments, now)...)
	triggers = append(triggers, detectNewRidersOnline(riders)...)

	return triggers
}

func (e *Engine) detectRiderOffline(riders map[string]*models.Rider, assignments map[string]*models.Assignment) []Trigger {
	triggers := make([]Trigger, 0)
	for _, a := range assignments {
		if !isLive(a) {
			continue
		}
		rider, ok := riders[a.RiderID]
		if !ok || rider.Status == models.RIDER_OFFLINE {
			triggers = append(triggers, Trigger{
				Kind:    TRIGGER_RIDER_OFFLINE,
				OrderID: a.OrderID,
				RiderID: a.RiderID,
				Detail:  "assigned rider is offline or unknown",
			})
		}
	}
	return triggers
}

// detectEtaSpikes recomputes the current rider-to-delivery ETA and fires
// when it exceeds the originally recorded ETA by the configured margin.
// Both sides are in minutes.
func (e *Engine) detectEtaSpikes(
	orders map[string]*models.Order,
	riders map[string]*models.Rider,
	assignments map[string]*models.Assignment,
	now time.Time,
) []Trigger {
	triggers := make([]Trigger, 0)
	for _, a := range assignments {
		if !isLive(a) {
			continue
		}
		order, okO := orders[a.OrderID]
		rider, okR := riders[a.RiderID]
		if !okO || !okR {
			continue
		}

		current := e.etaModel.EstimateETA(rider.Location, order.Delivery.Location, now, rider.ID, "")
		original := a.EstimatedDeliveryAt.Sub(a.AssignedAt).Minutes()

		spike := float64(current.EstimatedDurationMinutes) - original
		if spike > e.cfg.TriggerEtaSpikeMinutes {
			triggers = append(triggers, Trigger{
				Kind:    TRIGGER_ETA_SPIKE,
				OrderID: a.OrderID,
				RiderID: a.RiderID,
				Detail:  fmt.Sprintf("eta spiked by %.1f minutes", spike),
			})
		}
	}
	return triggers
}

// detectHighPriorityArrivals looks for squeezed critical or unassigned
// high-priority orders and proposes bumping normal assigned orders whose
// riders sit near the priority pickup.
func (e *Engine) detectHighPriorityArrivals(
	orders map[string]*models.Order,
	riders map[string]*models.Rider,
	assignments map[string]*models.Assignment,
	now time.Time,
) []Trigger {
	cutoff := now.Add(time.Duration(e.cfg.TriggerHighPrioritySlaCutoffMinutes) * time.Minute)

	triggers := make([]Trigger, 0)
	for _, priority := range orders {
		urgent := priority.Priority == models.PRIORITY_CRITICAL ||
			(priority.Priority == models.PRIORITY_HIGH && priority.Status == models.PENDING_ASSIGNMENT)
		if !urgent || priority.SLADeadline.After(cutoff) {
			continue
		}

		for _, a := range assignments {
			if !isLive(a) {
				continue
			}
			victim, ok := orders[a.OrderID]
			if !ok || victim.Priority != models.PRIORITY_NORMAL || victim.Status != models.ASSIGNED {
				continue
			}
			rider, ok := riders[a.RiderID]
			if !ok {
				continue
			}
			if geo.DistanceKm(rider.Location, priority.Pickup.Location) <= highPriorityProximityKm {
				triggers = append(triggers, Trigger{
					Kind:    TRIGGER_HIGH_PRIORITY,
					OrderID: a.OrderID,
					RiderID: a.RiderID,
					Detail:  fmt.Sprintf("rider needed for priority order %s", priority.ID),
				})
			}
		}
	}
	return triggers
}

func detectNewRidersOnline(riders map[string]*models.Rider) []Trigger {
	triggers := make([]Trigger, 0)
	for _, rider := range riders {
		if rider.Status == models.RIDER_ACTIVE && len(rider.CurrentAssignments) == 0 {
			triggers = append(triggers, Trigger{
				Kind:    TRIGGER_NEW_RIDER,
				RiderID: rider.ID,
			})
		}
	}
	return triggers
}

// CanReassign enforces the per-order attempt cap and the minimum
// interval between attempts.
func (e *Engine) CanReassign(orderID string, now time.Time) bool {
	if e.counts[orderID] >= e.cfg.MaxReassignmentAttempts {
		return false
	}
	if last, ok := e.lastReassignedAt[orderID]; ok {
		if now.Sub(last) < minReassignInterval {
			return false
		}
	}
	return true
}

// IsSuppressed reports whether the current rider is already committed:
// within the suppression radius of the order's pickup.
func (e *Engine) IsSuppressed(rider *models.Rider, pickup models.Location) bool {
	return geo.DistanceKm(rider.Location, pickup) < e.cfg.SuppressionRadiusMeters/1000.0
}

// RecordReassignment bumps the order's counter and cooldown clock.
func (e *Engine) RecordReassignment(orderID string, now time.Time) {
	e.counts[orderID]++
	e.lastReassignedAt[orderID] = now
}

// ReassignmentCount returns the attempts recorded for an order.
func (e *Engine) ReassignmentCount(orderID string) int {
	return e.counts[orderID]
}

// GetStats summarizes counters for telemetry.
func (e *Engine) GetStats() Stats {
	stats := Stats{ByOrder: make(map[string]int, len(e.counts))}
	for orderID, count := range e.counts {
		stats.ByOrder[orderID] = count
		stats.TotalReassignments += count
		if count >= e.cfg.MaxReassignmentAttempts {
			stats.OrdersAtCap++
		}
	}
	return stats
}

func isLive(a *models.Assignment) bool {
	return a.Status == models.ASSIGNMENT_DISPATCHED || a.Status == models.ASSIGNMENT_ACCEPTED
}
