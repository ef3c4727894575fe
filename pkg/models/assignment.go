package models

import (
	"time"
)

// Assignment is the live link between an order and the rider dispatched
// to deliver it. The engine keeps at most one live assignment per order.
type Assignment struct {
	ID                  string           `json:"id"`
	OrderID             string           `json:"order_id"`
	RiderID             string           `json:"rider_id"`
	AssignedAt          time.Time        `json:"assigned_at"`
	CycleID             string           `json:"cycle_id"`
	CostBreakdown       CostBreakdown    `json:"cost_breakdown"`
	EstimatedPickupAt   time.Time        `json:"estimated_pickup_at"`
	EstimatedDeliveryAt time.Time        `json:"estimated_delivery_at"`
	SLADeadline         time.Time        `json:"sla_deadline"`
	SLASlackMinutes     float64          `json:"sla_slack_minutes"`
	ReassignmentCount   int              `json:"reassignment_count"`
	Status              AssignmentStatus `json:"status"`
}

// CostBreakdown provides transparency into the factors behind a
// scored (order, rider) pair.
type CostBreakdown struct {
	TimeCost            float64 `json:"time_cost"`
	SLARiskCost         float64 `json:"sla_risk_cost"`
	DistanceCost        float64 `json:"distance_cost"`
	BatchDisruptionCost float64 `json:"batch_disruption_cost"`
	WorkloadCost        float64 `json:"workload_cost"`
	AffinityCost        float64 `json:"affinity_cost"`
	Total               float64 `json:"total"`
}

// AssignmentDecision is one (order -> rider) pairing emitted by a cycle
type AssignmentDecision struct {
	OrderID       string        `json:"order_id"`
	RiderID       string        `json:"rider_id"`
	SequenceIndex int           `json:"sequence_index"`
	Cost          float64       `json:"cost"`
	Breakdown     CostBreakdown `json:"breakdown"`
}

// ReassignmentEvent records one assignment torn up during a cycle: the
// trigger that fired and the order's attempt number after the tear-up.
type ReassignmentEvent struct {
	OrderID     string `json:"order_id"`
	FromRiderID string `json:"from_rider_id"`
	TriggerKind string `json:"trigger_kind"`
	Detail      string `json:"detail,omitempty"`
	Attempt     int    `json:"attempt"`
}

// CycleMetrics aggregates per-cycle quality measurements
type CycleMetrics struct {
	AvgCost              float64            `json:"avg_cost"`
	TotalSLASlackMinutes float64            `json:"total_sla_slack_minutes"`
	RiderUtilization     map[string]float64 `json:"rider_utilization"`
}

// AssignmentCycleResult is the outcome of one orchestrator cycle
type AssignmentCycleResult struct {
	CycleID       string               `json:"cycle_id"`
	Timestamp     time.Time            `json:"timestamp"`
	Decisions     []AssignmentDecision `json:"decisions"`
	SuccessCount  int                  `json:"success_count"`
	FailureCount  int                  `json:"failure_count"`
	SurgeLevel    SurgeLevel           `json:"surge_level"`
	Algorithm     string               `json:"algorithm"`
	Metrics       CycleMetrics         `json:"metrics"`
	Reassignments []ReassignmentEvent  `json:"reassignments"`
}
