package database

import (
	"time"
)

// CycleRecord is the persisted summary of one assignment cycle.
type CycleRecord struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`

	SurgeLevel string `json:"surge_level"`
	Algorithm  string `json:"algorithm"`

	PendingOrders int `json:"pending_orders"`
	SuccessCount  int `json:"success_count"`
	FailureCount  int `json:"failure_count"`

	AvgCost              float64 `json:"avg_cost"`
	TotalSLASlackMinutes float64 `json:"total_sla_slack_minutes"`
	DemandSupplyRatio    float64 `json:"demand_supply_ratio"`

	CreatedAt time.Time `json:"created_at"`
}

// DecisionRecord is one (order, rider) pairing produced by a cycle,
// with the full cost breakdown for offline analysis.
type DecisionRecord struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	CycleID string `json:"cycle_id" gorm:"index"`

	OrderID       string `json:"order_id" gorm:"index"`
	RiderID       string `json:"rider_id" gorm:"index"`
	SequenceIndex int    `json:"sequence_index"`

	TotalCost           float64 `json:"total_cost"`
	TimeCost            float64 `json:"time_cost"`
	SLARiskCost         float64 `json:"sla_risk_cost"`
	DistanceCost        float64 `json:"distance_cost"`
	BatchDisruptionCost float64 `json:"batch_disruption_cost"`
	WorkloadCost        float64 `json:"workload_cost"`
	AffinityCost        float64 `json:"affinity_cost"`

	EstimatedPickupAt   time.Time `json:"estimated_pickup_at"`
	EstimatedDeliveryAt time.Time `json:"estimated_delivery_at"`
	SLASlackMinutes     float64   `json:"sla_slack_minutes"`

	CreatedAt time.Time `json:"created_at"`
}

// ReassignmentRecord is one applied reassignment trigger.
type ReassignmentRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`

	OrderID     string `json:"order_id" gorm:"index"`
	FromRiderID string `json:"from_rider_id"`
	TriggerKind string `json:"trigger_kind"`
	Detail      string `json:"detail"`
	Attempt     int    `json:"attempt"`

	CreatedAt time.Time `json:"created_at"`
}

// SurgeRecord tracks surge level transitions over time.
type SurgeRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`

	Level             string  `json:"level"`
	DemandSupplyRatio float64 `json:"demand_supply_ratio"`
	PendingOrderCount int     `json:"pending_order_count"`
	AvailableCapacity int     `json:"available_capacity"`

	CreatedAt time.Time `json:"created_at"`
}
