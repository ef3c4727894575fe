package models

// SurgeLevel classifies the demand/supply pressure on the system
type SurgeLevel string

const (
	SURGE_NORMAL SurgeLevel = "normal"
	SURGE_SOFT   SurgeLevel = "soft_surge"
	SURGE_HARD   SurgeLevel = "hard_surge"
	SURGE_CRISIS SurgeLevel = "crisis"
)

// Recommended-action tokens attached to surge states. These are stable
// opaque strings interpreted by external operators.
const (
	ActionIncreaseBatchSizesBy1    = "increase_batch_sizes_by_1"
	ActionExpandCandidateRadius50  = "expand_candidate_radius_50pct"
	ActionReduceFairnessWeight     = "reduce_fairness_weight"
	ActionEnablePrepositioning     = "enable_preposioning"
	ActionHoldSLAOrders            = "hold_sla_orders"
	ActionIncreaseBatchSizes       = "increase_batch_sizes"
	ActionExpandSearchRadius       = "expand_search_radius"
	ActionEscalateSLAWindows       = "escalate_sla_windows"
	ActionNotifyCustomers          = "notify_customers"
	ActionActivateEmergencyProto   = "activate_emergency_protocol"
	ActionRequestAdditionalSupply  = "request_additional_supply"
)

// SurgeState is the demand/supply classification recomputed at the start
// of every cycle. It carries no memory across cycles.
type SurgeState struct {
	Level              SurgeLevel `json:"level"`
	DemandSupplyRatio  float64    `json:"demand_supply_ratio"`
	PendingOrderCount  int        `json:"pending_order_count"`
	AvailableCapacity  int        `json:"available_capacity"`
	RecommendedActions []string   `json:"recommended_actions"`
}

// IsSurging reports whether the system is above normal pressure
func (s SurgeState) IsSurging() bool {
	return s.Level != SURGE_NORMAL
}

// PrepositionTarget pairs an idle rider with a demand cluster centroid
type PrepositionTarget struct {
	RiderID  string   `json:"rider_id"`
	Centroid Location `json:"centroid"`
	Demand   int      `json:"demand"`
}
