package models

import (
	"time"
)

// Vehicle describes a rider's vehicle and its carrying limits
type Vehicle struct {
	Type            VehicleType         `json:"type"`
	MaxWeightKg     float64             `json:"max_weight_kg"`
	MaxVolumeLiters float64             `json:"max_volume_liters"`
	MaxItems        int                 `json:"max_items"`
	Capabilities    []VehicleCapability `json:"capabilities"`
}

// HasCapability reports whether the vehicle carries the given capability
func (v Vehicle) HasCapability(cap VehicleCapability) bool {
	for _, c := range v.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Shift describes a rider's working window and accumulated driving time
type Shift struct {
	StartTime                time.Time `json:"start_time"`
	EndTime                  time.Time `json:"end_time"`
	ContinuousDrivingMinutes int       `json:"continuous_driving_minutes"`
	TotalShiftDrivingMinutes int       `json:"total_shift_driving_minutes"`
}

// Load tracks the payload a rider is currently carrying
type Load struct {
	WeightKg     float64 `json:"weight_kg"`
	VolumeLiters float64 `json:"volume_liters"`
	ItemCount    int     `json:"item_count"`
}

// Performance holds historical delivery statistics for a rider
type Performance struct {
	ZoneFamiliarityScores  map[string]float64 `json:"zone_familiarity_scores"`
	AvgDeliverySuccessRate float64            `json:"avg_delivery_success_rate"`
	AvgSpeedMultiplier     float64            `json:"avg_speed_multiplier"`
	TotalDeliveries        int                `json:"total_deliveries"`
}

// RouteStop is a single stop in a rider's planned route. Each assigned
// order contributes exactly one pickup and one delivery stop, pickup first.
type RouteStop struct {
	Type               StopType   `json:"type"`
	OrderID            string     `json:"order_id"`
	Location           Location   `json:"location"`
	SequenceIndex      int        `json:"sequence_index"`
	EstimatedArrival   *time.Time `json:"estimated_arrival,omitempty"`
	EstimatedDeparture *time.Time `json:"estimated_departure,omitempty"`
}

// Rider represents a delivery rider available to the dispatcher
type Rider struct {
	ID                 string      `json:"id"`
	Status             RiderStatus `json:"status"`
	Location           Location    `json:"location"`
	Vehicle            Vehicle     `json:"vehicle"`
	Shift              Shift       `json:"shift"`
	Load               Load        `json:"load"`
	Performance        Performance `json:"performance"`
	CurrentAssignments []string    `json:"current_assignments"`
	CurrentRoute       []RouteStop `json:"current_route"`
}

// Validate validates the rider
func (r Rider) Validate() error {
	var errors ValidationErrors

	errors.AddIf(r.ID == "", "ID", r.ID, "ID cannot be empty")
	errors.AddIf(r.Vehicle.MaxWeightKg < 0, "Vehicle.MaxWeightKg", r.Vehicle.MaxWeightKg,
		"MaxWeightKg must be non-negative")
	errors.AddIf(r.Load.WeightKg > r.Vehicle.MaxWeightKg, "Load.WeightKg", r.Load.WeightKg,
		"load weight exceeds vehicle capacity")
	errors.AddIf(r.Load.VolumeLiters > r.Vehicle.MaxVolumeLiters, "Load.VolumeLiters", r.Load.VolumeLiters,
		"load volume exceeds vehicle capacity")
	errors.AddIf(r.Load.ItemCount > r.Vehicle.MaxItems, "Load.ItemCount", r.Load.ItemCount,
		"load item count exceeds vehicle capacity")

	if err := r.Location.Validate(); err != nil {
		errors.Add("Location", r.Location, err.Error())
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// IsAvailable reports whether the rider can receive new assignments
func (r Rider) IsAvailable() bool {
	return r.Status == RIDER_ACTIVE || r.Status == RIDER_ON_DELIVERY
}

// RemainingWeightKg returns the free weight capacity
func (r Rider) RemainingWeightKg() float64 {
	return r.Vehicle.MaxWeightKg - r.Load.WeightKg
}

// RemainingVolumeLiters returns the free volume capacity
func (r Rider) RemainingVolumeLiters() float64 {
	return r.Vehicle.MaxVolumeLiters - r.Load.VolumeLiters
}

// RemainingItems returns the free item capacity
func (r Rider) RemainingItems() int {
	return r.Vehicle.MaxItems - r.Load.ItemCount
}

// CanCarry reports whether the rider's remaining capacity fits the payload
func (r Rider) CanCarry(p Payload) bool {
	return r.RemainingWeightKg() >= p.WeightKg &&
		r.RemainingVolumeLiters() >= p.VolumeLiters &&
		r.RemainingItems() >= p.ItemCount
}

// ZoneFamiliarity returns the rider's familiarity score for a zone key,
// or 0 when the zone has never been visited.
func (r Rider) ZoneFamiliarity(zoneKey string) float64 {
	if r.Performance.ZoneFamiliarityScores == nil {
		return 0
	}
	return r.Performance.ZoneFamiliarityScores[zoneKey]
}
