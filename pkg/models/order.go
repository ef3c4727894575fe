package models

import (
	"time"
)

// PickupPoint describes where an order is collected
type PickupPoint struct {
	Location                   Location   `json:"location"`
	Address                    string     `json:"address"`
	StoreID                    string     `json:"store_id"`
	EstimatedPickupWaitMinutes int        `json:"estimated_pickup_wait_minutes"`
	OpenTime                   *time.Time `json:"open_time,omitempty"`
	CloseTime                  *time.Time `json:"close_time,omitempty"`
}

// DeliveryPoint describes where an order is dropped off
type DeliveryPoint struct {
	Location             Location   `json:"location"`
	Address              string     `json:"address"`
	CustomerID           string     `json:"customer_id"`
	PreferredWindowStart *time.Time `json:"preferred_window_start,omitempty"`
	PreferredWindowEnd   *time.Time `json:"preferred_window_end,omitempty"`
}

// Payload describes the physical characteristics of an order
type Payload struct {
	WeightKg           float64            `json:"weight_kg"`
	VolumeLiters       float64            `json:"volume_liters"`
	ItemCount          int                `json:"item_count"`
	RequiresColdChain  bool               `json:"requires_cold_chain"`
	Fragile            bool               `json:"fragile"`
	VehicleRequirement VehicleRequirement `json:"vehicle_requirement"`
}

// Order represents a delivery order flowing through the assignment cycle
type Order struct {
	ID                 string        `json:"id"`
	Status             OrderStatus   `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	SLADeadline        time.Time     `json:"sla_deadline"`
	Pickup             PickupPoint   `json:"pickup"`
	Delivery           DeliveryPoint `json:"delivery"`
	Payload            Payload       `json:"payload"`
	Priority           OrderPriority `json:"priority"`
	AssignmentAttempts int           `json:"assignment_attempts"`
	AssignedRiderID    string        `json:"assigned_rider_id"`
}

// Validate validates the order
func (o Order) Validate() error {
	var errors ValidationErrors

	errors.AddIf(o.ID == "", "ID", o.ID, "ID cannot be empty")
	errors.AddIf(o.Payload.WeightKg < 0, "Payload.WeightKg", o.Payload.WeightKg,
		"WeightKg must be non-negative")
	errors.AddIf(o.Payload.VolumeLiters < 0, "Payload.VolumeLiters", o.Payload.VolumeLiters,
		"VolumeLiters must be non-negative")
	errors.AddIf(o.Payload.ItemCount < 0, "Payload.ItemCount", o.Payload.ItemCount,
		"ItemCount must be non-negative")

	if err := o.Pickup.Location.Validate(); err != nil {
		errors.Add("Pickup.Location", o.Pickup.Location, err.Error())
	}
	if err := o.Delivery.Location.Validate(); err != nil {
		errors.Add("Delivery.Location", o.Delivery.Location, err.Error())
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// IsPending reports whether the order is waiting for assignment
func (o Order) IsPending() bool {
	return o.Status == PENDING_ASSIGNMENT
}

// SLAMinutesRemaining returns the minutes between now and the SLA deadline.
// Negative values indicate the deadline has already passed.
func (o Order) SLAMinutesRemaining(now time.Time) float64 {
	return o.SLADeadline.Sub(now).Minutes()
}
