package models

import (
	"fmt"
)

// OrderStatus represents the lifecycle state of a delivery order
type OrderStatus string

const (
	PENDING_ASSIGNMENT OrderStatus = "pending_assignment"
	ASSIGNED           OrderStatus = "assigned"
	PICKED_UP          OrderStatus = "picked_up"
	DELIVERED          OrderStatus = "delivered"
	CANCELLED          OrderStatus = "cancelled"
)

// OrderPriority represents the urgency class of an order
type OrderPriority string

const (
	PRIORITY_NORMAL   OrderPriority = "normal"
	PRIORITY_HIGH     OrderPriority = "high"
	PRIORITY_CRITICAL OrderPriority = "critical"
)

// RiderStatus represents the availability state of a rider
type RiderStatus string

const (
	RIDER_ACTIVE      RiderStatus = "active"
	RIDER_ON_DELIVERY RiderStatus = "on_delivery"
	RIDER_BREAK       RiderStatus = "break"
	RIDER_OFFLINE     RiderStatus = "offline"
)

// VehicleType represents the class of vehicle a rider operates
type VehicleType string

const (
	VEHICLE_BIKE VehicleType = "bike"
	VEHICLE_CAR  VehicleType = "car"
	VEHICLE_VAN  VehicleType = "van"
)

// VehicleRequirement constrains which vehicles may carry an order
type VehicleRequirement string

const (
	REQUIRE_ANY          VehicleRequirement = "any"
	REQUIRE_BIKE         VehicleRequirement = "bike"
	REQUIRE_CAR          VehicleRequirement = "car"
	REQUIRE_VAN          VehicleRequirement = "van"
	REQUIRE_REFRIGERATED VehicleRequirement = "refrigerated"
)

// VehicleCapability represents a handling capability of a vehicle
type VehicleCapability string

const (
	CAP_STANDARD   VehicleCapability = "standard"
	CAP_FRAGILE    VehicleCapability = "fragile"
	CAP_COLD_CHAIN VehicleCapability = "cold_chain"
)

// AssignmentStatus represents the lifecycle state of an assignment
type AssignmentStatus string

const (
	ASSIGNMENT_DISPATCHED AssignmentStatus = "dispatched"
	ASSIGNMENT_ACCEPTED   AssignmentStatus = "accepted"
	ASSIGNMENT_REJECTED   AssignmentStatus = "rejected"
	ASSIGNMENT_REASSIGNED AssignmentStatus = "reassigned"
	ASSIGNMENT_COMPLETED  AssignmentStatus = "completed"
)

// StopType distinguishes pickup and delivery stops in a rider route
type StopType string

const (
	STOP_PICKUP   StopType = "pickup"
	STOP_DELIVERY StopType = "delivery"
)

// Candidate failure reasons carried in per-order candidate results
const (
	FailureNoRidersInRadius    = "no_riders_in_service_radius"
	FailureAllRidersConstraint = "all_riders_failed_constraints"
)

// Hard-constraint check identifiers reported by the candidate generator
const (
	CheckCapacityExceeded     = "capacity_exceeded"
	CheckVehicleIncompatible  = "vehicle_incompatible"
	CheckShiftEndTime         = "shift_end_time"
	CheckFatigueLimitExceeded = "fatigue_limit_exceeded"
	CheckSLAInfeasible        = "sla_infeasible"
	CheckRiderUnavailable     = "rider_offline_or_unavailable"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s",
		ve.Field, ve.Value, ve.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", ve[0].Error(), len(ve)-1)
}

// HasErrors returns true if there are validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field string, value interface{}, message string) {
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// AddIf adds a validation error if the condition is true
func (ve *ValidationErrors) AddIf(condition bool, field string, value interface{}, message string) {
	if condition {
		ve.Add(field, value, message)
	}
}
