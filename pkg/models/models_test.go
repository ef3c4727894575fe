package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_Validate(t *testing.T) {
	assert.NoError(t, Location{Lat: 12.97, Lng: 77.59}.Validate())
	assert.NoError(t, Location{Lat: -90, Lng: 180}.Validate())
	assert.Error(t, Location{Lat: 91, Lng: 0}.Validate())
	assert.Error(t, Location{Lat: 0, Lng: -181}.Validate())
}

func TestLocation_ZoneKey(t *testing.T) {
	assert.Equal(t, "zone_25_155", Location{Lat: 12.97, Lng: 77.59}.ZoneKey())
	assert.Equal(t, "zone_25_155", Location{Lat: 12.99, Lng: 77.60}.ZoneKey())
	assert.Equal(t, "zone_26_155", Location{Lat: 13.01, Lng: 77.60}.ZoneKey())
	// Negative coordinates floor away from zero.
	assert.Equal(t, "zone_-1_-1", Location{Lat: -0.2, Lng: -0.2}.ZoneKey())
}

func TestLocation_DistanceKm(t *testing.T) {
	a := Location{Lat: 12.9716, Lng: 77.5946}
	b := Location{Lat: 13.0358, Lng: 77.5970}

	assert.Equal(t, 0.0, a.DistanceKm(a))
	assert.InDelta(t, a.DistanceKm(b), b.DistanceKm(a), 1e-5)
}

func TestOrder_Validate(t *testing.T) {
	order := Order{
		ID:     "o1",
		Pickup: PickupPoint{Location: Location{Lat: 12.97, Lng: 77.59}},
		Delivery: DeliveryPoint{
			Location: Location{Lat: 12.98, Lng: 77.60},
		},
		Payload: Payload{WeightKg: 1, VolumeLiters: 1, ItemCount: 1},
	}
	assert.NoError(t, order.Validate())

	order.ID = ""
	order.Payload.WeightKg = -1
	err := order.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestOrder_SLAMinutesRemaining(t *testing.T) {
	now := time.Now()
	order := Order{SLADeadline: now.Add(30 * time.Minute)}

	assert.InDelta(t, 30, order.SLAMinutesRemaining(now), 1e-9)
	assert.Less(t, order.SLAMinutesRemaining(now.Add(time.Hour)), 0.0)
}

func TestRider_CanCarry(t *testing.T) {
	rider := Rider{
		Vehicle: Vehicle{MaxWeightKg: 5, MaxVolumeLiters: 40, MaxItems: 3},
		Load:    Load{WeightKg: 3, VolumeLiters: 10, ItemCount: 2},
	}

	assert.True(t, rider.CanCarry(Payload{WeightKg: 2, VolumeLiters: 30, ItemCount: 1}))
	assert.False(t, rider.CanCarry(Payload{WeightKg: 2.5, VolumeLiters: 1, ItemCount: 1}))
	assert.False(t, rider.CanCarry(Payload{WeightKg: 1, VolumeLiters: 1, ItemCount: 2}))
}

func TestRider_IsAvailable(t *testing.T) {
	assert.True(t, Rider{Status: RIDER_ACTIVE}.IsAvailable())
	assert.True(t, Rider{Status: RIDER_ON_DELIVERY}.IsAvailable())
	assert.False(t, Rider{Status: RIDER_BREAK}.IsAvailable())
	assert.False(t, Rider{Status: RIDER_OFFLINE}.IsAvailable())
}

func TestRider_Validate_LoadWithinCapacity(t *testing.T) {
	rider := Rider{
		ID:       "r1",
		Location: Location{Lat: 12.97, Lng: 77.59},
		Vehicle:  Vehicle{MaxWeightKg: 5, MaxVolumeLiters: 40, MaxItems: 3},
		Load:     Load{WeightKg: 6},
	}

	err := rider.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds vehicle capacity")
}

func TestVehicle_HasCapability(t *testing.T) {
	v := Vehicle{Capabilities: []VehicleCapability{CAP_COLD_CHAIN}}
	assert.True(t, v.HasCapability(CAP_COLD_CHAIN))
	assert.False(t, v.HasCapability(CAP_FRAGILE))
}

func TestValidationErrors_Accumulation(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())

	errs.AddIf(false, "skipped", nil, "never added")
	errs.AddIf(true, "field_a", 1, "bad value")
	errs.Add("field_b", "x", "also bad")

	require.True(t, errs.HasErrors())
	assert.Len(t, errs, 2)
	assert.Contains(t, errs.Error(), "field_a")
	assert.Contains(t, errs.Error(), "1 more error")
}
