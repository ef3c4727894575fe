package batching

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

func batchConfig() Config {
	return Config{
		MaxBatchSize: map[models.VehicleType]int{
			models.VEHICLE_BIKE: 3,
			models.VEHICLE_CAR:  5,
			models.VEHICLE_VAN:  8,
		},
		MaxBatchDurationMinutes: 90,
		TwoOptIterationLimit:    100,
	}
}

func vanRider() *models.Rider {
	return &models.Rider{
		ID:       "van_1",
		Status:   models.RIDER_ACTIVE,
		Location: models.Location{Lat: 12.9700, Lng: 77.5900},
		Vehicle: models.Vehicle{
			Type:            models.VEHICLE_VAN,
			MaxWeightKg:     200,
			MaxVolumeLiters: 1000,
			MaxItems:        8,
		},
	}
}

func batchOrder(id string, pickupLat, pickupLng float64) *models.Order {
	return &models.Order{
		ID: id,
		Pickup: models.PickupPoint{
			Location:                   models.Location{Lat: pickupLat, Lng: pickupLng},
			EstimatedPickupWaitMinutes: 3,
		},
		Delivery: models.DeliveryPoint{
			Location: models.Location{Lat: pickupLat + 0.005, Lng: pickupLng + 0.005},
		},
		Payload: models.Payload{WeightKg: 2, VolumeLiters: 5, ItemCount: 1},
	}
}

func TestOptimize_EmptyBatch(t *testing.T) {
	o := NewOptimizer(batchConfig())
	_, err := o.Optimize(vanRider(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestOptimize_BatchSizeLimit(t *testing.T) {
	o := NewOptimizer(batchConfig())

	rider := vanRider()
	rider.Vehicle.Type = models.VEHICLE_BIKE
	rider.Vehicle.MaxItems = 10

	orders := make([]*models.Order, 4)
	for i := range orders {
		orders[i] = batchOrder(fmt.Sprintf("o%d", i), 12.97+float64(i)*0.002, 77.59)
	}

	_, err := o.Optimize(rider, orders)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestOptimize_AggregateCapacity(t *testing.T) {
	o := NewOptimizer(batchConfig())

	rider := vanRider()
	rider.Vehicle.MaxWeightKg = 3

	orders := []*models.Order{
		batchOrder("o1", 12.97, 77.59),
		batchOrder("o2", 12.975, 77.595),
	}

	_, err := o.Optimize(rider, orders)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestOptimize_PickupPrecedesDelivery(t *testing.T) {
	o := NewOptimizer(batchConfig())

	orders := []*models.Order{
		batchOrder("o1", 12.97, 77.59),
		batchOrder("o2", 12.98, 77.60),
		batchOrder("o3", 12.99, 77.61),
	}

	result, err := o.Optimize(vanRider(), orders)
	require.NoError(t, err)
	require.Len(t, result.Stops, 6)

	pickupIndex := map[string]int{}
	deliveryIndex := map[string]int{}
	for _, stop := range result.Stops {
		switch stop.Type {
		case models.STOP_PICKUP:
			pickupIndex[stop.OrderID] = stop.SequenceIndex
		case models.STOP_DELIVERY:
			deliveryIndex[stop.OrderID] = stop.SequenceIndex
		}
	}

	for _, order := range orders {
		require.Contains(t, pickupIndex, order.ID)
		require.Contains(t, deliveryIndex, order.ID)
		assert.Less(t, pickupIndex[order.ID], deliveryIndex[order.ID], order.ID)
	}
}

func TestOptimize_SequentialStopIndexes(t *testing.T) {
	o := NewOptimizer(batchConfig())

	orders := []*models.Order{
		batchOrder("o1", 12.97, 77.59),
		batchOrder("o2", 12.98, 77.60),
	}

	result, err := o.Optimize(vanRider(), orders)
	require.NoError(t, err)

	for i, stop := range result.Stops {
		assert.Equal(t, i, stop.SequenceIndex)
		assert.NotZero(t, stop.Location.Lat)
		assert.NotZero(t, stop.Location.Lng)
	}
}

func TestOptimize_NearestPickupFirst(t *testing.T) {
	o := NewOptimizer(batchConfig())

	// The rider starts next to o_near; a due-south sweep is optimal.
	orders := []*models.Order{
		batchOrder("o_far", 13.05, 77.59),
		batchOrder("o_near", 12.971, 77.59),
		batchOrder("o_mid", 13.00, 77.59),
	}

	result, err := o.Optimize(vanRider(), orders)
	require.NoError(t, err)
	assert.Equal(t, []string{"o_near", "o_mid", "o_far"}, result.OrderSequence)
}

func TestOptimize_DurationAccounting(t *testing.T) {
	o := NewOptimizer(batchConfig())

	orders := []*models.Order{
		batchOrder("o1", 12.97, 77.59),
		batchOrder("o2", 12.975, 77.595),
	}

	result, err := o.Optimize(vanRider(), orders)
	require.NoError(t, err)

	// Per order: 3 min wait + 10 travel + 3 service; plus one 10 min
	// inter-order hop.
	assert.Equal(t, 2*(3+10+3)+10, result.TotalDurationMinutes)
	assert.Greater(t, result.TotalDistanceKm, 0.0)
}

func TestOptimize_SingleOrder(t *testing.T) {
	o := NewOptimizer(batchConfig())

	result, err := o.Optimize(vanRider(), []*models.Order{batchOrder("only", 12.98, 77.60)})
	require.NoError(t, err)

	require.Len(t, result.Stops, 2)
	assert.Equal(t, models.STOP_PICKUP, result.Stops[0].Type)
	assert.Equal(t, models.STOP_DELIVERY, result.Stops[1].Type)
	assert.Equal(t, []string{"only"}, result.OrderSequence)
}

func TestTwoOpt_ImprovesCrossedRoute(t *testing.T) {
	o := NewOptimizer(batchConfig())
	start := models.Location{Lat: 12.95, Lng: 77.59}

	// Deliberately interleaved north-south pickups.
	crossed := []*models.Order{
		batchOrder("a", 12.96, 77.59),
		batchOrder("c", 13.00, 77.59),
		batchOrder("b", 12.98, 77.59),
		batchOrder("d", 13.02, 77.59),
	}

	improved := o.twoOpt(start, crossed)
	assert.LessOrEqual(t,
		sequenceDistance(start, improved),
		sequenceDistance(start, crossed))
}
