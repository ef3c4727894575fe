// Package batching sequences multiple orders for a single rider using
// cheapest-insertion construction followed by 2-opt improvement. The
// emitted stop list pairs each order's pickup before its delivery.
package batching

import (
	"errors"
	"math"

	"github.com/fleetloop/lastmile-dispatch/pkg/geo"
	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

var (
	// ErrBatchTooLarge is returned when the order count exceeds the
	// vehicle's batch limit.
	ErrBatchTooLarge = errors.New("batch exceeds vehicle batch size limit")

	// ErrCapacityExceeded is returned when the aggregate payload does
	// not fit the vehicle.
	ErrCapacityExceeded = errors.New("aggregate payload exceeds vehicle capacity")

	// ErrEmptyBatch is returned when no orders are supplied.
	ErrEmptyBatch = errors.New("no orders to batch")
)

const (
	interOrderHopMinutes   = 10
	perOrderTravelMinutes  = 10
	deliveryServiceMinutes = 3
)

// Config holds the batching tunables.
type Config struct {
	MaxBatchSize            map[models.VehicleType]int
	MaxBatchDurationMinutes int
	TwoOptIterationLimit    int
}

// Result is an optimized batch: the paired stop list, total route
// distance, a coarse duration estimate, and the order visit sequence.
type Result struct {
	Stops                []models.RouteStop `json:"stops"`
	TotalDistanceKm      float64            `json:"total_distance_km"`
	TotalDurationMinutes int                `json:"total_duration_minutes"`
	OrderSequence        []string           `json:"order_sequence"`
}

// Optimizer builds batched routes for riders.
type Optimizer struct {
	cfg Config
}

// NewOptimizer creates a batch optimizer with the given config.
func NewOptimizer(cfg Config) *Optimizer {
	if cfg.TwoOptIterationLimit <= 0 {
		cfg.TwoOptIterationLimit = 100
	}
	return &Optimizer{cfg: cfg}
}

// Optimize sequences the orders for the rider. Returns an error when the
// batch is infeasible for the vehicle; callers treat that as "batch not
// feasible" rather than a fault.
func (o *Optimizer) Optimize(rider *models.Rider, orders []*models.Order) (*Result, error) {
	if len(orders) == 0 {
		return nil, ErrEmptyBatch
	}

	if limit, ok := o.cfg.MaxBatchSize[rider.Vehicle.Type]; ok && len(orders) > limit {
		return nil, ErrBatchTooLarge
	}

	var totalWeight, totalVolume float64
	totalItems := 0
	for _, order := range orders {
		totalWeight += order.Payload.WeightKg
		totalVolume += order.Payload.VolumeLiters
		totalItems += order.Payload.ItemCount
	}
	if totalWeight > rider.Vehicle.MaxWeightKg ||
		totalVolume > rider.Vehicle.MaxVolumeLiters ||
		totalItems > rider.Vehicle.MaxItems {
		return nil, ErrCapacityExceeded
	}

	sequence := cheapestInsertion(rider.Location, orders)
	sequence = o.twoOpt(rider.Location, sequence)

	return o.buildResult(rider.Location, sequence), nil
}

// cheapestInsertion seeds the sequence with the order nearest the rider,
// then repeatedly inserts the (order, position) pair with the minimum
// pickup-to-pickup triangle detour.
func cheapestInsertion(start models.Location, orders []*models.Order) []*models.Order {
	remaining := make([]*models.Order, len(orders))
	copy(remaining, orders)

	seedIdx := 0
	seedDist := math.MaxFloat64
	for i, order := range remaining {
		if d := geo.DistanceKm(start, order.Pickup.Location); d < seedDist {
			seedDist = d
			seedIdx = i
		}
	}

	sequence := []*models.Order{remaining[seedIdx]}
	remaining = append(remaining[:seedIdx], remaining[seedIdx+1:]...)

	for len(remaining) > 0 {
		bestOrder := -1
		bestPos := 0
		bestDetour := math.MaxFloat64

		for oi, order := range remaining {
			pickup := order.Pickup.Location
			for pos := 0; pos <= len(sequence); pos++ {
				prev := start
				if pos > 0 {
					prev = sequence[pos-1].Pickup.Location
				}

				var detour float64
				if pos == len(sequence) {
					detour = geo.DistanceKm(prev, pickup)
				} else {
					next := sequence[pos].Pickup.Location
					detour = geo.DistanceKm(prev, pickup) + geo.DistanceKm(pickup, next) - geo.DistanceKm(prev, next)
				}

				if detour < bestDetour {
					bestDetour = detour
					bestOrder = oi
					bestPos = pos
				}
			}
		}

		order := remaining[bestOrder]
		sequence = append(sequence, nil)
		copy(sequence[bestPos+1:], sequence[bestPos:])
		sequence[bestPos] = order
		remaining = append(remaining[:bestOrder], remaining[bestOrder+1:]...)
	}

	return sequence
}

// twoOpt improves the pickup sequence by reversing sub-sequences whose
// reversal shortens the total route, restarting the sweep on every
// accepted move up to the iteration limit.
func (o *Optimizer) twoOpt(start models.Location, sequence []*models.Order) []*models.Order {
	if len(sequence) < 3 {
		return sequence
	}

	iterations := 0
	improved := true
	for improved && iterations < o.cfg.TwoOptIterationLimit {
		improved = false
		iterations++

		current := sequenceDistance(start, sequence)
		for i := 0; i < len(sequence)-1 && !improved; i++ {
			for j := i + 2; j < len(sequence); j++ {
				candidate := make([]*models.Order, len(sequence))
				copy(candidate, sequence)
				reverse(candidate[i+1 : j+1])

				if sequenceDistance(start, candidate) < current {
					sequence = candidate
					improved = true
					break
				}
			}
		}
	}

	return sequence
}

func (o *Optimizer) buildResult(start models.Location, sequence []*models.Order) *Result {
	result := &Result{
		Stops:         make([]models.RouteStop, 0, len(sequence)*2),
		OrderSequence: make([]string, 0, len(sequence)),
	}

	seqIndex := 0
	for i, order := range sequence {
		result.OrderSequence = append(result.OrderSequence, order.ID)

		result.Stops = append(result.Stops, models.RouteStop{
			Type:          models.STOP_PICKUP,
			OrderID:       order.ID,
			Location:      order.Pickup.Location,
			SequenceIndex: seqIndex,
		})
		seqIndex++

		result.Stops = append(result.Stops, models.RouteStop{
			Type:          models.STOP_DELIVERY,
			OrderID:       order.ID,
			Location:      order.Delivery.Location,
			SequenceIndex: seqIndex,
		})
		seqIndex++

		result.TotalDurationMinutes += order.Pickup.EstimatedPickupWaitMinutes +
			perOrderTravelMinutes + deliveryServiceMinutes
		if i > 0 {
			result.TotalDurationMinutes += interOrderHopMinutes
		}
	}

	points := make([]models.Location, 0, len(result.Stops)+1)
	points = append(points, start)
	for _, stop := range result.Stops {
		points = append(points, stop.Location)
	}
	result.TotalDistanceKm = geo.RouteDistanceKm(points)

	return result
}

func sequenceDistance(start models.Location, sequence []*models.Order) float64 {
	total := 0.0
	prev := start
	for _, order := range sequence {
		total += geo.DistanceKm(prev, order.Pickup.Location)
		prev = order.Pickup.Location
	}
	return total
}

func reverse(orders []*models.Order) {
	for i, j := 0, len(orders)-1; i < j; i, j = i+1, j-1 {
		orders[i], orders[j] = orders[j], orders[i]
	}
}
