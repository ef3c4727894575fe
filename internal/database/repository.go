package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

// Repository provides data access methods for cycle history.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveCycle persists a completed cycle with all its decisions in one
// transaction.
func (r *Repository) SaveCycle(result *models.AssignmentCycleResult, pendingOrders int, demandSupplyRatio float64) error {
	record := &CycleRecord{
		ID:                   result.CycleID,
		Timestamp:            result.Timestamp,
		SurgeLevel:           string(result.SurgeLevel),
		Algorithm:            result.Algorithm,
		PendingOrders:        pendingOrders,
		SuccessCount:         result.SuccessCount,
		FailureCount:         result.FailureCount,
		AvgCost:              result.Metrics.AvgCost,
		TotalSLASlackMinutes: result.Metrics.TotalSLASlackMinutes,
		DemandSupplyRatio:    demandSupplyRatio,
	}

	decisions := make([]DecisionRecord, 0, len(result.Decisions))
	for _, d := range result.Decisions {
		decisions = append(decisions, DecisionRecord{
			CycleID:             result.CycleID,
			OrderID:             d.OrderID,
			RiderID:             d.RiderID,
			SequenceIndex:       d.SequenceIndex,
			TotalCost:           d.Cost,
			TimeCost:            d.Breakdown.TimeCost,
			SLARiskCost:         d.Breakdown.SLARiskCost,
			DistanceCost:        d.Breakdown.DistanceCost,
			BatchDisruptionCost: d.Breakdown.BatchDisruptionCost,
			WorkloadCost:        d.Breakdown.WorkloadCost,
			AffinityCost:        d.Breakdown.AffinityCost,
		})
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to save cycle record: %w", err)
		}
		if len(decisions) > 0 {
			if err := tx.CreateInBatches(decisions, 100).Error; err != nil {
				return fmt.Errorf("failed to save decision records: %w", err)
			}
		}
		return nil
	})
}

// GetCycle retrieves a cycle record by ID.
func (r *Repository) GetCycle(id string) (*CycleRecord, error) {
	var record CycleRecord
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListCycles lists the most recent cycles, newest first.
func (r *Repository) ListCycles(limit int) ([]CycleRecord, error) {
	var records []CycleRecord
	query := r.db.Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// GetCyclesInRange retrieves cycles within a time range, oldest first.
func (r *Repository) GetCyclesInRange(start, end time.Time) ([]CycleRecord, error) {
	var records []CycleRecord
	err := r.db.Where("timestamp BETWEEN ? AND ?", start, end).
		Order("timestamp ASC").
		Find(&records).Error
	return records, err
}

// GetDecisions retrieves the decisions of one cycle.
func (r *Repository) GetDecisions(cycleID string) ([]DecisionRecord, error) {
	var decisions []DecisionRecord
	err := r.db.Where("cycle_id = ?", cycleID).
		Order("order_id ASC").
		Find(&decisions).Error
	return decisions, err
}

// GetOrderHistory retrieves every decision ever made for an order,
// oldest first. Useful when auditing reassignment chains.
func (r *Repository) GetOrderHistory(orderID string) ([]DecisionRecord, error) {
	var decisions []DecisionRecord
	err := r.db.Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&decisions).Error
	return decisions, err
}

// SaveReassignment persists one applied reassignment event.
func (r *Repository) SaveReassignment(event models.ReassignmentEvent, now time.Time) error {
	return r.db.Create(&ReassignmentRecord{
		Timestamp:   now,
		OrderID:     event.OrderID,
		FromRiderID: event.FromRiderID,
		TriggerKind: event.TriggerKind,
		Detail:      event.Detail,
		Attempt:     event.Attempt,
	}).Error
}

// GetReassignments retrieves the reassignment history for an order.
func (r *Repository) GetReassignments(orderID string) ([]ReassignmentRecord, error) {
	var records []ReassignmentRecord
	err := r.db.Where("order_id = ?", orderID).
		Order("timestamp ASC").
		Find(&records).Error
	return records, err
}

// SaveSurgeState records a surge observation.
func (r *Repository) SaveSurgeState(state models.SurgeState, now time.Time) error {
	return r.db.Create(&SurgeRecord{
		Timestamp:         now,
		Level:             string(state.Level),
		DemandSupplyRatio: state.DemandSupplyRatio,
		PendingOrderCount: state.PendingOrderCount,
		AvailableCapacity: state.AvailableCapacity,
	}).Error
}

// GetSurgeHistory retrieves surge observations within a window.
func (r *Repository) GetSurgeHistory(start, end time.Time) ([]SurgeRecord, error) {
	var records []SurgeRecord
	err := r.db.Where("timestamp BETWEEN ? AND ?", start, end).
		Order("timestamp ASC").
		Find(&records).Error
	return records, err
}

// GetSummary aggregates dispatch statistics across all recorded cycles.
func (r *Repository) GetSummary() (map[string]interface{}, error) {
	summary := make(map[string]interface{})

	var stats struct {
		TotalCycles   int64
		TotalSuccess  int64
		TotalFailures int64
		AvgCost       float64
		MaxRatio      float64
	}

	if err := r.db.Model(&CycleRecord{}).Count(&stats.TotalCycles).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate cycles: %w", err)
	}

	r.db.Model(&CycleRecord{}).
		Select("COALESCE(SUM(success_count),0) as total_success, " +
			"COALESCE(SUM(failure_count),0) as total_failures, " +
			"COALESCE(AVG(avg_cost),0) as avg_cost, " +
			"COALESCE(MAX(demand_supply_ratio),0) as max_ratio").
		Scan(&stats)

	var reassignments int64
	r.db.Model(&ReassignmentRecord{}).Count(&reassignments)

	summary["total_cycles"] = stats.TotalCycles
	summary["total_assignments"] = stats.TotalSuccess
	summary["total_failures"] = stats.TotalFailures
	summary["avg_cost"] = stats.AvgCost
	summary["max_demand_supply_ratio"] = stats.MaxRatio
	summary["total_reassignments"] = reassignments

	return summary, nil
}

// PruneBefore deletes cycle, decision, reassignment, and surge rows
// older than the cutoff.
func (r *Repository) PruneBefore(cutoff time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var old []CycleRecord
		if err := tx.Where("timestamp < ?", cutoff).Find(&old).Error; err != nil {
			return err
		}
		for _, record := range old {
			if err := tx.Where("cycle_id = ?", record.ID).Delete(&DecisionRecord{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("timestamp < ?", cutoff).Delete(&CycleRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("timestamp < ?", cutoff).Delete(&ReassignmentRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("timestamp < ?", cutoff).Delete(&SurgeRecord{}).Error
	})
}
