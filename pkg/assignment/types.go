// Package assignment solves the global order-to-rider matching problem
// over a dense cost matrix. Three solvers share one contract: an exact
// O(n³) Hungarian algorithm, an auction approximation, and a greedy
// fallback for crisis-scale problems. The adaptive optimizer dispatches
// by problem size.
package assignment

import (
	"time"
)

// SentinelCost marks an (order, rider) pair as infeasible in the dense
// cost matrix. Solvers never return assignments at or above it.
const SentinelCost = 1e10

// Matrix is the dense cost matrix input: Cost[i][j] is the scorer cost
// of pairing OrderIDs[i] with RiderIDs[j], or SentinelCost when the pair
// is infeasible.
type Matrix struct {
	OrderIDs []string    `json:"order_ids"`
	RiderIDs []string    `json:"rider_ids"`
	Cost     [][]float64 `json:"cost"`
}

// ProblemSize returns n*m, the measure used to select a solver.
func (m Matrix) ProblemSize() int {
	return len(m.OrderIDs) * len(m.RiderIDs)
}

// Result is the solved matching: orderID -> riderID for every assigned
// pair, the total assigned cost, and the algorithm that produced it.
type Result struct {
	Assignments map[string]string `json:"assignments"`
	TotalCost   float64           `json:"total_cost"`
	Algorithm   string            `json:"algorithm"`
}

// Solver is the single capability shared by all three optimizers.
type Solver interface {
	Optimize(m Matrix) Result
	Name() string
}

// Config holds the adaptive strategy thresholds.
type Config struct {
	HungarianThreshold int
	AuctionThreshold   int
	Timeout            time.Duration
}

// Algorithm names reported in results for telemetry.
const (
	AlgorithmHungarian = "hungarian"
	AlgorithmAuction   = "auction"
	AlgorithmGreedy    = "greedy"
)
