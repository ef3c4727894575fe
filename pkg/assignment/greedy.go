package assignment

import (
	"math"
)

// GreedySolver assigns each order its cheapest feasible rider with no
// uniqueness constraint on riders. This is an explicit approximation for
// crisis-scale problems where the exact matching is too expensive.
type GreedySolver struct{}

// Name returns the algorithm identifier.
func (g *GreedySolver) Name() string {
	return AlgorithmGreedy
}

// Optimize picks the minimum-cost rider per order independently.
func (g *GreedySolver) Optimize(m Matrix) Result {
	result := Result{
		Assignments: make(map[string]string),
		Algorithm:   AlgorithmGreedy,
	}

	for i, orderID := range m.OrderIDs {
		bestJ := -1
		bestCost := math.Inf(1)
		for j := range m.RiderIDs {
			if m.Cost[i][j] >= SentinelCost {
				continue
			}
			if m.Cost[i][j] < bestCost {
				bestCost = m.Cost[i][j]
				bestJ = j
			}
		}
		if bestJ == -1 {
			continue
		}
		result.Assignments[orderID] = m.RiderIDs[bestJ]
		result.TotalCost += bestCost
	}

	return result
}
