package assignment

import (
	"math"
)

// AuctionSolver approximates the minimum-cost matching with a forward
// auction: unassigned orders bid for riders by cost advantage, raising
// prices until the market clears or the round cap is hit. Converged
// assignments are returned even when the cap truncates the auction.
type AuctionSolver struct {
	// Epsilon is the minimum bid increment. Smaller values converge
	// closer to optimal at the price of more rounds.
	Epsilon float64

	// MaxIterations caps the bidding rounds.
	MaxIterations int
}

// Name returns the algorithm identifier.
func (a *AuctionSolver) Name() string {
	return AlgorithmAuction
}

// Optimize runs the auction over the matrix.
func (a *AuctionSolver) Optimize(m Matrix) Result {
	epsilon := a.Epsilon
	if epsilon <= 0 {
		epsilon = 0.01
	}
	maxIter := a.MaxIterations
	if maxIter <= 0 {
		maxIter = 1000
	}

	n := len(m.OrderIDs)
	r := len(m.RiderIDs)
	result := Result{
		Assignments: make(map[string]string),
		Algorithm:   AlgorithmAuction,
	}
	if n == 0 || r == 0 {
		return result
	}

	prices := make([]float64, r)
	orderOfRider := make([]int, r)
	riderOfOrder := make([]int, n)
	for j := range orderOfRider {
		orderOfRider[j] = -1
	}
	for i := range riderOfOrder {
		riderOfOrder[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		bidder := -1
		for i := 0; i < n; i++ {
			if riderOfOrder[i] == -1 {
				bidder = i
				break
			}
		}
		if bidder == -1 {
			break
		}

		// Value of rider j to the bidder is -(cost + price); find the
		// best and second-best feasible riders.
		bestJ := -1
		bestValue := math.Inf(-1)
		secondValue := math.Inf(-1)
		for j := 0; j < r; j++ {
			if m.Cost[bidder][j] >= SentinelCost {
				continue
			}
			value := -(m.Cost[bidder][j] + prices[j])
			if value > bestValue {
				secondValue = bestValue
				bestValue = value
				bestJ = j
			} else if value > secondValue {
				secondValue = value
			}
		}

		if bestJ == -1 {
			// No feasible rider for this order; mark it out of the
			// auction so the remaining bidders can proceed.
			riderOfOrder[bidder] = -2
			continue
		}

		increment := epsilon
		if !math.IsInf(secondValue, -1) {
			increment = bestValue - secondValue + epsilon
		}
		prices[bestJ] += increment

		if prev := orderOfRider[bestJ]; prev >= 0 {
			riderOfOrder[prev] = -1
		}
		orderOfRider[bestJ] = bidder
		riderOfOrder[bidder] = bestJ
	}

	for i := 0; i < n; i++ {
		j := riderOfOrder[i]
		if j < 0 {
			continue
		}
		result.Assignments[m.OrderIDs[i]] = m.RiderIDs[j]
		result.TotalCost += m.Cost[i][j]
	}

	return result
}
