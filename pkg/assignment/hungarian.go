package assignment

import (
	"math"
	"time"
)

// HungarianSolver is the exact minimum-cost bipartite matcher, using the
// standard potentials-based O(n³) algorithm. The rectangular input is
// padded to a square with the sentinel cost; padded pairs are discarded
// from the output.
type HungarianSolver struct {
	// Timeout bounds the solve; zero means unbounded. On expiry the
	// partial state is abandoned and ok=false is reported via TrySolve.
	Timeout time.Duration
}

// Name returns the algorithm identifier.
func (h *HungarianSolver) Name() string {
	return AlgorithmHungarian
}

// Optimize solves the matching exactly. If the timeout expires the
// result falls back to a greedy pass over the same matrix.
func (h *HungarianSolver) Optimize(m Matrix) Result {
	if result, ok := h.TrySolve(m); ok {
		return result
	}
	return (&GreedySolver{}).Optimize(m)
}

// TrySolve runs the exact algorithm and reports whether it completed
// within the timeout.
func (h *HungarianSolver) TrySolve(m Matrix) (Result, bool) {
	n := len(m.OrderIDs)
	r := len(m.RiderIDs)
	result := Result{
		Assignments: make(map[string]string),
		Algorithm:   AlgorithmHungarian,
	}
	if n == 0 || r == 0 {
		return result, true
	}

	size := n
	if r > size {
		size = r
	}

	cost := make([][]float64, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		for j := range cost[i] {
			if i < n && j < r {
				cost[i][j] = m.Cost[i][j]
			} else {
				cost[i][j] = SentinelCost
			}
		}
	}

	var deadline time.Time
	if h.Timeout > 0 {
		deadline = time.Now().Add(h.Timeout)
	}

	rowOfCol, ok := solveSquare(cost, deadline)
	if !ok {
		return Result{}, false
	}

	for j := 0; j < r; j++ {
		i := rowOfCol[j]
		if i < 0 || i >= n {
			continue
		}
		if m.Cost[i][j] >= SentinelCost {
			continue
		}
		result.Assignments[m.OrderIDs[i]] = m.RiderIDs[j]
		result.TotalCost += m.Cost[i][j]
	}

	return result, true
}

// solveSquare runs the potentials algorithm on a square cost matrix and
// returns, for each column, the assigned row index. Rows and columns are
// 1-indexed internally; column 0 is the virtual start of each
// augmenting path.
func solveSquare(cost [][]float64, deadline time.Time) ([]int, bool) {
	n := len(cost)

	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, false
		}

		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := -1

			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	rowOfCol := make([]int, n)
	for j := 1; j <= n; j++ {
		rowOfCol[j-1] = p[j] - 1
	}
	return rowOfCol, true
}
