package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrix3x3() Matrix {
	return Matrix{
		OrderIDs: []string{"o1", "o2", "o3"},
		RiderIDs: []string{"r1", "r2", "r3"},
		Cost: [][]float64{
			{0.5, 0.8, 0.7},
			{0.6, 0.4, 0.5},
			{0.9, 0.3, 0.6},
		},
	}
}

func TestHungarian_OptimalOn3x3(t *testing.T) {
	solver := &HungarianSolver{Timeout: time.Second}
	result, ok := solver.TrySolve(matrix3x3())
	require.True(t, ok)

	require.Len(t, result.Assignments, 3)
	assert.Equal(t, "r1", result.Assignments["o1"])
	assert.Equal(t, "r3", result.Assignments["o2"])
	assert.Equal(t, "r2", result.Assignments["o3"])
	assert.InDelta(t, 1.3, result.TotalCost, 1e-9)
	assert.Equal(t, AlgorithmHungarian, result.Algorithm)
}

func TestHungarian_NeverWorseThanGreedy(t *testing.T) {
	// Greedy's per-order minima land on distinct riders here, so its
	// output is a valid matching the exact solver must not exceed.
	m := Matrix{
		OrderIDs: []string{"o1", "o2"},
		RiderIDs: []string{"r1", "r2"},
		Cost: [][]float64{
			{0.1, 0.5},
			{0.6, 0.2},
		},
	}

	hungarian := &HungarianSolver{Timeout: time.Second}
	exact, ok := hungarian.TrySolve(m)
	require.True(t, ok)

	greedy := (&GreedySolver{}).Optimize(m)
	assert.LessOrEqual(t, exact.TotalCost, greedy.TotalCost)
}

func TestHungarian_RectangularMoreRidersThanOrders(t *testing.T) {
	m := Matrix{
		OrderIDs: []string{"o1"},
		RiderIDs: []string{"r1", "r2", "r3"},
		Cost:     [][]float64{{0.9, 0.2, 0.5}},
	}

	result, ok := (&HungarianSolver{Timeout: time.Second}).TrySolve(m)
	require.True(t, ok)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, "r2", result.Assignments["o1"])
}

func TestHungarian_SentinelPairsExcluded(t *testing.T) {
	m := Matrix{
		OrderIDs: []string{"o1", "o2"},
		RiderIDs: []string{"r1"},
		Cost: [][]float64{
			{0.4},
			{SentinelCost},
		},
	}

	result, ok := (&HungarianSolver{Timeout: time.Second}).TrySolve(m)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"o1": "r1"}, result.Assignments)
}

func TestAuction_MatchesHungarianOnSmallMatrix(t *testing.T) {
	auction := &AuctionSolver{}
	result := auction.Optimize(matrix3x3())

	require.Len(t, result.Assignments, 3)
	// epsilon-optimal: within n*epsilon of the optimum
	assert.InDelta(t, 1.3, result.TotalCost, 3*0.01+1e-9)
	assert.Equal(t, AlgorithmAuction, result.Algorithm)
}

func TestAuction_InfeasibleOrderLeftOut(t *testing.T) {
	m := Matrix{
		OrderIDs: []string{"o1", "o2"},
		RiderIDs: []string{"r1"},
		Cost: [][]float64{
			{0.4},
			{SentinelCost},
		},
	}

	result := (&AuctionSolver{}).Optimize(m)
	assert.Equal(t, map[string]string{"o1": "r1"}, result.Assignments)
}

func TestGreedy_PicksMinPerOrder(t *testing.T) {
	result := (&GreedySolver{}).Optimize(matrix3x3())

	require.Len(t, result.Assignments, 3)
	assert.Equal(t, "r1", result.Assignments["o1"])
	assert.Equal(t, "r2", result.Assignments["o2"])
	assert.Equal(t, "r2", result.Assignments["o3"])
	assert.Equal(t, AlgorithmGreedy, result.Algorithm)
}

func TestGreedy_SkipsFullySentinelRows(t *testing.T) {
	m := Matrix{
		OrderIDs: []string{"o1"},
		RiderIDs: []string{"r1", "r2"},
		Cost:     [][]float64{{SentinelCost, SentinelCost}},
	}

	result := (&GreedySolver{}).Optimize(m)
	assert.Empty(t, result.Assignments)
}

func TestAdaptiveOptimizer_SmallProblemUsesHungarian(t *testing.T) {
	opt := NewAdaptiveOptimizer(Config{})
	result := opt.Optimize(matrix3x3())
	assert.Equal(t, AlgorithmHungarian, result.Algorithm)
}

func TestAdaptiveOptimizer_LargeProblemDowngrades(t *testing.T) {
	opt := NewAdaptiveOptimizer(Config{HungarianThreshold: 4, AuctionThreshold: 8})

	result := opt.Optimize(matrix3x3())
	assert.Equal(t, AlgorithmGreedy, result.Algorithm)
	assert.Len(t, result.Assignments, 3)
}

func TestAdaptiveOptimizer_ForceGreedy(t *testing.T) {
	opt := NewAdaptiveOptimizer(Config{})
	result := opt.ForceGreedy(matrix3x3())
	assert.Equal(t, AlgorithmGreedy, result.Algorithm)
}

func TestOptimize_EmptyMatrix(t *testing.T) {
	opt := NewAdaptiveOptimizer(Config{})
	result := opt.Optimize(Matrix{})
	assert.Empty(t, result.Assignments)
}

func TestGreedy_100x50CompletesQuickly(t *testing.T) {
	m := Matrix{
		OrderIDs: make([]string, 100),
		RiderIDs: make([]string, 50),
		Cost:     make([][]float64, 100),
	}
	for i := 0; i < 100; i++ {
		m.OrderIDs[i] = orderName(i)
		m.Cost[i] = make([]float64, 50)
		for j := 0; j < 50; j++ {
			m.Cost[i][j] = float64((i*53+j*17)%100) / 100
		}
	}
	for j := 0; j < 50; j++ {
		m.RiderIDs[j] = riderName(j)
	}

	started := time.Now()
	result := (&GreedySolver{}).Optimize(m)
	elapsed := time.Since(started)

	assert.Len(t, result.Assignments, 100)
	assert.Less(t, elapsed, 100*time.Millisecond)
}

func orderName(i int) string {
	return "order_" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func riderName(i int) string {
	return "rider_" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}
