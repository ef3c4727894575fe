package assignment

import (
	"time"
)

// defaultAuctionThreshold is the problem-size ceiling for the auction
// solver; larger problems drop to greedy.
const defaultAuctionThreshold = 50000

// AdaptiveOptimizer selects a solver by problem size: exact Hungarian up
// to the configured threshold, auction up to the auction ceiling, greedy
// beyond that. A Hungarian timeout falls through to the auction solver
// with a best-effort partial result.
type AdaptiveOptimizer struct {
	cfg       Config
	hungarian *HungarianSolver
	auction   *AuctionSolver
	greedy    *GreedySolver
}

// NewAdaptiveOptimizer creates the size-adaptive dispatcher.
func NewAdaptiveOptimizer(cfg Config) *AdaptiveOptimizer {
	if cfg.HungarianThreshold <= 0 {
		cfg.HungarianThreshold = 10000
	}
	if cfg.AuctionThreshold <= 0 {
		cfg.AuctionThreshold = defaultAuctionThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	return &AdaptiveOptimizer{
		cfg:       cfg,
		hungarian: &HungarianSolver{Timeout: cfg.Timeout},
		auction:   &AuctionSolver{Epsilon: 0.01, MaxIterations: 1000},
		greedy:    &GreedySolver{},
	}
}

// Optimize solves the matrix with the solver matched to its size.
func (o *AdaptiveOptimizer) Optimize(m Matrix) Result {
	size := m.ProblemSize()

	switch {
	case size <= o.cfg.HungarianThreshold:
		if result, ok := o.hungarian.TrySolve(m); ok {
			return result
		}
		return o.auction.Optimize(m)
	case size <= o.cfg.AuctionThreshold:
		return o.auction.Optimize(m)
	default:
		return o.greedy.Optimize(m)
	}
}

// ForceGreedy solves with the greedy approximation regardless of size.
// The surge handler requests this under crisis load.
func (o *AdaptiveOptimizer) ForceGreedy(m Matrix) Result {
	return o.greedy.Optimize(m)
}

// Name identifies the dispatcher for telemetry.
func (o *AdaptiveOptimizer) Name() string {
	return "adaptive"
}
