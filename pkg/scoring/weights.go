package scoring

import (
	"math"
)

// weightSumTolerance bounds how far the six weights may drift from 1.0.
const weightSumTolerance = 0.01

// Weights holds the six scoring factor weights. Accepted configurations
// must sum to 1.0 within the tolerance.
type Weights struct {
	Time            float64 `json:"w1_time"`
	SLARisk         float64 `json:"w2_sla_risk"`
	Distance        float64 `json:"w3_distance"`
	BatchDisruption float64 `json:"w4_batch_disruption"`
	Workload        float64 `json:"w5_workload"`
	Affinity        float64 `json:"w6_affinity"`
}

// DefaultWeights returns the stock weight profile.
func DefaultWeights() Weights {
	return Weights{
		Time:            0.30,
		SLARisk:         0.25,
		Distance:        0.15,
		BatchDisruption: 0.10,
		Workload:        0.10,
		Affinity:        0.10,
	}
}

// Sum returns the sum of all weights
func (w Weights) Sum() float64 {
	return w.Time + w.SLARisk + w.Distance + w.BatchDisruption + w.Workload + w.Affinity
}

// IsNormalized reports whether the weights sum to 1.0 within tolerance
func (w Weights) IsNormalized() bool {
	return math.Abs(w.Sum()-1.0) <= weightSumTolerance
}

// Normalize rescales the weights to sum to 1.0. Zero weights fall back
// to the default profile.
func (w *Weights) Normalize() {
	sum := w.Sum()
	if sum == 0 {
		*w = DefaultWeights()
		return
	}
	w.Time /= sum
	w.SLARisk /= sum
	w.Distance /= sum
	w.BatchDisruption /= sum
	w.Workload /= sum
	w.Affinity /= sum
}
