package surge

import (
	"math"
	"time"
)

const driftHistoryLimit = 100

// DriftDirection labels a sustained shift in the demand/supply ratio.
type DriftDirection int

const (
	DRIFT_NONE DriftDirection = iota
	DRIFT_UPWARD
	DRIFT_DOWNWARD
)

func (d DriftDirection) String() string {
	switch d {
	case DRIFT_UPWARD:
		return "upward"
	case DRIFT_DOWNWARD:
		return "downward"
	default:
		return "none"
	}
}

// DriftObservation is the outcome of feeding one cycle's ratio to the
// detector.
type DriftObservation struct {
	Ratio       float64        `json:"ratio"`
	PositiveSum float64        `json:"positive_sum"`
	NegativeSum float64        `json:"negative_sum"`
	Direction   DriftDirection `json:"direction"`
	Severity    float64        `json:"severity"`
	Shifted     bool           `json:"shifted"`
}

// DriftStats is a snapshot of the detector for telemetry.
type DriftStats struct {
	Reference    float64        `json:"reference"`
	Threshold    float64        `json:"threshold"`
	Slack        float64        `json:"slack"`
	PositiveSum  float64        `json:"positive_sum"`
	NegativeSum  float64        `json:"negative_sum"`
	ShiftCount   int            `json:"shift_count"`
	Observations int            `json:"observations"`
	LastShift    time.Time      `json:"last_shift,omitempty"`
	LastShiftDir DriftDirection `json:"last_shift_direction"`
}

// DriftDetector runs a two-sided CUSUM over per-cycle demand/supply
// ratios. The threshold classifier in Detect reacts to the current
// cycle in isolation; the detector flags a slow ramp that stays under
// every threshold, so operators see the shift before it escalates.
//
// Standard recursions, with mu0 re-centered on a rolling window:
//
//	C+ = max(0, C+ + (x - mu0) - k)
//	C- = max(0, C- - (x - mu0) - k)
//
// A shift fires when either sum exceeds h, after which both reset.
type DriftDetector struct {
	reference float64 // mu0, rolling mean of recent ratios
	slack     float64 // k, half the shift size worth detecting
	threshold float64 // h, detection bound

	positiveSum float64
	negativeSum float64

	history      []float64
	shiftCount   int
	lastShift    time.Time
	lastShiftDir DriftDirection
}

// NewDriftDetector seeds the detector around an expected ratio. With
// sigma the expected cycle-to-cycle ratio noise, the usual tuning is
// k = 0.5*sigma and h = 5*sigma.
func NewDriftDetector(reference, sigma float64) *DriftDetector {
	return &DriftDetector{
		reference: reference,
		slack:     0.5 * sigma,
		threshold: 5.0 * sigma,
		history:   make([]float64, 0, driftHistoryLimit),
	}
}

// Observe feeds one cycle's ratio and reports whether a sustained
// shift has accumulated.
func (d *DriftDetector) Observe(ratio float64, now time.Time) DriftObservation {
	d.history = append(d.history, ratio)
	if len(d.history) > driftHistoryLimit {
		d.history = d.history[len(d.history)-driftHistoryLimit:]
	}

	deviation := ratio - d.reference
	d.positiveSum = math.Max(0, d.positiveSum+deviation-d.slack)
	d.negativeSum = math.Max(0, d.negativeSum-deviation-d.slack)

	obs := DriftObservation{
		Ratio:       ratio,
		PositiveSum: d.positiveSum,
		NegativeSum: d.negativeSum,
		Direction:   DRIFT_NONE,
	}

	switch {
	case d.positiveSum > d.threshold:
		obs.Direction = DRIFT_UPWARD
		obs.Severity = d.positiveSum / d.threshold
	case d.negativeSum > d.threshold:
		obs.Direction = DRIFT_DOWNWARD
		obs.Severity = d.negativeSum / d.threshold
	}

	if obs.Direction != DRIFT_NONE {
		obs.Shifted = true
		d.shiftCount++
		d.lastShift = now
		d.lastShiftDir = obs.Direction
		// The sums restart so the next shift is measured from here, and
		// the reference snaps to the new operating level.
		d.positiveSum = 0
		d.negativeSum = 0
		d.reference = ratio
		return obs
	}

	d.recenter()
	return obs
}

// recenter drifts mu0 toward the recent mean so slow seasonal movement
// is absorbed instead of reported.
func (d *DriftDetector) recenter() {
	if len(d.history) < 10 {
		return
	}
	sum := 0.0
	for _, r := range d.history {
		sum += r
	}
	mean := sum / float64(len(d.history))
	d.reference = 0.9*d.reference + 0.1*mean
}

// Stats snapshots the detector state.
func (d *DriftDetector) Stats() DriftStats {
	return DriftStats{
		Reference:    d.reference,
		Threshold:    d.threshold,
		Slack:        d.slack,
		PositiveSum:  d.positiveSum,
		NegativeSum:  d.negativeSum,
		ShiftCount:   d.shiftCount,
		Observations: len(d.history),
		LastShift:    d.lastShift,
		LastShiftDir: d.lastShiftDir,
	}
}

// Reset clears accumulated state, keeping the tuning.
func (d *DriftDetector) Reset() {
	d.positiveSum = 0
	d.negativeSum = 0
	d.history = d.history[:0]
	d.shiftCount = 0
	d.lastShift = time.Time{}
	d.lastShiftDir = DRIFT_NONE
}
