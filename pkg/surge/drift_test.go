package surge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func driftClock() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestDriftDetector_SteadyRatiosStayQuiet(t *testing.T) {
	d := NewDriftDetector(1.0, 0.15)
	now := driftClock()

	for _, ratio := range []float64{1.0, 1.05, 0.95, 1.02, 0.98, 1.0} {
		obs := d.Observe(ratio, now)
		assert.False(t, obs.Shifted, "ratio %.2f", ratio)
		assert.Equal(t, DRIFT_NONE, obs.Direction)
	}

	assert.Equal(t, 0, d.Stats().ShiftCount)
}

func TestDriftDetector_SlowRampDetectedUpward(t *testing.T) {
	d := NewDriftDetector(1.0, 0.15)
	now := driftClock()

	// Each step is small against the noise band, but the ramp
	// accumulates past h within a few cycles.
	shifted := false
	ratio := 1.0
	for i := 0; i < 12 && !shifted; i++ {
		ratio += 0.1
		obs := d.Observe(ratio, now.Add(time.Duration(i)*30*time.Second))
		if obs.Shifted {
			shifted = true
			assert.Equal(t, DRIFT_UPWARD, obs.Direction)
			assert.Greater(t, obs.Severity, 1.0)
		}
	}

	require.True(t, shifted)
	stats := d.Stats()
	assert.Equal(t, 1, stats.ShiftCount)
	assert.Equal(t, DRIFT_UPWARD, stats.LastShiftDir)
	assert.False(t, stats.LastShift.IsZero())
}

func TestDriftDetector_DownwardShift(t *testing.T) {
	d := NewDriftDetector(2.0, 0.1)
	now := driftClock()

	shifted := false
	for i := 0; i < 10 && !shifted; i++ {
		obs := d.Observe(1.0, now)
		shifted = obs.Shifted
		if shifted {
			assert.Equal(t, DRIFT_DOWNWARD, obs.Direction)
		}
	}
	assert.True(t, shifted)
}

func TestDriftDetector_SumsResetAfterShift(t *testing.T) {
	d := NewDriftDetector(1.0, 0.1)
	now := driftClock()

	var obs DriftObservation
	for i := 0; i < 10 && !obs.Shifted; i++ {
		obs = d.Observe(2.0, now)
	}
	require.True(t, obs.Shifted)

	stats := d.Stats()
	assert.Equal(t, 0.0, stats.PositiveSum)
	assert.Equal(t, 0.0, stats.NegativeSum)
	// The reference snaps to the new operating level.
	assert.Equal(t, 2.0, stats.Reference)
}

func TestDriftDetector_CumulativeSumRecursion(t *testing.T) {
	d := NewDriftDetector(1.0, 0.2) // k=0.1, h=1.0

	obs := d.Observe(1.5, driftClock())
	// C+ = max(0, 0 + (1.5-1.0) - 0.1) = 0.4
	assert.InDelta(t, 0.4, obs.PositiveSum, 1e-9)
	assert.InDelta(t, 0.0, obs.NegativeSum, 1e-9)

	obs = d.Observe(0.5, driftClock())
	// C- = max(0, 0 - (0.5-1.0) - 0.1) = 0.4
	assert.InDelta(t, 0.4, obs.NegativeSum, 1e-9)
}

func TestDriftDetector_HistoryBounded(t *testing.T) {
	d := NewDriftDetector(1.0, 5.0)
	now := driftClock()

	for i := 0; i < driftHistoryLimit+25; i++ {
		d.Observe(1.0, now)
	}
	assert.Equal(t, driftHistoryLimit, d.Stats().Observations)
}

func TestDriftDetector_Reset(t *testing.T) {
	d := NewDriftDetector(1.0, 0.1)
	now := driftClock()

	for i := 0; i < 10; i++ {
		d.Observe(2.0, now)
	}
	d.Reset()

	stats := d.Stats()
	assert.Equal(t, 0, stats.ShiftCount)
	assert.Equal(t, 0, stats.Observations)
	assert.Equal(t, 0.0, stats.PositiveSum)
	assert.Equal(t, DRIFT_NONE, stats.LastShiftDir)
}

func TestHandler_RecordRatioFeedsDetector(t *testing.T) {
	h := NewHandler(Config{
		SoftRatio:             1.2,
		HardRatio:             1.5,
		CrisisRatio:           2.0,
		BatchSizeIncrement:    1,
		RadiusExpansionFactor: 1.5,
	})
	now := driftClock()

	for i := 0; i < 5; i++ {
		h.RecordRatio(1.0, now)
	}
	assert.Equal(t, 5, h.DriftStats().Observations)
}
