package engine

import (
	"time"

	"github.com/fleetloop/lastmile-dispatch/pkg/models"
	"github.com/fleetloop/lastmile-dispatch/pkg/scoring"
)

// CycleConfig bounds a single assignment cycle.
type CycleConfig struct {
	CycleIntervalSeconds    int     `json:"cycle_interval_seconds"`
	MaxOrdersPerCycle       int     `json:"max_orders_per_cycle"`
	MaxRidersPerAssignment  int     `json:"max_riders_per_assignment"`
	OptimizerTimeoutSeconds float64 `json:"optimizer_timeout_seconds"`
	HungarianThreshold      int     `json:"hungarian_threshold"`
}

// CandidateConfig holds the radius ladder for candidate generation.
type CandidateConfig struct {
	InitialRadiusKm                 float64 `json:"initial_radius_km"`
	ExpandedRadiusKm                float64 `json:"expanded_radius_km"`
	MaxRadiusKm                     float64 `json:"max_radius_km"`
	RadiusExpansionMinutesThreshold float64 `json:"radius_expansion_minutes_threshold"`
}

// BatchingConfig holds per-vehicle batch limits.
type BatchingConfig struct {
	MaxBatchSize            map[models.VehicleType]int `json:"max_batch_size"`
	MaxBatchDurationMinutes int                        `json:"max_batch_duration_minutes"`
	TwoOptIterationLimit    int                        `json:"two_opt_iteration_limit"`
}

// ReassignmentConfig holds the reassignment guard tunables.
type ReassignmentConfig struct {
	MaxReassignmentAttempts             int     `json:"max_reassignment_attempts"`
	SuppressionRadiusMeters             float64 `json:"suppression_radius_meters"`
	TriggerEtaSpikeMinutes              float64 `json:"trigger_eta_spike_minutes"`
	TriggerHighPrioritySlaCutoffMinutes float64 `json:"trigger_high_priority_sla_cutoff_minutes"`
}

// SurgeConfig holds classification thresholds and response factors.
type SurgeConfig struct {
	SoftSurgeRatio             float64 `json:"soft_surge_ratio"`
	HardSurgeRatio             float64 `json:"hard_surge_ratio"`
	CrisisRatio                float64 `json:"crisis_ratio"`
	PrepositionLookbackMinutes int     `json:"preposition_lookback_minutes"`
	BatchSizeIncrement         int     `json:"batch_size_increment"`
	RadiusExpansionFactor      float64 `json:"radius_expansion_factor"`
}

// ETAConfig holds estimation model tunables.
type ETAConfig struct {
	TrafficApiRefreshSeconds int            `json:"traffic_api_refresh_seconds"`
	RiderModelRetrainCron    string         `json:"rider_model_retrain_cron"`
	ServiceTimeDefaults      map[string]int `json:"service_time_defaults"`
	ETACacheMinutes          int            `json:"eta_cache_minutes"`
}

// FatigueConfig holds driving-time limits.
type FatigueConfig struct {
	MaxContinuousDrivingMinutes int `json:"max_continuous_driving_minutes"`
	MandatoryBreakMinutes       int `json:"mandatory_break_minutes"`
	MaxShiftDrivingMinutes      int `json:"max_shift_driving_minutes"`
}

// SLAConfig holds breach-risk tunables.
type SLAConfig struct {
	NearBreachThresholdMinutes        float64 `json:"near_breach_threshold_minutes"`
	BreachEscalationAlertThresholdPct float64 `json:"breach_escalation_alert_threshold_pct"`
	SLARiskSigmoidScale               float64 `json:"sla_risk_sigmoid_scale"`
}

// Config is the full immutable dispatcher configuration. Values are
// produced by ConfigBuilder.Build, which enforces the construction
// invariants; a Config obtained any other way is not guaranteed valid.
type Config struct {
	Cycle        CycleConfig        `json:"cycle"`
	Weights      scoring.Weights    `json:"weights"`
	Candidates   CandidateConfig    `json:"candidates"`
	Batching     BatchingConfig     `json:"batching"`
	Reassignment ReassignmentConfig `json:"reassignment"`
	Surge        SurgeConfig        `json:"surge"`
	ETA          ETAConfig          `json:"eta"`
	Fatigue      FatigueConfig      `json:"fatigue"`
	SLA          SLAConfig          `json:"sla"`
}

// OptimizerTimeout returns the exact-solver bound as a duration.
func (c Config) OptimizerTimeout() time.Duration {
	return time.Duration(c.Cycle.OptimizerTimeoutSeconds * float64(time.Second))
}

// ETACacheTTL returns the estimate cache lifetime as a duration.
func (c Config) ETACacheTTL() time.Duration {
	return time.Duration(c.ETA.ETACacheMinutes) * time.Minute
}

// ConfigBuilder accumulates configuration and validates it at Build
// time. Zero-value fields fall back to defaults.
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder starts from the default configuration.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: defaultConfig()}
}

func defaultConfig() Config {
	return Config{
		Cycle: CycleConfig{
			CycleIntervalSeconds:    30,
			MaxOrdersPerCycle:       500,
			MaxRidersPerAssignment:  50,
			OptimizerTimeoutSeconds: 1.5,
			HungarianThreshold:      10000,
		},
		Weights: scoring.DefaultWeights(),
		Candidates: CandidateConfig{
			InitialRadiusKm:                 5,
			ExpandedRadiusKm:                10,
			MaxRadiusKm:                     20,
			RadiusExpansionMinutesThreshold: 20,
		},
		Batching: BatchingConfig{
			MaxBatchSize: map[models.VehicleType]int{
				models.VEHICLE_BIKE: 3,
				models.VEHICLE_CAR:  5,
				models.VEHICLE_VAN:  8,
			},
			MaxBatchDurationMinutes: 90,
			TwoOptIterationLimit:    100,
		},
		Reassignment: ReassignmentConfig{
			MaxReassignmentAttempts:             3,
			SuppressionRadiusMeters:             200,
			TriggerEtaSpikeMinutes:              15,
			TriggerHighPrioritySlaCutoffMinutes: 20,
		},
		Surge: SurgeConfig{
			SoftSurgeRatio:             1.2,
			HardSurgeRatio:             1.5,
			CrisisRatio:                2.0,
			PrepositionLookbackMinutes: 30,
			BatchSizeIncrement:         1,
			RadiusExpansionFactor:      1.5,
		},
		ETA: ETAConfig{
			TrafficApiRefreshSeconds: 300,
			RiderModelRetrainCron:    "0 3 * * *",
			ServiceTimeDefaults: map[string]int{
				"restaurant_pickup":     5,
				"dark_store_pickup":     3,
				"apartment_delivery":    4,
				"ground_floor_delivery": 2,
				"house_delivery":        2,
				"commercial_delivery":   5,
			},
			ETACacheMinutes: 5,
		},
		Fatigue: FatigueConfig{
			MaxContinuousDrivingMinutes: 120,
			MandatoryBreakMinutes:       30,
			MaxShiftDrivingMinutes:      480,
		},
		SLA: SLAConfig{
			NearBreachThresholdMinutes:        10,
			BreachEscalationAlertThresholdPct: 5,
			SLARiskSigmoidScale:               10,
		},
	}
}

// WithWeights sets the six scoring weights.
func (b *ConfigBuilder) WithWeights(w scoring.Weights) *ConfigBuilder {
	b.cfg.Weights = w
	return b
}

// WithCycle sets the cycle bounds.
func (b *ConfigBuilder) WithCycle(c CycleConfig) *ConfigBuilder {
	b.cfg.Cycle = c
	return b
}

// WithCandidates sets the radius ladder.
func (b *ConfigBuilder) WithCandidates(c CandidateConfig) *ConfigBuilder {
	b.cfg.Candidates = c
	return b
}

// WithBatching sets the batch limits.
func (b *ConfigBuilder) WithBatching(c BatchingConfig) *ConfigBuilder {
	b.cfg.Batching = c
	return b
}

// WithReassignment sets the reassignment guards.
func (b *ConfigBuilder) WithReassignment(c ReassignmentConfig) *ConfigBuilder {
	b.cfg.Reassignment = c
	return b
}

// WithSurge sets the surge thresholds.
func (b *ConfigBuilder) WithSurge(c SurgeConfig) *ConfigBuilder {
	b.cfg.Surge = c
	return b
}

// WithETA sets the estimation tunables.
func (b *ConfigBuilder) WithETA(c ETAConfig) *ConfigBuilder {
	b.cfg.ETA = c
	return b
}

// WithFatigue sets the driving-time limits.
func (b *ConfigBuilder) WithFatigue(c FatigueConfig) *ConfigBuilder {
	b.cfg.Fatigue = c
	return b
}

// WithSLA sets the breach-risk tunables.
func (b *ConfigBuilder) WithSLA(c SLAConfig) *ConfigBuilder {
	b.cfg.SLA = c
	return b
}

// Build validates the accumulated configuration and returns the
// immutable value. Configuration errors are fatal: no engine is
// constructed from an invalid config.
func (b *ConfigBuilder) Build() (Config, error) {
	cfg := b.cfg
	var errors models.ValidationErrors

	errors.AddIf(!cfg.Weights.IsNormalized(), "Weights", cfg.Weights.Sum(),
		"scoring weights must sum to 1.0 within 0.01")

	errors.AddIf(cfg.Candidates.InitialRadiusKm <= 0, "Candidates.InitialRadiusKm",
		cfg.Candidates.InitialRadiusKm, "InitialRadiusKm must be positive")
	errors.AddIf(cfg.Candidates.ExpandedRadiusKm <= cfg.Candidates.InitialRadiusKm,
		"Candidates.ExpandedRadiusKm", cfg.Candidates.ExpandedRadiusKm,
		"radii must be strictly increasing")
	errors.AddIf(cfg.Candidates.MaxRadiusKm <= cfg.Candidates.ExpandedRadiusKm,
		"Candidates.MaxRadiusKm", cfg.Candidates.MaxRadiusKm,
		"radii must be strictly increasing")
	errors.AddIf(cfg.Candidates.RadiusExpansionMinutesThreshold < 0,
		"Candidates.RadiusExpansionMinutesThreshold",
		cfg.Candidates.RadiusExpansionMinutesThreshold, "threshold must be non-negative")

	errors.AddIf(cfg.Surge.SoftSurgeRatio <= 0, "Surge.SoftSurgeRatio",
		cfg.Surge.SoftSurgeRatio, "SoftSurgeRatio must be positive")
	errors.AddIf(cfg.Surge.HardSurgeRatio <= cfg.Surge.SoftSurgeRatio,
		"Surge.HardSurgeRatio", cfg.Surge.HardSurgeRatio,
		"surge ratios must be strictly increasing")
	errors.AddIf(cfg.Surge.CrisisRatio <= cfg.Surge.HardSurgeRatio,
		"Surge.CrisisRatio", cfg.Surge.CrisisRatio,
		"surge ratios must be strictly increasing")
	errors.AddIf(cfg.Surge.BatchSizeIncrement < 0, "Surge.BatchSizeIncrement",
		cfg.Surge.BatchSizeIncrement, "BatchSizeIncrement must be non-negative")
	errors.AddIf(cfg.Surge.RadiusExpansionFactor < 1, "Surge.RadiusExpansionFactor",
		cfg.Surge.RadiusExpansionFactor, "RadiusExpansionFactor must be at least 1")

	errors.AddIf(cfg.Cycle.MaxOrdersPerCycle < 0, "Cycle.MaxOrdersPerCycle",
		cfg.Cycle.MaxOrdersPerCycle, "MaxOrdersPerCycle must be non-negative")
	errors.AddIf(cfg.Cycle.OptimizerTimeoutSeconds < 0, "Cycle.OptimizerTimeoutSeconds",
		cfg.Cycle.OptimizerTimeoutSeconds, "OptimizerTimeoutSeconds must be non-negative")
	errors.AddIf(cfg.Cycle.HungarianThreshold < 0, "Cycle.HungarianThreshold",
		cfg.Cycle.HungarianThreshold, "HungarianThreshold must be non-negative")

	errors.AddIf(cfg.Reassignment.MaxReassignmentAttempts < 0,
		"Reassignment.MaxReassignmentAttempts", cfg.Reassignment.MaxReassignmentAttempts,
		"MaxReassignmentAttempts must be non-negative")
	errors.AddIf(cfg.Reassignment.SuppressionRadiusMeters < 0,
		"Reassignment.SuppressionRadiusMeters", cfg.Reassignment.SuppressionRadiusMeters,
		"SuppressionRadiusMeters must be non-negative")
	errors.AddIf(cfg.Reassignment.TriggerEtaSpikeMinutes < 0,
		"Reassignment.TriggerEtaSpikeMinutes", cfg.Reassignment.TriggerEtaSpikeMinutes,
		"TriggerEtaSpikeMinutes must be non-negative")

	errors.AddIf(cfg.ETA.ETACacheMinutes < 0, "ETA.ETACacheMinutes",
		cfg.ETA.ETACacheMinutes, "ETACacheMinutes must be non-negative")

	errors.AddIf(cfg.Fatigue.MaxContinuousDrivingMinutes < 0,
		"Fatigue.MaxContinuousDrivingMinutes", cfg.Fatigue.MaxContinuousDrivingMinutes,
		"MaxContinuousDrivingMinutes must be non-negative")
	errors.AddIf(cfg.Fatigue.MaxShiftDrivingMinutes < 0,
		"Fatigue.MaxShiftDrivingMinutes", cfg.Fatigue.MaxShiftDrivingMinutes,
		"MaxShiftDrivingMinutes must be non-negative")

	errors.AddIf(cfg.SLA.SLARiskSigmoidScale <= 0, "SLA.SLARiskSigmoidScale",
		cfg.SLA.SLARiskSigmoidScale, "SLARiskSigmoidScale must be positive")

	for vehicle, size := range cfg.Batching.MaxBatchSize {
		errors.AddIf(size < 0, "Batching.MaxBatchSize", vehicle,
			"batch sizes must be non-negative")
	}
	errors.AddIf(cfg.Batching.TwoOptIterationLimit < 0, "Batching.TwoOptIterationLimit",
		cfg.Batching.TwoOptIterationLimit, "TwoOptIterationLimit must be non-negative")

	if errors.HasErrors() {
		return Config{}, errors
	}
	return cfg, nil
}

// DefaultConfig builds the stock configuration. It always validates.
func DefaultConfig() Config {
	cfg, err := NewConfigBuilder().Build()
	if err != nil {
		panic(err)
	}
	return cfg
}
