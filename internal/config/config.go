// Package config loads process-level configuration from environment
// variables and an optional .env file, and produces the validated
// dispatcher configuration from the same sources.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/fleetloop/lastmile-dispatch/pkg/engine"
	"github.com/fleetloop/lastmile-dispatch/pkg/scoring"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Engine engine.Config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string `mapstructure:"SERVER_HOST"`
	Port    int    `mapstructure:"SERVER_PORT"`
	GinMode string `mapstructure:"GIN_MODE"`
}

// DBConfig holds the SQLite checkpoint store settings.
type DBConfig struct {
	Path string `mapstructure:"DB_PATH"`
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("GIN_MODE", "release")
	viper.SetDefault("DB_PATH", "dispatch.db")

	viper.SetDefault("CYCLE_INTERVAL_SECONDS", 30)
	viper.SetDefault("MAX_ORDERS_PER_CYCLE", 500)
	viper.SetDefault("MAX_RIDERS_PER_ASSIGNMENT", 50)
	viper.SetDefault("OPTIMIZER_TIMEOUT_SECONDS", 1.5)
	viper.SetDefault("HUNGARIAN_THRESHOLD", 10000)

	viper.SetDefault("WEIGHT_TIME", 0.30)
	viper.SetDefault("WEIGHT_SLA_RISK", 0.25)
	viper.SetDefault("WEIGHT_DISTANCE", 0.15)
	viper.SetDefault("WEIGHT_BATCH_DISRUPTION", 0.10)
	viper.SetDefault("WEIGHT_WORKLOAD", 0.10)
	viper.SetDefault("WEIGHT_AFFINITY", 0.10)

	viper.SetDefault("INITIAL_RADIUS_KM", 5.0)
	viper.SetDefault("EXPANDED_RADIUS_KM", 10.0)
	viper.SetDefault("MAX_RADIUS_KM", 20.0)
	viper.SetDefault("RADIUS_EXPANSION_MINUTES_THRESHOLD", 20.0)

	viper.SetDefault("SOFT_SURGE_RATIO", 1.2)
	viper.SetDefault("HARD_SURGE_RATIO", 1.5)
	viper.SetDefault("CRISIS_RATIO", 2.0)

	viper.SetDefault("MAX_REASSIGNMENT_ATTEMPTS", 3)
	viper.SetDefault("SUPPRESSION_RADIUS_METERS", 200.0)
	viper.SetDefault("TRIGGER_ETA_SPIKE_MINUTES", 15.0)
	viper.SetDefault("TRIGGER_HIGH_PRIORITY_SLA_CUTOFF_MINUTES", 20.0)

	// Try to read .env file. If it doesn't exist, env vars injected by
	// the runtime are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	cfg.Server = ServerConfig{
		Host:    viper.GetString("SERVER_HOST"),
		Port:    viper.GetInt("SERVER_PORT"),
		GinMode: viper.GetString("GIN_MODE"),
	}

	cfg.DB = DBConfig{
		Path: viper.GetString("DB_PATH"),
	}

	engineCfg, err := buildEngineConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid dispatcher configuration: %w", err)
	}
	cfg.Engine = engineCfg

	return cfg, nil
}

// buildEngineConfig layers the environment over the stock dispatcher
// defaults and validates the result.
func buildEngineConfig() (engine.Config, error) {
	defaults := engine.NewConfigBuilder()
	base, err := defaults.Build()
	if err != nil {
		return engine.Config{}, err
	}

	cycle := base.Cycle
	cycle.CycleIntervalSeconds = viper.GetInt("CYCLE_INTERVAL_SECONDS")
	cycle.MaxOrdersPerCycle = viper.GetInt("MAX_ORDERS_PER_CYCLE")
	cycle.MaxRidersPerAssignment = viper.GetInt("MAX_RIDERS_PER_ASSIGNMENT")
	cycle.OptimizerTimeoutSeconds = viper.GetFloat64("OPTIMIZER_TIMEOUT_SECONDS")
	cycle.HungarianThreshold = viper.GetInt("HUNGARIAN_THRESHOLD")

	candidates := base.Candidates
	candidates.InitialRadiusKm = viper.GetFloat64("INITIAL_RADIUS_KM")
	candidates.ExpandedRadiusKm = viper.GetFloat64("EXPANDED_RADIUS_KM")
	candidates.MaxRadiusKm = viper.GetFloat64("MAX_RADIUS_KM")
	candidates.RadiusExpansionMinutesThreshold = viper.GetFloat64("RADIUS_EXPANSION_MINUTES_THRESHOLD")

	surge := base.Surge
	surge.SoftSurgeRatio = viper.GetFloat64("SOFT_SURGE_RATIO")
	surge.HardSurgeRatio = viper.GetFloat64("HARD_SURGE_RATIO")
	surge.CrisisRatio = viper.GetFloat64("CRISIS_RATIO")

	reassignment := base.Reassignment
	reassignment.MaxReassignmentAttempts = viper.GetInt("MAX_REASSIGNMENT_ATTEMPTS")
	reassignment.SuppressionRadiusMeters = viper.GetFloat64("SUPPRESSION_RADIUS_METERS")
	reassignment.TriggerEtaSpikeMinutes = viper.GetFloat64("TRIGGER_ETA_SPIKE_MINUTES")
	reassignment.TriggerHighPrioritySlaCutoffMinutes = viper.GetFloat64("TRIGGER_HIGH_PRIORITY_SLA_CUTOFF_MINUTES")

	weights := scoring.Weights{
		Time:            viper.GetFloat64("WEIGHT_TIME"),
		SLARisk:         viper.GetFloat64("WEIGHT_SLA_RISK"),
		Distance:        viper.GetFloat64("WEIGHT_DISTANCE"),
		BatchDisruption: viper.GetFloat64("WEIGHT_BATCH_DISRUPTION"),
		Workload:        viper.GetFloat64("WEIGHT_WORKLOAD"),
		Affinity:        viper.GetFloat64("WEIGHT_AFFINITY"),
	}

	return engine.NewConfigBuilder().
		WithCycle(cycle).
		WithCandidates(candidates).
		WithSurge(surge).
		WithReassignment(reassignment).
		WithWeights(weights).
		Build()
}
