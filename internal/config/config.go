package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gocausal/domain/core"
	"gocausal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	LogLevel   string
	Panel      PanelConfig
	Study      StudyConfig
	Estimation EstimationConfig
	Synth      SynthConfig
	Sweep      SweepConfig
}

// PanelConfig locates the panel file and names its columns
type PanelConfig struct {
	File         string
	Sheet        string
	UnitCol      string
	TimeCol      string
	OutcomeCol   string
	TreatmentCol string
	Covariates   []string
}

// StudyConfig names the treated unit and intervention of the default study
type StudyConfig struct {
	TreatedUnit      string
	InterventionTime string
	Timeout          time.Duration
}

// EstimationConfig holds regression estimator settings
type EstimationConfig struct {
	EventKMin  int
	EventKMax  int
	EventOmitK int
	HACLags    int
	MaxModels  int
}

// SynthConfig holds synthetic control and donor search settings
type SynthConfig struct {
	Iterations     int
	LearningRate   float64
	MaxDonors      int
	TopKCandidates int
}

// SweepConfig holds robustness sweep settings
type SweepConfig struct {
	Workers int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "INFO"),
		Panel:      *loadPanelConfig(),
		Study:      *loadStudyConfig(),
		Estimation: *loadEstimationConfig(),
		Synth:      *loadSynthConfig(),
		Sweep:      SweepConfig{Workers: getEnvIntOrDefault("SWEEP_WORKERS", 1)},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadPanelConfig() *PanelConfig {
	return &PanelConfig{
		File:         getEnvOrDefault("PANEL_FILE", ""),
		Sheet:        getEnvOrDefault("PANEL_SHEET", ""),
		UnitCol:      getEnvOrDefault("UNIT_COL", "country_iso3"),
		TimeCol:      getEnvOrDefault("TIME_COL", "month"),
		OutcomeCol:   getEnvOrDefault("OUTCOME_COL", "cyber_incidents"),
		TreatmentCol: getEnvOrDefault("TREATMENT_COL", "sanctions_count"),
		Covariates:   getEnvListOrDefault("COVARIATES", nil),
	}
}

func loadStudyConfig() *StudyConfig {
	return &StudyConfig{
		TreatedUnit:      getEnvOrDefault("TREATED_UNIT", ""),
		InterventionTime: getEnvOrDefault("INTERVENTION_TIME", ""),
		Timeout:          getEnvDurationOrDefault("RUN_TIMEOUT", 0),
	}
}

func loadEstimationConfig() *EstimationConfig {
	return &EstimationConfig{
		EventKMin:  getEnvIntOrDefault("EVENT_K_MIN", -6),
		EventKMax:  getEnvIntOrDefault("EVENT_K_MAX", 12),
		EventOmitK: getEnvIntOrDefault("EVENT_OMIT_K", -1),
		HACLags:    getEnvIntOrDefault("HAC_LAGS", 3),
		MaxModels:  getEnvIntOrDefault("MAX_MODELS", 25),
	}
}

func loadSynthConfig() *SynthConfig {
	return &SynthConfig{
		Iterations:     getEnvIntOrDefault("SYNTH_ITERATIONS", 4000),
		LearningRate:   getEnvFloatOrDefault("SYNTH_LEARNING_RATE", 1.0),
		MaxDonors:      getEnvIntOrDefault("MAX_DONORS", 15),
		TopKCandidates: getEnvIntOrDefault("TOP_K_CANDIDATES", 30),
	}
}

func validateConfig(config *Config) error {
	if config.Panel.UnitCol == "" || config.Panel.TimeCol == "" || config.Panel.OutcomeCol == "" {
		return errors.ConfigInvalid("UNIT_COL, TIME_COL and OUTCOME_COL must be set")
	}
	if config.Panel.UnitCol == config.Panel.TimeCol {
		return errors.ConfigInvalid("UNIT_COL and TIME_COL must differ")
	}
	if config.Estimation.EventKMin > config.Estimation.EventKMax {
		return errors.ConfigInvalid(fmt.Sprintf("EVENT_K_MIN (%d) exceeds EVENT_K_MAX (%d)",
			config.Estimation.EventKMin, config.Estimation.EventKMax))
	}
	if config.Estimation.HACLags < 0 {
		return errors.ConfigInvalid("HAC_LAGS must be non-negative")
	}
	if config.Estimation.MaxModels <= 0 {
		return errors.ConfigInvalid("MAX_MODELS must be positive")
	}
	if config.Synth.Iterations <= 0 {
		return errors.ConfigInvalid("SYNTH_ITERATIONS must be positive")
	}
	if !(config.Synth.LearningRate > 0 && config.Synth.LearningRate < 2) {
		return errors.ConfigInvalid("SYNTH_LEARNING_RATE must lie in (0, 2)")
	}
	if config.Synth.MaxDonors <= 0 || config.Synth.TopKCandidates <= 0 {
		return errors.ConfigInvalid("MAX_DONORS and TOP_K_CANDIDATES must be positive")
	}
	if config.Sweep.Workers < 0 {
		return errors.ConfigInvalid("SWEEP_WORKERS must be non-negative")
	}
	if config.Study.InterventionTime != "" && !core.IsMonthLabel(config.Study.InterventionTime) {
		return errors.ConfigInvalid("INTERVENTION_TIME must look like YYYY-MM")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma-separated value, dropping blanks
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
