package config

import (
	"testing"
	"time"

	"gocausal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "country_iso3", cfg.Panel.UnitCol)
	assert.Equal(t, "month", cfg.Panel.TimeCol)
	assert.Equal(t, "cyber_incidents", cfg.Panel.OutcomeCol)
	assert.Equal(t, "sanctions_count", cfg.Panel.TreatmentCol)
	assert.Equal(t, -6, cfg.Estimation.EventKMin)
	assert.Equal(t, 12, cfg.Estimation.EventKMax)
	assert.Equal(t, -1, cfg.Estimation.EventOmitK)
	assert.Equal(t, 3, cfg.Estimation.HACLags)
	assert.Equal(t, 25, cfg.Estimation.MaxModels)
	assert.Equal(t, 4000, cfg.Synth.Iterations)
	assert.Equal(t, 1.0, cfg.Synth.LearningRate)
	assert.Equal(t, 15, cfg.Synth.MaxDonors)
	assert.Equal(t, 30, cfg.Synth.TopKCandidates)
	assert.Equal(t, 1, cfg.Sweep.Workers)
	assert.Equal(t, time.Duration(0), cfg.Study.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("UNIT_COL", "iso")
	t.Setenv("COVARIATES", "gdp, internet_users,,")
	t.Setenv("SYNTH_LEARNING_RATE", "0.5")
	t.Setenv("SWEEP_WORKERS", "4")
	t.Setenv("RUN_TIMEOUT", "90s")
	t.Setenv("EVENT_K_MAX", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "iso", cfg.Panel.UnitCol)
	assert.Equal(t, []string{"gdp", "internet_users"}, cfg.Panel.Covariates)
	assert.Equal(t, 0.5, cfg.Synth.LearningRate)
	assert.Equal(t, 4, cfg.Sweep.Workers)
	assert.Equal(t, 90*time.Second, cfg.Study.Timeout)
	assert.Equal(t, 12, cfg.Estimation.EventKMax)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"window", "EVENT_K_MIN", "20"},
		{"lags", "HAC_LAGS", "-1"},
		{"learning rate", "SYNTH_LEARNING_RATE", "2.5"},
		{"same key columns", "TIME_COL", "country_iso3"},
		{"intervention", "INTERVENTION_TIME", "March 2022"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
