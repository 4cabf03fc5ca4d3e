package robustness

import (
	"fmt"
	"math/rand"
	"testing"

	"gocausal/domain/core"
	"gocausal/domain/panel"
	"gocausal/internal/estimators"
	"gocausal/internal/synth"
	"gocausal/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rddFrame(t *testing.T) *panel.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(21))
	var rows []panel.Row
	for i := 0; i <= 200; i++ {
		r := float64(i-100) / 10
		y := 2 + 0.4*r + 0.1*rng.NormFloat64()
		if r >= 0 {
			y += 1.5
		}
		rows = append(rows, panel.Row{Unit: fmt.Sprintf("d%03d", i), Period: "2022-01", Values: map[string]float64{"margin": r, "turnout": y}})
	}
	f, err := panel.New("district", "month", rows)
	require.NoError(t, err)
	return f
}

func TestRDDBandwidthSweep_OrderAndRows(t *testing.T) {
	f := rddFrame(t)
	cfg := estimators.RDDConfig{RunningCol: "margin", OutcomeCol: "turnout"}

	rows := RDDBandwidthSweep(f, cfg, []float64{3, 12}, Options{})
	require.Len(t, rows, 2)
	assert.Equal(t, 3.0, rows[0].Bandwidth)
	assert.Equal(t, 12.0, rows[1].Bandwidth)
	for _, r := range rows {
		assert.Empty(t, r.Error)
		require.NotNil(t, r.Discontinuity)
		assert.InDelta(t, 1.5, *r.Discontinuity, 0.15)
	}
	assert.Equal(t, 61, rows[0].N)
	assert.Equal(t, 201, rows[1].N)
}

func TestRDDBandwidthSweep_RecordsFailures(t *testing.T) {
	f := rddFrame(t)
	cfg := estimators.RDDConfig{RunningCol: "margin", OutcomeCol: "turnout"}
	bandwidths := []float64{0.5, 5, -1, 8}

	rows := RDDBandwidthSweep(f, cfg, bandwidths, Options{})
	require.Len(t, rows, 4)
	assert.Equal(t, "INSUFFICIENT_DATA", rows[0].ErrorCode)
	assert.Nil(t, rows[0].Discontinuity)
	assert.Empty(t, rows[1].Error)
	assert.Equal(t, "INVALID_INPUT", rows[2].ErrorCode)
	assert.Empty(t, rows[3].Error)

	parallel := RDDBandwidthSweep(f, cfg, bandwidths, Options{Workers: 3})
	assert.Equal(t, rows, parallel)

	spread := DiscontinuitySpread(rows)
	require.NotNil(t, spread)
	assert.Equal(t, 2, spread.N)
	assert.LessOrEqual(t, spread.Min, spread.Median)
	assert.LessOrEqual(t, spread.Median, spread.Max)
}

func TestPlaceboCutoffs(t *testing.T) {
	periods := []string{"2020-01", "2020-02", "2020-03", "2020-04", "2020-05"}

	assert.Equal(t, []string{"2020-01", "2020-01", "2020-05", "2020-05"}, PlaceboCutoffs(periods, nil))
	assert.Equal(t, []string{"2020-02", "2020-04"}, PlaceboCutoffs(periods, []int{-1, 1}))
	assert.Nil(t, PlaceboCutoffs(nil, nil))
}

func TestITSPlaceboSweep(t *testing.T) {
	var rows []panel.Row
	for m := 0; m < 36; m++ {
		month, err := core.AddMonths("2019-01", m)
		require.NoError(t, err)
		rows = append(rows, panel.Row{Unit: "RUS", Period: month, Values: map[string]float64{"y": 3 + 0.1*float64(m) + 0.2*float64(m%4)}})
	}
	f, err := panel.New("unit", "month", rows)
	require.NoError(t, err)

	cutoffs := append(PlaceboCutoffs(f.Periods(), nil), "2035-01")
	out := ITSPlaceboSweep(f, estimators.ITSConfig{OutcomeCol: "y"}, cutoffs, Options{Workers: 2})

	require.Len(t, out, 5)
	for i, c := range cutoffs {
		assert.Equal(t, c, out[i].Cutoff)
	}
	for _, r := range out[:4] {
		assert.Empty(t, r.Error)
		require.NotNil(t, r.LevelChange)
		require.NotNil(t, r.PSlope)
	}
	assert.Equal(t, "DATA_SHAPE", out[4].ErrorCode)
	assert.Nil(t, out[4].LevelChange)
	assert.Equal(t, 4, LevelChangeSpread(out).N)
}

func TestSyntheticControlPlacebos(t *testing.T) {
	cfg := testkit.DefaultPanelConfig()
	cfg.Units = 6
	f := testkit.MustGenerate(cfg)

	summary := SyntheticControlPlacebos(f, synth.Config{
		OutcomeCol:       cfg.OutcomeColumn,
		TreatedUnit:      cfg.TreatedUnit,
		InterventionTime: cfg.InterventionMonth,
		Iterations:       300,
	}, Options{Workers: 2})

	require.Len(t, summary.Trials, 6)
	treated := 0
	for i, trial := range summary.Trials {
		assert.Equal(t, testkit.UnitName(i), trial.PlaceboTreated)
		if trial.IsTreated {
			treated++
			assert.Equal(t, cfg.TreatedUnit, trial.PlaceboTreated)
		}
	}
	assert.Equal(t, 1, treated)
	assert.Equal(t, 6, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.NotNil(t, summary.PermutationP)
	assert.GreaterOrEqual(t, *summary.PermutationP, 1.0/6)
	assert.LessOrEqual(t, *summary.PermutationP, 1.0)
}

func TestSyntheticControlPlacebos_TreatedFailureLeavesNoPValue(t *testing.T) {
	cfg := testkit.DefaultPanelConfig()
	cfg.Units = 3
	f := testkit.MustGenerate(cfg)

	summary := SyntheticControlPlacebos(f, synth.Config{
		OutcomeCol:       cfg.OutcomeColumn,
		TreatedUnit:      cfg.TreatedUnit,
		InterventionTime: "2000-01",
	}, Options{})

	assert.Equal(t, 3, summary.Failed)
	assert.Nil(t, summary.PermutationP)
	assert.Equal(t, "INSUFFICIENT_DATA", summary.Trials[0].ErrorCode)
}
