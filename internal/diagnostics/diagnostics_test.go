package diagnostics

import (
	"errors"
	"math"
	"testing"

	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	"gocausal/internal/estimators"
	"gocausal/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func treatedPanel(t *testing.T) (*panel.Frame, testkit.PanelGeneratorConfig) {
	t.Helper()
	cfg := testkit.DefaultPanelConfig()
	f := testkit.MustGenerate(cfg)
	f, err := f.WithTreatment(cfg.TreatedUnit, cfg.InterventionMonth, panel.TreatedCol, panel.PostCol)
	require.NoError(t, err)
	f, err = f.WithEventTime(cfg.InterventionMonth, panel.EventTimeCol)
	require.NoError(t, err)
	return f, cfg
}

func TestParallelTrendsPretest(t *testing.T) {
	f, cfg := treatedPanel(t)

	res, err := ParallelTrendsPretest(f, ParallelTrendsConfig{
		OutcomeCol:       cfg.OutcomeColumn,
		InterventionTime: cfg.InterventionMonth,
		Covariates:       cfg.Covariates,
		ClusterCol:       cfg.UnitColumn,
	})
	require.NoError(t, err)

	assert.Equal(t, cfg.Units*24, res.N)
	assert.InDelta(t, 0, res.Coef, 0.1)
	assert.Greater(t, res.PValue, 0.0)
	assert.Contains(t, res.Summary.Absorbed, "trend")
}

func TestParallelTrendsPretest_TooFewRows(t *testing.T) {
	f, cfg := treatedPanel(t)
	_, err := ParallelTrendsPretest(f, ParallelTrendsConfig{OutcomeCol: cfg.OutcomeColumn, InterventionTime: "2019-01"})
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestPrePeriodJointTest_Fisher(t *testing.T) {
	es := &estimate.EventStudyResult{
		PByK: map[int]float64{-4: 0.5, -3: 0.2, -2: 0, -1: 0.01, 0: 0.001},
	}

	a, err := PrePeriodJointTest(es, DefaultKPreMax)
	require.NoError(t, err)
	b, err := PrePeriodJointTest(es, DefaultKPreMax)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, MethodFisher, a.Method)
	assert.Equal(t, []int{-4, -3, -2}, a.KValues)
	want := -2 * (math.Log(0.5) + math.Log(0.2) + math.Log(1e-12))
	assert.InDelta(t, want, a.Statistic, 1e-9)
	assert.Equal(t, 6.0, a.DFNum)
	assert.Nil(t, a.DFDenom)
	assert.Less(t, a.PValue, 0.01)

	_, err = PrePeriodJointTest(&estimate.EventStudyResult{PByK: map[int]float64{0: 0.3}}, DefaultKPreMax)
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestPrePeriodWaldTest(t *testing.T) {
	es := &estimate.EventStudyResult{
		CoefByK:     map[int]float64{-3: 1, -2: 2, 0: 5},
		Offsets:     []int{-3, -2, 0},
		Vcov:        [][]float64{{1, 0, 0}, {0, 4, 0}, {0, 0, 1}},
		DFInference: 50,
	}

	res, err := PrePeriodWaldTest(es, DefaultKPreMax)
	require.NoError(t, err)
	assert.Equal(t, MethodWald, res.Method)
	assert.Equal(t, []int{-3, -2}, res.KValues)
	// W = 1/1 + 4/4 = 2, F = 1
	assert.InDelta(t, 1.0, res.Statistic, 1e-12)
	require.NotNil(t, res.DFDenom)
	assert.Equal(t, 50.0, *res.DFDenom)
	assert.Greater(t, res.PValue, 0.3)

	es.Vcov = [][]float64{{1, 1, 0}, {1, 1, 0}, {0, 0, 1}}
	_, err = PrePeriodWaldTest(es, DefaultKPreMax)
	assert.True(t, errors.Is(err, core.ErrDegenerateCovariance))
}

func TestPrePeriodTestsOnEventStudy(t *testing.T) {
	f, cfg := treatedPanel(t)
	es, err := estimators.EventStudy(f, estimators.EventStudyConfig{OutcomeCol: cfg.OutcomeColumn, Covariates: cfg.Covariates})
	require.NoError(t, err)

	fisher, err := PrePeriodJointTest(es, DefaultKPreMax)
	require.NoError(t, err)
	wald, err := PrePeriodWaldTest(es, DefaultKPreMax)
	require.NoError(t, err)
	assert.Equal(t, fisher.KValues, wald.KValues)
	assert.Len(t, wald.KValues, 5)
}

func TestBenjaminiHochberg(t *testing.T) {
	q := BenjaminiHochberg([]float64{0.01, 0.04, 0.03, math.NaN(), 0.5})

	assert.InDelta(t, 0.04, q[0], 1e-12)
	assert.InDelta(t, 0.04*4/3, q[1], 1e-12)
	assert.InDelta(t, 0.04*4/3, q[2], 1e-12)
	assert.True(t, math.IsNaN(q[3]))
	assert.InDelta(t, 0.5, q[4], 1e-12)

	assert.Empty(t, BenjaminiHochberg(nil))
	assert.Equal(t, []float64{1}, BenjaminiHochberg([]float64{1}))
}

func TestBICWeights(t *testing.T) {
	w := BICWeights([]float64{102, 100, 110})

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, w[1], w[0])
	assert.Greater(t, w[0], w[2])
	assert.InDelta(t, math.Exp(-1), w[0]/w[1], 1e-12)
	assert.Nil(t, BICWeights(nil))
}

func TestCovariateSets(t *testing.T) {
	sets := CovariateSets([]string{"a", "b", "c"}, 25)
	assert.Equal(t, [][]string{
		{}, {"a", "b", "c"}, {"b", "c"}, {"a", "c"}, {"a", "b"}, {"a"}, {"b"}, {"c"},
	}, sets)

	capped := CovariateSets([]string{"a", "b", "c", "d", "e"}, 4)
	assert.Len(t, capped, 4)

	assert.Equal(t, [][]string{{}}, CovariateSets(nil, 25))
}

func TestCovariateSetSensitivity(t *testing.T) {
	f, cfg := treatedPanel(t)
	did := estimators.DiDConfig{OutcomeCol: cfg.OutcomeColumn}

	res := CovariateSetSensitivity(f, did, []string{"gdp_growth", "internet_users", "gdp_growth", "missing_col"}, 0)

	assert.Equal(t, []string{"gdp_growth", "internet_users", "missing_col"}, res.BaseCovariates)
	failed := 0
	for _, run := range res.Runs {
		if run.Error != "" {
			failed++
			assert.Equal(t, "DATA_SHAPE", run.ErrorCode)
			assert.Contains(t, run.Covariates, "missing_col")
			continue
		}
		assert.NotNil(t, run.Summary)
		assert.InDelta(t, cfg.Effect, run.ATT, 1.5)
	}
	assert.Greater(t, failed, 0)
	require.NotNil(t, res.ATTMin)
	require.NotNil(t, res.ATTMax)
	assert.LessOrEqual(t, *res.ATTMin, *res.ATTMax)
}

func TestCompareDiDModels(t *testing.T) {
	f, cfg := treatedPanel(t)
	did := estimators.DiDConfig{OutcomeCol: cfg.OutcomeColumn}

	cmp, err := CompareDiDModels(f, did, [][]string{{}, {"gdp_growth"}, {"gdp_growth", "internet_users"}})
	require.NoError(t, err)
	require.Len(t, cmp.Models, 3)

	sum := 0.0
	minBIC := math.Inf(1)
	for _, m := range cmp.Models {
		sum += m.Weight
		minBIC = math.Min(minBIC, m.BIC)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, minBIC, cmp.Models[0].BIC)
	// both covariates enter the outcome, so the full model dominates
	assert.Equal(t, "did_spec_3", cmp.Models[0].Name)
	assert.InDelta(t, cfg.Effect, cmp.AveragedATT, 0.6)

	_, err = CompareDiDModels(f, did, [][]string{{"nope"}})
	assert.True(t, errors.Is(err, core.ErrMissingColumn))
}
