package regression

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"gocausal/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSample(n int, seed int64) (y, x []float64) {
	rng := rand.New(rand.NewSource(seed))
	y = make([]float64, n)
	x = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i) / 3
		y[i] = 2 + 3*x[i] + 0.1*rng.NormFloat64()
	}
	return y, x
}

func TestFit_OLSRecoversLine(t *testing.T) {
	y, x := linearSample(60, 1)

	res, err := Fit(Spec{Y: y, Regressors: []Regressor{{Name: "x", Values: x}}, Intercept: true})
	require.NoError(t, err)

	assert.Equal(t, []string{ConstName, "x"}, res.Names)
	c, err := res.Coefficient("x")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, c.Estimate, 0.01)
	assert.Less(t, c.PValue, 1e-10)

	icpt, err := res.Coefficient(ConstName)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, icpt.Estimate, 0.1)

	assert.Equal(t, 60, res.N)
	assert.Equal(t, 2, res.K)
	assert.Equal(t, 58, res.DFResid)
	assert.Equal(t, CovNonrobust, res.CovType)
	assert.Greater(t, res.R2, 0.99)
	assert.InDelta(t, -2*res.LogLik+2*math.Log(60), res.BIC, 1e-9)
	assert.InDelta(t, -2*res.LogLik+4, res.AIC, 1e-9)
}

func TestFit_ListwiseDeletion(t *testing.T) {
	y, x := linearSample(30, 2)
	y[3] = math.NaN()
	x[7] = math.NaN()

	res, err := Fit(Spec{Y: y, Regressors: []Regressor{{Name: "x", Values: x}}, Intercept: true})
	require.NoError(t, err)
	assert.Equal(t, 28, res.N)
	assert.Len(t, res.Residuals, 28)
}

// twoWayPanel returns a balanced panel where y depends on unit and period
// effects plus beta*x.
func twoWayPanel(units, periods int, beta float64, seed int64) (y, x []float64, unit, period []string) {
	rng := rand.New(rand.NewSource(seed))
	for u := 0; u < units; u++ {
		ue := rng.NormFloat64() * 5
		for p := 0; p < periods; p++ {
			xi := rng.NormFloat64()
			y = append(y, ue+0.5*float64(p)+beta*xi+0.2*rng.NormFloat64())
			x = append(x, xi)
			unit = append(unit, fmt.Sprintf("u%d", u))
			period = append(period, fmt.Sprintf("p%02d", p))
		}
	}
	return y, x, unit, period
}

func TestFit_AbsorbedEffectsMatchDummyRegression(t *testing.T) {
	y, x, unit, period := twoWayPanel(5, 8, 1.5, 3)

	absorbed, err := Fit(Spec{
		Y:          y,
		Regressors: []Regressor{{Name: "x", Values: x}},
		Absorb:     [][]string{unit, period},
	})
	require.NoError(t, err)

	regs := []Regressor{{Name: "x", Values: x}}
	for u := 1; u < 5; u++ {
		d := make([]float64, len(y))
		for i := range d {
			if unit[i] == fmt.Sprintf("u%d", u) {
				d[i] = 1
			}
		}
		regs = append(regs, Regressor{Name: fmt.Sprintf("unit_%d", u), Values: d})
	}
	for p := 1; p < 8; p++ {
		d := make([]float64, len(y))
		for i := range d {
			if period[i] == fmt.Sprintf("p%02d", p) {
				d[i] = 1
			}
		}
		regs = append(regs, Regressor{Name: fmt.Sprintf("period_%d", p), Values: d})
	}
	dummies, err := Fit(Spec{Y: y, Regressors: regs, Intercept: true})
	require.NoError(t, err)

	a, _ := absorbed.Coefficient("x")
	d, _ := dummies.Coefficient("x")
	assert.InDelta(t, d.Estimate, a.Estimate, 1e-8)
	assert.InDelta(t, d.StdErr, a.StdErr, 1e-8)
	assert.Equal(t, dummies.K, absorbed.K)
	assert.Equal(t, dummies.DFResid, absorbed.DFResid)
	assert.InDelta(t, dummies.R2, absorbed.R2, 1e-8)
	assert.InDelta(t, dummies.BIC, absorbed.BIC, 1e-6)
	assert.Equal(t, []int{5, 8}, absorbed.FELevels)
}

func TestFit_RegressorAbsorbedByFixedEffects(t *testing.T) {
	y, x, unit, period := twoWayPanel(4, 6, 1, 4)
	unitConst := make([]float64, len(y))
	for i := range unitConst {
		if unit[i] == "u0" {
			unitConst[i] = 1
		}
	}
	spec := Spec{
		Y:          y,
		Regressors: []Regressor{{Name: "treated", Values: unitConst}, {Name: "x", Values: x}},
		Absorb:     [][]string{unit, period},
	}

	res, err := Fit(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"treated"}, res.Absorbed)
	assert.False(t, res.Has("treated"))
	_, err = res.Coefficient("treated")
	assert.True(t, errors.Is(err, core.ErrUnidentified))

	spec.Required = []string{"treated"}
	_, err = Fit(spec)
	assert.True(t, errors.Is(err, core.ErrUnidentified))
}

func TestFit_CollinearDesign(t *testing.T) {
	y, x := linearSample(20, 5)
	twice := make([]float64, len(x))
	for i := range x {
		twice[i] = 2 * x[i]
	}
	_, err := Fit(Spec{
		Y:          y,
		Regressors: []Regressor{{Name: "x", Values: x}, {Name: "x2", Values: twice}},
		Intercept:  true,
	})
	assert.True(t, errors.Is(err, core.ErrUnidentified))
}

func TestFit_NoResidualDegreesOfFreedom(t *testing.T) {
	_, err := Fit(Spec{
		Y:          []float64{1, 2},
		Regressors: []Regressor{{Name: "x", Values: []float64{0, 1}}},
		Intercept:  true,
	})
	assert.True(t, errors.Is(err, core.ErrUnidentified))
}

func TestFit_ClusterRobust(t *testing.T) {
	y, x, unit, period := twoWayPanel(6, 10, 2, 6)

	res, err := Fit(Spec{
		Y:          y,
		Regressors: []Regressor{{Name: "x", Values: x}},
		Absorb:     [][]string{unit, period},
		Cluster:    unit,
	})
	require.NoError(t, err)
	assert.Equal(t, CovCluster, res.CovType)
	assert.Equal(t, 6, res.Clusters)
	assert.Equal(t, 5, res.DFInference)
	c, _ := res.Coefficient("x")
	assert.InDelta(t, 2.0, c.Estimate, 0.15)
	assert.Greater(t, c.StdErr, 0.0)
	assert.Equal(t, "cluster(G=6)", res.Describe())
}

func TestFit_SingleClusterRejected(t *testing.T) {
	y, x := linearSample(10, 7)
	cluster := make([]string, len(y))
	for i := range cluster {
		cluster[i] = "only"
	}
	_, err := Fit(Spec{Y: y, Regressors: []Regressor{{Name: "x", Values: x}}, Intercept: true, Cluster: cluster})
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestFit_ClusterAndHACAreExclusive(t *testing.T) {
	y, x := linearSample(10, 8)
	cluster := make([]string, len(y))
	for i := range cluster {
		cluster[i] = fmt.Sprint(i % 2)
	}
	_, err := Fit(Spec{Y: y, Regressors: []Regressor{{Name: "x", Values: x}}, Intercept: true, Cluster: cluster, HACLags: 2})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestFit_HAC(t *testing.T) {
	y, x := linearSample(40, 9)

	res, err := Fit(Spec{Y: y, Regressors: []Regressor{{Name: "x", Values: x}}, Intercept: true, HACLags: 3})
	require.NoError(t, err)
	assert.Equal(t, CovHAC, res.CovType)
	assert.Equal(t, 3, res.HACLags)
	assert.Equal(t, res.DFResid, res.DFInference)

	short, err := Fit(Spec{
		Y:          []float64{1, 2.1, 2.9, 4.2},
		Regressors: []Regressor{{Name: "x", Values: []float64{0, 1, 2, 3}}},
		Intercept:  true,
		HACLags:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, short.HACLags)
}

func TestFit_DefaultsToNonrobust(t *testing.T) {
	y, x := linearSample(25, 10)
	res, err := Fit(Spec{Y: y, Regressors: []Regressor{{Name: "x", Values: x}}, Intercept: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.HACLags)
	assert.Equal(t, "nonrobust", res.Describe())
}

func TestFit_RowOrderInvariance(t *testing.T) {
	y, x, unit, period := twoWayPanel(4, 7, -1, 11)
	base, err := Fit(Spec{Y: y, Regressors: []Regressor{{Name: "x", Values: x}}, Absorb: [][]string{unit, period}, Cluster: unit})
	require.NoError(t, err)

	perm := rand.New(rand.NewSource(12)).Perm(len(y))
	py := make([]float64, len(y))
	px := make([]float64, len(y))
	pu := make([]string, len(y))
	pp := make([]string, len(y))
	for i, j := range perm {
		py[i], px[i], pu[i], pp[i] = y[j], x[j], unit[j], period[j]
	}
	shuffled, err := Fit(Spec{Y: py, Regressors: []Regressor{{Name: "x", Values: px}}, Absorb: [][]string{pu, pp}, Cluster: pu})
	require.NoError(t, err)

	a, _ := base.Coefficient("x")
	b, _ := shuffled.Coefficient("x")
	assert.InDelta(t, a.Estimate, b.Estimate, 1e-9)
	assert.InDelta(t, a.PValue, b.PValue, 1e-9)
}

func TestFit_CovarianceOf(t *testing.T) {
	y, x := linearSample(30, 13)
	res, err := Fit(Spec{Y: y, Regressors: []Regressor{{Name: "x", Values: x}}, Intercept: true})
	require.NoError(t, err)

	v, err := res.CovarianceOf([]string{"x"})
	require.NoError(t, err)
	c, _ := res.Coefficient("x")
	assert.InDelta(t, c.StdErr*c.StdErr, v[0][0], 1e-12)

	_, err = res.CovarianceOf([]string{"missing"})
	assert.True(t, errors.Is(err, core.ErrMissingColumn))
}

func TestFit_InputValidation(t *testing.T) {
	_, err := Fit(Spec{Y: []float64{1, 2, 3}, Regressors: []Regressor{{Name: "x", Values: []float64{1}}}})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = Fit(Spec{Y: []float64{1, 2, 3}, Regressors: []Regressor{{Name: "x", Values: []float64{1, 2, 3}}}, Required: []string{"z"}})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = Fit(Spec{Y: []float64{math.NaN()}, Regressors: []Regressor{{Name: "x", Values: []float64{1}}}})
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestPValueHelpers(t *testing.T) {
	assert.InDelta(t, 1.0, TwoSidedTPValue(0, 10), 1e-12)
	assert.True(t, math.IsNaN(TwoSidedTPValue(math.NaN(), 10)))
	assert.InDelta(t, 0.05, ChiSquarePValue(3.841458820694124, 1), 1e-6)
	assert.Equal(t, 1.0, FTestPValue(0, 2, 10))
	assert.Less(t, FTestPValue(50, 2, 100), 1e-10)
}
