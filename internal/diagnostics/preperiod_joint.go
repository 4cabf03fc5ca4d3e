package diagnostics

import (
	"fmt"
	"math"
	"sort"

	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/internal/regression"

	"gonum.org/v1/gonum/mat"
)

// DefaultKPreMax is the latest offset treated as pre-period by the joint
// tests. Offset -1 is the usual omitted baseline.
const DefaultKPreMax = -2

const (
	MethodFisher = "fisher"
	MethodWald   = "wald"

	minFisherP = 1e-12
)

// PrePeriodJointTest combines the p-values of every offset k <= kPreMax with
// Fisher's method: -2 sum(log p) against chi-square with 2m degrees of
// freedom. The combination assumes independent p-values, which event-study
// coefficients are not; PrePeriodWaldTest accounts for their covariance.
func PrePeriodJointTest(es *estimate.EventStudyResult, kPreMax int) (*estimate.JointTestResult, error) {
	ks := preOffsets(es.PByK, kPreMax)
	if len(ks) == 0 {
		return nil, core.NewInsufficientDataError(fmt.Sprintf("pre-period offsets <= %d", kPreMax), 0, 1)
	}

	stat := 0.0
	for _, k := range ks {
		p := math.Max(minFisherP, math.Min(1, es.PByK[k]))
		if math.IsNaN(p) {
			p = 1
		}
		stat -= 2 * math.Log(p)
	}
	df := 2 * float64(len(ks))
	return &estimate.JointTestResult{
		Method:    MethodFisher,
		KValues:   ks,
		Statistic: stat,
		PValue:    regression.ChiSquarePValue(stat, df),
		DFNum:     df,
	}, nil
}

// PrePeriodWaldTest tests that every pre-period offset coefficient is zero:
// W = b'V^-1 b on the offsets' covariance block, reported as F = W/q against
// F(q, df) with the event study's inference degrees of freedom.
func PrePeriodWaldTest(es *estimate.EventStudyResult, kPreMax int) (*estimate.JointTestResult, error) {
	pos := make(map[int]int, len(es.Offsets))
	for i, k := range es.Offsets {
		pos[k] = i
	}
	var ks []int
	for _, k := range es.Offsets {
		if k <= kPreMax {
			ks = append(ks, k)
		}
	}
	sort.Ints(ks)
	q := len(ks)
	if q == 0 {
		return nil, core.NewInsufficientDataError(fmt.Sprintf("pre-period offsets <= %d", kPreMax), 0, 1)
	}

	b := mat.NewVecDense(q, nil)
	V := mat.NewSymDense(q, nil)
	for a, ka := range ks {
		b.SetVec(a, es.CoefByK[ka])
		for c := a; c < q; c++ {
			V.SetSym(a, c, es.Vcov[pos[ka]][pos[ks[c]]])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(V); !ok {
		return nil, fmt.Errorf("%w: pre-period covariance block is not positive definite", core.ErrDegenerateCovariance)
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDegenerateCovariance, err)
	}
	w := mat.Dot(b, &x)

	dfDenom := es.DFInference
	if dfDenom <= 0 {
		dfDenom = es.Summary.DFResid
	}
	fStat := w / float64(q)
	return &estimate.JointTestResult{
		Method:    MethodWald,
		KValues:   ks,
		Statistic: fStat,
		PValue:    regression.FTestPValue(fStat, float64(q), float64(dfDenom)),
		DFNum:     float64(q),
		DFDenom:   estimate.Ptr(float64(dfDenom)),
	}, nil
}

func preOffsets(byK map[int]float64, kPreMax int) []int {
	var ks []int
	for k := range byK {
		if k <= kPreMax {
			ks = append(ks, k)
		}
	}
	sort.Ints(ks)
	return ks
}
