package regression

import (
	"fmt"
	"math"

	"gocausal/domain/core"

	"gonum.org/v1/gonum/mat"
)

// covariance fills the covariance bookkeeping on res and returns the
// coefficient covariance matrix. bread is (X'X)^-1.
func covariance(spec Spec, rows []int, X *mat.Dense, resid []float64, bread *mat.SymDense, res *Result) (*mat.SymDense, error) {
	switch {
	case spec.Cluster != nil:
		return clusterCovariance(pickLabels(spec.Cluster, rows), X, resid, bread, res)
	case spec.HACLags > 0:
		return hacCovariance(spec.HACLags, X, resid, bread, res)
	default:
		res.CovType = CovNonrobust
		res.DFInference = res.DFResid
		sigma2 := res.RSS / float64(res.DFResid)
		var v mat.SymDense
		v.ScaleSym(sigma2, bread)
		return &v, nil
	}
}

// clusterCovariance is the CR1 sandwich: groups are summed before the outer
// product and scaled by G/(G-1) * (n-1)/(n-k).
func clusterCovariance(labels []string, X *mat.Dense, resid []float64, bread *mat.SymDense, res *Result) (*mat.SymDense, error) {
	n, p := X.Dims()
	index := make(map[string]int)
	var scores [][]float64
	for i, label := range labels {
		g, ok := index[label]
		if !ok {
			g = len(scores)
			index[label] = g
			scores = append(scores, make([]float64, p))
		}
		for j := 0; j < p; j++ {
			scores[g][j] += X.At(i, j) * resid[i]
		}
	}
	groups := len(scores)
	if groups < 2 {
		return nil, core.NewInsufficientDataError("clusters", groups, 2)
	}

	meat := mat.NewSymDense(p, nil)
	for _, s := range scores {
		meat.SymRankOne(meat, 1, mat.NewVecDense(p, s))
	}

	g := float64(groups)
	factor := g / (g - 1) * float64(n-1) / float64(n-res.K)
	v := sandwich(bread, meat, factor)

	res.CovType = CovCluster
	res.Clusters = groups
	res.DFInference = groups - 1
	return v, nil
}

// hacCovariance is the Newey-West estimator with Bartlett weights.
func hacCovariance(lags int, X *mat.Dense, resid []float64, bread *mat.SymDense, res *Result) (*mat.SymDense, error) {
	n, p := X.Dims()
	if lags > n-1 {
		lags = n - 1
	}

	scores := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			scores.Set(i, j, X.At(i, j)*resid[i])
		}
	}

	meat := mat.NewSymDense(p, nil)
	meat.SymOuterK(1, scores.T())

	for l := 1; l <= lags; l++ {
		w := 1 - float64(l)/float64(lags+1)
		gamma := mat.NewDense(p, p, nil)
		for t := l; t < n; t++ {
			var outer mat.Dense
			outer.Outer(1, scores.RowView(t), scores.RowView(t-l))
			gamma.Add(gamma, &outer)
		}
		for a := 0; a < p; a++ {
			for b := a; b < p; b++ {
				meat.SetSym(a, b, meat.At(a, b)+w*(gamma.At(a, b)+gamma.At(b, a)))
			}
		}
	}

	v := sandwich(bread, meat, 1)
	res.CovType = CovHAC
	res.HACLags = lags
	res.DFInference = res.DFResid
	return v, nil
}

// sandwich computes factor * B M B, symmetrised.
func sandwich(bread, meat *mat.SymDense, factor float64) *mat.SymDense {
	p := bread.SymmetricDim()
	var tmp, full mat.Dense
	tmp.Mul(bread, meat)
	full.Mul(&tmp, bread)
	out := mat.NewSymDense(p, nil)
	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			out.SetSym(a, b, factor*(full.At(a, b)+full.At(b, a))/2)
		}
	}
	return out
}

// Describe renders a short human-readable covariance label.
func (r *Result) Describe() string {
	switch r.CovType {
	case CovCluster:
		return fmt.Sprintf("cluster(G=%d)", r.Clusters)
	case CovHAC:
		return fmt.Sprintf("HAC(maxlags=%d)", r.HACLags)
	default:
		return string(r.CovType)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
