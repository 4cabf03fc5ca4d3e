// Package regression is the linear-model backbone shared by every estimator:
// ordinary least squares with absorbed categorical fixed effects and
// nonrobust, cluster-robust or HAC (Newey-West) covariance.
package regression

import (
	"fmt"
	"math"
	"strings"

	"gocausal/domain/core"

	"gonum.org/v1/gonum/mat"
)

// ConstName is the coefficient name of the explicit intercept.
const ConstName = "const"

const (
	rankTolerance    = 1e-10
	absorbedRelative = 1e-9
	minResidualSS    = 1e-300
)

// CovType names the covariance estimator behind the standard errors.
type CovType string

const (
	CovNonrobust CovType = "nonrobust"
	CovCluster   CovType = "cluster"
	CovHAC       CovType = "HAC"
)

// Regressor is one named column of the design.
type Regressor struct {
	Name   string
	Values []float64
}

// Spec describes one regression. Rows with a NaN outcome or regressor, or an
// empty fixed-effect or cluster label, are dropped listwise before fitting.
type Spec struct {
	Y          []float64
	Regressors []Regressor
	// Intercept adds a constant column. It is implied, and ignored, when
	// fixed effects are absorbed.
	Intercept bool
	// Absorb holds one label slice per fixed-effect dimension.
	Absorb [][]string
	// Cluster switches to cluster-robust standard errors grouped by label.
	Cluster []string
	// HACLags > 0 switches to Newey-West standard errors; rows are taken in
	// the order supplied.
	HACLags int
	// Required regressors must be identified; losing one to absorption or
	// collinearity fails the fit.
	Required []string
}

// Coefficient is the inference summary for one regressor.
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	TStat    float64 `json:"t_stat"`
	PValue   float64 `json:"p_value"`
}

// Result is a fitted regression.
type Result struct {
	Names     []string
	Coef      []float64
	StdErr    []float64
	TStat     []float64
	PValue    []float64
	Absorbed  []string
	Residuals []float64

	N           int
	K           int // estimated parameters, absorbed fixed effects included
	DFResid     int
	DFInference int
	RSS         float64
	TSS         float64
	R2          float64
	AdjR2       float64
	LogLik      float64
	AIC         float64
	BIC         float64
	CovType     CovType
	Clusters    int
	HACLags     int
	FELevels    []int

	vcov  *mat.SymDense
	index map[string]int
}

// Fit estimates the regression described by spec.
func Fit(spec Spec) (*Result, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	rows := completeRows(spec)
	n := len(rows)
	if n == 0 {
		return nil, core.NewInsufficientDataError("complete observations", 0, 1)
	}

	y := pick(spec.Y, rows)
	raw := make([][]float64, len(spec.Regressors))
	for j, r := range spec.Regressors {
		raw[j] = pick(r.Values, rows)
	}

	tss := centredSumOfSquares(y)

	absorbedParams := 0
	var fe *absorber
	var levels []int
	if len(spec.Absorb) > 0 {
		labels := make([][]string, len(spec.Absorb))
		for d, dim := range spec.Absorb {
			labels[d] = pickLabels(dim, rows)
		}
		fe = newAbsorber(labels)
		absorbedParams = fe.parameters()
		levels = fe.levels()
	}

	names := make([]string, 0, len(spec.Regressors)+1)
	cols := make([][]float64, 0, len(spec.Regressors)+1)
	var dropped []string

	if fe == nil && spec.Intercept {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		names = append(names, ConstName)
		cols = append(cols, ones)
	}

	for j, r := range spec.Regressors {
		col := raw[j]
		before := norm(col)
		if fe != nil {
			col = append([]float64(nil), col...)
			fe.demean(col)
		}
		if norm(col) <= absorbedRelative*(1+before) {
			dropped = append(dropped, r.Name)
			continue
		}
		names = append(names, r.Name)
		cols = append(cols, col)
	}

	if fe != nil {
		fe.demean(y)
	}

	for _, req := range spec.Required {
		for _, d := range dropped {
			if d == req {
				return nil, core.NewUnidentifiedError(fmt.Sprintf("%s has no variation left after fixed effects", req))
			}
		}
	}

	p := len(cols)
	if p == 0 {
		return nil, core.NewUnidentifiedError("no identifiable regressors")
	}
	k := p + absorbedParams
	dfResid := n - k
	if dfResid <= 0 {
		return nil, core.NewUnidentifiedError(fmt.Sprintf("no residual degrees of freedom (n=%d, k=%d)", n, k))
	}

	X := mat.NewDense(n, p, nil)
	for j, col := range cols {
		X.SetCol(j, col)
	}
	if err := checkRank(X, names); err != nil {
		return nil, err
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, core.NewUnidentifiedError("normal equations are not positive definite")
	}
	var bread mat.SymDense
	if err := chol.InverseTo(&bread); err != nil {
		return nil, core.NewUnidentifiedError("normal equations are singular: " + err.Error())
	}

	yVec := mat.NewVecDense(n, y)
	var xty mat.VecDense
	xty.MulVec(X.T(), yVec)
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, core.NewUnidentifiedError("normal equations are singular: " + err.Error())
	}

	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	resid := make([]float64, n)
	rss := 0.0
	for i := 0; i < n; i++ {
		resid[i] = y[i] - fitted.AtVec(i)
		rss += resid[i] * resid[i]
	}

	res := &Result{
		Names:     names,
		Coef:      make([]float64, p),
		StdErr:    make([]float64, p),
		TStat:     make([]float64, p),
		PValue:    make([]float64, p),
		Absorbed:  dropped,
		Residuals: resid,
		N:         n,
		K:         k,
		DFResid:   dfResid,
		RSS:       rss,
		TSS:       tss,
		FELevels:  levels,
		index:     make(map[string]int, p),
	}
	for j, name := range names {
		res.Coef[j] = beta.AtVec(j)
		res.index[name] = j
	}

	vcov, err := covariance(spec, rows, X, resid, &bread, res)
	if err != nil {
		return nil, err
	}
	res.vcov = vcov

	for j := range names {
		v := vcov.At(j, j)
		if v < 0 || !finite(v) {
			if contains(spec.Required, names[j]) {
				return nil, fmt.Errorf("%w: variance of %s is %v", core.ErrDegenerateCovariance, names[j], v)
			}
			res.StdErr[j] = math.NaN()
			res.TStat[j] = math.NaN()
			res.PValue[j] = math.NaN()
			continue
		}
		res.StdErr[j] = math.Sqrt(v)
		res.TStat[j] = res.Coef[j] / res.StdErr[j]
		res.PValue[j] = TwoSidedTPValue(res.TStat[j], res.DFInference)
	}

	res.fillFitStatistics(fe != nil || spec.Intercept)
	return res, nil
}

// Coefficient looks up a regressor by name.
func (r *Result) Coefficient(name string) (Coefficient, error) {
	j, ok := r.index[name]
	if !ok {
		if contains(r.Absorbed, name) {
			return Coefficient{}, core.NewUnidentifiedError(name + " was absorbed by fixed effects")
		}
		return Coefficient{}, core.NewMissingColumnError(name)
	}
	return Coefficient{
		Name:     name,
		Estimate: r.Coef[j],
		StdErr:   r.StdErr[j],
		TStat:    r.TStat[j],
		PValue:   r.PValue[j],
	}, nil
}

// Has reports whether a regressor was identified and estimated.
func (r *Result) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// CovarianceOf returns the covariance block of the named coefficients in the
// order given.
func (r *Result) CovarianceOf(names []string) ([][]float64, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j, ok := r.index[name]
		if !ok {
			return nil, core.NewMissingColumnError(name)
		}
		idx[i] = j
	}
	out := make([][]float64, len(names))
	for a, ja := range idx {
		out[a] = make([]float64, len(names))
		for b, jb := range idx {
			out[a][b] = r.vcov.At(ja, jb)
		}
	}
	return out, nil
}

func (r *Result) fillFitStatistics(hasConstant bool) {
	n := float64(r.N)
	if r.TSS > 0 {
		r.R2 = 1 - r.RSS/r.TSS
	}
	dfTotal := n
	if hasConstant {
		dfTotal = n - 1
	}
	r.AdjR2 = 1 - (1-r.R2)*dfTotal/float64(r.DFResid)

	sigma2 := math.Max(r.RSS/n, minResidualSS)
	r.LogLik = -n / 2 * (math.Log(2*math.Pi) + math.Log(sigma2) + 1)
	r.AIC = -2*r.LogLik + 2*float64(r.K)
	r.BIC = -2*r.LogLik + float64(r.K)*math.Log(n)
}

func validateSpec(spec Spec) error {
	n := len(spec.Y)
	for _, r := range spec.Regressors {
		if len(r.Values) != n {
			return core.NewInvalidInputError("regressor "+r.Name, fmt.Sprintf("has %d rows, outcome has %d", len(r.Values), n))
		}
		if r.Name == "" || r.Name == ConstName {
			return core.NewInvalidInputError("regressor", "name must be non-empty and not "+ConstName)
		}
	}
	for d, dim := range spec.Absorb {
		if len(dim) != n {
			return core.NewInvalidInputError(fmt.Sprintf("fixed effect %d", d), "length does not match outcome")
		}
	}
	if spec.Cluster != nil && len(spec.Cluster) != n {
		return core.NewInvalidInputError("cluster", "length does not match outcome")
	}
	if spec.Cluster != nil && spec.HACLags > 0 {
		return core.NewInvalidInputError("covariance", "cluster-robust and HAC errors are mutually exclusive")
	}
	if spec.HACLags < 0 {
		return core.NewInvalidInputError("hac lags", "must be non-negative")
	}
	for _, req := range spec.Required {
		found := false
		for _, r := range spec.Regressors {
			if r.Name == req {
				found = true
				break
			}
		}
		if !found {
			return core.NewInvalidInputError("required regressor "+req, "not part of the design")
		}
	}
	return nil
}

func completeRows(spec Spec) []int {
	rows := make([]int, 0, len(spec.Y))
	for i, y := range spec.Y {
		if math.IsNaN(y) {
			continue
		}
		ok := true
		for _, r := range spec.Regressors {
			if math.IsNaN(r.Values[i]) {
				ok = false
				break
			}
		}
		for _, dim := range spec.Absorb {
			if ok && dim[i] == "" {
				ok = false
			}
		}
		if ok && spec.Cluster != nil && spec.Cluster[i] == "" {
			ok = false
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// checkRank rejects designs whose column-normalised matrix is numerically
// rank deficient.
func checkRank(X *mat.Dense, names []string) error {
	n, p := X.Dims()
	scaled := mat.NewDense(n, p, nil)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, X)
		s := norm(col)
		for i := range col {
			col[i] /= s
		}
		scaled.SetCol(j, col)
	}

	var svd mat.SVD
	if ok := svd.Factorize(scaled, mat.SVDNone); !ok {
		return core.NewUnidentifiedError("singular value decomposition failed")
	}
	values := svd.Values(nil)
	rank := 0
	for _, s := range values {
		if s > rankTolerance*values[0] {
			rank++
		}
	}
	if rank < p {
		return core.NewUnidentifiedError(fmt.Sprintf("design is collinear (rank %d < %d regressors: %s)", rank, p, strings.Join(names, ", ")))
	}
	return nil
}

func pick(values []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

func pickLabels(values []string, rows []int) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

func centredSumOfSquares(v []float64) float64 {
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	ss := 0.0
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	return ss
}

func norm(v []float64) float64 {
	return mat.Norm(mat.NewVecDense(len(v), v), 2)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
