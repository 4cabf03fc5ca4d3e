// Package synth builds synthetic control units: convex combinations of donor
// units that track a treated unit before an intervention.
package synth

import (
	"fmt"
	"math"
	"sort"

	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultIterations   = 4000
	DefaultLearningRate = 1.0
)

// Config configures one synthetic control fit. Units and periods are the
// frame's key columns. Donors defaults to every other unit, sorted.
type Config struct {
	OutcomeCol       string   `json:"outcome_col"`
	TreatedUnit      string   `json:"treated_unit"`
	InterventionTime string   `json:"intervention_time"`
	Donors           []string `json:"donors,omitempty"`
	// Iterations is the projected gradient budget.
	Iterations int `json:"iterations"`
	// LearningRate scales the step 1/L, L being the Lipschitz constant of the
	// pre-period loss gradient. Values in (0, 2) converge.
	LearningRate float64 `json:"learning_rate"`
	// Tolerance stops early once no weight moves by more than it. 0 runs the
	// full budget.
	Tolerance float64 `json:"tolerance"`
}

func (c Config) withDefaults() Config {
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	if c.LearningRate <= 0 {
		c.LearningRate = DefaultLearningRate
	}
	return c
}

// alignment is the treated and donor outcome paths on the global period axis.
type alignment struct {
	periods []string
	t0      int // index of the first post period
	treated []float64
	donors  []string
	paths   [][]float64 // one per donor
}

func align(f *panel.Frame, cfg Config) (*alignment, error) {
	periods := f.Periods()
	treated, err := f.Series(cfg.TreatedUnit, cfg.OutcomeCol, periods)
	if err != nil {
		return nil, err
	}

	donors, err := donorPool(f, cfg.TreatedUnit, cfg.Donors)
	if err != nil {
		return nil, err
	}

	t0 := sort.SearchStrings(periods, cfg.InterventionTime)
	if t0 == 0 {
		return nil, core.NewInsufficientDataError("pre-intervention periods", 0, 1)
	}
	if t0 == len(periods) {
		return nil, core.NewInterventionError(cfg.InterventionTime, "leaves no post-intervention period")
	}

	a := &alignment{periods: periods, t0: t0, treated: treated, donors: donors}
	for _, d := range donors {
		path, err := f.Series(d, cfg.OutcomeCol, periods)
		if err != nil {
			return nil, err
		}
		a.paths = append(a.paths, path)
	}
	return a, nil
}

func donorPool(f *panel.Frame, treated string, requested []string) ([]string, error) {
	units := f.Units()
	known := make(map[string]bool, len(units))
	for _, u := range units {
		known[u] = true
	}

	if len(requested) == 0 {
		var donors []string
		for _, u := range units {
			if u != treated {
				donors = append(donors, u)
			}
		}
		if len(donors) == 0 {
			return nil, core.NewInsufficientDataError("donor units", 0, 1)
		}
		return donors, nil
	}

	seen := make(map[string]bool, len(requested))
	donors := make([]string, 0, len(requested))
	for _, d := range requested {
		switch {
		case d == treated:
			return nil, core.NewInvalidInputError("donors", "must not contain the treated unit "+treated)
		case !known[d]:
			return nil, core.NewUnknownUnitError(d)
		case seen[d]:
			return nil, core.NewInvalidInputError("donors", "duplicate donor "+d)
		}
		seen[d] = true
		donors = append(donors, d)
	}
	return donors, nil
}

// Fit estimates convex donor weights by projected gradient descent on the
// mean squared pre-period gap and reports the gap path.
func Fit(f *panel.Frame, cfg Config) (*estimate.SyntheticControlResult, error) {
	cfg = cfg.withDefaults()
	a, err := align(f, cfg)
	if err != nil {
		return nil, err
	}

	T, J := a.t0, len(a.donors)
	X := mat.NewDense(T, J, nil)
	for j, path := range a.paths {
		X.SetCol(j, path[:T])
	}
	y := mat.NewVecDense(T, append([]float64(nil), a.treated[:T]...))

	w, iters, err := projectedGradient(X, y, cfg)
	if err != nil {
		return nil, err
	}

	res := &estimate.SyntheticControlResult{
		TreatedUnit:      cfg.TreatedUnit,
		InterventionTime: cfg.InterventionTime,
		DonorUnits:       append([]string(nil), a.donors...),
		Weights:          make(map[string]float64, J),
		PrePeriods:       T,
		PostPeriods:      len(a.periods) - T,
		Iterations:       iters,
		Gaps:             make([]estimate.PeriodGap, len(a.periods)),
	}
	for j, d := range a.donors {
		res.Weights[d] = w[j]
	}

	var preSS, postSum float64
	for t, p := range a.periods {
		synthetic := 0.0
		for j := range a.donors {
			synthetic += w[j] * a.paths[j][t]
		}
		gap := a.treated[t] - synthetic
		res.Gaps[t] = estimate.PeriodGap{
			Period:    p,
			Observed:  a.treated[t],
			Synthetic: synthetic,
			Gap:       gap,
			Post:      t >= T,
		}
		if t < T {
			preSS += gap * gap
		} else {
			postSum += gap
		}
	}
	res.PreRMSE = math.Sqrt(preSS / float64(T))
	res.PostGapMean = postSum / float64(res.PostPeriods)
	return res, nil
}

// projectedGradient minimises (1/T)||y - Xw||^2 over the probability simplex
// approximately: a gradient step of size LearningRate/L, clipping at zero and
// renormalising. If every weight clips to zero all mass moves to the largest
// pre-clip coordinate.
func projectedGradient(X *mat.Dense, y *mat.VecDense, cfg Config) ([]float64, int, error) {
	T, J := X.Dims()

	w := make([]float64, J)
	for j := range w {
		w[j] = 1 / float64(J)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	var eig mat.EigenSym
	if ok := eig.Factorize(&xtx, false); !ok {
		return nil, 0, fmt.Errorf("%w: eigen decomposition of donor gram matrix failed", core.ErrDegenerateCovariance)
	}
	lipschitz := 2 * floats.Max(eig.Values(nil)) / float64(T)
	if !(lipschitz > 0) {
		// every donor path is zero; the loss does not depend on w
		return w, 0, nil
	}
	step := cfg.LearningRate / lipschitz

	var xty mat.VecDense
	xty.MulVec(X.T(), y)
	wv := mat.NewVecDense(J, w)
	var grad mat.VecDense
	prev := make([]float64, J)

	iters := 0
	for iters < cfg.Iterations {
		iters++
		copy(prev, w)

		// grad = 2/T (X'X w - X'y)
		grad.MulVec(&xtx, wv)
		grad.SubVec(&grad, &xty)
		grad.ScaleVec(2/float64(T), &grad)

		floats.AddScaled(w, -step, grad.RawVector().Data)
		best := floats.MaxIdx(w)
		for j := range w {
			if w[j] < 0 {
				w[j] = 0
			}
		}
		if s := floats.Sum(w); s > 0 {
			floats.Scale(1/s, w)
		} else {
			for j := range w {
				w[j] = 0
			}
			w[best] = 1
		}

		if cfg.Tolerance > 0 && floats.Distance(w, prev, math.Inf(1)) < cfg.Tolerance {
			break
		}
	}
	return w, iters, nil
}
