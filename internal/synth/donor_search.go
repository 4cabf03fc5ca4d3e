package synth

import (
	"math"
	"sort"

	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	apperrors "gocausal/internal/errors"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

// Donor search defaults applied to zero-valued SearchConfig fields.
const (
	DefaultMaxDonors      = 15
	DefaultTopKCandidates = 30
	DefaultMinPrePeriods  = 6
	DefaultImprovementTol = 1e-6

	// FallbackNote marks the single trial of a search skipped for lack of
	// pre-intervention periods.
	FallbackNote = "fallback_small_pre_period"

	flatSeriesStd    = 1e-9
	fallbackDonorCap = 5
)

// SearchConfig configures greedy donor-pool selection. Config.Donors, when
// set, restricts the eligible pool.
type SearchConfig struct {
	Config
	MaxDonors      int     `json:"max_donors"`
	TopKCandidates int     `json:"top_k_candidates"`
	MinPrePeriods  int     `json:"min_pre_periods"`
	ImprovementTol float64 `json:"improvement_tol"`
	// Workers > 1 evaluates the candidates of one step concurrently. Trials
	// are recorded in candidate order either way.
	Workers int `json:"workers"`
}

func (c SearchConfig) withDefaults() SearchConfig {
	c.Config = c.Config.withDefaults()
	if c.MaxDonors <= 0 {
		c.MaxDonors = DefaultMaxDonors
	}
	if c.TopKCandidates <= 0 {
		c.TopKCandidates = DefaultTopKCandidates
	}
	if c.MinPrePeriods <= 0 {
		c.MinPrePeriods = DefaultMinPrePeriods
	}
	if c.ImprovementTol <= 0 {
		c.ImprovementTol = DefaultImprovementTol
	}
	return c
}

// SearchDonorPool ranks donors by pre-period correlation with the treated
// unit, keeps the top candidates and adds them greedily, one per step, by
// lowest pre-period RMSE. It is a heuristic and does not guarantee the
// globally best subset. The lowest-RMSE fit over all steps is returned with
// the full trial log.
func SearchDonorPool(f *panel.Frame, cfg SearchConfig) (*estimate.DonorSearchResult, error) {
	cfg = cfg.withDefaults()

	periods := f.Periods()
	pre, _ := panel.SplitPeriods(periods, cfg.InterventionTime)
	eligible, err := donorPool(f, cfg.TreatedUnit, cfg.Donors)
	if err != nil {
		return nil, err
	}

	if len(pre) < cfg.MinPrePeriods {
		base := cfg.Config
		base.Donors = eligible
		best, err := Fit(f, base)
		if err != nil {
			return nil, err
		}
		return &estimate.DonorSearchResult{
			Best:     best,
			Selected: best.DonorUnits,
			Trials:   []estimate.DonorTrial{{Note: FallbackNote, PrePeriodsN: len(pre)}},
			Fallback: true,
		}, nil
	}

	ranked, err := rankCandidates(f, cfg.TreatedUnit, cfg.OutcomeCol, eligible, pre)
	if err != nil {
		return nil, err
	}
	k := cfg.TopKCandidates
	if k > len(ranked) {
		k = len(ranked)
	}
	ranked = ranked[:k]
	candidates := make([]string, len(ranked))
	for i, c := range ranked {
		candidates[i] = c.Unit
	}

	out := &estimate.DonorSearchResult{Candidates: ranked}
	var selected []string
	var stepRMSE []float64
	bestRMSE := math.Inf(1)

	steps := cfg.MaxDonors
	if steps > len(candidates) {
		steps = len(candidates)
	}
	for step := 1; step <= steps; step++ {
		var remaining []string
		for _, c := range candidates {
			if !contains(selected, c) {
				remaining = append(remaining, c)
			}
		}

		fits := evaluateStep(f, cfg, selected, remaining)

		stepBest := -1
		for i, c := range remaining {
			trial := estimate.DonorTrial{Step: step, DonorsN: len(selected) + 1, CandidateAdded: c}
			if fits[i].err != nil {
				trial.Error = fits[i].err.Error()
				trial.ErrorCode = apperrors.Classify(fits[i].err)
			} else {
				trial.PreRMSE = estimate.Ptr(fits[i].res.PreRMSE)
				trial.PostGapMean = estimate.Ptr(fits[i].res.PostGapMean)
				if stepBest < 0 || fits[i].res.PreRMSE < fits[stepBest].res.PreRMSE {
					stepBest = i
				}
			}
			out.Trials = append(out.Trials, trial)
		}
		if stepBest < 0 {
			break
		}

		selected = append(selected, remaining[stepBest])
		rmse := fits[stepBest].res.PreRMSE
		stepRMSE = append(stepRMSE, rmse)
		if rmse < bestRMSE {
			bestRMSE = rmse
			out.Best = fits[stepBest].res
		}

		if s := len(stepRMSE) - 1; s >= 2 && stepRMSE[s-2]-stepRMSE[s] < cfg.ImprovementTol {
			break
		}
	}

	if out.Best == nil {
		base := cfg.Config
		n := fallbackDonorCap
		if n > len(candidates) {
			n = len(candidates)
		}
		base.Donors = candidates[:n]
		out.Best, err = Fit(f, base)
		if err != nil {
			return nil, err
		}
	}
	out.Selected = out.Best.DonorUnits
	return out, nil
}

// rankCandidates orders donors by Pearson correlation of their pre-period
// paths with the treated unit, highest first. Flat series score 0.
func rankCandidates(f *panel.Frame, treated, outcome string, donors, pre []string) ([]estimate.DonorCandidate, error) {
	yt, err := f.Series(treated, outcome, pre)
	if err != nil {
		return nil, err
	}
	ytFlat := isFlat(yt)

	ranked := make([]estimate.DonorCandidate, 0, len(donors))
	for _, d := range donors {
		xd, err := f.Series(d, outcome, pre)
		if err != nil {
			return nil, err
		}
		c := 0.0
		if !ytFlat && !isFlat(xd) {
			if r, err := stats.Pearson(yt, xd); err == nil && !math.IsNaN(r) {
				c = r
			}
		}
		ranked = append(ranked, estimate.DonorCandidate{Unit: d, Correlation: c})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Correlation > ranked[j].Correlation
	})
	if len(ranked) == 0 {
		return nil, core.NewInsufficientDataError("donor candidates", 0, 1)
	}
	return ranked, nil
}

func isFlat(v []float64) bool {
	if len(v) < 2 {
		return true
	}
	sd, err := stats.StandardDeviationPopulation(v)
	return err != nil || sd < flatSeriesStd
}

type stepFit struct {
	res *estimate.SyntheticControlResult
	err error
}

// evaluateStep fits selected+candidate for every remaining candidate. Results
// are indexed by candidate so the trial log order never depends on
// scheduling.
func evaluateStep(f *panel.Frame, cfg SearchConfig, selected, remaining []string) []stepFit {
	fits := make([]stepFit, len(remaining))
	fit := func(i int) {
		c := cfg.Config
		c.Donors = append(append([]string(nil), selected...), remaining[i])
		fits[i].res, fits[i].err = Fit(f, c)
	}

	if cfg.Workers <= 1 {
		for i := range remaining {
			fit(i)
		}
		return fits
	}

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i := range remaining {
		g.Go(func() error {
			fit(i)
			return nil
		})
	}
	_ = g.Wait()
	return fits
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
