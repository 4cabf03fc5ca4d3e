package robustness

import (
	"math"

	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	apperrors "gocausal/internal/errors"
	"gocausal/internal/synth"
)

// SyntheticControlPlacebos refits the synthetic control with every unit, in
// sorted order, as the treated unit and all other units as donors. The row
// of cfg.TreatedUnit is flagged. The summary's permutation p-value is the
// share of successful fits whose |post gap| / pre-RMSE reaches the treated
// unit's; it is absent when the treated unit's own fit failed.
func SyntheticControlPlacebos(f *panel.Frame, cfg synth.Config, opts Options) *estimate.PlaceboSummary {
	units := f.Units()
	trials := mapOrdered(len(units), opts, func(i int) estimate.PlaceboUnitTrial {
		c := cfg
		c.TreatedUnit = units[i]
		c.Donors = nil
		trial := estimate.PlaceboUnitTrial{PlaceboTreated: units[i], IsTreated: units[i] == cfg.TreatedUnit}
		res, err := synth.Fit(f, c)
		if err != nil {
			trial.Error = err.Error()
			trial.ErrorCode = apperrors.Classify(err)
			return trial
		}
		trial.PreRMSE = estimate.Ptr(res.PreRMSE)
		trial.PostGapMean = estimate.Ptr(res.PostGapMean)
		return trial
	})

	out := &estimate.PlaceboSummary{Trials: trials}
	var ratios []float64
	treatedRatio := math.NaN()
	for _, t := range trials {
		if t.Error != "" {
			out.Failed++
			continue
		}
		out.Succeeded++
		r := gapRatio(*t.PostGapMean, *t.PreRMSE)
		ratios = append(ratios, r)
		if t.IsTreated {
			treatedRatio = r
		}
	}
	if !math.IsNaN(treatedRatio) {
		extreme := 0
		for _, r := range ratios {
			if r >= treatedRatio {
				extreme++
			}
		}
		out.PermutationP = estimate.Ptr(float64(extreme) / float64(len(ratios)))
	}
	return out
}

func gapRatio(gap, preRMSE float64) float64 {
	gap = math.Abs(gap)
	if preRMSE == 0 {
		if gap == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return gap / preRMSE
}
