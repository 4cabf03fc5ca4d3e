package diagnostics

import (
	"fmt"
	"math"
	"sort"

	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	apperrors "gocausal/internal/errors"
	"gocausal/internal/estimators"
)

// BICWeights converts BIC values into model weights exp(-delta/2), normalised
// to sum to one, where delta is the distance to the smallest BIC.
func BICWeights(bics []float64) []float64 {
	if len(bics) == 0 {
		return nil
	}
	minBIC := math.Inf(1)
	for _, b := range bics {
		minBIC = math.Min(minBIC, b)
	}
	w := make([]float64, len(bics))
	sum := 0.0
	for i, b := range bics {
		w[i] = math.Exp(-0.5 * (b - minBIC))
		sum += w[i]
	}
	if sum == 0 {
		sum = 1
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// CompareDiDModels fits one DiD per candidate covariate set, scores them by
// BIC weight and returns them sorted by weight, highest first, together with
// the weight-averaged ATT. Any failing specification fails the comparison.
func CompareDiDModels(f *panel.Frame, cfg estimators.DiDConfig, candidates [][]string) (*estimate.ModelComparison, error) {
	if len(candidates) == 0 {
		return nil, apperrors.InvalidInput("model comparison needs at least one candidate covariate set")
	}

	scores := make([]estimate.ModelScore, len(candidates))
	bics := make([]float64, len(candidates))
	for i, covs := range candidates {
		c := cfg
		c.Covariates = covs
		res, err := estimators.DifferenceInDifferences(f, c)
		if err != nil {
			return nil, apperrors.Wrapf(err, "did_spec_%d", i+1)
		}
		bics[i] = res.Summary.BIC
		scores[i] = estimate.ModelScore{
			Name:       fmt.Sprintf("did_spec_%d", i+1),
			BIC:        res.Summary.BIC,
			N:          res.Summary.N,
			K:          res.Summary.K,
			ATT:        res.ATT,
			PValue:     res.PValue,
			Covariates: append([]string{}, covs...),
		}
	}

	out := &estimate.ModelComparison{}
	for i, w := range BICWeights(bics) {
		scores[i].Weight = w
		out.AveragedATT += w * scores[i].ATT
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].Weight > scores[b].Weight })
	out.Models = scores
	return out, nil
}
