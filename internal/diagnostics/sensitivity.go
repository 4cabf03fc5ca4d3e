package diagnostics

import (
	"sort"
	"strings"

	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	apperrors "gocausal/internal/errors"
	"gocausal/internal/estimators"
)

// DefaultMaxModels caps the number of covariate sets fitted.
const DefaultMaxModels = 25

const maxComboSize = 3

// CovariateSetSensitivity re-estimates the DiD under covariate subsets: the
// empty set, the full base set, every single-drop variant, then combinations
// of size 1 to 3 in order while the budget lasts. Sets equal up to ordering
// are fitted once. A failing fit is recorded on its run and does not stop
// the sweep.
func CovariateSetSensitivity(f *panel.Frame, cfg estimators.DiDConfig, baseCovariates []string, maxModels int) *estimate.CovariateSensitivityResult {
	if maxModels <= 0 {
		maxModels = DefaultMaxModels
	}
	base := dedupeStable(baseCovariates)
	sets := CovariateSets(base, maxModels)

	out := &estimate.CovariateSensitivityResult{BaseCovariates: base}
	for _, covs := range sets {
		run := estimate.SensitivityRun{Covariates: covs}
		c := cfg
		c.Covariates = covs
		res, err := estimators.DifferenceInDifferences(f, c)
		if err != nil {
			run.Error = err.Error()
			run.ErrorCode = apperrors.Classify(err)
			out.Runs = append(out.Runs, run)
			continue
		}
		run.ATT = res.ATT
		run.PValue = res.PValue
		summary := res.Summary
		run.Summary = &summary
		out.Runs = append(out.Runs, run)

		if out.ATTMin == nil || res.ATT < *out.ATTMin {
			out.ATTMin = estimate.Ptr(res.ATT)
		}
		if out.ATTMax == nil || res.ATT > *out.ATTMax {
			out.ATTMax = estimate.Ptr(res.ATT)
		}
	}
	return out
}

// CovariateSets enumerates the candidate covariate sets for a base set, in
// fitting order, deduplicated and capped at maxModels.
func CovariateSets(base []string, maxModels int) [][]string {
	sets := [][]string{{}, append([]string{}, base...)}
	for _, drop := range base {
		var s []string
		for _, c := range base {
			if c != drop {
				s = append(s, c)
			}
		}
		sets = append(sets, s)
	}

	if len(sets) < maxModels {
		size := maxComboSize
		if size > len(base) {
			size = len(base)
		}
	fill:
		for r := 1; r <= size; r++ {
			for _, comb := range combinations(base, r) {
				sets = append(sets, comb)
				if len(sets) >= maxModels {
					break fill
				}
			}
		}
	}

	seen := make(map[string]bool, len(sets))
	var unique [][]string
	for _, s := range sets {
		key := setKey(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		if s == nil {
			s = []string{}
		}
		unique = append(unique, s)
	}
	if len(unique) > maxModels {
		unique = unique[:maxModels]
	}
	return unique
}

// combinations lists the r-subsets of items in lexicographic index order.
func combinations(items []string, r int) [][]string {
	var out [][]string
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		comb := make([]string, r)
		for i, j := range idx {
			comb[i] = items[j]
		}
		out = append(out, comb)

		i := r - 1
		for i >= 0 && idx[i] == len(items)-r+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func setKey(s []string) string {
	sorted := append([]string(nil), s...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

func dedupeStable(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
