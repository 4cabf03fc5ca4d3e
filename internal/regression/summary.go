package regression

import "gocausal/domain/estimate"

// Summary converts the fit statistics into the shared result value object.
func (r *Result) Summary(covariates []string) estimate.ModelSummary {
	covs := append([]string{}, covariates...)
	var absorbed []string
	if len(r.Absorbed) > 0 {
		absorbed = append(absorbed, r.Absorbed...)
	}
	return estimate.ModelSummary{
		N:          r.N,
		K:          r.K,
		DFResid:    r.DFResid,
		R2:         r.R2,
		AdjR2:      r.AdjR2,
		LogLik:     r.LogLik,
		AIC:        r.AIC,
		BIC:        r.BIC,
		CovType:    string(r.CovType),
		Clusters:   r.Clusters,
		HACLags:    r.HACLags,
		Covariates: covs,
		Absorbed:   absorbed,
	}
}
