// Package diagnostics checks the assumptions behind the DiD family of
// estimators and measures how much their answers move across
// specifications.
package diagnostics

import (
	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	"gocausal/internal/regression"
)

// MinPreTrendRows is the smallest pre-period sample the pretest runs on.
const MinPreTrendRows = 10

// TrendInteractionName is the regressor name of treated x trend.
const TrendInteractionName = "treated_x_trend"

// ParallelTrendsConfig configures the pre-period differential trend test.
type ParallelTrendsConfig struct {
	UnitCol          string   `json:"unit_col"`
	TimeCol          string   `json:"time_col"`
	OutcomeCol       string   `json:"outcome_col"`
	TreatedCol       string   `json:"treated_col"`
	InterventionTime string   `json:"intervention_time"`
	Covariates       []string `json:"covariates"`
	ClusterCol       string   `json:"cluster_col,omitempty"`
}

// ParallelTrendsPretest fits, on pre-intervention rows only,
//
//	outcome ~ treated + trend + treated*trend + covariates + unit FE + time FE
//
// where trend indexes the distinct pre periods. A significant treated x trend
// coefficient is evidence against parallel trends.
func ParallelTrendsPretest(f *panel.Frame, cfg ParallelTrendsConfig) (*estimate.ParallelTrendsResult, error) {
	unitCol := orDefault(cfg.UnitCol, f.UnitCol())
	timeCol := orDefault(cfg.TimeCol, f.PeriodCol())
	treatedCol := orDefault(cfg.TreatedCol, panel.TreatedCol)

	labels, err := f.Labels(timeCol)
	if err != nil {
		return nil, err
	}
	pre := f.Filter(func(i int) bool { return labels[i] < cfg.InterventionTime })
	if pre.Len() < MinPreTrendRows {
		return nil, core.NewInsufficientDataError("pre-period rows for parallel trends", pre.Len(), MinPreTrendRows)
	}

	preLabels, _ := pre.Labels(timeCol)
	index := make(map[string]float64)
	for _, p := range distinctSorted(preLabels) {
		index[p] = float64(len(index))
	}
	trend := make([]float64, pre.Len())
	for i, p := range preLabels {
		trend[i] = index[p]
	}

	y, err := pre.Column(cfg.OutcomeCol)
	if err != nil {
		return nil, err
	}
	treated, err := pre.Column(treatedCol)
	if err != nil {
		return nil, err
	}
	units, err := pre.Labels(unitCol)
	if err != nil {
		return nil, err
	}

	interaction := make([]float64, len(trend))
	for i := range trend {
		interaction[i] = treated[i] * trend[i]
	}
	regs := []regression.Regressor{
		{Name: treatedCol, Values: treated},
		{Name: "trend", Values: trend},
		{Name: TrendInteractionName, Values: interaction},
	}
	for _, c := range cfg.Covariates {
		v, err := pre.Column(c)
		if err != nil {
			return nil, err
		}
		regs = append(regs, regression.Regressor{Name: c, Values: v})
	}

	spec := regression.Spec{
		Y:          y,
		Regressors: regs,
		Absorb:     [][]string{units, preLabels},
		Required:   []string{TrendInteractionName},
	}
	if cfg.ClusterCol != "" {
		if spec.Cluster, err = pre.Labels(cfg.ClusterCol); err != nil {
			return nil, err
		}
	}

	res, err := regression.Fit(spec)
	if err != nil {
		return nil, err
	}
	c, err := res.Coefficient(TrendInteractionName)
	if err != nil {
		return nil, err
	}
	return &estimate.ParallelTrendsResult{
		Coef:    c.Estimate,
		StdErr:  c.StdErr,
		PValue:  c.PValue,
		N:       res.N,
		Summary: res.Summary(cfg.Covariates),
	}, nil
}
