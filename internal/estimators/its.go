package estimators

import (
	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	"gocausal/internal/regression"
)

// DefaultHACLags is the Newey-West truncation used when ITSConfig.HACLags is
// zero. Set NonrobustSE to fit with classical standard errors instead.
const DefaultHACLags = 3

// Segmented regression term names.
const (
	TrendName     = "trend"
	LevelName     = "post"
	TrendPostName = "trend_x_post"
)

// ITSConfig configures an interrupted time series on a single series.
// TimeCol defaults to the frame's period column.
type ITSConfig struct {
	TimeCol          string   `json:"time_col"`
	OutcomeCol       string   `json:"outcome_col"`
	InterventionTime string   `json:"intervention_time"`
	Covariates       []string `json:"covariates"`
	HACLags          int      `json:"hac_lags"`
	NonrobustSE      bool     `json:"nonrobust_se,omitempty"`
}

func (c ITSConfig) lags() int {
	if c.NonrobustSE {
		return 0
	}
	if c.HACLags <= 0 {
		return DefaultHACLags
	}
	return c.HACLags
}

// InterruptedTimeSeries fits
//
//	outcome ~ 1 + trend + post + trend_x_post + covariates
//
// on the rows sorted by period, where trend is the row index, post flags rows
// at or after the intervention and trend_x_post counts periods since it.
func InterruptedTimeSeries(f *panel.Frame, cfg ITSConfig) (*estimate.ITSResult, error) {
	timeCol := orDefault(cfg.TimeCol, f.PeriodCol())
	sorted := f.SortedByPeriod()

	labels, err := sorted.Labels(timeCol)
	if err != nil {
		return nil, err
	}
	t0 := -1
	for i, label := range labels {
		if label >= cfg.InterventionTime {
			t0 = i
			break
		}
	}
	if t0 < 0 {
		return nil, core.NewInterventionError(cfg.InterventionTime, "is after all observations")
	}
	if t0 == 0 {
		return nil, core.NewInterventionError(cfg.InterventionTime, "is not after any observation")
	}

	y, err := sorted.Column(cfg.OutcomeCol)
	if err != nil {
		return nil, err
	}
	covs, err := regressors(sorted, cfg.Covariates)
	if err != nil {
		return nil, err
	}

	n := sorted.Len()
	trend := make([]float64, n)
	post := make([]float64, n)
	trendPost := make([]float64, n)
	for i := 0; i < n; i++ {
		trend[i] = float64(i)
		if i >= t0 {
			post[i] = 1
			trendPost[i] = float64(i - t0)
		}
	}

	regs := []regression.Regressor{
		{Name: TrendName, Values: trend},
		{Name: LevelName, Values: post},
		{Name: TrendPostName, Values: trendPost},
	}
	regs = append(regs, covs...)

	res, err := regression.Fit(regression.Spec{
		Y:          y,
		Regressors: regs,
		Intercept:  true,
		HACLags:    cfg.lags(),
		Required:   []string{LevelName, TrendPostName},
	})
	if err != nil {
		return nil, err
	}

	level, err := res.Coefficient(LevelName)
	if err != nil {
		return nil, err
	}
	slope, err := res.Coefficient(TrendPostName)
	if err != nil {
		return nil, err
	}
	return &estimate.ITSResult{
		LevelChange:       level.Estimate,
		SlopeChange:       slope.Estimate,
		PLevel:            level.PValue,
		PSlope:            slope.PValue,
		InterventionIndex: t0,
		InterventionTime:  cfg.InterventionTime,
		Summary:           res.Summary(cfg.Covariates),
	}, nil
}
