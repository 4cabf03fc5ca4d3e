package estimators

import (
	"fmt"
	"math"

	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	"gocausal/internal/regression"
)

// MinBandwidthObservations is the smallest sample an RDD is fitted on.
const MinBandwidthObservations = 20

// Local linear term names.
const (
	RunningName      = "running"
	AboveCutoffName  = "above_cutoff"
	RunningAboveName = "running_x_above"
)

// RDDConfig configures a sharp regression discontinuity.
type RDDConfig struct {
	RunningCol string   `json:"running_col"`
	OutcomeCol string   `json:"outcome_col"`
	Cutoff     float64  `json:"cutoff"`
	Bandwidth  float64  `json:"bandwidth"`
	Covariates []string `json:"covariates"`
}

// RegressionDiscontinuity fits a local linear model with separate slopes on
// each side of the cutoff inside |running - cutoff| <= bandwidth and reports
// the jump at the cutoff.
func RegressionDiscontinuity(f *panel.Frame, cfg RDDConfig) (*estimate.RDDResult, error) {
	if !(cfg.Bandwidth > 0) || math.IsInf(cfg.Bandwidth, 0) {
		return nil, core.NewInvalidInputError("bandwidth", fmt.Sprintf("must be positive and finite, got %v", cfg.Bandwidth))
	}
	if math.IsNaN(cfg.Cutoff) || math.IsInf(cfg.Cutoff, 0) {
		return nil, core.NewInvalidInputError("cutoff", "must be finite")
	}

	running, err := f.Column(cfg.RunningCol)
	if err != nil {
		return nil, err
	}
	outcome, err := f.Column(cfg.OutcomeCol)
	if err != nil {
		return nil, err
	}
	covCols := make([][]float64, len(cfg.Covariates))
	for j, c := range cfg.Covariates {
		if covCols[j], err = f.Column(c); err != nil {
			return nil, err
		}
	}

	// Only complete rows count towards the bandwidth minimum.
	local := f.Filter(func(i int) bool {
		if math.IsNaN(running[i]) || math.IsNaN(outcome[i]) || math.Abs(running[i]-cfg.Cutoff) > cfg.Bandwidth {
			return false
		}
		for _, col := range covCols {
			if math.IsNaN(col[i]) {
				return false
			}
		}
		return true
	})
	if local.Len() < MinBandwidthObservations {
		return nil, fmt.Errorf("%w: not enough observations in bandwidth (have %d, need %d)",
			core.ErrInsufficientData, local.Len(), MinBandwidthObservations)
	}

	y, _ := local.Column(cfg.OutcomeCol)
	r, _ := local.Column(cfg.RunningCol)
	covs, err := regressors(local, cfg.Covariates)
	if err != nil {
		return nil, err
	}

	centred := make([]float64, len(r))
	above := make([]float64, len(r))
	for i, v := range r {
		centred[i] = v - cfg.Cutoff
		if centred[i] >= 0 {
			above[i] = 1
		}
	}

	regs := []regression.Regressor{
		{Name: RunningName, Values: centred},
		{Name: AboveCutoffName, Values: above},
		{Name: RunningAboveName, Values: product(centred, above)},
	}
	regs = append(regs, covs...)

	res, err := regression.Fit(regression.Spec{
		Y:          y,
		Regressors: regs,
		Intercept:  true,
		Required:   []string{AboveCutoffName},
	})
	if err != nil {
		return nil, err
	}

	jump, err := res.Coefficient(AboveCutoffName)
	if err != nil {
		return nil, err
	}
	return &estimate.RDDResult{
		Discontinuity: jump.Estimate,
		StdErr:        jump.StdErr,
		PValue:        jump.PValue,
		Cutoff:        cfg.Cutoff,
		Bandwidth:     cfg.Bandwidth,
		Summary:       res.Summary(cfg.Covariates),
	}, nil
}
