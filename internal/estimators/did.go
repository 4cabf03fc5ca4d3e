package estimators

import (
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	"gocausal/internal/regression"
)

// InteractionName is the regressor name of treated x post.
const InteractionName = "treated_x_post"

// DiDConfig selects the columns of a two-way fixed-effects DiD. UnitCol and
// TimeCol default to the frame's key columns; TreatedCol and PostCol default
// to the columns derived by panel.WithTreatment.
type DiDConfig struct {
	UnitCol    string   `json:"unit_col"`
	TimeCol    string   `json:"time_col"`
	OutcomeCol string   `json:"outcome_col"`
	TreatedCol string   `json:"treated_col"`
	PostCol    string   `json:"post_col"`
	Covariates []string `json:"covariates"`
	ClusterCol string   `json:"cluster_col,omitempty"`
}

// DifferenceInDifferences fits
//
//	outcome ~ treated + post + treated*post + covariates + unit FE + time FE
//
// and reports the interaction as the ATT. Treated and post are usually
// collinear with the fixed effects; they are then swept out and listed in
// Summary.Absorbed while the interaction stays identified.
func DifferenceInDifferences(f *panel.Frame, cfg DiDConfig) (*estimate.DiDResult, error) {
	treatedCol := orDefault(cfg.TreatedCol, panel.TreatedCol)
	postCol := orDefault(cfg.PostCol, panel.PostCol)

	y, err := f.Column(cfg.OutcomeCol)
	if err != nil {
		return nil, err
	}
	treated, err := f.Column(treatedCol)
	if err != nil {
		return nil, err
	}
	post, err := f.Column(postCol)
	if err != nil {
		return nil, err
	}
	covs, err := regressors(f, cfg.Covariates)
	if err != nil {
		return nil, err
	}
	fe, err := twoWayEffects(f, cfg.UnitCol, cfg.TimeCol)
	if err != nil {
		return nil, err
	}
	cluster, err := clusterLabels(f, cfg.ClusterCol)
	if err != nil {
		return nil, err
	}

	regs := []regression.Regressor{
		{Name: treatedCol, Values: treated},
		{Name: postCol, Values: post},
		{Name: InteractionName, Values: product(treated, post)},
	}
	regs = append(regs, covs...)

	res, err := regression.Fit(regression.Spec{
		Y:          y,
		Regressors: regs,
		Absorb:     fe,
		Cluster:    cluster,
		Required:   []string{InteractionName},
	})
	if err != nil {
		return nil, err
	}

	att, err := res.Coefficient(InteractionName)
	if err != nil {
		return nil, err
	}
	return &estimate.DiDResult{
		ATT:     att.Estimate,
		StdErr:  att.StdErr,
		PValue:  att.PValue,
		Summary: res.Summary(cfg.Covariates),
	}, nil
}
