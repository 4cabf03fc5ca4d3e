// Package estimators implements the regression-based causal estimators:
// two-way fixed-effects difference-in-differences, event study, interrupted
// time series and sharp regression discontinuity. Every estimator is a pure
// function of a panel frame and a config value.
package estimators

import (
	"gocausal/domain/panel"
	"gocausal/internal/regression"
)

// regressors reads numeric columns from f as named regressors.
func regressors(f *panel.Frame, names []string) ([]regression.Regressor, error) {
	out := make([]regression.Regressor, 0, len(names))
	for _, name := range names {
		values, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		out = append(out, regression.Regressor{Name: name, Values: values})
	}
	return out, nil
}

// twoWayEffects returns the unit and period label slices absorbed as fixed
// effects.
func twoWayEffects(f *panel.Frame, unitCol, timeCol string) ([][]string, error) {
	units, err := f.Labels(orDefault(unitCol, f.UnitCol()))
	if err != nil {
		return nil, err
	}
	periods, err := f.Labels(orDefault(timeCol, f.PeriodCol()))
	if err != nil {
		return nil, err
	}
	return [][]string{units, periods}, nil
}

// clusterLabels returns nil when no cluster column is configured.
func clusterLabels(f *panel.Frame, col string) ([]string, error) {
	if col == "" {
		return nil, nil
	}
	return f.Labels(col)
}

func product(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
