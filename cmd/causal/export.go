package main

import (
	"sort"
	"strings"

	"gocausal/adapters/excel"
	"gocausal/app"
)

// writeRigorWorkbook exports the tabular parts of a rigor report, one sheet
// per table.
func writeRigorWorkbook(path string, r *app.RigorReport) error {
	ks := append([]int(nil), r.EventStudy.Offsets...)
	sort.Ints(ks)
	eventRows := make([][]interface{}, 0, len(ks))
	for _, k := range ks {
		eventRows = append(eventRows, []interface{}{
			k, r.EventStudy.CoefByK[k], r.EventStudy.SEByK[k], r.EventStudy.PByK[k], r.EventStudyQ[k],
		})
	}

	sensRows := make([][]interface{}, 0, len(r.Sensitivity.Runs))
	for _, run := range r.Sensitivity.Runs {
		sensRows = append(sensRows, []interface{}{
			strings.Join(run.Covariates, ","), run.ATT, run.PValue, run.ErrorCode,
		})
	}

	donorRows := make([][]interface{}, 0, len(r.SynthSearch.Trials))
	for _, tr := range r.SynthSearch.Trials {
		donorRows = append(donorRows, []interface{}{
			tr.Step, tr.DonorsN, tr.CandidateAdded, deref(tr.PreRMSE), deref(tr.PostGapMean), tr.Note, tr.ErrorCode,
		})
	}

	placeboRows := make([][]interface{}, 0, len(r.PlaceboITS))
	for _, tr := range r.PlaceboITS {
		placeboRows = append(placeboRows, []interface{}{
			tr.Cutoff, deref(tr.LevelChange), deref(tr.PLevel), deref(tr.SlopeChange), deref(tr.PSlope), tr.ErrorCode,
		})
	}

	weightRows := make([][]interface{}, 0, len(r.SynthSearch.Best.DonorUnits))
	for _, u := range r.SynthSearch.Best.DonorUnits {
		weightRows = append(weightRows, []interface{}{u, r.SynthBase.Weights[u], r.SynthSearch.Best.Weights[u]})
	}

	kr := r.KeyResults
	keyRows := [][]interface{}{
		{"run_id", r.RunID.String()},
		{"treated_unit", kr.TreatedUnit},
		{"intervention_time", kr.InterventionTime},
		{"did_att", kr.DiDATT},
		{"did_p_value", kr.DiDPValue},
		{"parallel_trends_coef", kr.ParallelTrendsCoef},
		{"parallel_trends_p", kr.ParallelTrendsP},
		{"preperiod_joint_p", kr.PrePeriodJointP},
		{"synth_base_pre_rmse", kr.SynthBasePreRMSE},
		{"synth_opt_pre_rmse", kr.SynthOptPreRMSE},
		{"its_level_change", r.ITS.LevelChange},
		{"its_slope_change", r.ITS.SlopeChange},
		{"sensitivity_models_n", kr.SensitivityModels},
	}

	return excel.WriteWorkbook(path, []excel.Sheet{
		{Name: "KeyResults", Header: []string{"key", "value"}, Rows: keyRows},
		{Name: "EventStudy", Header: []string{"k", "coef", "std_err", "p_value", "q_value"}, Rows: eventRows},
		{Name: "DiD_Sensitivity", Header: []string{"covariates", "att", "p_value", "error_code"}, Rows: sensRows},
		{Name: "Synth_DonorSearch", Header: []string{"step", "donors_n", "candidate_added", "pre_rmse", "post_gap_mean", "note", "error_code"}, Rows: donorRows},
		{Name: "Synth_Weights", Header: []string{"unit", "base_weight", "optimized_weight"}, Rows: weightRows},
		{Name: "Placebo_ITS_Treated", Header: []string{"cutoff", "level_change", "p_level", "slope_change", "p_slope", "error_code"}, Rows: placeboRows},
	})
}

// deref renders an optional number as an empty cell when absent.
func deref(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
