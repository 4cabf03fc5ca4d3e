package estimate

// ParallelTrendsResult reports the treated-by-trend interaction estimated on
// pre-intervention rows only.
type ParallelTrendsResult struct {
	Coef    float64      `json:"coef"`
	StdErr  float64      `json:"std_err"`
	PValue  float64      `json:"p_value"`
	N       int          `json:"n"`
	Summary ModelSummary `json:"summary"`
}

// JointTestResult is a joint test of pre-period event-study coefficients.
// Method is "fisher" for the p-value combination approximation or "wald" for
// the restriction test on the covariance block.
type JointTestResult struct {
	Method    string   `json:"method"`
	KValues   []int    `json:"k_values"`
	Statistic float64  `json:"stat"`
	PValue    float64  `json:"p_value"`
	DFNum     float64  `json:"df_num"`
	DFDenom   *float64 `json:"df_denom,omitempty"`
}

// SensitivityRun is one DiD fit under a covariate subset.
type SensitivityRun struct {
	Covariates []string      `json:"covariates"`
	ATT        float64       `json:"att"`
	PValue     float64       `json:"p_value"`
	Summary    *ModelSummary `json:"summary,omitempty"`
	Error      string        `json:"error,omitempty"`
	ErrorCode  string        `json:"error_code,omitempty"`
}

// CovariateSensitivityResult collects the runs of a covariate-subset sweep.
type CovariateSensitivityResult struct {
	BaseCovariates []string         `json:"base_covariates"`
	Runs           []SensitivityRun `json:"runs"`
	ATTMin         *float64         `json:"att_min,omitempty"`
	ATTMax         *float64         `json:"att_max,omitempty"`
}

// ModelScore ranks one DiD specification by its BIC weight.
type ModelScore struct {
	Name       string   `json:"name"`
	BIC        float64  `json:"bic"`
	N          int      `json:"n"`
	K          int      `json:"k"`
	Weight     float64  `json:"weight"`
	ATT        float64  `json:"att"`
	PValue     float64  `json:"p_value"`
	Covariates []string `json:"covariates"`
}

// ModelComparison is the ranked list of specifications plus the
// BIC-weighted average ATT.
type ModelComparison struct {
	Models      []ModelScore `json:"models"`
	AveragedATT float64      `json:"averaged_att"`
}
