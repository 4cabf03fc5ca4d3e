// Package estimate defines the result value objects produced by the
// estimators, the synthetic control engine and the diagnostic suites.
//
// INVARIANTS:
//   - results are constructed once and never mutated by consumers
//   - every field is plain data (numbers, strings, maps, slices) so any report
//     format can encode it without the core knowing about that format
package estimate

// ModelSummary carries sample size and fit statistics of one regression.
type ModelSummary struct {
	N          int      `json:"n"`
	K          int      `json:"k"` // parameters, absorbed fixed effects included
	DFResid    int      `json:"df_resid"`
	R2         float64  `json:"r2"`
	AdjR2      float64  `json:"adj_r2"`
	LogLik     float64  `json:"log_likelihood"`
	AIC        float64  `json:"aic"`
	BIC        float64  `json:"bic"`
	CovType    string   `json:"cov_type"`
	Clusters   int      `json:"clusters,omitempty"`
	HACLags    int      `json:"hac_lags,omitempty"`
	Covariates []string `json:"covariates"`
	Absorbed   []string `json:"absorbed,omitempty"` // regressors swept out by fixed effects
}

// DiDResult is the two-way fixed-effects difference-in-differences estimate.
type DiDResult struct {
	ATT     float64      `json:"att"`
	StdErr  float64      `json:"std_err"`
	PValue  float64      `json:"p_value"`
	Summary ModelSummary `json:"summary"`
}

// EventStudyResult holds one coefficient per identified relative-time offset.
// Offsets and Vcov describe the covariance block of the identified offsets in
// ascending order.
type EventStudyResult struct {
	CoefByK             map[int]float64 `json:"coef_by_k"`
	PByK                map[int]float64 `json:"p_by_k"`
	SEByK               map[int]float64 `json:"se_by_k"`
	KMin                int             `json:"k_min"`
	KMax                int             `json:"k_max"`
	OmitK               int             `json:"omit_k"`
	Offsets             []int           `json:"offsets"`
	Vcov                [][]float64     `json:"vcov"`
	UnidentifiedOffsets []int           `json:"unidentified_offsets,omitempty"`
	DFInference         int             `json:"df_inference"` // reference df of the offset t and F tests
	Summary             ModelSummary    `json:"summary"`
}

// ITSResult is a segmented regression estimate for one series.
type ITSResult struct {
	LevelChange       float64      `json:"level_change"`
	SlopeChange       float64      `json:"slope_change"`
	PLevel            float64      `json:"p_level"`
	PSlope            float64      `json:"p_slope"`
	InterventionIndex int          `json:"intervention_index"`
	InterventionTime  string       `json:"intervention_time"`
	Summary           ModelSummary `json:"summary"`
}

// RDDResult is a local linear discontinuity estimate at a cutoff.
type RDDResult struct {
	Discontinuity float64      `json:"discontinuity"`
	StdErr        float64      `json:"std_err"`
	PValue        float64      `json:"p_value"`
	Cutoff        float64      `json:"cutoff"`
	Bandwidth     float64      `json:"bandwidth"`
	Summary       ModelSummary `json:"summary"`
}

// PeriodGap is the treated-minus-synthetic gap in one period.
type PeriodGap struct {
	Period    string  `json:"period"`
	Observed  float64 `json:"observed"`
	Synthetic float64 `json:"synthetic"`
	Gap       float64 `json:"gap"`
	Post      bool    `json:"post"`
}

// SyntheticControlResult is one convex-weight fit. Weights sum to 1 and never
// include the treated unit.
type SyntheticControlResult struct {
	TreatedUnit      string             `json:"treated_unit"`
	InterventionTime string             `json:"intervention_time"`
	DonorUnits       []string           `json:"donor_units"`
	Weights          map[string]float64 `json:"weights"`
	PreRMSE          float64            `json:"pre_rmse"`
	PostGapMean      float64            `json:"post_gap_mean"`
	Gaps             []PeriodGap        `json:"gaps"`
	PrePeriods       int                `json:"n_pre"`
	PostPeriods      int                `json:"n_post"`
	Iterations       int                `json:"iterations"`
}

// DonorCandidate is a donor ranked by pre-period correlation.
type DonorCandidate struct {
	Unit        string  `json:"unit"`
	Correlation float64 `json:"correlation"`
}

// DonorTrial is one entry of the donor search audit log.
type DonorTrial struct {
	Step           int      `json:"step,omitempty"`
	DonorsN        int      `json:"donors_n,omitempty"`
	CandidateAdded string   `json:"candidate_added,omitempty"`
	PreRMSE        *float64 `json:"pre_rmse,omitempty"`
	PostGapMean    *float64 `json:"post_gap_mean,omitempty"`
	Note           string   `json:"note,omitempty"`
	PrePeriodsN    int      `json:"pre_times_n,omitempty"`
	Error          string   `json:"error,omitempty"`
	ErrorCode      string   `json:"error_code,omitempty"`
}

// DonorSearchResult is the best fit found by greedy donor selection plus the
// full trial log.
type DonorSearchResult struct {
	Best       *SyntheticControlResult `json:"best"`
	Selected   []string                `json:"selected"`
	Candidates []DonorCandidate        `json:"candidates"`
	Trials     []DonorTrial            `json:"tried"`
	Fallback   bool                    `json:"fallback"`
}
