package estimate

// BandwidthTrial is one row of an RDD bandwidth sweep.
type BandwidthTrial struct {
	Bandwidth     float64  `json:"bandwidth"`
	Discontinuity *float64 `json:"discontinuity,omitempty"`
	PValue        *float64 `json:"p_value,omitempty"`
	N             int      `json:"n,omitempty"`
	Error         string   `json:"error,omitempty"`
	ErrorCode     string   `json:"error_code,omitempty"`
}

// CutoffTrial is one row of an ITS placebo-cutoff sweep.
type CutoffTrial struct {
	Cutoff      string   `json:"cutoff"`
	LevelChange *float64 `json:"level_change,omitempty"`
	PLevel      *float64 `json:"p_level,omitempty"`
	SlopeChange *float64 `json:"slope_change,omitempty"`
	PSlope      *float64 `json:"p_slope,omitempty"`
	Error       string   `json:"error,omitempty"`
	ErrorCode   string   `json:"error_code,omitempty"`
}

// PlaceboUnitTrial is one row of a synthetic-control placebo sweep.
type PlaceboUnitTrial struct {
	PlaceboTreated string   `json:"placebo_treated"`
	IsTreated      bool     `json:"is_treated"`
	PreRMSE        *float64 `json:"pre_rmse,omitempty"`
	PostGapMean    *float64 `json:"post_gap_mean,omitempty"`
	Error          string   `json:"error,omitempty"`
	ErrorCode      string   `json:"error_code,omitempty"`
}

// PlaceboSummary compares the treated unit's gap against the placebo
// distribution. PermutationP is the share of successful units whose
// |post gap| / pre-RMSE is at least the treated unit's.
type PlaceboSummary struct {
	Trials       []PlaceboUnitTrial `json:"trials"`
	Succeeded    int                `json:"succeeded"`
	Failed       int                `json:"failed"`
	PermutationP *float64           `json:"permutation_p,omitempty"`
}

// Ptr returns a pointer to v. Used to fill optional numeric report fields.
func Ptr(v float64) *float64 { return &v }

// EstimateSpread summarises point estimates across the successful rows of a
// sweep.
type EstimateSpread struct {
	N      int     `json:"n"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}
