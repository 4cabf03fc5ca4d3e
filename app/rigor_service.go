package app

import (
	"context"
	"math"
	"sort"
	"time"

	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/diagnostics"
	apperrors "gocausal/internal/errors"
	"gocausal/internal/estimators"
	"gocausal/internal/robustness"
	"gocausal/internal/synth"
)

// RigorService runs the full estimation and robustness pipeline for one
// treated unit and intervention: estimates, diagnostics, sensitivity and
// placebo checks, bundled into a single report.
type RigorService struct {
	logger *internal.Logger
}

// RigorRequest defines the inputs of a rigor run. Zero-valued tuning fields
// fall back to the estimator defaults.
type RigorRequest struct {
	Panel            *panel.Frame
	TreatedUnit      string
	InterventionTime string
	OutcomeCol       string
	TreatmentCol     string
	Covariates       []string

	EventKMin  int
	EventKMax  int
	EventOmitK *int // nil omits estimators.DefaultOmitK
	HACLags    int
	MaxModels  int

	SynthIterations   int
	SynthLearningRate float64
	MaxDonors         int
	TopKCandidates    int

	Workers int
	// SynthPlacebos refits the synthetic control with every unit as the
	// treated one.
	SynthPlacebos bool
	// CompareModels ranks the covariate subsets of the sensitivity sweep by
	// BIC weight.
	CompareModels bool
}

// RigorDiagnostics groups the identification checks of a rigor run.
type RigorDiagnostics struct {
	ParallelTrends *estimate.ParallelTrendsResult `json:"parallel_trends_pretest"`
	PreJointFisher *estimate.JointTestResult      `json:"event_study_preperiod_joint_test_fisher"`
	PreJointWald   *estimate.JointTestResult      `json:"event_study_preperiod_joint_test_wald,omitempty"`
	DonorSearch    DonorSearchDigest              `json:"synthetic_control_donor_search"`
}

// DonorSearchDigest summarises the optimised donor pool.
type DonorSearchDigest struct {
	BestPreRMSE     float64 `json:"best_pre_rmse"`
	BestPostGapMean float64 `json:"best_post_gap_mean"`
	BestDonorsN     int     `json:"best_donors_n"`
	TriedRows       int     `json:"tried_rows"`
	Fallback        bool    `json:"fallback"`
}

// KeyResults is the headline summary of a rigor run.
type KeyResults struct {
	TreatedUnit         string   `json:"treated_unit"`
	InterventionTime    string   `json:"intervention_time"`
	DiDATT              float64  `json:"did_att"`
	DiDPValue           float64  `json:"did_p_value"`
	ParallelTrendsCoef  float64  `json:"parallel_trends_coef"`
	ParallelTrendsP     float64  `json:"parallel_trends_p"`
	PrePeriodJointP     float64  `json:"preperiod_joint_p"`
	PrePeriodWaldP      *float64 `json:"preperiod_wald_p,omitempty"`
	SynthBasePreRMSE    float64  `json:"synth_base_pre_rmse"`
	SynthOptPreRMSE     float64  `json:"synth_opt_pre_rmse"`
	SensitivityModels   int      `json:"sensitivity_models_n"`
	SensitivityATTMin   *float64 `json:"sensitivity_att_min,omitempty"`
	SensitivityATTMax   *float64 `json:"sensitivity_att_max,omitempty"`
	PlaceboITSRows      int      `json:"placebo_its_rows"`
	SynthPermutationP   *float64 `json:"synth_permutation_p,omitempty"`
	BICAveragedATT      *float64 `json:"bic_averaged_att,omitempty"`
	SignificantOffsetsN int      `json:"significant_offsets_q05"`
}

// RigorReport is the complete, JSON-encodable output of a rigor run.
type RigorReport struct {
	RunID       core.RunID     `json:"run_id"`
	SpecHash    core.SpecHash  `json:"spec_hash"`
	GeneratedAt core.Timestamp `json:"generated_at"`
	RuntimeMs   int64          `json:"runtime_ms"`

	TreatedUnit      string   `json:"treated_unit"`
	InterventionTime string   `json:"intervention_time"`
	Covariates       []string `json:"covariates"`

	DiD          *estimate.DiDResult                  `json:"did"`
	EventStudy   *estimate.EventStudyResult           `json:"event_study"`
	EventStudyQ  map[int]float64                      `json:"event_study_q_by_k"`
	SynthBase    *estimate.SyntheticControlResult     `json:"synthetic_control_base"`
	SynthSearch  *estimate.DonorSearchResult          `json:"synthetic_control_optimized"`
	ITS          *estimate.ITSResult                  `json:"its"`
	TreatedITSN  int                                  `json:"its_series_n"`
	Diagnostics  RigorDiagnostics                     `json:"diagnostics"`
	Sensitivity  *estimate.CovariateSensitivityResult `json:"sensitivity"`
	Comparison   *estimate.ModelComparison            `json:"model_comparison,omitempty"`
	PlaceboITS   []estimate.CutoffTrial               `json:"placebo_its"`
	PlaceboLevel *estimate.EstimateSpread             `json:"placebo_its_level_spread,omitempty"`
	SynthPlacebo *estimate.PlaceboSummary             `json:"synth_placebos,omitempty"`
	Warnings     []string                             `json:"warnings,omitempty"`
	KeyResults   KeyResults                           `json:"key_results"`
}

// NewRigorService creates a rigor service
func NewRigorService(logger *internal.Logger) *RigorService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &RigorService{logger: logger}
}

// RequestFromConfig fills the study settings and tuning knobs of a request
// from the loaded configuration.
func RequestFromConfig(cfg *config.Config, f *panel.Frame) RigorRequest {
	return RigorRequest{
		Panel:             f,
		TreatedUnit:       cfg.Study.TreatedUnit,
		InterventionTime:  cfg.Study.InterventionTime,
		OutcomeCol:        cfg.Panel.OutcomeCol,
		TreatmentCol:      cfg.Panel.TreatmentCol,
		Covariates:        cfg.Panel.Covariates,
		EventKMin:         cfg.Estimation.EventKMin,
		EventKMax:         cfg.Estimation.EventKMax,
		EventOmitK:        estimators.Omit(cfg.Estimation.EventOmitK),
		HACLags:           cfg.Estimation.HACLags,
		MaxModels:         cfg.Estimation.MaxModels,
		SynthIterations:   cfg.Synth.Iterations,
		SynthLearningRate: cfg.Synth.LearningRate,
		MaxDonors:         cfg.Synth.MaxDonors,
		TopKCandidates:    cfg.Synth.TopKCandidates,
		Workers:           cfg.Sweep.Workers,
	}
}

// Run executes the pipeline. Single-estimator failures abort the run; sweep
// rows record their own failures. The context is checked between stages.
func (s *RigorService) Run(ctx context.Context, req RigorRequest) (*RigorReport, error) {
	startTime := time.Now()
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	report := &RigorReport{
		RunID:            core.NewRunID(),
		SpecHash:         specHash(req),
		GeneratedAt:      core.Now(),
		TreatedUnit:      req.TreatedUnit,
		InterventionTime: req.InterventionTime,
		Covariates:       designCovariates(req.Covariates, req.TreatmentCol),
	}
	log := s.logger.With("run_id", report.RunID.String())
	log.Info("[Rigor] Starting run for %s at %s (%d rows, %d covariates)",
		req.TreatedUnit, req.InterventionTime, req.Panel.Len(), len(report.Covariates))

	p := &pipeline{ctx: ctx, log: log}

	var did *panel.Frame
	p.stage("derive treatment columns", func() (err error) {
		did, err = req.Panel.WithTreatment(req.TreatedUnit, req.InterventionTime, panel.TreatedCol, panel.PostCol)
		if err != nil {
			return err
		}
		did, err = did.WithEventTime(req.InterventionTime, panel.EventTimeCol)
		return err
	})

	didCfg := estimators.DiDConfig{
		OutcomeCol: req.OutcomeCol,
		Covariates: report.Covariates,
		ClusterCol: req.Panel.UnitCol(),
	}
	p.stage("difference-in-differences", func() (err error) {
		report.DiD, err = estimators.DifferenceInDifferences(did, didCfg)
		return err
	})

	p.stage("event study", func() (err error) {
		report.EventStudy, err = estimators.EventStudy(did, estimators.EventStudyConfig{
			OutcomeCol: req.OutcomeCol,
			KMin:       req.EventKMin,
			KMax:       req.EventKMax,
			OmitK:      req.EventOmitK,
			Covariates: report.Covariates,
			ClusterCol: req.Panel.UnitCol(),
		})
		if err == nil {
			report.EventStudyQ = offsetQValues(report.EventStudy.PByK)
		}
		return err
	})

	synthCfg := synth.Config{
		OutcomeCol:       req.OutcomeCol,
		TreatedUnit:      req.TreatedUnit,
		InterventionTime: req.InterventionTime,
		Iterations:       req.SynthIterations,
		LearningRate:     req.SynthLearningRate,
	}
	p.stage("synthetic control", func() (err error) {
		report.SynthBase, err = synth.Fit(req.Panel, synthCfg)
		return err
	})
	p.stage("donor pool search", func() (err error) {
		report.SynthSearch, err = synth.SearchDonorPool(req.Panel, synth.SearchConfig{
			Config:         synthCfg,
			MaxDonors:      req.MaxDonors,
			TopKCandidates: req.TopKCandidates,
			Workers:        req.Workers,
		})
		return err
	})

	var series *panel.Frame
	itsCfg := estimators.ITSConfig{
		OutcomeCol:       req.OutcomeCol,
		InterventionTime: req.InterventionTime,
		HACLags:          req.HACLags,
	}
	p.stage("interrupted time series", func() (err error) {
		series, err = treatedSeries(req)
		if err != nil {
			return err
		}
		if req.TreatmentCol != "" {
			itsCfg.Covariates = []string{req.TreatmentCol}
		}
		report.TreatedITSN = series.Len()
		report.ITS, err = estimators.InterruptedTimeSeries(series, itsCfg)
		return err
	})

	p.stage("parallel trends pretest", func() (err error) {
		report.Diagnostics.ParallelTrends, err = diagnostics.ParallelTrendsPretest(did, diagnostics.ParallelTrendsConfig{
			OutcomeCol:       req.OutcomeCol,
			InterventionTime: req.InterventionTime,
			Covariates:       report.Covariates,
			ClusterCol:       req.Panel.UnitCol(),
		})
		return err
	})

	p.stage("pre-period joint test", func() (err error) {
		report.Diagnostics.PreJointFisher, err = diagnostics.PrePeriodJointTest(report.EventStudy, diagnostics.DefaultKPreMax)
		if err != nil {
			return err
		}
		wald, werr := diagnostics.PrePeriodWaldTest(report.EventStudy, diagnostics.DefaultKPreMax)
		if werr != nil {
			report.Warnings = append(report.Warnings, "wald pre-period test: ["+apperrors.Classify(werr)+"] "+werr.Error())
			log.Warn("[Rigor] Wald pre-period test skipped: %v", werr)
			return nil
		}
		report.Diagnostics.PreJointWald = wald
		return nil
	})

	p.stage("covariate sensitivity", func() error {
		report.Sensitivity = diagnostics.CovariateSetSensitivity(did, didCfg, report.Covariates, req.MaxModels)
		for _, run := range report.Sensitivity.Runs {
			if run.Error != "" {
				log.Warn("[Rigor] Sensitivity run %v failed: [%s] %s", run.Covariates, run.ErrorCode, run.Error)
			}
		}
		return nil
	})

	if req.CompareModels {
		p.stage("model comparison", func() (err error) {
			maxModels := req.MaxModels
			if maxModels <= 0 {
				maxModels = diagnostics.DefaultMaxModels
			}
			report.Comparison, err = diagnostics.CompareDiDModels(did, didCfg,
				diagnostics.CovariateSets(report.Covariates, maxModels))
			return err
		})
	}

	p.stage("placebo ITS cutoffs", func() error {
		cutoffs := robustness.PlaceboCutoffs(series.Periods(), robustness.DefaultPlaceboOffsets)
		report.PlaceboITS = robustness.ITSPlaceboSweep(series, itsCfg, cutoffs, robustness.Options{Workers: req.Workers})
		report.PlaceboLevel = robustness.LevelChangeSpread(report.PlaceboITS)
		return nil
	})

	if req.SynthPlacebos {
		p.stage("synthetic control placebos", func() error {
			report.SynthPlacebo = robustness.SyntheticControlPlacebos(req.Panel, synthCfg, robustness.Options{Workers: req.Workers})
			return nil
		})
	}

	if p.err != nil {
		log.Error("[Rigor] Run failed: %v", p.err)
		return nil, p.err
	}

	report.Diagnostics.DonorSearch = DonorSearchDigest{
		BestPreRMSE:     report.SynthSearch.Best.PreRMSE,
		BestPostGapMean: report.SynthSearch.Best.PostGapMean,
		BestDonorsN:     len(report.SynthSearch.Best.DonorUnits),
		TriedRows:       len(report.SynthSearch.Trials),
		Fallback:        report.SynthSearch.Fallback,
	}
	report.KeyResults = keyResults(report)
	report.RuntimeMs = time.Since(startTime).Milliseconds()

	log.Info("[Rigor] Completed in %dms: ATT=%.4f (p=%.4f), pretrend p=%.4f, synth RMSE %.4f -> %.4f",
		report.RuntimeMs, report.DiD.ATT, report.DiD.PValue, report.KeyResults.ParallelTrendsP,
		report.KeyResults.SynthBasePreRMSE, report.KeyResults.SynthOptPreRMSE)
	return report, nil
}

// pipeline runs stages in order until the first failure or cancellation.
type pipeline struct {
	ctx context.Context
	log *internal.Logger
	err error
}

func (p *pipeline) stage(name string, fn func() error) {
	if p.err != nil {
		return
	}
	if err := p.ctx.Err(); err != nil {
		p.err = apperrors.Wrapf(err, "rigor run cancelled before %s", name)
		return
	}
	start := time.Now()
	if err := fn(); err != nil {
		p.err = apperrors.Wrapf(err, "%s failed", name)
		return
	}
	p.log.Debug("[Rigor] Stage %s finished in %.2fms", name, float64(time.Since(start).Nanoseconds())/1e6)
}

func validateRequest(req RigorRequest) error {
	switch {
	case req.Panel == nil:
		return apperrors.InvalidInput("panel is required")
	case req.TreatedUnit == "":
		return apperrors.InvalidInput("treated unit is required")
	case req.InterventionTime == "":
		return apperrors.InvalidInput("intervention time is required")
	case req.OutcomeCol == "":
		return apperrors.InvalidInput("outcome column is required")
	}
	return nil
}

// designCovariates appends the treatment intensity to the covariates,
// keeping first occurrences.
func designCovariates(covariates []string, treatmentCol string) []string {
	all := append(append([]string(nil), covariates...), treatmentCol)
	out := make([]string, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, c := range all {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// treatedSeries is the treated unit's outcome and treatment summed per
// period.
func treatedSeries(req RigorRequest) (*panel.Frame, error) {
	unit, err := req.Panel.ForUnit(req.TreatedUnit)
	if err != nil {
		return nil, err
	}
	cols := []string{req.OutcomeCol}
	if req.TreatmentCol != "" {
		cols = append(cols, req.TreatmentCol)
	}
	return unit.AggregateByPeriod(cols, req.TreatedUnit)
}

// offsetQValues adjusts the event-study p-values for the false discovery
// rate across offsets.
func offsetQValues(pByK map[int]float64) map[int]float64 {
	ks := make([]int, 0, len(pByK))
	for k := range pByK {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	ps := make([]float64, len(ks))
	for i, k := range ks {
		ps[i] = pByK[k]
	}
	qs := diagnostics.BenjaminiHochberg(ps)
	out := make(map[int]float64, len(ks))
	for i, k := range ks {
		if !math.IsNaN(qs[i]) {
			out[k] = qs[i]
		}
	}
	return out
}

func keyResults(r *RigorReport) KeyResults {
	kr := KeyResults{
		TreatedUnit:        r.TreatedUnit,
		InterventionTime:   r.InterventionTime,
		DiDATT:             r.DiD.ATT,
		DiDPValue:          r.DiD.PValue,
		ParallelTrendsCoef: r.Diagnostics.ParallelTrends.Coef,
		ParallelTrendsP:    r.Diagnostics.ParallelTrends.PValue,
		PrePeriodJointP:    r.Diagnostics.PreJointFisher.PValue,
		SynthBasePreRMSE:   r.SynthBase.PreRMSE,
		SynthOptPreRMSE:    r.SynthSearch.Best.PreRMSE,
		SensitivityModels:  len(r.Sensitivity.Runs),
		SensitivityATTMin:  r.Sensitivity.ATTMin,
		SensitivityATTMax:  r.Sensitivity.ATTMax,
		PlaceboITSRows:     len(r.PlaceboITS),
	}
	if r.Diagnostics.PreJointWald != nil {
		kr.PrePeriodWaldP = estimate.Ptr(r.Diagnostics.PreJointWald.PValue)
	}
	if r.SynthPlacebo != nil {
		kr.SynthPermutationP = r.SynthPlacebo.PermutationP
	}
	if r.Comparison != nil {
		kr.BICAveragedATT = estimate.Ptr(r.Comparison.AveragedATT)
	}
	for _, q := range r.EventStudyQ {
		if q <= 0.05 {
			kr.SignificantOffsetsN++
		}
	}
	return kr
}

func specHash(req RigorRequest) core.SpecHash {
	return core.ComputeSpecHash(map[string]interface{}{
		"treated_unit":      req.TreatedUnit,
		"intervention_time": req.InterventionTime,
		"outcome_col":       req.OutcomeCol,
		"treatment_col":     req.TreatmentCol,
		"covariates":        req.Covariates,
		"event_k_min":       req.EventKMin,
		"event_k_max":       req.EventKMax,
		"event_omit_k":      omitLabel(req.EventOmitK),
		"hac_lags":          req.HACLags,
		"max_models":        req.MaxModels,
		"synth_iterations":  req.SynthIterations,
		"synth_lr":          req.SynthLearningRate,
		"max_donors":        req.MaxDonors,
		"top_k_candidates":  req.TopKCandidates,
		"synth_placebos":    req.SynthPlacebos,
		"compare_models":    req.CompareModels,
		"rows":              req.Panel.Len(),
	})
}

func omitLabel(k *int) interface{} {
	if k == nil {
		return "default"
	}
	return *k
}
