package main

import (
	"context"

	"gocausal/app"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	apperrors "gocausal/internal/errors"
	"gocausal/internal/estimators"
	"gocausal/internal/robustness"
	"gocausal/internal/synth"
	"gocausal/internal/testkit"

	"github.com/spf13/cobra"
)

func newRigorCmd(rt *runtime) *cobra.Command {
	var treated, intervention, xlsxPath string
	var synthPlacebos, compareModels bool

	cmd := &cobra.Command{
		Use:   "rigor",
		Short: "Run the full estimation, diagnostics and robustness pipeline",
		Long: `Run DiD, event study, synthetic control with donor search, ITS on the treated
unit's series, parallel trends and pre-period joint tests, covariate-set
sensitivity and placebo ITS cutoffs, and print the report as JSON.

Example: causal rigor --file panel.csv --treated RUS --intervention 2022-03 --xlsx rigor.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.context(cmd)
			defer cancel()

			treated, intervention, err := rt.study(treated, intervention)
			if err != nil {
				return err
			}
			f, err := rt.loadPanel(ctx)
			if err != nil {
				return err
			}

			req := app.RequestFromConfig(rt.config, f)
			req.TreatedUnit = treated
			req.InterventionTime = intervention
			req.SynthPlacebos = synthPlacebos
			req.CompareModels = compareModels
			return rt.runRigor(ctx, req, xlsxPath)
		},
	}

	cmd.Flags().StringVar(&treated, "treated", "", "Treated unit; overrides TREATED_UNIT")
	cmd.Flags().StringVar(&intervention, "intervention", "", "Intervention period (YYYY-MM); overrides INTERVENTION_TIME")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also export the report tables to this workbook")
	cmd.Flags().BoolVar(&synthPlacebos, "synth-placebos", false, "Refit the synthetic control with every unit as placebo-treated")
	cmd.Flags().BoolVar(&compareModels, "compare-models", false, "Rank the covariate subsets by BIC weight")
	return cmd
}

func (rt *runtime) runRigor(ctx context.Context, req app.RigorRequest, xlsxPath string) error {
	report, err := app.NewRigorService(rt.logger).Run(ctx, req)
	if err != nil {
		return err
	}
	if xlsxPath != "" {
		if err := writeRigorWorkbook(xlsxPath, report); err != nil {
			return err
		}
		rt.logger.Info("Report tables written to %s", xlsxPath)
	}
	return rt.printJSON(report)
}

func newDiDCmd(rt *runtime) *cobra.Command {
	var treated, intervention string
	var covariates []string
	var noCluster bool

	cmd := &cobra.Command{
		Use:   "did",
		Short: "Estimate a two-way fixed-effects difference-in-differences ATT",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.context(cmd)
			defer cancel()

			treated, intervention, err := rt.study(treated, intervention)
			if err != nil {
				return err
			}
			f, err := rt.loadPanel(ctx)
			if err != nil {
				return err
			}
			f, err = f.WithTreatment(treated, intervention, panel.TreatedCol, panel.PostCol)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("covariates") {
				covariates = rt.config.Panel.Covariates
			}
			cfg := estimators.DiDConfig{OutcomeCol: rt.config.Panel.OutcomeCol, Covariates: covariates}
			if !noCluster {
				cfg.ClusterCol = f.UnitCol()
			}
			res, err := estimators.DifferenceInDifferences(f, cfg)
			if err != nil {
				return err
			}
			return rt.printJSON(res)
		},
	}

	cmd.Flags().StringVar(&treated, "treated", "", "Treated unit; overrides TREATED_UNIT")
	cmd.Flags().StringVar(&intervention, "intervention", "", "Intervention period (YYYY-MM); overrides INTERVENTION_TIME")
	cmd.Flags().StringSliceVar(&covariates, "covariates", nil, "Covariate columns; defaults to COVARIATES")
	cmd.Flags().BoolVar(&noCluster, "no-cluster", false, "Use classical instead of unit-clustered standard errors")
	return cmd
}

func newSynthCmd(rt *runtime) *cobra.Command {
	var treated, intervention string
	var donors []string
	var search bool

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Fit a synthetic control, optionally with greedy donor search",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.context(cmd)
			defer cancel()

			treated, intervention, err := rt.study(treated, intervention)
			if err != nil {
				return err
			}
			f, err := rt.loadPanel(ctx)
			if err != nil {
				return err
			}

			cfg := synth.Config{
				OutcomeCol:       rt.config.Panel.OutcomeCol,
				TreatedUnit:      treated,
				InterventionTime: intervention,
				Donors:           donors,
				Iterations:       rt.config.Synth.Iterations,
				LearningRate:     rt.config.Synth.LearningRate,
			}
			if !search {
				res, err := synth.Fit(f, cfg)
				if err != nil {
					return err
				}
				return rt.printJSON(res)
			}

			res, err := synth.SearchDonorPool(f, synth.SearchConfig{
				Config:         cfg,
				MaxDonors:      rt.config.Synth.MaxDonors,
				TopKCandidates: rt.config.Synth.TopKCandidates,
				Workers:        rt.config.Sweep.Workers,
			})
			if err != nil {
				return err
			}
			rt.logger.Info("Donor search kept %d donors after %d trials (pre RMSE %.4f)",
				len(res.Selected), len(res.Trials), res.Best.PreRMSE)
			return rt.printJSON(res)
		},
	}

	cmd.Flags().StringVar(&treated, "treated", "", "Treated unit; overrides TREATED_UNIT")
	cmd.Flags().StringVar(&intervention, "intervention", "", "Intervention period (YYYY-MM); overrides INTERVENTION_TIME")
	cmd.Flags().StringSliceVar(&donors, "donors", nil, "Donor units; defaults to every other unit")
	cmd.Flags().BoolVar(&search, "search", false, "Select donors greedily by pre-period RMSE")
	return cmd
}

// rddSweepOutput is the JSON shape of the rdd-sweep command.
type rddSweepOutput struct {
	Trials []estimate.BandwidthTrial `json:"trials"`
	Spread *estimate.EstimateSpread  `json:"spread,omitempty"`
}

func newRDDSweepCmd(rt *runtime) *cobra.Command {
	var running string
	var cutoff float64
	var bandwidths []float64

	cmd := &cobra.Command{
		Use:   "rdd-sweep",
		Short: "Re-estimate a regression discontinuity across bandwidths",
		Long: `Fit a local linear RDD at the cutoff for each bandwidth, in the given order.
Bandwidths that fail are reported with their error code instead of aborting.

Example: causal rdd-sweep --file panel.csv --running sanctions_count --cutoff 2 --bandwidths 1,2,4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.context(cmd)
			defer cancel()

			if running == "" {
				return apperrors.InvalidInput("--running is required")
			}
			f, err := rt.loadPanel(ctx)
			if err != nil {
				return err
			}

			trials := robustness.RDDBandwidthSweep(f, estimators.RDDConfig{
				RunningCol: running,
				OutcomeCol: rt.config.Panel.OutcomeCol,
				Cutoff:     cutoff,
				Covariates: rt.config.Panel.Covariates,
			}, bandwidths, robustness.Options{Workers: rt.config.Sweep.Workers})

			for _, tr := range trials {
				if tr.Error != "" {
					rt.logger.Warn("Bandwidth %g failed: [%s] %s", tr.Bandwidth, tr.ErrorCode, tr.Error)
				}
			}
			return rt.printJSON(rddSweepOutput{Trials: trials, Spread: robustness.DiscontinuitySpread(trials)})
		},
	}

	cmd.Flags().StringVar(&running, "running", "", "Running variable column")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "Cutoff on the running variable")
	cmd.Flags().Float64SliceVar(&bandwidths, "bandwidths", []float64{0.5, 1, 2, 4}, "Bandwidths to try, in order")
	return cmd
}

func newDemoCmd(rt *runtime) *cobra.Command {
	genCfg := testkit.DefaultPanelConfig()
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the rigor pipeline on a generated panel with a known effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.context(cmd)
			defer cancel()

			f, err := testkit.NewGeneratedPanelReader(genCfg).ReadPanel(ctx)
			if err != nil {
				return err
			}
			rt.logger.Info("Generated demo panel: %d units x %d months, effect %.2f on %s from %s",
				genCfg.Units, genCfg.Months, genCfg.Effect, genCfg.TreatedUnit, genCfg.InterventionMonth)

			req := app.RequestFromConfig(rt.config, f)
			req.TreatedUnit = genCfg.TreatedUnit
			req.InterventionTime = genCfg.InterventionMonth
			req.OutcomeCol = genCfg.OutcomeColumn
			req.TreatmentCol = genCfg.TreatmentColumn
			req.Covariates = genCfg.Covariates
			req.CompareModels = true
			return rt.runRigor(ctx, req, xlsxPath)
		},
	}

	cmd.Flags().IntVar(&genCfg.Units, "units", genCfg.Units, "Number of units")
	cmd.Flags().IntVar(&genCfg.Months, "months", genCfg.Months, "Number of months")
	cmd.Flags().Float64Var(&genCfg.Effect, "effect", genCfg.Effect, "True treatment effect")
	cmd.Flags().Int64Var(&genCfg.Seed, "seed", genCfg.Seed, "Random seed")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also export the report tables to this workbook")
	return cmd
}
