package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gocausal/adapters/excel"
	"gocausal/domain/panel"
	"gocausal/internal"
	"gocausal/internal/config"
	apperrors "gocausal/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// runtime carries what every subcommand needs once configuration is loaded.
type runtime struct {
	config *config.Config
	logger *internal.Logger
	out    io.Writer
}

func main() {
	rt := &runtime{out: os.Stdout, logger: internal.NewDefaultLogger()}
	var panelFile, sheet, logLevel string

	rootCmd := &cobra.Command{
		Use:           "causal",
		Short:         "Causal effect estimation and robustness checks over unit-by-month panels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load environment variables from .env file
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "warning: could not read .env: %v\n", err)
			}

			cfg, err := config.Load()
			if err != nil {
				rt.logger.Error("Configuration loading failed: %v", err)
				return err
			}
			if panelFile != "" {
				cfg.Panel.File = panelFile
			}
			if sheet != "" {
				cfg.Panel.Sheet = sheet
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			rt.config = cfg
			rt.logger = internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&panelFile, "file", "", "Panel file (.csv or .xlsx); overrides PANEL_FILE")
	rootCmd.PersistentFlags().StringVar(&sheet, "sheet", "", "Worksheet of an .xlsx panel; overrides PANEL_SHEET")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE; overrides LOG_LEVEL")

	rootCmd.AddCommand(
		newRigorCmd(rt),
		newDiDCmd(rt),
		newSynthCmd(rt),
		newRDDSweepCmd(rt),
		newDemoCmd(rt),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError renders a command failure as "[CODE] message". Errors that
// carry no code yet are classified against the domain taxonomy first.
func formatError(err error) string {
	if !apperrors.IsAppError(err) {
		err = apperrors.WithCode(apperrors.Classify(err), err)
	}
	return fmt.Sprintf("[%s] %v", apperrors.GetCode(err), err)
}

// context applies RUN_TIMEOUT, when set, to the command context.
func (rt *runtime) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if rt.config.Study.Timeout > 0 {
		return context.WithTimeout(ctx, rt.config.Study.Timeout)
	}
	return context.WithCancel(ctx)
}

// loadPanel reads the configured panel file.
func (rt *runtime) loadPanel(ctx context.Context) (*panel.Frame, error) {
	pc := rt.config.Panel
	if pc.File == "" {
		return nil, apperrors.ConfigInvalid("no panel file: set PANEL_FILE or pass --file")
	}
	if _, err := os.Stat(pc.File); os.IsNotExist(err) {
		return nil, apperrors.NotFound("panel file " + pc.File)
	}
	reader := excel.NewPanelReader(excel.ExcelConfig{
		FilePath: pc.File,
		Sheet:    pc.Sheet,
		UnitCol:  pc.UnitCol,
		TimeCol:  pc.TimeCol,
	}, rt.logger)

	f, err := reader.ReadPanel(ctx)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to read panel %s", pc.File)
	}
	rt.logger.Info("Loaded panel %s: %d rows, %d units, %d periods", pc.File, f.Len(), len(f.Units()), len(f.Periods()))
	return f, nil
}

// study resolves the treated unit and intervention from flags or config.
func (rt *runtime) study(treated, intervention string) (string, string, error) {
	if treated == "" {
		treated = rt.config.Study.TreatedUnit
	}
	if intervention == "" {
		intervention = rt.config.Study.InterventionTime
	}
	if treated == "" || intervention == "" {
		return "", "", apperrors.ConfigInvalid("treated unit and intervention time are required (--treated/--intervention or TREATED_UNIT/INTERVENTION_TIME)")
	}
	return treated, intervention, nil
}

func (rt *runtime) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.InternalError(fmt.Sprintf("failed to encode output: %v", err))
	}
	_, err = fmt.Fprintln(rt.out, string(data))
	return err
}
