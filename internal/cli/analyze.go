package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/driftline/driftline/internal/executor"
	"github.com/driftline/driftline/internal/feed"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	var viewPath, intentPath, dbPath, driver string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full analysis pipeline for an intent",
		Long: `Run the full pipeline: plan, validate, execute, detect, and (when a
significant change triggers) attribute the change to dimensional
segments. Prints the analysis report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(rootOpts, cmd, viewPath, intentPath, driver, dbPath)
		},
	}

	cmd.Flags().StringVar(&viewPath, "view", "", "business view CUE file (required)")
	cmd.Flags().StringVar(&intentPath, "intent", "", "structured intent YAML file (required)")
	cmd.Flags().StringVar(&dbPath, "db", "", "data source DSN or sqlite file path (required)")
	cmd.Flags().StringVar(&driver, "driver", "sqlite3", "database driver (sqlite3|postgres)")
	cmd.MarkFlagRequired("view")
	cmd.MarkFlagRequired("intent")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runAnalyze(opts *RootOptions, cmd *cobra.Command, viewPath, intentPath, driver, dbPath string) error {
	f := formatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sc, err := loadSchemaContext(viewPath)
	if err != nil {
		f.Error(ErrCodeView, err.Error(), nil)
		return err
	}
	in, err := loadIntent(intentPath)
	if err != nil {
		f.Error(ErrCodeIntent, err.Error(), nil)
		return err
	}

	cfg := feed.ConfigFromEnv()
	exec, err := executor.Open(driver, dbPath,
		executor.WithTimeout(cfg.QueryTimeout),
		executor.WithMaxRows(cfg.MaxRows))
	if err != nil {
		f.Error(ErrCodeExecution, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open data source", err)
	}
	defer exec.Close()

	pipeline := feed.New(sc, exec, feed.WithConfig(cfg))
	report, err := pipeline.Analyze(cmd.Context(), in)
	if err != nil {
		f.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "analysis failed", err)
	}

	if f.Format == "json" {
		return f.JSON(report)
	}
	printReport(f, report)
	return nil
}

var reportPrinter = message.NewPrinter(language.English)

func printReport(f *OutputFormatter, r *feed.Report) {
	w := f.Writer
	fmt.Fprintf(w, "Request  %s\n", r.RequestID)
	fmt.Fprintf(w, "Metric   %s  (%s, %s mode)\n", r.Metric, r.TimeRange, r.Mode)

	m := r.Detection.Metrics
	reportPrinter.Fprintf(w, "Current  %.2f\n", m.Current)
	reportPrinter.Fprintf(w, "Baseline %.2f\n", m.Baseline)
	if m.HasPercentChange {
		reportPrinter.Fprintf(w, "Change   %.2f (%.2f%%)\n", m.Delta, m.PercentChange)
	} else {
		reportPrinter.Fprintf(w, "Change   %.2f\n", m.Delta)
	}

	verdict := "not triggered"
	if r.Detection.Triggered {
		verdict = "TRIGGERED"
	}
	fmt.Fprintf(w, "Verdict  %s: %s\n", verdict, r.Detection.TriggerReason)

	for _, a := range r.Detection.Anomalies {
		reportPrinter.Fprintf(w, "  anomaly %s: value %.2f, expected %.2f (severity %.2f)\n",
			a.Date, a.Value, a.Expected, a.Severity)
	}

	if r.Insight != nil {
		reportPrinter.Fprintf(w, "\nDrivers (explainability %.0f%%):\n", r.Insight.ExplainabilityScore)
		for i, d := range r.Insight.Drivers {
			reportPrinter.Fprintf(w, "  %d. %s = %s: impact %.2f (%s, share %.1f%% -> %.1f%%)\n",
				i+1, d.Dimension, d.Member, d.Impact, d.Direction,
				d.ContributionBaseline*100, d.ContributionCurrent*100)
		}
	}
}
