package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/plan"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	var viewPath, intentPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate the query plan for an intent",
		Long: `Generate the named SQL queries for a structured intent against a
business view, without validating or executing them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, cmd, viewPath, intentPath)
		},
	}

	cmd.Flags().StringVar(&viewPath, "view", "", "business view CUE file (required)")
	cmd.Flags().StringVar(&intentPath, "intent", "", "structured intent YAML file (required)")
	cmd.MarkFlagRequired("view")
	cmd.MarkFlagRequired("intent")

	return cmd
}

func runPlan(opts *RootOptions, cmd *cobra.Command, viewPath, intentPath string) error {
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

	p, err := plan.Generate(sc, in)
	if err != nil {
		f.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "plan generation failed", err)
	}

	if f.Format == "json" {
		return f.JSON(p)
	}
	printPlan(f, p)
	return nil
}

func printPlan(f *OutputFormatter, p *plan.Plan) {
	fmt.Fprintf(f.Writer, "Plan: %d queries (complexity %d/10)\n",
		len(p.Queries), p.Metadata.ComplexityScore)
	for _, q := range p.Queries {
		fmt.Fprintf(f.Writer, "\n-- %s\n%s\n", q.Name, q.SQL)
	}
}
