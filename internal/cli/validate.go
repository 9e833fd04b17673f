package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/plan"
	"github.com/driftline/driftline/internal/validator"
)

// ValidationResult holds a validation verdict for output.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Queries int    `json:"queries"`
	Query   string `json:"query,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var viewPath, intentPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Generate a plan and validate it against the business view",
		Long: `Generate the query plan for an intent and run the safety checks:
forbidden keywords, injection patterns, column whitelist, structure,
and aggregation consistency.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateCmd(rootOpts, cmd, viewPath, intentPath)
		},
	}

	cmd.Flags().StringVar(&viewPath, "view", "", "business view CUE file (required)")
	cmd.Flags().StringVar(&intentPath, "intent", "", "structured intent YAML file (required)")
	cmd.MarkFlagRequired("view")
	cmd.MarkFlagRequired("intent")

	return cmd
}

func runValidateCmd(opts *RootOptions, cmd *cobra.Command, viewPath, intentPath string) error {
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
	f.VerboseLog("generated %d queries", len(p.Queries))

	if _, err := validator.Validate(p, sc); err != nil {
		result := ValidationResult{Valid: false, Queries: len(p.Queries)}
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			result.Query = ve.QueryName
			result.Message = ve.Message
			result.Details = ve.Details
		} else {
			result.Message = err.Error()
		}

		if f.Format == "json" {
			f.JSON(result)
		} else {
			fmt.Fprintln(f.Writer, "✗ Validation failed")
			fmt.Fprintf(f.Writer, "  query:   %s\n", result.Query)
			fmt.Fprintf(f.Writer, "  message: %s\n", result.Message)
			if result.Details != "" {
				fmt.Fprintf(f.Writer, "  details: %s\n", result.Details)
			}
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	if f.Format == "json" {
		return f.JSON(ValidationResult{Valid: true, Queries: len(p.Queries)})
	}
	fmt.Fprintf(f.Writer, "✓ All %d queries valid\n", len(p.Queries))
	return nil
}
