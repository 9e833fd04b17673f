package cli

import (
	"errors"
	"io"
	"os"

	"github.com/driftline/driftline/internal/bv"
	"github.com/driftline/driftline/internal/detect"
	"github.com/driftline/driftline/internal/executor"
	"github.com/driftline/driftline/internal/intent"
	"github.com/driftline/driftline/internal/plan"
	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/internal/validator"
)

// Error codes surfaced in CLI responses.
const (
	ErrCodeGeneric    = "E000"
	ErrCodeView       = "E001"
	ErrCodeIntent     = "E002"
	ErrCodePlan       = "E003"
	ErrCodeValidation = "E004"
	ErrCodeExecution  = "E005"
	ErrCodeDetection  = "E006"
)

// loadSchemaContext loads a business view CUE file and compiles it.
func loadSchemaContext(viewPath string) (*schema.Context, error) {
	view, err := bv.Load(viewPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load business view", err)
	}
	ctx, err := schema.Build(view)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "build schema context", err)
	}
	return ctx, nil
}

// loadIntent reads and validates a structured intent YAML file.
func loadIntent(path string) (*intent.StructuredIntent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read intent file", err)
	}
	in, err := intent.FromYAML(data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "parse intent", err)
	}
	return in, nil
}

// errorCode maps pipeline errors to CLI error codes.
func errorCode(err error) string {
	var (
		ve  *validator.ValidationError
		qe  *executor.QueryExecutionError
		ie  *detect.InsufficientDataError
		ine *intent.InvalidIntentError
		de  *plan.InvalidDimensionError
	)
	switch {
	case errors.As(err, &ve):
		return ErrCodeValidation
	case errors.As(err, &qe):
		return ErrCodeExecution
	case errors.As(err, &ie):
		return ErrCodeDetection
	case errors.As(err, &ine):
		return ErrCodeIntent
	case errors.As(err, &de), schema.IsNotFound(err), schema.IsConfiguration(err):
		return ErrCodePlan
	default:
		return ErrCodeGeneric
	}
}

// formatter builds the OutputFormatter for a command invocation.
func formatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
	}
}
