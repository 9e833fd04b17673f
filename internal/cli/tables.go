package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/executor"
)

// TableInfo describes one table of the connected data source.
type TableInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath, driver string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables and columns of a data source",
		Long: `Introspect the connected data source and list its tables with their
columns. Useful when writing a business view for an existing database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(rootOpts, cmd, driver, dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "data source DSN or sqlite file path (required)")
	cmd.Flags().StringVar(&driver, "driver", "sqlite3", "database driver (sqlite3|postgres)")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runTables(opts *RootOptions, cmd *cobra.Command, driver, dbPath string) error {
	f := formatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	exec, err := executor.Open(driver, dbPath)
	if err != nil {
		f.Error(ErrCodeExecution, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open data source", err)
	}
	defer exec.Close()

	ctx := cmd.Context()
	listSQL := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	if driver == "postgres" {
		listSQL = "SELECT table_name AS name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name"
	}

	names, err := exec.ExecuteRaw(ctx, listSQL)
	if err != nil {
		f.Error(ErrCodeExecution, err.Error(), nil)
		return WrapExitError(ExitCommandError, "list tables", err)
	}

	var tables []TableInfo
	for _, row := range names.Rows {
		name := fmt.Sprint(row["name"])
		columns, err := tableColumns(cmd, exec, driver, name)
		if err != nil {
			f.Error(ErrCodeExecution, err.Error(), nil)
			return WrapExitError(ExitCommandError, "describe table "+name, err)
		}
		tables = append(tables, TableInfo{Name: name, Columns: columns})
	}

	if f.Format == "json" {
		return f.JSON(tables)
	}
	for _, t := range tables {
		fmt.Fprintf(f.Writer, "%s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(f.Writer, "  %s\n", c)
		}
	}
	return nil
}

func tableColumns(cmd *cobra.Command, exec *executor.Executor, driver, table string) ([]string, error) {
	// Table names come from the catalog, not user input; sqlite's PRAGMA
	// takes no placeholders anyway.
	describeSQL := fmt.Sprintf("PRAGMA table_info(%q)", table)
	if driver == "postgres" {
		describeSQL = fmt.Sprintf(
			"SELECT column_name AS name FROM information_schema.columns WHERE table_name = '%s' ORDER BY ordinal_position",
			table)
	}
	result, err := exec.ExecuteRaw(cmd.Context(), describeSQL)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		columns = append(columns, fmt.Sprint(row["name"]))
	}
	return columns, nil
}
