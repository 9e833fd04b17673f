package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath, sqlPath, driver string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Initialize a database from a SQL file",
		Long: `Execute a SQL script (schema plus sample data) against a database.
Creates the sqlite file when it does not exist.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, cmd, driver, dbPath, sqlPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "data source DSN or sqlite file path (required)")
	cmd.Flags().StringVar(&sqlPath, "sql", "", "SQL script to execute (required)")
	cmd.Flags().StringVar(&driver, "driver", "sqlite3", "database driver (sqlite3|postgres)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("sql")

	return cmd
}

func runSeed(opts *RootOptions, cmd *cobra.Command, driver, dbPath, sqlPath string) error {
	f := formatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	script, err := os.ReadFile(sqlPath)
	if err != nil {
		f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read SQL script", err)
	}

	// Seeding runs DDL and multi-statement scripts, so it uses the raw
	// handle rather than the read-only executor path.
	db, err := sql.Open(driver, dbPath)
	if err != nil {
		f.Error(ErrCodeExecution, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(cmd.Context(), string(script)); err != nil {
		f.Error(ErrCodeExecution, err.Error(), nil)
		return WrapExitError(ExitCommandError, "execute SQL script", err)
	}

	f.VerboseLog("executed %s against %s", sqlPath, dbPath)
	if f.Format == "json" {
		return f.JSON(map[string]string{"database": dbPath, "script": sqlPath})
	}
	fmt.Fprintf(f.Writer, "✓ Seeded %s from %s\n", dbPath, sqlPath)
	return nil
}
