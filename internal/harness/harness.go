// Package harness runs end-to-end pipeline scenarios defined in YAML.
//
// Each scenario gets a fresh in-memory database seeded from its SQL, a
// schema context built from its business view, and a pipeline with a fixed
// token generator so reports are stable across runs. Scenarios double as
// executable documentation of the detection and attribution contracts.
package harness

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/driftline/driftline/internal/bv"
	"github.com/driftline/driftline/internal/executor"
	"github.com/driftline/driftline/internal/feed"
	"github.com/driftline/driftline/internal/schema"
)

// Result carries the report a scenario produced and any assertion
// failures. An empty Failures slice means the scenario passed.
type Result struct {
	Report   *feed.Report
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

// Run executes one scenario against a fresh in-memory database and
// evaluates its expectations. Execution errors (bad view, seed failure,
// pipeline error) return err; expectation mismatches land in
// Result.Failures.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	view, err := bv.Load(scenario.View)
	if err != nil {
		return nil, fmt.Errorf("load view: %w", err)
	}
	sc, err := schema.Build(view)
	if err != nil {
		return nil, fmt.Errorf("build schema context: %w", err)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	// One connection keeps the in-memory database alive across statements.
	db.SetMaxOpenConns(1)

	seed, err := scenario.seedSQL()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, seed); err != nil {
		return nil, fmt.Errorf("seed database: %w", err)
	}

	pipeline := feed.New(sc, executor.NewWithDB(db),
		feed.WithTokenGenerator(&feed.FixedGenerator{}))

	report, err := pipeline.Analyze(ctx, &scenario.Intent)
	if err != nil {
		return nil, err
	}

	return &Result{
		Report:   report,
		Failures: evaluate(report, scenario.Expect),
	}, nil
}

// evaluate checks the report against the scenario expectations and
// returns one message per mismatch.
func evaluate(report *feed.Report, expect Expect) []string {
	var failures []string

	if expect.Triggered != nil && report.Detection.Triggered != *expect.Triggered {
		failures = append(failures, fmt.Sprintf(
			"triggered = %v, want %v (reason: %s)",
			report.Detection.Triggered, *expect.Triggered, report.Detection.TriggerReason))
	}
	if expect.ReasonContains != "" && !strings.Contains(report.Detection.TriggerReason, expect.ReasonContains) {
		failures = append(failures, fmt.Sprintf(
			"trigger reason %q does not contain %q",
			report.Detection.TriggerReason, expect.ReasonContains))
	}

	if expect.TopDriver != nil {
		switch {
		case report.Insight == nil || len(report.Insight.Drivers) == 0:
			failures = append(failures, "expected a top driver but the report has no attribution")
		default:
			top := report.Insight.Drivers[0]
			if top.Member != expect.TopDriver.Member {
				failures = append(failures, fmt.Sprintf(
					"top driver member = %q, want %q", top.Member, expect.TopDriver.Member))
			}
			if expect.TopDriver.Direction != "" && top.Direction != expect.TopDriver.Direction {
				failures = append(failures, fmt.Sprintf(
					"top driver direction = %q, want %q", top.Direction, expect.TopDriver.Direction))
			}
		}
	}

	if expect.MinExplainability != nil {
		switch {
		case report.Insight == nil:
			failures = append(failures, "expected an explainability score but the report has no attribution")
		case report.Insight.ExplainabilityScore < *expect.MinExplainability:
			failures = append(failures, fmt.Sprintf(
				"explainability %.2f below floor %.2f",
				report.Insight.ExplainabilityScore, *expect.MinExplainability))
		}
	}

	return failures
}
