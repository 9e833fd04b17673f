// Package feed orchestrates the analysis pipeline: plan generation,
// validation, execution, change detection, and root-cause attribution.
//
// A Pipeline is built once per business view and reused across requests.
// Each Analyze call is tagged with a unique request token that appears in
// every log line and in the Report, so one request's trail can be followed
// end to end.
//
// A processing failure is an error return. "Not triggered" is a successful
// Report whose Detection.Triggered is false. The two are never conflated.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftline/driftline/internal/detect"
	"github.com/driftline/driftline/internal/executor"
	"github.com/driftline/driftline/internal/insight"
	"github.com/driftline/driftline/internal/intent"
	"github.com/driftline/driftline/internal/plan"
	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/internal/validator"
)

// Report is the full outcome of one analyzed intent.
type Report struct {
	RequestID string `json:"request_id"`

	Metric    string               `json:"metric"`
	TimeRange intent.TimeRange     `json:"time_range"`
	Mode      intent.DetectionMode `json:"mode"`

	Plan      plan.Metadata    `json:"plan"`
	Detection detect.Result    `json:"detection"`
	Insight   *insight.Insight `json:"insight,omitempty"`
}

// Pipeline runs intents against one business view and one data source.
// Immutable after New; safe for concurrent Analyze calls.
type Pipeline struct {
	schema *schema.Context
	exec   *executor.Executor
	cfg    Config
	tokens TokenGenerator
}

// New builds a pipeline over a compiled schema context and an executor.
func New(sc *schema.Context, exec *executor.Executor, opts ...Option) *Pipeline {
	p := &Pipeline{
		schema: sc,
		exec:   exec,
		cfg:    DefaultConfig(),
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze runs the full pipeline for one intent.
//
// The plan is generated, validated against the schema context, executed,
// and fed to the detection mode the intent selects. Attribution runs only
// when detection triggered and breakdown results exist. An intent without
// a baseline in absolute mode yields a non-triggered Report stating there
// was nothing to compare.
func (p *Pipeline) Analyze(ctx context.Context, in *intent.StructuredIntent) (*Report, error) {
	token := p.tokens.Generate()
	log := slog.With("request", token, "metric", in.Metric)
	start := time.Now()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	pl, err := plan.Generate(p.schema, in)
	if err != nil {
		return nil, err
	}
	log.Info("plan generated", "queries", len(pl.Queries), "complexity", pl.Metadata.ComplexityScore)

	if _, err := validator.Validate(pl, p.schema); err != nil {
		return nil, err
	}

	results, err := p.exec.Execute(ctx, pl)
	if err != nil {
		return nil, err
	}
	log.Info("plan executed", "result_sets", len(results))

	report := &Report{
		RequestID: token,
		Metric:    in.Metric,
		TimeRange: in.TimeRange,
		Mode:      in.Mode,
		Plan:      pl.Metadata,
	}

	current, hasCurrent := results.Get(plan.QueryCurrentPeriod).ScalarFloat("metric_value")
	if !hasCurrent {
		report.Detection = detect.Result{
			Mode:          in.Mode,
			TriggerReason: "current period returned no data; nothing to detect",
		}
		log.Info("analysis finished", "triggered", false, "reason", "no data", "elapsed", time.Since(start))
		return report, nil
	}

	switch in.Mode {
	case intent.ModeAnomaly:
		verdict, err := p.detectAnomaly(results)
		if err != nil {
			return nil, err
		}
		report.Detection = verdict
	default:
		verdict, ok := p.detectAbsolute(in, results, current)
		report.Detection = verdict
		if !ok {
			log.Info("analysis finished", "triggered", false, "reason", "no baseline", "elapsed", time.Since(start))
			return report, nil
		}
	}

	if report.Detection.Triggered {
		ins, err := p.attribute(results, report.Detection.Metrics.Delta)
		if err != nil {
			return nil, err
		}
		report.Insight = ins
	}

	log.Info("analysis finished",
		"triggered", report.Detection.Triggered,
		"reason", report.Detection.TriggerReason,
		"elapsed", time.Since(start))
	return report, nil
}

// detectAbsolute runs the threshold comparison. The second return is false
// when no baseline was requested, in which case the verdict only reports
// the current value.
func (p *Pipeline) detectAbsolute(in *intent.StructuredIntent, results executor.Results, current float64) (detect.Result, bool) {
	baselineResult := results.Get(plan.QueryBaselinePeriod)
	if baselineResult == nil {
		return detect.Result{
			Mode:          intent.ModeAbsolute,
			TriggerReason: "no baseline requested; nothing to compare",
			Metrics:       detect.Metrics{Current: current},
		}, false
	}

	// A baseline period with no rows is a legitimate zero.
	baseline, _ := baselineResult.ScalarFloat("metric_value")

	cfg := detect.AbsoluteConfig{
		ThresholdPercent: p.cfg.ThresholdPercent,
		DeltaThreshold:   p.cfg.DeltaThreshold,
	}
	if in.Threshold != nil {
		cfg.ThresholdPercent = *in.Threshold
	}
	return detect.DetectAbsolute(current, baseline, cfg), true
}

// detectAnomaly materializes the time series and runs the residual check.
func (p *Pipeline) detectAnomaly(results executor.Results) (detect.Result, error) {
	tsResult := results.Get(plan.QueryTimeseries)
	series, err := seriesFromResult(tsResult)
	if err != nil {
		return detect.Result{}, err
	}
	return detect.DetectAnomalies(series, detect.AnomalyConfig{
		Sigma:     p.cfg.Sigma,
		MinPoints: p.cfg.MinSeriesLength,
	})
}

// attribute runs contribution-shift attribution when breakdown results
// exist. A triggered verdict without breakdowns (all dimensions filtered,
// or no baseline in anomaly mode) yields a nil insight, not an error.
func (p *Pipeline) attribute(results executor.Results, delta float64) (*insight.Insight, error) {
	currentBd := results.Get(plan.QueryBreakdown)
	baselineBd := results.Get(plan.QueryBaselineBreakdown)
	if currentBd == nil || baselineBd == nil {
		return nil, nil
	}

	// Breakdown columns are the dimensions; the aggregate is last.
	var dims []string
	for _, col := range currentBd.Columns {
		if col != "metric_value" {
			dims = append(dims, col)
		}
	}
	if len(dims) == 0 {
		return nil, nil
	}

	return insight.Analyze(currentBd, baselineBd, dims, delta, insight.Config{
		TopN:            p.cfg.TopDrivers,
		MinContribution: p.cfg.MinContribution,
	})
}

// seriesFromResult converts the timeseries result into detection points.
// Date columns scan as strings from sqlite and as time.Time from drivers
// with native date types; both are accepted.
func seriesFromResult(r *executor.Result) ([]detect.Point, error) {
	if r == nil {
		return nil, nil
	}
	series := make([]detect.Point, 0, len(r.Rows))
	for _, row := range r.Rows {
		date, err := pointDate(row["date"])
		if err != nil {
			return nil, fmt.Errorf("timeseries row %d: %w", len(series), err)
		}
		value, _ := executor.Float(row["value"])
		series = append(series, detect.Point{Date: date, Value: value})
	}
	return series, nil
}

func pointDate(v any) (intent.Date, error) {
	switch d := v.(type) {
	case time.Time:
		return intent.Date{Time: d}, nil
	case string:
		if len(d) > 10 {
			d = d[:10]
		}
		return intent.ParseDate(d)
	default:
		return intent.Date{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
	}
}
