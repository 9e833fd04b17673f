package plan

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftline/driftline/internal/bv"
	"github.com/driftline/driftline/internal/intent"
	"github.com/driftline/driftline/internal/schema"
)

// Generate renders the full query plan for an intent.
//
// Required tables are the union of the measure's table, the time dimension's
// table, and every filter and breakdown dimension's table. All queries in
// one plan share the same FROM clause: the root (measure) table followed by
// the join path in declared join types, each table appearing exactly once
// under its own name.
//
// Fails with schema.NotFoundError for an unknown metric and
// InvalidDimensionError for an unknown filter dimension.
func Generate(ctx *schema.Context, in *intent.StructuredIntent) (*Plan, error) {
	view := ctx.View()

	measure := view.Measure(in.Metric)
	if measure == nil {
		return nil, &schema.NotFoundError{Kind: "measure", Name: in.Metric}
	}
	rootTable, err := ctx.ResolveTableForMeasure(in.Metric)
	if err != nil {
		return nil, err
	}

	declared := make([]string, len(view.Dimensions))
	for i, d := range view.Dimensions {
		declared[i] = d.Name
	}
	filterDims := in.FilterDimensions(declared)
	for _, name := range filterDims {
		if view.Dimension(name) == nil {
			return nil, &InvalidDimensionError{Dimension: name}
		}
	}

	// Breakdown dimensions: everything the view declares beyond the
	// applied filters, in declaration order.
	var breakdownDims []bv.Dimension
	for _, d := range view.Dimensions {
		if _, filtered := in.Filters[d.Name]; !filtered {
			breakdownDims = append(breakdownDims, d)
		}
	}

	var baselineRange *intent.TimeRange
	if in.HasBaseline() {
		resolved, err := intent.ResolveBaseline(in, ctx.Calendar())
		if err != nil {
			return nil, err
		}
		baselineRange = &resolved
	}

	// Breakdown tables only join when the breakdown pair is generated.
	hasBreakdown := baselineRange != nil && len(breakdownDims) > 0
	if !hasBreakdown {
		breakdownDims = nil
	}

	required := requiredTables(view, rootTable, filterDims, breakdownDims)
	joins, err := ctx.FindJoinPath(rootTable, required)
	if err != nil {
		return nil, err
	}
	from := renderFrom(rootTable, joins)

	g := &generator{
		view:    view,
		measure: measure,
		in:      in,
		from:    from,
	}

	p := &Plan{}
	p.Queries = append(p.Queries, NamedQuery{
		Name: QueryCurrentPeriod,
		SQL:  g.scalarQuery(in.TimeRange),
	})
	if baselineRange != nil {
		p.Queries = append(p.Queries, NamedQuery{
			Name: QueryBaselinePeriod,
			SQL:  g.scalarQuery(*baselineRange),
		})
	}
	hasTimeseries := in.Mode == intent.ModeAnomaly
	if hasTimeseries {
		p.Queries = append(p.Queries, NamedQuery{
			Name: QueryTimeseries,
			SQL:  g.timeseriesQuery(in.TimeRange),
		})
	}
	if hasBreakdown {
		p.Queries = append(p.Queries, NamedQuery{
			Name: QueryBreakdown,
			SQL:  g.breakdownQuery(breakdownDims, in.TimeRange),
		})
		p.Queries = append(p.Queries, NamedQuery{
			Name: QueryBaselineBreakdown,
			SQL:  g.breakdownQuery(breakdownDims, *baselineRange),
		})
	}

	p.Metadata = Metadata{
		ComplexityScore: complexity(len(joins), len(filterDims), hasTimeseries, baselineRange != nil),
		UsesJoins:       len(joins) > 0,
		UsesAggregation: true,
	}

	slog.Debug("query plan generated",
		"metric", in.Metric,
		"queries", len(p.Queries),
		"joins", len(joins),
		"complexity", p.Metadata.ComplexityScore)

	return p, nil
}

func requiredTables(view *bv.BusinessView, root string, filterDims []string, breakdownDims []bv.Dimension) []string {
	seen := map[string]bool{root: true}
	tables := []string{root}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	add(view.TimeDimension.Table)
	for _, name := range filterDims {
		if d := view.Dimension(name); d != nil {
			add(d.Table)
		}
	}
	for _, d := range breakdownDims {
		add(d.Table)
	}
	return tables
}

// renderFrom renders the FROM clause: root table then one JOIN per path
// step, each in the join's declared type.
func renderFrom(root string, joins []schema.JoinStep) string {
	parts := []string{"FROM " + root}
	for _, step := range joins {
		joinType := strings.ToUpper(string(step.Join.Type))
		if joinType == "" {
			joinType = "INNER"
		}
		parts = append(parts, fmt.Sprintf("%s JOIN %s ON %s.%s = %s.%s",
			joinType, step.To,
			step.Join.LeftTable, step.Join.LeftKey,
			step.Join.RightTable, step.Join.RightKey))
	}
	return strings.Join(parts, "\n")
}

type generator struct {
	view    *bv.BusinessView
	measure *bv.Measure
	in      *intent.StructuredIntent
	from    string
}

// scalarQuery renders the single-value aggregate for a period.
func (g *generator) scalarQuery(period intent.TimeRange) string {
	parts := []string{
		"SELECT " + g.measure.Expression + " AS metric_value",
		g.from,
		g.whereClause(period),
	}
	return strings.Join(parts, "\n")
}

// timeseriesQuery renders the per-day series feeding anomaly detection.
func (g *generator) timeseriesQuery(period intent.TimeRange) string {
	timeCol := g.view.TimeDimension.ColumnRef()
	parts := []string{
		"SELECT " + timeCol + " AS date, " + g.measure.Expression + " AS value",
		g.from,
		g.whereClause(period),
		"GROUP BY " + timeCol,
		"ORDER BY " + timeCol,
	}
	return strings.Join(parts, "\n")
}

// breakdownQuery renders the grouped aggregate over the breakdown
// dimensions, columns in declaration order. The ORDER BY makes row order
// deterministic across drivers; attribution tie-breaks depend on it.
func (g *generator) breakdownQuery(dims []bv.Dimension, period intent.TimeRange) string {
	selects := make([]string, 0, len(dims)+1)
	groupCols := make([]string, 0, len(dims))
	for _, d := range dims {
		selects = append(selects, d.ColumnRef()+" AS "+d.Name)
		groupCols = append(groupCols, d.ColumnRef())
	}
	selects = append(selects, g.measure.Expression+" AS metric_value")

	parts := []string{
		"SELECT " + strings.Join(selects, ", "),
		g.from,
		g.whereClause(period),
		"GROUP BY " + strings.Join(groupCols, ", "),
		"ORDER BY " + strings.Join(groupCols, ", "),
	}
	return strings.Join(parts, "\n")
}

// whereClause renders the half-open time predicate followed by dimension
// filters, conjoined with AND.
func (g *generator) whereClause(period intent.TimeRange) string {
	timeCol := g.view.TimeDimension.ColumnRef()
	conditions := []string{
		fmt.Sprintf("%s >= '%s' AND %s < '%s'",
			timeCol, period.Start,
			timeCol, intent.Date{Time: period.End.AddDate(0, 0, 1)}),
	}

	declared := make([]string, len(g.view.Dimensions))
	for i, d := range g.view.Dimensions {
		declared[i] = d.Name
	}
	for _, name := range g.in.FilterDimensions(declared) {
		dim := g.view.Dimension(name)
		values := g.in.Filters[name]
		conditions = append(conditions, renderFilter(dim.ColumnRef(), values))
	}

	return "WHERE " + strings.Join(conditions, " AND ")
}

// renderFilter renders column = 'v' for a single value and
// column IN ('v1', 'v2') for several. Embedded quotes are doubled.
func renderFilter(column string, values intent.FilterValues) string {
	if len(values) == 1 {
		return fmt.Sprintf("%s = '%s'", column, escape(values[0]))
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + escape(v) + "'"
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(quoted, ", "))
}

func escape(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// complexity computes the 1-10 metadata score.
func complexity(joinedBeyondFirst, filters int, hasTimeseries, hasBaseline bool) int {
	score := 1 + 2*joinedBeyondFirst + filters
	if hasTimeseries {
		score += 2
	}
	if hasBaseline {
		score++
	}
	if score > 10 {
		score = 10
	}
	if score < 1 {
		score = 1
	}
	return score
}
