package plan

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/intent"
	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/internal/testutil"
)

func salesContext(t *testing.T) *schema.Context {
	t.Helper()
	ctx, err := schema.Build(testutil.SalesView())
	require.NoError(t, err)
	return ctx
}

func january2026() intent.TimeRange {
	return intent.TimeRange{
		Start: intent.NewDate(2026, time.January, 1),
		End:   intent.NewDate(2026, time.January, 31),
	}
}

func renderPlan(p *Plan) []byte {
	var buf bytes.Buffer
	for _, q := range p.Queries {
		fmt.Fprintf(&buf, "-- %s\n%s\n\n", q.Name, q.SQL)
	}
	return buf.Bytes()
}

func TestGenerate_AbsoluteBaselinePlan_Golden(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Filters:   map[string]intent.FilterValues{"segment": {"Enterprise"}},
		Baseline:  &intent.Baseline{Type: intent.BaselinePreviousPeriod},
		Mode:      intent.ModeAbsolute,
	}

	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)

	names := make([]string, len(p.Queries))
	for i, q := range p.Queries {
		names[i] = q.Name
	}
	assert.Equal(t, []string{
		QueryCurrentPeriod, QueryBaselinePeriod, QueryBreakdown, QueryBaselineBreakdown,
	}, names)

	g := goldie.New(t, goldie.WithNameSuffix(".golden"))
	g.Assert(t, "absolute_baseline_plan", renderPlan(p))
}

func TestGenerate_AnomalyPlan_Golden(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Baseline:  &intent.Baseline{Type: intent.BaselinePreviousPeriod},
		Mode:      intent.ModeAnomaly,
	}

	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)

	assert.True(t, p.Has(QueryTimeseries))
	g := goldie.New(t, goldie.WithNameSuffix(".golden"))
	g.Assert(t, "anomaly_plan", renderPlan(p))
}

func TestGenerate_NoBaselineYieldsSingleQuery(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Mode:      intent.ModeAbsolute,
	}

	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)
	require.Len(t, p.Queries, 1)
	assert.Equal(t, QueryCurrentPeriod, p.Queries[0].Name)
}

func TestGenerate_AllDimensionsFilteredSkipsBreakdown(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Filters: map[string]intent.FilterValues{
			"segment": {"Enterprise"},
			"region":  {"EMEA"},
		},
		Baseline: &intent.Baseline{Type: intent.BaselinePreviousPeriod},
		Mode:     intent.ModeAbsolute,
	}

	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)
	assert.False(t, p.Has(QueryBreakdown))
	assert.False(t, p.Has(QueryBaselineBreakdown))
	assert.True(t, p.Has(QueryBaselinePeriod))
}

func TestGenerate_HalfOpenTimePredicate(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Mode:      intent.ModeAbsolute,
	}

	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)
	sql, _ := p.Query(QueryCurrentPeriod)
	assert.Contains(t, sql, "sales_fact.order_date >= '2026-01-01'")
	assert.Contains(t, sql, "sales_fact.order_date < '2026-02-01'")
	assert.NotContains(t, sql, "BETWEEN")
}

func TestGenerate_MultiValueFilterRendersIN(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Filters:   map[string]intent.FilterValues{"region": {"EMEA", "APAC"}},
		Mode:      intent.ModeAbsolute,
	}

	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)
	sql, _ := p.Query(QueryCurrentPeriod)
	assert.Contains(t, sql, "customers.region IN ('EMEA', 'APAC')")
}

func TestGenerate_EscapesEmbeddedQuotes(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Filters:   map[string]intent.FilterValues{"segment": {"O'Reilly's"}},
		Mode:      intent.ModeAbsolute,
	}

	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)
	sql, _ := p.Query(QueryCurrentPeriod)
	assert.Contains(t, sql, "customers.segment = 'O''Reilly''s'")
}

func TestGenerate_SharedFromClause(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Baseline:  &intent.Baseline{Type: intent.BaselinePreviousPeriod},
		Mode:      intent.ModeAbsolute,
	}

	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)

	want := "FROM sales_fact\nINNER JOIN customers ON sales_fact.customer_id = customers.id"
	for _, q := range p.Queries {
		assert.Contains(t, q.SQL, want, "query %s must share the FROM clause", q.Name)
		assert.Equal(t, 1, strings.Count(q.SQL, "JOIN customers"), "each table joins exactly once")
	}
}

func TestGenerate_UnknownMetric(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "profit",
		TimeRange: january2026(),
		Mode:      intent.ModeAbsolute,
	}
	_, err := Generate(salesContext(t), in)
	assert.True(t, schema.IsNotFound(err))
}

func TestGenerate_UnknownFilterDimension(t *testing.T) {
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Filters:   map[string]intent.FilterValues{"planet": {"Mars"}},
		Mode:      intent.ModeAbsolute,
	}
	_, err := Generate(salesContext(t), in)
	assert.True(t, IsInvalidDimension(err))
}

func TestGenerate_ComplexityScore(t *testing.T) {
	// 1 base + 2 (one join) + 1 filter + 2 timeseries + 1 baseline = 7.
	in := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Filters:   map[string]intent.FilterValues{"segment": {"Enterprise"}},
		Baseline:  &intent.Baseline{Type: intent.BaselinePreviousPeriod},
		Mode:      intent.ModeAnomaly,
	}
	p, err := Generate(salesContext(t), in)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Metadata.ComplexityScore)
	assert.True(t, p.Metadata.UsesJoins)
	assert.True(t, p.Metadata.UsesAggregation)

	// Single-table, no extras floors at 1.
	simple := &intent.StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: january2026(),
		Mode:      intent.ModeAbsolute,
	}
	p, err = Generate(salesContext(t), simple)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Metadata.ComplexityScore)
	assert.False(t, p.Metadata.UsesJoins)
}
