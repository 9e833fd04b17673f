package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/plan"
	"github.com/driftline/driftline/internal/testutil"
)

func seededExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	db := testutil.OpenDB(t)
	testutil.InsertCustomer(t, db, 1, "Enterprise", "EMEA")
	testutil.InsertCustomer(t, db, 2, "SMB", "APAC")
	testutil.InsertSale(t, db, 1, 100, "2026-01-10")
	testutil.InsertSale(t, db, 1, 250, "2026-01-15")
	testutil.InsertSale(t, db, 2, 50, "2026-01-20")
	return NewWithDB(db, opts...)
}

func TestExecute_ScalarAndBreakdown(t *testing.T) {
	e := seededExecutor(t)

	p := &plan.Plan{Queries: []plan.NamedQuery{
		{
			Name: plan.QueryCurrentPeriod,
			SQL:  "SELECT SUM(revenue) AS metric_value FROM sales_fact",
		},
		{
			Name: plan.QueryBreakdown,
			SQL: `SELECT customers.segment AS segment, SUM(sales_fact.revenue) AS metric_value
FROM sales_fact INNER JOIN customers ON sales_fact.customer_id = customers.id
GROUP BY customers.segment ORDER BY customers.segment`,
		},
	}}

	results, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, results, 2)

	total, ok := results.Get(plan.QueryCurrentPeriod).ScalarFloat("metric_value")
	require.True(t, ok)
	assert.InDelta(t, 400, total, 0.001)

	breakdown := results.Get(plan.QueryBreakdown)
	require.Len(t, breakdown.Rows, 2)
	assert.Equal(t, "Enterprise", breakdown.Rows[0]["segment"])
	assert.Equal(t, []string{"segment", "metric_value"}, breakdown.Columns)
}

func TestExecute_Idempotent(t *testing.T) {
	e := seededExecutor(t)
	p := &plan.Plan{Queries: []plan.NamedQuery{{
		Name: plan.QueryCurrentPeriod,
		SQL:  "SELECT SUM(revenue) AS metric_value FROM sales_fact",
	}}}

	first, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	second, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExecute_RowCeiling(t *testing.T) {
	e := seededExecutor(t, WithMaxRows(2))

	p := &plan.Plan{Queries: []plan.NamedQuery{{
		Name: "all_rows",
		SQL:  "SELECT id FROM sales_fact",
	}}}
	_, err := e.Execute(context.Background(), p)
	require.Error(t, err)

	var qe *QueryExecutionError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, ClassRowLimit, qe.Class)
	assert.Equal(t, "all_rows", qe.QueryName)
	assert.False(t, qe.Retryable())
}

func TestExecute_SyntaxErrorClass(t *testing.T) {
	e := seededExecutor(t)

	_, err := e.ExecuteRaw(context.Background(), "SELEC nonsense")
	require.Error(t, err)

	var qe *QueryExecutionError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, ClassSyntax, qe.Class)
	assert.False(t, qe.Retryable())
}

func TestExecute_TimeoutClass(t *testing.T) {
	e := seededExecutor(t, WithTimeout(time.Nanosecond))

	_, err := e.ExecuteRaw(context.Background(), "SELECT SUM(revenue) FROM sales_fact")
	require.Error(t, err)

	var qe *QueryExecutionError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, ClassTimeout, qe.Class)
}

func TestOpen_ConnectionErrorClass(t *testing.T) {
	_, err := Open("sqlite3", "/no/such/dir/feed.db")
	require.Error(t, err)

	var qe *QueryExecutionError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, ClassConnection, qe.Class)
	assert.True(t, qe.Retryable())
}

func TestExecuteRaw_NormalizesBytes(t *testing.T) {
	e := seededExecutor(t)

	result, err := e.ExecuteRaw(context.Background(), "SELECT CAST('abc' AS BLOB) AS b")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "abc", result.Rows[0]["b"])
}

func TestScalarFloat(t *testing.T) {
	var nilResult *Result
	_, ok := nilResult.ScalarFloat("x")
	assert.False(t, ok)

	empty := &Result{Name: "empty"}
	_, ok = empty.ScalarFloat("x")
	assert.False(t, ok)

	r := &Result{Rows: []Row{{"v": int64(7), "s": "seven", "n": nil}}}
	got, ok := r.ScalarFloat("v")
	require.True(t, ok)
	assert.Equal(t, 7.0, got)

	_, ok = r.ScalarFloat("s")
	assert.False(t, ok, "non-numeric value")
	_, ok = r.ScalarFloat("n")
	assert.False(t, ok, "NULL value")
}

func TestFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(1.5), 1.5, true},
		{float32(2), 2, true},
		{int64(3), 3, true},
		{int(4), 4, true},
		{"5", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := Float(tt.in)
		assert.Equal(t, tt.ok, ok)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
