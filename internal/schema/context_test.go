package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/bv"
	"github.com/driftline/driftline/internal/testutil"
)

func TestBuild_SalesView(t *testing.T) {
	ctx, err := Build(testutil.SalesView())
	require.NoError(t, err)

	assert.True(t, ctx.AllowsColumn("sales_fact.revenue"))
	assert.True(t, ctx.AllowsColumn("customers.segment"))
	assert.False(t, ctx.AllowsColumn("customers.password"))
	assert.False(t, ctx.AllowsColumn("secrets.key"))

	table, err := ctx.ResolveTableForMeasure("total_revenue")
	require.NoError(t, err)
	assert.Equal(t, "sales_fact", table)

	_, err = ctx.ResolveTableForMeasure("profit")
	assert.True(t, IsNotFound(err))
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*bv.BusinessView)
	}{
		{
			name:   "no tables",
			mutate: func(v *bv.BusinessView) { v.Tables = nil },
		},
		{
			name: "duplicate table",
			mutate: func(v *bv.BusinessView) {
				v.Tables = append(v.Tables, v.Tables[0])
			},
		},
		{
			name: "join references unknown table",
			mutate: func(v *bv.BusinessView) {
				v.Joins[0].RightTable = "ghosts"
			},
		},
		{
			name: "join references unknown key",
			mutate: func(v *bv.BusinessView) {
				v.Joins[0].LeftKey = "ghost_id"
			},
		},
		{
			name: "measure references unknown column",
			mutate: func(v *bv.BusinessView) {
				v.Measures[0].Expression = "SUM(sales_fact.profit)"
			},
		},
		{
			name: "dimension references unknown column",
			mutate: func(v *bv.BusinessView) {
				v.Dimensions[0].Column = "tier"
			},
		},
		{
			name: "time dimension references unknown column",
			mutate: func(v *bv.BusinessView) {
				v.TimeDimension.Column = "created_at"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := testutil.SalesView()
			tt.mutate(view)
			_, err := Build(view)
			require.Error(t, err)
			assert.True(t, IsConfiguration(err), "want ConfigurationError, got %T", err)
		})
	}
}

func TestFindJoinPath_Direct(t *testing.T) {
	ctx, err := Build(testutil.SalesView())
	require.NoError(t, err)

	steps, err := ctx.FindJoinPath("sales_fact", []string{"sales_fact", "customers"})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "sales_fact", steps[0].From)
	assert.Equal(t, "customers", steps[0].To)
}

func TestFindJoinPath_RootOnly(t *testing.T) {
	ctx, err := Build(testutil.SalesView())
	require.NoError(t, err)

	steps, err := ctx.FindJoinPath("sales_fact", []string{"sales_fact"})
	require.NoError(t, err)
	assert.Empty(t, steps)
}

// diamondView declares two equally short paths from a to d. The path
// through b must win because its joins are declared first.
func diamondView() *bv.BusinessView {
	table := func(name string) bv.Table {
		return bv.Table{Name: name, Columns: []bv.Column{
			{Name: "id", Type: bv.TypeInteger},
			{Name: "ref", Type: bv.TypeInteger},
			{Name: "amount", Type: bv.TypeFloat},
			{Name: "day", Type: bv.TypeDate},
		}}
	}
	return &bv.BusinessView{
		Name:   "diamond",
		Tables: []bv.Table{table("a"), table("b"), table("c"), table("d")},
		Joins: []bv.Join{
			{LeftTable: "a", LeftKey: "ref", RightTable: "b", RightKey: "id", Type: bv.JoinInner},
			{LeftTable: "a", LeftKey: "ref", RightTable: "c", RightKey: "id", Type: bv.JoinInner},
			{LeftTable: "b", LeftKey: "ref", RightTable: "d", RightKey: "id", Type: bv.JoinInner},
			{LeftTable: "c", LeftKey: "ref", RightTable: "d", RightKey: "id", Type: bv.JoinInner},
		},
		Measures:      []bv.Measure{{Name: "total", Expression: "SUM(a.amount)"}},
		Dimensions:    []bv.Dimension{{Name: "d_id", Table: "d", Column: "id"}},
		TimeDimension: bv.TimeDimension{Table: "a", Column: "day"},
		Calendar:      bv.DefaultCalendar(),
	}
}

func TestFindJoinPath_TieBreaksByDeclarationOrder(t *testing.T) {
	ctx, err := Build(diamondView())
	require.NoError(t, err)

	steps, err := ctx.FindJoinPath("a", []string{"a", "d"})
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "b", steps[0].To)
	assert.Equal(t, "d", steps[1].To)

	// Repeated resolution yields the identical path.
	again, err := ctx.FindJoinPath("a", []string{"a", "d"})
	require.NoError(t, err)
	assert.Equal(t, steps, again)
}

func TestFindJoinPath_ReverseTraversal(t *testing.T) {
	ctx, err := Build(testutil.SalesView())
	require.NoError(t, err)

	// The join is declared sales_fact->customers; pathing from customers
	// must traverse it in reverse.
	steps, err := ctx.FindJoinPath("customers", []string{"customers", "sales_fact"})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "customers", steps[0].From)
	assert.Equal(t, "sales_fact", steps[0].To)
}

func TestFindJoinPath_Unreachable(t *testing.T) {
	view := testutil.SalesView()
	view.Tables = append(view.Tables, bv.Table{
		Name:    "islands",
		Columns: []bv.Column{{Name: "id", Type: bv.TypeInteger}},
	})
	ctx, err := Build(view)
	require.NoError(t, err)

	_, err = ctx.FindJoinPath("sales_fact", []string{"sales_fact", "islands"})
	require.Error(t, err)
	var ue *UnreachableJoinError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "islands", ue.Table)
	assert.Equal(t, "sales_fact", ue.Root)
}

func TestFindJoinPath_UnknownTable(t *testing.T) {
	ctx, err := Build(testutil.SalesView())
	require.NoError(t, err)

	_, err = ctx.FindJoinPath("sales_fact", []string{"sales_fact", "ghosts"})
	assert.True(t, IsNotFound(err))
}
