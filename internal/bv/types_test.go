package bv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeasure_BaseColumn(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       string
	}{
		{"simple sum", "SUM(sales_fact.revenue)", "sales_fact.revenue"},
		{"count distinct", "COUNT(DISTINCT orders.user_id)", "orders.user_id"},
		{"bare column", "sales_fact.revenue", "sales_fact.revenue"},
		{"padded", "AVG( sales_fact.margin )", "sales_fact.margin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Measure{Name: "m", Expression: tt.expression}
			assert.Equal(t, tt.want, m.BaseColumn())
		})
	}
}

func TestMeasure_Aggregation(t *testing.T) {
	assert.Equal(t, "SUM", Measure{Expression: "SUM(t.x)"}.Aggregation())
	assert.Equal(t, "COUNT", Measure{Expression: "count(t.x)"}.Aggregation())
	assert.Equal(t, "SUM", Measure{Expression: "t.x"}.Aggregation())
}

func TestBusinessView_Lookups(t *testing.T) {
	view := &BusinessView{
		Tables: []Table{
			{Name: "t1", Columns: []Column{{Name: "a"}, {Name: "b"}}},
		},
		Measures:   []Measure{{Name: "m1", Expression: "SUM(t1.a)"}},
		Dimensions: []Dimension{{Name: "d1", Table: "t1", Column: "b"}},
	}

	assert.NotNil(t, view.Table("t1"))
	assert.Nil(t, view.Table("t2"))
	assert.NotNil(t, view.Measure("m1"))
	assert.Nil(t, view.Measure("m2"))
	assert.NotNil(t, view.Dimension("d1"))
	assert.Nil(t, view.Dimension("d2"))
	assert.True(t, view.HasColumn("t1", "a"))
	assert.False(t, view.HasColumn("t1", "c"))
	assert.False(t, view.HasColumn("t2", "a"))
}
