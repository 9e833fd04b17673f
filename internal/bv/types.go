package bv

import "strings"

// ColumnType enumerates the data types a column can declare.
type ColumnType string

const (
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeString    ColumnType = "string"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
	TypeBoolean   ColumnType = "boolean"
)

// JoinType enumerates the supported SQL join types.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
)

// WeekStart enumerates the supported week start days.
type WeekStart string

const (
	WeekStartMonday WeekStart = "monday"
	WeekStartSunday WeekStart = "sunday"
)

// Column describes one physical column of a table.
type Column struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Description string     `json:"description,omitempty"`
}

// Table describes one physical table and its columns.
type Table struct {
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	Description string   `json:"description,omitempty"`
}

// Join declares a join relationship between two tables.
//
// Joins are traversed in both directions when resolving a join path; the
// declared direction only fixes which side is rendered on the left of the
// ON condition.
type Join struct {
	LeftTable  string   `json:"left_table"`
	RightTable string   `json:"right_table"`
	LeftKey    string   `json:"left_key"`
	RightKey   string   `json:"right_key"`
	Type       JoinType `json:"type"`
}

// Measure declares a named aggregate expression, e.g.
//
//	Measure{Name: "Revenue", Expression: "SUM(sales_fact.revenue)"}
//
// The expression is the exact SQL fragment rendered into the SELECT list.
type Measure struct {
	Name        string `json:"name"`
	Expression  string `json:"expression"`
	Format      string `json:"format,omitempty"` // "number", "currency", "percentage"
	Description string `json:"description,omitempty"`
}

// BaseColumn extracts the innermost column reference from the aggregate
// expression. "SUM(sales_fact.revenue)" yields "sales_fact.revenue";
// "COUNT(DISTINCT orders.user_id)" yields "orders.user_id".
func (m Measure) BaseColumn() string {
	open := strings.IndexByte(m.Expression, '(')
	close := strings.LastIndexByte(m.Expression, ')')
	if open < 0 || close < open {
		return strings.TrimSpace(m.Expression)
	}
	inner := strings.TrimSpace(m.Expression[open+1 : close])
	parts := strings.Fields(inner)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Aggregation extracts the aggregate function name from the expression.
// Defaults to SUM when the expression carries no function call.
func (m Measure) Aggregation() string {
	open := strings.IndexByte(m.Expression, '(')
	if open < 0 {
		return "SUM"
	}
	return strings.ToUpper(strings.TrimSpace(m.Expression[:open]))
}

// Dimension declares a named dimension backed by a single column.
type Dimension struct {
	Name        string `json:"name"`
	Table       string `json:"table"`
	Column      string `json:"column"`
	Description string `json:"description,omitempty"`
}

// ColumnRef returns the fully qualified table.column reference.
func (d Dimension) ColumnRef() string {
	return d.Table + "." + d.Column
}

// TimeDimension declares the column that carries the time axis.
type TimeDimension struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Granularity string `json:"granularity,omitempty"` // "day" (default), "week", "month"
}

// ColumnRef returns the fully qualified table.column reference.
func (t TimeDimension) ColumnRef() string {
	return t.Table + "." + t.Column
}

// CalendarRules govern baseline date arithmetic.
type CalendarRules struct {
	// FiscalYearStart is the month (1-12) the fiscal year begins in.
	// 1 means calendar year.
	FiscalYearStart int `json:"fiscal_year_start"`

	// WeekStart is the first day of the week.
	WeekStart WeekStart `json:"week_start"`
}

// DefaultCalendar returns calendar rules for a plain calendar year with
// weeks starting Monday.
func DefaultCalendar() CalendarRules {
	return CalendarRules{FiscalYearStart: 1, WeekStart: WeekStartMonday}
}

// IsFiscal reports whether the view uses a fiscal year offset from the
// calendar year.
func (c CalendarRules) IsFiscal() bool {
	return c.FiscalYearStart > 1
}

// BusinessView is the root schema object. Immutable once loaded.
type BusinessView struct {
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Tables        []Table       `json:"tables"`
	Joins         []Join        `json:"joins"`
	Measures      []Measure     `json:"measures"`
	Dimensions    []Dimension   `json:"dimensions"`
	TimeDimension TimeDimension `json:"time_dimension"`
	Calendar      CalendarRules `json:"calendar"`
}

// Table returns the table with the given name, or nil.
func (v *BusinessView) Table(name string) *Table {
	for i := range v.Tables {
		if v.Tables[i].Name == name {
			return &v.Tables[i]
		}
	}
	return nil
}

// Measure returns the measure with the given name, or nil.
func (v *BusinessView) Measure(name string) *Measure {
	for i := range v.Measures {
		if v.Measures[i].Name == name {
			return &v.Measures[i]
		}
	}
	return nil
}

// Dimension returns the dimension with the given name, or nil.
func (v *BusinessView) Dimension(name string) *Dimension {
	for i := range v.Dimensions {
		if v.Dimensions[i].Name == name {
			return &v.Dimensions[i]
		}
	}
	return nil
}

// HasColumn reports whether table.column exists in the view.
func (v *BusinessView) HasColumn(table, column string) bool {
	t := v.Table(table)
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c.Name == column {
			return true
		}
	}
	return false
}
