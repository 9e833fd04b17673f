package schema

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/bv"
)

// Context holds the compiled lookup structures for one business view.
// Immutable after Build.
type Context struct {
	view *bv.BusinessView

	// allowed is the fully-qualified column whitelist (table.column).
	allowed map[string]bool

	// tables is the arena of table descriptors; tableIndex maps names
	// into it. adjacency[i] lists the join edges leaving table i, in
	// declaration order.
	tables     []string
	tableIndex map[string]int
	adjacency  [][]edge

	// measureTable maps measure name to its owning table.
	measureTable map[string]string
}

// edge is one traversable direction of a declared join.
type edge struct {
	to        int
	join      bv.Join
	reversed  bool // true when traversing right→left
	declOrder int  // declaration index for deterministic tie-breaks
}

// JoinStep is one rendered step of a join path: the declared join plus the
// table the step newly connects.
type JoinStep struct {
	Join bv.Join
	// From is the already-connected side, To the newly joined table.
	From string
	To   string
}

// Build compiles a business view into a Context.
//
// Fails with ConfigurationError when a measure or dimension references a
// table or column the view does not declare, or when a join references
// unknown tables or keys.
func Build(view *bv.BusinessView) (*Context, error) {
	if len(view.Tables) == 0 {
		return nil, &ConfigurationError{Message: "view declares no tables"}
	}

	ctx := &Context{
		view:         view,
		allowed:      make(map[string]bool),
		tableIndex:   make(map[string]int, len(view.Tables)),
		measureTable: make(map[string]string, len(view.Measures)),
	}

	for _, table := range view.Tables {
		if _, dup := ctx.tableIndex[table.Name]; dup {
			return nil, &ConfigurationError{Element: table.Name, Message: "duplicate table"}
		}
		ctx.tableIndex[table.Name] = len(ctx.tables)
		ctx.tables = append(ctx.tables, table.Name)
		for _, col := range table.Columns {
			ctx.allowed[table.Name+"."+col.Name] = true
		}
	}
	ctx.adjacency = make([][]edge, len(ctx.tables))

	for i, join := range view.Joins {
		label := fmt.Sprintf("join %s->%s", join.LeftTable, join.RightTable)
		left, ok := ctx.tableIndex[join.LeftTable]
		if !ok {
			return nil, &ConfigurationError{Element: label, Message: fmt.Sprintf("unknown table %q", join.LeftTable)}
		}
		right, ok := ctx.tableIndex[join.RightTable]
		if !ok {
			return nil, &ConfigurationError{Element: label, Message: fmt.Sprintf("unknown table %q", join.RightTable)}
		}
		if !view.HasColumn(join.LeftTable, join.LeftKey) {
			return nil, &ConfigurationError{Element: label, Message: fmt.Sprintf("unknown join key %s.%s", join.LeftTable, join.LeftKey)}
		}
		if !view.HasColumn(join.RightTable, join.RightKey) {
			return nil, &ConfigurationError{Element: label, Message: fmt.Sprintf("unknown join key %s.%s", join.RightTable, join.RightKey)}
		}
		ctx.adjacency[left] = append(ctx.adjacency[left], edge{to: right, join: join, declOrder: i})
		ctx.adjacency[right] = append(ctx.adjacency[right], edge{to: left, join: join, reversed: true, declOrder: i})
	}

	for _, measure := range view.Measures {
		base := measure.BaseColumn()
		table, err := tableOfColumn(view, base)
		if err != nil {
			return nil, &ConfigurationError{Element: "measure " + measure.Name, Message: err.Error()}
		}
		ctx.measureTable[measure.Name] = table
	}

	for _, dim := range view.Dimensions {
		if !view.HasColumn(dim.Table, dim.Column) {
			return nil, &ConfigurationError{
				Element: "dimension " + dim.Name,
				Message: fmt.Sprintf("unknown column %s.%s", dim.Table, dim.Column),
			}
		}
	}

	td := view.TimeDimension
	if !view.HasColumn(td.Table, td.Column) {
		return nil, &ConfigurationError{
			Element: "time dimension",
			Message: fmt.Sprintf("unknown column %s.%s", td.Table, td.Column),
		}
	}

	return ctx, nil
}

// tableOfColumn resolves which table owns a column reference. A qualified
// "table.column" reference is checked directly; a bare column name is
// searched across all tables in declaration order.
func tableOfColumn(view *bv.BusinessView, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty column reference")
	}
	if table, column, ok := strings.Cut(ref, "."); ok {
		if !view.HasColumn(table, column) {
			return "", fmt.Errorf("unknown column %s.%s", table, column)
		}
		return table, nil
	}
	for _, table := range view.Tables {
		for _, col := range table.Columns {
			if col.Name == ref {
				return table.Name, nil
			}
		}
	}
	return "", fmt.Errorf("column %q not declared by any table", ref)
}

// View returns the business view this context was built from.
func (c *Context) View() *bv.BusinessView { return c.view }

// AllowsColumn reports whether table.column is on the whitelist.
func (c *Context) AllowsColumn(ref string) bool { return c.allowed[ref] }

// AllowedColumns returns a copy of the whitelist.
func (c *Context) AllowedColumns() map[string]bool {
	out := make(map[string]bool, len(c.allowed))
	for ref := range c.allowed {
		out[ref] = true
	}
	return out
}

// Calendar returns the view's calendar rules.
func (c *Context) Calendar() bv.CalendarRules { return c.view.Calendar }

// ResolveTableForMeasure returns the table owning the measure's base column.
func (c *Context) ResolveTableForMeasure(name string) (string, error) {
	table, ok := c.measureTable[name]
	if !ok {
		return "", &NotFoundError{Kind: "measure", Name: name}
	}
	return table, nil
}

// FindJoinPath returns the ordered joins connecting root to every table in
// required, following shortest paths through the join graph. Ties between
// equally short paths break by join declaration order, so the result is
// deterministic for a given view.
//
// Fails with UnreachableJoinError when a required table is disconnected
// from root.
func (c *Context) FindJoinPath(root string, required []string) ([]JoinStep, error) {
	rootIdx, ok := c.tableIndex[root]
	if !ok {
		return nil, &NotFoundError{Kind: "table", Name: root}
	}

	need := make(map[int]bool, len(required))
	for _, name := range required {
		idx, ok := c.tableIndex[name]
		if !ok {
			return nil, &NotFoundError{Kind: "table", Name: name}
		}
		if idx != rootIdx {
			need[idx] = true
		}
	}
	if len(need) == 0 {
		return nil, nil
	}

	// BFS from root. Neighbors are visited in declaration order, so the
	// first path found to any table is both shortest and deterministic.
	parent := make(map[int]edge, len(c.tables))
	visited := make([]bool, len(c.tables))
	visited[rootIdx] = true
	queue := []int{rootIdx}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range c.adjacency[cur] {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			parent[e.to] = edge{to: cur, join: e.join, reversed: e.reversed, declOrder: e.declOrder}
			queue = append(queue, e.to)
		}
	}

	// Collect the union of root→table paths, nearest tables first. Steps
	// are emitted walking back from each required table, deduplicated.
	included := map[int]bool{rootIdx: true}
	var steps []JoinStep
	for _, name := range required {
		idx := c.tableIndex[name]
		if idx == rootIdx {
			continue
		}
		if !visited[idx] {
			return nil, &UnreachableJoinError{Root: root, Table: name}
		}
		var chain []JoinStep
		for at := idx; !included[at]; {
			p := parent[at]
			from, to := p.join.LeftTable, p.join.RightTable
			if p.reversed {
				from, to = to, from
			}
			chain = append(chain, JoinStep{Join: p.join, From: from, To: to})
			included[at] = true
			at = p.to
		}
		// chain was built leaf-up; append root-down.
		for i := len(chain) - 1; i >= 0; i-- {
			steps = append(steps, chain[i])
		}
	}
	return steps, nil
}
