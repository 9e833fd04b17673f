package plan

import (
	"errors"
	"fmt"
)

// Canonical query names. Consumers key result sets by these.
const (
	QueryCurrentPeriod     = "current_period"
	QueryBaselinePeriod    = "baseline_period"
	QueryTimeseries        = "timeseries"
	QueryBreakdown         = "breakdown"
	QueryBaselineBreakdown = "baseline_breakdown"
)

// NamedQuery is one rendered SQL statement with its pipeline role.
type NamedQuery struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// Metadata describes the plan without gating any control flow.
type Metadata struct {
	// ComplexityScore is a 1-10 heuristic: +2 per joined table beyond the
	// first, +1 per filter, +2 for a time-series query, +1 for a baseline.
	ComplexityScore int  `json:"complexity_score"`
	UsesJoins       bool `json:"uses_joins"`
	UsesAggregation bool `json:"uses_aggregation"`
}

// Plan is the ordered set of named queries for one request.
// Discarded after execution.
type Plan struct {
	Queries  []NamedQuery `json:"queries"`
	Metadata Metadata     `json:"metadata"`
}

// Query returns the SQL for a named query, if present.
func (p *Plan) Query(name string) (string, bool) {
	for _, q := range p.Queries {
		if q.Name == name {
			return q.SQL, true
		}
	}
	return "", false
}

// Has reports whether the plan contains the named query.
func (p *Plan) Has(name string) bool {
	_, ok := p.Query(name)
	return ok
}

// InvalidDimensionError reports a filter or breakdown dimension the
// business view does not declare. Rejected per-request, never retried.
type InvalidDimensionError struct {
	Dimension string
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("dimension %q not found in business view", e.Dimension)
}

// IsInvalidDimension reports whether err is an InvalidDimensionError.
func IsInvalidDimension(err error) bool {
	var ide *InvalidDimensionError
	return errors.As(err, &ide)
}
