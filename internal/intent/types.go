// Package intent defines the structured intent: the parsed form of a
// business question that the pipeline accepts.
//
// Intents arrive from an external natural-language parser or from YAML files
// on the CLI surface. An intent is created per request and never mutated
// after validation.
package intent

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DetectionMode selects the detection algorithm.
type DetectionMode string

const (
	// ModeAbsolute compares current vs baseline against a percent threshold.
	ModeAbsolute DetectionMode = "absolute"
	// ModeAnomaly fits a time-series model and flags residual outliers.
	ModeAnomaly DetectionMode = "anomaly"
)

// BaselineType selects how the baseline period is derived.
type BaselineType string

const (
	BaselinePreviousPeriod BaselineType = "previous_period"
	BaselineLastYear       BaselineType = "last_year"
	BaselineCustom         BaselineType = "custom"
)

// Date is a calendar date (no time component). It marshals as "2006-01-02"
// in both YAML and JSON.
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month, day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "2006-01-02" date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON renders the date as a quoted "2006-01-02" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses a quoted "2006-01-02" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalYAML parses a "2006-01-02" scalar.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML renders the date as a "2006-01-02" scalar.
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// TimeRange is an inclusive date range [Start, End].
//
// SQL rendering uses half-open interval semantics: the predicate covers
// Start at midnight through the end of End (col >= Start AND col < End+1d).
type TimeRange struct {
	Start Date `json:"start" yaml:"start"`
	End   Date `json:"end" yaml:"end"`
}

// Days returns the number of calendar days the range covers.
func (r TimeRange) Days() int {
	return int(r.End.Sub(r.Start.Time).Hours()/24) + 1
}

// Contains reports whether the date falls inside the range.
func (r TimeRange) Contains(d Date) bool {
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// Overlaps reports whether two ranges share any day.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return !r.End.Before(other.Start.Time) && !other.End.Before(r.Start.Time)
}

// Valid reports whether Start <= End.
func (r TimeRange) Valid() bool {
	return !r.End.Before(r.Start.Time)
}

func (r TimeRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// FilterValues holds the one-or-many string values of a dimension filter.
// YAML accepts either a scalar or a sequence.
type FilterValues []string

// UnmarshalYAML accepts "Enterprise" and ["EMEA", "APAC"] alike.
func (f *FilterValues) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*f = values
		return nil
	}
	var single string
	if err := node.Decode(&single); err != nil {
		return err
	}
	*f = FilterValues{single}
	return nil
}

// Baseline configures the comparison period.
type Baseline struct {
	Type BaselineType `json:"type" yaml:"type"`

	// Start/End are only consulted for BaselineCustom.
	Start *Date `json:"start,omitempty" yaml:"start,omitempty"`
	End   *Date `json:"end,omitempty" yaml:"end,omitempty"`
}

// StructuredIntent is the parsed business question.
type StructuredIntent struct {
	// Metric names a measure declared by the business view.
	Metric string `json:"metric" yaml:"metric"`

	// TimeRange is the current analysis period, already absolute.
	TimeRange TimeRange `json:"time_range" yaml:"time_range"`

	// Filters map dimension names to one-or-many values, conjoined with AND.
	Filters map[string]FilterValues `json:"filters,omitempty" yaml:"filters,omitempty"`

	// Baseline is the optional comparison period.
	Baseline *Baseline `json:"baseline,omitempty" yaml:"baseline,omitempty"`

	// Mode selects absolute or anomaly detection. Defaults to absolute.
	Mode DetectionMode `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Threshold optionally overrides the configured significance threshold
	// (percent) for absolute mode.
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// HasBaseline reports whether a comparison period was requested.
func (s *StructuredIntent) HasBaseline() bool {
	return s.Baseline != nil
}

// FilterDimensions returns the filtered dimension names in a deterministic
// order: the order they appear in the given declaration list, then any
// remaining names sorted lexically (unknown names surface as errors later,
// but ordering must still be stable for rendering).
func (s *StructuredIntent) FilterDimensions(declared []string) []string {
	var ordered []string
	seen := make(map[string]bool, len(s.Filters))
	for _, name := range declared {
		if _, ok := s.Filters[name]; ok {
			ordered = append(ordered, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s.Filters {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// FromYAML decodes an intent from YAML bytes and applies defaults.
func FromYAML(data []byte) (*StructuredIntent, error) {
	var in StructuredIntent
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	if in.Mode == "" {
		in.Mode = ModeAbsolute
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Validate checks internal consistency: a well-formed time range, a known
// mode, and a non-overlapping custom baseline. Schema-level checks (metric
// and dimension existence) belong to the planner.
func (s *StructuredIntent) Validate() error {
	if s.Metric == "" {
		return &InvalidIntentError{Field: "metric", Reason: "metric is required"}
	}
	if !s.TimeRange.Valid() {
		return &InvalidIntentError{Field: "time_range", Reason: "start must not be after end"}
	}
	switch s.Mode {
	case ModeAbsolute, ModeAnomaly:
	default:
		return &InvalidIntentError{Field: "mode", Reason: fmt.Sprintf("unknown detection mode %q", s.Mode)}
	}
	if s.Baseline != nil {
		switch s.Baseline.Type {
		case BaselinePreviousPeriod, BaselineLastYear:
		case BaselineCustom:
			if s.Baseline.Start == nil || s.Baseline.End == nil {
				return &InvalidIntentError{Field: "baseline", Reason: "custom baseline requires explicit start and end"}
			}
			custom := TimeRange{Start: *s.Baseline.Start, End: *s.Baseline.End}
			if !custom.Valid() {
				return &InvalidIntentError{Field: "baseline", Reason: "baseline start must not be after end"}
			}
			if custom.Overlaps(s.TimeRange) {
				return &InvalidIntentError{Field: "baseline", Reason: "baseline range overlaps the current range"}
			}
		default:
			return &InvalidIntentError{Field: "baseline", Reason: fmt.Sprintf("unknown baseline type %q", s.Baseline.Type)}
		}
	}
	return nil
}

// InvalidIntentError reports a structurally invalid intent.
type InvalidIntentError struct {
	Field  string
	Reason string
}

func (e *InvalidIntentError) Error() string {
	return fmt.Sprintf("invalid intent: %s: %s", e.Field, e.Reason)
}
