// Package insight attributes a detected metric change to dimensional
// segments via contribution-shift analysis.
//
// It runs only after the detection engine has triggered: computing drivers
// for an insignificant change is wasted work and feeds alert fatigue. A
// diffuse change that the top drivers cannot account for surfaces as a low
// explainability score rather than being hidden.
package insight

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/driftline/driftline/internal/executor"
)

// Driver directions.
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
)

// Defaults for attribution.
const (
	DefaultTopDrivers      = 10
	DefaultMinContribution = 0.01
)

// Driver is one ranked segment of the change.
type Driver struct {
	// Dimension names the breakdown dimension(s); multi-dimension
	// breakdowns join names with " / ".
	Dimension string `json:"dimension"`
	// Member is the segment's value(s), joined the same way.
	Member string `json:"member"`

	// Impact is the driver's share of the change in metric units:
	// contribution shift x current total.
	Impact float64 `json:"impact"`

	// Contributions are fractions of the period total in [0, 1].
	ContributionCurrent  float64 `json:"contribution_current"`
	ContributionBaseline float64 `json:"contribution_baseline"`
	Shift                float64 `json:"shift"`

	ValueCurrent  float64 `json:"value_current"`
	ValueBaseline float64 `json:"value_baseline"`

	Direction string `json:"direction"`
}

// Insight is the ranked attribution of a detected change.
type Insight struct {
	Drivers []Driver `json:"drivers"`

	// ExplainabilityScore is 0-100: the share of |delta| the reported
	// drivers cover. Low coverage means a diffuse change.
	ExplainabilityScore float64 `json:"explainability_score"`

	TotalCurrent  float64 `json:"total_current"`
	TotalBaseline float64 `json:"total_baseline"`
	TotalChange   float64 `json:"total_change"`
}

// Config bounds attribution.
type Config struct {
	// TopN limits the ranked driver list.
	TopN int

	// MinContribution drops segments whose share is below this fraction
	// in both periods before ranking.
	MinContribution float64
}

// segment accumulates one dimension-value combination across both periods.
type segment struct {
	member        string
	valueCurrent  float64
	valueBaseline float64
}

// Analyze computes contribution-shift attribution from the current and
// baseline breakdown result sets. dims lists the breakdown dimension names
// in declaration order; rows are matched on the combination of their
// values. delta is the detected change the explainability score is
// measured against.
//
// For each segment r:
//
//	contributionCurrent(r)  = value(r) / sum(current)
//	contributionBaseline(r) = baselineValue(r) / sum(baseline), 0 if new
//	shift(r)  = contributionCurrent(r) - contributionBaseline(r)
//	impact(r) = shift(r) x sum(current)
//
// Segments rank by |impact| descending; ties keep encounter order, which
// follows the breakdown queries' deterministic row order.
func Analyze(current, baseline *executor.Result, dims []string, delta float64, cfg Config) (*Insight, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("attribution needs at least one breakdown dimension")
	}
	if cfg.TopN == 0 {
		cfg.TopN = DefaultTopDrivers
	}
	if cfg.MinContribution == 0 {
		cfg.MinContribution = DefaultMinContribution
	}

	segments, order := collect(current, baseline, dims)

	var totalCurrent, totalBaseline float64
	for _, key := range order {
		totalCurrent += segments[key].valueCurrent
		totalBaseline += segments[key].valueBaseline
	}

	var drivers []Driver
	dimension := strings.Join(dims, " / ")
	for _, key := range order {
		seg := segments[key]

		var contribCurrent, contribBaseline float64
		if totalCurrent != 0 {
			contribCurrent = seg.valueCurrent / totalCurrent
		}
		if totalBaseline != 0 {
			contribBaseline = seg.valueBaseline / totalBaseline
		}
		if math.Abs(contribCurrent) < cfg.MinContribution &&
			math.Abs(contribBaseline) < cfg.MinContribution {
			continue
		}

		shift := contribCurrent - contribBaseline
		impact := shift * totalCurrent
		direction := DirectionIncrease
		if impact < 0 {
			direction = DirectionDecrease
		}

		drivers = append(drivers, Driver{
			Dimension:            dimension,
			Member:               seg.member,
			Impact:               impact,
			ContributionCurrent:  contribCurrent,
			ContributionBaseline: contribBaseline,
			Shift:                shift,
			ValueCurrent:         seg.valueCurrent,
			ValueBaseline:        seg.valueBaseline,
			Direction:            direction,
		})
	}

	sort.SliceStable(drivers, func(i, j int) bool {
		return math.Abs(drivers[i].Impact) > math.Abs(drivers[j].Impact)
	})
	if len(drivers) > cfg.TopN {
		drivers = drivers[:cfg.TopN]
	}

	result := &Insight{
		Drivers:             drivers,
		ExplainabilityScore: explainability(drivers, delta),
		TotalCurrent:        totalCurrent,
		TotalBaseline:       totalBaseline,
		TotalChange:         totalCurrent - totalBaseline,
	}

	slog.Info("contribution-shift attribution computed",
		"segments", len(order),
		"drivers", len(drivers),
		"explainability", result.ExplainabilityScore)

	return result, nil
}

// collect merges current and baseline rows into segments keyed by their
// dimension-value combination. Current rows keep their query order;
// baseline-only segments (vanished in the current period) follow in
// baseline order.
func collect(current, baseline *executor.Result, dims []string) (map[string]*segment, []string) {
	segments := make(map[string]*segment)
	var order []string

	add := func(result *executor.Result, isBaseline bool) {
		if result == nil {
			return
		}
		for _, row := range result.Rows {
			key, member := segmentKey(row, dims)
			seg, ok := segments[key]
			if !ok {
				seg = &segment{member: member}
				segments[key] = seg
				order = append(order, key)
			}
			value, _ := executor.Float(row["metric_value"])
			if isBaseline {
				seg.valueBaseline = value
			} else {
				seg.valueCurrent = value
			}
		}
	}
	add(current, false)
	add(baseline, true)

	return segments, order
}

// segmentKey joins the row's dimension values into a stable key and a
// display member string.
func segmentKey(row executor.Row, dims []string) (key, member string) {
	parts := make([]string, len(dims))
	for i, dim := range dims {
		parts[i] = fmt.Sprint(row[dim])
	}
	return strings.Join(parts, "\x1f"), strings.Join(parts, " / ")
}

// explainability scales coverage to 0-100: the sum of |impact| over the
// reported drivers divided by |delta|, clamped to [0, 1]. A zero delta
// cannot be attributed and scores 0.
func explainability(drivers []Driver, delta float64) float64 {
	if delta == 0 {
		return 0
	}
	covered := 0.0
	for _, d := range drivers {
		covered += math.Abs(d.Impact)
	}
	coverage := covered / math.Abs(delta)
	if coverage > 1 {
		coverage = 1
	}
	return coverage * 100
}
