package detect

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/driftline/driftline/internal/intent"
)

// AbsoluteConfig bounds absolute-mode detection.
type AbsoluteConfig struct {
	// ThresholdPercent triggers when |percentChange| crosses it.
	ThresholdPercent float64

	// DeltaThreshold applies when the baseline is zero or undefined:
	// any |delta| at or above it triggers. The zero default means any
	// non-zero change against a zero baseline triggers, because a
	// division-by-zero signals maximal change, not absent change.
	DeltaThreshold float64
}

// DefaultThresholdPercent is the significance threshold when no override
// is configured.
const DefaultThresholdPercent = 5.0

var reasonPrinter = message.NewPrinter(language.English)

// DetectAbsolute compares current against baseline and produces the
// threshold verdict.
//
// When the baseline is non-zero, percentChange = delta/baseline x 100 and
// the percent threshold decides. When the baseline is exactly zero, the
// percent change is undefined and the delta threshold decides instead; a
// zero baseline with a non-zero current always triggers under the default
// configuration.
func DetectAbsolute(current, baseline float64, cfg AbsoluteConfig) Result {
	if cfg.ThresholdPercent == 0 {
		cfg.ThresholdPercent = DefaultThresholdPercent
	}

	delta := current - baseline
	m := Metrics{Current: current, Baseline: baseline, Delta: delta}

	if baseline != 0 {
		m.PercentChange = delta / baseline * 100
		m.HasPercentChange = true

		if math.Abs(m.PercentChange) >= cfg.ThresholdPercent {
			return Result{
				Triggered: true,
				TriggerReason: reasonPrinter.Sprintf("percent change %.2f%% crossed the %v%% threshold",
					m.PercentChange, cfg.ThresholdPercent),
				Mode:    intent.ModeAbsolute,
				Metrics: m,
			}
		}
		return Result{
			TriggerReason: reasonPrinter.Sprintf("percent change %.2f%% is within the %v%% threshold",
				m.PercentChange, cfg.ThresholdPercent),
			Mode:    intent.ModeAbsolute,
			Metrics: m,
		}
	}

	// Zero baseline: percent change is undefined, not zero.
	if delta != 0 && math.Abs(delta) >= cfg.DeltaThreshold {
		return Result{
			Triggered: true,
			TriggerReason: reasonPrinter.Sprintf("baseline is zero; absolute change %.2f crossed the %.2f delta threshold",
				delta, cfg.DeltaThreshold),
			Mode:    intent.ModeAbsolute,
			Metrics: m,
		}
	}
	return Result{
		TriggerReason: reasonPrinter.Sprintf("baseline is zero and absolute change %.2f is within the %.2f delta threshold",
			delta, cfg.DeltaThreshold),
		Mode:    intent.ModeAbsolute,
		Metrics: m,
	}
}
