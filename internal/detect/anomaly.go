package detect

import (
	"math"
	"sort"

	"github.com/driftline/driftline/internal/intent"
)

// AnomalyConfig bounds anomaly-mode detection.
type AnomalyConfig struct {
	// Sigma is the residual threshold as a multiple of the residual
	// standard deviation.
	Sigma float64

	// MinPoints is the minimum viable series length; shorter series fail
	// with InsufficientDataError instead of reporting "not triggered".
	MinPoints int
}

// Defaults for anomaly detection.
const (
	DefaultSigma     = 3.0
	DefaultMinPoints = 10
)

// DetectAnomalies fits an autoregressive model to the series and flags
// points whose residual exceeds the sigma threshold.
//
// Model fitting is CPU-bound and operates on the already-materialized
// series; the caller must not hold a data-source connection across this
// call. The verdict also carries current/baseline metrics over the series
// (last point vs fitted expectation) so downstream consumers see a delta
// even in anomaly mode.
func DetectAnomalies(series []Point, cfg AnomalyConfig) (Result, error) {
	if cfg.Sigma == 0 {
		cfg.Sigma = DefaultSigma
	}
	if cfg.MinPoints == 0 {
		cfg.MinPoints = DefaultMinPoints
	}
	if len(series) < cfg.MinPoints {
		return Result{}, &InsufficientDataError{Points: len(series), Minimum: cfg.MinPoints}
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}

	fit, ok := fitBest(values)
	if !ok {
		// A constant or degenerate series has nothing to flag.
		return Result{
			TriggerReason: "series is degenerate; no model could be fitted and no anomalies flagged",
			Mode:          intent.ModeAnomaly,
			Metrics:       seriesMetrics(values),
		}, nil
	}

	sigma := stddev(fit.residuals)
	threshold := cfg.Sigma * sigma

	var anomalies []AnomalyPoint
	if threshold > 0 {
		for k, resid := range fit.residuals {
			if math.Abs(resid) <= threshold {
				continue
			}
			idx := fit.offset + k
			anomalies = append(anomalies, AnomalyPoint{
				Date:     series[idx].Date,
				Value:    series[idx].Value,
				Expected: fit.fitted[k],
				Residual: resid,
				Severity: math.Min(math.Abs(resid)/threshold, 1.0),
			})
		}
	}
	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Severity > anomalies[j].Severity
	})

	result := Result{
		Mode:      intent.ModeAnomaly,
		Metrics:   seriesMetrics(values),
		Anomalies: anomalies,
	}
	if len(anomalies) > 0 {
		result.Triggered = true
		result.TriggerReason = reasonPrinter.Sprintf("%d anomalies exceed %v sigma over %d points",
			len(anomalies), cfg.Sigma, len(series))
	} else {
		result.TriggerReason = reasonPrinter.Sprintf("no residual exceeds %v sigma over %d points",
			cfg.Sigma, len(series))
	}
	return result, nil
}

// seriesMetrics summarizes a series as current (last point) against a
// baseline of the preceding mean, so anomaly verdicts still expose a
// delta for attribution.
func seriesMetrics(values []float64) Metrics {
	n := len(values)
	current := values[n-1]
	baseline := 0.0
	if n > 1 {
		for _, v := range values[:n-1] {
			baseline += v
		}
		baseline /= float64(n - 1)
	}
	m := Metrics{Current: current, Baseline: baseline, Delta: current - baseline}
	if baseline != 0 {
		m.PercentChange = m.Delta / baseline * 100
		m.HasPercentChange = true
	}
	return m
}
