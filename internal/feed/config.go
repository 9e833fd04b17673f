package feed

import (
	"os"
	"strconv"
	"time"

	"github.com/driftline/driftline/internal/detect"
	"github.com/driftline/driftline/internal/executor"
	"github.com/driftline/driftline/internal/insight"
)

// Config bounds one pipeline's behavior. Zero values mean defaults.
type Config struct {
	// QueryTimeout and MaxRows bound each executed query.
	QueryTimeout time.Duration
	MaxRows      int

	// ThresholdPercent is the absolute-mode significance threshold;
	// DeltaThreshold applies when the baseline is zero.
	ThresholdPercent float64
	DeltaThreshold   float64

	// Sigma and MinSeriesLength bound anomaly mode.
	Sigma           float64
	MinSeriesLength int

	// TopDrivers and MinContribution bound attribution.
	TopDrivers      int
	MinContribution float64
}

// DefaultConfig returns the stock bounds.
func DefaultConfig() Config {
	return Config{
		QueryTimeout:     executor.DefaultTimeout,
		MaxRows:          executor.DefaultMaxRows,
		ThresholdPercent: detect.DefaultThresholdPercent,
		Sigma:            detect.DefaultSigma,
		MinSeriesLength:  detect.DefaultMinPoints,
		TopDrivers:       insight.DefaultTopDrivers,
		MinContribution:  insight.DefaultMinContribution,
	}
}

// ConfigFromEnv starts from the defaults and applies DRIFTLINE_* overrides.
// Malformed values are ignored; configuration problems should not take
// the pipeline down.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if d, ok := envDuration("DRIFTLINE_QUERY_TIMEOUT"); ok {
		cfg.QueryTimeout = d
	}
	if n, ok := envInt("DRIFTLINE_MAX_ROWS"); ok {
		cfg.MaxRows = n
	}
	if f, ok := envFloat("DRIFTLINE_THRESHOLD_PERCENT"); ok {
		cfg.ThresholdPercent = f
	}
	if f, ok := envFloat("DRIFTLINE_DELTA_THRESHOLD"); ok {
		cfg.DeltaThreshold = f
	}
	if f, ok := envFloat("DRIFTLINE_SIGMA"); ok {
		cfg.Sigma = f
	}
	if n, ok := envInt("DRIFTLINE_MIN_SERIES_LENGTH"); ok {
		cfg.MinSeriesLength = n
	}
	if n, ok := envInt("DRIFTLINE_TOP_DRIVERS"); ok {
		cfg.TopDrivers = n
	}
	if f, ok := envFloat("DRIFTLINE_MIN_CONTRIBUTION"); ok {
		cfg.MinContribution = f
	}
	return cfg
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Option adjusts a pipeline at construction.
type Option func(*Pipeline)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithTokenGenerator replaces the request token source. Tests use
// FixedGenerator for stable report output.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(p *Pipeline) { p.tokens = g }
}
