// Package detect decides whether a metric change is significant.
//
// Two independent modes share one result shape. Absolute mode compares the
// current aggregate against a baseline with a percent threshold; anomaly
// mode fits an autoregressive model to the period's time series and flags
// residual outliers. Each request produces exactly one deterministic
// verdict from its inputs; a processing failure is an error, never a quiet
// "not triggered".
package detect

import (
	"errors"
	"fmt"

	"github.com/driftline/driftline/internal/intent"
)

// Metrics carries the headline numbers of a detection verdict.
type Metrics struct {
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
	Delta    float64 `json:"delta"`

	// PercentChange is only meaningful when HasPercentChange is true;
	// a zero baseline leaves it undefined rather than infinite.
	PercentChange    float64 `json:"percent_change"`
	HasPercentChange bool    `json:"has_percent_change"`
}

// AnomalyPoint is one flagged point of the time series.
type AnomalyPoint struct {
	Date     intent.Date `json:"date"`
	Value    float64     `json:"value"`
	Expected float64     `json:"expected"`
	Residual float64     `json:"residual"`
	// Severity scales 0-1: how far past the residual threshold the
	// point lies, capped at 1.
	Severity float64 `json:"severity"`
}

// Result is the verdict of either detection mode.
type Result struct {
	Triggered     bool                 `json:"triggered"`
	TriggerReason string               `json:"trigger_reason"`
	Mode          intent.DetectionMode `json:"mode"`
	Metrics       Metrics              `json:"metrics"`
	Anomalies     []AnomalyPoint       `json:"anomalies,omitempty"`
}

// Point is one observation of the time series fed to anomaly mode.
type Point struct {
	Date  intent.Date `json:"date"`
	Value float64     `json:"value"`
}

// InsufficientDataError reports a series too short for anomaly detection.
// Non-retryable; the caller should suggest falling back to absolute mode.
type InsufficientDataError struct {
	Points  int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("time series has %d points, anomaly detection needs at least %d (consider absolute mode)",
		e.Points, e.Minimum)
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ide *InsufficientDataError
	return errors.As(err, &ide)
}
