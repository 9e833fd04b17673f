package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/driftline/driftline/internal/intent"
)

// Scenario defines an end-to-end pipeline scenario: a business view, seed
// data, an intent, and the expected verdict.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// View is the path to the business view CUE file, relative to the
	// scenario file.
	View string `yaml:"view"`

	// Seed is inline SQL executed against a fresh database before the
	// pipeline runs. SeedFile points at a SQL file instead; exactly one
	// of the two must be set.
	Seed     string `yaml:"seed,omitempty"`
	SeedFile string `yaml:"seed_file,omitempty"`

	// Intent is the structured business question to analyze.
	Intent intent.StructuredIntent `yaml:"intent"`

	// Expect validates the resulting report.
	Expect Expect `yaml:"expect"`
}

// Expect is the scenario's assertion set. Unset fields are not checked.
type Expect struct {
	// Triggered checks the detection verdict.
	Triggered *bool `yaml:"triggered,omitempty"`

	// ReasonContains checks the trigger reason as a substring.
	ReasonContains string `yaml:"reason_contains,omitempty"`

	// TopDriver checks the highest-impact attribution driver.
	TopDriver *DriverExpect `yaml:"top_driver,omitempty"`

	// MinExplainability checks the attribution coverage floor (0-100).
	MinExplainability *float64 `yaml:"min_explainability,omitempty"`
}

// DriverExpect checks one attribution driver.
type DriverExpect struct {
	Member    string `yaml:"member"`
	Direction string `yaml:"direction,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos like "expects:" fail loudly. Relative view and seed
// paths resolve against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	base := filepath.Dir(path)
	if scenario.View != "" && !filepath.IsAbs(scenario.View) {
		scenario.View = filepath.Join(base, scenario.View)
	}
	if scenario.SeedFile != "" && !filepath.IsAbs(scenario.SeedFile) {
		scenario.SeedFile = filepath.Join(base, scenario.SeedFile)
	}
	if scenario.Intent.Mode == "" {
		scenario.Intent.Mode = intent.ModeAbsolute
	}

	if err := scenario.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.View == "" {
		return fmt.Errorf("view is required")
	}
	if _, err := os.Stat(s.View); err != nil {
		return fmt.Errorf("view file not found: %s", s.View)
	}
	if s.Seed == "" && s.SeedFile == "" {
		return fmt.Errorf("seed or seed_file is required")
	}
	if s.Seed != "" && s.SeedFile != "" {
		return fmt.Errorf("seed and seed_file are mutually exclusive")
	}
	if s.SeedFile != "" {
		if _, err := os.Stat(s.SeedFile); err != nil {
			return fmt.Errorf("seed file not found: %s", s.SeedFile)
		}
	}
	if err := s.Intent.Validate(); err != nil {
		return err
	}
	return nil
}

// seedSQL returns the seed statements, reading SeedFile when set.
func (s *Scenario) seedSQL() (string, error) {
	if s.Seed != "" {
		return s.Seed, nil
	}
	data, err := os.ReadFile(s.SeedFile)
	if err != nil {
		return "", fmt.Errorf("read seed file: %w", err)
	}
	return string(data), nil
}
