package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kgbridge/internal/convert"
	"github.com/roach88/kgbridge/internal/mapping"
	"github.com/roach88/kgbridge/internal/store"
)

// Scenario defines a conversion conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Entities and Relations are the inline mapping tables, legacy local
	// id to successor local id.
	Entities  map[string]string `yaml:"entities"`
	Relations map[string]string `yaml:"relations"`

	// Namespaces overrides the default namespaces. Empty fields keep their
	// defaults.
	Namespaces *mapping.Namespaces `yaml:"namespaces,omitempty"`

	// Workers is passed to the batch. Zero runs sequentially.
	Workers int `yaml:"workers,omitempty"`

	// Examples is the dataset, in order.
	Examples []ExampleStep `yaml:"examples"`

	// Assertions validate the batch as a whole.
	// Supported types: outcome_count, converted_count, attempt_count, missing
	Assertions []Assertion `yaml:"assertions"`
}

// ExampleStep is one dataset example with its candidate parses.
type ExampleStep struct {
	Question string   `yaml:"question"`
	Parses   []string `yaml:"parses"`

	// Expect checks the example's output record. If nil, no validation is
	// performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected output record.
type ExpectClause struct {
	// Converted is whether some parse converted.
	Converted bool `yaml:"converted"`

	// SPARQL, when set, must equal the output exactly.
	SPARQL string `yaml:"sparql,omitempty"`

	// Contains and NotContains are substring checks on the output.
	Contains    []string `yaml:"contains,omitempty"`
	NotContains []string `yaml:"not_contains,omitempty"`
}

// Assertion validates the batch outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome_count": the tally for Outcome equals Count
	// - "converted_count": Count examples converted
	// - "attempt_count": Count parses were attempted
	// - "missing": the sorted missing identifiers of Kind equal IDs
	Type string `yaml:"type"`

	Outcome string   `yaml:"outcome,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Kind    string   `yaml:"kind,omitempty"`
	IDs     []string `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcomeCount   = "outcome_count"
	AssertConvertedCount = "converted_count"
	AssertAttemptCount   = "attempt_count"
	AssertMissing        = "missing"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Examples) == 0 {
		return fmt.Errorf("examples must contain at least one example")
	}
	for i, ex := range s.Examples {
		if ex.Question == "" {
			return fmt.Errorf("examples[%d]: question is required", i)
		}
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if s.Namespaces != nil {
		if err := s.Namespaces.WithDefaults().Validate(); err != nil {
			return fmt.Errorf("namespaces: %w", err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertOutcomeCount:
		if !knownOutcome(a.Outcome) {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case AssertConvertedCount, AssertAttemptCount:
	case AssertMissing:
		if a.Kind != string(store.KindEntity) && a.Kind != string(store.KindRelation) {
			return fmt.Errorf("assertions[%d]: kind must be %q or %q", index, store.KindEntity, store.KindRelation)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func knownOutcome(name string) bool {
	for _, o := range convert.Outcomes {
		if string(o) == name {
			return true
		}
	}
	return false
}
