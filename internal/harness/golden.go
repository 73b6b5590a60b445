package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden snapshots live, relative to the package under
// test.
const GoldenDir = "testdata/golden"

// Snapshot is the golden form of a scenario result. Query ids and failure
// details are left out so snapshots only change when conversion output or
// outcomes change.
type Snapshot struct {
	ScenarioName     string         `json:"scenario_name"`
	RunID            string         `json:"run_id"`
	Records          []RecordTrace  `json:"records"`
	Trace            []AttemptTrace `json:"trace"`
	Tally            map[string]int `json:"tally"`
	MissingEntities  []string       `json:"missing_entities"`
	MissingRelations []string       `json:"missing_relations"`
}

// NewSnapshot captures result under the scenario name.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName:     name,
		RunID:            result.RunID,
		Records:          result.Records,
		Trace:            result.Trace,
		Tally:            result.Tally,
		MissingEntities:  result.MissingEntities,
		MissingRelations: result.MissingRelations,
	}
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
// Map keys are sorted and IRIs are not HTML-escaped.
func (s Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// GoldenPath returns the golden file path for a scenario under dir.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// CompareGolden reports whether result matches the golden file for name
// under dir. A missing golden file is an error.
func CompareGolden(dir, name string, result *Result) (bool, error) {
	want, err := os.ReadFile(GoldenPath(dir, name))
	if err != nil {
		return false, fmt.Errorf("read golden file: %w", err)
	}
	got, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}

// UpdateGolden writes the golden file for name under dir.
func UpdateGolden(dir, name string, result *Result) error {
	data, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(GoldenPath(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}
