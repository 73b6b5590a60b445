package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/kgbridge/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertOutcomeCount:
		return assertCount(a.Type, "outcome "+a.Outcome, a.Count, result.Tally[a.Outcome])
	case AssertConvertedCount:
		return assertCount(a.Type, "converted examples", a.Count, result.Converted())
	case AssertAttemptCount:
		return assertCount(a.Type, "attempts", a.Count, len(result.Trace))
	case AssertMissing:
		return assertMissing(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertCount(typ, what string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%s = %d", what, want),
		Actual:   fmt.Sprintf("%s = %d", what, got),
	}
}

func assertMissing(result *Result, a Assertion) error {
	got := result.MissingEntities
	if a.Kind == string(store.KindRelation) {
		got = result.MissingRelations
	}

	want := slices.Clone(a.IDs)
	slices.Sort(want)
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertMissing,
		Expected: fmt.Sprintf("missing %s ids %v", a.Kind, want),
		Actual:   fmt.Sprintf("missing %s ids %v", a.Kind, got),
	}
}
