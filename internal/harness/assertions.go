package harness

import (
	"fmt"
	"reflect"
	"strings"
)

// ExpectationError is returned when an expectation fails.
// It includes the snapshot to help debug the failure.
type ExpectationError struct {
	Field    string // Expectation being checked
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Snapshot *Snapshot
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Snapshot != nil && e.Field != "error" && e.Snapshot.Error != "" {
		fmt.Fprintf(&buf, "  Error: %s\n", e.Snapshot.Error)
	}
	return buf.String()
}

// EvaluateExpectations checks a snapshot against the expected outcome.
// Returns a slice of error messages for failed expectations.
func EvaluateExpectations(snap *Snapshot, expect Expect) []string {
	var errors []string
	fail := func(field, expected, actual string) {
		errors = append(errors, (&ExpectationError{
			Field:    field,
			Expected: expected,
			Actual:   actual,
			Snapshot: snap,
		}).Error())
	}

	if expect.Error != "" || snap.Error != "" {
		if expect.Error != snap.Error {
			fail("error", orNone(expect.Error), orNone(snap.Error))
		}
		// Nothing else is observable for a failed request.
		return errors
	}

	if expect.URL != "" && expect.URL != snap.URL {
		fail("url", expect.URL, snap.URL)
	}
	if expect.SQL != "" && expect.SQL != snap.SQL {
		fail("sql", expect.SQL, snap.SQL)
	}
	if expect.Args != nil {
		want, err := normalize(expect.Args)
		if err != nil {
			fail("args", fmt.Sprintf("%v", expect.Args), err.Error())
		} else if w := asList(want); !(len(w) == 0 && len(snap.Args) == 0) && !valuesEqual(w, snap.Args) {
			fail("args", fmt.Sprintf("%v", want), fmt.Sprintf("%v", snap.Args))
		}
	}
	if expect.Portable != nil {
		if portable := len(snap.Warnings) == 0; portable != *expect.Portable {
			fail("portable", fmt.Sprint(*expect.Portable), fmt.Sprintf("%v %v", portable, snap.Warnings))
		}
	}
	if expect.Count != nil {
		switch {
		case snap.Count == nil:
			fail("count", fmt.Sprint(*expect.Count), "no count")
		case *snap.Count != *expect.Count:
			fail("count", fmt.Sprint(*expect.Count), fmt.Sprint(*snap.Count))
		}
	}
	if expect.Entities != nil {
		if err := assertEntities(snap.Entities, expect.Entities); err != nil {
			fail("entities", err.expected, err.actual)
		}
	}
	return errors
}

type mismatch struct {
	expected, actual string
}

// assertEntities checks the entities in order. Each expected entity is a
// subset match of the actual one.
func assertEntities(actual []any, expected []map[string]any) *mismatch {
	if len(actual) != len(expected) {
		return &mismatch{
			expected: fmt.Sprintf("%d entities", len(expected)),
			actual:   fmt.Sprintf("%d entities: %v", len(actual), actual),
		}
	}
	for i, e := range expected {
		want, err := normalize(e)
		if err != nil {
			return &mismatch{expected: fmt.Sprintf("%v", e), actual: err.Error()}
		}
		if !matchSubset(actual[i], want) {
			return &mismatch{
				expected: fmt.Sprintf("entities[%d] containing %v", i, want),
				actual:   fmt.Sprintf("%v", actual[i]),
			}
		}
	}
	return nil
}

// matchSubset checks if actual contains expected. Maps match when every
// expected key matches; lists match element-wise with equal length.
func matchSubset(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, expectedVal := range exp {
			actualVal, exists := act[key]
			if !exists {
				return false // Required key missing
			}
			if !matchSubset(actualVal, expectedVal) {
				return false
			}
		}
		// Extra keys in actual are OK (subset match)
		return true

	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchSubset(act[i], exp[i]) {
				return false
			}
		}
		return true
	}
	return valuesEqual(actual, expected)
}

// valuesEqual compares two normalized values for equality.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

func orNone(s string) string {
	if s == "" {
		return "no error"
	}
	return s
}
