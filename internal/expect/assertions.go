// Package expect holds the pure assertion helpers shared by HTTP and UI
// steps: JSONPath body checks, value comparisons and text parsing.
package expect

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Mismatch describes one failed expectation with the expected and actual values.
type Mismatch struct {
	Path     string // JSONPath or a short description of what was checked
	Op       string
	Expected any
	Actual   any
	Detail   string
}

func (m *Mismatch) Error() string {
	where := m.Path
	if where == "" {
		where = "value"
	}
	if m.Detail != "" {
		return fmt.Sprintf("%s: %s", where, m.Detail)
	}
	return fmt.Sprintf("%s: expected %s %v, got %v", where, m.Op, format(m.Expected), format(m.Actual))
}

func format(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}

// EvaluateBody evaluates JSONPath assertions against a JSON response body.
// Each value is either a literal (equality, numbers compared numerically)
// or an operator map such as {"gte": 1} or {"exists": false}.
// Paths are checked in sorted order and the first failure is returned.
func EvaluateBody(body []byte, assertions map[string]any) error {
	doc, err := ParseJSON(body)
	if err != nil {
		return err
	}
	return EvaluateDoc(doc, assertions)
}

// EvaluateDoc is EvaluateBody for an already decoded document.
func EvaluateDoc(doc any, assertions map[string]any) error {
	paths := make([]string, 0, len(assertions))
	for p := range assertions {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := evaluateOne(doc, path, assertions[path]); err != nil {
			return err
		}
	}
	return nil
}

func evaluateOne(doc any, path string, expected any) error {
	results, err := Lookup(doc, path)
	if err != nil {
		return err
	}

	if ops, ok := expected.(map[string]any); ok {
		return evaluateOperators(path, results, ops)
	}

	if len(results) == 0 {
		return &Mismatch{Path: path, Op: "==", Expected: expected, Actual: "no match"}
	}
	if !valuesEqual(results[0], expected) {
		return &Mismatch{Path: path, Op: "==", Expected: expected, Actual: results[0]}
	}
	return nil
}

func evaluateOperators(path string, results []any, ops map[string]any) error {
	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	for _, op := range names {
		expected := ops[op]
		if op == "exists" {
			want, ok := expected.(bool)
			if !ok {
				return fmt.Errorf("JSONPath %q: 'exists' operator requires a boolean value", path)
			}
			if want != (len(results) > 0) {
				actual := any("no match")
				if len(results) > 0 {
					actual = results[0]
				}
				return &Mismatch{Path: path, Op: "exists", Expected: want, Actual: actual}
			}
			continue
		}

		if len(results) == 0 {
			return &Mismatch{Path: path, Op: op, Expected: expected, Actual: "no match"}
		}
		if err := Compare(path, op, results[0], expected); err != nil {
			return err
		}
	}
	return nil
}

// Compare applies a single operator to actual and expected. Supported
// operators are eq, ne, gt, gte, lt, lte, contains, regex and len.
func Compare(what, op string, actual, expected any) error {
	fail := func() error {
		return &Mismatch{Path: what, Op: op, Expected: expected, Actual: actual}
	}

	switch op {
	case "eq", "==":
		if !valuesEqual(actual, expected) {
			return fail()
		}
	case "ne", "!=":
		if valuesEqual(actual, expected) {
			return fail()
		}
	case "gt", "gte", "lt", "lte":
		a, err := toFloat64(actual)
		if err != nil {
			return fmt.Errorf("%s: %q requires numeric actual value: %w", what, op, err)
		}
		e, err := toFloat64(expected)
		if err != nil {
			return fmt.Errorf("%s: %q requires numeric expected value: %w", what, op, err)
		}
		if !ordered(op, a, e) {
			return fail()
		}
	case "contains":
		if !strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
			return fail()
		}
	case "regex":
		pattern, ok := expected.(string)
		if !ok {
			return fmt.Errorf("%s: 'regex' operator requires a string pattern", what)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%s: invalid regex pattern %q: %w", what, pattern, err)
		}
		if !re.MatchString(fmt.Sprintf("%v", actual)) {
			return fail()
		}
	case "len":
		n, err := length(actual)
		if err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if !valuesEqual(n, expected) {
			return &Mismatch{Path: what, Op: "len", Expected: expected, Actual: n}
		}
	default:
		return fmt.Errorf("%s: unknown operator %q", what, op)
	}
	return nil
}

func ordered(op string, a, e float64) bool {
	switch op {
	case "gt":
		return a > e
	case "gte":
		return a >= e
	case "lt":
		return a < e
	default:
		return a <= e
	}
}

func length(v any) (int, error) {
	switch x := v.(type) {
	case []any:
		return len(x), nil
	case map[string]any:
		return len(x), nil
	case string:
		return len([]rune(x)), nil
	default:
		return 0, fmt.Errorf("'len' requires an array, object or string, got %T", v)
	}
}

// valuesEqual compares two values, coercing numbers. Other values must have
// the same type, so true never equals "true". Slices and maps are compared
// element by element with the same rule.
func valuesEqual(actual, expected any) bool {
	a, aErr := toFloat64(actual)
	e, eErr := toFloat64(expected)
	if aErr == nil && eErr == nil {
		return a == e
	}
	if (aErr == nil) != (eErr == nil) {
		return false
	}
	switch av := actual.(type) {
	case []any:
		ev, ok := expected.([]any)
		if !ok || len(av) != len(ev) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], ev[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		ev, ok := expected.(map[string]any)
		if !ok || len(av) != len(ev) {
			return false
		}
		for k, v := range av {
			other, ok := ev[k]
			if !ok || !valuesEqual(v, other) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
