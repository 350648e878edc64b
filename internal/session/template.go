package session

import (
	"fmt"
	"os"
	"strings"
)

// Expand replaces template placeholders in s:
//   - {{env.VARIABLE}} from environment variables
//   - {{field}} from values stored in c
//
// A field that was never set fails with a *MissingValueError.
func Expand(s string, c *Context) (string, error) {
	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression at position %d", len(s)-len(rest)+start)
		}
		end += start

		expr := strings.TrimSpace(rest[start+2 : end])
		value, err := resolve(expr, c)
		if err != nil {
			return "", err
		}
		b.WriteString(rest[:start])
		b.WriteString(value)
		rest = rest[end+2:]
	}
	return b.String(), nil
}

// ExpandAll expands every value of m into a new map.
func ExpandAll(m map[string]string, c *Context) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		expanded, err := Expand(v, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = expanded
	}
	return out, nil
}

func resolve(expr string, c *Context) (string, error) {
	if expr == "" {
		return "", fmt.Errorf("empty template expression")
	}
	if name, ok := strings.CutPrefix(expr, "env."); ok {
		return os.Getenv(name), nil
	}
	if c == nil {
		return "", &MissingValueError{Field: expr}
	}
	return c.String(expr)
}

// ExpandValue expands every string inside a decoded JSON value. A string
// that is exactly one {{field}} placeholder becomes the stored value
// itself, so numbers and booleans keep their type.
func ExpandValue(v any, c *Context) (any, error) {
	switch v := v.(type) {
	case string:
		if expr, ok := soleField(v); ok {
			if c == nil {
				return nil, &MissingValueError{Field: expr}
			}
			return c.Get(expr)
		}
		return Expand(v, c)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			expanded, err := ExpandValue(item, c)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := ExpandValue(item, c)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// soleField reports whether s is a single {{field}} placeholder naming a
// session field.
func soleField(s string) (string, bool) {
	inner, ok := strings.CutPrefix(s, "{{")
	if !ok {
		return "", false
	}
	inner, ok = strings.CutSuffix(inner, "}}")
	if !ok || strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	expr := strings.TrimSpace(inner)
	if expr == "" || strings.HasPrefix(expr, "env.") {
		return "", false
	}
	return expr, true
}
