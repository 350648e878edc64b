package expect

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// ParseJSON decodes a response body into generic maps and slices.
func ParseJSON(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("response body is not valid JSON: %w", err)
	}
	return doc, nil
}

// Lookup evaluates a JSONPath expression against a decoded document.
// A path that matches nothing returns an empty slice, not an error.
func Lookup(doc any, path string) ([]any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}
	return x.Get(doc), nil
}

// First returns the first match of path in doc.
func First(doc any, path string) (any, bool, error) {
	results, err := Lookup(doc, path)
	if err != nil {
		return nil, false, err
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// ExtractJSONPath decodes body and returns the first value at path.
func ExtractJSONPath(body []byte, path string) (any, error) {
	doc, err := ParseJSON(body)
	if err != nil {
		return nil, err
	}
	v, ok, err := First(doc, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &Mismatch{Path: path, Op: "exists", Expected: true, Actual: "no match"}
	}
	return v, nil
}
