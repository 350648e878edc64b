// Package session holds the values a scenario's steps pass to each other:
// tokens, generated identities, ids returned by the server.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// ErrMissingValue matches every MissingValueError via errors.Is.
var ErrMissingValue = errors.New("missing context value")

// MissingValueError reports a read of a field no earlier step wrote.
// It always points at a broken step chain, never at the system under test.
type MissingValueError struct {
	Field string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("missing context value %q: no earlier step set it", e.Field)
}

// Is makes errors.Is(err, ErrMissingValue) true.
func (e *MissingValueError) Is(target error) bool {
	return target == ErrMissingValue
}

// Context is the per-run key/value store shared by the steps of one scenario.
// A Context must never be reused across scenario runs.
type Context struct {
	mu     sync.RWMutex
	id     string
	values map[string]any
}

// New returns an empty Context with a fresh run ID.
func New() *Context {
	return &Context{
		id:     uuid.NewString(),
		values: make(map[string]any),
	}
}

// ID identifies the run that owns this context.
func (c *Context) ID() string {
	return c.id
}

// Set stores value under field, overwriting any previous value.
func (c *Context) Set(field string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[field] = value
}

// Get returns the value stored under field.
func (c *Context) Get(field string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[field]
	if !ok {
		return nil, &MissingValueError{Field: field}
	}
	return v, nil
}

// Has reports whether field was set.
func (c *Context) Has(field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[field]
	return ok
}

// Delete removes field. Deleting an unset field is a no-op.
func (c *Context) Delete(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, field)
}

// Fields returns the set field names, sorted.
func (c *Context) Fields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.values))
	for k := range c.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of every stored value.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// String returns field as a string. Numbers and booleans are formatted;
// other types are a type error.
func (c *Context) String(field string) (string, error) {
	v, err := c.Get(field)
	if err != nil {
		return "", err
	}
	return Stringify(v)
}

// Int returns field as an int. Any integral numeric form is accepted,
// including float64 values decoded from JSON and numeric strings.
func (c *Context) Int(field string) (int, error) {
	v, err := c.Get(field)
	if err != nil {
		return 0, err
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("context value %q: %w", field, err)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("context value %q: %v is not an integer", field, v)
	}
	return int(f), nil
}

// Float returns field as a float64.
func (c *Context) Float(field string) (float64, error) {
	v, err := c.Get(field)
	if err != nil {
		return 0, err
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("context value %q: %w", field, err)
	}
	return f, nil
}

// Bool returns field as a bool.
func (c *Context) Bool(field string) (bool, error) {
	v, err := c.Get(field)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, perr := strconv.ParseBool(b)
		if perr != nil {
			return false, fmt.Errorf("context value %q: %q is not a boolean", field, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("context value %q: %v (%T) is not a boolean", field, v, v)
	}
}

// Stringify renders a stored value the way it appears in a request.
func Stringify(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case bool:
		return strconv.FormatBool(s), nil
	case int:
		return strconv.Itoa(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case json.Number:
		return s.String(), nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("value %v (%T) has no string form", v, v)
	}
}

func toFloat(v any) (float64, error) {
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
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not numeric", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not numeric", v, v)
	}
}
