package expect

// Equal fails unless got equals want (numbers compared numerically).
func Equal(what string, want, got any) error {
	return Compare(what, "eq", got, want)
}

// NotEqual fails when got equals notWant.
func NotEqual(what string, notWant, got any) error {
	return Compare(what, "ne", got, notWant)
}

// GreaterThan fails unless got > bound.
func GreaterThan(what string, bound, got any) error {
	return Compare(what, "gt", got, bound)
}

// Contains fails unless the string form of got contains sub.
func Contains(what, sub string, got any) error {
	return Compare(what, "contains", got, sub)
}

// Tracker remembers the last observed value so a step can assert that an
// action changed it.
type Tracker struct {
	what string
	last any
	seen bool
}

// NewTracker returns a Tracker labelled for error messages.
func NewTracker(what string) *Tracker {
	return &Tracker{what: what}
}

// Observe records v and reports whether it differs from the previous
// observation. The first observation always reports false.
func (t *Tracker) Observe(v any) bool {
	changed := t.seen && !valuesEqual(t.last, v)
	t.last = v
	t.seen = true
	return changed
}

// Last returns the previous observation.
func (t *Tracker) Last() (any, bool) {
	return t.last, t.seen
}

// Changed records v and fails when it equals the previous observation.
// It also fails when nothing was observed before.
func (t *Tracker) Changed(v any) error {
	if !t.seen {
		t.Observe(v)
		return &Mismatch{Path: t.what, Detail: "no previous observation to compare against"}
	}
	prev := t.last
	if !t.Observe(v) {
		return &Mismatch{Path: t.what, Op: "changed from", Expected: prev, Actual: v}
	}
	return nil
}
