package jumpbridge

import (
	"fmt"
	"math"
	"time"
)

// Args holds the positional arguments of a call as decoded from the wire:
// nil, bool, numbers, string, []byte, []any and map[string]any.
type Args []any

// Get returns the i-th argument, or nil when absent.
func (a Args) Get(i int) any {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// Arity checks that the call has between lo and hi arguments; hi < 0 means unbounded.
func (a Args) Arity(lo, hi int) error {
	switch {
	case len(a) < lo:
		return fmt.Errorf("expected at least %d arguments, got %d", lo, len(a))
	case hi >= 0 && len(a) > hi:
		return fmt.Errorf("expected at most %d arguments, got %d", hi, len(a))
	}
	return nil
}

func (a Args) missing(i int) error {
	return fmt.Errorf("missing argument %d", i+1)
}

func (a Args) mismatch(i int, want string) error {
	return fmt.Errorf("argument %d: expected %s, got %T", i+1, want, a[i])
}

// Float returns the i-th argument as a number.
func (a Args) Float(i int) (float64, error) {
	if i >= len(a) {
		return 0, a.missing(i)
	}
	if f, ok := toFloat64(a[i]); ok {
		return f, nil
	}
	return 0, a.mismatch(i, "number")
}

// Int returns the i-th argument as an integer. Floats with a fractional part are rejected.
func (a Args) Int(i int) (int64, error) {
	if i >= len(a) {
		return 0, a.missing(i)
	}
	if n, ok := toInt64(a[i]); ok {
		return n, nil
	}
	if f, ok := toFloat64(a[i]); ok && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return int64(f), nil
	}
	return 0, a.mismatch(i, "integer")
}

// Text returns the i-th argument as a string.
func (a Args) Text(i int) (string, error) {
	if i >= len(a) {
		return "", a.missing(i)
	}
	if s, ok := a[i].(string); ok {
		return s, nil
	}
	return "", a.mismatch(i, "string")
}

// Bool returns the i-th argument as a boolean.
func (a Args) Bool(i int) (bool, error) {
	if i >= len(a) {
		return false, a.missing(i)
	}
	if b, ok := a[i].(bool); ok {
		return b, nil
	}
	return false, a.mismatch(i, "bool")
}

// List returns the i-th argument as a list.
func (a Args) List(i int) ([]any, error) {
	if i >= len(a) {
		return nil, a.missing(i)
	}
	if xs, ok := a[i].([]any); ok {
		return xs, nil
	}
	return nil, a.mismatch(i, "list")
}

// Map returns the i-th argument as a string-keyed map.
func (a Args) Map(i int) (map[string]any, error) {
	if i >= len(a) {
		return nil, a.missing(i)
	}
	switch m := a[i].(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, nil
	}
	return nil, a.mismatch(i, "map")
}

// Bytes returns the i-th argument as raw bytes. It accepts []byte, strings,
// and the tagged bytes form.
func (a Args) Bytes(i int) ([]byte, error) {
	if i >= len(a) {
		return nil, a.missing(i)
	}
	switch x := a[i].(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case map[string]any, map[any]any:
		if b, ok := Decode(x).Bytes(); ok {
			return b, nil
		}
	}
	return nil, a.mismatch(i, "bytes")
}

// Time returns the i-th argument as a time. It accepts time.Time, RFC 3339
// strings, and the tagged datetime form.
func (a Args) Time(i int) (time.Time, error) {
	if i >= len(a) {
		return time.Time{}, a.missing(i)
	}
	var text string
	switch x := a[i].(type) {
	case time.Time:
		return x, nil
	case string:
		text = x
	case map[string]any, map[any]any:
		t, ok := Decode(x).AsTagged()
		if !ok || t.Type != TagDatetime {
			return time.Time{}, a.mismatch(i, "datetime")
		}
		text = t.Text
	default:
		return time.Time{}, a.mismatch(i, "datetime")
	}
	ts, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return ts, nil
}

// OptFloat returns the i-th argument as a number, or def when absent or nil.
func (a Args) OptFloat(i int, def float64) (float64, error) {
	if a.Get(i) == nil {
		return def, nil
	}
	return a.Float(i)
}

// OptInt returns the i-th argument as an integer, or def when absent or nil.
func (a Args) OptInt(i int, def int64) (int64, error) {
	if a.Get(i) == nil {
		return def, nil
	}
	return a.Int(i)
}

// OptText returns the i-th argument as a string, or def when absent or nil.
func (a Args) OptText(i int, def string) (string, error) {
	if a.Get(i) == nil {
		return def, nil
	}
	return a.Text(i)
}
