package eval

import (
	"context"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Value is any RobinPath runtime value. Numbers are float64, strings are
// string, booleans are bool, null is nil, arrays are []Value, objects are
// map[string]Value.
type Value = any

// Pending is returned by a builtin whose result is not immediately available.
// The executor releases the scheduler baton, awaits the result, and resumes;
// this is the only kind of suspension point.
type Pending struct {
	Await func(ctx context.Context) (Value, error)
}

// Bool returns the truthiness of a value: null, false, 0 and "" are false,
// everything else is true.
func Bool(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	}
	return true
}

// TypeOf returns the type name of a value as reported by getType.
func TypeOf(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []Value:
		return "array"
	case map[string]Value:
		return "object"
	}
	return "unknown"
}

// ToString converts a value to its string form, used by template
// interpolation and string concatenation.
func ToString(v Value) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(v)
	case string:
		return v
	case []Value:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, el := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(ToString(el))
		}
		sb.WriteByte(']')
		return sb.String()
	case map[string]Value:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(ToString(v[k]))
		}
		sb.WriteByte('}')
		return sb.String()
	}
	return "<unknown>"
}

func formatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToNumber converts a value to a number where a sensible conversion exists.
func ToNumber(v Value) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case float64:
		b, ok := b.(float64)
		return ok && a == b
	case string:
		b, ok := b.(string)
		return ok && a == b
	case bool:
		b, ok := b.(bool)
		return ok && a == b
	}
	return reflect.DeepEqual(a, b)
}

// index resolves one attribute-path segment against a container value.
// A miss yields null rather than an error, matching variable reads.
func index(v Value, seg string) Value {
	switch v := v.(type) {
	case map[string]Value:
		return v[seg]
	case []Value:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil
		}
		return v[i]
	case string:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 {
			return nil
		}
		rs := []rune(v)
		if i >= len(rs) {
			return nil
		}
		return string(rs[i])
	}
	return nil
}
