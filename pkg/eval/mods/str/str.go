// Package str exposes the string module.
package str

import (
	"context"
	"fmt"
	"strings"

	"github.com/robinpath/robinpath/pkg/eval"
)

// Module returns the registration record of the str module.
func Module() eval.Module {
	return eval.Module{
		Name: "str",
		Fns: map[string]eval.BuiltinFn{
			"upper":      mapStr("upper", strings.ToUpper),
			"lower":      mapStr("lower", strings.ToLower),
			"trim":       mapStr("trim", strings.TrimSpace),
			"length":     length,
			"concat":     concat,
			"split":      split,
			"join":       join,
			"replace":    replace,
			"contains":   predicate("contains", strings.Contains),
			"startsWith": predicate("startsWith", strings.HasPrefix),
			"endsWith":   predicate("endsWith", strings.HasSuffix),
		},
		FnMeta: map[string]map[string]eval.Value{
			"split":   {"description": "Split a string on a separator into an array."},
			"join":    {"description": "Join an array of values with a separator."},
			"replace": {"description": "Replace every occurrence of a substring."},
		},
		Meta: eval.ModuleMeta{
			Description: "String manipulation.",
			Methods: []string{
				"upper", "lower", "trim", "length", "concat",
				"split", "join", "replace", "contains", "startsWith", "endsWith",
			},
		},
	}
}

func str(name string, args []eval.Value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("str.%s: missing argument %d", name, i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("str.%s: argument %d is a %s, not a string", name, i+1, eval.TypeOf(args[i]))
	}
	return s, nil
}

func mapStr(name string, f func(string) string) eval.BuiltinFn {
	return func(_ context.Context, args []eval.Value) (eval.Value, error) {
		s, err := str(name, args, 0)
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func predicate(name string, f func(s, sub string) bool) eval.BuiltinFn {
	return func(_ context.Context, args []eval.Value) (eval.Value, error) {
		s, err := str(name, args, 0)
		if err != nil {
			return nil, err
		}
		sub, err := str(name, args, 1)
		if err != nil {
			return nil, err
		}
		return f(s, sub), nil
	}
}

func length(_ context.Context, args []eval.Value) (eval.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("str.length takes one argument")
	}
	switch v := args[0].(type) {
	case string:
		return float64(len([]rune(v))), nil
	case []eval.Value:
		return float64(len(v)), nil
	}
	return nil, fmt.Errorf("str.length: cannot measure a %s", eval.TypeOf(args[0]))
}

func concat(_ context.Context, args []eval.Value) (eval.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(eval.ToString(a))
	}
	return sb.String(), nil
}

func split(_ context.Context, args []eval.Value) (eval.Value, error) {
	s, err := str("split", args, 0)
	if err != nil {
		return nil, err
	}
	sep, err := str("split", args, 1)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s, sep)
	out := make([]eval.Value, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func join(_ context.Context, args []eval.Value) (eval.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("str.join takes an array and an optional separator")
	}
	arr, ok := args[0].([]eval.Value)
	if !ok {
		return nil, fmt.Errorf("str.join: argument 1 is a %s, not an array", eval.TypeOf(args[0]))
	}
	sep := ""
	if len(args) > 1 {
		var err error
		sep, err = str("join", args, 1)
		if err != nil {
			return nil, err
		}
	}
	parts := make([]string, len(arr))
	for i, el := range arr {
		parts[i] = eval.ToString(el)
	}
	return strings.Join(parts, sep), nil
}

func replace(_ context.Context, args []eval.Value) (eval.Value, error) {
	s, err := str("replace", args, 0)
	if err != nil {
		return nil, err
	}
	old, err := str("replace", args, 1)
	if err != nil {
		return nil, err
	}
	repl, err := str("replace", args, 2)
	if err != nil {
		return nil, err
	}
	return strings.ReplaceAll(s, old, repl), nil
}
