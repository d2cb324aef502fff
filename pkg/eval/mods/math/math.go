// Package math exposes the arithmetic module.
package math

import (
	"context"
	"fmt"
	gomath "math"

	"github.com/robinpath/robinpath/pkg/eval"
)

// Module returns the registration record of the math module.
func Module() eval.Module {
	return eval.Module{
		Name: "math",
		Fns: map[string]eval.BuiltinFn{
			"add":      nary("add", func(acc, n float64) float64 { return acc + n }),
			"subtract": nary("subtract", func(acc, n float64) float64 { return acc - n }),
			"multiply": nary("multiply", func(acc, n float64) float64 { return acc * n }),
			"divide":   divide,
			"mod":      mod,
			"abs":      unary("abs", gomath.Abs),
			"floor":    unary("floor", gomath.Floor),
			"ceil":     unary("ceil", gomath.Ceil),
			"round":    unary("round", gomath.Round),
			"min":      fold("min", gomath.Min),
			"max":      fold("max", gomath.Max),
			"range":    rangeFn,
		},
		FnMeta: map[string]map[string]eval.Value{
			"add":      {"description": "Sum of the arguments."},
			"subtract": {"description": "First argument minus the rest."},
			"multiply": {"description": "Product of the arguments."},
			"divide":   {"description": "First argument divided by the rest."},
			"mod":      {"description": "Remainder of dividing the first argument by the second."},
			"range":    {"description": "Inclusive sequence from start to end, with an optional step."},
		},
		Meta: eval.ModuleMeta{
			Description: "Arithmetic on numbers.",
			Methods: []string{
				"add", "subtract", "multiply", "divide", "mod",
				"abs", "floor", "ceil", "round", "min", "max", "range",
			},
		},
	}
}

func nums(name string, args []eval.Value, atLeast int) ([]float64, error) {
	if len(args) < atLeast {
		return nil, fmt.Errorf("math.%s needs at least %d arguments, got %d", name, atLeast, len(args))
	}
	ns := make([]float64, len(args))
	for i, a := range args {
		n, ok := eval.ToNumber(a)
		if !ok {
			return nil, fmt.Errorf("math.%s: argument %d is a %s, not a number", name, i+1, eval.TypeOf(a))
		}
		ns[i] = n
	}
	return ns, nil
}

func nary(name string, op func(acc, n float64) float64) eval.BuiltinFn {
	return func(_ context.Context, args []eval.Value) (eval.Value, error) {
		ns, err := nums(name, args, 1)
		if err != nil {
			return nil, err
		}
		acc := ns[0]
		for _, n := range ns[1:] {
			acc = op(acc, n)
		}
		return acc, nil
	}
}

func fold(name string, op func(a, b float64) float64) eval.BuiltinFn {
	return nary(name, op)
}

func unary(name string, op func(float64) float64) eval.BuiltinFn {
	return func(_ context.Context, args []eval.Value) (eval.Value, error) {
		ns, err := nums(name, args, 1)
		if err != nil {
			return nil, err
		}
		if len(ns) != 1 {
			return nil, fmt.Errorf("math.%s takes one number", name)
		}
		return op(ns[0]), nil
	}
}

func divide(_ context.Context, args []eval.Value) (eval.Value, error) {
	ns, err := nums("divide", args, 2)
	if err != nil {
		return nil, err
	}
	acc := ns[0]
	for _, n := range ns[1:] {
		if n == 0 {
			return nil, fmt.Errorf("math.divide: division by zero")
		}
		acc /= n
	}
	return acc, nil
}

func mod(_ context.Context, args []eval.Value) (eval.Value, error) {
	ns, err := nums("mod", args, 2)
	if err != nil {
		return nil, err
	}
	if len(ns) != 2 {
		return nil, fmt.Errorf("math.mod takes two numbers")
	}
	if ns[1] == 0 {
		return nil, fmt.Errorf("math.mod: division by zero")
	}
	return gomath.Mod(ns[0], ns[1]), nil
}

// rangeFn builds the inclusive sequence from start to end. Without a step,
// the direction follows the bounds; a step whose sign fights the direction
// yields an empty sequence.
func rangeFn(_ context.Context, args []eval.Value) (eval.Value, error) {
	ns, err := nums("range", args, 2)
	if err != nil {
		return nil, err
	}
	if len(ns) > 3 {
		return nil, fmt.Errorf("math.range takes start, end and an optional step")
	}
	start, end := ns[0], ns[1]
	step := 1.0
	if start > end {
		step = -1
	}
	if len(ns) == 3 {
		step = ns[2]
		if step == 0 {
			return nil, fmt.Errorf("math.range: step must not be zero")
		}
	}
	out := []eval.Value{}
	if (end-start)*step < 0 {
		return out, nil
	}
	for v := start; (step > 0 && v <= end) || (step < 0 && v >= end); v += step {
		out = append(out, v)
	}
	return out, nil
}
