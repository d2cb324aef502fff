package eval

import (
	"context"
	"fmt"

	"github.com/robinpath/robinpath/pkg/parse"
)

// fireDecorators runs the decorators attached to a statement, in source
// order, when the statement is defined. A decorator returning a []Value
// replaces the statement's evaluated arguments before they reach the call.
func (ev *Evaler) fireDecorators(ctx context.Context, fm *frame, st parse.Statement,
	target string, def *FnDef, args []Value) ([]Value, error) {

	for _, d := range parse.Decorators(st) {
		h, ok := ev.env.decorators[d.Name]
		if !ok {
			return nil, ev.errorf(fm, d, "unknown decorator @%s", d.Name)
		}
		dargs, err := ev.evalArgs(ctx, fm, d.Args)
		if err != nil {
			return nil, err
		}
		out, err := h(ev.env, target, def, args, dargs, d.Args)
		if err != nil {
			return nil, ev.wrap(fm, d, err)
		}
		if repl, ok := out.([]Value); ok {
			args = repl
		}
	}
	return args, nil
}

// registerBuiltinDecorators installs the metadata decorators. They write to
// the per-function or per-variable metadata map, keyed by the decorated
// statement's target name.
func registerBuiltinDecorators(env *Environment) {
	describe := func(key string) DecoratorFn {
		return func(env *Environment, target string, def *FnDef,
			_, dargs []Value, _ []parse.Expr) (Value, error) {
			if len(dargs) != 1 {
				return nil, fmt.Errorf("@%s takes one argument", key)
			}
			env.metaMap(def != nil, target)[key] = dargs[0]
			return nil, nil
		}
	}
	env.RegisterDecorator("desc", describe("description"))
	env.RegisterDecorator("description", describe("description"))
	env.RegisterDecorator("title", describe("title"))

	param := func(env *Environment, target string, def *FnDef,
		_, dargs []Value, raw []parse.Expr) (Value, error) {
		if len(dargs) == 0 {
			return nil, fmt.Errorf("@param takes a parameter name")
		}
		p := map[string]Value{"name": decoratorName(dargs[0], raw, 0)}
		if len(dargs) > 1 {
			p["description"] = dargs[1]
		}
		m := env.metaMap(def != nil, target)
		params, _ := m["params"].([]Value)
		m["params"] = append(params, p)
		return nil, nil
	}
	env.RegisterDecorator("param", param)
	env.RegisterDecorator("arg", param)

	env.RegisterDecorator("required", func(env *Environment, target string, def *FnDef,
		_, dargs []Value, raw []parse.Expr) (Value, error) {
		m := env.metaMap(def != nil, target)
		if len(dargs) == 0 {
			m["required"] = true
			return nil, nil
		}
		required, _ := m["required"].([]Value)
		for i, a := range dargs {
			required = append(required, decoratorName(a, raw, i))
		}
		m["required"] = required
		return nil, nil
	})
}

// decoratorName recovers the parameter name a decorator argument refers to.
// A $name argument evaluates to the variable's value, usually null at
// definition time, so the bare identifier is taken from the raw AST instead.
func decoratorName(val Value, raw []parse.Expr, i int) Value {
	if i < len(raw) {
		if ref, ok := raw[i].(*parse.VarRef); ok {
			return ref.Name
		}
	}
	return val
}
