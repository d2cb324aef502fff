package eval

import (
	"context"

	"github.com/robinpath/robinpath/pkg/parse"
)

// Special forms bypass the ordinary call path because they need the raw
// argument AST or direct frame/environment access. forget must know which
// frame it runs in; meta forms take bare names that must not resolve as
// commands.
//
// The map is populated in init: the form bodies evaluate argument
// expressions, which dispatches back through the map, so a composite
// literal would be an initialization cycle.
var specialForms map[string]func(*Evaler, context.Context, *frame, *parse.CommandStmt) error

func init() {
	specialForms = map[string]func(*Evaler, context.Context, *frame, *parse.CommandStmt) error{
		"meta":    (*Evaler).metaForm,
		"setMeta": (*Evaler).setMetaForm,
		"getMeta": (*Evaler).getMetaForm,
		"getType": (*Evaler).getTypeForm,
		"has":     (*Evaler).hasForm,
		"forget":  (*Evaler).forgetForm,
		"clear":   (*Evaler).clearForm,
		"trigger": (*Evaler).triggerForm,
	}
}

// targetName extracts the introspection target from a raw argument: the bare
// name of a $var reference, or the string value of a name/string literal.
func (ev *Evaler) targetName(fm *frame, e parse.Expr) (string, error) {
	switch e := e.(type) {
	case *parse.VarRef:
		return e.Name, nil
	case *parse.StringLit:
		return e.Value, nil
	}
	return "", ev.errorf(fm, e, "should be a name or a $variable")
}

func (ev *Evaler) metaForm(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if len(st.Args) != 1 {
		return ev.errorf(fm, st, "meta takes one target")
	}
	name, err := ev.targetName(fm, st.Args[0])
	if err != nil {
		return err
	}
	m, ok := ev.env.getMeta(name)
	if !ok {
		fm.last = nil
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	fm.last = out
	return nil
}

func (ev *Evaler) getMetaForm(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if len(st.Args) != 2 {
		return ev.errorf(fm, st, "getMeta takes a target and a key")
	}
	name, err := ev.targetName(fm, st.Args[0])
	if err != nil {
		return err
	}
	key, err := ev.targetName(fm, st.Args[1])
	if err != nil {
		return err
	}
	if m, ok := ev.env.getMeta(name); ok {
		fm.last = m[key]
	} else {
		fm.last = nil
	}
	return nil
}

func (ev *Evaler) setMetaForm(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if len(st.Args) != 3 {
		return ev.errorf(fm, st, "setMeta takes a target, a key and a value")
	}
	name, err := ev.targetName(fm, st.Args[0])
	if err != nil {
		return err
	}
	key, err := ev.targetName(fm, st.Args[1])
	if err != nil {
		return err
	}
	val, err := ev.evalExpr(ctx, fm, st.Args[2])
	if err != nil {
		return err
	}
	_, isVar := st.Args[0].(*parse.VarRef)
	ev.env.metaMap(!isVar, name)[key] = val
	return nil
}

func (ev *Evaler) getTypeForm(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if len(st.Args) != 1 {
		return ev.errorf(fm, st, "getType takes one value")
	}
	v, err := ev.evalExpr(ctx, fm, st.Args[0])
	if err != nil {
		return err
	}
	fm.last = TypeOf(v)
	return nil
}

// hasForm tests existence: has $x reports a bound variable, has name reports
// a resolvable command.
func (ev *Evaler) hasForm(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if len(st.Args) != 1 {
		return ev.errorf(fm, st, "has takes one target")
	}
	if ref, ok := st.Args[0].(*parse.VarRef); ok {
		_, bound := ev.lookupRef(fm, ref)
		fm.last = bound
		return nil
	}
	name, err := ev.targetName(fm, st.Args[0])
	if err != nil {
		return err
	}
	_, _, _, ok := ev.env.resolve(name)
	fm.last = ok
	return nil
}

// forgetForm hides variables from the current frame and its descendants. The
// enclosing frame's bindings survive, so the names reappear when the frame
// pops. Last-value is untouched.
func (ev *Evaler) forgetForm(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if len(st.Args) == 0 {
		return ev.errorf(fm, st, "forget takes at least one $variable")
	}
	for _, a := range st.Args {
		ref, ok := a.(*parse.VarRef)
		if !ok {
			return ev.errorf(fm, a, "forget takes $variable references")
		}
		fm.forget(ref.Name)
	}
	return nil
}

// clearForm resets the last-value register.
func (ev *Evaler) clearForm(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if len(st.Args) != 0 {
		return ev.errorf(fm, st, "clear takes no arguments")
	}
	fm.last = nil
	return nil
}

func (ev *Evaler) triggerForm(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if len(st.Args) == 0 {
		return ev.errorf(fm, st, "trigger takes an event name")
	}
	nameVal, err := ev.evalExpr(ctx, fm, st.Args[0])
	if err != nil {
		return err
	}
	name, ok := nameVal.(string)
	if !ok {
		return ev.errorf(fm, st.Args[0], "event name should be a string, got %s", TypeOf(nameVal))
	}
	args, err := ev.evalArgs(ctx, fm, st.Args[1:])
	if err != nil {
		return err
	}
	ev.fire(ctx, name, args)
	return nil
}
