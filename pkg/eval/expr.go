package eval

import (
	"context"
	"math"
	"strings"

	"github.com/robinpath/robinpath/pkg/parse"
)

func (ev *Evaler) evalExpr(ctx context.Context, fm *frame, e parse.Expr) (Value, error) {
	switch e := e.(type) {
	case *parse.VarRef:
		v, _ := ev.lookupRef(fm, e)
		return v, nil
	case *parse.LastValue:
		return fm.last, nil
	case *parse.NumberLit:
		return e.Value, nil
	case *parse.StringLit:
		return e.Value, nil
	case *parse.BoolLit:
		return e.Value, nil
	case *parse.NullLit:
		return nil, nil
	case *parse.TemplateLit:
		return ev.evalTemplate(ctx, fm, e)
	case *parse.ObjectLit:
		obj := make(map[string]Value, len(e.Pairs))
		for _, p := range e.Pairs {
			v, err := ev.evalExpr(ctx, fm, p.Value)
			if err != nil {
				return nil, err
			}
			obj[p.Key] = v
		}
		return obj, nil
	case *parse.ArrayLit:
		arr := make([]Value, 0, len(e.Elements))
		for _, el := range e.Elements {
			v, err := ev.evalExpr(ctx, fm, el)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case *parse.SubExpr:
		return ev.evalSubExpr(ctx, fm, e)
	case *parse.BinaryExpr:
		return ev.evalBinary(ctx, fm, e)
	case *parse.UnaryExpr:
		return ev.evalUnary(ctx, fm, e)
	case *parse.CallExpr:
		args, err := ev.evalArgs(ctx, fm, e.Args)
		if err != nil {
			return nil, err
		}
		opts, err := ev.evalOpts(ctx, fm, e.Opts)
		if err != nil {
			return nil, err
		}
		return ev.call(ctx, fm, e.Name, args, opts, e)
	}
	return nil, ev.errorf(fm, e, "bug: unknown expression type %T", e)
}

// lookupRef reads a $name[.path] reference. An unbound or forgotten name
// reads as null, as does a missing path segment.
func (ev *Evaler) lookupRef(fm *frame, ref *parse.VarRef) (Value, bool) {
	v, ok := fm.lookup(ref.Name)
	if !ok {
		return nil, false
	}
	for _, seg := range ref.Path {
		v = index(v, seg)
	}
	return v, true
}

// evalSubExpr runs a $( ... ) statement list in a fresh transparent frame and
// yields its last-value. The inner frame inherits the current last-value, so
// $ still refers to the surrounding chain at the start of the subexpression.
func (ev *Evaler) evalSubExpr(ctx context.Context, fm *frame, e *parse.SubExpr) (Value, error) {
	sf := newFrame(transparentFrame, fm)
	sf.last = fm.last
	if err := ev.execChunk(ctx, sf, e.Body); err != nil {
		return nil, err
	}
	return sf.last, nil
}

func (ev *Evaler) evalTemplate(ctx context.Context, fm *frame, e *parse.TemplateLit) (Value, error) {
	var sb strings.Builder
	for _, seg := range e.Segments {
		if txt, ok := seg.(*parse.TemplateText); ok {
			sb.WriteString(txt.Text)
			continue
		}
		v, err := ev.evalExpr(ctx, fm, seg.(parse.Expr))
		if err != nil {
			return nil, err
		}
		sb.WriteString(ToString(v))
	}
	return sb.String(), nil
}

func (ev *Evaler) evalBinary(ctx context.Context, fm *frame, e *parse.BinaryExpr) (Value, error) {
	// and/or short-circuit and yield the deciding operand.
	if e.Op == "and" || e.Op == "or" {
		lhs, err := ev.evalExpr(ctx, fm, e.LHS)
		if err != nil {
			return nil, err
		}
		if (e.Op == "and") != Bool(lhs) {
			return lhs, nil
		}
		return ev.evalExpr(ctx, fm, e.RHS)
	}
	lhs, err := ev.evalExpr(ctx, fm, e.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ev.evalExpr(ctx, fm, e.RHS)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "==":
		return equal(lhs, rhs), nil
	case "!=":
		return !equal(lhs, rhs), nil
	case "<", "<=", ">", ">=":
		return ev.compare(fm, e, lhs, rhs)
	case "+":
		if ls, ok := lhs.(string); ok {
			return ls + ToString(rhs), nil
		}
		if rs, ok := rhs.(string); ok {
			return ToString(lhs) + rs, nil
		}
	}
	ln, lok := lhs.(float64)
	rn, rok := rhs.(float64)
	if !lok || !rok {
		return nil, ev.errorf(fm, e, "operator %q needs numbers, got %s and %s",
			e.Op, TypeOf(lhs), TypeOf(rhs))
	}
	switch e.Op {
	case "+":
		return ln + rn, nil
	case "-":
		return ln - rn, nil
	case "*":
		return ln * rn, nil
	case "/":
		if rn == 0 {
			return nil, ev.errorf(fm, e, "division by zero")
		}
		return ln / rn, nil
	case "%":
		if rn == 0 {
			return nil, ev.errorf(fm, e, "division by zero")
		}
		return math.Mod(ln, rn), nil
	}
	return nil, ev.errorf(fm, e, "bug: unknown operator %q", e.Op)
}

func (ev *Evaler) compare(fm *frame, e *parse.BinaryExpr, lhs, rhs Value) (Value, error) {
	var cmp int
	switch l := lhs.(type) {
	case float64:
		r, ok := rhs.(float64)
		if !ok {
			return nil, ev.errorf(fm, e, "cannot compare number with %s", TypeOf(rhs))
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		}
	case string:
		r, ok := rhs.(string)
		if !ok {
			return nil, ev.errorf(fm, e, "cannot compare string with %s", TypeOf(rhs))
		}
		cmp = strings.Compare(l, r)
	default:
		return nil, ev.errorf(fm, e, "cannot compare %s values", TypeOf(lhs))
	}
	switch e.Op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	}
	return cmp >= 0, nil
}

func (ev *Evaler) evalUnary(ctx context.Context, fm *frame, e *parse.UnaryExpr) (Value, error) {
	v, err := ev.evalExpr(ctx, fm, e.Operand)
	if err != nil {
		return nil, err
	}
	if e.Op == "not" {
		return !Bool(v), nil
	}
	n, ok := v.(float64)
	if !ok {
		return nil, ev.errorf(fm, e, "cannot negate a %s", TypeOf(v))
	}
	return -n, nil
}
