// Package eval handles the execution of RobinPath programs: a tree walker
// over the parse package's syntax tree, with a frame stack for scoping, a
// last-value register, and a cooperative scheduler for together blocks.
package eval

import (
	"context"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/robinpath/robinpath/pkg/diag"
	"github.com/robinpath/robinpath/pkg/parse"
)

// Evaler provides a facility for evaluating parsed programs against one
// environment. It is not safe for concurrent use; the thread façade forks one
// Evaler per session instead.
type Evaler struct {
	env   *Environment
	root  *frame
	sched *scheduler
	warn  io.Writer
}

// NewEvaler creates a new Evaler with the built-in decorators registered.
func NewEvaler() *Evaler {
	ev := &Evaler{
		env:   NewEnvironment(),
		root:  newFrame(transparentFrame, nil),
		sched: &scheduler{},
		warn:  os.Stderr,
	}
	registerBuiltinDecorators(ev.env)
	return ev
}

// Env returns the evaler's environment.
func (ev *Evaler) Env() *Environment { return ev.env }

// SetWarnOut redirects the warnings the event dispatcher logs for throwing
// handlers. Defaults to stderr.
func (ev *Evaler) SetWarnOut(w io.Writer) { ev.warn = w }

// Fork returns an Evaler with private variables, functions, event handlers
// and last-value over the same shared builtins, decorators and metadata.
func (ev *Evaler) Fork() *Evaler {
	return &Evaler{
		env:   ev.env.fork(),
		root:  newFrame(transparentFrame, nil),
		sched: &scheduler{},
		warn:  ev.warn,
	}
}

// SetGlobal binds a global variable.
func (ev *Evaler) SetGlobal(name string, v Value) { ev.root.locals[name] = v }

// Global reads a global variable.
func (ev *Evaler) Global(name string) (Value, bool) { return ev.root.lookup(name) }

// SetConstant binds a global that assignment statements refuse to overwrite.
func (ev *Evaler) SetConstant(name string, v Value) {
	ev.root.locals[name] = v
	ev.env.constants[name] = true
}

// LastValue returns the current top-level last-value register.
func (ev *Evaler) LastValue() Value { return ev.root.last }

// Eval evaluates a parsed program. Function definitions and event handlers
// extracted by the parser are registered up front so forward references work;
// the returned value is the program's final last-value.
func (ev *Evaler) Eval(ctx context.Context, tree parse.Tree) (Value, error) {
	ev.root.src = tree.Source
	for _, def := range tree.Functions {
		ev.env.fns[def.Name] = &FnDef{
			Name: def.Name, Params: def.Params, Body: def.Body, Src: tree.Source,
		}
	}
	for _, on := range tree.Handlers {
		ev.env.handlers[on.Event] = append(ev.env.handlers[on.Event],
			&handler{body: on.Body, src: tree.Source})
	}

	ev.sched.acquire()
	defer ev.sched.release()
	if err := ev.execChunk(ctx, ev.root, tree.Root); err != nil {
		if f, ok := asFlow(err); ok {
			return nil, ev.errorf(ev.root, tree.Root, "%s", f.Error())
		}
		return nil, err
	}
	return ev.root.last, nil
}

func (ev *Evaler) execChunk(ctx context.Context, fm *frame, c *parse.Chunk) error {
	for _, st := range c.Statements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ev.execStmt(ctx, fm, st); err != nil {
			return err
		}
	}
	return nil
}

func (ev *Evaler) execStmt(ctx context.Context, fm *frame, st parse.Statement) error {
	switch st := st.(type) {
	case *parse.CommandStmt:
		return ev.execCommand(ctx, fm, st)
	case *parse.AssignStmt:
		return ev.execAssign(ctx, fm, st)
	case *parse.InlineIfStmt:
		return ev.execInlineIf(ctx, fm, st)
	case *parse.IfStmt:
		return ev.execIf(ctx, fm, st)
	case *parse.IfTrueStmt:
		if Bool(fm.last) != st.Negate {
			return ev.execStmt(ctx, fm, st.Body)
		}
		return nil
	case *parse.DefStmt:
		return ev.execDef(ctx, fm, st)
	case *parse.DoStmt:
		return ev.execDo(ctx, fm, st)
	case *parse.TogetherStmt:
		return ev.execTogether(ctx, fm, st)
	case *parse.ForStmt:
		return ev.execFor(ctx, fm, st)
	case *parse.ReturnStmt:
		val := fm.last
		if st.Value != nil {
			var err error
			val, err = ev.evalExpr(ctx, fm, st.Value)
			if err != nil {
				return err
			}
		}
		return &flowError{kind: flowReturn, val: val}
	case *parse.BreakStmt:
		return &flowError{kind: flowBreak}
	case *parse.ContinueStmt:
		return &flowError{kind: flowContinue}
	case *parse.OnStmt:
		// Handlers are registered from the parser's side collection before
		// execution starts; the statement itself is inert.
		return nil
	case *parse.UseStmt:
		if !ev.env.HasModule(st.Module) {
			return ev.errorf(fm, st, "unknown module %q", st.Module)
		}
		ev.env.currentModule = st.Module
		return nil
	case *parse.CommentStmt:
		return nil
	}
	return ev.errorf(fm, st, "bug: unknown statement type %T", st)
}

func (ev *Evaler) execCommand(ctx context.Context, fm *frame, st *parse.CommandStmt) error {
	if special, ok := specialForms[st.Name]; ok {
		if st.Into == nil {
			return special(ev, ctx, fm, st)
		}
		// Route the special form's result into the capture target and keep
		// the last-value register untouched, as into does for ordinary calls.
		saved := fm.last
		if err := special(ev, ctx, fm, st); err != nil {
			return err
		}
		val := fm.last
		fm.last = saved
		return ev.assignRef(fm, st.Into, val)
	}
	args, err := ev.evalArgs(ctx, fm, st.Args)
	if err != nil {
		return err
	}
	opts, err := ev.evalOpts(ctx, fm, st.Opts)
	if err != nil {
		return err
	}
	args, err = ev.fireDecorators(ctx, fm, st, st.Name, nil, args)
	if err != nil {
		return err
	}
	val, err := ev.call(ctx, fm, st.Name, args, opts, st)
	if err != nil {
		return err
	}
	if st.Callback != nil {
		cb := newFrame(transparentFrame, fm)
		cb.last = val
		if st.CallbackKind == "with" {
			cb.locals["1"] = val
		}
		if err := ev.execChunk(ctx, cb, st.Callback); err != nil {
			return err
		}
		val = cb.last
	}
	if st.Into != nil {
		return ev.assignRef(fm, st.Into, val)
	}
	fm.last = val
	return nil
}

// call invokes a user function or builtin by name. Pending results are
// awaited in place, releasing the scheduler baton for the duration.
func (ev *Evaler) call(ctx context.Context, fm *frame, name string,
	args []Value, opts map[string]Value, at diag.Ranger) (Value, error) {

	builtin, def, _, ok := ev.env.resolve(name)
	if !ok {
		return nil, ev.errorf(fm, at, "unknown command %q", name)
	}
	if def != nil {
		return ev.callFn(ctx, fm, def, args, opts, at)
	}
	if len(opts) > 0 {
		args = append(args, opts)
	}
	val, err := builtin(ctx, args)
	if err != nil {
		return nil, ev.wrap(fm, at, err)
	}
	if p, ok := val.(Pending); ok {
		val, err = ev.await(ctx, p)
		if err != nil {
			return nil, ev.wrap(fm, at, err)
		}
	}
	return val, nil
}

func (ev *Evaler) callFn(ctx context.Context, fm *frame, def *FnDef,
	args []Value, opts map[string]Value, at diag.Ranger) (Value, error) {

	cf := newFrame(functionFrame, fm)
	cf.src = def.Src
	for i, p := range def.Params {
		if i < len(args) {
			cf.locals[p] = args[i]
		} else {
			cf.locals[p] = nil
		}
	}
	for i, a := range args {
		cf.locals[strconv.Itoa(i+1)] = a
	}
	for _, p := range def.Params {
		if v, ok := opts[p]; ok {
			cf.locals[p] = v
		}
	}
	err := ev.execChunk(ctx, cf, def.Body)
	if err != nil {
		if f, ok := asFlow(err); ok {
			if f.kind == flowReturn {
				return f.val, nil
			}
			return nil, ev.errorf(fm, at, "%s", f.Error())
		}
		return nil, ev.wrap(fm, at, err)
	}
	return cf.last, nil
}

// await releases the baton while a pending result resolves, then rejoins the
// run queue at the tail.
func (ev *Evaler) await(ctx context.Context, p Pending) (Value, error) {
	ev.sched.release()
	val, err := p.Await(ctx)
	ev.sched.acquire()
	return val, err
}

func (ev *Evaler) execAssign(ctx context.Context, fm *frame, st *parse.AssignStmt) error {
	val, err := ev.evalExpr(ctx, fm, st.Value)
	if st.Fallback != nil && (err != nil || val == nil) {
		val, err = ev.evalExpr(ctx, fm, st.Fallback)
	}
	if err != nil {
		return err
	}
	if len(st.Decorators) > 0 {
		if _, err := ev.fireDecorators(ctx, fm, st, st.Target.Name, nil, []Value{val}); err != nil {
			return err
		}
	}
	if ev.env.constants[st.Target.Name] {
		return ev.errorf(fm, st, "cannot assign to constant $%s", st.Target.Name)
	}
	if err := ev.assignRef(fm, st.Target, val); err != nil {
		return err
	}
	fm.last = val
	return nil
}

// assignRef writes through a $name[.path] reference. Missing containers on
// the path are created as objects.
func (ev *Evaler) assignRef(fm *frame, ref *parse.VarRef, val Value) error {
	if len(ref.Path) == 0 {
		fm.assign(ref.Name, val)
		return nil
	}
	root, ok := fm.lookup(ref.Name)
	if !ok || root == nil {
		root = make(map[string]Value)
		fm.assign(ref.Name, root)
	}
	cur := root
	for _, seg := range ref.Path[:len(ref.Path)-1] {
		next, err := ev.step(fm, ref, cur, seg)
		if err != nil {
			return err
		}
		cur = next
	}
	return ev.setIndex(fm, ref, cur, ref.Path[len(ref.Path)-1], val)
}

func (ev *Evaler) step(fm *frame, ref *parse.VarRef, container Value, seg string) (Value, error) {
	switch c := container.(type) {
	case map[string]Value:
		if next, ok := c[seg]; ok && next != nil {
			return next, nil
		}
		next := make(map[string]Value)
		c[seg] = next
		return next, nil
	case []Value:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, ev.errorf(fm, ref, "index %q out of range in $%s", seg, ref.Name)
		}
		if c[i] == nil {
			c[i] = make(map[string]Value)
		}
		return c[i], nil
	}
	return nil, ev.errorf(fm, ref, "cannot index a %s in $%s", TypeOf(container), ref.Name)
}

func (ev *Evaler) setIndex(fm *frame, ref *parse.VarRef, container Value, seg string, val Value) error {
	switch c := container.(type) {
	case map[string]Value:
		c[seg] = val
		return nil
	case []Value:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return ev.errorf(fm, ref, "index %q out of range in $%s", seg, ref.Name)
		}
		c[i] = val
		return nil
	}
	return ev.errorf(fm, ref, "cannot index a %s in $%s", TypeOf(container), ref.Name)
}

func (ev *Evaler) execInlineIf(ctx context.Context, fm *frame, st *parse.InlineIfStmt) error {
	cond, err := ev.evalExpr(ctx, fm, st.Cond)
	if err != nil {
		return err
	}
	if Bool(cond) {
		return ev.execStmt(ctx, fm, st.Then)
	}
	if st.Else != nil {
		return ev.execStmt(ctx, fm, st.Else)
	}
	return nil
}

func (ev *Evaler) execIf(ctx context.Context, fm *frame, st *parse.IfStmt) error {
	for _, br := range st.Branches {
		cond, err := ev.evalExpr(ctx, fm, br.Cond)
		if err != nil {
			return err
		}
		if Bool(cond) {
			// The chosen branch runs in the same frame; if introduces no
			// scope.
			return ev.execChunk(ctx, fm, br.Body)
		}
	}
	if st.ElseBody != nil {
		return ev.execChunk(ctx, fm, st.ElseBody)
	}
	return nil
}

func (ev *Evaler) execDef(ctx context.Context, fm *frame, st *parse.DefStmt) error {
	def := &FnDef{Name: st.Name, Params: st.Params, Body: st.Body, Src: fm.src}
	ev.env.fns[st.Name] = def
	if len(st.Decorators) > 0 {
		if _, err := ev.fireDecorators(ctx, fm, st, st.Name, def, nil); err != nil {
			return err
		}
	}
	return nil
}

func (ev *Evaler) doFrame(fm *frame, st *parse.DoStmt) *frame {
	if len(st.Params) == 0 {
		return newFrame(transparentFrame, fm)
	}
	bf := newFrame(isolatedFrame, fm)
	for _, p := range st.Params {
		bf.locals[p] = nil
	}
	return bf
}

func (ev *Evaler) execDo(ctx context.Context, fm *frame, st *parse.DoStmt) error {
	bf := ev.doFrame(fm, st)
	if err := ev.execChunk(ctx, bf, st.Body); err != nil {
		return err
	}
	if st.Into != nil {
		return ev.assignRef(fm, st.Into, bf.last)
	}
	fm.last = bf.last
	return nil
}

func (ev *Evaler) execFor(ctx context.Context, fm *frame, st *parse.ForStmt) error {
	iter, err := ev.evalExpr(ctx, fm, st.Iterable)
	if err != nil {
		return err
	}
	var items []Value
	switch iter := iter.(type) {
	case []Value:
		items = iter
	case string:
		for _, r := range iter {
			items = append(items, string(r))
		}
	default:
		return ev.errorf(fm, st.Iterable, "cannot iterate a %s", TypeOf(iter))
	}
	for _, item := range items {
		// The loop variable lives in the enclosing frame, so loop-carried
		// mutation stays visible.
		fm.assign(st.VarName, item)
		err := ev.execChunk(ctx, fm, st.Body)
		if err != nil {
			if f, ok := asFlow(err); ok {
				if f.kind == flowBreak {
					return nil
				}
				if f.kind == flowContinue {
					continue
				}
			}
			return err
		}
	}
	return nil
}

// execTogether runs the blocks as cooperatively scheduled tasks. One queue
// ticket per block is reserved up front, so blocks start in source order and
// synchronous blocks also finish in source order; a block only loses the
// baton at a Pending await. A failed block does not cancel its siblings; the
// first failure is reported after all blocks finish.
func (ev *Evaler) execTogether(ctx context.Context, fm *frame, st *parse.TogetherStmt) error {
	tickets := make([]chan struct{}, len(st.Blocks))
	for i := range st.Blocks {
		tickets[i] = ev.sched.ticket()
	}
	errs := make([]error, len(st.Blocks))
	var wg sync.WaitGroup
	wg.Add(len(st.Blocks))
	for i, b := range st.Blocks {
		go func(i int, b *parse.DoStmt, ticket chan struct{}) {
			defer wg.Done()
			<-ticket
			bf := ev.doFrame(fm, b)
			err := ev.execChunk(ctx, bf, b.Body)
			if err == nil && b.Into != nil {
				err = ev.assignRef(fm, b.Into, bf.last)
			}
			errs[i] = err
			ev.sched.release()
		}(i, b, tickets[i])
	}
	ev.sched.release()
	wg.Wait()
	ev.sched.acquire()
	for i, err := range errs {
		if err == nil {
			continue
		}
		if f, ok := asFlow(err); ok {
			return ev.errorf(fm, st.Blocks[i], "%s", f.Error())
		}
		return err
	}
	return nil
}

func (ev *Evaler) evalArgs(ctx context.Context, fm *frame, args []parse.Expr) ([]Value, error) {
	vals := make([]Value, 0, len(args))
	for _, a := range args {
		v, err := ev.evalExpr(ctx, fm, a)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func (ev *Evaler) evalOpts(ctx context.Context, fm *frame, opts []*parse.NamedArg) (map[string]Value, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	m := make(map[string]Value, len(opts))
	for _, o := range opts {
		v, err := ev.evalExpr(ctx, fm, o.Value)
		if err != nil {
			return nil, err
		}
		m[o.Name] = v
	}
	return m, nil
}
