package eval

import (
	"context"
	"strings"

	"github.com/robinpath/robinpath/pkg/parse"
)

// BuiltinFn is the uniform calling convention of host-supplied functions.
// When the call site passes named arguments, they are appended as a trailing
// map[string]Value argument. A BuiltinFn may return a Pending value to mark a
// suspension point.
type BuiltinFn func(ctx context.Context, args []Value) (Value, error)

// DecoratorFn handles a @name annotation when the annotated statement is
// defined. It receives the live environment for metadata writes, the target
// name, the function definition when the target is a function (nil for a
// variable or command), the statement's evaluated arguments, the decorator's
// evaluated arguments, and the decorator's raw argument AST for recovering
// bare $name identifiers. Returning a non-nil []Value replaces the
// statement's arguments.
type DecoratorFn func(env *Environment, target string, def *FnDef,
	originalArgs, decoratorArgs []Value, rawArgs []parse.Expr) (Value, error)

// FnDef is a user-defined function.
type FnDef struct {
	Name   string
	Params []string
	Body   *parse.Chunk
	Src    parse.Source
}

// Module is the registration record of a host module: a flat table of
// functions plus declarative metadata. With Global set, the functions are
// additionally registered unprefixed.
type Module struct {
	Name   string
	Fns    map[string]BuiltinFn
	FnMeta map[string]map[string]Value
	Meta   ModuleMeta
	Global bool
}

// ModuleMeta describes a module for introspection.
type ModuleMeta struct {
	Description string
	Methods     []string
}

// shared is the part of an environment common to every thread of an
// interpreter instance: builtins, decorators and metadata. Thread forks
// share it; variables, user functions and event handlers stay private.
type shared struct {
	builtins   map[string]BuiltinFn
	suffix     map[string][]string
	decorators map[string]DecoratorFn
	fnMeta     map[string]map[string]Value
	varMeta    map[string]map[string]Value
	modMeta    map[string]ModuleMeta
}

// Environment is the registry an executor runs against.
type Environment struct {
	*shared
	fns           map[string]*FnDef
	handlers      map[string][]*handler
	constants     map[string]bool
	currentModule string
}

type handler struct {
	body *parse.Chunk
	src  parse.Source
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		shared: &shared{
			builtins:   make(map[string]BuiltinFn),
			suffix:     make(map[string][]string),
			decorators: make(map[string]DecoratorFn),
			fnMeta:     make(map[string]map[string]Value),
			varMeta:    make(map[string]map[string]Value),
			modMeta:    make(map[string]ModuleMeta),
		},
		fns:       make(map[string]*FnDef),
		handlers:  make(map[string][]*handler),
		constants: make(map[string]bool),
	}
}

// fork returns an environment with a fresh private slice over the same shared
// registries. Backs the thread façade.
func (env *Environment) fork() *Environment {
	return &Environment{
		shared:    env.shared,
		fns:       make(map[string]*FnDef),
		handlers:  make(map[string][]*handler),
		constants: make(map[string]bool),
	}
}

// RegisterModule installs a module's functions under "name.fn". The suffix
// index records each bare function name in registration order; bare-name
// resolution falls back to the first registration.
func (env *Environment) RegisterModule(m Module) {
	for name, fn := range m.Fns {
		qualified := m.Name + "." + name
		if _, ok := env.builtins[qualified]; !ok {
			env.suffix[name] = append(env.suffix[name], qualified)
		}
		env.builtins[qualified] = fn
		if m.Global {
			env.builtins[name] = fn
		}
		if meta, ok := m.FnMeta[name]; ok {
			env.fnMeta[qualified] = meta
		}
	}
	env.modMeta[m.Name] = m.Meta
}

// RegisterDecorator installs a decorator handler under @name.
func (env *Environment) RegisterDecorator(name string, fn DecoratorFn) {
	env.decorators[name] = fn
}

// HasModule reports whether a module of that name has been registered.
func (env *Environment) HasModule(name string) bool {
	if _, ok := env.modMeta[name]; ok {
		return true
	}
	prefix := name + "."
	for qualified := range env.builtins {
		if strings.HasPrefix(qualified, prefix) {
			return true
		}
	}
	return false
}

// resolve maps a command name to a builtin or user function. Bare names try,
// in order, the use-selected module, the unqualified registries, and the
// suffix index; qualified names skip resolution.
func (env *Environment) resolve(name string) (BuiltinFn, *FnDef, string, bool) {
	if strings.Contains(name, ".") {
		if fn, ok := env.builtins[name]; ok {
			return fn, nil, name, true
		}
		if def, ok := env.fns[name]; ok {
			return nil, def, name, true
		}
		return nil, nil, "", false
	}
	if env.currentModule != "" {
		qualified := env.currentModule + "." + name
		if fn, ok := env.builtins[qualified]; ok {
			return fn, nil, qualified, true
		}
	}
	if def, ok := env.fns[name]; ok {
		return nil, def, name, true
	}
	if fn, ok := env.builtins[name]; ok {
		return fn, nil, name, true
	}
	if qs := env.suffix[name]; len(qs) > 0 {
		return env.builtins[qs[0]], nil, qs[0], true
	}
	return nil, nil, "", false
}

// ResolveModule returns the module prefix a bare name resolves to, or "" for
// an unqualified user function or global.
func (env *Environment) ResolveModule(name string) string {
	return env.ResolveModuleIn(name, env.currentModule)
}

// ResolveModuleIn is ResolveModule with an explicit module cursor. The AST
// exporter tracks use statements in the exported source itself and passes the
// cursor in, leaving the environment's own cursor alone.
func (env *Environment) ResolveModuleIn(name, cursor string) string {
	if i := strings.Index(name, "."); i >= 0 {
		if _, ok := env.builtins[name]; ok {
			return name[:i]
		}
		return ""
	}
	if cursor != "" {
		if _, ok := env.builtins[cursor+"."+name]; ok {
			return cursor
		}
	}
	if _, ok := env.fns[name]; ok {
		return ""
	}
	if _, ok := env.builtins[name]; ok {
		return ""
	}
	if qs := env.suffix[name]; len(qs) > 0 {
		return qs[0][:strings.Index(qs[0], ".")]
	}
	return ""
}

// SetCurrentModule sets the module cursor consulted by bare-name resolution,
// as the use statement does.
func (env *Environment) SetCurrentModule(name string) { env.currentModule = name }

func (env *Environment) metaMap(fnTarget bool, target string) map[string]Value {
	maps := env.varMeta
	if fnTarget {
		maps = env.fnMeta
	}
	m, ok := maps[target]
	if !ok {
		m = make(map[string]Value)
		maps[target] = m
	}
	return m
}

func (env *Environment) getMeta(target string) (map[string]Value, bool) {
	if m, ok := env.fnMeta[target]; ok {
		return m, true
	}
	m, ok := env.varMeta[target]
	return m, ok
}
