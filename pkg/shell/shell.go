// Package shell is the terminal interface of RobinPath: it runs script
// files, code given with -c, and an interactive read-eval loop that buffers
// input line by line until the parser stops asking for more.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robinpath/robinpath/pkg/diag"
	"github.com/robinpath/robinpath/pkg/eval"
	"github.com/robinpath/robinpath/pkg/eval/mods/math"
	"github.com/robinpath/robinpath/pkg/eval/mods/str"
	"github.com/robinpath/robinpath/pkg/eval/mods/timemod"
	"github.com/robinpath/robinpath/pkg/parse"
	"github.com/robinpath/robinpath/pkg/prog"
	"github.com/robinpath/robinpath/pkg/rewrite"
)

// Program is the shell subprogram. It accepts any invocation, so it goes
// last in the composite.
type Program struct{}

func (p *Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	ev := newEvaler(fds[2])

	var cfg Config
	if f.NoRc {
		cfg = defaultConfig()
	} else {
		var err error
		cfg, err = loadConfig(f.RC)
		if err != nil {
			fmt.Fprintln(fds[2], "warning:", err)
		}
	}
	applyConfig(ev, cfg)

	switch {
	case f.CodeInArg:
		if len(args) != 1 {
			return prog.BadUsage("-c requires exactly one argument")
		}
		return evalCode(ev, fds, parse.Source{Name: "code from -c", Code: args[0]}, f.AST)
	case len(args) == 1:
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		name := filepath.Base(args[0])
		return evalCode(ev, fds, parse.Source{Name: name, Code: string(code)}, f.AST)
	case len(args) > 1:
		return prog.BadUsage("at most one script may be given")
	default:
		return interact(ev, fds, cfg, f)
	}
}

func newEvaler(warn *os.File) *eval.Evaler {
	ev := eval.NewEvaler()
	ev.SetWarnOut(warn)
	env := ev.Env()
	env.RegisterModule(math.Module())
	env.RegisterModule(str.Module())
	env.RegisterModule(timemod.Module())
	return ev
}

func applyConfig(ev *eval.Evaler, cfg Config) {
	for name, v := range cfg.Globals {
		ev.SetGlobal(name, normalizeYAML(v))
	}
	if cfg.CurrentModule != "" && ev.Env().HasModule(cfg.CurrentModule) {
		ev.Env().SetCurrentModule(cfg.CurrentModule)
	}
}

// normalizeYAML maps yaml.v3's decoded forms onto the interpreter's value
// types: numbers become float64, maps become map[string]Value.
func normalizeYAML(v any) eval.Value {
	switch v := v.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case map[string]any:
		out := make(map[string]eval.Value, len(v))
		for k, e := range v {
			out[k] = normalizeYAML(e)
		}
		return out
	case []any:
		out := make([]eval.Value, len(v))
		for i, e := range v {
			out[i] = normalizeYAML(e)
		}
		return out
	}
	return v
}

func evalCode(ev *eval.Evaler, fds [3]*os.File, src parse.Source, astOnly bool) error {
	if astOnly {
		nodes, err := rewrite.GetAST(src, ev.Env())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(fds[1])
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}
	tree, err := parse.Parse(src)
	if err != nil {
		diag.ShowError(fds[2], err)
		return prog.Exit(2)
	}
	if _, err := ev.Eval(context.Background(), tree); err != nil {
		diag.ShowError(fds[2], err)
		return prog.Exit(2)
	}
	return nil
}
