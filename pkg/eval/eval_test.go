package eval_test

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/robinpath/robinpath/pkg/eval"
	mathmod "github.com/robinpath/robinpath/pkg/eval/mods/math"
	strmod "github.com/robinpath/robinpath/pkg/eval/mods/str"
	"github.com/robinpath/robinpath/pkg/parse"
)

func testEvaler() *eval.Evaler {
	ev := eval.NewEvaler()
	ev.Env().RegisterModule(mathmod.Module())
	ev.Env().RegisterModule(strmod.Module())
	return ev
}

func run(t *testing.T, ev *eval.Evaler, code string) eval.Value {
	t.Helper()
	tree, err := parse.Parse(parse.SourceForTest(code))
	if err != nil {
		t.Fatalf("parse %q: %v", code, err)
	}
	v, err := ev.Eval(context.Background(), tree)
	if err != nil {
		t.Fatalf("eval %q: %v", code, err)
	}
	return v
}

func runErr(t *testing.T, ev *eval.Evaler, code string) error {
	t.Helper()
	tree, err := parse.Parse(parse.SourceForTest(code))
	if err != nil {
		t.Fatalf("parse %q: %v", code, err)
	}
	_, err = ev.Eval(context.Background(), tree)
	if err == nil {
		t.Fatalf("eval %q did not fail", code)
	}
	return err
}

func global(t *testing.T, ev *eval.Evaler, name string) eval.Value {
	t.Helper()
	v, _ := ev.Global(name)
	return v
}

var evalTests = []struct {
	name string
	code string
	want eval.Value
}{
	{"last value chain",
		"math.add 2 3\nmath.multiply $ 4\n", 20.0},
	{"into leaves last value alone",
		"math.add 1 1\nmath.add 2 3 into $x\n$y = $\n", 2.0},
	{"arithmetic precedence",
		"$a = 1 + 2 * 3\n", 7.0},
	{"parenthesized expression",
		"$a = (1 + 2) * 3\n", 9.0},
	{"string concatenation",
		"$a = \"a\" + 1\n", "a1"},
	{"and yields rhs when lhs truthy",
		"$a = 1 < 2 and \"yes\"\n", "yes"},
	{"and yields deciding lhs",
		"$a = 0 and \"yes\"\n", 0.0},
	{"or yields rhs when lhs falsy",
		"$a = false or 5\n", 5.0},
	{"not",
		"$a = not 0\n", true},
	{"unary minus",
		"$a = -3 + 5\n", 2.0},
	{"equality",
		"$a = 1 == 1\n", true},
	{"string comparison",
		"$a = \"b\" > \"a\"\n", true},
	{"unbound variable reads null",
		"getType $nope\n", "null"},
	{"missing path reads null",
		"$o = {a: 1}\ngetType $o.b.c\n", "null"},
	{"template interpolation",
		"$n = 3\n$s = `n is ${$n + 1}!`\n", "n is 4!"},
	{"subexpression",
		"$x = $(math.add 1 2; math.add $ 10)\n", 13.0},
	{"subexpression inherits last value",
		"math.add 20 1\n$x = $(math.add $ 2)\n", 23.0},
	{"inline if",
		"math.add 1 1\nif $ == 2 then $r = \"y\" else $r = \"n\"\n", "y"},
	{"iftrue",
		"math.add 1 1\niftrue $r = \"big\"\n", "big"},
	{"iffalse",
		"clear\niffalse $r = \"ran\"\n", "ran"},
	{"object path assignment",
		"$o = {a: 1, b: [1, 2, 3]}\n$o.b.1 = 9\n$x = $o.b.1\n", 9.0},
	{"auto-created object path",
		"$q.a.b = 5\n$y = $q.a.b\n", 5.0},
	{"set with fallback",
		"set $v $undef \"fallback\"\n", "fallback"},
	{"set as",
		"set $v as 5\n", 5.0},
	{"function return",
		"def double $n\n  return $n * 2\nenddef\ndouble 7\n", 14.0},
	{"function returns its last value",
		"def f\n  math.add 1 2\nenddef\nf\n", 3.0},
	{"forward reference",
		"first\ndef first\n  return \"ok\"\nenddef\n", "ok"},
	{"function sees globals",
		"$g = 100\ndef addg $n\n  return $n + $g\nenddef\naddg 1\n", 101.0},
	{"function skips intermediate frames",
		"def outer\n  $local = 5\n  inner\nenddef\ndef inner\n  getType $local\nenddef\nouter\n",
		"null"},
	{"positional parameters",
		"def pick\n  return $2\nenddef\npick \"a\" \"b\"\n", "b"},
	{"named argument matches parameter",
		"def greet $name\n  return \"hi \" + $name\nenddef\ngreet(name=\"bob\")\n", "hi bob"},
	{"recursion",
		"def fib $n\n  if $n < 2\n    return $n\n  endif\n" +
			"  fib($n - 1) into $a\n  fib($n - 2) into $b\n  return $a + $b\nenddef\nfib 10\n",
		55.0},
	{"isolated do block",
		"$x = 10\ndo $p\n  getType $x\nenddo\n", "null"},
	{"do into",
		"do into $r\n  math.add 2 2\nenddo\n$a = $r\n", 4.0},
	{"with callback binds the result",
		"math.add 2 3 with\n  math.add $1 10\nendwith\n", 15.0},
	{"do callback chains the last value",
		"math.add 2 3 do\n  math.multiply $ 2\nenddo\n", 10.0},
	{"use selects a module",
		"use math\nadd 2 3\n", 5.0},
	{"qualified builtin",
		"str.upper \"abc\"\n", "ABC"},
	{"bare name resolved by suffix",
		"upper \"abc\"\n", "ABC"},
	{"clear resets last value",
		"math.add 1 1\nclear\n$y = $\n", nil},
}

func TestEval(t *testing.T) {
	for _, test := range evalTests {
		t.Run(test.name, func(t *testing.T) {
			got := run(t, testEvaler(), test.code)
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("eval %q -> %v (%s), want %v (%s)", test.code,
					got, eval.TypeOf(got), test.want, eval.TypeOf(test.want))
			}
		})
	}
}

func TestEval_TransparentDoWritesThrough(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$x = 1\ndo\n  $x = 2\nenddo\n")
	if got := global(t, ev, "x"); got != 2.0 {
		t.Errorf("$x = %v, want 2", got)
	}
}

func TestEval_ForgetIsLocal(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$x = 10\n$t = \"\"\ndo\n  forget $x\n  getType $x into $t\nenddo\n")
	if got := global(t, ev, "t"); got != "null" {
		t.Errorf("$t = %v, want null: forget did not hide the binding", got)
	}
	if got := global(t, ev, "x"); got != 10.0 {
		t.Errorf("$x = %v, want 10: forget leaked out of the block", got)
	}
}

func TestEval_ForLoop(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$sum = 0\nfor $i in range 1 5\n  $sum = $sum + $i\nendfor\n")
	if got := global(t, ev, "sum"); got != 15.0 {
		t.Errorf("$sum = %v, want 15", got)
	}
	// The loop variable lives in the enclosing scope.
	if got := global(t, ev, "i"); got != 5.0 {
		t.Errorf("$i = %v, want 5", got)
	}
}

func TestEval_BreakContinue(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$sum = 0\nfor $i in range 1 10\n"+
		"  if $i == 3\n    continue\n  endif\n"+
		"  if $i > 5\n    break\n  endif\n"+
		"  $sum = $sum + $i\nendfor\n")
	if got := global(t, ev, "sum"); got != 12.0 {
		t.Errorf("$sum = %v, want 12", got)
	}
}

func TestEval_FlowOutsideLoop(t *testing.T) {
	err := runErr(t, testEvaler(), "break\n")
	if !strings.Contains(err.Error(), "break outside for loop") {
		t.Errorf("error = %q", err)
	}
}

func TestEval_StringIteration(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$out = \"\"\nfor $c in \"abc\"\n  $out = $out + $c\nendfor\n")
	if got := global(t, ev, "out"); got != "abc" {
		t.Errorf("$out = %v, want abc", got)
	}
}

func TestEval_TogetherSynchronousOrder(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$log = \"\"\ntogether\n"+
		"do\n  $log = $log + \"a\"\nenddo\n"+
		"do\n  $log = $log + \"b\"\nenddo\n"+
		"do\n  $log = $log + \"c\"\nenddo\n"+
		"endtogether\n")
	if got := global(t, ev, "log"); got != "abc" {
		t.Errorf("$log = %v, want abc: blocks did not run in source order", got)
	}
}

func TestEval_TogetherAwaitYields(t *testing.T) {
	ev := testEvaler()
	ev.Env().RegisterModule(eval.Module{
		Name: "task",
		Fns: map[string]eval.BuiltinFn{
			"pause": func(_ context.Context, _ []eval.Value) (eval.Value, error) {
				return eval.Pending{Await: func(ctx context.Context) (eval.Value, error) {
					timer := time.NewTimer(5 * time.Millisecond)
					defer timer.Stop()
					select {
					case <-timer.C:
						return nil, nil
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}}, nil
			},
		},
	})
	run(t, ev, "$log = \"\"\ntogether\n"+
		"do\n  task.pause\n  $log = $log + \"a\"\nenddo\n"+
		"do\n  $log = $log + \"b\"\nenddo\n"+
		"endtogether\n")
	if got := global(t, ev, "log"); got != "ba" {
		t.Errorf("$log = %v, want ba: await did not yield to the next block", got)
	}
}

func TestEval_TogetherInto(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "together\n"+
		"do into $a\n  math.add 1 2\nenddo\n"+
		"do into $b\n  math.add 3 4\nenddo\n"+
		"endtogether\n")
	if got := global(t, ev, "a"); got != 3.0 {
		t.Errorf("$a = %v, want 3", got)
	}
	if got := global(t, ev, "b"); got != 7.0 {
		t.Errorf("$b = %v, want 7", got)
	}
}

func TestEval_EventHandlers(t *testing.T) {
	ev := testEvaler()
	var warnings bytes.Buffer
	ev.SetWarnOut(&warnings)
	run(t, ev, "$log = \"\"\n"+
		"on greet\n  $log = $log + \"h\" + $1\nendon\n"+
		"on greet\n  nosuchcommand\nendon\n"+
		"on greet\n  $log = $log + \"!\"\nendon\n"+
		"trigger greet \"x\"\n")
	if got := global(t, ev, "log"); got != "hx!" {
		t.Errorf("$log = %v, want hx!: a throwing handler blocked the rest", got)
	}
	if !strings.Contains(warnings.String(), "handler error") {
		t.Errorf("warnings = %q, want a handler error report", warnings.String())
	}
}

func TestEval_HostTrigger(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$n = 0\non tick\n  $n = $n + 1\nendon\n")
	ev.Trigger(context.Background(), "tick")
	ev.Trigger(context.Background(), "tick")
	if got := global(t, ev, "n"); got != 2.0 {
		t.Errorf("$n = %v, want 2", got)
	}
}

func TestEval_DecoratorMetadata(t *testing.T) {
	ev := testEvaler()
	got := run(t, ev, "@desc \"Doubles a number\"\n@param $n \"the number\"\n"+
		"def double $n\n  return $n * 2\nenddef\n"+
		"getMeta double description\n")
	if got != "Doubles a number" {
		t.Errorf("description = %v", got)
	}
	params := run(t, ev, "getMeta double params\n")
	want := []eval.Value{map[string]eval.Value{"name": "n", "description": "the number"}}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestEval_SetMeta(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$x = 1\nsetMeta $x note \"kept\"\n")
	if got := run(t, ev, "getMeta $x note\n"); got != "kept" {
		t.Errorf("note = %v, want kept", got)
	}
}

func TestEval_CustomDecoratorReplacesArgs(t *testing.T) {
	ev := testEvaler()
	ev.Env().RegisterDecorator("twice", func(_ *eval.Environment, _ string, _ *eval.FnDef,
		originalArgs, _ []eval.Value, _ []parse.Expr) (eval.Value, error) {
		out := append([]eval.Value{}, originalArgs...)
		return append(out, originalArgs...), nil
	})
	if got := run(t, ev, "@twice\nmath.add 1 2\n"); got != 6.0 {
		t.Errorf("result = %v, want 6", got)
	}
}

func TestEval_UnknownDecorator(t *testing.T) {
	err := runErr(t, testEvaler(), "@nope\nmath.add 1 2\n")
	if !strings.Contains(err.Error(), "unknown decorator") {
		t.Errorf("error = %q", err)
	}
}

func TestEval_Constants(t *testing.T) {
	ev := testEvaler()
	ev.SetConstant("pi", 3.14)
	err := runErr(t, ev, "$pi = 4\n")
	if !strings.Contains(err.Error(), "constant") {
		t.Errorf("error = %q", err)
	}
	if got := global(t, ev, "pi"); got != 3.14 {
		t.Errorf("$pi = %v, want 3.14", got)
	}
}

func TestEval_UnknownModule(t *testing.T) {
	err := runErr(t, testEvaler(), "use nosuch\n")
	if !strings.Contains(err.Error(), "unknown module") {
		t.Errorf("error = %q", err)
	}
}

func TestEval_Has(t *testing.T) {
	ev := testEvaler()
	run(t, ev, "$x = 1\nhas $x into $a\nhas $nope into $b\nhas math.add into $c\n")
	if a := global(t, ev, "a"); a != true {
		t.Errorf("has $x = %v, want true", a)
	}
	if b := global(t, ev, "b"); b != false {
		t.Errorf("has $nope = %v, want false", b)
	}
	if c := global(t, ev, "c"); c != true {
		t.Errorf("has math.add = %v, want true", c)
	}
}

func TestEval_BuiltinNamedArgs(t *testing.T) {
	ev := testEvaler()
	ev.Env().RegisterModule(eval.Module{
		Name: "t",
		Fns: map[string]eval.BuiltinFn{
			"greet": func(_ context.Context, args []eval.Value) (eval.Value, error) {
				name := "world"
				if len(args) > 0 {
					if m, ok := args[len(args)-1].(map[string]eval.Value); ok {
						if s, ok := m["name"].(string); ok {
							name = s
						}
					}
				}
				return "hello " + name, nil
			},
		},
	})
	if got := run(t, ev, "t.greet(name=\"rob\")\n"); got != "hello rob" {
		t.Errorf("result = %v, want hello rob", got)
	}
}

func TestEval_ErrorHasStackTrace(t *testing.T) {
	err := runErr(t, testEvaler(), "def f\n  boom\nenddef\nf\n")
	if !strings.Contains(err.Error(), `unknown command "boom"`) {
		t.Errorf("error = %q", err)
	}
	exc, ok := err.(*eval.Exception)
	if !ok {
		t.Fatalf("error is %T, want *eval.Exception", err)
	}
	if exc.StackTrace == nil || exc.StackTrace.Next == nil {
		t.Error("stack trace does not include the call site")
	}
	if !strings.Contains(exc.Show(""), "Exception") {
		t.Errorf("Show = %q", exc.Show(""))
	}
}

func TestEval_DivisionByZero(t *testing.T) {
	err := runErr(t, testEvaler(), "$a = 1 / 0\n")
	if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("error = %q", err)
	}
}

func TestEval_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree, err := parse.Parse(parse.SourceForTest("math.add 1 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := testEvaler().Eval(ctx, tree); err != context.Canceled {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestEval_ForkIsolation(t *testing.T) {
	base := testEvaler()
	run(t, base, "$x = 1\ndef f\n  return 7\nenddef\n")
	fork := base.Fork()
	if got := run(t, fork, "getType $x\n"); got != "null" {
		t.Errorf("forked $x = %v, want null", got)
	}
	err := runErr(t, fork, "f\n")
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("error = %q, want unknown command", err)
	}
	// Builtins stay shared.
	if got := run(t, fork, "math.add 1 2\n"); got != 3.0 {
		t.Errorf("math.add in fork = %v, want 3", got)
	}
}
