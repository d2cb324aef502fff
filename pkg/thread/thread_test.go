package thread

import (
	"context"
	"strings"
	"testing"

	"github.com/robinpath/robinpath/pkg/eval"
	mathmod "github.com/robinpath/robinpath/pkg/eval/mods/math"
)

func newBase() *eval.Evaler {
	ev := eval.NewEvaler()
	ev.Env().RegisterModule(mathmod.Module())
	return ev
}

func mustRun(t *testing.T, th *Thread, code string) eval.Value {
	t.Helper()
	v, err := th.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("thread %s: eval %q: %v", th.Name(), code, err)
	}
	return v
}

func TestThreadIsolation(t *testing.T) {
	base := newBase()
	a := New("a", base)
	b := New("b", base)

	mustRun(t, a, "$x = 1\ndef seven\n  return 7\nenddef\n")

	// Variables and functions stay private to the thread that made them.
	if got := mustRun(t, b, "getType $x\n"); got != "null" {
		t.Errorf("$x in b = %v, want null", got)
	}
	if _, err := b.Run(context.Background(), "seven\n"); err == nil ||
		!strings.Contains(err.Error(), "unknown command") {
		t.Errorf("calling a's function in b: err = %v, want unknown command", err)
	}
	if got := mustRun(t, a, "seven\n"); got != 7.0 {
		t.Errorf("seven in a = %v, want 7", got)
	}

	// Builtins are shared through the common environment.
	if got := mustRun(t, b, "math.add 1 2\n"); got != 3.0 {
		t.Errorf("math.add in b = %v, want 3", got)
	}
}

func TestThreadLastValue(t *testing.T) {
	th := New("a", newBase())
	mustRun(t, th, "math.add 20 22\n")
	if got := th.LastValue(); got != 42.0 {
		t.Errorf("LastValue = %v, want 42", got)
	}
}

func TestThreadEventsPrivate(t *testing.T) {
	base := newBase()
	a := New("a", base)
	b := New("b", base)
	mustRun(t, a, "$n = 0\non tick\n  $n = $n + 1\nendon\n")
	mustRun(t, b, "$n = 0\ntrigger tick\n")
	if got := mustRun(t, a, "$r = $n\n"); got != 0.0 {
		t.Errorf("a's $n = %v, want 0: b's trigger reached a's handler", got)
	}
}

func TestThreadParseError(t *testing.T) {
	th := New("a", newBase())
	if _, err := th.Run(context.Background(), "$x =\n"); err == nil {
		t.Error("malformed code did not fail")
	}
}
