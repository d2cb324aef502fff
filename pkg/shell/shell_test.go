package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robinpath/robinpath/pkg/eval"
	"github.com/robinpath/robinpath/pkg/parse"
	"github.com/robinpath/robinpath/pkg/prog"
	"github.com/robinpath/robinpath/pkg/rewrite"
	"github.com/robinpath/robinpath/pkg/store"
)

func TestNormalizeYAML(t *testing.T) {
	tests := []struct {
		in   any
		want eval.Value
	}{
		{1, 1.0},
		{int64(2), 2.0},
		{1.5, 1.5},
		{"s", "s"},
		{true, true},
		{nil, nil},
		{
			map[string]any{"n": 1, "l": []any{1, "a"}},
			map[string]eval.Value{"n": 1.0, "l": []eval.Value{1.0, "a"}},
		},
	}
	for _, test := range tests {
		if diff := cmp.Diff(test.want, normalizeYAML(test.in)); diff != "" {
			t.Errorf("normalizeYAML(%v) (-want +got):\n%s", test.in, diff)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rc.yaml")
	rc := "prompt: '> '\nglobals:\n  greeting: hi\n  retries: 3\n"
	if err := os.WriteFile(path, []byte(rc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Prompt != "> " {
		t.Errorf("Prompt = %q, want %q", cfg.Prompt, "> ")
	}
	// Fields the file leaves out keep their defaults.
	if cfg.ContPrompt != defaultConfig().ContPrompt {
		t.Errorf("ContPrompt = %q, want default", cfg.ContPrompt)
	}
	if got := normalizeYAML(cfg.Globals["retries"]); got != 3.0 {
		t.Errorf("globals.retries = %v, want 3", got)
	}
}

func TestLoadConfig_ExplicitMissing(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing explicit config file did not fail")
	}
}

func TestApplyConfig(t *testing.T) {
	ev := newEvaler(devnull(t))
	applyConfig(ev, Config{Globals: map[string]any{"retries": 3}})
	tree, err := parse.Parse(parse.Source{Name: "t", Code: "math.add $retries 1\n"})
	if err != nil {
		t.Fatal(err)
	}
	val, err := ev.Eval(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}
	if val != 4.0 {
		t.Errorf("got %v, want 4 from configured global", val)
	}
}

func TestEvalCode(t *testing.T) {
	ev := newEvaler(devnull(t))
	err := evalCode(ev, devnullFds(t),
		parse.Source{Name: "t", Code: "$x = 1\n"}, false)
	if err != nil {
		t.Errorf("evalCode: %v", err)
	}
}

func TestEvalCode_AST(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	fds := devnullFds(t)
	fds[1] = w

	ev := newEvaler(devnull(t))
	src := parse.Source{Name: "t", Code: "use math\nadd 1 2\n"}
	if err := evalCode(ev, fds, src, true); err != nil {
		t.Fatalf("evalCode -ast: %v", err)
	}
	w.Close()

	var nodes []*rewrite.Node
	if err := json.NewDecoder(r).Decode(&nodes); err != nil {
		t.Fatalf("decoding tree: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
	if got := nodes[1].Props["module"]; got != "math" {
		t.Errorf("module annotation = %v, want math", got)
	}
}

func TestEvalCode_Errors(t *testing.T) {
	ev := newEvaler(devnull(t))
	for _, code := range []string{
		"$x =\n",          // does not parse
		"nosuchcommand\n", // does not evaluate
	} {
		err := evalCode(ev, devnullFds(t), parse.Source{Name: "t", Code: code}, false)
		if err == nil {
			t.Errorf("evalCode(%q) did not fail", code)
			continue
		}
		// The diagnostic is already shown; the error only carries the status.
		if err.Error() != "" {
			t.Errorf("evalCode(%q) error = %q, want silent exit error", code, err.Error())
		}
	}
}

func TestProgram(t *testing.T) {
	p := &Program{}
	f := &prog.Flags{CodeInArg: true, NoRc: true}
	if err := p.Run(devnullFds(t), f, []string{"$x = 1"}); err != nil {
		t.Errorf("-c: %v", err)
	}

	if err := p.Run(devnullFds(t), f, nil); err == nil {
		t.Error("-c without code did not fail")
	}
}

func TestProgram_ScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.rp")
	if err := os.WriteFile(path, []byte("$x = 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := &Program{}
	f := &prog.Flags{NoRc: true}
	if err := p.Run(devnullFds(t), f, []string{path}); err != nil {
		t.Errorf("running script file: %v", err)
	}
	if err := p.Run(devnullFds(t), f, []string{path, path}); err == nil {
		t.Error("two script arguments did not fail")
	}
}

// countingEvaler returns an evaler with a rec.hit builtin that counts its
// calls, for observing how often the loop evaluates a buffered unit.
func countingEvaler(t *testing.T, calls *int) *eval.Evaler {
	t.Helper()
	ev := newEvaler(devnull(t))
	ev.Env().RegisterModule(eval.Module{
		Name: "rec",
		Fns: map[string]eval.BuiltinFn{
			"hit": func(context.Context, []eval.Value) (eval.Value, error) {
				*calls++
				return float64(*calls), nil
			},
		},
	})
	return ev
}

func TestRepl_BuffersUntilComplete(t *testing.T) {
	var calls int
	ev := countingEvaler(t, &calls)
	hist, err := store.Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()

	in := strings.NewReader("if true\nrec.hit\nendif\n")
	var out, errOut bytes.Buffer
	if err := repl(ev, in, &out, &errOut, defaultConfig(), hist); err != nil {
		t.Fatalf("repl: %v", err)
	}

	if calls != 1 {
		t.Errorf("buffered block ran %d times, want 1", calls)
	}
	// Continuation prompt while the if block is open, one value echo after
	// endif completes it.
	want := "rp> ... ... ▶ 1\nrp> \n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
	if errOut.Len() != 0 {
		t.Errorf("stderr = %q, want empty", errOut.String())
	}

	// The whole unit lands in the history as one entry.
	cmd, err := hist.Cmd(1)
	if err != nil {
		t.Fatalf("Cmd(1): %v", err)
	}
	if cmd != "if true\nrec.hit\nendif" {
		t.Errorf("history entry = %q, want the full block", cmd)
	}
	if seq, _ := hist.NextCmdSeq(); seq != 2 {
		t.Errorf("history has %d entries, want 1", seq-1)
	}
}

func TestRepl_RecoversFromBadLine(t *testing.T) {
	var calls int
	ev := countingEvaler(t, &calls)

	in := strings.NewReader("$x =\nrec.hit\n")
	var out, errOut bytes.Buffer
	if err := repl(ev, in, &out, &errOut, defaultConfig(), nil); err != nil {
		t.Fatalf("repl: %v", err)
	}

	// The malformed line is reported and dropped; the next line starts a
	// fresh unit.
	if errOut.Len() == 0 {
		t.Error("malformed line produced no diagnostic")
	}
	if calls != 1 {
		t.Errorf("rec.hit ran %d times, want 1", calls)
	}
	want := "rp> rp> ▶ 1\nrp> \n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func devnull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func devnullFds(t *testing.T) [3]*os.File {
	t.Helper()
	f := devnull(t)
	return [3]*os.File{f, f, f}
}
