package rewrite_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robinpath/robinpath/pkg/eval"
	mathmod "github.com/robinpath/robinpath/pkg/eval/mods/math"
	"github.com/robinpath/robinpath/pkg/parse"
	"github.com/robinpath/robinpath/pkg/rewrite"
)

func src(code string) parse.Source {
	return parse.Source{Name: "[test]", Code: code}
}

func mustAST(t *testing.T, s parse.Source, r rewrite.Resolver) []*rewrite.Node {
	t.Helper()
	nodes, err := rewrite.GetAST(s, r)
	if err != nil {
		t.Fatalf("GetAST(%q): %v", s.Code, err)
	}
	return nodes
}

func mustUpdate(t *testing.T, s parse.Source, edited []*rewrite.Node) string {
	t.Helper()
	got, err := rewrite.UpdateCode(s, edited)
	if err != nil {
		t.Fatalf("UpdateCode(%q): %v", s.Code, err)
	}
	return got
}

var roundTripSources = []string{
	"math.add 1 2\n",
	"$x = 10 # keep\n$y = \"a b\"\n",
	"$s = `hi ${$name}!`\n$o = {a: 1, b: [1, 2]}\n",
	"if $x > 1 then $r = big else $r = small\n",
	"set $v as 5 0\n",
	"math.add 2 3 with\n  math.multiply $1 2\nendwith\n",
	"print \\\n---\nhello\n---\n",
	"# standalone group\n\n@title \"T\"\n$x = 1\n",
	"together\ndo\n  math.add 1 2\nenddo\ndo $p into $r\n  math.add 3 4\nenddo\nendtogether\n",
	"# greeting script\nuse math\n\n$count = 10 # initial\n" +
		"@desc \"Doubles a number\"\ndef double $n\n  return $n * 2\nenddef\n\n" +
		"if $count > 5\n  double $count into $big\nelse\n  $big = 0\nendif\n\n" +
		"for $i in range 1 3\n  add $i 1\nendfor\n\n" +
		"on \"ping\"\n  add 1 2\nendon\n",
}

// Exporting a tree and applying it back unchanged must reproduce the source
// byte for byte, whitespace, comments and syntax flavor included. The tree
// takes a trip through JSON on the way, as it would over the wire.
func TestUpdateCode_Unchanged(t *testing.T) {
	for _, code := range roundTripSources {
		s := src(code)
		nodes := mustAST(t, s, nil)
		data, err := json.Marshal(nodes)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var edited []*rewrite.Node
		if err := json.Unmarshal(data, &edited); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if diff := cmp.Diff(code, mustUpdate(t, s, edited)); diff != "" {
			t.Errorf("round trip of %q changed the source (-want +got):\n%s", code, diff)
		}
	}
}

// A single edited leaf comes back as a single replaced span; the rest of the
// line, its comment included, stays untouched.
func TestUpdateCode_LeafEdit(t *testing.T) {
	s := src("$x = 10 # keep\n$y = 2\n")
	nodes := mustAST(t, s, nil)
	nodes[0].Kids["value"][0].Props["value"] = 42.0
	want := "$x = 42 # keep\n$y = 2\n"
	if diff := cmp.Diff(want, mustUpdate(t, s, nodes)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestUpdateCode_RenameCommand(t *testing.T) {
	s := src("math.add 1 2 into $x\n")
	nodes := mustAST(t, s, nil)
	nodes[0].Props["name"] = "math.multiply"
	want := "math.multiply 1 2 into $x\n"
	if diff := cmp.Diff(want, mustUpdate(t, s, nodes)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

// A structural change below a leaf replaces only the subexpression's span.
func TestUpdateCode_ReplaceOperand(t *testing.T) {
	s := src("$x = 1 + 2\n")
	nodes := mustAST(t, s, nil)
	binary := nodes[0].Kids["value"][0]
	binary.Kids["rhs"] = []*rewrite.Node{varNode("y")}
	want := "$x = 1 + $y\n"
	if diff := cmp.Diff(want, mustUpdate(t, s, nodes)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestUpdateCode_Insert(t *testing.T) {
	s := src("$x = 1\n$y = 2\n")
	nodes := mustAST(t, s, nil)
	edited := append(nodes, cmdNode("math.add", numNode(1), numNode(2)))
	want := "$x = 1\n$y = 2\nmath.add 1 2\n"
	if diff := cmp.Diff(want, mustUpdate(t, s, edited)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

// Insertions inside a block pick up the indentation of their siblings.
func TestUpdateCode_InsertIntoBody(t *testing.T) {
	s := src("def f\n  math.add 1 2\nenddef\n")
	nodes := mustAST(t, s, nil)
	nodes[0].Kids["body"] = append(nodes[0].Kids["body"],
		cmdNode("math.add", numNode(3), numNode(4)))
	want := "def f\n  math.add 1 2\n  math.add 3 4\nenddef\n"
	if diff := cmp.Diff(want, mustUpdate(t, s, nodes)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestUpdateCode_Delete(t *testing.T) {
	s := src("$x = 1\n$y = 2\n$z = 3\n")
	nodes := mustAST(t, s, nil)
	edited := []*rewrite.Node{nodes[0], nodes[2]}
	want := "$x = 1\n$z = 3\n"
	if diff := cmp.Diff(want, mustUpdate(t, s, edited)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestUpdateCode_InlineComment(t *testing.T) {
	s := src("$x = 1 # old\n")
	nodes := mustAST(t, s, nil)
	nodes[0].Kids["inlineComment"][0].Props["text"] = "# new"
	want := "$x = 1 # new\n"
	if diff := cmp.Diff(want, mustUpdate(t, s, nodes)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestGetAST_ModuleAnnotation(t *testing.T) {
	ev := eval.NewEvaler()
	ev.Env().RegisterModule(mathmod.Module())
	s := src("use math\nadd 1 2\nmath.add 3 4\n")
	nodes := mustAST(t, s, ev.Env())
	if got := nodes[1].Props["module"]; got != "math" {
		t.Errorf("bare call module = %v, want math", got)
	}
	if got := nodes[2].Props["module"]; got != "math" {
		t.Errorf("qualified call module = %v, want math", got)
	}
	// The derived annotation must not disturb the round trip.
	if diff := cmp.Diff(s.Code, mustUpdate(t, s, nodes)); diff != "" {
		t.Errorf("annotated tree changed the source (-want +got):\n%s", diff)
	}
}

func numNode(v float64) *rewrite.Node {
	return &rewrite.Node{Kind: "number", Props: map[string]any{"value": v}}
}

func varNode(name string) *rewrite.Node {
	return &rewrite.Node{Kind: "var", Props: map[string]any{"name": name}}
}

func cmdNode(name string, args ...*rewrite.Node) *rewrite.Node {
	return &rewrite.Node{
		Kind:  "command",
		Props: map[string]any{"name": name},
		Kids:  map[string][]*rewrite.Node{"args": args},
	}
}
