package str

import (
	"context"
	"reflect"
	"testing"

	"github.com/robinpath/robinpath/pkg/eval"
)

var fns = Module().Fns

func call(t *testing.T, name string, args ...eval.Value) eval.Value {
	t.Helper()
	v, err := fns[name](context.Background(), args)
	if err != nil {
		t.Fatalf("str.%s(%v): %v", name, args, err)
	}
	return v
}

func TestStrings(t *testing.T) {
	tests := []struct {
		name string
		args []eval.Value
		want eval.Value
	}{
		{"upper", []eval.Value{"abc"}, "ABC"},
		{"lower", []eval.Value{"ABC"}, "abc"},
		{"trim", []eval.Value{"  a b  "}, "a b"},
		{"length", []eval.Value{"héllo"}, 5.0},
		{"length", []eval.Value{[]eval.Value{1.0, 2.0}}, 2.0},
		{"concat", []eval.Value{"a", 1.0, true}, "a1true"},
		{"join", []eval.Value{[]eval.Value{"a", "b"}, "-"}, "a-b"},
		{"join", []eval.Value{[]eval.Value{1.0, 2.0}}, "12"},
		{"replace", []eval.Value{"a-b-c", "-", "+"}, "a+b+c"},
		{"contains", []eval.Value{"abc", "b"}, true},
		{"contains", []eval.Value{"abc", "z"}, false},
		{"startsWith", []eval.Value{"abc", "ab"}, true},
		{"endsWith", []eval.Value{"abc", "bc"}, true},
	}
	for _, test := range tests {
		if got := call(t, test.name, test.args...); got != test.want {
			t.Errorf("str.%s(%v) = %v, want %v", test.name, test.args, got, test.want)
		}
	}
}

func TestSplit(t *testing.T) {
	got := call(t, "split", "a,b,c", ",")
	want := []eval.Value{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("split = %v, want %v", got, want)
	}
}

func TestErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		args []eval.Value
	}{
		{"upper", []eval.Value{1.0}},
		{"upper", nil},
		{"length", []eval.Value{1.0}},
		{"join", []eval.Value{"not an array"}},
		{"replace", []eval.Value{"a", "b"}},
	} {
		if _, err := fns[test.name](context.Background(), test.args); err == nil {
			t.Errorf("str.%s(%v) did not fail", test.name, test.args)
		}
	}
}
