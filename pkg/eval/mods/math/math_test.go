package math

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
		t.Fatalf("math.%s(%v): %v", name, args, err)
	}
	return v
}

func callErr(t *testing.T, name string, args ...eval.Value) error {
	t.Helper()
	_, err := fns[name](context.Background(), args)
	if err == nil {
		t.Fatalf("math.%s(%v) did not fail", name, args)
	}
	return err
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		args []eval.Value
		want eval.Value
	}{
		{"add", []eval.Value{1.0, 2.0, 3.0}, 6.0},
		{"subtract", []eval.Value{10.0, 3.0, 2.0}, 5.0},
		{"multiply", []eval.Value{2.0, 3.0, 4.0}, 24.0},
		{"divide", []eval.Value{24.0, 2.0, 3.0}, 4.0},
		{"mod", []eval.Value{7.0, 3.0}, 1.0},
		{"abs", []eval.Value{-2.5}, 2.5},
		{"floor", []eval.Value{2.7}, 2.0},
		{"ceil", []eval.Value{2.1}, 3.0},
		{"round", []eval.Value{2.5}, 3.0},
		{"min", []eval.Value{3.0, 1.0, 2.0}, 1.0},
		{"max", []eval.Value{3.0, 1.0, 2.0}, 3.0},
		// Strings and booleans coerce where a sensible number exists.
		{"add", []eval.Value{"2", true}, 3.0},
	}
	for _, test := range tests {
		if got := call(t, test.name, test.args...); got != test.want {
			t.Errorf("math.%s(%v) = %v, want %v", test.name, test.args, got, test.want)
		}
	}
}

func TestArithmeticErrors(t *testing.T) {
	callErr(t, "divide", 1.0, 0.0)
	callErr(t, "mod", 1.0, 0.0)
	callErr(t, "add", "nope")
	callErr(t, "add")
}

func TestRange(t *testing.T) {
	tests := []struct {
		args []eval.Value
		want []eval.Value
	}{
		{[]eval.Value{1.0, 5.0}, []eval.Value{1.0, 2.0, 3.0, 4.0, 5.0}},
		{[]eval.Value{5.0, 1.0}, []eval.Value{5.0, 4.0, 3.0, 2.0, 1.0}},
		{[]eval.Value{1.0, 5.0, 2.0}, []eval.Value{1.0, 3.0, 5.0}},
		{[]eval.Value{3.0, 3.0}, []eval.Value{3.0}},
		// A step fighting the direction of the bounds yields nothing.
		{[]eval.Value{1.0, 5.0, -1.0}, []eval.Value{}},
		{[]eval.Value{5.0, 1.0, 1.0}, []eval.Value{}},
	}
	for _, test := range tests {
		got := call(t, "range", test.args...)
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("math.range(%v) = %v, want %v", test.args, got, test.want)
		}
	}
}

func TestRangeErrors(t *testing.T) {
	callErr(t, "range", 1.0, 5.0, 0.0)
	callErr(t, "range", 1.0)
	callErr(t, "range", 1.0, 2.0, 1.0, 1.0)
}
