// Package thread provides session isolation over a shared interpreter: each
// thread runs against private variables, functions, event handlers and
// last-value, while builtins, decorators and metadata stay shared with the
// interpreter it forked from.
package thread

import (
	"context"

	"github.com/robinpath/robinpath/pkg/eval"
	"github.com/robinpath/robinpath/pkg/parse"
)

// Thread is one isolated session.
type Thread struct {
	name string
	ev   *eval.Evaler
}

// New forks a thread off a base interpreter. The name labels the thread's
// sources in error messages.
func New(name string, base *eval.Evaler) *Thread {
	return &Thread{name: name, ev: base.Fork()}
}

// Evaler returns the thread's private evaler.
func (th *Thread) Evaler() *eval.Evaler { return th.ev }

// Name returns the thread's label.
func (th *Thread) Name() string { return th.name }

// Run parses and evaluates a piece of code in the thread.
func (th *Thread) Run(ctx context.Context, code string) (eval.Value, error) {
	tree, err := parse.Parse(parse.Source{Name: th.name, Code: code})
	if err != nil {
		return nil, err
	}
	return th.ev.Eval(ctx, tree)
}

// LastValue returns the thread's current last-value register.
func (th *Thread) LastValue() eval.Value { return th.ev.LastValue() }
