// Package timemod exposes the time module, whose sleep function is the
// canonical suspension point for together blocks.
package timemod

import (
	"context"
	"fmt"
	"time"

	"github.com/robinpath/robinpath/pkg/eval"
)

// Module returns the registration record of the time module.
func Module() eval.Module {
	return eval.Module{
		Name: "time",
		Fns: map[string]eval.BuiltinFn{
			"sleep": sleep,
			"now":   now,
		},
		FnMeta: map[string]map[string]eval.Value{
			"sleep": {"description": "Pause for the given number of milliseconds."},
			"now":   {"description": "Current time in milliseconds since the epoch."},
		},
		Meta: eval.ModuleMeta{
			Description: "Clocks and delays.",
			Methods:     []string{"sleep", "now"},
		},
	}
}

// sleep returns a Pending value, so sibling together blocks run while the
// delay elapses.
func sleep(_ context.Context, args []eval.Value) (eval.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("time.sleep takes a duration in milliseconds")
	}
	ms, ok := eval.ToNumber(args[0])
	if !ok || ms < 0 {
		return nil, fmt.Errorf("time.sleep: bad duration %s", eval.ToString(args[0]))
	}
	return eval.Pending{Await: func(ctx context.Context) (eval.Value, error) {
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}, nil
}

func now(_ context.Context, _ []eval.Value) (eval.Value, error) {
	return float64(time.Now().UnixMilli()), nil
}
