package eval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robinpath/robinpath/pkg/diag"
)

// fire runs every handler registered for an event in its own fresh frame,
// with the trigger arguments bound as positional parameters. A throwing
// handler is logged and does not block the remaining handlers; an
// unregistered event is a no-op.
func (ev *Evaler) fire(ctx context.Context, event string, args []Value) {
	for _, h := range ev.env.handlers[event] {
		hf := newFrame(functionFrame, ev.root)
		hf.src = h.src
		for i, a := range args {
			hf.locals[strconv.Itoa(i+1)] = a
		}
		err := ev.execChunk(ctx, hf, h.body)
		if f, ok := asFlow(err); ok && f.kind == flowReturn {
			err = nil
		}
		if err != nil {
			if shower, ok := err.(diag.Shower); ok {
				diag.Complainf(ev.warn, "event %q handler error:\n%s", event, shower.Show("  "))
			} else {
				diag.Complain(ev.warn, fmt.Sprintf("event %q handler error: %v", event, err))
			}
		}
	}
}

// Trigger fires an event from host code.
func (ev *Evaler) Trigger(ctx context.Context, event string, args ...Value) {
	ev.sched.acquire()
	defer ev.sched.release()
	ev.fire(ctx, event, args)
}
