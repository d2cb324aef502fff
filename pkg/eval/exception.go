package eval

import (
	"fmt"

	"github.com/robinpath/robinpath/pkg/diag"
)

// Exception represents a runtime error with a stack trace.
type Exception struct {
	Reason     error
	StackTrace *StackTrace
}

// StackTrace represents a stack trace as a linked list of diag.Context. The
// head is the innermost stack.
type StackTrace struct {
	Head *diag.Context
	Next *StackTrace
}

func (exc *Exception) Error() string { return exc.Reason.Error() }

func (exc *Exception) Unwrap() error { return exc.Reason }

// Show shows the exception with the stack trace.
func (exc *Exception) Show(indent string) string {
	s := "Exception: " + exc.Reason.Error()
	for tb := exc.StackTrace; tb != nil; tb = tb.Next {
		s += "\n" + indent + tb.Head.ShowCompact(indent)
	}
	return s
}

// Range returns the range of the innermost stack frame.
func (exc *Exception) Range() diag.Ranging {
	if exc.StackTrace != nil {
		return exc.StackTrace.Head.Ranging
	}
	return diag.Ranging{}
}

// flowKind identifies a non-error control transfer carried on the error
// return path, the same trick the break/continue/return exceptions play in
// most tree walkers.
type flowKind int

const (
	flowBreak flowKind = iota
	flowContinue
	flowReturn
)

type flowError struct {
	kind flowKind
	val  Value
}

func (f *flowError) Error() string {
	switch f.kind {
	case flowBreak:
		return "break outside for loop"
	case flowContinue:
		return "continue outside for loop"
	}
	return "return outside function"
}

func asFlow(err error) (*flowError, bool) {
	f, ok := err.(*flowError)
	return f, ok
}

// errorf makes an Exception pointing at a node of the running source.
func (ev *Evaler) errorf(fm *frame, r diag.Ranger, format string, args ...any) error {
	return &Exception{
		Reason: fmt.Errorf(format, args...),
		StackTrace: &StackTrace{
			Head: diag.NewContext(fm.src.Name, fm.src.Code, r.Range()),
		},
	}
}

// wrap attaches a stack frame at r to err. Flow transfers pass through
// untouched; plain errors become Exceptions.
func (ev *Evaler) wrap(fm *frame, r diag.Ranger, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := asFlow(err); ok {
		return err
	}
	ctx := diag.NewContext(fm.src.Name, fm.src.Code, r.Range())
	if exc, ok := err.(*Exception); ok {
		return &Exception{
			Reason:     exc.Reason,
			StackTrace: &StackTrace{Head: ctx, Next: exc.StackTrace},
		}
	}
	return &Exception{Reason: err, StackTrace: &StackTrace{Head: ctx}}
}
