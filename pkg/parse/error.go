package parse

import (
	"fmt"
	"strings"

	"github.com/robinpath/robinpath/pkg/diag"
)

// Error is a parse error.
type Error struct {
	Message string
	Context diag.Context
	// Partial is set when the source is incomplete rather than genuinely
	// malformed: a block construct, string, fence, or bracketed form reached
	// the end of the source before its terminator. Read-eval loops use this to
	// buffer input instead of reporting an error.
	Partial bool
	// WaitingFor names the text that would advance an incomplete parse:
	// "endif", "enddef", "endfor", "enddo", "endon", "endtogether", "endwith",
	// ")", "]", "}", a closing quote, or "---". Empty unless Partial is set.
	WaitingFor string
}

// Error returns a plain text representation of the error.
func (e *Error) Error() string {
	return fmt.Sprintf("parse error: %d-%d in %s: %s",
		e.Context.From, e.Context.To, e.Context.Name, e.Message)
}

// Range returns the range of the error.
func (e *Error) Range() diag.Ranging {
	return e.Context.Range()
}

// Show shows the error.
func (e *Error) Show(indent string) string {
	header := fmt.Sprintf("Parse error: \033[31;1m%s\033[m\n", e.Message)
	return header + e.Context.ShowCompact(indent+"  ")
}

// MultiError pack multiple parse errors into one error.
type MultiError struct {
	Errors []*Error
}

// Error returns a plain text representation of the error.
func (me *MultiError) Error() string {
	var sb strings.Builder
	sb.WriteString("multiple parse errors: ")
	for i, e := range me.Errors {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%d-%d: %s", e.Context.From, e.Context.To, e.Message)
	}
	return sb.String()
}

// Show shows the error.
func (me *MultiError) Show(indent string) string {
	var sb strings.Builder
	sb.WriteString("Multiple parse errors:")
	for _, e := range me.Errors {
		sb.WriteString("\n" + indent + "  ")
		sb.WriteString(e.Show(indent + "  "))
	}
	return sb.String()
}

// packErrors packs a slice of parse errors into an error. It returns nil if
// the slice is empty, and the sole element if it has exactly one.
func packErrors(errs []*Error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &MultiError{errs}
	}
}

// UnpackErrors returns the constituent parse errors if the given error
// contains one or more parse errors. Otherwise it returns nil.
func UnpackErrors(e error) []*Error {
	switch e := e.(type) {
	case *Error:
		return []*Error{e}
	case *MultiError:
		return e.Errors
	default:
		return nil
	}
}

// Incomplete examines an error returned by Parse. If the source was
// incomplete, it reports true along with what the parser was waiting for.
func Incomplete(e error) (bool, string) {
	for _, err := range UnpackErrors(e) {
		if err.Partial {
			return true, err.WaitingFor
		}
	}
	return false, ""
}
