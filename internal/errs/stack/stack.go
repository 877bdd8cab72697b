// Package stack attaches a captured call stack to an error without
// changing its Error() output or its identity under errors.Is/As.
package stack

import (
	"fmt"

	"github.com/pkg/errors"
)

// withStack wraps an error together with a stack trace captured at the
// point New was called, skipping the given number of frames.
type withStack struct {
	error
	stack errors.StackTrace
}

// New captures a stack trace skip frames up from the caller and
// attaches it to err. The returned error's Error() and Unwrap() behave
// exactly like err's.
func New(err error, skip int) error {
	if err == nil {
		return nil
	}
	st := errors.WithStack(err)
	tracer, ok := st.(interface{ StackTrace() errors.StackTrace })
	if !ok {
		return err
	}
	trace := tracer.StackTrace()
	if skip > 0 && skip < len(trace) {
		trace = trace[skip:]
	}
	return &withStack{error: err, stack: trace}
}

func (w *withStack) Unwrap() error { return w.error }

func (w *withStack) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", w.error.Error())
			for _, f := range w.stack {
				fmt.Fprintf(s, "\n%+v", f)
			}
			return
		}
		fallthrough
	default:
		fmt.Fprintf(s, "%s", w.error.Error())
	}
}

// Frames returns the captured stack, formatted one entry per line.
func Frames(err error) []string {
	ws, ok := err.(*withStack)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ws.stack))
	for _, f := range ws.stack {
		out = append(out, fmt.Sprintf("%+v", f))
	}
	return out
}
