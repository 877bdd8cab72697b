package errs

import (
	"fmt"

	"github.com/flare152/flare-im-core/internal/errs/stack"
)

// ErrPanic converts a recover() value into an Internal CodeError with a
// captured stack, for use at every goroutine boundary (gateway
// connection loop, writer consumer, push worker).
func ErrPanic(r any) error {
	return ErrPanicMsg(r, int(CodeInternal), "panic recovered", 9)
}

func ErrPanicMsg(r any, code int, msg string, skip int) error {
	if r == nil {
		return nil
	}
	err := CodeError{Code: code, Msg: msg, Detail: fmt.Sprint(r)}
	return stack.New(err, skip)
}
