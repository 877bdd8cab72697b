// Package errs is the error taxonomy and wrapping layer shared by every
// component. It generalizes the teacher's tools/errs package: a small
// code+message+detail error value, ergonomic wrapping that preserves
// code identity across errors.Is, and a stack-capturing Wrap/WrapMsg.
package errs

import (
	"errors"
	"strconv"
	"strings"

	"github.com/flare152/flare-im-core/internal/errs/stack"
)

const stackSkip = 4

var DefaultCodeRelation = newCodeRelation()

// Error is satisfied by any error carrying a taxonomy code and message.
type Error interface {
	error
	ECode() int
	EMsg() string
	DDetail() string
}

// ErrWrapper is satisfied by an error that carries a wrapped cause.
type ErrWrapper interface {
	error
	Unwrap() error
	WrapMsg() string
}

// CodeError is the concrete Error implementation. Zero value is not
// useful; construct with NewCodeError.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{Code: code, Msg: msg}
}

func (e CodeError) ECode() int      { return e.Code }
func (e CodeError) EMsg() string    { return e.Msg }
func (e CodeError) DDetail() string { return e.Detail }

func (e CodeError) WithDetail(detail string) CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

const initialCapacity = 3

func (e CodeError) Error() string {
	v := make([]string, 0, initialCapacity)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Is reports whether target is a CodeError whose code equals e's code,
// or is related to it via DefaultCodeRelation.
func (e CodeError) Is(target error) bool {
	var other CodeError
	if !errors.As(Unwrap(target), &other) {
		return false
	}
	if e.Code == other.Code {
		return true
	}
	return DefaultCodeRelation.Is(e.Code, other.Code)
}

// Wrap attaches a captured call stack to e.
func (e CodeError) Wrap() error {
	return stack.New(e, stackSkip)
}

// WrapMsg returns a new error with msg/kv appended to Detail and a
// stack captured at the call site. The returned error still satisfies
// errors.Is against e via CodeError.Is.
func (e CodeError) WrapMsg(msg string, kv ...any) error {
	ret := e
	if msg != "" || len(kv) > 0 {
		d := toString(msg, kv)
		if ret.Detail == "" {
			ret.Detail = d
		} else {
			ret.Detail += ", " + d
		}
	}
	return stack.New(ret, stackSkip)
}

// Unwrap walks err.Unwrap() until it bottoms out, returning the last
// non-nil error seen (mirrors the teacher's tools/errs.Unwrap, which
// intentionally does NOT return nil for an unwrappable error).
func Unwrap(err error) error {
	for err != nil {
		u, ok := err.(interface {
			error
			Unwrap() error
		})
		if !ok {
			break
		}
		next := u.Unwrap()
		if next == nil {
			return u
		}
		err = next
	}
	return err
}

// Wrap captures a stack trace on any error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return stack.New(err, stackSkip)
}

// WrapMsg wraps a plain error with additional context and a stack.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return stack.New(&messageWrapper{cause: err, msg: toString(msg, kv)}, stackSkip)
}

type messageWrapper struct {
	cause error
	msg   string
}

func (w *messageWrapper) Error() string   { return w.msg + ": " + w.cause.Error() }
func (w *messageWrapper) Unwrap() error   { return w.cause }
func (w *messageWrapper) WrapMsg() string { return w.msg }

// New builds a plain detail-carrying error (not code-classified) for
// cases that don't need a taxonomy code, e.g. programmer-input errors
// inside constructors.
func New(msg string, kv ...any) error {
	return &simpleError{msg: toString(msg, kv)}
}

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		b.WriteString(" ")
		b.WriteString(toStringFallback(kv[i]))
		b.WriteString("=")
		b.WriteString(toStringFallback(val))
	}
	return b.String()
}
