// Package safe generalizes the teacher's tools/safe: small helpers for
// panic-isolated goroutines and nil-guarded defaults. A goroutine
// started with Go recovers from its own panic, so one panicking task
// cannot take the process down.
package safe

import (
	"reflect"

	"github.com/flare152/flare-im-core/internal/logging"
)

// MustNotNil panics if v is a nil pointer/interface, for enforcing
// required fields during wiring.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(name + " must not be nil")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			panic(name + " must not be nil")
		}
	}
}

// DefaultString returns *s, or fallback if s is nil.
func DefaultString(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// DefaultInt returns *i, or fallback if i is nil.
func DefaultInt(i *int, fallback int) int {
	if i == nil {
		return fallback
	}
	return *i
}

// Go starts f in a goroutine that recovers from panics and logs them
// instead of crashing the process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Errorf("panic recovered: %v", r)
			}
		}()
		f()
	}()
}
