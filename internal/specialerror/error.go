// Package specialerror lets a component register custom classifiers
// that turn an arbitrary driver/library error (mongo, redis, sarama,
// pgx...) into a CodeError, generalizing the teacher's
// tools/specialerror.
package specialerror

import (
	"errors"

	"github.com/flare152/flare-im-core/internal/errs"
)

var handlers []func(err error) (errs.CodeError, bool)

// AddErrHandler registers a classifier. Handlers are tried in
// registration order; the first match wins.
func AddErrHandler(h func(err error) (errs.CodeError, bool)) error {
	if h == nil {
		return errs.New("nil handler")
	}
	handlers = append(handlers, h)
	return nil
}

// Classify maps err to a CodeError via the registered handlers,
// falling back to errs.CodeError itself if err already is one, or to
// an Internal default otherwise.
func Classify(err error) errs.CodeError {
	if err == nil {
		return errs.CodeError{}
	}
	var ce errs.CodeError
	if errors.As(err, &ce) {
		return ce
	}
	for _, h := range handlers {
		if out, ok := h(err); ok {
			return out
		}
	}
	return errs.ErrInternal.WithDetail(err.Error())
}
