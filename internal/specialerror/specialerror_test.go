package specialerror

import (
	"errors"
	"testing"

	"github.com/flare152/flare-im-core/internal/errs"
)

func TestClassifyPassesThroughExistingCodeError(t *testing.T) {
	ce := errs.ErrUnauthenticated
	got := Classify(ce)
	if got.Code != ce.Code {
		t.Fatalf("expected passthrough of an existing CodeError, got %+v", got)
	}
}

func TestClassifyUsesRegisteredHandler(t *testing.T) {
	sentinel := errors.New("mongo: duplicate key")
	if err := AddErrHandler(func(err error) (errs.CodeError, bool) {
		if err == sentinel {
			return errs.ErrAlreadyExists, true
		}
		return errs.CodeError{}, false
	}); err != nil {
		t.Fatalf("AddErrHandler failed: %v", err)
	}

	got := Classify(sentinel)
	if got.Code != errs.ErrAlreadyExists.Code {
		t.Fatalf("expected the registered handler to classify the error, got %+v", got)
	}
}

func TestClassifyFallsBackToInternal(t *testing.T) {
	got := Classify(errors.New("totally unclassified"))
	if got.Code != errs.ErrInternal.Code {
		t.Fatalf("expected fallback to internal error code, got %+v", got)
	}
}

func TestClassifyNilIsZeroValue(t *testing.T) {
	got := Classify(nil)
	if got != (errs.CodeError{}) {
		t.Fatalf("expected Classify(nil) to return the zero CodeError, got %+v", got)
	}
}

func TestAddErrHandlerRejectsNil(t *testing.T) {
	if err := AddErrHandler(nil); err == nil {
		t.Fatal("expected AddErrHandler(nil) to fail")
	}
}
