package errs

import (
	"errors"
	"testing"
)

func TestCodeErrorIsMatchesSameCode(t *testing.T) {
	a := NewCodeError(int(CodeInternal), "internal error")
	b := NewCodeError(int(CodeInternal), "different message, same code")
	if !errors.Is(a.Wrap(), b) {
		t.Fatal("expected errors with the same code to match via errors.Is")
	}
}

func TestCodeErrorIsRejectsDifferentCode(t *testing.T) {
	a := ErrInternal
	b := ErrUnauthenticated
	if errors.Is(a.Wrap(), b) {
		t.Fatal("expected distinct codes to not match")
	}
}

func TestWithDetailAppends(t *testing.T) {
	e := ErrInternal.WithDetail("first").WithDetail("second")
	if e.Detail != "first, second" {
		t.Fatalf("expected accumulated detail, got %q", e.Detail)
	}
}

func TestWrapMsgPreservesCodeIdentity(t *testing.T) {
	wrapped := ErrFailedPrecondition.WrapMsg("recall window expired", "message_id", "m1")
	var ce CodeError
	if !errors.As(wrapped, &ce) {
		t.Fatal("expected WrapMsg result to unwrap to a CodeError")
	}
	if ce.Code != int(CodeFailedPrecondition) {
		t.Fatalf("expected failed-precondition code, got %d", ce.Code)
	}
	if !errors.Is(wrapped, ErrFailedPrecondition) {
		t.Fatal("expected wrapped error to still match the base sentinel via errors.Is")
	}
}

func TestWrapMsgOnPlainError(t *testing.T) {
	base := errors.New("boom")
	wrapped := WrapMsg(base, "storing message", "id", "m1")
	if wrapped == nil {
		t.Fatal("expected non-nil wrapped error")
	}
	if errors.Unwrap(wrapped) == nil {
		t.Fatal("expected wrapped error chain to preserve the cause")
	}
}

func TestWrapMsgNilPassthrough(t *testing.T) {
	if WrapMsg(nil, "ignored") != nil {
		t.Fatal("expected WrapMsg(nil, ...) to return nil")
	}
	if Wrap(nil) != nil {
		t.Fatal("expected Wrap(nil) to return nil")
	}
}

func TestCodeRelationIsTransitiveWithinRegisteredChain(t *testing.T) {
	rel := newCodeRelation()
	if err := rel.Add(1, 2, 3); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !rel.Is(1, 2) || !rel.Is(1, 3) {
		t.Fatal("expected parent to relate to every descendant in the chain")
	}
	if rel.Is(2, 1) {
		t.Fatal("relation should not be symmetric")
	}
}

func TestCodeRelationAddRejectsShortChain(t *testing.T) {
	rel := newCodeRelation()
	if err := rel.Add(1); err == nil {
		t.Fatal("expected Add with a single code to fail")
	}
}
