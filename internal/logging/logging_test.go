package logging

import "testing"

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	l := New("not-a-level")
	if l == nil {
		t.Fatal("expected a non-nil logger even for an unparsable level")
	}
	if !l.Core().Enabled(0) { // zapcore.InfoLevel == 0
		t.Fatal("expected the fallback logger to be enabled at info level")
	}
}

func TestScopeOmitsEmptyFields(t *testing.T) {
	l := Scope("", "", "")
	if l == nil {
		t.Fatal("expected Scope to always return a logger")
	}
}

func TestScopeAttachesProvidedFields(t *testing.T) {
	l := Scope("t1", "c1", "r1")
	if l == nil {
		t.Fatal("expected Scope to return a logger")
	}
}
