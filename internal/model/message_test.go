package model

import "testing"

func TestMessageStateTerminal(t *testing.T) {
	terminal := []MessageState{MessageStateRecalled, MessageStateDeletedHard}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %v to be terminal", s)
		}
	}
	nonTerminal := []MessageState{MessageStateInit, MessageStateSent, MessageStateEdited}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("expected %v to not be terminal", s)
		}
	}
}

func TestIsVisibleContentFollowsTerminalState(t *testing.T) {
	m := &Message{State: MessageStateSent}
	if !m.IsVisibleContent() {
		t.Fatal("expected a sent message to be visible")
	}
	m.State = MessageStateRecalled
	if m.IsVisibleContent() {
		t.Fatal("expected a recalled message to not be visible")
	}
	m.State = MessageStateDeletedHard
	if m.IsVisibleContent() {
		t.Fatal("expected a hard-deleted message to not be visible")
	}
}

func TestMessageStateStringUnknown(t *testing.T) {
	if got := MessageState(99).String(); got != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN for an unrecognized state, got %q", got)
	}
}
