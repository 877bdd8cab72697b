package model

import "testing"

func TestRecomputeUnreadClampsAtZero(t *testing.T) {
	p := &Participant{LastReadSeq: 10}
	p.RecomputeUnread(4)
	if p.UnreadCount != 0 {
		t.Fatalf("expected unread count to clamp at zero, got %d", p.UnreadCount)
	}
}

func TestRecomputeUnreadMatchesDifference(t *testing.T) {
	p := &Participant{LastReadSeq: 10}
	p.RecomputeUnread(25)
	if p.UnreadCount != 15 {
		t.Fatalf("expected unread count 15, got %d", p.UnreadCount)
	}
}

func TestRecomputeUnreadZeroWhenEqual(t *testing.T) {
	p := &Participant{LastReadSeq: 30}
	p.RecomputeUnread(30)
	if p.UnreadCount != 0 {
		t.Fatalf("expected unread count 0 when caught up, got %d", p.UnreadCount)
	}
}
