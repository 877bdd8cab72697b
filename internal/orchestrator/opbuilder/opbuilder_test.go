package opbuilder

import (
	"encoding/json"
	"testing"

	"github.com/flare152/flare-im-core/internal/model"
)

func TestBuildRecallShape(t *testing.T) {
	msg := BuildRecall(RecallRequest{MessageID: "m1", Reason: "oops", RecallTimeLimitSec: 120}, "conv-1", "user-1", "tenant-1")

	if msg.Kind != model.MessageKindOperation {
		t.Fatalf("expected operation kind, got %v", msg.Kind)
	}
	if msg.OperationType != string(model.OpRecall) {
		t.Fatalf("expected recall op type, got %v", msg.OperationType)
	}
	if msg.ConversationID != "conv-1" || msg.SenderID != "user-1" || msg.TenantID != "tenant-1" {
		t.Fatalf("unexpected identity fields: %+v", msg)
	}
	if msg.ServerID == "" || msg.ServerID[:3] != "op_" {
		t.Fatalf("expected op_-prefixed server id, got %s", msg.ServerID)
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.OperationPayload, &payload); err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if payload["target_message_id"] != "m1" {
		t.Fatalf("expected target_message_id m1, got %v", payload["target_message_id"])
	}
}

func TestBuildDeleteGlobalVsForUser(t *testing.T) {
	global := BuildDelete(DeleteRequest{MessageIDs: []string{"a", "b"}, Global: true}, "conv", "op", "t")
	if len(global) != 2 {
		t.Fatalf("expected one message per id, got %d", len(global))
	}
	for _, m := range global {
		if m.OperationType != string(model.OpDeleteGlobal) {
			t.Fatalf("expected delete_global, got %v", m.OperationType)
		}
	}

	forUser := BuildDelete(DeleteRequest{MessageIDs: []string{"a"}, Global: false, TargetUser: "u9"}, "conv", "op", "t")
	if len(forUser) != 1 || forUser[0].OperationType != string(model.OpDeleteForUser) {
		t.Fatalf("expected delete_for_user, got %+v", forUser)
	}
	var payload map[string]any
	if err := json.Unmarshal(forUser[0].OperationPayload, &payload); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if payload["target_user_id"] != "u9" {
		t.Fatalf("expected target_user_id u9, got %v", payload["target_user_id"])
	}
}

func TestBuildMarkTogglesOperationType(t *testing.T) {
	on := BuildMark(MarkRequest{MessageID: "m", MarkType: "star", On: true}, "conv", "op", "t")
	if on.OperationType != string(model.OpMark) {
		t.Fatalf("expected mark, got %v", on.OperationType)
	}
	off := BuildMark(MarkRequest{MessageID: "m", MarkType: "star", On: false}, "conv", "op", "t")
	if off.OperationType != string(model.OpUnmark) {
		t.Fatalf("expected unmark, got %v", off.OperationType)
	}
}

func TestBuildReactionTogglesOperationType(t *testing.T) {
	add := BuildReaction(ReactionRequest{MessageID: "m", Emoji: "👍", Add: true}, "conv", "op", "t")
	if add.OperationType != string(model.OpReactionAdd) {
		t.Fatalf("expected reaction_add, got %v", add.OperationType)
	}
	remove := BuildReaction(ReactionRequest{MessageID: "m", Emoji: "👍", Add: false}, "conv", "op", "t")
	if remove.OperationType != string(model.OpReactionRemove) {
		t.Fatalf("expected reaction_remove, got %v", remove.OperationType)
	}
}

func TestBuildPinTogglesOperationType(t *testing.T) {
	pin := BuildPin(PinRequest{MessageID: "m", On: true, ExpireAt: 100}, "conv", "op", "t")
	if pin.OperationType != string(model.OpPin) {
		t.Fatalf("expected pin, got %v", pin.OperationType)
	}
	unpin := BuildPin(PinRequest{MessageID: "m", On: false}, "conv", "op", "t")
	if unpin.OperationType != string(model.OpUnpin) {
		t.Fatalf("expected unpin, got %v", unpin.OperationType)
	}
}

func TestBuildEditShowsEditedMarkOnlyWhenRequested(t *testing.T) {
	shown := BuildEdit(EditRequest{MessageID: "m", NewContent: []byte("hi"), ShowEditedMark: true}, "conv", "op", "t")
	var p1 map[string]any
	_ = json.Unmarshal(shown.OperationPayload, &p1)
	if p1["notice_text"] != "message edited" {
		t.Fatalf("expected notice text when ShowEditedMark true, got %v", p1["notice_text"])
	}

	hidden := BuildEdit(EditRequest{MessageID: "m", NewContent: []byte("hi"), ShowEditedMark: false}, "conv", "op", "t")
	var p2 map[string]any
	_ = json.Unmarshal(hidden.OperationPayload, &p2)
	if p2["notice_text"] != "" {
		t.Fatalf("expected empty notice text when ShowEditedMark false, got %v", p2["notice_text"])
	}
}
