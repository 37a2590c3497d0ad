package message

import "testing"

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "solve x^2 = 4")
	if msg.Role != RoleUser {
		t.Errorf("role = %q, want %q", msg.Role, RoleUser)
	}
	if msg.Content != "solve x^2 = 4" {
		t.Errorf("unexpected content %q", msg.Content)
	}
	if msg.ID == "" {
		t.Error("expected generated ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCloneIsDeep(t *testing.T) {
	msg := NewMessage(RoleAssistant, "x = 2 or x = -2")
	msg.Metadata["source"] = "kb"

	cloned := Clone(msg)
	cloned.Metadata["source"] = "web"

	if msg.Metadata["source"] != "kb" {
		t.Error("mutating the clone leaked into the original metadata")
	}
}

func TestCloneNil(t *testing.T) {
	if Clone(nil) != nil {
		t.Error("cloning nil should return nil")
	}
	if CloneMessages(nil) != nil {
		t.Error("cloning empty slice should return nil")
	}
}
