package telegram

import (
	"strings"
	"testing"

	"github.com/agenthost/agenthost/internal/types"
)

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestChatIDForUnregisteredUser(t *testing.T) {
	a := &Adapter{chatIDs: make(map[types.UserID]int64)}
	if _, err := a.chatIDFor(types.UserID(1)); err == nil {
		t.Fatal("expected an error for an unregistered user")
	}
}

func TestRegisterChatThenResolve(t *testing.T) {
	a := &Adapter{chatIDs: make(map[types.UserID]int64)}
	a.RegisterChat(types.UserID(7), 12345)

	chatID, err := a.chatIDFor(types.UserID(7))
	if err != nil {
		t.Fatalf("chatIDFor: %v", err)
	}
	if chatID != 12345 {
		t.Errorf("expected chat id 12345, got %d", chatID)
	}
}
