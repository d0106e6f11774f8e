package protocol

import (
	"testing"
	"time"
)

func TestParseServerJoined(t *testing.T) {
	ev := Parse("2024-01-01 00:00:00 [MCC] Server was successfully joined.")
	if ev.Kind != KindServerJoined {
		t.Fatalf("expected server_joined, got %s", ev.Kind)
	}
}

func TestParseChatLine(t *testing.T) {
	ev := Parse("2024-01-01 00:00:00 Guild > [MVP+] Alice : shortcut hi g hello")
	if ev.Kind != KindChat {
		t.Fatalf("expected chat, got %s", ev.Kind)
	}
	if ev.Channel != "Guild" {
		t.Fatalf("channel = %q", ev.Channel)
	}
	if ev.Sender != "Alice" {
		t.Fatalf("sender = %q", ev.Sender)
	}
	if ev.Message != "shortcut hi g hello" {
		t.Fatalf("message = %q", ev.Message)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v", ev.Timestamp)
	}
}

func TestParseChatLineTrailingTag(t *testing.T) {
	ev := Parse("2024-01-01 12:30:00 Guild > [MVP+] Bob [GM] : hello there")
	if ev.Kind != KindChat {
		t.Fatalf("expected chat, got %s", ev.Kind)
	}
	if ev.Sender != "Bob" {
		t.Fatalf("sender = %q", ev.Sender)
	}
	if ev.Message != "hello there" {
		t.Fatalf("message = %q", ev.Message)
	}
}

func TestParseChatLineColorCodes(t *testing.T) {
	ev := Parse("2024-01-01 00:00:00 §2Guild > §b[VIP] Carol§r : §egg")
	if ev.Kind != KindChat {
		t.Fatalf("expected chat, got %s", ev.Kind)
	}
	if ev.Sender != "Carol" {
		t.Fatalf("sender = %q", ev.Sender)
	}
	if ev.Message != "gg" {
		t.Fatalf("message = %q", ev.Message)
	}
	if ev.MessageRaw != "§egg" {
		t.Fatalf("raw message = %q", ev.MessageRaw)
	}
}

func TestParseChatLineRawMessage(t *testing.T) {
	ev := Parse("2024-01-01 00:00:00 Guild > [MVP+] Alice : §ahello §6guild§r")
	if ev.Kind != KindChat {
		t.Fatalf("expected chat, got %s", ev.Kind)
	}
	if ev.Message != "hello guild" {
		t.Fatalf("message = %q", ev.Message)
	}
	if ev.MessageRaw != "§ahello §6guild§r" {
		t.Fatalf("raw message = %q", ev.MessageRaw)
	}

	// Plain text keeps the two fields identical.
	ev = Parse("2024-01-01 00:00:00 Guild > Alice : plain text")
	if ev.MessageRaw != "plain text" || ev.Message != "plain text" {
		t.Fatalf("message = %q, raw = %q", ev.Message, ev.MessageRaw)
	}
}

func TestParseJoinLeave(t *testing.T) {
	join := Parse("2024-01-01 00:00:00 Guild > Dave joined.")
	if join.Kind != KindJoin || join.Sender != "Dave" {
		t.Fatalf("join: kind=%s sender=%q", join.Kind, join.Sender)
	}
	leave := Parse("2024-01-01 00:00:00 Guild > Dave left.")
	if leave.Kind != KindLeave || leave.Sender != "Dave" {
		t.Fatalf("leave: kind=%s sender=%q", leave.Kind, leave.Sender)
	}
}

func TestParseDuplicateRejected(t *testing.T) {
	ev := Parse("2024-01-01 00:00:00 You cannot say the same message twice!")
	if ev.Kind != KindDuplicateRejected {
		t.Fatalf("expected duplicate_rejected, got %s", ev.Kind)
	}
}

func TestParseConnectionLost(t *testing.T) {
	ev := Parse("2024-01-01 00:00:00 Connection has been lost.")
	if ev.Kind != KindConnectionLost {
		t.Fatalf("expected connection_lost, got %s", ev.Kind)
	}
	ev = Parse("2024-01-01 00:00:00 Login failed : bad credentials")
	if ev.Kind != KindConnectionLost {
		t.Fatalf("expected connection_lost, got %s", ev.Kind)
	}
}

func TestParseUnknownDiscarded(t *testing.T) {
	for _, line := range []string{
		"",
		"random noise without structure",
		"2024-01-01 00:00:00 something else entirely",
	} {
		if ev := Parse(line); ev.Kind != KindUnknown {
			t.Fatalf("line %q: expected unknown, got %s", line, ev.Kind)
		}
	}
}

func TestCleanSender(t *testing.T) {
	if got := CleanSender("[MVP+] Alice [GM]"); got != "Alice" {
		t.Fatalf("CleanSender = %q", got)
	}
	if got := CleanSender("Alice"); got != "Alice" {
		t.Fatalf("CleanSender = %q", got)
	}
}
