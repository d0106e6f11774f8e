package outbound

import (
	"strings"
	"testing"

	"github.com/decentgg/bridgebot/internal/msgcat"
	"github.com/decentgg/bridgebot/internal/protocol"
)

type fakeSender struct{ sent []string }

func (f *fakeSender) Enqueue(command string) { f.sent = append(f.sent, command) }

func newTestGate(t *testing.T) (*Gate, *fakeSender) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	s := &fakeSender{}
	return NewGate(s, cat, nil), s
}

func TestSendShortMessage(t *testing.T) {
	g, s := newTestGate(t)
	g.Send("hello guild")
	if len(s.sent) != 1 || s.sent[0] != "/gc hello guild" {
		t.Fatalf("sent = %v", s.sent)
	}
}

func TestSendStripsExistingPrefix(t *testing.T) {
	g, s := newTestGate(t)
	g.Send("/gc hello")
	if len(s.sent) != 1 || s.sent[0] != "/gc hello" {
		t.Fatalf("sent = %v", s.sent)
	}
}

func TestSendChunksLongMessage(t *testing.T) {
	g, s := newTestGate(t)
	text := strings.Repeat("x", ChatChunkLimit*2+5)
	g.Send(text)
	if len(s.sent) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(s.sent))
	}
	var rebuilt strings.Builder
	for _, cmd := range s.sent {
		chunk := strings.TrimPrefix(cmd, "/gc ")
		if len(chunk) > ChatChunkLimit {
			t.Fatalf("chunk exceeds limit: %d", len(chunk))
		}
		rebuilt.WriteString(chunk)
	}
	if rebuilt.String() != text {
		t.Fatalf("chunks do not reconstruct the original text")
	}
}

func TestChunkProperties(t *testing.T) {
	for _, n := range []int{1, 89, 90, 91, 180, 500} {
		text := strings.Repeat("a", n)
		chunks := Chunk(text, RelayChunkLimit)
		want := (n + RelayChunkLimit - 1) / RelayChunkLimit
		if len(chunks) != want {
			t.Fatalf("len=%d: expected %d chunks, got %d", n, want, len(chunks))
		}
		if strings.Join(chunks, "") != text {
			t.Fatalf("len=%d: concatenation mismatch", n)
		}
	}
}

func TestDuplicateRetrySequence(t *testing.T) {
	g, s := newTestGate(t)
	dup := protocol.Event{Kind: protocol.KindDuplicateRejected}

	g.Send("gg")
	if s.sent[len(s.sent)-1] != "/gc gg" {
		t.Fatalf("initial send = %q", s.sent[len(s.sent)-1])
	}

	g.HandleEvent(dup)
	if got := s.sent[len(s.sent)-1]; got != "/gc gg _ _ " {
		t.Fatalf("retry 1 = %q", got)
	}

	prevLen := len(s.sent[len(s.sent)-1])
	g.HandleEvent(dup)
	if got := s.sent[len(s.sent)-1]; len(got) <= prevLen || !strings.HasPrefix(got, "/gc gg _ _ ") {
		t.Fatalf("retry 2 = %q, expected strictly more padding", got)
	}

	prevLen = len(s.sent[len(s.sent)-1])
	g.HandleEvent(dup)
	if got := s.sent[len(s.sent)-1]; len(got) <= prevLen {
		t.Fatalf("retry 3 = %q, expected strictly more padding", got)
	}

	// 4th consecutive rejection gives up with the fallback notice.
	g.HandleEvent(dup)
	if got := s.sent[len(s.sent)-1]; got != "/gc Same message" {
		t.Fatalf("fallback = %q", got)
	}

	// Counter reset: next rejection retries the fallback, not the give-up.
	g.HandleEvent(dup)
	if got := s.sent[len(s.sent)-1]; got != "/gc Same message _ _ " {
		t.Fatalf("post-reset retry = %q", got)
	}
}

func TestDuplicateRetryChunksPaddedText(t *testing.T) {
	g, s := newTestGate(t)

	text := strings.Repeat("a", ChatChunkLimit-2)
	g.Send(text)
	if len(s.sent) != 1 {
		t.Fatalf("sent = %v", s.sent)
	}

	// Padding pushes past the line limit: the retry must be chunked.
	g.HandleEvent(protocol.Event{Kind: protocol.KindDuplicateRejected})
	retry := s.sent[1:]
	if len(retry) != 2 {
		t.Fatalf("retry enqueued %d commands: %v", len(retry), retry)
	}
	var joined string
	for _, c := range retry {
		body := strings.TrimPrefix(c, "/gc ")
		if n := len([]rune(body)); n > ChatChunkLimit {
			t.Fatalf("chunk of %d runes exceeds limit", n)
		}
		joined += body
	}
	if joined != text+" _ _ " {
		t.Fatalf("reassembled retry = %q", joined)
	}
}

func TestNewSendResetsRetryState(t *testing.T) {
	g, s := newTestGate(t)
	dup := protocol.Event{Kind: protocol.KindDuplicateRejected}

	g.Send("first")
	g.HandleEvent(dup)
	g.HandleEvent(dup)

	g.Send("second")
	g.HandleEvent(dup)
	if got := s.sent[len(s.sent)-1]; got != "/gc second _ _ " {
		t.Fatalf("retry after new send = %q", got)
	}
}

func TestDuplicateWithoutPriorSendIgnored(t *testing.T) {
	g, s := newTestGate(t)
	g.HandleEvent(protocol.Event{Kind: protocol.KindDuplicateRejected})
	if len(s.sent) != 0 {
		t.Fatalf("expected no sends, got %v", s.sent)
	}
}
