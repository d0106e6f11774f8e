package outbound

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/decentgg/bridgebot/internal/msgcat"
	"github.com/decentgg/bridgebot/internal/protocol"
)

const (
	// ChatChunkLimit is the protocol line limit for player-originated text.
	ChatChunkLimit = 92
	// RelayChunkLimit is the tighter limit applied to relay-formatted text.
	RelayChunkLimit = 90

	chatPrefix  = "/gc "
	paddingUnit = " _ _ "
	maxRetries  = 3
)

// Sender is the serialized command sink the gate writes to.
type Sender interface {
	Enqueue(command string)
}

// Gate serializes outgoing guild chat: prefixing, chunking to the protocol
// line limit, and retrying duplicate-rejected sends by mutating the text.
// The retry state is owned here and guarded by one lock; the lock is held
// only for the check-and-update, never across a process write.
type Gate struct {
	sender Sender
	cat    *msgcat.Catalog
	logger *zap.Logger

	mu       sync.Mutex
	lastSent string
	attempts int
}

func NewGate(sender Sender, cat *msgcat.Catalog, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{sender: sender, cat: cat, logger: logger}
}

// Send queues text for guild chat. A new send resets the duplicate-retry
// state. Text longer than the chunk limit is split, each chunk going out as
// an independent chat command.
func (g *Gate) Send(text string) {
	content := strings.TrimPrefix(text, chatPrefix)
	if strings.TrimSpace(content) == "" {
		return
	}

	g.mu.Lock()
	g.lastSent = content
	g.attempts = 0
	g.mu.Unlock()

	for _, chunk := range Chunk(content, ChatChunkLimit) {
		g.sender.Enqueue(chatPrefix + chunk)
	}
}

// SendRaw queues a console command without chat prefixing or retry tracking.
func (g *Gate) SendRaw(command string) {
	g.sender.Enqueue(command)
}

// HandleEvent reacts to duplicate-rejection protocol events. Intended to be
// registered as a line-channel subscriber.
func (g *Gate) HandleEvent(ev protocol.Event) {
	if ev.Kind == protocol.KindDuplicateRejected {
		g.handleDuplicateRejected()
	}
}

// handleDuplicateRejected re-sends the previous text with an increasing
// suffix of padding, up to maxRetries times. After that it gives up and
// sends a fixed fallback notice instead. Best-effort: there is no delivery
// ack beyond the absence of a further rejection.
func (g *Gate) handleDuplicateRejected() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastSent == "" {
		return
	}

	if g.attempts < maxRetries {
		modified := g.lastSent + strings.Repeat(paddingUnit, g.attempts+1)
		g.logger.Info("retrying duplicate-rejected message",
			zap.Int("attempt", g.attempts+1), zap.String("text", modified))
		// Padding can push the text over the line limit.
		for _, chunk := range Chunk(modified, ChatChunkLimit) {
			g.sender.Enqueue(chatPrefix + chunk)
		}
		g.attempts++
		g.lastSent = modified
		return
	}

	fallback := g.cat.MustRender("gate.duplicate_fallback", nil)
	g.logger.Info("duplicate retries exhausted, sending fallback")
	g.sender.Enqueue(chatPrefix + fallback)
	g.lastSent = fallback
	g.attempts = 0
}

// Chunk splits text into rune-safe pieces of at most limit runes. The
// concatenation of the chunks reconstructs the input.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
