package relay

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/decentgg/bridgebot/internal/outbound"
	"github.com/decentgg/bridgebot/internal/protocol"
)

// RelayTag marks text that already crossed the bridge. Tagged text is
// dropped at ingestion on both sides, never re-forwarded.
const RelayTag = "[DC]"

const timestampLayout = "2006-01-02 15:04:05"

var leadingTimestampRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} `)

type inboundMessage struct {
	DisplayName string
	Content     string
}

// ContentPoster posts one formatted text block to the platform.
type ContentPoster interface {
	PostContent(content string) error
}

// Bridge relays chat bidirectionally: an inbound queue from the platform
// drained into the outbound gate, and an outbound queue of game chat lines
// drained into the platform webhook. Each queue has its own single-consumer
// drain loop so slow webhook I/O never delays the line-reading path.
type Bridge struct {
	gate       *outbound.Gate
	egress     ContentPoster
	channel    string
	chunkDelay time.Duration
	logger     *zap.Logger

	inMu  sync.Mutex
	inQ   []inboundMessage
	outMu sync.Mutex
	outQ  []string

	inWake  chan struct{}
	outWake chan struct{}
	quit    chan struct{}
	inDone  chan struct{}
	outDone chan struct{}
}

func NewBridge(gate *outbound.Gate, egress ContentPoster, channel string, chunkDelay time.Duration, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		gate:       gate,
		egress:     egress,
		channel:    channel,
		chunkDelay: chunkDelay,
		logger:     logger,
		inWake:     make(chan struct{}, 1),
		outWake:    make(chan struct{}, 1),
		quit:       make(chan struct{}),
		inDone:     make(chan struct{}),
		outDone:    make(chan struct{}),
	}
}

// Start launches both drain loops.
func (b *Bridge) Start() {
	go b.drainInbound()
	go b.drainOutbound()
}

// Stop signals the drain loops and waits for them.
func (b *Bridge) Stop() {
	close(b.quit)
	<-b.inDone
	<-b.outDone
}

// EnqueueInbound queues one platform message for delivery into game chat.
func (b *Bridge) EnqueueInbound(displayName, content string) {
	b.inMu.Lock()
	b.inQ = append(b.inQ, inboundMessage{DisplayName: displayName, Content: content})
	b.inMu.Unlock()
	select {
	case b.inWake <- struct{}{}:
	default:
	}
}

// HandleEvent converts qualifying chat and join/leave events into outbound
// platform notifications. Registered as a line-channel subscriber.
func (b *Bridge) HandleEvent(ev protocol.Event) {
	switch ev.Kind {
	case protocol.KindChat:
		if ev.Channel != b.channel {
			return
		}
		if strings.Contains(ev.Sender, RelayTag) || strings.Contains(ev.Message, RelayTag) {
			b.logger.Debug("relayed message ignored", zap.String("sender", ev.Sender))
			return
		}
		// Relay the color-bearing text; the drain maps codes to ANSI.
		msg := ev.MessageRaw
		if msg == "" {
			msg = ev.Message
		}
		b.enqueueOutbound(formatChatLine(ev.Timestamp, b.channel, ev.Sender+": "+msg))
	case protocol.KindJoin:
		b.enqueueOutbound(formatChatLine(ev.Timestamp, b.channel, ev.Sender+" joined."))
	case protocol.KindLeave:
		b.enqueueOutbound(formatChatLine(ev.Timestamp, b.channel, ev.Sender+" left."))
	}
}

func formatChatLine(ts time.Time, channel, rest string) string {
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.Format(timestampLayout) + " " + channel + " > " + rest
}

func (b *Bridge) enqueueOutbound(line string) {
	b.outMu.Lock()
	b.outQ = append(b.outQ, line)
	b.outMu.Unlock()
	select {
	case b.outWake <- struct{}{}:
	default:
	}
}

func (b *Bridge) drainInbound() {
	defer close(b.inDone)
	for {
		msg, ok := b.dequeueInbound()
		if !ok {
			select {
			case <-b.inWake:
				continue
			case <-b.quit:
				return
			}
		}

		if strings.Contains(msg.Content, RelayTag) {
			b.logger.Debug("inbound message already tagged, dropped")
			continue
		}

		formatted := RelayTag + " " + msg.DisplayName + ": " + msg.Content
		chunks := outbound.Chunk(formatted, outbound.RelayChunkLimit)
		for i, chunk := range chunks {
			b.gate.Send(chunk)
			if i < len(chunks)-1 {
				time.Sleep(b.chunkDelay)
			}
		}
	}
}

func (b *Bridge) dequeueInbound() (inboundMessage, bool) {
	b.inMu.Lock()
	defer b.inMu.Unlock()
	if len(b.inQ) == 0 {
		return inboundMessage{}, false
	}
	msg := b.inQ[0]
	b.inQ = b.inQ[1:]
	return msg, true
}

func (b *Bridge) dequeueOutbound() (string, bool) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	if len(b.outQ) == 0 {
		return "", false
	}
	line := b.outQ[0]
	b.outQ = b.outQ[1:]
	return line, true
}

func (b *Bridge) drainOutbound() {
	defer close(b.outDone)
	for {
		line, ok := b.dequeueOutbound()
		if !ok {
			select {
			case <-b.outWake:
				continue
			case <-b.quit:
				return
			}
		}

		if strings.Contains(line, RelayTag) {
			b.logger.Debug("outbound line already tagged, dropped")
			continue
		}

		// Timestamp off, colors mapped, fenced for the platform renderer.
		text := leadingTimestampRE.ReplaceAllString(line, "")
		text = "```ansi\n" + RecolorANSI(text) + "\n```"
		if err := b.egress.PostContent(text); err != nil {
			b.logger.Error("relay egress failed", zap.Error(err))
		}
	}
}
