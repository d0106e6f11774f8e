package presence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/decentgg/bridgebot/internal/protocol"
)

const listCommand = "/g online"

// Member is one online guild member as parsed from a listing cycle.
type Member struct {
	Username  string
	Rank      string
	GuildRank string
}

// Capture is the live-output view the tracker diffs against.
type Capture interface {
	CaptureOffset() int
	CaptureSince(offset int) string
}

// Commander issues console commands.
type Commander interface {
	SendRaw(command string)
}

// Notifier publishes a presence summary. Each summary supersedes the last.
type Notifier interface {
	PublishPresence(members []Member, capturedAt time.Time) error
}

// Tracker polls the member listing on a fixed period and notifies only when
// the member set changed.
type Tracker struct {
	capture  Capture
	cmd      Commander
	notifier Notifier
	logger   *zap.Logger

	period  time.Duration
	settle  time.Duration
	backoff time.Duration

	lastMembers []string

	quit chan struct{}
	done chan struct{}
}

func NewTracker(capture Capture, cmd Commander, notifier Notifier, period, settle, backoff time.Duration, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		capture:  capture,
		cmd:      cmd,
		notifier: notifier,
		logger:   logger,
		period:   period,
		settle:   settle,
		backoff:  backoff,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (t *Tracker) Start() {
	go t.loop()
	t.logger.Info("presence tracker started")
}

func (t *Tracker) Stop() {
	close(t.quit)
	<-t.done
	t.logger.Info("presence tracker stopped")
}

func (t *Tracker) loop() {
	defer close(t.done)
	for {
		wait := t.period
		if err := t.cycle(); err != nil {
			t.logger.Error("presence cycle failed", zap.Error(err))
			wait = t.backoff
		}
		select {
		case <-time.After(wait):
		case <-t.quit:
			return
		}
	}
}

func (t *Tracker) cycle() error {
	offset := t.capture.CaptureOffset()
	t.cmd.SendRaw(listCommand)

	select {
	case <-time.After(t.settle):
	case <-t.quit:
		return nil
	}

	appended := t.capture.CaptureSince(offset)
	if appended == "" {
		return fmt.Errorf("no listing output after %s", t.settle)
	}

	members := ParseMembers(strings.Split(appended, "\n"))
	if len(members) == 0 {
		return nil
	}

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Username
	}
	sort.Strings(names)

	if equalNames(names, t.lastMembers) {
		t.logger.Debug("no change in online members", zap.Int("count", len(members)))
		return nil
	}

	t.logger.Info("online members changed", zap.Int("count", len(members)))
	t.lastMembers = names
	if err := t.notifier.PublishPresence(members, time.Now()); err != nil {
		return fmt.Errorf("publish presence: %w", err)
	}
	return nil
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var (
	sectionRE   = regexp.MustCompile(`-- (.+) --`)
	timestampRE = regexp.MustCompile(`^[\d-]+ [\d:]+\s+`)
	rankTagRE   = regexp.MustCompile(`\[(.*?)\]`)
)

// ParseMembers extracts member entries from listing output lines. Entries
// are grouped under rank section headers and separated by bullet markers.
func ParseMembers(lines []string) []Member {
	var members []Member
	currentGuildRank := ""

	for _, line := range lines {
		clean := timestampRE.ReplaceAllString(strings.TrimSpace(line), "")

		if m := sectionRE.FindStringSubmatch(clean); m != nil {
			currentGuildRank = strings.TrimSpace(protocol.StripColors(m[1]))
			continue
		}

		if !strings.Contains(clean, "●") {
			continue
		}

		parts := strings.Split(clean, "●")
		// The final split carries no player.
		for _, part := range parts[:len(parts)-1] {
			entry := strings.TrimSpace(part)
			if entry == "" {
				continue
			}

			rank := ""
			name := entry
			if m := rankTagRE.FindStringSubmatch(entry); m != nil {
				rank = protocol.StripColors(m[1])
				if idx := strings.LastIndex(entry, "]"); idx >= 0 {
					name = entry[idx+1:]
				}
			}
			name = strings.TrimSpace(protocol.StripColors(name))
			if name == "" {
				continue
			}

			members = append(members, Member{
				Username:  name,
				Rank:      rank,
				GuildRank: currentGuildRank,
			})
		}
	}
	return members
}
