package protocol

import (
	"regexp"
	"strings"
	"time"
)

// Kind classifies one output line of the game client.
type Kind int

const (
	KindUnknown Kind = iota
	KindChat
	KindJoin
	KindLeave
	KindServerJoined
	KindDuplicateRejected
	KindConnectionLost
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindJoin:
		return "join"
	case KindLeave:
		return "leave"
	case KindServerJoined:
		return "server_joined"
	case KindDuplicateRejected:
		return "duplicate_rejected"
	case KindConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// Event is one structured protocol event. Immutable once produced.
// Message has color codes stripped; MessageRaw keeps them for consumers
// that render colors downstream.
type Event struct {
	Kind       Kind
	Channel    string
	Sender     string
	Message    string
	MessageRaw string
	Raw        string
	Timestamp  time.Time
}

const (
	serverJoinedMarker = "[MCC] Server was successfully joined."
	duplicateMarker    = "You cannot say the same message twice!"

	timestampLayout = "2006-01-02 15:04:05"
)

// UsernameRE matches a valid player username.
var UsernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`)

// AliasRE matches a valid username alias.
var AliasRE = regexp.MustCompile(`^[a-zA-Z0-9_]{1,16}$`)

// ShortcutNameRE matches a valid shortcut name.
var ShortcutNameRE = regexp.MustCompile(`^\w+$`)

var (
	colorCodeRE = regexp.MustCompile(`§.`)
	timestampRE = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\s+`)
	bracketedRE = regexp.MustCompile(`\s*\[.*?\]\s*`)

	chatRE      = regexp.MustCompile(`^(?P<channel>.*?)\s*>\s*(?:\[.*?\]\s*)?(?P<sender>.*?)\s*(?:\[.*?\])?\s*:\s*(?P<message>.*)$`)
	joinLeaveRE = regexp.MustCompile(`^(?P<channel>\w+)\s*>\s*(?P<name>[a-zA-Z0-9_]{3,16}) (?P<action>joined|left)\.$`)
	connLostRE  = regexp.MustCompile(`^(Connection has been lost\.|Login failed :)`)
)

// Parse turns one raw output line into an Event. The checks run in a fixed
// priority order: server-joined marker, chat pattern, join/leave pattern,
// duplicate-rejection literal, connection-lost pattern. Anything else is
// KindUnknown and should be discarded by consumers.
func Parse(line string) Event {
	raw := strings.TrimSpace(line)
	ev := Event{Kind: KindUnknown, Raw: raw}
	if raw == "" {
		return ev
	}

	if strings.Contains(raw, serverJoinedMarker) {
		ev.Kind = KindServerJoined
		return ev
	}

	clean := StripColors(raw)
	rest := clean
	rawRest := raw
	if m := timestampRE.FindStringSubmatch(clean); m != nil {
		if ts, err := time.Parse(timestampLayout, m[1]); err == nil {
			ev.Timestamp = ts
		}
		rest = clean[len(m[0]):]
	}
	if m := timestampRE.FindStringSubmatch(raw); m != nil {
		rawRest = raw[len(m[0]):]
	}

	if m := chatRE.FindStringSubmatch(rest); m != nil {
		channel := strings.TrimSpace(m[chatRE.SubexpIndex("channel")])
		sender := CleanSender(m[chatRE.SubexpIndex("sender")])
		message := strings.TrimSpace(m[chatRE.SubexpIndex("message")])
		if channel != "" && sender != "" {
			ev.Kind = KindChat
			ev.Channel = channel
			ev.Sender = sender
			ev.Message = message
			ev.MessageRaw = rawChatMessage(rawRest, message)
			return ev
		}
	}

	if m := joinLeaveRE.FindStringSubmatch(rest); m != nil {
		ev.Channel = m[joinLeaveRE.SubexpIndex("channel")]
		ev.Sender = m[joinLeaveRE.SubexpIndex("name")]
		if m[joinLeaveRE.SubexpIndex("action")] == "joined" {
			ev.Kind = KindJoin
		} else {
			ev.Kind = KindLeave
		}
		return ev
	}

	if strings.Contains(raw, duplicateMarker) {
		ev.Kind = KindDuplicateRejected
		return ev
	}

	if connLostRE.MatchString(rest) {
		ev.Kind = KindConnectionLost
		return ev
	}

	return ev
}

// rawChatMessage re-extracts the chat message from the color-bearing line.
// Falls back to the cleaned message when the raw match diverges from it.
func rawChatMessage(rawRest, message string) string {
	m := chatRE.FindStringSubmatch(rawRest)
	if m == nil {
		return message
	}
	rawMsg := strings.TrimSpace(m[chatRE.SubexpIndex("message")])
	if strings.TrimSpace(StripColors(rawMsg)) != message {
		return message
	}
	return rawMsg
}

// CleanSender strips bracketed rank/tag decorations and surrounding space
// from a sender name. Comparison against the bot's own username is a
// case-sensitive exact match on the cleaned value.
func CleanSender(s string) string {
	return strings.TrimSpace(bracketedRE.ReplaceAllString(s, " "))
}

// StripColors removes legacy color codes from a line.
func StripColors(s string) string {
	return colorCodeRE.ReplaceAllString(s, "")
}
