package presence

import (
	"strings"
	"testing"
	"time"
)

var listingFixture = `2024-01-01 00:00:00 Guild Name: Decent
-- Guild Master --
[MVP+] Alice ●
-- Officer --
[VIP] Bob ● Carol ●
-- Member --
§a[MVP§6+§a] Dave§r ●
Total Members: 4
`

func TestParseMembers(t *testing.T) {
	members := ParseMembers(strings.Split(listingFixture, "\n"))
	want := []Member{
		{Username: "Alice", Rank: "MVP+", GuildRank: "Guild Master"},
		{Username: "Bob", Rank: "VIP", GuildRank: "Officer"},
		{Username: "Carol", Rank: "", GuildRank: "Officer"},
		{Username: "Dave", Rank: "MVP+", GuildRank: "Member"},
	}
	if len(members) != len(want) {
		t.Fatalf("got %d members: %+v", len(members), members)
	}
	for i, m := range members {
		if m != want[i] {
			t.Fatalf("member %d = %+v, want %+v", i, m, want[i])
		}
	}
}

func TestParseMembersEmptyOutput(t *testing.T) {
	if got := ParseMembers([]string{"", "no bullets here", "Total Members: 0"}); len(got) != 0 {
		t.Fatalf("got %+v", got)
	}
}

type fakeCapture struct {
	buf string
}

func (f *fakeCapture) CaptureOffset() int { return len(f.buf) }

func (f *fakeCapture) CaptureSince(offset int) string {
	if offset > len(f.buf) {
		return ""
	}
	return f.buf[offset:]
}

type fakeCommander struct {
	capture *fakeCapture
	output  string
	sent    []string
}

// SendRaw simulates the listing appearing in the capture buffer.
func (f *fakeCommander) SendRaw(command string) {
	f.sent = append(f.sent, command)
	f.capture.buf += f.output
}

type fakeNotifier struct {
	published [][]Member
	err       error
}

func (f *fakeNotifier) PublishPresence(members []Member, _ time.Time) error {
	f.published = append(f.published, members)
	return f.err
}

func newTestTracker(output string) (*Tracker, *fakeCommander, *fakeNotifier) {
	capture := &fakeCapture{}
	cmd := &fakeCommander{capture: capture, output: output}
	notifier := &fakeNotifier{}
	tr := NewTracker(capture, cmd, notifier, time.Minute, time.Millisecond, time.Minute, nil)
	return tr, cmd, notifier
}

func TestCycleNotifiesOnChange(t *testing.T) {
	tr, cmd, notifier := newTestTracker(listingFixture)

	if err := tr.cycle(); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(cmd.sent) != 1 || cmd.sent[0] != "/g online" {
		t.Fatalf("sent = %v", cmd.sent)
	}
	if len(notifier.published) != 1 {
		t.Fatalf("published %d summaries", len(notifier.published))
	}
	if len(notifier.published[0]) != 4 {
		t.Fatalf("summary = %+v", notifier.published[0])
	}
}

func TestCycleSkipsUnchangedSet(t *testing.T) {
	tr, _, notifier := newTestTracker(listingFixture)

	for i := 0; i < 3; i++ {
		if err := tr.cycle(); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if len(notifier.published) != 1 {
		t.Fatalf("published %d summaries, want 1", len(notifier.published))
	}
}

func TestCycleNotifiesAgainAfterChange(t *testing.T) {
	tr, cmd, notifier := newTestTracker(listingFixture)

	if err := tr.cycle(); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	cmd.output = "-- Member --\n[VIP] Eve ●\n"
	if err := tr.cycle(); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(notifier.published) != 2 {
		t.Fatalf("published %d summaries, want 2", len(notifier.published))
	}
	if got := notifier.published[1]; len(got) != 1 || got[0].Username != "Eve" {
		t.Fatalf("second summary = %+v", got)
	}
}

func TestCycleErrorsOnSilentClient(t *testing.T) {
	tr, _, notifier := newTestTracker("")

	if err := tr.cycle(); err == nil {
		t.Fatal("expected error when no listing output appears")
	}
	if len(notifier.published) != 0 {
		t.Fatalf("published = %+v", notifier.published)
	}
}
