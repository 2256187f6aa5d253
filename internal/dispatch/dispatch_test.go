package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kyl3c/claude-code-claw/internal/chat"
	"github.com/kyl3c/claude-code-claw/internal/guard"
	"github.com/kyl3c/claude-code-claw/internal/workspace"
)

type fakeAgent struct {
	prompts []string
	text    string
	err     error
	resets  []string
}

func (f *fakeAgent) Converse(ctx context.Context, chatID, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeAgent) Reset(chatID string) error {
	f.resets = append(f.resets, chatID)
	return nil
}

type fakeSchedules struct{}

func (fakeSchedules) HandleSchedule(chatID, args string) string   { return "scheduled:" + args }
func (fakeSchedules) HandleList(chatID string) string             { return "list:" + chatID }
func (fakeSchedules) HandleUnschedule(chatID, args string) string { return "unscheduled:" + args }

type fakeDocs struct {
	memory string
	docs   []workspace.DocInfo
	files  map[string]string
}

func (f *fakeDocs) Memory() string { return f.memory }

func (f *fakeDocs) DocsMatching(pattern string) ([]workspace.DocInfo, error) {
	if pattern == "" {
		return f.docs, nil
	}
	var matched []workspace.DocInfo
	for _, doc := range f.docs {
		if strings.Contains(doc.Name, strings.Trim(pattern, "*")) {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

func (f *fakeDocs) Read(name string) (string, error) {
	if content, ok := f.files[name]; ok {
		return content, nil
	}
	return "", errors.New("no such document")
}

type fakeStatus string

func (f fakeStatus) Status() string { return string(f) }

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(ctx context.Context, chatID, text string) error {
	f.sent = append(f.sent, chatID+"|"+text)
	return nil
}

func newDispatcher(agent *fakeAgent, docs *fakeDocs, sender *fakeSender) *Dispatcher {
	if docs == nil {
		docs = &fakeDocs{}
	}
	return New(agent, fakeSchedules{}, docs, fakeStatus("hb status"), sender, guard.New())
}

func message(chatID, text string) chat.Event {
	return chat.Event{Type: chat.EventMessage, ChatID: chatID, Sender: "kyle", SenderKind: chat.SenderHuman, Text: text}
}

func TestWantEvent(t *testing.T) {
	if !wantEvent(message("c", "hi")) {
		t.Fatalf("human message must pass the filter")
	}

	rejected := []chat.Event{
		{Type: chat.EventMessage, ChatID: "c", SenderKind: chat.SenderBot, Text: "echo"},
		{Type: "presence", ChatID: "c", SenderKind: chat.SenderHuman},
		{Type: chat.EventMessage, SenderKind: chat.SenderHuman, Text: "no chat id"},
	}
	for _, ev := range rejected {
		if wantEvent(ev) {
			t.Fatalf("event %+v must be filtered out", ev)
		}
	}
}

func TestConverseBuildsPrompt(t *testing.T) {
	agent := &fakeAgent{text: "hello back"}
	docs := &fakeDocs{memory: "Owner is Kyle."}
	sender := &fakeSender{}
	d := newDispatcher(agent, docs, sender)

	ev := message("conv-a", "hello there")
	ev.Attachments = []chat.Attachment{{Name: "notes.pdf", Path: "/tmp/notes.pdf", MediaType: "application/pdf"}}
	d.handle(context.Background(), ev)

	if len(agent.prompts) != 1 {
		t.Fatalf("expected one invocation, got %d", len(agent.prompts))
	}
	parts := strings.Split(agent.prompts[0], "\n\n")
	if len(parts) != 3 {
		t.Fatalf("expected memory, attachment note, text; got %q", agent.prompts[0])
	}
	if parts[0] != "Owner is Kyle." || !strings.Contains(parts[1], "notes.pdf") || parts[2] != "hello there" {
		t.Fatalf("prompt parts out of order: %q", parts)
	}

	if len(sender.sent) != 1 || sender.sent[0] != "conv-a|hello back" {
		t.Fatalf("unexpected sends: %v", sender.sent)
	}
}

func TestConverseWithoutMemoryOrAttachments(t *testing.T) {
	agent := &fakeAgent{text: "ok"}
	d := newDispatcher(agent, nil, &fakeSender{})

	d.handle(context.Background(), message("conv-a", "just text"))

	if len(agent.prompts) != 1 || agent.prompts[0] != "just text" {
		t.Fatalf("bare message must pass through untouched: %q", agent.prompts)
	}
}

func TestConverseErrorReported(t *testing.T) {
	agent := &fakeAgent{err: errors.New("claude exploded")}
	sender := &fakeSender{}
	d := newDispatcher(agent, nil, sender)

	d.handle(context.Background(), message("conv-a", "hi"))

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "claude exploded") {
		t.Fatalf("expected best-effort error reply, got %v", sender.sent)
	}
}

func TestConverseReleasesGuard(t *testing.T) {
	agent := &fakeAgent{err: errors.New("boom")}
	d := newDispatcher(agent, nil, &fakeSender{})

	d.handle(context.Background(), message("conv-a", "hi"))

	if d.guard.Held("conv-a") {
		t.Fatalf("guard leaked after failed invocation")
	}
}

func TestResetCommand(t *testing.T) {
	agent := &fakeAgent{}
	sender := &fakeSender{}
	d := newDispatcher(agent, nil, sender)

	d.handle(context.Background(), message("conv-a", "/reset"))

	if len(agent.resets) != 1 || agent.resets[0] != "conv-a" {
		t.Fatalf("expected reset for conv-a, got %v", agent.resets)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Session reset") {
		t.Fatalf("unexpected reply: %v", sender.sent)
	}
	if len(agent.prompts) != 0 {
		t.Fatalf("commands must not reach the agent: %v", agent.prompts)
	}
}

func TestScheduleCommandsDelegate(t *testing.T) {
	sender := &fakeSender{}
	d := newDispatcher(&fakeAgent{}, nil, sender)

	d.handle(context.Background(), message("conv-a", `/schedule "0 9 * * *" briefing`))
	d.handle(context.Background(), message("conv-a", "/schedules"))
	d.handle(context.Background(), message("conv-a", "/unschedule 3"))

	want := []string{
		`conv-a|scheduled:"0 9 * * *" briefing`,
		"conv-a|list:conv-a",
		"conv-a|unscheduled:3",
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 replies, got %v", sender.sent)
	}
	for i, w := range want {
		if sender.sent[i] != w {
			t.Fatalf("reply %d = %q, want %q", i, sender.sent[i], w)
		}
	}
}

func TestContextCommand(t *testing.T) {
	docs := &fakeDocs{
		docs: []workspace.DocInfo{
			{Name: "MEMORY.md", Size: 120},
			{Name: "SYSTEM.md", Size: 48},
		},
		files: map[string]string{"MEMORY.md": "remember the milk"},
	}
	sender := &fakeSender{}
	d := newDispatcher(&fakeAgent{}, docs, sender)

	d.handle(context.Background(), message("conv-a", "/context"))
	d.handle(context.Background(), message("conv-a", "/context *MEM*"))
	d.handle(context.Background(), message("conv-a", "/context MEMORY.md"))
	d.handle(context.Background(), message("conv-a", "/context NOPE.md"))

	if !strings.Contains(sender.sent[0], "MEMORY.md (120 bytes)") || !strings.Contains(sender.sent[0], "SYSTEM.md") {
		t.Fatalf("bare /context should list everything: %q", sender.sent[0])
	}
	if strings.Contains(sender.sent[1], "SYSTEM.md") || !strings.Contains(sender.sent[1], "MEMORY.md") {
		t.Fatalf("glob should filter the listing: %q", sender.sent[1])
	}
	if sender.sent[2] != "conv-a|remember the milk" {
		t.Fatalf("named doc should print its contents: %q", sender.sent[2])
	}
	if !strings.Contains(sender.sent[3], `No document "NOPE.md"`) {
		t.Fatalf("missing doc reply: %q", sender.sent[3])
	}
}

func TestHeartbeatCommand(t *testing.T) {
	sender := &fakeSender{}
	d := newDispatcher(&fakeAgent{}, nil, sender)
	d.handle(context.Background(), message("conv-a", "/heartbeat"))
	if sender.sent[0] != "conv-a|hb status" {
		t.Fatalf("unexpected reply: %v", sender.sent)
	}

	sender2 := &fakeSender{}
	d2 := New(&fakeAgent{}, fakeSchedules{}, &fakeDocs{}, nil, sender2, guard.New())
	d2.handle(context.Background(), message("conv-a", "/heartbeat"))
	if sender2.sent[0] != "conv-a|Heartbeat is not configured." {
		t.Fatalf("unexpected reply: %v", sender2.sent)
	}
}

func TestUnknownCommandShowsUsage(t *testing.T) {
	sender := &fakeSender{}
	d := newDispatcher(&fakeAgent{}, nil, sender)
	d.handle(context.Background(), message("conv-a", "/bogus"))
	if !strings.Contains(sender.sent[0], "Commands:") {
		t.Fatalf("expected usage, got %q", sender.sent[0])
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	d := newDispatcher(&fakeAgent{}, nil, &fakeSender{})
	events := make(chan chat.Event)
	close(events)
	if err := d.Run(context.Background(), events); err != nil {
		t.Fatalf("closed channel should end Run cleanly, got %v", err)
	}
}
