// Package dispatch routes inbound chat events to commands or the agent.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kyl3c/claude-code-claw/internal/chat"
	"github.com/kyl3c/claude-code-claw/internal/guard"
	"github.com/kyl3c/claude-code-claw/internal/logging"
	"github.com/kyl3c/claude-code-claw/internal/workspace"
)

// Agent is the slice of the AI bridge interactive messages need.
type Agent interface {
	Converse(ctx context.Context, chatID, prompt string) (string, error)
	Reset(chatID string) error
}

// Schedules handles the /schedule command family.
type Schedules interface {
	HandleSchedule(chatID, args string) string
	HandleList(chatID string) string
	HandleUnschedule(chatID, args string) string
}

// Docs provides the workspace documents the dispatcher reads.
type Docs interface {
	Memory() string
	DocsMatching(pattern string) ([]workspace.DocInfo, error)
	Read(name string) (string, error)
}

// Statuser reports heartbeat state for the /heartbeat command.
type Statuser interface {
	Status() string
}

// TextSender delivers plain text to a conversation.
type TextSender interface {
	Send(ctx context.Context, chatID, text string) error
}

const usage = `Commands:
/reset — forget the current session and start fresh
/schedule "<cron>" <prompt> — run a prompt on a schedule
/schedules — list scheduled jobs
/unschedule <id> — remove a scheduled job
/context [pattern|name] — list or show workspace documents
/heartbeat — show heartbeat status

Anything else is sent to the assistant.`

// Dispatcher fans inbound events out to handlers, one goroutine per event.
// The per-conversation guard is the only serialization between them.
type Dispatcher struct {
	agent     Agent
	schedules Schedules
	docs      Docs
	heartbeat Statuser // nil when the heartbeat is not configured
	sender    TextSender
	guard     *guard.Guard
	log       *slog.Logger
}

func New(agent Agent, schedules Schedules, docs Docs, heartbeat Statuser, sender TextSender, g *guard.Guard) *Dispatcher {
	return &Dispatcher{
		agent:     agent,
		schedules: schedules,
		docs:      docs,
		heartbeat: heartbeat,
		sender:    sender,
		guard:     g,
		log:       logging.ForComponent(logging.CompDispatch),
	}
}

// Run consumes events until the channel closes or the context ends.
func (d *Dispatcher) Run(ctx context.Context, events <-chan chat.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !wantEvent(ev) {
				continue
			}
			go d.handle(ctx, ev)
		}
	}
}

// wantEvent keeps new messages from anyone but the relay itself. Everything
// else, including our own echoes, is dropped.
func wantEvent(ev chat.Event) bool {
	return ev.Type == chat.EventMessage && ev.SenderKind != chat.SenderBot && ev.ChatID != ""
}

// handle processes one event. Errors stop at this boundary: they are logged
// and reported to the conversation, never allowed to affect other events.
func (d *Dispatcher) handle(ctx context.Context, ev chat.Event) {
	text := strings.TrimSpace(ev.Text)

	if strings.HasPrefix(text, "/") {
		d.reply(ctx, ev.ChatID, d.runCommand(ev.ChatID, text))
		return
	}

	if err := d.converse(ctx, ev); err != nil {
		d.log.Error("message handling failed", "chat", ev.ChatID, "err", err)
		d.reply(ctx, ev.ChatID, fmt.Sprintf("Something went wrong: %v", err))
	}
}

func (d *Dispatcher) runCommand(chatID, text string) string {
	cmd, args, _ := strings.Cut(text, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/reset":
		if err := d.agent.Reset(chatID); err != nil {
			return fmt.Sprintf("Reset failed: %v", err)
		}
		return "Session reset. The next message starts a fresh conversation."
	case "/schedule":
		return d.schedules.HandleSchedule(chatID, args)
	case "/schedules":
		return d.schedules.HandleList(chatID)
	case "/unschedule":
		return d.schedules.HandleUnschedule(chatID, args)
	case "/context":
		return d.contextReply(args)
	case "/heartbeat":
		if d.heartbeat == nil {
			return "Heartbeat is not configured."
		}
		return d.heartbeat.Status()
	default:
		return usage
	}
}

// contextReply lists workspace documents, or shows one. An argument with
// glob metacharacters filters the listing; a bare name prints the document.
func (d *Dispatcher) contextReply(args string) string {
	if args == "" || strings.ContainsAny(args, "*?[{") {
		docs, err := d.docs.DocsMatching(args)
		if err != nil {
			return fmt.Sprintf("Could not list documents: %v", err)
		}
		if len(docs) == 0 {
			return "No matching documents."
		}
		var b strings.Builder
		b.WriteString("Workspace documents:\n")
		for _, doc := range docs {
			fmt.Fprintf(&b, "%s (%d bytes)\n", doc.Name, doc.Size)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	content, err := d.docs.Read(args)
	if err != nil {
		return fmt.Sprintf("No document %q in the workspace.", args)
	}
	return content
}

// converse runs the general AI path: workspace context, attachment notes,
// then the user's literal text, blank-line separated, as a single prompt.
func (d *Dispatcher) converse(ctx context.Context, ev chat.Event) error {
	if err := d.guard.Acquire(ctx, ev.ChatID); err != nil {
		return err
	}
	defer d.guard.Release(ev.ChatID)

	text, err := d.agent.Converse(ctx, ev.ChatID, buildPrompt(d.docs.Memory(), ev))
	if err != nil {
		return err
	}
	d.reply(ctx, ev.ChatID, text)
	return nil
}

func buildPrompt(memory string, ev chat.Event) string {
	var parts []string
	if memory != "" {
		parts = append(parts, memory)
	}
	for _, att := range ev.Attachments {
		parts = append(parts, fmt.Sprintf("[User attached %s (%s), saved at %s]",
			att.Name, att.MediaType, att.Path))
	}
	parts = append(parts, ev.Text)
	return strings.Join(parts, "\n\n")
}

// reply sends best-effort; a failed send is logged and swallowed.
func (d *Dispatcher) reply(ctx context.Context, chatID, text string) {
	if err := d.sender.Send(ctx, chatID, text); err != nil {
		d.log.Error("reply failed", "chat", chatID, "err", err)
	}
}
