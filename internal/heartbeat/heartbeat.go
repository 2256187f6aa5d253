// Package heartbeat periodically asks the agent to review a checklist and
// keeps quiet results out of both the conversation and its transcript.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kyl3c/claude-code-claw/internal/config"
	"github.com/kyl3c/claude-code-claw/internal/guard"
	"github.com/kyl3c/claude-code-claw/internal/logging"
)

// Sentinel is the exact reply meaning nothing on the checklist needs
// attention.
const Sentinel = "HEARTBEAT_OK"

// maxSentinelLen caps how long a reply may be and still count as the
// sentinel. A model that appends commentary has something to say.
const maxSentinelLen = 300

// Agent is the slice of the AI bridge the controller needs. Heartbeats run
// in the target conversation's session so follow-up questions have context.
type Agent interface {
	Converse(ctx context.Context, chatID, prompt string) (string, error)
	CurrentSession(chatID string) (string, bool)
}

// Docs provides the workspace documents a heartbeat prompt is built from.
type Docs interface {
	Memory() string
	Checklist() string
}

// Pruner removes the latest exchange from a session's transcript.
type Pruner interface {
	PruneSession(sessionID string) error
}

// TextSender delivers plain text to a conversation.
type TextSender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Controller drives the heartbeat loop for a single target conversation.
type Controller struct {
	cfg    *config.HeartbeatConfig
	agent  Agent
	docs   Docs
	pruner Pruner
	sender TextSender
	guard  *guard.Guard
	log    *slog.Logger

	now func() time.Time
}

func New(cfg *config.HeartbeatConfig, agent Agent, docs Docs, pruner Pruner, sender TextSender, g *guard.Guard) *Controller {
	return &Controller{
		cfg:    cfg,
		agent:  agent,
		docs:   docs,
		pruner: pruner,
		sender: sender,
		guard:  g,
		log:    logging.ForComponent(logging.CompHeartbeat),
		now:    time.Now,
	}
}

// Run ticks at the configured interval until the context ends.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one heartbeat pass. Every skip path is silent; every failure is
// logged and swallowed. The loop itself never dies over a bad tick.
func (c *Controller) tick(ctx context.Context) {
	if !c.inWindow(c.now()) {
		return
	}

	checklist := c.docs.Checklist()
	if checklistEmpty(checklist) {
		return
	}

	// Interactive traffic wins: if the conversation is busy, this tick is
	// dropped, not queued.
	if !c.guard.TryAcquire(c.cfg.ChatID) {
		c.log.Debug("conversation busy, skipping tick", "chat", c.cfg.ChatID)
		return
	}
	text, err := c.agent.Converse(ctx, c.cfg.ChatID, c.buildPrompt(checklist))
	c.guard.Release(c.cfg.ChatID)

	if err != nil {
		c.log.Error("heartbeat invocation failed", "chat", c.cfg.ChatID, "err", err)
		return
	}

	if IsSentinel(text) {
		c.log.Info("heartbeat ok, suppressing", "chat", c.cfg.ChatID)
		c.prune()
		return
	}

	if err := c.sender.Send(ctx, c.cfg.ChatID, text); err != nil {
		c.log.Error("deliver heartbeat result failed", "chat", c.cfg.ChatID, "err", err)
	}
}

// prune drops the sentinel exchange from the session transcript so routine
// check-ins never accumulate in conversation history. Best effort only.
func (c *Controller) prune() {
	sessionID, ok := c.agent.CurrentSession(c.cfg.ChatID)
	if !ok {
		return
	}
	if err := c.pruner.PruneSession(sessionID); err != nil {
		c.log.Warn("prune after quiet heartbeat failed", "session", sessionID, "err", err)
	}
}

// inWindow reports whether t falls inside the active window, evaluated in
// the configured timezone: start <= hour < end.
func (c *Controller) inWindow(t time.Time) bool {
	hour := t.In(c.cfg.Location).Hour()
	return hour >= c.cfg.StartHour && hour < c.cfg.EndHour
}

func (c *Controller) buildPrompt(checklist string) string {
	var b strings.Builder
	if memory := c.docs.Memory(); memory != "" {
		b.WriteString(memory)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, `This is a scheduled check-in. Review the checklist below.

%s

If nothing needs attention right now, reply with exactly %s and nothing else.
Otherwise reply with a brief summary of what needs attention.`, checklist, Sentinel)
	return b.String()
}

// Status describes the controller's current configuration and state, for
// the /heartbeat command.
func (c *Controller) Status() string {
	now := c.now().In(c.cfg.Location)
	state := "outside active window"
	if c.inWindow(now) {
		state = "inside active window"
	}
	checklist := "empty"
	if !checklistEmpty(c.docs.Checklist()) {
		checklist = "has items"
	}
	return fmt.Sprintf("Heartbeat: every %s, active %02d:00-%02d:00 %s (currently %s), checklist %s, reporting to %s.",
		c.cfg.Interval, c.cfg.StartHour, c.cfg.EndHour, c.cfg.Location, state, checklist, c.cfg.ChatID)
}

// IsSentinel reports whether a reply means "nothing needs attention".
// Markdown dressing around the sentinel still counts; extra prose does not.
var sentinelStrip = strings.NewReplacer(
	"*", "", "_", "", "`", "", "#", "", ">", "", "\n", "", "\r", "",
)

func IsSentinel(raw string) bool {
	if len(raw) > maxSentinelLen {
		return false
	}
	return strings.TrimSpace(sentinelStrip.Replace(raw)) == Sentinel
}

// checklistEmpty reports whether the checklist has no content once section
// headers and horizontal rules are ignored.
func checklistEmpty(checklist string) bool {
	for _, line := range strings.Split(checklist, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || isHorizontalRule(line) {
			continue
		}
		return false
	}
	return true
}

func isHorizontalRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	marker := rune(line[0])
	if marker != '-' && marker != '*' && marker != '_' {
		return false
	}
	for _, r := range line {
		if r != marker && r != ' ' {
			return false
		}
	}
	return true
}
