package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kyl3c/claude-code-claw/internal/logging"
	"github.com/kyl3c/claude-code-claw/internal/session"
)

// Bridge pairs an Invoker with the session store, adding resume-token
// lifecycle: lookup before invoking, write-through after every successful
// reply, clear-and-retry-once on a stale token.
type Bridge struct {
	invoker  Invoker
	sessions *session.Store
	log      *slog.Logger
}

// NewBridge creates a bridge over the given invoker and session store.
func NewBridge(invoker Invoker, sessions *session.Store) *Bridge {
	return &Bridge{
		invoker:  invoker,
		sessions: sessions,
		log:      logging.ForComponent(logging.CompAgent),
	}
}

// Converse invokes the AI within the conversation's session. A stored token
// that the CLI reports stale is deleted and the invocation retried exactly
// once without resume. The fresh token is stored on every success.
func (b *Bridge) Converse(ctx context.Context, chatID, prompt string) (string, error) {
	req := Request{Prompt: prompt, ChatID: chatID}
	if token, ok := b.sessions.Get(chatID); ok {
		req.SessionID = token
	}

	result, err := b.invoker.Invoke(ctx, req)
	if errors.Is(err, ErrStaleSession) {
		b.log.Info("stale session, retrying without resume", "chat", chatID)
		if derr := b.sessions.Delete(chatID); derr != nil {
			return "", derr
		}
		req.SessionID = ""
		result, err = b.invoker.Invoke(ctx, req)
	}
	if err != nil {
		return "", err
	}

	if err := b.sessions.Set(chatID, result.SessionID); err != nil {
		return "", err
	}
	return result.Text, nil
}

// Oneshot invokes the AI with no session: no resume token, and the resulting
// session is not stored. Scheduled firings use this so routine jobs never
// perturb interactive conversation state.
func (b *Bridge) Oneshot(ctx context.Context, chatID, prompt string) (string, error) {
	result, err := b.invoker.Invoke(ctx, Request{Prompt: prompt, ChatID: chatID})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// CurrentSession returns the conversation's stored session token, if any.
func (b *Bridge) CurrentSession(chatID string) (string, bool) {
	return b.sessions.Get(chatID)
}

// Reset clears the conversation's stored session.
func (b *Bridge) Reset(chatID string) error {
	return b.sessions.Delete(chatID)
}
