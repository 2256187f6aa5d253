package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyl3c/claude-code-claw/internal/guard"
	"github.com/kyl3c/claude-code-claw/internal/logging"
)

// Runner is the slice of the AI bridge the scheduler needs: fresh,
// stateless invocations only. Scheduled firings never resume a session.
type Runner interface {
	Oneshot(ctx context.Context, chatID, prompt string) (string, error)
}

// TextSender delivers plain text to a conversation.
type TextSender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Scheduler polls the job store and fires due jobs.
type Scheduler struct {
	store  *Store
	runner Runner
	sender TextSender
	guard  *guard.Guard
	log    *slog.Logger

	interval time.Duration
	now      func() time.Time
}

// New creates a scheduler polling once per minute.
func New(store *Store, runner Runner, sender TextSender, g *guard.Guard) *Scheduler {
	return &Scheduler{
		store:    store,
		runner:   runner,
		sender:   sender,
		guard:    g,
		log:      logging.ForComponent(logging.CompScheduler),
		interval: time.Minute,
		now:      time.Now,
	}
}

// Run polls until the context ends. Most passes fire nothing.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires every due job and persists the changed jobs once. Each job's
// failures are isolated: an error is reported to the job's conversation and
// the job still advances to its next occurrence.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	due := s.store.Due(now)
	if len(due) == 0 {
		return
	}

	changed := make([]Job, 0, len(due))
	for _, job := range due {
		s.fire(ctx, &job, now)
		changed = append(changed, job)
	}

	if err := s.store.Commit(changed); err != nil {
		s.log.Error("persist schedule failed", "err", err)
	}
}

// fire runs one job and recomputes its next run. A failed invocation is not
// retried early; the job waits for its next natural occurrence. A cron
// expression that no longer parses disables the job rather than deleting it.
func (s *Scheduler) fire(ctx context.Context, job *Job, now time.Time) {
	s.log.Info("firing job", "id", job.ID, "chat", job.ChatID, "cron", job.Cron)

	if err := s.guard.Acquire(ctx, job.ChatID); err != nil {
		s.log.Warn("job cancelled before start", "id", job.ID, "err", err)
		return
	}
	text, err := s.runner.Oneshot(ctx, job.ChatID, job.Prompt)
	s.guard.Release(job.ChatID)

	if err != nil {
		s.log.Error("job failed", "id", job.ID, "err", err)
		s.deliver(ctx, job.ChatID, fmt.Sprintf("Scheduled job %d failed: %v", job.ID, err))
	} else {
		s.deliver(ctx, job.ChatID, text)
	}

	next, nerr := NextOccurrence(job.Cron, now)
	if nerr != nil {
		s.log.Error("disabling job with unparsable cron", "id", job.ID, "cron", job.Cron)
		job.Enabled = false
		return
	}
	job.NextRun = next
}

// deliver sends best-effort; a failed send is logged and swallowed.
func (s *Scheduler) deliver(ctx context.Context, chatID, text string) {
	if err := s.sender.Send(ctx, chatID, text); err != nil {
		s.log.Error("deliver failed", "chat", chatID, "err", err)
	}
}
