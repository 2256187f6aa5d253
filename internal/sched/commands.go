package sched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const scheduleUsage = `Usage: /schedule "<cron>" <prompt>
Example: /schedule "0 9 * * 1-5" give me a morning briefing`

// HandleSchedule creates a job from `/schedule` arguments: a quoted cron
// expression followed by the prompt text.
func (s *Store) HandleSchedule(chatID, args string) string {
	expr, prompt, ok := splitScheduleArgs(args)
	if !ok {
		return scheduleUsage
	}

	job, err := s.Add(expr, prompt, chatID, time.Now())
	if err != nil {
		return fmt.Sprintf("Invalid cron expression %q. Nothing scheduled.", expr)
	}

	return fmt.Sprintf("Scheduled job %d: %q — %s\nNext run: %s",
		job.ID, job.Cron, job.Prompt, formatRun(job.NextRun))
}

// HandleList renders the conversation's enabled jobs.
func (s *Store) HandleList(chatID string) string {
	jobs := s.List(chatID)
	if len(jobs) == 0 {
		return "No scheduled jobs."
	}

	var b strings.Builder
	b.WriteString("Scheduled jobs:\n")
	for _, job := range jobs {
		fmt.Fprintf(&b, "%d: %q — %s (next: %s)\n",
			job.ID, job.Cron, job.Prompt, formatRun(job.NextRun))
	}
	return strings.TrimRight(b.String(), "\n")
}

// HandleUnschedule deletes a job by id, scoped to the conversation.
func (s *Store) HandleUnschedule(chatID, args string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return "Usage: /unschedule <id>"
	}

	deleted, err := s.Delete(id, chatID)
	if err != nil {
		return fmt.Sprintf("Could not delete job %d: %v", id, err)
	}
	if !deleted {
		return fmt.Sprintf("No job %d found for this conversation.", id)
	}
	return fmt.Sprintf("Deleted job %d.", id)
}

// splitScheduleArgs parses `"<cron>" <prompt>`. Both parts are required.
func splitScheduleArgs(args string) (expr, prompt string, ok bool) {
	args = strings.TrimSpace(args)
	if !strings.HasPrefix(args, `"`) {
		return "", "", false
	}
	rest := args[1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return "", "", false
	}
	expr = rest[:end]
	prompt = strings.TrimSpace(rest[end+1:])
	if expr == "" || prompt == "" {
		return "", "", false
	}
	return expr, prompt, true
}

func formatRun(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
