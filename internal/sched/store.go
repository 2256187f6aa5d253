// Package sched persists and fires cron-scheduled prompts.
package sched

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled prompt.
type Job struct {
	ID      int64     `json:"id"`
	Cron    string    `json:"cron"`
	Prompt  string    `json:"prompt"`
	ChatID  string    `json:"chat_id"`
	Enabled bool      `json:"enabled"`
	NextRun time.Time `json:"next_run"`
}

// Store owns the schedule list. Every mutation rewrites the full list to
// disk before returning.
type Store struct {
	mu   sync.Mutex
	path string
	jobs []Job
}

// OpenStore loads the schedule list from path. A missing file initializes an
// empty persisted list; an unparsable file is a fatal error.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read schedule store: %w", err)
		}
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.jobs); err != nil {
		return nil, fmt.Errorf("schedule store %s is corrupt: %w", path, err)
	}
	return s, nil
}

// NextOccurrence validates a cron expression by computing its next firing
// strictly after now, in UTC.
func NextOccurrence(expr string, now time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	next := schedule.Next(now.UTC())
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q has no future occurrence", expr)
	}
	return next, nil
}

// Add validates the cron expression, assigns the next free id, and persists
// the new enabled job.
func (s *Store) Add(expr, prompt, chatID string, now time.Time) (Job, error) {
	next, err := NextOccurrence(expr, now)
	if err != nil {
		return Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for _, job := range s.jobs {
		if job.ID > maxID {
			maxID = job.ID
		}
	}

	job := Job{
		ID:      maxID + 1,
		Cron:    expr,
		Prompt:  prompt,
		ChatID:  chatID,
		Enabled: true,
		NextRun: next,
	}
	s.jobs = append(s.jobs, job)
	if err := s.persist(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// List returns the enabled jobs belonging to a conversation.
func (s *Store) List(chatID string) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []Job
	for _, job := range s.jobs {
		if job.Enabled && job.ChatID == chatID {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Delete removes a job iff it exists and belongs to the conversation.
func (s *Store) Delete(id int64, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.jobs {
		if job.ID == id && job.ChatID == chatID {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return true, s.persist()
		}
	}
	return false, nil
}

// Due returns copies of enabled jobs whose next run is at or before now.
func (s *Store) Due(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Job
	for _, job := range s.jobs {
		if job.Enabled && !job.NextRun.After(now) {
			due = append(due, job)
		}
	}
	return due
}

// Commit replaces jobs by id and persists the full list once. Jobs deleted
// since they were read are skipped.
func (s *Store) Commit(changed []Job) error {
	if len(changed) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[int64]Job, len(changed))
	for _, job := range changed {
		byID[job.ID] = job
	}
	for i, job := range s.jobs {
		if updated, ok := byID[job.ID]; ok {
			s.jobs[i] = updated
		}
	}
	return s.persist()
}

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	if s.jobs == nil {
		data = []byte("[]")
	}
	data = append(data, '\n')
	return os.WriteFile(s.path, data, 0o600)
}
