// Package session persists the mapping from conversation id to claude
// session id. The map is written through to disk on every mutation, so a
// crash loses at most the in-flight operation.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store owns the conversation -> session-id map.
type Store struct {
	mu       sync.Mutex
	path     string
	sessions map[string]string
}

// Open loads the store from path, initializing an empty persisted store if
// the file does not exist. A file that exists but cannot be parsed is a
// fatal error: the store is trusted internal state, not user input.
func Open(path string) (*Store, error) {
	s := &Store{
		path:     path,
		sessions: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read session store: %w", err)
		}
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.sessions); err != nil {
		return nil, fmt.Errorf("session store %s is corrupt: %w", path, err)
	}
	if s.sessions == nil {
		s.sessions = make(map[string]string)
	}
	return s, nil
}

// Get returns the session id for a conversation, if one is stored.
func (s *Store) Get(conversationID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[conversationID]
	return id, ok
}

// Set stores the session id for a conversation and persists before returning.
func (s *Store) Set(conversationID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conversationID] = sessionID
	return s.persist()
}

// Delete removes the conversation's session and persists before returning.
// Deleting an absent conversation still persists (harmless rewrite).
func (s *Store) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
	return s.persist()
}

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(s.path, data, 0o600)
}
