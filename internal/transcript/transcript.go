// Package transcript reads and surgically rewrites claude CLI session logs.
// The logs are newline-delimited JSON, append-only except for the pruner's
// whole-file rewrite after a suppressed heartbeat exchange.
package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry types observed in claude session logs.
const (
	TypeUser      = "user"
	TypeAssistant = "assistant"
	TypeSnapshot  = "file-history-snapshot"
)

// Entry is one transcript line. Fields beyond type/uuid/parentUuid are
// preserved verbatim through the raw map so a rewrite never drops data it
// does not understand.
type Entry struct {
	Type       string
	UUID       string
	ParentUUID string

	raw map[string]json.RawMessage
}

// ParseEntries parses every line of a transcript. Any line that is not a
// JSON object, or any entry missing its type or uuid, is an error: callers
// must never mutate a log whose shape is not fully understood.
func ParseEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		entry := Entry{raw: raw}
		if err := unmarshalField(raw, "type", &entry.Type); err != nil {
			return nil, fmt.Errorf("line %d: type: %w", i+1, err)
		}
		if err := unmarshalField(raw, "uuid", &entry.UUID); err != nil {
			return nil, fmt.Errorf("line %d: uuid: %w", i+1, err)
		}
		if err := unmarshalField(raw, "parentUuid", &entry.ParentUUID); err != nil {
			return nil, fmt.Errorf("line %d: parentUuid: %w", i+1, err)
		}

		if entry.Type == "" {
			return nil, fmt.Errorf("line %d: missing type", i+1)
		}
		if entry.UUID == "" {
			return nil, fmt.Errorf("line %d: missing uuid", i+1)
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

func unmarshalField(raw map[string]json.RawMessage, key string, dst *string) error {
	val, ok := raw[key]
	if !ok || string(val) == "null" {
		return nil
	}
	return json.Unmarshal(val, dst)
}

// Marshal serializes the entry back to a single JSON line, reflecting any
// parent rewrite and preserving unrecognized fields.
func (e Entry) Marshal() ([]byte, error) {
	if e.raw == nil {
		e.raw = make(map[string]json.RawMessage)
	}
	parent, err := json.Marshal(e.ParentUUID)
	if err != nil {
		return nil, err
	}
	if e.ParentUUID == "" {
		if _, present := e.raw["parentUuid"]; present {
			e.raw["parentUuid"] = json.RawMessage("null")
		}
	} else {
		e.raw["parentUuid"] = parent
	}
	return json.Marshal(e.raw)
}

// RemoveLastExchange removes the most recent user entry, the most recent
// assistant entry, and every snapshot entry at or after the earlier of the
// two. The two need not be adjacent. Returns ok=false (and the input
// unchanged) when no complete exchange exists.
func RemoveLastExchange(entries []Entry) ([]Entry, bool) {
	lastUser, lastAssistant := -1, -1
	for i := len(entries) - 1; i >= 0; i-- {
		switch entries[i].Type {
		case TypeUser:
			if lastUser < 0 {
				lastUser = i
			}
		case TypeAssistant:
			if lastAssistant < 0 {
				lastAssistant = i
			}
		}
		if lastUser >= 0 && lastAssistant >= 0 {
			break
		}
	}
	if lastUser < 0 || lastAssistant < 0 {
		return entries, false
	}

	cutoff := lastUser
	if lastAssistant < cutoff {
		cutoff = lastAssistant
	}

	filtered := make([]Entry, 0, len(entries))
	for i, entry := range entries {
		if i == lastUser || i == lastAssistant {
			continue
		}
		if entry.Type == TypeSnapshot && i >= cutoff {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered, true
}

// RepairChain rewrites parent references so every entry points at the entry
// immediately preceding it. The first entry is left untouched. Pure over the
// slice: entries are modified in place and returned for convenience.
func RepairChain(entries []Entry) []Entry {
	for i := 1; i < len(entries); i++ {
		prev := entries[i-1].UUID
		if entries[i].ParentUUID != prev {
			entries[i].ParentUUID = prev
		}
	}
	return entries
}

// MarshalEntries serializes entries one per line, trailing newline included.
func MarshalEntries(entries []Entry) ([]byte, error) {
	var b strings.Builder
	for _, entry := range entries {
		line, err := entry.Marshal()
		if err != nil {
			return nil, err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}
