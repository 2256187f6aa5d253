package transcript

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kyl3c/claude-code-claw/internal/logging"
)

// Pruner removes suppressed heartbeat exchanges from claude session logs.
type Pruner struct {
	projectsDir string
	workspace   string
	log         *slog.Logger
}

// NewPruner creates a pruner for session logs of the given workspace
// directory. When projectsDir is empty, the default ~/.claude/projects
// location is used.
func NewPruner(workspace, projectsDir string) (*Pruner, error) {
	if projectsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		projectsDir = filepath.Join(home, ".claude", "projects")
	}
	return &Pruner{
		projectsDir: projectsDir,
		workspace:   workspace,
		log:         logging.ForComponent(logging.CompTranscript),
	}, nil
}

// SessionLogPath resolves the on-disk log for a session id. The claude CLI
// stores logs under a directory named after the project path with path
// separators and dots replaced by dashes.
func (p *Pruner) SessionLogPath(sessionID string) string {
	munged := strings.NewReplacer("/", "-", ".", "-", "_", "-").Replace(p.workspace)
	return filepath.Join(p.projectsDir, munged, sessionID+".jsonl")
}

// PruneSession removes the most recent user/assistant exchange from the
// session's log and repairs the parent chain. Missing logs are a no-op.
// Parse failures abort without mutating anything.
func (p *Pruner) PruneSession(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	path := p.SessionLogPath(sessionID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.log.Debug("no session log to prune", "session", sessionID)
			return nil
		}
		return fmt.Errorf("read session log: %w", err)
	}

	entries, err := ParseEntries(data)
	if err != nil {
		return fmt.Errorf("session log %s: %w", path, err)
	}

	pruned, ok := RemoveLastExchange(entries)
	if !ok {
		p.log.Debug("no complete exchange to prune", "session", sessionID)
		return nil
	}
	pruned = RepairChain(pruned)

	out, err := MarshalEntries(pruned)
	if err != nil {
		return fmt.Errorf("serialize session log: %w", err)
	}

	// Single WriteFile keeps the rewrite atomic relative to readers in this
	// process: no intermediate truncated state is ever handed out.
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("rewrite session log: %w", err)
	}

	p.log.Info("pruned heartbeat exchange",
		"session", sessionID,
		"removed", len(entries)-len(pruned))
	return nil
}
