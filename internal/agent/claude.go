// Package agent wraps the claude CLI as a pseudo-RPC peer: one prompt and an
// optional resume token in, final text and a session token out.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kyl3c/claude-code-claw/internal/logging"
)

// ErrStaleSession indicates the CLI rejected the resume token. The caller
// clears the stored session and retries once without it.
var ErrStaleSession = errors.New("claude session no longer resumable")

// Request is a single invocation of the CLI.
type Request struct {
	// Prompt is delivered on stdin.
	Prompt string

	// SessionID resumes a prior conversation when non-empty.
	SessionID string

	// ChatID identifies the requesting conversation, for logging only.
	ChatID string
}

// Result is the CLI's final output.
type Result struct {
	// Text is the assistant's reply.
	Text string

	// SessionID identifies the session this exchange was recorded under.
	SessionID string
}

// Invoker is the AI bridge contract consumed by the dispatcher, scheduler,
// and heartbeat controller.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// CLI invokes the claude executable.
type CLI struct {
	binPath   string
	workspace string
	model     string
	timeout   time.Duration
	log       *slog.Logger
}

// NewCLI resolves the claude executable and returns a CLI bound to the
// workspace directory. Model may be empty.
func NewCLI(workspace, model string, timeout time.Duration) (*CLI, error) {
	binPath, err := resolveClaudePath()
	if err != nil {
		return nil, err
	}
	return &CLI{
		binPath:   binPath,
		workspace: workspace,
		model:     model,
		timeout:   timeout,
		log:       logging.ForComponent(logging.CompAgent),
	}, nil
}

// resolveClaudePath finds the claude executable, checking common install
// locations after PATH.
func resolveClaudePath() (string, error) {
	if path, err := exec.LookPath("claude"); err == nil {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	commonPaths := []string{
		filepath.Join(home, ".claude", "local", "claude"),
		filepath.Join(home, ".local", "bin", "claude"),
		filepath.Join(home, "bin", "claude"),
		"/opt/homebrew/bin/claude",
		"/usr/local/bin/claude",
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("claude executable not found in PATH or common locations")
}

// buildArgs assembles the CLI argv for a request. A fresh invocation gets a
// generated session id so the token is known even if output parsing fails;
// a resumed one passes the stored token to --resume.
func (c *CLI) buildArgs(req Request, freshID string) []string {
	args := []string{"-p", "--output-format", "json"}
	if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
	} else {
		args = append(args, "--session-id", freshID)
	}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	if prompt := c.systemPrompt(); prompt != "" {
		args = append(args, "--append-system-prompt", prompt)
	}
	return args
}

// systemPrompt reads the workspace personality document, if present.
func (c *CLI) systemPrompt() string {
	data, err := os.ReadFile(filepath.Join(c.workspace, "SYSTEM.md"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// resultEnvelope is the claude CLI's JSON result record.
type resultEnvelope struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	IsError   bool   `json:"is_error"`
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
}

// Invoke runs the CLI to completion under the configured wall-clock timeout.
// On expiry the process is killed and a timeout error is returned.
func (c *CLI) Invoke(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	freshID := uuid.New().String()
	args := c.buildArgs(req, freshID)

	cmd := exec.CommandContext(ctx, c.binPath, args...)
	cmd.Dir = c.workspace
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		c.log.Warn("claude invocation timed out",
			"chat", req.ChatID, "elapsed", elapsed)
		return nil, fmt.Errorf("claude timed out after %s", c.timeout)
	}

	if err != nil {
		combined := stdout.String() + stderr.String()
		if isStaleSessionOutput(combined, req.SessionID) {
			return nil, ErrStaleSession
		}
		c.log.Error("claude invocation failed",
			"chat", req.ChatID, "elapsed", elapsed, "stderr", truncate(stderr.String(), 500))
		return nil, fmt.Errorf("claude failed: %w: %s", err, truncate(combined, 200))
	}

	result, perr := parseResult(stdout.Bytes())
	if perr != nil {
		c.log.Error("claude output unparsable", "chat", req.ChatID, "err", perr)
		return nil, perr
	}
	if result.SessionID == "" {
		if req.SessionID != "" {
			result.SessionID = req.SessionID
		} else {
			result.SessionID = freshID
		}
	}

	c.log.Info("claude invocation completed",
		"chat", req.ChatID, "elapsed", elapsed, "session", result.SessionID)
	return result, nil
}

// parseResult extracts the final result record from CLI output.
func parseResult(out []byte) (*Result, error) {
	var env resultEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(out), &env); err != nil {
		return nil, fmt.Errorf("parse claude output: %w", err)
	}
	if env.IsError {
		return nil, fmt.Errorf("claude reported error: %s", truncate(env.Result, 200))
	}
	return &Result{Text: env.Result, SessionID: env.SessionID}, nil
}

// isStaleSessionOutput recognizes the CLI's unknown-session complaints.
func isStaleSessionOutput(output, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	return strings.Contains(output, "No conversation found with session ID") ||
		strings.Contains(output, "is not a valid session")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
