package agent

import (
	"strings"
	"testing"
	"time"
)

func testCLI() *CLI {
	return &CLI{
		binPath:   "/usr/local/bin/claude",
		workspace: "/nonexistent/workspace",
		timeout:   time.Minute,
	}
}

func TestBuildArgsFresh(t *testing.T) {
	c := testCLI()
	args := c.buildArgs(Request{Prompt: "hi"}, "fresh-id")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--session-id fresh-id") {
		t.Fatalf("fresh invocation should pin a session id: %v", args)
	}
	if strings.Contains(joined, "--resume") {
		t.Fatalf("fresh invocation must not resume: %v", args)
	}
	if !strings.Contains(joined, "--output-format json") {
		t.Fatalf("expected json output format: %v", args)
	}
}

func TestBuildArgsResume(t *testing.T) {
	c := testCLI()
	c.model = "opus"
	args := c.buildArgs(Request{Prompt: "hi", SessionID: "sess-1"}, "unused")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--resume sess-1") {
		t.Fatalf("expected resume arg: %v", args)
	}
	if strings.Contains(joined, "--session-id") {
		t.Fatalf("resumed invocation must not pass --session-id: %v", args)
	}
	if !strings.Contains(joined, "--model opus") {
		t.Fatalf("expected model arg: %v", args)
	}
}

func TestParseResult(t *testing.T) {
	out := []byte(`{"type":"result","subtype":"success","is_error":false,` +
		`"result":"hello there","session_id":"sess-9"}`)

	result, err := parseResult(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Text != "hello there" || result.SessionID != "sess-9" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseResultError(t *testing.T) {
	out := []byte(`{"type":"result","is_error":true,"result":"credit exhausted"}`)
	if _, err := parseResult(out); err == nil {
		t.Fatalf("is_error result should fail")
	}

	if _, err := parseResult([]byte("not json")); err == nil {
		t.Fatalf("garbage output should fail")
	}
}

func TestIsStaleSessionOutput(t *testing.T) {
	if !isStaleSessionOutput("No conversation found with session ID: abc", "abc") {
		t.Fatalf("expected stale detection")
	}
	if isStaleSessionOutput("No conversation found with session ID: abc", "") {
		t.Fatalf("fresh invocations can never be stale")
	}
	if isStaleSessionOutput("some other failure", "abc") {
		t.Fatalf("unrelated failure should not classify as stale")
	}
}
