package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func writeDoc(t *testing.T, w *Workspace, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(w.Dir(), name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDocsListsMarkdownOnly(t *testing.T) {
	w := testWorkspace(t)
	writeDoc(t, w, "MEMORY.md", "remember")
	writeDoc(t, w, "notes.md", "notes")
	writeDoc(t, w, "sessions.json", "{}")

	docs, err := w.Docs()
	if err != nil {
		t.Fatalf("docs: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %+v", docs)
	}
	if docs[0].Name != "MEMORY.md" || docs[1].Name != "notes.md" {
		t.Fatalf("expected sorted markdown docs, got %+v", docs)
	}
}

func TestDocsCacheInvalidatedOnChange(t *testing.T) {
	w := testWorkspace(t)
	writeDoc(t, w, "a.md", "a")

	docs, err := w.Docs()
	if err != nil {
		t.Fatalf("docs: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %+v", docs)
	}

	writeDoc(t, w, "b.md", "b")

	// The watcher invalidates asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		docs, err = w.Docs()
		if err != nil {
			t.Fatalf("docs: %v", err)
		}
		if len(docs) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("doc listing never picked up new file: %+v", docs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDocsMatching(t *testing.T) {
	w := testWorkspace(t)
	writeDoc(t, w, "MEMORY.md", "m")
	writeDoc(t, w, "notes-2026.md", "n")
	writeDoc(t, w, "notes-2025.md", "n")

	matched, err := w.DocsMatching("notes-*.md")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matched)
	}

	if _, err := w.DocsMatching("[bad"); err == nil {
		t.Fatalf("expected error for bad pattern")
	}
}

func TestReadRejectsTraversal(t *testing.T) {
	w := testWorkspace(t)
	for _, name := range []string{"../secret", "a/b.md", "..", ""} {
		if _, err := w.Read(name); err == nil {
			t.Fatalf("expected rejection for %q", name)
		}
	}
}

func TestMemoryAndChecklist(t *testing.T) {
	w := testWorkspace(t)
	if w.Memory() != "" || w.Checklist() != "" {
		t.Fatalf("absent docs should read empty")
	}

	writeDoc(t, w, MemoryDoc, "kyle prefers terse replies\n")
	writeDoc(t, w, ChecklistDoc, "# Checklist\n- water plants\n")

	if w.Memory() != "kyle prefers terse replies" {
		t.Fatalf("unexpected memory %q", w.Memory())
	}
	if w.Checklist() == "" {
		t.Fatalf("expected checklist content")
	}
}
