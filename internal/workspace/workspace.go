// Package workspace manages the relay's document directory: the personality
// prompt, the personal-context memory, the heartbeat checklist, and any
// other markdown documents the operator drops in.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/kyl3c/claude-code-claw/internal/logging"
)

// Well-known documents.
const (
	SystemDoc    = "SYSTEM.md"
	MemoryDoc    = "MEMORY.md"
	ChecklistDoc = "HEARTBEAT.md"
)

// DocInfo describes one workspace document.
type DocInfo struct {
	Name string
	Size int64
}

// Workspace is the document directory with a watcher-invalidated listing
// cache.
type Workspace struct {
	dir string
	log *slog.Logger

	mu        sync.Mutex
	docs      []DocInfo
	docsValid bool

	watcher *fsnotify.Watcher
}

// Open ensures the directory exists and starts watching it. A watcher
// failure is not fatal; the listing just runs uncached.
func Open(dir string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}

	w := &Workspace{
		dir: dir,
		log: logging.ForComponent(logging.CompWorkspace),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("workspace watcher unavailable", "err", err)
		return w, nil
	}
	if err := watcher.Add(dir); err != nil {
		w.log.Warn("workspace watch failed", "err", err)
		watcher.Close()
		return w, nil
	}
	w.watcher = watcher
	go w.watchLoop()

	return w, nil
}

func (w *Workspace) watchLoop() {
	for {
		select {
		case _, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.mu.Lock()
			w.docsValid = false
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("workspace watcher error", "err", err)
		}
	}
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Docs lists markdown documents in the workspace, sorted by name.
func (w *Workspace) Docs() ([]DocInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.docsValid && w.watcher != nil {
		return w.docs, nil
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("list workspace: %w", err)
	}

	var docs []DocInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		docs = append(docs, DocInfo{Name: entry.Name(), Size: info.Size()})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })

	w.docs = docs
	w.docsValid = true
	return docs, nil
}

// DocsMatching lists documents whose names match the glob pattern. An empty
// pattern matches everything.
func (w *Workspace) DocsMatching(pattern string) ([]DocInfo, error) {
	docs, err := w.Docs()
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return docs, nil
	}

	matcher, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	var matched []DocInfo
	for _, doc := range docs {
		if matcher.Match(doc.Name) {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

// Read returns a document's contents. Names containing path separators are
// rejected so reads can never escape the workspace.
func (w *Workspace) Read(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name == ".." {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Memory returns the personal-context document, or "" when absent.
func (w *Workspace) Memory() string {
	content, err := w.Read(MemoryDoc)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(content)
}

// Checklist returns the heartbeat checklist, or "" when absent.
func (w *Workspace) Checklist() string {
	content, err := w.Read(ChecklistDoc)
	if err != nil {
		return ""
	}
	return content
}

// Close stops the watcher.
func (w *Workspace) Close() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
