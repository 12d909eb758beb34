// Package inbox turns markdown files dropped into a watched directory
// into notes. Drop a .md file in, it becomes a note, the file goes
// away. The first line is the title; the rest is the content.
package inbox

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mybrain/internal/model"
	"mybrain/internal/state"
)

// settleDelay is how long a file must sit unchanged before import, so
// editors still writing it are not read mid-save.
const settleDelay = 200 * time.Millisecond

// Watcher imports dropped markdown files as notes.
type Watcher struct {
	dir     string
	state   *state.State
	logger  *log.Logger
	watcher *fsnotify.Watcher

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	timers  map[string]*time.Timer

	// Imported receives the id of each note created, mainly for
	// tests. Nil by default.
	Imported chan string
}

// NewWatcher creates a watcher over dir. The directory is created if
// missing. If logger is nil, logging goes to stderr.
func NewWatcher(dir string, st *state.State, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[inbox] ", log.LstdFlags)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating inbox directory: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		dir:     dir,
		state:   st,
		logger:  logger,
		watcher: fsw,
		done:    make(chan struct{}),
		timers:  make(map[string]*time.Timer),
	}, nil
}

// Start imports any files already sitting in the inbox, then begins
// watching for new ones.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch inbox directory %s: %w", w.dir, err)
	}

	if err := w.importExisting(ctx); err != nil {
		w.logger.Printf("initial import: %v", err)
	}

	w.wg.Add(1)
	go w.processEvents(ctx)
	return nil
}

// Stop stops watching. It blocks until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) importExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isMarkdown(entry.Name()) {
			continue
		}
		w.importFile(ctx, filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isMarkdown(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.scheduleImport(ctx, event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watch error: %v", err)
		}
	}
}

// scheduleImport delays the import until writes to the file quiet
// down. Another event for the same file resets the delay.
func (w *Watcher) scheduleImport(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.importFile(ctx, path)
	})
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Printf("reading %s: %v", path, err)
		}
		return
	}

	note := ParseNote(filepath.Base(path), string(data))
	if err := w.state.AddNote(ctx, note); err != nil {
		// Leave the file in place so a later run retries it.
		w.logger.Printf("importing %s: %v", path, err)
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Printf("removing %s after import: %v", path, err)
	}
	w.logger.Printf("imported %s as note %s", filepath.Base(path), note.ID)

	if w.Imported != nil {
		select {
		case w.Imported <- note.ID:
		default:
		}
	}
}

// ParseNote builds a note from a dropped file. A leading "# " heading
// or the first non-empty line becomes the title, the remainder is the
// content, and #hashtags found in the text become tags. An empty file
// titles the note after the file name.
func ParseNote(filename, text string) *model.Note {
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	content := strings.TrimSpace(text)

	lines := strings.SplitN(content, "\n", 2)
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		first := strings.TrimSpace(lines[0])
		title = strings.TrimSpace(strings.TrimPrefix(first, "# "))
		if len(lines) > 1 {
			content = strings.TrimSpace(lines[1])
		} else {
			content = ""
		}
	}

	return &model.Note{Title: title, Content: content, Tags: extractTags(content)}
}

// extractTags collects #hashtag words, lowercased and deduplicated.
// A bare "#" or a markdown heading marker does not count.
func extractTags(text string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, word := range strings.Fields(text) {
		if !strings.HasPrefix(word, "#") {
			continue
		}
		tag := strings.ToLower(strings.Trim(word[1:], ".,;:!?)"))
		if tag == "" || strings.HasPrefix(tag, "#") {
			continue
		}
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}
