package inbox

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mybrain/internal/localstore"
	"mybrain/internal/session"
	"mybrain/internal/state"
)

type stubSession struct{}

func (stubSession) Current() session.Identity    { return session.Identity{} }
func (stubSession) OnChange(fn session.Listener) {}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func setupWatcher(t *testing.T) (*Watcher, *state.State, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := localstore.Open(filepath.Join(dir, "inbox.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := log.New(testWriter{t}, "", 0)
	st := state.New(store, nil, stubSession{}, logger)
	t.Cleanup(st.Close)

	inboxDir := filepath.Join(dir, "inbox")
	w, err := NewWatcher(inboxDir, st, logger)
	if err != nil {
		t.Fatalf("creating watcher: %v", err)
	}
	w.Imported = make(chan string, 10)
	return w, st, inboxDir
}

func waitImported(t *testing.T, w *Watcher) string {
	t.Helper()
	select {
	case id := <-w.Imported:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("import never happened")
		return ""
	}
}

func TestImportsDroppedFile(t *testing.T) {
	w, st, dir := setupWatcher(t)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("starting watcher: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "meeting.md")
	if err := os.WriteFile(path, []byte("# Standup\nDiscuss the rollout.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	id := waitImported(t, w)
	note, ok := st.Note(id)
	if !ok {
		t.Fatal("note missing from model")
	}
	if note.Title != "Standup" {
		t.Errorf("Title = %q, want Standup", note.Title)
	}
	if note.Content != "Discuss the rollout." {
		t.Errorf("Content = %q", note.Content)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("imported file should be removed")
	}
}

func TestImportsExistingFilesOnStart(t *testing.T) {
	w, st, dir := setupWatcher(t)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "idea.md"), []byte("Build a birdhouse"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("starting watcher: %v", err)
	}
	defer w.Stop()

	waitImported(t, w)
	notes := st.Notes()
	if len(notes) != 1 || notes[0].Title != "Build a birdhouse" {
		t.Errorf("unexpected notes: %v", notes)
	}
}

func TestIgnoresNonMarkdown(t *testing.T) {
	w, st, dir := setupWatcher(t)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("starting watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "photo.png"), []byte{0x89}, 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(500 * time.Millisecond)
	if got := st.Notes(); len(got) != 0 {
		t.Errorf("non-markdown file imported: %v", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w, _, _ := setupWatcher(t)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher still running after Stop")
	}
}

func TestParseNote(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		text        string
		wantTitle   string
		wantContent string
	}{
		{"heading", "x.md", "# Title\nBody", "Title", "Body"},
		{"plain first line", "x.md", "Groceries\nmilk\neggs", "Groceries", "milk\neggs"},
		{"empty file uses filename", "reading-list.md", "", "reading-list", ""},
		{"title only", "x.md", "# Just a title", "Just a title", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note := ParseNote(tt.filename, tt.text)
			if note.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", note.Title, tt.wantTitle)
			}
			if note.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", note.Content, tt.wantContent)
			}
		})
	}
}

func TestParseNoteExtractsTags(t *testing.T) {
	note := ParseNote("x.md", "# Plans\nCall the bank #money and book flights #Travel #money.")
	if len(note.Tags) != 2 || note.Tags[0] != "money" || note.Tags[1] != "travel" {
		t.Errorf("Tags = %v, want [money travel]", note.Tags)
	}

	note = ParseNote("x.md", "No tags here, just a # symbol and ## markdown")
	if len(note.Tags) != 0 {
		t.Errorf("Tags = %v, want none", note.Tags)
	}
}
