package state

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"testing"
	"time"

	"mybrain/internal/localstore"
	"mybrain/internal/model"
	"mybrain/internal/remote"
	"mybrain/internal/session"
)

type stubSession struct {
	uid string
}

func (s *stubSession) Current() session.Identity    { return session.Identity{UID: s.uid} }
func (s *stubSession) OnChange(fn session.Listener) {}

func setupState(t *testing.T, uid string) (*State, *localstore.Store, *remote.Memory) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mem := remote.NewMemory()
	s := New(store, mem, &stubSession{uid: uid}, log.New(testWriter{t}, "[state] ", 0))
	t.Cleanup(s.Close)
	return s, store, mem
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func TestAddTaskAnonymousQueues(t *testing.T) {
	ctx := context.Background()
	s, store, mem := setupState(t, "")

	task := &model.Task{Title: "Buy milk"}
	if err := s.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	if got := s.Tasks(); len(got) != 1 || got[0].Title != "Buy milk" {
		t.Errorf("task missing from model: %v", got)
	}
	n, err := store.PendingCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 queued change, got %d", n)
	}
	if mem.Count("", model.CollectionTasks) != 0 {
		t.Error("anonymous add must not hit the remote store")
	}
}

func TestAddTaskOnline(t *testing.T) {
	ctx := context.Background()
	s, store, mem := setupState(t, "u-1")

	task := &model.Task{Title: "Ship release"}
	if err := s.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	if mem.Doc("u-1", model.CollectionTasks, task.ID) == nil {
		t.Error("task not written to remote store")
	}
	n, err := store.PendingCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("successful remote write must not queue, got %d pending", n)
	}
}

func TestAddTaskRemoteFailureKeepsAndQueues(t *testing.T) {
	ctx := context.Background()
	s, store, mem := setupState(t, "u-1")
	mem.WriteErr = errors.New("network down")

	task := &model.Task{Title: "Survives outage"}
	if err := s.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask must not fail when the remote is down: %v", err)
	}

	if got := s.Tasks(); len(got) != 1 {
		t.Fatal("task must survive the failed remote write")
	}
	n, err := store.PendingCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected the add queued for later, got %d pending", n)
	}
}

func TestUpdateTaskRemoteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s, store, mem := setupState(t, "u-1")

	task := &model.Task{Title: "Original"}
	if err := s.AddTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	mem.WriteErr = errors.New("network down")
	title := "Edited"
	err := s.UpdateTask(ctx, task.ID, model.TaskPatch{Title: &title})
	if err == nil {
		t.Fatal("expected update to fail")
	}

	got, ok := s.Task(task.ID)
	if !ok || got.Title != "Original" {
		t.Errorf("in-memory task not rolled back: %+v", got)
	}
	tasks, err := store.ListTasksContext(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Original" {
		t.Errorf("stored task not rolled back: %+v", tasks)
	}
	n, _ := store.PendingCount(ctx)
	if n != 0 {
		t.Errorf("rolled-back update must not queue, got %d pending", n)
	}
}

func TestDeleteTaskRemoteFailureRestores(t *testing.T) {
	ctx := context.Background()
	s, _, mem := setupState(t, "u-1")

	task := &model.Task{Title: "Keep me"}
	if err := s.AddTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	mem.WriteErr = errors.New("network down")
	if err := s.DeleteTask(ctx, task.ID); err == nil {
		t.Fatal("expected delete to fail")
	}

	if _, ok := s.Task(task.ID); !ok {
		t.Error("task not restored after failed remote delete")
	}
}

func TestToggleTask(t *testing.T) {
	ctx := context.Background()
	s, _, mem := setupState(t, "u-1")

	task := &model.Task{Title: "Flip me"}
	if err := s.AddTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	if err := s.ToggleTask(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Task(task.ID)
	if !got.Completed {
		t.Error("toggle did not complete the task")
	}
	doc := mem.Doc("u-1", model.CollectionTasks, task.ID)
	if doc == nil || doc["completed"] != true {
		t.Errorf("remote doc not updated: %v", doc)
	}

	if err := s.ToggleTask(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Task(task.ID)
	if got.Completed {
		t.Error("second toggle did not reopen the task")
	}
}

func TestDeleteNoteAnonymousQueuesDelete(t *testing.T) {
	ctx := context.Background()
	s, store, _ := setupState(t, "")

	note := &model.Note{Title: "Scratch"}
	if err := s.AddNote(ctx, note); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteNote(ctx, note.ID); err != nil {
		t.Fatal(err)
	}

	changes, err := store.PendingChanges(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected add then delete queued, got %d changes", len(changes))
	}
	if changes[1].Type != model.ChangeDelete || changes[1].RecordID != note.ID {
		t.Errorf("second change should delete %s, got %+v", note.ID, changes[1])
	}
}

func TestWatchNotified(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupState(t, "u-1")

	notified := 0
	s.Watch(func() { notified++ })

	if err := s.AddTask(ctx, &model.Task{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if notified == 0 {
		t.Error("watcher not called on add")
	}
}

func TestReloadLocal(t *testing.T) {
	ctx := context.Background()
	s, store, _ := setupState(t, "")

	task := &model.Task{Title: "Persisted"}
	task.SetDefaults()
	if err := store.PutTaskContext(ctx, task); err != nil {
		t.Fatal(err)
	}

	if err := s.ReloadLocal(ctx); err != nil {
		t.Fatal(err)
	}
	if got := s.Tasks(); len(got) != 1 || got[0].Title != "Persisted" {
		t.Errorf("reload missed stored task: %v", got)
	}
}

func TestSetTasksReplacesStore(t *testing.T) {
	ctx := context.Background()
	s, store, _ := setupState(t, "")

	old := &model.Task{Title: "Stale"}
	if err := s.AddTask(ctx, old); err != nil {
		t.Fatal(err)
	}

	fresh := model.Task{Title: "Fresh"}
	fresh.SetDefaults()
	if err := s.SetTasks(ctx, []model.Task{fresh}); err != nil {
		t.Fatal(err)
	}

	if got := s.Tasks(); len(got) != 1 || got[0].Title != "Fresh" {
		t.Errorf("snapshot did not replace model: %v", got)
	}
	stored, err := store.ListTasksContext(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Title != "Fresh" {
		t.Errorf("snapshot did not replace store: %v", stored)
	}
}

func TestSaveNoteDraftDebounces(t *testing.T) {
	ctx := context.Background()
	s, store, _ := setupState(t, "")
	s.drafts.delay = 30 * time.Millisecond

	note := &model.Note{Title: "Draft"}
	if err := s.AddNote(ctx, note); err != nil {
		t.Fatal(err)
	}

	s.SaveNoteDraft(note.ID, "first")
	s.SaveNoteDraft(note.ID, "second")

	got, _ := s.Note(note.ID)
	if got.Content != "second" {
		t.Errorf("in-memory content should update immediately, got %q", got.Content)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		notes, err := store.ListNotesContext(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(notes) == 1 && notes[0].Content == "second" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("draft never persisted, store has %+v", notes)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
