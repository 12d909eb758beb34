package localstore

import (
	"path/filepath"
	"testing"
	"time"

	"mybrain/internal/model"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func newTask(t *testing.T, title string, created time.Time) *model.Task {
	t.Helper()

	task := &model.Task{
		Title:     title,
		Tags:      []string{"test"},
		CreatedAt: created,
		UpdatedAt: created,
	}
	task.SetDefaults()
	return task
}

func TestPutAndListTasks(t *testing.T) {
	store := setupTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := newTask(t, "older", base)
	newer := newTask(t, "newer", base.Add(time.Minute))

	if err := store.PutTask(older); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}
	if err := store.PutTask(newer); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	tasks, err := store.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	// createdAt descending: newest first.
	if tasks[0].Title != "newer" || tasks[1].Title != "older" {
		t.Errorf("wrong order: %s, %s", tasks[0].Title, tasks[1].Title)
	}
	if len(tasks[0].Tags) != 1 || tasks[0].Tags[0] != "test" {
		t.Errorf("tags did not round-trip: %v", tasks[0].Tags)
	}
}

func TestPutTask_UpsertsByID(t *testing.T) {
	store := setupTestStore(t)

	task := newTask(t, "first", time.Now())
	if err := store.PutTask(task); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	task.Title = "second"
	task.Touch()
	if err := store.PutTask(task); err != nil {
		t.Fatalf("PutTask upsert failed: %v", err)
	}

	tasks, err := store.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task after upsert, got %d", len(tasks))
	}
	if tasks[0].Title != "second" {
		t.Errorf("expected updated title, got %q", tasks[0].Title)
	}
}

func TestUpdateTask_Partial(t *testing.T) {
	store := setupTestStore(t)

	task := newTask(t, "keep title", time.Now())
	if err := store.PutTask(task); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	completed := true
	if err := store.UpdateTask(task.ID, model.TaskPatch{Completed: &completed}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	tasks, _ := store.ListTasks()
	if !tasks[0].Completed {
		t.Error("completed flag not updated")
	}
	if tasks[0].Title != "keep title" {
		t.Errorf("partial update clobbered title: %q", tasks[0].Title)
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	store := setupTestStore(t)

	title := "x"
	err := store.UpdateTask("missing", model.TaskPatch{Title: &title})
	if err == nil {
		t.Fatal("expected error updating missing task")
	}
}

func TestDeleteAndClearTasks(t *testing.T) {
	store := setupTestStore(t)

	a := newTask(t, "a", time.Now())
	b := newTask(t, "b", time.Now())
	store.PutTask(a)
	store.PutTask(b)

	if err := store.DeleteTask(a.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	// Deleting a missing task is a no-op.
	if err := store.DeleteTask("missing"); err != nil {
		t.Fatalf("DeleteTask of missing id should be nil, got %v", err)
	}

	tasks, _ := store.ListTasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task after delete, got %d", len(tasks))
	}

	if err := store.ClearTasks(); err != nil {
		t.Fatalf("ClearTasks failed: %v", err)
	}
	tasks, _ = store.ListTasks()
	if len(tasks) != 0 {
		t.Errorf("expected empty store after clear, got %d", len(tasks))
	}
}

func TestNotes_RoundTrip(t *testing.T) {
	store := setupTestStore(t)

	parent := &model.Note{Title: "parent", Content: "root"}
	parent.SetDefaults()
	if err := store.PutNote(parent); err != nil {
		t.Fatalf("PutNote failed: %v", err)
	}

	child := &model.Note{Title: "child", Content: "nested", ParentID: &parent.ID, Tags: []string{"deep"}}
	child.SetDefaults()
	if err := store.PutNote(child); err != nil {
		t.Fatalf("PutNote failed: %v", err)
	}

	notes, err := store.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}

	var gotChild *model.Note
	for i := range notes {
		if notes[i].ID == child.ID {
			gotChild = &notes[i]
		}
	}
	if gotChild == nil {
		t.Fatal("child note missing")
	}
	if gotChild.ParentID == nil || *gotChild.ParentID != parent.ID {
		t.Errorf("parentId did not round-trip: %v", gotChild.ParentID)
	}
}

func TestUpdateNote_ClearParent(t *testing.T) {
	store := setupTestStore(t)

	parent := &model.Note{Title: "parent"}
	parent.SetDefaults()
	store.PutNote(parent)

	note := &model.Note{Title: "child", ParentID: &parent.ID}
	note.SetDefaults()
	store.PutNote(note)

	var cleared *string
	if err := store.UpdateNote(note.ID, model.NotePatch{ParentID: &cleared}); err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}

	notes, _ := store.ListNotes()
	for _, n := range notes {
		if n.ID == note.ID && n.ParentID != nil {
			t.Errorf("expected parent cleared, got %v", *n.ParentID)
		}
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	task := newTask(t, "durable", time.Now())
	if err := store.PutTask(task); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()

	tasks, err := store.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "durable" {
		t.Errorf("task did not survive reopen: %v", tasks)
	}
}
