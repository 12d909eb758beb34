package model

import (
	"testing"
	"time"
)

func TestNewAddChange_RoundTrip(t *testing.T) {
	task := Task{ID: "t-1", Title: "Buy milk"}
	task.SetDefaults()

	change, err := NewAddChange(CollectionTasks, task)
	if err != nil {
		t.Fatalf("NewAddChange failed: %v", err)
	}
	if err := change.Validate(); err != nil {
		t.Fatalf("add change invalid: %v", err)
	}

	doc, err := change.Doc()
	if err != nil {
		t.Fatalf("Doc failed: %v", err)
	}
	if doc["id"] != "t-1" || doc["title"] != "Buy milk" {
		t.Errorf("payload lost fields: %v", doc)
	}
}

func TestPendingChange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		change  PendingChange
		wantErr bool
	}{
		{"delete with id", NewDeleteChange(CollectionNotes, "n-1"), false},
		{"delete without id", PendingChange{Collection: CollectionNotes, Type: ChangeDelete}, true},
		{"batch with ids", NewDeleteBatchChange(CollectionNotes, []string{"a", "b"}), false},
		{"batch without ids", PendingChange{Collection: CollectionNotes, Type: ChangeDeleteBatch}, true},
		{"unknown collection", PendingChange{Collection: "bookmarks", Type: ChangeDelete, RecordID: "x"}, true},
		{"unknown type", PendingChange{Collection: CollectionTasks, Type: "rename", RecordID: "x"}, true},
		{"add without record", PendingChange{Collection: CollectionTasks, Type: ChangeAdd}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTaskSetDefaults(t *testing.T) {
	var task Task
	task.SetDefaults()

	if task.ID == "" {
		t.Error("expected generated ID")
	}
	if task.Tags == nil {
		t.Error("expected empty tags slice, got nil")
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestTaskPatch_Apply(t *testing.T) {
	task := Task{ID: "t", Title: "old", CreatedAt: time.Now(), UpdatedAt: time.Now().Add(-time.Hour)}
	before := task.UpdatedAt

	title := "new"
	completed := true
	TaskPatch{Title: &title, Completed: &completed}.Apply(&task)

	if task.Title != "new" || !task.Completed {
		t.Errorf("patch not applied: %+v", task)
	}
	if !task.UpdatedAt.After(before) {
		t.Error("patch did not touch updatedAt")
	}
}

func TestNotePatch_ClearParent(t *testing.T) {
	parent := "p-1"
	note := Note{ID: "n", ParentID: &parent, CreatedAt: time.Now(), UpdatedAt: time.Now()}

	var cleared *string
	NotePatch{ParentID: &cleared}.Apply(&note)
	if note.ParentID != nil {
		t.Errorf("expected parent cleared, got %v", *note.ParentID)
	}
}
