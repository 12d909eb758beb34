package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collection names a record collection. The two collections share the same
// storage and sync machinery but hold different record types.
type Collection string

const (
	CollectionTasks Collection = "tasks"
	CollectionNotes Collection = "notes"
)

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	return c == CollectionTasks || c == CollectionNotes
}

// Task is a single to-do item.
//
// The ID is either a locally generated UUID (anonymous mode) or a remote
// document identifier; the two identifier spaces are reconciled by keying
// remote upserts with the local ID, so a task keeps its identity across the
// anonymous-to-authenticated transition.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Tags      []string  `json:"tags,omitempty"`
	DueAt     *time.Time `json:"dueAt,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that the task has the fields every backend requires.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updatedAt is required")
	}
	return nil
}

// SetDefaults fills in the fields a caller may omit when creating a task.
func (t *Task) SetDefaults() {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
}

// Touch sets UpdatedAt to the current time. Call on every mutation.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now()
}

// TaskPatch is a partial update to a task. Nil fields are left untouched.
type TaskPatch struct {
	Title     *string
	Completed *bool
	Tags      *[]string
	DueAt     *time.Time
}

// Apply copies the non-nil patch fields onto the task and touches it.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	if p.DueAt != nil {
		t.DueAt = p.DueAt
	}
	t.Touch()
}

// HasTag reports whether the task carries the given tag (case-insensitive).
func (t *Task) HasTag(tag string) bool {
	return hasTag(t.Tags, tag)
}
