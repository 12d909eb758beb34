package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Note is a free-form note. Notes may be nested: ParentID points at another
// note's ID, or is nil for a top-level note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	ParentID  *string   `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that the note has the fields every backend requires.
// An empty title is allowed: the editor creates notes before they are named.
func (n *Note) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(n.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(n.Title))
	}
	if n.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	if n.UpdatedAt.IsZero() {
		return fmt.Errorf("updatedAt is required")
	}
	return nil
}

// SetDefaults fills in the fields a caller may omit when creating a note.
func (n *Note) SetDefaults() {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
}

// Touch sets UpdatedAt to the current time. Call on every mutation.
func (n *Note) Touch() {
	n.UpdatedAt = time.Now()
}

// NotePatch is a partial update to a note. Nil fields are left untouched.
type NotePatch struct {
	Title    *string
	Content  *string
	Tags     *[]string
	ParentID **string
}

// Apply copies the non-nil patch fields onto the note and touches it.
func (p NotePatch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Tags != nil {
		n.Tags = *p.Tags
	}
	if p.ParentID != nil {
		n.ParentID = *p.ParentID
	}
	n.Touch()
}

// HasTag reports whether the note carries the given tag (case-insensitive).
func (n *Note) HasTag(tag string) bool {
	return hasTag(n.Tags, tag)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
