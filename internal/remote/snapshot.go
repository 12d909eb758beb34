package remote

import (
	"encoding/json"
	"fmt"

	"mybrain/internal/model"
)

// DecodeTasks converts a snapshot of raw documents into tasks. Documents
// that do not decode are skipped; the remote store is not a trusted schema
// authority and one malformed document must not blank the whole list.
func DecodeTasks(snap Snapshot) []model.Task {
	tasks := make([]model.Task, 0, len(snap))
	for _, doc := range snap {
		var task model.Task
		if err := decodeDoc(doc, &task); err != nil {
			continue
		}
		if task.ID == "" {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// DecodeNotes converts a snapshot of raw documents into notes.
func DecodeNotes(snap Snapshot) []model.Note {
	notes := make([]model.Note, 0, len(snap))
	for _, doc := range snap {
		var note model.Note
		if err := decodeDoc(doc, &note); err != nil {
			continue
		}
		if note.ID == "" {
			continue
		}
		notes = append(notes, note)
	}
	return notes
}

// TaskDoc renders a task as a remote document body.
func TaskDoc(t *model.Task) (map[string]any, error) {
	return encodeDoc(t)
}

// NoteDoc renders a note as a remote document body.
func NoteDoc(n *model.Note) (map[string]any, error) {
	return encodeDoc(n)
}

func encodeDoc(record any) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record document: %w", err)
	}
	return doc, nil
}

func decodeDoc(doc map[string]any, into any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, into)
}
