package localstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"mybrain/internal/model"
)

// backupLine is one record in a JSONL backup file. The collection tag lets a
// single file carry both collections.
type backupLine struct {
	Collection model.Collection `json:"collection"`
	Task       *model.Task      `json:"task,omitempty"`
	Note       *model.Note      `json:"note,omitempty"`
}

// Export writes every task and note to path as JSONL, one record per line.
func (s *Store) Export(ctx context.Context, path string) error {
	tasks, err := s.ListTasksContext(ctx)
	if err != nil {
		return err
	}
	notes, err := s.ListNotesContext(ctx)
	if err != nil {
		return err
	}

	// #nosec G304 - controlled path from CLI
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)

	for i := range tasks {
		if err := enc.Encode(backupLine{Collection: model.CollectionTasks, Task: &tasks[i]}); err != nil {
			return fmt.Errorf("failed to write task %s: %w", tasks[i].ID, err)
		}
	}
	for i := range notes {
		if err := enc.Encode(backupLine{Collection: model.CollectionNotes, Note: &notes[i]}); err != nil {
			return fmt.Errorf("failed to write note %s: %w", notes[i].ID, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush backup: %w", err)
	}
	return nil
}

// Restore reads a JSONL backup written by Export and upserts every record.
// Existing records with the same id are overwritten; records not present in
// the backup are left alone. Returns the number of records restored.
func (s *Store) Restore(ctx context.Context, path string) (int, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	dec := json.NewDecoder(bufio.NewReader(file))
	restored := 0
	lineNum := 0

	for {
		var line backupLine
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return restored, fmt.Errorf("invalid JSON at record %d: %w", lineNum+1, err)
		}
		lineNum++

		switch line.Collection {
		case model.CollectionTasks:
			if line.Task == nil {
				return restored, fmt.Errorf("record %d: tasks line without task body", lineNum)
			}
			line.Task.SetDefaults()
			if err := s.PutTaskContext(ctx, line.Task); err != nil {
				return restored, err
			}
		case model.CollectionNotes:
			if line.Note == nil {
				return restored, fmt.Errorf("record %d: notes line without note body", lineNum)
			}
			line.Note.SetDefaults()
			if err := s.PutNoteContext(ctx, line.Note); err != nil {
				return restored, err
			}
		default:
			return restored, fmt.Errorf("record %d: unknown collection %q", lineNum, line.Collection)
		}
		restored++
	}

	return restored, nil
}
