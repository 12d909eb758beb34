package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mybrain/internal/model"
)

// Enqueue appends a pending change to the durable queue. The change is
// persisted before Enqueue returns; it is never dropped until a drain
// confirms its remote apply.
func (s *Store) Enqueue(ctx context.Context, change model.PendingChange) error {
	if err := change.Validate(); err != nil {
		return fmt.Errorf("invalid pending change: %w", err)
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal pending change: %w", err)
	}

	query := `
	INSERT INTO pending_changes (collection, type, payload, queued_at)
	VALUES (?, ?, ?, ?)
	`
	_, err = s.conn.ExecContext(ctx, query,
		string(change.Collection),
		string(change.Type),
		string(payload),
		change.QueuedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue change: %w", err)
	}
	return nil
}

// PendingChanges returns the queued changes in FIFO order without removing
// them.
func (s *Store) PendingChanges(ctx context.Context) ([]model.PendingChange, error) {
	query := `SELECT seq, payload FROM pending_changes ORDER BY seq ASC`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending changes: %w", err)
	}
	defer rows.Close()

	var changes []model.PendingChange
	for rows.Next() {
		var seq int64
		var payload string
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan pending change: %w", err)
		}

		var change model.PendingChange
		if err := json.Unmarshal([]byte(payload), &change); err != nil {
			return nil, fmt.Errorf("failed to decode pending change %d: %w", seq, err)
		}
		change.Seq = seq
		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending changes: %w", err)
	}
	return changes, nil
}

// PendingCount returns the number of queued changes.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_changes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending changes: %w", err)
	}
	return count, nil
}

// Drain replays queued changes in FIFO order through apply.
//
// Each change is removed from the queue immediately after apply confirms it,
// so a change is never lost and never replayed after a confirmed commit. The
// first apply failure aborts the whole drain: the failed change and everything
// queued after it stay in the queue for the next drain.
//
// This is the all-or-nothing-per-batch policy: one permanently broken entry
// stalls the entries behind it. The alternative (skip broken single entries
// and keep going) was rejected so that a transient remote outage cannot
// reorder a user's edits against their later changes.
func (s *Store) Drain(ctx context.Context, apply func(model.PendingChange) error) error {
	changes, err := s.PendingChanges(ctx)
	if err != nil {
		return err
	}

	for _, change := range changes {
		if err := apply(change); err != nil {
			return fmt.Errorf("drain aborted at change %d (%s %s): %w",
				change.Seq, change.Type, change.Collection, err)
		}

		if _, err := s.conn.ExecContext(ctx, `DELETE FROM pending_changes WHERE seq = ?`, change.Seq); err != nil {
			return fmt.Errorf("failed to remove applied change %d: %w", change.Seq, err)
		}
	}
	return nil
}
