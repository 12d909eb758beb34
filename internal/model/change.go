package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeType tags a pending change with the operation it replays.
type ChangeType string

const (
	ChangeAdd         ChangeType = "add"
	ChangeUpdate      ChangeType = "update"
	ChangeDelete      ChangeType = "delete"
	ChangeDeleteBatch ChangeType = "delete-batch"
)

// PendingChange is a durable, replayable record of a mutation that could not
// be committed remotely when it happened. Add and update carry the full
// record as JSON; delete carries the record ID; delete-batch carries an ID
// set. A change is removed from the queue only after its remote apply is
// confirmed.
type PendingChange struct {
	// Seq is the queue position, assigned at enqueue time. Changes replay
	// in ascending Seq order.
	Seq int64 `json:"seq,omitempty"`

	Collection Collection `json:"collection"`
	Type       ChangeType `json:"type"`

	// Record holds the full record JSON for add/update changes.
	Record json.RawMessage `json:"record,omitempty"`

	// RecordID identifies the target of a delete change.
	RecordID string `json:"recordId,omitempty"`

	// RecordIDs identifies the targets of a delete-batch change.
	RecordIDs []string `json:"recordIds,omitempty"`

	QueuedAt time.Time `json:"queuedAt"`
}

// Validate checks that the change carries a payload sufficient to replay it.
func (c *PendingChange) Validate() error {
	if !c.Collection.Valid() {
		return fmt.Errorf("unknown collection %q", c.Collection)
	}
	switch c.Type {
	case ChangeAdd, ChangeUpdate:
		if len(c.Record) == 0 {
			return fmt.Errorf("%s change requires a record payload", c.Type)
		}
	case ChangeDelete:
		if c.RecordID == "" {
			return fmt.Errorf("delete change requires a record id")
		}
	case ChangeDeleteBatch:
		if len(c.RecordIDs) == 0 {
			return fmt.Errorf("delete-batch change requires record ids")
		}
	default:
		return fmt.Errorf("unknown change type %q", c.Type)
	}
	return nil
}

// NewAddChange builds an add change from a record. The record is stored as
// JSON so the queue can replay it without knowing the concrete type.
func NewAddChange(c Collection, record any) (PendingChange, error) {
	return recordChange(ChangeAdd, c, record)
}

// NewUpdateChange builds an update change carrying the full updated record.
// Replaying it as a merge upsert makes retried updates idempotent.
func NewUpdateChange(c Collection, record any) (PendingChange, error) {
	return recordChange(ChangeUpdate, c, record)
}

// NewDeleteChange builds a delete change for a single record.
func NewDeleteChange(c Collection, id string) PendingChange {
	return PendingChange{Collection: c, Type: ChangeDelete, RecordID: id, QueuedAt: time.Now()}
}

// NewDeleteBatchChange builds a delete change for a set of records.
func NewDeleteBatchChange(c Collection, ids []string) PendingChange {
	return PendingChange{Collection: c, Type: ChangeDeleteBatch, RecordIDs: ids, QueuedAt: time.Now()}
}

func recordChange(typ ChangeType, c Collection, record any) (PendingChange, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return PendingChange{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return PendingChange{Collection: c, Type: typ, Record: data, QueuedAt: time.Now()}, nil
}

// Doc decodes the record payload into a generic document, the shape the
// remote store consumes for upserts.
func (c *PendingChange) Doc() (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(c.Record, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode change payload: %w", err)
	}
	return doc, nil
}
