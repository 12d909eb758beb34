// Package remote defines the capability contract of the cloud document
// store consumed by the sync engine, and its CouchDB implementation.
//
// The remote store is opaque to the rest of the system: documents keyed by
// string identifier, nested under a per-identity namespace of fixed depth
// users/{uid}/{collection}/{recordId}. The contract is deliberately small —
// upsert, delete, atomic-ish batch write, ordered query, and a live
// subscription delivering whole-collection snapshots.
package remote

import (
	"context"
	"fmt"

	"mybrain/internal/model"
)

// Path addresses one document: users/{UID}/{Collection}/{ID}.
type Path struct {
	UID        string
	Collection model.Collection
	ID         string
}

// String renders the fixed-depth namespace path.
func (p Path) String() string {
	return fmt.Sprintf("users/%s/%s/%s", p.UID, p.Collection, p.ID)
}

// Validate checks that every path component is present.
func (p Path) Validate() error {
	if p.UID == "" {
		return fmt.Errorf("path missing uid")
	}
	if !p.Collection.Valid() {
		return fmt.Errorf("path has unknown collection %q", p.Collection)
	}
	if p.ID == "" {
		return fmt.Errorf("path missing record id")
	}
	return nil
}

// OpKind tags a batch operation.
type OpKind string

const (
	OpUpsert OpKind = "upsert"
	OpDelete OpKind = "delete"
)

// Op is one entry in a batch write.
type Op struct {
	Kind OpKind
	Path Path
	// Doc is the document body for upserts; ignored for deletes.
	Doc map[string]any
	// Merge selects merge-on-conflict semantics: fields absent from Doc
	// are preserved on the existing document instead of wiped.
	Merge bool
}

// Snapshot is the full ordered contents of one collection, newest createdAt
// first. Subscriptions deliver snapshots, never incremental patches.
type Snapshot []map[string]any

// Subscription is a live query over one collection.
type Subscription interface {
	// Updates yields a snapshot for the current remote contents on every
	// observed change. The channel is closed after Cancel or on a
	// terminal error.
	Updates() <-chan Snapshot

	// Err returns the terminal error, if any, once Updates is closed.
	Err() error

	// Cancel stops the subscription. Safe to call more than once; it
	// returns only after no further snapshot will be delivered.
	Cancel()
}

// Store is the remote document store capability set.
type Store interface {
	// Upsert writes fields at path. With merge true, fields not present
	// in the payload are preserved on an existing document.
	Upsert(ctx context.Context, p Path, fields map[string]any, merge bool) error

	// Delete removes the document at path. Deleting a missing document
	// is a no-op.
	Delete(ctx context.Context, p Path) error

	// BatchWrite applies ops as one batch. If the batch does not commit,
	// the error reports the whole batch as not-applied; callers keep
	// their durable copy for a later retry.
	BatchWrite(ctx context.Context, ops []Op) error

	// Query returns the current snapshot of a collection, ordered by
	// createdAt descending.
	Query(ctx context.Context, uid string, c model.Collection) (Snapshot, error)

	// Subscribe opens a live query over a collection. The returned
	// subscription delivers an initial snapshot followed by one snapshot
	// per observed change.
	Subscribe(ctx context.Context, uid string, c model.Collection) (Subscription, error)
}
