// Package model defines the record types held by the reactive state and
// persisted by both the local cache and the remote store.
//
// Records are flat, last-write-wins friendly structures: every field can be
// replayed independently, and the updatedAt timestamp resolves which copy of
// a record is newer. The same JSON shape is used on disk (SQLite columns plus
// JSON-encoded tags), in the local JSONL backups, and as the remote document
// body, so the identifier of a record never changes as it moves between
// backends.
//
// The package also defines PendingChange, the replayable unit stored in the
// pending-change queue, and the Filter helpers that derive the list views
// (text search, #tag queries, tag intersection, sort orders).
package model
