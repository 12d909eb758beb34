// Package sync reconciles the local store with the remote store
// across session transitions. While anonymous everything stays local;
// on login the engine drains the pending-change queue, merges the
// local records into the user's remote collections, and then keeps
// the local side current from remote snapshots. On logout it tears
// the subscriptions down and the app falls back to local-only mode.
package sync
