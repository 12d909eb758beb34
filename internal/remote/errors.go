package remote

import "fmt"

// WriteError reports a failed single-document write (upsert or delete).
// Callers recover by enqueueing the change for a later drain, or by rolling
// back their optimistic copy, per operation policy.
type WriteError struct {
	Path Path
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("remote write %s failed: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a failed query or subscription. The sync engine logs it
// and keeps the last good snapshot visible; the state machine never regresses
// on a read failure.
type ReadError struct {
	Collection string
	Err        error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("remote read of %s failed: %v", e.Collection, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// BatchError reports a batch that did not commit. The whole batch is treated
// as not-applied: the caller's durable copy is preserved for a later retry.
type BatchError struct {
	// FailedIDs lists the documents the backend rejected, when known.
	FailedIDs []string
	Err       error
}

func (e *BatchError) Error() string {
	if len(e.FailedIDs) > 0 {
		return fmt.Sprintf("batch write failed for %d document(s) %v: %v", len(e.FailedIDs), e.FailedIDs, e.Err)
	}
	return fmt.Sprintf("batch write failed: %v", e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
