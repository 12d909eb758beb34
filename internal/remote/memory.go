package remote

import (
	"context"
	"sync"

	"mybrain/internal/model"
)

// Memory is an in-process Store. It backs tests and serves as the stand-in
// backend when no remote is configured, so the sync machinery can be
// exercised without a CouchDB server.
//
// The error fields inject failures: a non-nil WriteErr fails every Upsert
// and Delete, BatchErr every BatchWrite, ReadErr every Query and Subscribe.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]any // uid -> docID -> doc
	subs []*memorySub

	WriteErr error
	BatchErr error
	ReadErr  error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]map[string]any)}
}

// FailBatch sets or clears BatchErr under the store lock, so tests can
// toggle it while the engine is running.
func (m *Memory) FailBatch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchErr = err
}

func (m *Memory) bucket(uid string) map[string]map[string]any {
	b, ok := m.docs[uid]
	if !ok {
		b = make(map[string]map[string]any)
		m.docs[uid] = b
	}
	return b
}

// Upsert implements Store.Upsert.
func (m *Memory) Upsert(ctx context.Context, p Path, fields map[string]any, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return &WriteError{Path: p, Err: m.WriteErr}
	}
	if err := p.Validate(); err != nil {
		return &WriteError{Path: p, Err: err}
	}

	m.apply(Op{Kind: OpUpsert, Path: p, Doc: fields, Merge: merge})
	m.notifyLocked(p.UID, p.Collection)
	return nil
}

// Delete implements Store.Delete.
func (m *Memory) Delete(ctx context.Context, p Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return &WriteError{Path: p, Err: m.WriteErr}
	}

	m.apply(Op{Kind: OpDelete, Path: p})
	m.notifyLocked(p.UID, p.Collection)
	return nil
}

// BatchWrite implements Store.BatchWrite. The batch is atomic: nothing is
// applied when BatchErr is set.
func (m *Memory) BatchWrite(ctx context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BatchErr != nil {
		return &BatchError{Err: m.BatchErr}
	}

	touched := make(map[string]map[model.Collection]bool)
	for _, op := range ops {
		m.apply(op)
		if touched[op.Path.UID] == nil {
			touched[op.Path.UID] = make(map[model.Collection]bool)
		}
		touched[op.Path.UID][op.Path.Collection] = true
	}
	for uid, cols := range touched {
		for col := range cols {
			m.notifyLocked(uid, col)
		}
	}
	return nil
}

func (m *Memory) apply(op Op) {
	bucket := m.bucket(op.Path.UID)
	id := string(op.Path.Collection) + "/" + op.Path.ID

	switch op.Kind {
	case OpUpsert:
		doc := make(map[string]any)
		if existing, ok := bucket[id]; ok && op.Merge {
			for k, v := range existing {
				doc[k] = v
			}
		}
		for k, v := range op.Doc {
			doc[k] = v
		}
		doc["id"] = op.Path.ID
		doc["collection"] = string(op.Path.Collection)
		bucket[id] = doc
	case OpDelete:
		delete(bucket, id)
	}
}

// Query implements Store.Query.
func (m *Memory) Query(ctx context.Context, uid string, c model.Collection) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, &ReadError{Collection: string(c), Err: m.ReadErr}
	}
	return m.snapshotLocked(uid, c), nil
}

func (m *Memory) snapshotLocked(uid string, c model.Collection) Snapshot {
	var snap Snapshot
	for _, doc := range m.bucket(uid) {
		if doc["collection"] != string(c) {
			continue
		}
		copied := make(map[string]any, len(doc))
		for k, v := range doc {
			if k == "collection" {
				continue
			}
			copied[k] = v
		}
		snap = append(snap, copied)
	}
	sortSnapshot(snap)
	return snap
}

// Count returns the number of documents in a collection. Test helper.
func (m *Memory) Count(uid string, c model.Collection) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshotLocked(uid, c))
}

// Doc returns the stored document, or nil. Test helper.
func (m *Memory) Doc(uid string, c model.Collection, id string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bucket(uid)[string(c)+"/"+id]
}

type memorySub struct {
	uid     string
	col     model.Collection
	updates chan Snapshot
	cancel  func()
	done    chan struct{}
}

func (s *memorySub) Updates() <-chan Snapshot { return s.updates }
func (s *memorySub) Err() error               { return nil }
func (s *memorySub) Cancel()                  { s.cancel() }

// Subscribe implements Store.Subscribe.
func (m *Memory) Subscribe(ctx context.Context, uid string, c model.Collection) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, &ReadError{Collection: string(c), Err: m.ReadErr}
	}

	sub := &memorySub{
		uid:     uid,
		col:     c,
		updates: make(chan Snapshot, 16),
		done:    make(chan struct{}),
	}
	var once sync.Once
	sub.cancel = func() {
		once.Do(func() {
			m.mu.Lock()
			for i, existing := range m.subs {
				if existing == sub {
					m.subs = append(m.subs[:i], m.subs[i+1:]...)
					break
				}
			}
			m.mu.Unlock()
			close(sub.updates)
			close(sub.done)
		})
	}
	m.subs = append(m.subs, sub)

	// Initial snapshot.
	sub.updates <- m.snapshotLocked(uid, c)
	return sub, nil
}

func (m *Memory) notifyLocked(uid string, c model.Collection) {
	snap := m.snapshotLocked(uid, c)
	for _, sub := range m.subs {
		if sub.uid != uid || sub.col != c {
			continue
		}
		select {
		case sub.updates <- snap:
		default:
		}
	}
}
