package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"mybrain/internal/localstore"
	"mybrain/internal/model"
	"mybrain/internal/remote"
	"mybrain/internal/session"
	"mybrain/internal/state"
)

// Status is the engine's position in the login lifecycle.
type Status string

const (
	// StatusAnonymous means no user is logged in and all edits stay
	// local.
	StatusAnonymous Status = "anonymous"

	// StatusMerging means a login is in progress and local records
	// are being pushed to the user's remote collections.
	StatusMerging Status = "merging"

	// StatusSubscribed means the merge finished and remote snapshots
	// drive the local model.
	StatusSubscribed Status = "subscribed"
)

// Mode selects how the engine follows the remote store after a merge.
type Mode string

const (
	// ModeLive keeps change-feed subscriptions open per collection.
	ModeLive Mode = "live"

	// ModePoll pulls one snapshot after the merge and then only on
	// explicit SyncOnce calls.
	ModePoll Mode = "poll"
)

// EventType classifies engine events.
type EventType string

const (
	EventSession       EventType = "session"
	EventQueueDrain    EventType = "queue_drain"
	EventMergeComplete EventType = "merge_complete"
	EventSnapshot      EventType = "snapshot"
	EventError         EventType = "error"
)

// Event describes something the engine did, for observers like the
// dashboard.
type Event struct {
	Type       EventType        `json:"type"`
	UID        string           `json:"uid,omitempty"`
	Collection model.Collection `json:"collection,omitempty"`
	Count      int              `json:"count,omitempty"`
	Status     Status           `json:"status,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// EventSink receives engine events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// DefaultMergeTimeout bounds the login merge as a whole.
const DefaultMergeTimeout = 60 * time.Second

// DefaultRetryInterval is how often an interrupted login merge is
// retried in the background.
const DefaultRetryInterval = 30 * time.Second

// Engine drives local/remote reconciliation. Create one with New,
// wire it with Start, and it reacts to session transitions on its
// own.
type Engine struct {
	store    *localstore.Store
	remote   remote.Store
	state    *state.State
	sessions session.Boundary
	logger   *log.Logger
	sink     EventSink
	mode     Mode
	timeout  time.Duration
	retry    time.Duration

	stop     chan struct{}
	stopOnce stdsync.Once

	mu     stdsync.Mutex
	status Status
	subs   []remote.Subscription
	subWG  stdsync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink attaches an event sink.
func WithSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMode selects live subscriptions or poll-only operation.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithMergeTimeout overrides the login merge timeout.
func WithMergeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRetryInterval overrides how often an interrupted merge retries.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) { e.retry = d }
}

// New creates an Engine. If logger is nil, logging goes to stderr.
func New(store *localstore.Store, remoteStore remote.Store, st *state.State, sessions session.Boundary, logger *log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	e := &Engine{
		store:    store,
		remote:   remoteStore,
		state:    st,
		sessions: sessions,
		logger:   logger,
		mode:     ModeLive,
		timeout:  DefaultMergeTimeout,
		retry:    DefaultRetryInterval,
		stop:     make(chan struct{}),
		status:   StatusAnonymous,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status returns the engine's current lifecycle position.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Start registers the engine on the session boundary and, if a user
// is already logged in, runs the login flow immediately.
func (e *Engine) Start(ctx context.Context) {
	e.sessions.OnChange(func(prev, next session.Identity) {
		if next.Anonymous() {
			e.handleLogout(ctx)
			return
		}
		if !prev.Anonymous() {
			// Switching users tears the old subscriptions down
			// before the new merge.
			e.handleLogout(ctx)
		}
		e.handleLogin(ctx, next.UID)
	})
	if id := e.sessions.Current(); !id.Anonymous() {
		e.handleLogin(ctx, id.UID)
	}
}

// Stop tears down subscriptions and any pending merge retry without
// touching the session.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	e.cancelSubscriptions()
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
	e.publish(Event{Type: EventSession, Status: s, UID: e.sessions.Current().UID})
}

func (e *Engine) publish(ev Event) {
	if e.sink != nil {
		e.sink.Publish(ev)
	}
}

func (e *Engine) handleLogin(ctx context.Context, uid string) {
	e.setStatus(StatusMerging)
	e.logger.Printf("login uid=%s, merging local data", uid)

	mergeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	err := e.mergeLocal(mergeCtx, uid)
	cancel()
	if err != nil {
		// Stop here. Replacing local tables with a remote snapshot
		// before the unmerged records made it up would lose them, so
		// the engine stays in the merging state until a retry
		// succeeds.
		e.logger.Printf("merge failed for uid=%s: %v", uid, err)
		e.publish(Event{Type: EventError, UID: uid, Error: err.Error()})
		go e.retryLogin(ctx, uid)
		return
	}

	switch e.mode {
	case ModeLive:
		if err := e.subscribe(ctx, uid); err != nil {
			e.logger.Printf("subscribe failed for uid=%s: %v", uid, err)
			e.publish(Event{Type: EventError, UID: uid, Error: err.Error()})
			return
		}
	case ModePoll:
		if err := e.pull(ctx, uid); err != nil {
			e.logger.Printf("initial pull failed for uid=%s: %v", uid, err)
			e.publish(Event{Type: EventError, UID: uid, Error: err.Error()})
		}
	}
	e.setStatus(StatusSubscribed)
}

// retryLogin finishes an interrupted login in the background. It
// quits as soon as the merge lands, the user changes, or the engine
// stops.
func (e *Engine) retryLogin(ctx context.Context, uid string) {
	ticker := time.NewTicker(e.retry)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			if e.Status() != StatusMerging || e.sessions.Current().UID != uid {
				return
			}
			if err := e.SyncOnce(ctx); err != nil {
				e.logger.Printf("merge retry for uid=%s failed: %v", uid, err)
				continue
			}
			e.logger.Printf("merge retry for uid=%s succeeded", uid)
			return
		}
	}
}

func (e *Engine) handleLogout(ctx context.Context) {
	e.cancelSubscriptions()
	e.setStatus(StatusAnonymous)
	e.logger.Printf("logged out, back to local-only mode")
	if err := e.state.ReloadLocal(ctx); err != nil {
		e.logger.Printf("reload after logout failed: %v", err)
	}
}

// mergeLocal pushes everything the anonymous session accumulated into
// the user's remote collections: first the queued changes in order,
// then a batched merge-upsert of every local record keyed by its
// local id. Local tables are cleared only after the batch commits, so
// a failed merge loses nothing.
func (e *Engine) mergeLocal(ctx context.Context, uid string) error {
	drained, err := e.drainQueue(ctx, uid)
	if err != nil {
		return fmt.Errorf("draining pending changes: %w", err)
	}
	if drained > 0 {
		e.publish(Event{Type: EventQueueDrain, UID: uid, Count: drained})
	}

	tasks, err := e.store.ListTasksContext(ctx)
	if err != nil {
		return err
	}
	notes, err := e.store.ListNotesContext(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 && len(notes) == 0 {
		e.publish(Event{Type: EventMergeComplete, UID: uid, Count: 0})
		return nil
	}

	ops := make([]remote.Op, 0, len(tasks)+len(notes))
	for i := range tasks {
		doc, err := remote.TaskDoc(&tasks[i])
		if err != nil {
			return err
		}
		ops = append(ops, remote.Op{
			Kind:  remote.OpUpsert,
			Path:  remote.Path{UID: uid, Collection: model.CollectionTasks, ID: tasks[i].ID},
			Doc:   doc,
			Merge: true,
		})
	}
	for i := range notes {
		doc, err := remote.NoteDoc(&notes[i])
		if err != nil {
			return err
		}
		ops = append(ops, remote.Op{
			Kind:  remote.OpUpsert,
			Path:  remote.Path{UID: uid, Collection: model.CollectionNotes, ID: notes[i].ID},
			Doc:   doc,
			Merge: true,
		})
	}
	if err := e.remote.BatchWrite(ctx, ops); err != nil {
		return fmt.Errorf("merging %d local records: %w", len(ops), err)
	}

	// The merged records come back through the remote snapshot, so
	// the local copies are now redundant.
	if err := e.store.ClearTasksContext(ctx); err != nil {
		return err
	}
	if err := e.store.ClearNotesContext(ctx); err != nil {
		return err
	}
	e.logger.Printf("merged %d local records for uid=%s", len(ops), uid)
	e.publish(Event{Type: EventMergeComplete, UID: uid, Count: len(ops)})
	return nil
}

// drainQueue replays queued changes against the remote store in
// order. Each change is removed as soon as it applies; the first
// failure stops the drain and leaves the rest queued.
func (e *Engine) drainQueue(ctx context.Context, uid string) (int, error) {
	drained := 0
	err := e.store.Drain(ctx, func(ch model.PendingChange) error {
		if err := e.applyChange(ctx, uid, ch); err != nil {
			return err
		}
		drained++
		return nil
	})
	return drained, err
}

func (e *Engine) applyChange(ctx context.Context, uid string, ch model.PendingChange) error {
	switch ch.Type {
	case model.ChangeAdd, model.ChangeUpdate:
		doc, err := ch.Doc()
		if err != nil {
			return err
		}
		id, _ := doc["id"].(string)
		if id == "" {
			return fmt.Errorf("change %d has no record id", ch.Seq)
		}
		p := remote.Path{UID: uid, Collection: ch.Collection, ID: id}
		return e.remote.Upsert(ctx, p, doc, true)
	case model.ChangeDelete:
		p := remote.Path{UID: uid, Collection: ch.Collection, ID: ch.RecordID}
		return e.remote.Delete(ctx, p)
	case model.ChangeDeleteBatch:
		ops := make([]remote.Op, 0, len(ch.RecordIDs))
		for _, id := range ch.RecordIDs {
			ops = append(ops, remote.Op{
				Kind: remote.OpDelete,
				Path: remote.Path{UID: uid, Collection: ch.Collection, ID: id},
			})
		}
		return e.remote.BatchWrite(ctx, ops)
	default:
		return fmt.Errorf("unknown change type %q", ch.Type)
	}
}

// subscribe opens one change-feed subscription per collection. Each
// snapshot wholesale-replaces the matching local table.
func (e *Engine) subscribe(ctx context.Context, uid string) error {
	e.cancelSubscriptions()

	for _, c := range []model.Collection{model.CollectionTasks, model.CollectionNotes} {
		sub, err := e.remote.Subscribe(ctx, uid, c)
		if err != nil {
			e.cancelSubscriptions()
			return fmt.Errorf("subscribing to %s: %w", c, err)
		}
		e.mu.Lock()
		e.subs = append(e.subs, sub)
		e.mu.Unlock()

		e.subWG.Add(1)
		go e.consume(ctx, uid, c, sub)
	}
	return nil
}

func (e *Engine) consume(ctx context.Context, uid string, c model.Collection, sub remote.Subscription) {
	defer e.subWG.Done()
	for snap := range sub.Updates() {
		if err := e.applySnapshot(ctx, c, snap); err != nil {
			e.logger.Printf("applying %s snapshot: %v", c, err)
			e.publish(Event{Type: EventError, UID: uid, Collection: c, Error: err.Error()})
			continue
		}
		e.publish(Event{Type: EventSnapshot, UID: uid, Collection: c, Count: len(snap)})
	}
	if err := sub.Err(); err != nil {
		e.logger.Printf("%s subscription ended: %v", c, err)
		e.publish(Event{Type: EventError, UID: uid, Collection: c, Error: err.Error()})
	}
}

func (e *Engine) applySnapshot(ctx context.Context, c model.Collection, snap remote.Snapshot) error {
	switch c {
	case model.CollectionTasks:
		return e.state.SetTasks(ctx, remote.DecodeTasks(snap))
	case model.CollectionNotes:
		return e.state.SetNotes(ctx, remote.DecodeNotes(snap))
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
}

// pull fetches one snapshot per collection and replaces the local
// tables with it.
func (e *Engine) pull(ctx context.Context, uid string) error {
	for _, c := range []model.Collection{model.CollectionTasks, model.CollectionNotes} {
		snap, err := e.remote.Query(ctx, uid, c)
		if err != nil {
			return fmt.Errorf("querying %s: %w", c, err)
		}
		if err := e.applySnapshot(ctx, c, snap); err != nil {
			return err
		}
		e.publish(Event{Type: EventSnapshot, UID: uid, Collection: c, Count: len(snap)})
	}
	return nil
}

// SyncOnce runs a single push-then-pull cycle for the logged-in user:
// drain the queue, merge local records up, then replace the local
// tables with the remote result. Remote records win; local-only
// records survive because the merge pushed them first.
func (e *Engine) SyncOnce(ctx context.Context) error {
	id := e.sessions.Current()
	if id.Anonymous() {
		return fmt.Errorf("not logged in")
	}
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.mergeLocal(opCtx, id.UID); err != nil {
		return err
	}
	if err := e.pull(opCtx, id.UID); err != nil {
		return err
	}

	// A successful retry finishes an interrupted login.
	if e.Status() == StatusMerging {
		if e.mode == ModeLive {
			if err := e.subscribe(ctx, id.UID); err != nil {
				return err
			}
		}
		e.setStatus(StatusSubscribed)
	}
	return nil
}

// PendingCount reports how many changes are queued for the next merge.
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	return e.store.PendingCount(ctx)
}

func (e *Engine) cancelSubscriptions() {
	e.mu.Lock()
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
	e.subWG.Wait()
}
