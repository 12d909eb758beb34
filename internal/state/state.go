// Package state holds the in-memory view of the user's data and
// applies edits optimistically. Every mutation lands in memory and in
// the local store first so the app stays responsive, then reconciles
// with the remote store. While no user is logged in, mutations are
// queued as pending changes instead.
package state

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"mybrain/internal/localstore"
	"mybrain/internal/model"
	"mybrain/internal/remote"
	"mybrain/internal/session"
)

// DefaultRemoteTimeout bounds every remote write made on behalf of an
// optimistic mutation.
const DefaultRemoteTimeout = 10 * time.Second

// State is the reactive model. All exported methods are safe for
// concurrent use.
type State struct {
	store    *localstore.Store
	remote   remote.Store
	sessions session.Boundary
	logger   *log.Logger
	timeout  time.Duration

	mu       sync.RWMutex
	tasks    []model.Task
	notes    []model.Note
	watchers []func()

	drafts *draftSavers
}

// Option configures a State.
type Option func(*State)

// WithRemoteTimeout overrides the per-operation remote write timeout.
func WithRemoteTimeout(d time.Duration) Option {
	return func(s *State) { s.timeout = d }
}

// WithDraftDebounce overrides the note draft save delay. Zero or
// negative keeps the default.
func WithDraftDebounce(d time.Duration) Option {
	return func(s *State) {
		if d > 0 {
			s.drafts.delay = d
		}
	}
}

// New creates a State backed by the given stores. remoteStore may be
// nil, in which case every mutation takes the queue path. If logger is
// nil, logging goes to stderr.
func New(store *localstore.Store, remoteStore remote.Store, sessions session.Boundary, logger *log.Logger, opts ...Option) *State {
	if logger == nil {
		logger = log.New(os.Stderr, "[state] ", log.LstdFlags)
	}
	s := &State{
		store:    store,
		remote:   remoteStore,
		sessions: sessions,
		logger:   logger,
		timeout:  DefaultRemoteTimeout,
	}
	s.drafts = newDraftSavers(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close flushes any pending note drafts.
func (s *State) Close() {
	s.drafts.flush()
}

// Watch registers fn to be called after every change to the in-memory
// model. fn must not block.
func (s *State) Watch(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *State) notify() {
	s.mu.RLock()
	watchers := make([]func(), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.RUnlock()
	for _, fn := range watchers {
		fn()
	}
}

// Tasks returns a copy of the current task list, newest first.
func (s *State) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Notes returns a copy of the current note list, newest first.
func (s *State) Notes() []model.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Task returns the task with the given id, or false.
func (s *State) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Note returns the note with the given id, or false.
func (s *State) Note(id string) (model.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notes {
		if n.ID == id {
			return n, true
		}
	}
	return model.Note{}, false
}

// ReloadLocal replaces the in-memory model with the local store
// contents.
func (s *State) ReloadLocal(ctx context.Context) error {
	tasks, err := s.store.ListTasksContext(ctx)
	if err != nil {
		return fmt.Errorf("reloading tasks: %w", err)
	}
	notes, err := s.store.ListNotesContext(ctx)
	if err != nil {
		return fmt.Errorf("reloading notes: %w", err)
	}
	s.mu.Lock()
	s.tasks = tasks
	s.notes = notes
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetTasks replaces both the local store's task table and the
// in-memory list with the given snapshot. Used when a fresh remote
// snapshot arrives.
func (s *State) SetTasks(ctx context.Context, tasks []model.Task) error {
	if err := s.store.ClearTasksContext(ctx); err != nil {
		return fmt.Errorf("replacing tasks: %w", err)
	}
	for i := range tasks {
		if err := s.store.PutTaskContext(ctx, &tasks[i]); err != nil {
			return fmt.Errorf("replacing tasks: %w", err)
		}
	}
	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetNotes replaces both the local store's note table and the
// in-memory list with the given snapshot.
func (s *State) SetNotes(ctx context.Context, notes []model.Note) error {
	if err := s.store.ClearNotesContext(ctx); err != nil {
		return fmt.Errorf("replacing notes: %w", err)
	}
	for i := range notes {
		if err := s.store.PutNoteContext(ctx, &notes[i]); err != nil {
			return fmt.Errorf("replacing notes: %w", err)
		}
	}
	s.mu.Lock()
	s.notes = notes
	s.mu.Unlock()
	s.notify()
	return nil
}

// AddTask creates the task locally and pushes it to the remote store.
// The local copy always survives: if the remote write fails, the task
// is queued as a pending change instead of being rolled back.
func (s *State) AddTask(ctx context.Context, task *model.Task) error {
	task.SetDefaults()
	if err := s.store.PutTaskContext(ctx, task); err != nil {
		return err
	}
	s.mu.Lock()
	s.tasks = append([]model.Task{*task}, s.tasks...)
	s.mu.Unlock()
	s.notify()

	if !s.online() {
		return s.enqueueAdd(ctx, model.CollectionTasks, task)
	}
	doc, err := remote.TaskDoc(task)
	if err != nil {
		return err
	}
	if err := s.remoteUpsert(ctx, model.CollectionTasks, task.ID, doc); err != nil {
		s.logger.Printf("remote add failed, queueing task %s: %v", task.ID, err)
		return s.enqueueAdd(ctx, model.CollectionTasks, task)
	}
	return nil
}

// UpdateTask applies the patch locally and pushes the result to the
// remote store. If the remote write fails, the local change is rolled
// back and the error returned.
func (s *State) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error {
	prev, ok := s.Task(id)
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	if err := s.store.UpdateTaskContext(ctx, id, patch); err != nil {
		return err
	}
	next := prev
	patch.Apply(&next)
	s.replaceTask(next)

	if !s.online() {
		return s.enqueueUpdate(ctx, model.CollectionTasks, &next)
	}
	doc, err := remote.TaskDoc(&next)
	if err != nil {
		return err
	}
	if err := s.remoteUpsert(ctx, model.CollectionTasks, id, doc); err != nil {
		s.rollbackTask(ctx, prev)
		return fmt.Errorf("updating task %s: %w", id, err)
	}
	return nil
}

// ToggleTask flips the task's completed flag.
func (s *State) ToggleTask(ctx context.Context, id string) error {
	task, ok := s.Task(id)
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	completed := !task.Completed
	return s.UpdateTask(ctx, id, model.TaskPatch{Completed: &completed})
}

// DeleteTask removes the task locally and remotely. If the remote
// delete fails, the task is restored and the error returned.
func (s *State) DeleteTask(ctx context.Context, id string) error {
	prev, ok := s.Task(id)
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	if err := s.store.DeleteTaskContext(ctx, id); err != nil {
		return err
	}
	s.removeTask(id)

	if !s.online() {
		return s.enqueue(ctx, model.NewDeleteChange(model.CollectionTasks, id))
	}
	if err := s.remoteDelete(ctx, model.CollectionTasks, id); err != nil {
		s.rollbackTask(ctx, prev)
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// AddNote creates the note locally and pushes it to the remote store,
// queueing it on remote failure.
func (s *State) AddNote(ctx context.Context, note *model.Note) error {
	note.SetDefaults()
	if err := s.store.PutNoteContext(ctx, note); err != nil {
		return err
	}
	s.mu.Lock()
	s.notes = append([]model.Note{*note}, s.notes...)
	s.mu.Unlock()
	s.notify()

	if !s.online() {
		return s.enqueueAdd(ctx, model.CollectionNotes, note)
	}
	doc, err := remote.NoteDoc(note)
	if err != nil {
		return err
	}
	if err := s.remoteUpsert(ctx, model.CollectionNotes, note.ID, doc); err != nil {
		s.logger.Printf("remote add failed, queueing note %s: %v", note.ID, err)
		return s.enqueueAdd(ctx, model.CollectionNotes, note)
	}
	return nil
}

// UpdateNote applies the patch locally and pushes the result to the
// remote store, rolling back on remote failure.
func (s *State) UpdateNote(ctx context.Context, id string, patch model.NotePatch) error {
	prev, ok := s.Note(id)
	if !ok {
		return fmt.Errorf("note %s not found", id)
	}
	if err := s.store.UpdateNoteContext(ctx, id, patch); err != nil {
		return err
	}
	next := prev
	patch.Apply(&next)
	s.replaceNote(next)

	if !s.online() {
		return s.enqueueUpdate(ctx, model.CollectionNotes, &next)
	}
	doc, err := remote.NoteDoc(&next)
	if err != nil {
		return err
	}
	if err := s.remoteUpsert(ctx, model.CollectionNotes, id, doc); err != nil {
		s.rollbackNote(ctx, prev)
		return fmt.Errorf("updating note %s: %w", id, err)
	}
	return nil
}

// DeleteNote removes the note locally and remotely, restoring it on
// remote failure.
func (s *State) DeleteNote(ctx context.Context, id string) error {
	prev, ok := s.Note(id)
	if !ok {
		return fmt.Errorf("note %s not found", id)
	}
	if err := s.store.DeleteNoteContext(ctx, id); err != nil {
		return err
	}
	s.removeNote(id)

	if !s.online() {
		return s.enqueue(ctx, model.NewDeleteChange(model.CollectionNotes, id))
	}
	if err := s.remoteDelete(ctx, model.CollectionNotes, id); err != nil {
		s.rollbackNote(ctx, prev)
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	return nil
}

// SaveNoteDraft schedules a debounced content save for the note. The
// in-memory copy updates immediately; the store and remote writes run
// after the draft delay, superseded by any newer draft for the same
// note.
func (s *State) SaveNoteDraft(id, content string) {
	s.mu.Lock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes[i].Content = content
			s.notes[i].Touch()
			break
		}
	}
	s.mu.Unlock()
	s.notify()
	s.drafts.schedule(id, content)
}

func (s *State) online() bool {
	return s.remote != nil && !s.sessions.Current().Anonymous()
}

func (s *State) remoteUpsert(ctx context.Context, c model.Collection, id string, doc map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p := remote.Path{UID: s.sessions.Current().UID, Collection: c, ID: id}
	return s.remote.Upsert(ctx, p, doc, true)
}

func (s *State) remoteDelete(ctx context.Context, c model.Collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p := remote.Path{UID: s.sessions.Current().UID, Collection: c, ID: id}
	return s.remote.Delete(ctx, p)
}

func (s *State) enqueueAdd(ctx context.Context, c model.Collection, record any) error {
	change, err := model.NewAddChange(c, record)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, change)
}

func (s *State) enqueueUpdate(ctx context.Context, c model.Collection, record any) error {
	change, err := model.NewUpdateChange(c, record)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, change)
}

func (s *State) enqueue(ctx context.Context, change model.PendingChange) error {
	if err := s.store.Enqueue(ctx, change); err != nil {
		return fmt.Errorf("queueing change: %w", err)
	}
	return nil
}

func (s *State) replaceTask(task model.Task) {
	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == task.ID {
			s.tasks[i] = task
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *State) removeTask(id string) {
	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *State) replaceNote(note model.Note) {
	s.mu.Lock()
	for i := range s.notes {
		if s.notes[i].ID == note.ID {
			s.notes[i] = note
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *State) removeNote(id string) {
	s.mu.Lock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// rollbackTask restores a task after a failed remote write. Rollback
// errors are logged, not returned, so the caller sees the original
// failure.
func (s *State) rollbackTask(ctx context.Context, prev model.Task) {
	if err := s.store.PutTaskContext(ctx, &prev); err != nil {
		s.logger.Printf("rollback of task %s failed: %v", prev.ID, err)
	}
	s.mu.Lock()
	found := false
	for i := range s.tasks {
		if s.tasks[i].ID == prev.ID {
			s.tasks[i] = prev
			found = true
			break
		}
	}
	if !found {
		s.tasks = append([]model.Task{prev}, s.tasks...)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *State) rollbackNote(ctx context.Context, prev model.Note) {
	if err := s.store.PutNoteContext(ctx, &prev); err != nil {
		s.logger.Printf("rollback of note %s failed: %v", prev.ID, err)
	}
	s.mu.Lock()
	found := false
	for i := range s.notes {
		if s.notes[i].ID == prev.ID {
			s.notes[i] = prev
			found = true
			break
		}
	}
	if !found {
		s.notes = append([]model.Note{prev}, s.notes...)
	}
	s.mu.Unlock()
	s.notify()
}
