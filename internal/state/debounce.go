package state

import (
	"context"
	"sync"
	"time"

	"mybrain/internal/model"
)

// DefaultDraftDebounce is how long note edits coalesce before the
// draft is persisted.
const DefaultDraftDebounce = 2 * time.Second

// draftSavers coalesces rapid note edits into one persisted write per
// note. Each keystroke resets that note's timer; only the last content
// within the window is saved.
type draftSavers struct {
	state *State
	delay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	latest map[string]string
}

func newDraftSavers(s *State) *draftSavers {
	return &draftSavers{
		state:  s,
		delay:  DefaultDraftDebounce,
		timers: make(map[string]*time.Timer),
		latest: make(map[string]string),
	}
}

func (d *draftSavers) schedule(id, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest[id] = content
	if t, ok := d.timers[id]; ok {
		t.Stop()
	}
	d.timers[id] = time.AfterFunc(d.delay, func() {
		d.fire(id)
	})
}

func (d *draftSavers) fire(id string) {
	d.mu.Lock()
	content, ok := d.latest[id]
	delete(d.latest, id)
	delete(d.timers, id)
	d.mu.Unlock()
	if !ok {
		return
	}
	d.save(id, content)
}

// flush persists every outstanding draft immediately.
func (d *draftSavers) flush() {
	d.mu.Lock()
	pending := make(map[string]string, len(d.latest))
	for id, content := range d.latest {
		pending[id] = content
		if t, ok := d.timers[id]; ok {
			t.Stop()
		}
	}
	d.latest = make(map[string]string)
	d.timers = make(map[string]*time.Timer)
	d.mu.Unlock()

	for id, content := range pending {
		d.save(id, content)
	}
}

func (d *draftSavers) save(id, content string) {
	patch := model.NotePatch{Content: &content}
	if err := d.state.UpdateNote(context.Background(), id, patch); err != nil {
		d.state.logger.Printf("draft save for note %s failed: %v", id, err)
	}
}
