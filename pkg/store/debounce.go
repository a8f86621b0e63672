package store

import (
	"context"
	"sync"
	"time"

	"github.com/idearoom/idearoom/pkg/models"
)

// DebouncedSaver collapses rapid successive saves of the same artifact into
// one persisted write after a quiet period. Each new Save within the window
// restarts the timer and supersedes the previously pending record (trailing
// debounce). SaveNow bypasses the window for explicit user actions such as
// rename or favorite toggles, cancelling any pending write for that id.
type DebouncedSaver struct {
	store Store
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSave
	closed  bool
}

type pendingSave struct {
	timer    *time.Timer
	artifact *models.Artifact
}

// NewDebouncedSaver creates a saver flushing after the given quiet period.
func NewDebouncedSaver(s Store, delay time.Duration) *DebouncedSaver {
	return &DebouncedSaver{
		store:   s,
		delay:   delay,
		pending: make(map[string]*pendingSave),
	}
}

// Save schedules artifact to be persisted once no further Save for the same
// id arrives within the quiet period.
func (d *DebouncedSaver) Save(artifact *models.Artifact) {
	if artifact == nil || artifact.ID == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	id := artifact.ID
	if p, ok := d.pending[id]; ok {
		p.artifact = artifact
		p.timer.Reset(d.delay)
		return
	}

	p := &pendingSave{artifact: artifact}
	p.timer = time.AfterFunc(d.delay, func() { d.flush(id) })
	d.pending[id] = p
}

// SaveNow persists artifact immediately, cancelling any pending debounced
// write for the same id.
func (d *DebouncedSaver) SaveNow(ctx context.Context, artifact *models.Artifact) error {
	if artifact == nil || artifact.ID == "" {
		return nil
	}

	d.mu.Lock()
	if p, ok := d.pending[artifact.ID]; ok {
		p.timer.Stop()
		delete(d.pending, artifact.ID)
	}
	d.mu.Unlock()

	return d.store.SaveArtifact(ctx, artifact)
}

// Flush persists every pending artifact immediately.
func (d *DebouncedSaver) Flush(ctx context.Context) {
	d.mu.Lock()
	var due []*models.Artifact
	for id, p := range d.pending {
		p.timer.Stop()
		due = append(due, p.artifact)
		delete(d.pending, id)
	}
	d.mu.Unlock()

	for _, a := range due {
		_ = d.store.SaveArtifact(ctx, a)
	}
}

// Close flushes pending writes and stops accepting new ones.
func (d *DebouncedSaver) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Flush(context.Background())
}

func (d *DebouncedSaver) flush(id string) {
	d.mu.Lock()
	p, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	_ = d.store.SaveArtifact(context.Background(), p.artifact)
}
