package remote

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/idearoom/idearoom/pkg/models"
	"github.com/idearoom/idearoom/pkg/store/kv"
)

const outboxKey = "idearoom:outbox"

// outboxState is the durable set of mutations that have not yet been
// confirmed by the backend, keyed by mutation class. Upserts keep only the
// latest record per id (a newer save supersedes a queued older one).
type outboxState struct {
	Artifacts       map[string]*models.Artifact            `json:"artifacts,omitempty"`
	ArtifactDeletes []string                               `json:"artifactDeletes,omitempty"`
	Settings        *models.Settings                       `json:"settings,omitempty"`
	Projects        map[string]*models.Project             `json:"projects,omitempty"`
	ProjectDeletes  []string                               `json:"projectDeletes,omitempty"`
	EventUpserts    map[string]*models.CalendarEventRecord `json:"eventUpserts,omitempty"`
	EventDeletes    []string                               `json:"eventDeletes,omitempty"`
}

// outbox persists pending mutations through the key-value store. Every
// mutation is queued before its remote attempt and removed only after the
// attempt succeeds, so a crash mid-flight never silently loses a write.
type outbox struct {
	kv  *kv.KV
	log zerolog.Logger

	mu    sync.Mutex
	state outboxState
}

func newOutbox(store *kv.KV, log zerolog.Logger) *outbox {
	o := &outbox{kv: store, log: log}
	data, err := store.Get(outboxKey)
	if err != nil {
		log.Error().Err(err).Msg("failed to load outbox")
	} else if data != nil {
		if err := cbor.Unmarshal(data, &o.state); err != nil {
			log.Error().Err(err).Msg("corrupt outbox record")
		}
	}
	o.ensureMaps()
	return o
}

func (o *outbox) ensureMaps() {
	if o.state.Artifacts == nil {
		o.state.Artifacts = make(map[string]*models.Artifact)
	}
	if o.state.Projects == nil {
		o.state.Projects = make(map[string]*models.Project)
	}
	if o.state.EventUpserts == nil {
		o.state.EventUpserts = make(map[string]*models.CalendarEventRecord)
	}
}

func (o *outbox) persist() {
	data, err := cbor.Marshal(o.state)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to encode outbox")
		return
	}
	if err := o.kv.Put(outboxKey, data); err != nil {
		o.log.Error().Err(err).Msg("failed to persist outbox")
	}
}

func (o *outbox) queueArtifact(a *models.Artifact) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Artifacts[a.ID] = a
	o.state.ArtifactDeletes = removeID(o.state.ArtifactDeletes, a.ID)
	o.persist()
}

// ackArtifact removes the queued entry for id, but only when it is still the
// exact record whose remote attempt succeeded. A save that re-queued a newer
// version while the attempt was in flight must stay queued.
func (o *outbox) ackArtifact(id string, attempted *models.Artifact) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Artifacts[id] != attempted {
		return
	}
	delete(o.state.Artifacts, id)
	o.persist()
}

func (o *outbox) queueArtifactDelete(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.state.Artifacts, id)
	o.state.ArtifactDeletes = addID(o.state.ArtifactDeletes, id)
	o.persist()
}

// Delete entries carry no payload, so a concurrently re-queued delete of the
// same id is the same mutation; delete acks stay unconditional.
func (o *outbox) ackArtifactDelete(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.ArtifactDeletes = removeID(o.state.ArtifactDeletes, id)
	o.persist()
}

func (o *outbox) queueSettings(s *models.Settings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Settings = s
	o.persist()
}

func (o *outbox) ackSettings(attempted *models.Settings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Settings != attempted {
		return
	}
	o.state.Settings = nil
	o.persist()
}

func (o *outbox) queueProject(p *models.Project) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Projects[p.ID] = p
	o.state.ProjectDeletes = removeID(o.state.ProjectDeletes, p.ID)
	o.persist()
}

func (o *outbox) ackProject(id string, attempted *models.Project) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Projects[id] != attempted {
		return
	}
	delete(o.state.Projects, id)
	o.persist()
}

func (o *outbox) queueProjectDelete(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.state.Projects, id)
	o.state.ProjectDeletes = addID(o.state.ProjectDeletes, id)
	o.persist()
}

func (o *outbox) ackProjectDelete(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.ProjectDeletes = removeID(o.state.ProjectDeletes, id)
	o.persist()
}

func (o *outbox) queueEvent(e *models.CalendarEventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.EventUpserts[e.ID] = e
	o.state.EventDeletes = removeID(o.state.EventDeletes, e.ID)
	o.persist()
}

func (o *outbox) ackEvent(id string, attempted *models.CalendarEventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.EventUpserts[id] != attempted {
		return
	}
	delete(o.state.EventUpserts, id)
	o.persist()
}

func (o *outbox) queueEventDelete(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.state.EventUpserts, id)
	o.state.EventDeletes = addID(o.state.EventDeletes, id)
	o.persist()
}

func (o *outbox) ackEventDelete(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.EventDeletes = removeID(o.state.EventDeletes, id)
	o.persist()
}

// snapshot returns a copy of the pending state for a flush pass.
func (o *outbox) snapshot() outboxState {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := outboxState{
		Artifacts:       make(map[string]*models.Artifact, len(o.state.Artifacts)),
		ArtifactDeletes: append([]string(nil), o.state.ArtifactDeletes...),
		Settings:        o.state.Settings,
		Projects:        make(map[string]*models.Project, len(o.state.Projects)),
		ProjectDeletes:  append([]string(nil), o.state.ProjectDeletes...),
		EventUpserts:    make(map[string]*models.CalendarEventRecord, len(o.state.EventUpserts)),
		EventDeletes:    append([]string(nil), o.state.EventDeletes...),
	}
	for id, a := range o.state.Artifacts {
		snap.Artifacts[id] = a
	}
	for id, p := range o.state.Projects {
		snap.Projects[id] = p
	}
	for id, e := range o.state.EventUpserts {
		snap.EventUpserts[id] = e
	}
	return snap
}

// pendingEvents returns queued calendar upserts, merged over server results
// by the listing path.
func (o *outbox) pendingEvents() []*models.CalendarEventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*models.CalendarEventRecord, 0, len(o.state.EventUpserts))
	for _, e := range o.state.EventUpserts {
		out = append(out, e)
	}
	return out
}

func (o *outbox) pendingEventDeletes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.state.EventDeletes...)
}

func (o *outbox) pendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.state.Artifacts) + len(o.state.ArtifactDeletes) +
		len(o.state.Projects) + len(o.state.ProjectDeletes) +
		len(o.state.EventUpserts) + len(o.state.EventDeletes)
	if o.state.Settings != nil {
		n++
	}
	return n
}

func addID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return kept
}
