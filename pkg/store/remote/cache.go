package remote

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/idearoom/idearoom/pkg/models"
	"github.com/idearoom/idearoom/pkg/store/kv"
)

const (
	cacheArtifactsKey = "idearoom:remote-cache:artifacts"
	cacheProjectsKey  = "idearoom:remote-cache:projects"
	cacheEventsKey    = "idearoom:remote-cache:events"
	cacheSettingsKey  = "idearoom:remote-cache:settings"
)

// mirror is the local copy of remote data: updated on every successful read
// and write, persisted through the key-value store so it survives restarts,
// and served whenever a remote call fails.
type mirror struct {
	kv  *kv.KV
	log zerolog.Logger

	mu        sync.Mutex
	artifacts map[string]*models.Artifact
	projects  map[string]*models.Project
	events    map[string]*models.CalendarEventRecord
	settings  *models.Settings
}

func newMirror(store *kv.KV, log zerolog.Logger) *mirror {
	m := &mirror{
		kv:        store,
		log:       log,
		artifacts: make(map[string]*models.Artifact),
		projects:  make(map[string]*models.Project),
		events:    make(map[string]*models.CalendarEventRecord),
	}
	m.loadCBOR(cacheArtifactsKey, &m.artifacts)
	m.loadCBOR(cacheProjectsKey, &m.projects)
	m.loadCBOR(cacheEventsKey, &m.events)
	m.loadCBOR(cacheSettingsKey, &m.settings)
	return m
}

func (m *mirror) putArtifact(a *models.Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.ID] = a
	m.persistCBOR(cacheArtifactsKey, m.artifacts)
}

func (m *mirror) putArtifacts(artifacts []*models.Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range artifacts {
		m.artifacts[a.ID] = a
	}
	m.persistCBOR(cacheArtifactsKey, m.artifacts)
}

// replaceArtifacts swaps the whole collection, pruning records that no longer
// exist remotely. Used when an unfiltered listing succeeds; filtered listings
// merge instead.
func (m *mirror) replaceArtifacts(artifacts []*models.Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = make(map[string]*models.Artifact, len(artifacts))
	for _, a := range artifacts {
		m.artifacts[a.ID] = a
	}
	m.persistCBOR(cacheArtifactsKey, m.artifacts)
}

func (m *mirror) deleteArtifact(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, id)
	m.persistCBOR(cacheArtifactsKey, m.artifacts)
}

func (m *mirror) getArtifact(id string) *models.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifacts[id]
}

func (m *mirror) listArtifacts() []*models.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Artifact, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		out = append(out, a)
	}
	return out
}

func (m *mirror) putProject(p *models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	m.persistCBOR(cacheProjectsKey, m.projects)
}

func (m *mirror) putProjects(projects []*models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	m.persistCBOR(cacheProjectsKey, m.projects)
}

func (m *mirror) replaceProjects(projects []*models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = make(map[string]*models.Project, len(projects))
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	m.persistCBOR(cacheProjectsKey, m.projects)
}

func (m *mirror) deleteProject(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	m.persistCBOR(cacheProjectsKey, m.projects)
}

func (m *mirror) getProject(id string) *models.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[id]
}

func (m *mirror) listProjects() []*models.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out
}

func (m *mirror) putEvent(e *models.CalendarEventRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	m.persistCBOR(cacheEventsKey, m.events)
}

func (m *mirror) putEvents(events []*models.CalendarEventRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		m.events[e.ID] = e
	}
	m.persistCBOR(cacheEventsKey, m.events)
}

func (m *mirror) replaceEvents(events []*models.CalendarEventRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string]*models.CalendarEventRecord, len(events))
	for _, e := range events {
		m.events[e.ID] = e
	}
	m.persistCBOR(cacheEventsKey, m.events)
}

func (m *mirror) deleteEvent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	m.persistCBOR(cacheEventsKey, m.events)
}

func (m *mirror) listEvents() []*models.CalendarEventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.CalendarEventRecord, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	return out
}

func (m *mirror) putSettings(s *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	m.persistCBOR(cacheSettingsKey, m.settings)
}

func (m *mirror) getSettings() *models.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// clear empties every collection, used when a cleanup wipes current data.
func (m *mirror) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = make(map[string]*models.Artifact)
	m.projects = make(map[string]*models.Project)
	m.events = make(map[string]*models.CalendarEventRecord)
	m.settings = nil
	m.persistCBOR(cacheArtifactsKey, m.artifacts)
	m.persistCBOR(cacheProjectsKey, m.projects)
	m.persistCBOR(cacheEventsKey, m.events)
	m.persistCBOR(cacheSettingsKey, m.settings)
}

func (m *mirror) loadCBOR(key string, v any) {
	data, err := m.kv.Get(key)
	if err != nil {
		m.log.Error().Err(err).Str("key", key).Msg("failed to load cache")
		return
	}
	if data == nil {
		return
	}
	if err := cbor.Unmarshal(data, v); err != nil {
		m.log.Error().Err(err).Str("key", key).Msg("corrupt cache record")
	}
}

func (m *mirror) persistCBOR(key string, v any) {
	data, err := cbor.Marshal(v)
	if err != nil {
		m.log.Error().Err(err).Str("key", key).Msg("failed to encode cache")
		return
	}
	if err := m.kv.Put(key, data); err != nil {
		m.log.Error().Err(err).Str("key", key).Msg("failed to persist cache")
	}
}
