package store

import (
	"context"
	"sync"

	"github.com/idearoom/idearoom/pkg/models"
)

// memStore is a minimal in-memory Store used to test the wrappers in this
// package.
type memStore struct {
	mu        sync.Mutex
	artifacts map[string]*models.Artifact
	projects  map[string]*models.Project
	events    map[string]*models.CalendarEventRecord
	settings  *models.Settings
	saves     int
}

func newMemStore() *memStore {
	return &memStore{
		artifacts: make(map[string]*models.Artifact),
		projects:  make(map[string]*models.Project),
		events:    make(map[string]*models.CalendarEventRecord),
	}
}

func (m *memStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return models.DefaultSettings(), nil
	}
	return m.settings, nil
}

func (m *memStore) SaveSettings(ctx context.Context, s *models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

func (m *memStore) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifacts[id], nil
}

func (m *memStore) SaveArtifact(ctx context.Context, a *models.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.ID] = a
	m.saves++
	return nil
}

func (m *memStore) DeleteArtifact(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, id)
	return nil
}

func (m *memStore) ListArtifacts(ctx context.Context, typ models.ArtifactType, projectID string) ([]*models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Artifact{}
	for _, a := range m.artifacts {
		if typ != "" && a.Type != typ {
			continue
		}
		if projectID != "" && a.ProjectID != projectID {
			continue
		}
		out = append(out, a)
	}
	models.SortByUpdated(out)
	return out, nil
}

func (m *memStore) ListFavorites(ctx context.Context, projectID string) ([]*models.Artifact, error) {
	all, _ := m.ListArtifacts(ctx, "", projectID)
	out := []*models.Artifact{}
	for _, a := range all {
		if a.Favorite {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListByTag(ctx context.Context, tag, projectID string) ([]*models.Artifact, error) {
	all, _ := m.ListArtifacts(ctx, "", projectID)
	out := []*models.Artifact{}
	for _, a := range all {
		if a.HasTag(tag) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[id], nil
}

func (m *memStore) GetProjects(ctx context.Context) ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Project{}
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) SaveProject(ctx context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *memStore) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

func (m *memStore) ListCalendarEvents(ctx context.Context, projectID string) ([]*models.CalendarEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.CalendarEventRecord{}
	for _, e := range m.events {
		if projectID != "" && e.ProjectID != projectID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) SaveCalendarEvent(ctx context.Context, e *models.CalendarEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	return nil
}

func (m *memStore) DeleteCalendarEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	return nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
