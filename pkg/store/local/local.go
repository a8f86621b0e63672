// Package local implements the storage adapter backed by the embedded
// key-value store. Each entity is stored under a deterministic namespaced
// key, with one index record per collection holding the ids that belong to
// it. There is no network behind this adapter, so a storage failure has no
// retry path: reads degrade to not-found/empty, writes are dropped, and
// everything is logged.
package local

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/idearoom/idearoom/pkg/models"
	"github.com/idearoom/idearoom/pkg/store/kv"
)

const (
	keyPrefix = "idearoom:"

	settingsKey = keyPrefix + "settings"

	artifactKeyPrefix = keyPrefix + "artifact:"
	artifactIndexKey  = keyPrefix + "artifact-index"

	projectKeyPrefix = keyPrefix + "project:"
	projectIndexKey  = keyPrefix + "project-index"

	eventKeyPrefix = keyPrefix + "event:"
	eventIndexKey  = keyPrefix + "event-index"
)

// LocalStore persists all entities in a kv.KV store.
type LocalStore struct {
	kv  *kv.KV
	log zerolog.Logger
}

// NewLocalStore creates an adapter over an open key-value store.
func NewLocalStore(store *kv.KV, log zerolog.Logger) *LocalStore {
	return &LocalStore{
		kv:  store,
		log: log.With().Str("adapter", "local").Logger(),
	}
}

func (s *LocalStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	if !s.getJSON(settingsKey, &settings) {
		return models.DefaultSettings(), nil
	}
	if len(settings.EnabledTypes) == 0 {
		settings.EnabledTypes = models.DefaultSettings().EnabledTypes
	}
	if settings.Mode == "" {
		settings.Mode = models.ModeSingleProject
	}
	return &settings, nil
}

func (s *LocalStore) SaveSettings(ctx context.Context, settings *models.Settings) error {
	if settings == nil {
		return nil
	}
	s.putJSON(settingsKey, settings)
	return nil
}

func (s *LocalStore) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	var raw map[string]any
	if !s.getJSON(artifactKeyPrefix+id, &raw) {
		return nil, nil
	}
	return models.NormalizeArtifact(raw), nil
}

func (s *LocalStore) SaveArtifact(ctx context.Context, artifact *models.Artifact) error {
	a := models.NormalizeArtifact(artifact)
	if a == nil {
		s.log.Warn().Msg("dropping artifact that failed normalization")
		return nil
	}
	s.putJSON(artifactKeyPrefix+a.ID, a)
	s.addToIndex(artifactIndexKey, a.ID)
	return nil
}

func (s *LocalStore) DeleteArtifact(ctx context.Context, id string) error {
	if err := s.kv.Delete(artifactKeyPrefix + id); err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("failed to delete artifact")
		return nil
	}
	s.removeFromIndex(artifactIndexKey, id)
	return nil
}

func (s *LocalStore) ListArtifacts(ctx context.Context, typ models.ArtifactType, projectID string) ([]*models.Artifact, error) {
	artifacts := []*models.Artifact{}
	for _, id := range s.readIndex(artifactIndexKey) {
		a, _ := s.GetArtifact(ctx, id)
		if a == nil {
			continue
		}
		if typ != "" && a.Type != typ {
			continue
		}
		if projectID != "" && a.ProjectID != projectID {
			continue
		}
		artifacts = append(artifacts, a)
	}
	models.SortByUpdated(artifacts)
	return artifacts, nil
}

func (s *LocalStore) ListFavorites(ctx context.Context, projectID string) ([]*models.Artifact, error) {
	all, _ := s.ListArtifacts(ctx, "", projectID)
	favorites := []*models.Artifact{}
	for _, a := range all {
		if a.Favorite {
			favorites = append(favorites, a)
		}
	}
	return favorites, nil
}

func (s *LocalStore) ListByTag(ctx context.Context, tag string, projectID string) ([]*models.Artifact, error) {
	all, _ := s.ListArtifacts(ctx, "", projectID)
	tagged := []*models.Artifact{}
	for _, a := range all {
		if a.HasTag(tag) {
			tagged = append(tagged, a)
		}
	}
	return tagged, nil
}

func (s *LocalStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var raw map[string]any
	if !s.getJSON(projectKeyPrefix+id, &raw) {
		return nil, nil
	}
	return models.NormalizeProject(raw), nil
}

func (s *LocalStore) GetProjects(ctx context.Context) ([]*models.Project, error) {
	projects := []*models.Project{}
	for _, id := range s.readIndex(projectIndexKey) {
		p, _ := s.GetProject(ctx, id)
		if p == nil {
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (s *LocalStore) SaveProject(ctx context.Context, project *models.Project) error {
	p := models.NormalizeProject(project)
	if p == nil {
		s.log.Warn().Msg("dropping project that failed normalization")
		return nil
	}
	s.putJSON(projectKeyPrefix+p.ID, p)
	s.addToIndex(projectIndexKey, p.ID)
	return nil
}

func (s *LocalStore) DeleteProject(ctx context.Context, id string) error {
	if err := s.kv.Delete(projectKeyPrefix + id); err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("failed to delete project")
		return nil
	}
	s.removeFromIndex(projectIndexKey, id)
	return nil
}

func (s *LocalStore) ListCalendarEvents(ctx context.Context, projectID string) ([]*models.CalendarEventRecord, error) {
	events := []*models.CalendarEventRecord{}
	for _, id := range s.readIndex(eventIndexKey) {
		var e models.CalendarEventRecord
		if !s.getJSON(eventKeyPrefix+id, &e) {
			continue
		}
		if projectID != "" && e.ProjectID != projectID {
			continue
		}
		events = append(events, &e)
	}
	models.SortEventsByStart(events)
	return events, nil
}

func (s *LocalStore) SaveCalendarEvent(ctx context.Context, event *models.CalendarEventRecord) error {
	if event == nil || event.ID == "" {
		return nil
	}
	s.putJSON(eventKeyPrefix+event.ID, event)
	s.addToIndex(eventIndexKey, event.ID)
	return nil
}

func (s *LocalStore) DeleteCalendarEvent(ctx context.Context, id string) error {
	if err := s.kv.Delete(eventKeyPrefix + id); err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("failed to delete calendar event")
		return nil
	}
	s.removeFromIndex(eventIndexKey, id)
	return nil
}

// Migrate reconciles the index records with the entities actually stored,
// re-adopting records orphaned by a partial write. Runs at boot; idempotent.
func (s *LocalStore) Migrate(ctx context.Context) error {
	s.rebuildIndex(artifactKeyPrefix, artifactIndexKey)
	s.rebuildIndex(projectKeyPrefix, projectIndexKey)
	s.rebuildIndex(eventKeyPrefix, eventIndexKey)
	return nil
}

func (s *LocalStore) rebuildIndex(prefix, indexKey string) {
	keys, err := s.kv.Keys(prefix)
	if err != nil {
		s.log.Error().Err(err).Str("prefix", prefix).Msg("index scan failed")
		return
	}
	ids := s.readIndex(indexKey)
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	changed := false
	for _, key := range keys {
		id := strings.TrimPrefix(key, prefix)
		if id != "" && !known[id] {
			ids = append(ids, id)
			changed = true
		}
	}
	if changed {
		s.log.Info().Str("index", indexKey).Int("adopted", len(ids)-len(known)).Msg("index rebuilt")
		s.putJSON(indexKey, ids)
	}
}

func (s *LocalStore) Close() error {
	return s.kv.Close()
}

// getJSON loads and decodes key into v, reporting whether a usable value was
// found. Storage failures degrade to not-found.
func (s *LocalStore) getJSON(key string, v any) bool {
	data, err := s.kv.Get(key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("read failed")
		return false
	}
	if data == nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("corrupt record")
		return false
	}
	return true
}

// putJSON encodes and stores v under key. A failed write is dropped.
func (s *LocalStore) putJSON(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("encode failed")
		return
	}
	if err := s.kv.Put(key, data); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("write failed")
	}
}

func (s *LocalStore) readIndex(key string) []string {
	var ids []string
	s.getJSON(key, &ids)
	return ids
}

func (s *LocalStore) addToIndex(key, id string) {
	ids := s.readIndex(key)
	for _, existing := range ids {
		if existing == id {
			return
		}
	}
	s.putJSON(key, append(ids, id))
}

func (s *LocalStore) removeFromIndex(key, id string) {
	ids := s.readIndex(key)
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) != len(ids) {
		s.putJSON(key, kept)
	}
}
