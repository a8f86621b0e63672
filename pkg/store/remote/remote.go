package remote

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/idearoom/idearoom/pkg/models"
	"github.com/idearoom/idearoom/pkg/store/kv"
)

// Current single-table layout: one table per entity collection.
const (
	tableArtifacts = "artifacts"
	tableProjects  = "projects"
	tableEvents    = "calendar_events"
	tableSettings  = "settings"

	// The settings singleton lives under a fixed record id.
	settingsRecordID = "workspace"
)

// legacyTables is the prior per-kind layout cleaned up by
// CleanupLegacyTables.
var legacyTables = []string{
	"notes",
	"whiteboards",
	"flowcharts",
	"kanban_boards",
	"canvases",
	"calendar_notes",
}

var currentTables = []string{
	tableArtifacts,
	tableProjects,
	tableEvents,
	tableSettings,
}

// RemoteStore implements the storage contract against a hosted record store,
// degrading to its cache mirror on read failures and to its outbox on write
// failures. The caller-visible behavior is that every call resolves,
// possibly with locally cached data.
type RemoteStore struct {
	client Client
	kv     *kv.KV
	cache  *mirror
	outbox *outbox
	log    zerolog.Logger
}

// NewRemoteStore builds the adapter over an established client and the local
// key-value store used for cache and outbox persistence. Construction
// triggers an opportunistic flush of any mutations left over from a previous
// run.
func NewRemoteStore(ctx context.Context, client Client, store *kv.KV, log zerolog.Logger) *RemoteStore {
	log = log.With().Str("adapter", "remote").Logger()
	r := &RemoteStore{
		client: client,
		kv:     store,
		cache:  newMirror(store, log),
		outbox: newOutbox(store, log),
		log:    log,
	}
	r.Flush(ctx)
	return r
}

func (r *RemoteStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	rows, err := r.client.Query(ctx, "SELECT * FROM type::thing($tb, $id)", map[string]any{
		"tb": tableSettings,
		"id": settingsRecordID,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("settings read failed, serving cache")
		if cached := r.cache.getSettings(); cached != nil {
			return cached, nil
		}
		return models.DefaultSettings(), nil
	}
	if len(rows) == 0 {
		if cached := r.cache.getSettings(); cached != nil {
			return cached, nil
		}
		return models.DefaultSettings(), nil
	}
	settings := rowToSettings(rows[0])
	r.cache.putSettings(settings)
	return settings, nil
}

func (r *RemoteStore) SaveSettings(ctx context.Context, settings *models.Settings) error {
	if settings == nil {
		return nil
	}
	r.cache.putSettings(settings)
	r.outbox.queueSettings(settings)
	if err := r.client.Upsert(ctx, tableSettings, settingsRecordID, settings); err != nil {
		r.log.Warn().Err(err).Msg("settings save failed, left in outbox")
		return nil
	}
	r.outbox.ackSettings(settings)
	r.Flush(ctx)
	return nil
}

func (r *RemoteStore) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	rows, err := r.client.Query(ctx, "SELECT * FROM type::thing($tb, $id)", map[string]any{
		"tb": tableArtifacts,
		"id": id,
	})
	if err != nil {
		r.log.Warn().Err(err).Str("id", id).Msg("artifact read failed, serving cache")
		return r.cache.getArtifact(id), nil
	}
	if len(rows) == 0 {
		return nil, nil
	}
	a := models.NormalizeArtifact(rows[0])
	if a == nil {
		return nil, nil
	}
	r.cache.putArtifact(a)
	return a, nil
}

func (r *RemoteStore) SaveArtifact(ctx context.Context, artifact *models.Artifact) error {
	a := models.NormalizeArtifact(artifact)
	if a == nil {
		r.log.Warn().Msg("dropping artifact that failed normalization")
		return nil
	}
	r.cache.putArtifact(a)
	r.outbox.queueArtifact(a)
	if err := r.client.Upsert(ctx, tableArtifacts, a.ID, a); err != nil {
		r.log.Warn().Err(err).Str("id", a.ID).Msg("artifact save failed, left in outbox")
		return nil
	}
	r.outbox.ackArtifact(a.ID, a)
	r.Flush(ctx)
	return nil
}

func (r *RemoteStore) DeleteArtifact(ctx context.Context, id string) error {
	r.cache.deleteArtifact(id)
	r.outbox.queueArtifactDelete(id)
	if err := r.client.Delete(ctx, tableArtifacts, id); err != nil {
		r.log.Warn().Err(err).Str("id", id).Msg("artifact delete failed, left in outbox")
		return nil
	}
	r.outbox.ackArtifactDelete(id)
	r.Flush(ctx)
	return nil
}

func (r *RemoteStore) ListArtifacts(ctx context.Context, typ models.ArtifactType, projectID string) ([]*models.Artifact, error) {
	query := "SELECT * FROM type::table($tb)"
	vars := map[string]any{"tb": tableArtifacts}
	conds := ""
	if typ != "" {
		conds = " WHERE type = $type"
		vars["type"] = string(typ)
	}
	if projectID != "" {
		if conds == "" {
			conds = " WHERE projectId = $projectId"
		} else {
			conds += " AND projectId = $projectId"
		}
		vars["projectId"] = projectID
	}

	rows, err := r.client.Query(ctx, query+conds, vars)
	if err != nil {
		r.log.Warn().Err(err).Msg("artifact listing failed, serving cache")
		return filterArtifacts(r.cache.listArtifacts(), typ, projectID), nil
	}

	artifacts := []*models.Artifact{}
	for _, row := range rows {
		if a := models.NormalizeArtifact(row); a != nil {
			artifacts = append(artifacts, a)
		}
	}
	models.SortByUpdated(artifacts)
	if typ == "" && projectID == "" {
		r.refreshArtifactCache(artifacts)
	} else {
		r.cache.putArtifacts(artifacts)
	}
	return artifacts, nil
}

func (r *RemoteStore) ListFavorites(ctx context.Context, projectID string) ([]*models.Artifact, error) {
	query := "SELECT * FROM type::table($tb) WHERE favorite = true"
	vars := map[string]any{"tb": tableArtifacts}
	if projectID != "" {
		query += " AND projectId = $projectId"
		vars["projectId"] = projectID
	}

	rows, err := r.client.Query(ctx, query, vars)
	if err != nil {
		r.log.Warn().Err(err).Msg("favorites listing failed, serving cache")
		favorites := []*models.Artifact{}
		for _, a := range filterArtifacts(r.cache.listArtifacts(), "", projectID) {
			if a.Favorite {
				favorites = append(favorites, a)
			}
		}
		return favorites, nil
	}

	favorites := []*models.Artifact{}
	for _, row := range rows {
		if a := models.NormalizeArtifact(row); a != nil {
			favorites = append(favorites, a)
		}
	}
	models.SortByUpdated(favorites)
	r.cache.putArtifacts(favorites)
	return favorites, nil
}

// ListByTag filters client-side regardless of backend: the record store has
// no case-insensitive array-contains query.
func (r *RemoteStore) ListByTag(ctx context.Context, tag string, projectID string) ([]*models.Artifact, error) {
	all, err := r.ListArtifacts(ctx, "", projectID)
	if err != nil {
		return nil, err
	}
	tagged := []*models.Artifact{}
	for _, a := range all {
		if a.HasTag(tag) {
			tagged = append(tagged, a)
		}
	}
	return tagged, nil
}

func (r *RemoteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	rows, err := r.client.Query(ctx, "SELECT * FROM type::thing($tb, $id)", map[string]any{
		"tb": tableProjects,
		"id": id,
	})
	if err != nil {
		r.log.Warn().Err(err).Str("id", id).Msg("project read failed, serving cache")
		return r.cache.getProject(id), nil
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := models.NormalizeProject(rows[0])
	if p == nil {
		return nil, nil
	}
	r.cache.putProject(p)
	return p, nil
}

func (r *RemoteStore) GetProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := r.client.Query(ctx, "SELECT * FROM type::table($tb)", map[string]any{
		"tb": tableProjects,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("project listing failed, serving cache")
		return r.cache.listProjects(), nil
	}

	projects := []*models.Project{}
	for _, row := range rows {
		if p := models.NormalizeProject(row); p != nil {
			projects = append(projects, p)
		}
	}
	r.refreshProjectCache(projects)
	return projects, nil
}

func (r *RemoteStore) SaveProject(ctx context.Context, project *models.Project) error {
	p := models.NormalizeProject(project)
	if p == nil {
		r.log.Warn().Msg("dropping project that failed normalization")
		return nil
	}
	r.cache.putProject(p)
	r.outbox.queueProject(p)
	if err := r.client.Upsert(ctx, tableProjects, p.ID, p); err != nil {
		r.log.Warn().Err(err).Str("id", p.ID).Msg("project save failed, left in outbox")
		return nil
	}
	r.outbox.ackProject(p.ID, p)
	r.Flush(ctx)
	return nil
}

func (r *RemoteStore) DeleteProject(ctx context.Context, id string) error {
	r.cache.deleteProject(id)
	r.outbox.queueProjectDelete(id)
	if err := r.client.Delete(ctx, tableProjects, id); err != nil {
		r.log.Warn().Err(err).Str("id", id).Msg("project delete failed, left in outbox")
		return nil
	}
	r.outbox.ackProjectDelete(id)
	r.Flush(ctx)
	return nil
}

// ListCalendarEvents merges outbox-pending events over server results, and
// falls back to the cache when the server claims emptiness while the cache
// holds rows: a zero-row response with a populated cache is treated as a
// transient backend hiccup rather than genuine emptiness.
func (r *RemoteStore) ListCalendarEvents(ctx context.Context, projectID string) ([]*models.CalendarEventRecord, error) {
	query := "SELECT * FROM type::table($tb)"
	vars := map[string]any{"tb": tableEvents}
	if projectID != "" {
		query += " WHERE projectId = $projectId"
		vars["projectId"] = projectID
	}

	rows, err := r.client.Query(ctx, query, vars)
	if err != nil {
		r.log.Warn().Err(err).Msg("calendar listing failed, serving cache")
		return r.mergePendingEvents(filterEvents(r.cache.listEvents(), projectID), projectID), nil
	}

	events := []*models.CalendarEventRecord{}
	for _, row := range rows {
		if e := rowToEvent(row); e != nil {
			events = append(events, e)
		}
	}

	if len(rows) == 0 && len(events) == 0 {
		if cached := filterEvents(r.cache.listEvents(), projectID); len(cached) > 0 {
			r.log.Warn().Msg("empty calendar result with populated cache, serving cache")
			return r.mergePendingEvents(cached, projectID), nil
		}
	}

	events = r.mergePendingEvents(events, projectID)
	if projectID == "" {
		r.cache.replaceEvents(events)
	} else {
		r.cache.putEvents(events)
	}
	models.SortEventsByStart(events)
	return events, nil
}

func (r *RemoteStore) SaveCalendarEvent(ctx context.Context, event *models.CalendarEventRecord) error {
	if event == nil || event.ID == "" {
		return nil
	}
	r.cache.putEvent(event)
	r.outbox.queueEvent(event)
	if err := r.client.Upsert(ctx, tableEvents, event.ID, event); err != nil {
		r.log.Warn().Err(err).Str("id", event.ID).Msg("calendar save failed, left in outbox")
		return nil
	}
	r.outbox.ackEvent(event.ID, event)
	r.Flush(ctx)
	return nil
}

func (r *RemoteStore) DeleteCalendarEvent(ctx context.Context, id string) error {
	r.cache.deleteEvent(id)
	r.outbox.queueEventDelete(id)
	if err := r.client.Delete(ctx, tableEvents, id); err != nil {
		r.log.Warn().Err(err).Str("id", id).Msg("calendar delete failed, left in outbox")
		return nil
	}
	r.outbox.ackEventDelete(id)
	r.Flush(ctx)
	return nil
}

// Migrate is a no-op: the backend creates tables on first insert.
func (r *RemoteStore) Migrate(ctx context.Context) error {
	return nil
}

func (r *RemoteStore) Close() error {
	clientErr := r.client.Close()
	if err := r.kv.Close(); err != nil {
		return err
	}
	return clientErr
}

// Flush drains the outbox once, best-effort: each pending mutation is
// retried, successes are removed, failures stay queued for the next pass.
// There is no backoff and no retry limit. Returns the number of mutations
// still pending.
//
// Acks name the exact record the attempt carried: a save that re-queues a
// newer version of the same id while this pass is in flight keeps its entry.
func (r *RemoteStore) Flush(ctx context.Context) int {
	snap := r.outbox.snapshot()

	for id, a := range snap.Artifacts {
		if err := r.client.Upsert(ctx, tableArtifacts, id, a); err == nil {
			r.outbox.ackArtifact(id, a)
		}
	}
	for _, id := range snap.ArtifactDeletes {
		if err := r.client.Delete(ctx, tableArtifacts, id); err == nil {
			r.outbox.ackArtifactDelete(id)
		}
	}
	if snap.Settings != nil {
		if err := r.client.Upsert(ctx, tableSettings, settingsRecordID, snap.Settings); err == nil {
			r.outbox.ackSettings(snap.Settings)
		}
	}
	for id, p := range snap.Projects {
		if err := r.client.Upsert(ctx, tableProjects, id, p); err == nil {
			r.outbox.ackProject(id, p)
		}
	}
	for _, id := range snap.ProjectDeletes {
		if err := r.client.Delete(ctx, tableProjects, id); err == nil {
			r.outbox.ackProjectDelete(id)
		}
	}
	for id, e := range snap.EventUpserts {
		if err := r.client.Upsert(ctx, tableEvents, id, e); err == nil {
			r.outbox.ackEvent(id, e)
		}
	}
	for _, id := range snap.EventDeletes {
		if err := r.client.Delete(ctx, tableEvents, id); err == nil {
			r.outbox.ackEventDelete(id)
		}
	}

	pending := r.outbox.pendingCount()
	if pending > 0 {
		r.log.Info().Int("pending", pending).Msg("outbox not fully drained")
	}
	return pending
}

// PendingMutations reports the current outbox depth.
func (r *RemoteStore) PendingMutations() int {
	return r.outbox.pendingCount()
}

// CleanupLegacyTables deletes every row from the legacy per-kind tables, and
// from the current tables as well when includeCurrentData is set (clearing
// the cache mirror to match). Returns the number of rows removed. Safe to
// call repeatedly: once the tables are empty it is a no-op.
func (r *RemoteStore) CleanupLegacyTables(ctx context.Context, includeCurrentData bool) (int, error) {
	tables := append([]string(nil), legacyTables...)
	if includeCurrentData {
		tables = append(tables, currentTables...)
	}

	removed := 0
	for _, table := range tables {
		vars := map[string]any{"tb": table}
		rows, err := r.client.Query(ctx, "SELECT id FROM type::table($tb)", vars)
		if err != nil {
			r.log.Warn().Err(err).Str("table", table).Msg("cleanup scan failed")
			continue
		}
		if len(rows) == 0 {
			continue
		}
		if _, err := r.client.Query(ctx, "DELETE type::table($tb)", vars); err != nil {
			r.log.Warn().Err(err).Str("table", table).Msg("cleanup delete failed")
			continue
		}
		removed += len(rows)
	}

	if includeCurrentData {
		r.cache.clear()
	}
	return removed, nil
}

func (r *RemoteStore) mergePendingEvents(events []*models.CalendarEventRecord, projectID string) []*models.CalendarEventRecord {
	byID := make(map[string]int, len(events))
	for i, e := range events {
		byID[e.ID] = i
	}
	for _, pending := range r.outbox.pendingEvents() {
		if projectID != "" && pending.ProjectID != projectID {
			continue
		}
		if i, ok := byID[pending.ID]; ok {
			events[i] = pending // outbox wins over stale server state
		} else {
			events = append(events, pending)
		}
	}
	deleted := make(map[string]bool)
	for _, id := range r.outbox.pendingEventDeletes() {
		deleted[id] = true
	}
	if len(deleted) > 0 {
		kept := events[:0]
		for _, e := range events {
			if !deleted[e.ID] {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	models.SortEventsByStart(events)
	return events
}

// refreshArtifactCache replaces the mirror with the server's unfiltered view,
// pruning records deleted from another device, then lays queued outbox
// mutations back on top so pending local writes stay visible offline.
func (r *RemoteStore) refreshArtifactCache(artifacts []*models.Artifact) {
	snap := r.outbox.snapshot()
	byID := make(map[string]*models.Artifact, len(artifacts))
	for _, a := range artifacts {
		byID[a.ID] = a
	}
	for id, a := range snap.Artifacts {
		byID[id] = a
	}
	for _, id := range snap.ArtifactDeletes {
		delete(byID, id)
	}
	merged := make([]*models.Artifact, 0, len(byID))
	for _, a := range byID {
		merged = append(merged, a)
	}
	r.cache.replaceArtifacts(merged)
}

func (r *RemoteStore) refreshProjectCache(projects []*models.Project) {
	snap := r.outbox.snapshot()
	byID := make(map[string]*models.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}
	for id, p := range snap.Projects {
		byID[id] = p
	}
	for _, id := range snap.ProjectDeletes {
		delete(byID, id)
	}
	merged := make([]*models.Project, 0, len(byID))
	for _, p := range byID {
		merged = append(merged, p)
	}
	r.cache.replaceProjects(merged)
}

func filterArtifacts(artifacts []*models.Artifact, typ models.ArtifactType, projectID string) []*models.Artifact {
	out := []*models.Artifact{}
	for _, a := range artifacts {
		if typ != "" && a.Type != typ {
			continue
		}
		if projectID != "" && a.ProjectID != projectID {
			continue
		}
		out = append(out, a)
	}
	models.SortByUpdated(out)
	return out
}

func filterEvents(events []*models.CalendarEventRecord, projectID string) []*models.CalendarEventRecord {
	if projectID == "" {
		return events
	}
	out := []*models.CalendarEventRecord{}
	for _, e := range events {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out
}

// rowToEvent decodes a generic result row into an event record via a CBOR
// round-trip, which honors the same field names the upsert path writes.
func rowToEvent(row map[string]any) *models.CalendarEventRecord {
	data, err := cbor.Marshal(row)
	if err != nil {
		return nil
	}
	var e models.CalendarEventRecord
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil
	}
	if e.ID == "" {
		return nil
	}
	return &e
}

func rowToSettings(row map[string]any) *models.Settings {
	settings := models.DefaultSettings()
	data, err := cbor.Marshal(row)
	if err != nil {
		return settings
	}
	decoded := models.Settings{}
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return settings
	}
	if len(decoded.EnabledTypes) == 0 {
		decoded.EnabledTypes = settings.EnabledTypes
	}
	if decoded.Mode == "" {
		decoded.Mode = models.ModeSingleProject
	}
	return &decoded
}
