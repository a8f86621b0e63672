package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idearoom/idearoom/pkg/models"
	"github.com/idearoom/idearoom/pkg/store/kv"
)

// fakeClient is a scriptable in-memory backend. failWrites and failQuery
// simulate connectivity loss on the respective call classes.
type fakeClient struct {
	mu         sync.Mutex
	tables     map[string]map[string]map[string]any
	failWrites bool
	failQuery  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{tables: make(map[string]map[string]map[string]any)}
}

func (f *fakeClient) table(name string) map[string]map[string]any {
	if f.tables[name] == nil {
		f.tables[name] = make(map[string]map[string]any)
	}
	return f.tables[name]
}

func (f *fakeClient) Query(ctx context.Context, query string, vars map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failQuery {
		return nil, errors.New("backend unavailable")
	}

	tb, _ := vars["tb"].(string)
	if strings.HasPrefix(query, "DELETE") {
		f.tables[tb] = nil
		return nil, nil
	}

	if strings.Contains(query, "type::thing") {
		id, _ := vars["id"].(string)
		if row, ok := f.table(tb)[id]; ok {
			return []map[string]any{row}, nil
		}
		return nil, nil
	}

	var rows []map[string]any
	for _, row := range f.table(tb) {
		if typ, ok := vars["type"].(string); ok && row["type"] != typ {
			continue
		}
		if pid, ok := vars["projectId"].(string); ok && row["projectId"] != pid {
			continue
		}
		if strings.Contains(query, "favorite = true") && row["favorite"] != true {
			continue
		}
		if strings.HasPrefix(query, "SELECT id") {
			rows = append(rows, map[string]any{"id": row["id"]})
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (f *fakeClient) Upsert(ctx context.Context, table, id string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("backend unavailable")
	}
	row := toRow(data)
	row["id"] = id
	f.table(table)[id] = row
	return nil
}

func (f *fakeClient) Delete(ctx context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("backend unavailable")
	}
	delete(f.table(table), id)
	return nil
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) writesFailing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWrites
}

func (f *fakeClient) setFail(writes, queries bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = writes
	f.failQuery = queries
}

func (f *fakeClient) clearTable(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = nil
}

func (f *fakeClient) rowCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[name])
}

func toRow(data any) map[string]any {
	b, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("fake client: %v", err))
	}
	var row map[string]any
	if err := json.Unmarshal(b, &row); err != nil {
		panic(fmt.Sprintf("fake client: %v", err))
	}
	return row
}

func newTestRemote(t *testing.T) (*RemoteStore, *fakeClient) {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	client := newFakeClient()
	return NewRemoteStore(context.Background(), client, db, zerolog.Nop()), client
}

func TestSaveAndGetArtifact(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes, Name: ""}))
	assert.Equal(t, 1, client.rowCount(tableArtifacts))
	assert.Zero(t, r.PendingMutations())

	got, err := r.GetArtifact(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Untitled", got.Name)
	assert.False(t, got.Favorite)
	assert.Equal(t, models.CurrentSchemaVersion, got.SchemaVersion)
}

func TestSaveFailureQueuesAndServesFromCache(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	client.setFail(true, true)

	// The save never surfaces the connectivity error.
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes}))
	assert.Equal(t, 1, r.PendingMutations())
	assert.Zero(t, client.rowCount(tableArtifacts))

	// Listing degrades to the cache mirror, which already holds the write.
	list, err := r.ListArtifacts(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "x", list[0].ID)

	// Once the backend recovers, a flush drains the outbox.
	client.setFail(false, false)
	assert.Zero(t, r.Flush(ctx))
	assert.Equal(t, 1, client.rowCount(tableArtifacts))
	assert.Zero(t, r.PendingMutations())
}

func TestDeleteFailureQueues(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes}))

	client.setFail(true, false)
	require.NoError(t, r.DeleteArtifact(ctx, "x"))
	assert.Equal(t, 1, r.PendingMutations())
	// Cache already forgot the artifact.
	assert.Nil(t, r.cache.getArtifact("x"))

	client.setFail(false, false)
	assert.Zero(t, r.Flush(ctx))
	assert.Zero(t, client.rowCount(tableArtifacts))
}

func TestOutboxSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "remote.db")

	db, err := kv.Open(path)
	require.NoError(t, err)

	client := newFakeClient()
	client.setFail(true, true)
	r := NewRemoteStore(ctx, client, db, zerolog.Nop())
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeFlow}))
	assert.Equal(t, 1, r.PendingMutations())
	require.NoError(t, db.Close())

	// A new adapter over the same local store flushes on construction.
	db2, err := kv.Open(path)
	require.NoError(t, err)
	defer db2.Close()

	healthy := newFakeClient()
	r2 := NewRemoteStore(ctx, healthy, db2, zerolog.Nop())
	assert.Zero(t, r2.PendingMutations())
	assert.Equal(t, 1, healthy.rowCount(tableArtifacts))
}

func TestListArtifactsFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRemote(t)

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(time.Hour)

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "a", Type: models.TypeNotes, CreatedAt: old, UpdatedAt: old}))
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "b", Type: models.TypeNotes, CreatedAt: old, UpdatedAt: newer}))
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "c", Type: models.TypeKanban, CreatedAt: old, UpdatedAt: newer}))

	notes, err := r.ListArtifacts(ctx, models.TypeNotes, "")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "b", notes[0].ID)
	assert.Equal(t, "a", notes[1].ID)
}

func TestListFavoritesDegradesToCache(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "fav", Type: models.TypeNotes, Favorite: true}))
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "plain", Type: models.TypeNotes}))

	client.setFail(false, true)
	favs, err := r.ListFavorites(ctx, "")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "fav", favs[0].ID)
}

func TestListByTagClientSideFilter(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRemote(t)

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "t1", Type: models.TypeNotes, Tags: []string{"Roadmap"}}))
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "t2", Type: models.TypeNotes}))

	tagged, err := r.ListByTag(ctx, "roadmap", "")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "t1", tagged[0].ID)
}

func TestCalendarEmptyResultFailSafe(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, r.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e1", Title: "standup", Start: start}))
	require.NoError(t, r.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e2", Title: "retro", Start: start.Add(time.Hour)}))

	// The backend silently loses its rows but answers queries.
	client.clearTable(tableEvents)

	events, err := r.ListCalendarEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestCalendarOutboxMergesOverServer(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, r.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e1", Title: "synced", Start: start}))

	client.setFail(true, false)
	require.NoError(t, r.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e2", Title: "pending", Start: start.Add(time.Hour)}))
	// A stale version of e1 was already synced; the outbox copy must win.
	require.NoError(t, r.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e1", Title: "renamed", Start: start}))

	events, err := r.ListCalendarEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, events, 2)

	byID := map[string]*models.CalendarEventRecord{}
	for _, e := range events {
		byID[e.ID] = e
	}
	assert.Equal(t, "renamed", byID["e1"].Title)
	assert.Equal(t, "pending", byID["e2"].Title)
}

func TestCalendarDeleteFailureHidesEvent(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, r.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e1", Start: start}))

	client.setFail(true, false)
	require.NoError(t, r.DeleteCalendarEvent(ctx, "e1"))

	// Still on the server, but the pending delete filters it out.
	events, err := r.ListCalendarEvents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSettingsRoundTripAndFallback(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	settings, err := r.GetSettings(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, models.AllArtifactTypes, settings.EnabledTypes)

	settings.SeedCreated = true
	settings.Mode = models.ModeMultiProject
	require.NoError(t, r.SaveSettings(ctx, settings))

	client.setFail(false, true)
	cached, err := r.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, cached.SeedCreated)
	assert.Equal(t, models.ModeMultiProject, cached.Mode)
}

func TestProjectsDegradeToCache(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	require.NoError(t, r.SaveProject(ctx, &models.Project{ID: "p1", Name: "Launch"}))

	client.setFail(false, true)
	projects, err := r.GetProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Launch", projects[0].Name)

	p, err := r.GetProject(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Launch", p.Name)
}

func TestCleanupLegacyTables(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	client.table("notes")["n1"] = map[string]any{"id": "n1"}
	client.table("notes")["n2"] = map[string]any{"id": "n2"}
	client.table("whiteboards")["w1"] = map[string]any{"id": "w1"}

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "cur", Type: models.TypeNotes}))

	removed, err := r.CleanupLegacyTables(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Zero(t, client.rowCount("notes"))
	// Current data untouched.
	assert.Equal(t, 1, client.rowCount(tableArtifacts))

	// Idempotent once empty.
	removed, err = r.CleanupLegacyTables(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCleanupIncludingCurrentData(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "cur", Type: models.TypeNotes}))

	removed, err := r.CleanupLegacyTables(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, client.rowCount(tableArtifacts))
	assert.Nil(t, r.cache.getArtifact("cur"))
}

// gatedClient parks the first non-failing Upsert on a gate so a test can
// interleave other mutations while that attempt is in flight.
type gatedClient struct {
	*fakeClient
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedClient) Upsert(ctx context.Context, table, id string, data any) error {
	if !g.writesFailing() {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.fakeClient.Upsert(ctx, table, id, data)
}

func TestFlushKeepsMutationRequeuedMidFlight(t *testing.T) {
	ctx := context.Background()
	db, err := kv.Open(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	client := &gatedClient{
		fakeClient: newFakeClient(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	r := NewRemoteStore(ctx, client, db, zerolog.Nop())

	// Queue v1 while the backend is down.
	client.setFail(true, false)
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes, Name: "v1"}))
	require.Equal(t, 1, r.PendingMutations())

	// A flush picks up v1 and parks inside its upsert.
	client.setFail(false, false)
	flushed := make(chan int, 1)
	go func() { flushed <- r.Flush(ctx) }()
	<-client.entered

	// Meanwhile a newer save of the same id fails and re-queues v2.
	client.setFail(true, false)
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes, Name: "v2"}))

	// The parked upsert completes with v1; its ack must not remove v2.
	client.setFail(false, false)
	close(client.release)
	assert.Equal(t, 1, <-flushed)
	require.Equal(t, 1, r.PendingMutations())

	// The next flush delivers v2.
	assert.Zero(t, r.Flush(ctx))
	got, err := r.GetArtifact(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.Name)
}

func TestListingPrunesRemotelyDeletedFromCache(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "gone", Type: models.TypeNotes}))
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "kept", Type: models.TypeNotes}))

	// Another device removes "gone" from the backend directly.
	require.NoError(t, client.Delete(ctx, tableArtifacts, "gone"))

	// A successful unfiltered listing replaces the mirror.
	list, err := r.ListArtifacts(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, list, 1)

	// The failure path no longer resurrects the deleted record.
	client.setFail(false, true)
	cached, err := r.ListArtifacts(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "kept", cached[0].ID)
}

func TestCacheReplaceKeepsPendingWrites(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	client.setFail(true, false)
	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "pending", Type: models.TypeNotes}))

	// The server knows nothing about the queued write; refreshing the mirror
	// from its unfiltered view must not forget it.
	list, err := r.ListArtifacts(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, list) // server view stays authoritative for callers

	client.setFail(false, true)
	cached, err := r.ListArtifacts(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "pending", cached[0].ID)
}

func TestEventListingPrunesRemotelyDeletedFromCache(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, r.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e1", Start: start}))
	require.NoError(t, r.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e2", Start: start.Add(time.Hour)}))

	require.NoError(t, client.Delete(ctx, tableEvents, "e1"))

	events, err := r.ListCalendarEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, events, 1)

	client.setFail(false, true)
	cached, err := r.ListCalendarEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "e2", cached[0].ID)
}

func TestInvalidArtifactNeverLeavesProcess(t *testing.T) {
	ctx := context.Background()
	r, client := newTestRemote(t)

	require.NoError(t, r.SaveArtifact(ctx, &models.Artifact{ID: "bad", Type: "spreadsheet"}))
	assert.Zero(t, client.rowCount(tableArtifacts))
	assert.Zero(t, r.PendingMutations())
}
