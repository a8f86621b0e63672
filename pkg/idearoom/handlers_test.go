package idearoom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiclient "github.com/idearoom/idearoom/pkg/client"
	"github.com/idearoom/idearoom/pkg/models"
)

func newTestApp(t *testing.T, storePath string) *App {
	t.Helper()
	app, err := New(context.Background(), &Config{
		LocalStorePath: storePath,
		ServerPort:     "0",
		AutosaveDelay:  20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func newTestServer(t *testing.T) (*App, *apiclient.Client) {
	t.Helper()
	app := newTestApp(t, filepath.Join(t.TempDir(), "app.db"))
	srv := httptest.NewServer(app.Router())
	t.Cleanup(srv.Close)
	return app, apiclient.NewWithHTTPClient(srv.URL, srv.Client())
}

func TestSeedNoteCreatedOncePerWorkspace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "app.db")

	app := newTestApp(t, path)

	notes, err := app.Store().ListArtifacts(ctx, models.TypeNotes, "")
	require.NoError(t, err)
	require.Len(t, notes, 1)

	settings, err := app.Store().GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.SeedCreated)

	// Deleting the note and rebooting must not bring it back.
	require.NoError(t, app.Store().DeleteArtifact(ctx, notes[0].ID))
	require.NoError(t, app.Close())

	app2 := newTestApp(t, path)
	notes, err = app2.Store().ListArtifacts(ctx, models.TypeNotes, "")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestArtifactAPIRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, c := newTestServer(t)

	saved, err := c.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeKanban})
	require.NoError(t, err)
	assert.Equal(t, "Untitled", saved.Name)
	assert.Equal(t, models.CurrentSchemaVersion, saved.SchemaVersion)

	got, err := c.GetArtifact(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID)
	assert.False(t, got.Favorite)

	require.NoError(t, c.DeleteArtifact(ctx, "x"))
	_, err = c.GetArtifact(ctx, "x")
	assert.Error(t, err)
}

func TestArtifactAPIRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	_, c := newTestServer(t)

	_, err := c.SaveArtifact(ctx, &models.Artifact{ID: "bad", Type: "spreadsheet"})
	assert.Error(t, err)

	_, err = c.ListArtifacts(ctx, "spreadsheet", "")
	assert.Error(t, err)
}

func TestPinnedFirstOrderingIsConsumerSide(t *testing.T) {
	ctx := context.Background()
	_, c := newTestServer(t)

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)

	_, err := c.SaveArtifact(ctx, &models.Artifact{
		ID: "pinned-old", Type: models.TypeCanvas, Pinned: true, CreatedAt: old, UpdatedAt: old,
	})
	require.NoError(t, err)
	_, err = c.SaveArtifact(ctx, &models.Artifact{
		ID: "unpinned-new", Type: models.TypeCanvas, CreatedAt: old, UpdatedAt: recent,
	})
	require.NoError(t, err)

	// The adapter itself orders purely by updatedAt.
	list, err := c.ListArtifacts(ctx, models.TypeCanvas, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "unpinned-new", list[0].ID)

	// Consumers apply pinned-first on top.
	models.SortPinnedFirst(list)
	assert.Equal(t, "pinned-old", list[0].ID)
	assert.Equal(t, "unpinned-new", list[1].ID)
}

func TestFavoritesAndTagsAPI(t *testing.T) {
	ctx := context.Background()
	_, c := newTestServer(t)

	_, err := c.SaveArtifact(ctx, &models.Artifact{
		ID: "f1", Type: models.TypeFlow, Favorite: true, Tags: []string{"Launch"},
	})
	require.NoError(t, err)
	_, err = c.SaveArtifact(ctx, &models.Artifact{ID: "f2", Type: models.TypeFlow})
	require.NoError(t, err)

	favs, err := c.ListFavorites(ctx, "")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "f1", favs[0].ID)

	tagged, err := c.ListByTag(ctx, "launch")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "f1", tagged[0].ID)
}

func TestAutosaveEndpointDebounces(t *testing.T) {
	app := newTestApp(t, filepath.Join(t.TempDir(), "app.db"))

	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	body1 := `{"type":"notes","name":"draft one"}`
	body2 := `{"type":"notes","name":"draft two"}`

	for _, body := range []string{body1, body2} {
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/artifacts/auto/content", strings.NewReader(body))
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		a, _ := app.Store().GetArtifact(context.Background(), "auto")
		return a != nil && a.Name == "draft two"
	}, time.Second, 10*time.Millisecond)
}

func TestReadOnlyAdminEndpoint(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, filepath.Join(t.TempDir(), "app.db"))
	srv := httptest.NewServer(app.Router())
	defer srv.Close()
	c := apiclient.NewWithHTTPClient(srv.URL, srv.Client())

	setReadOnly := func(on string) {
		resp, err := srv.Client().Post(srv.URL+"/api/admin/read-only", "application/json",
			strings.NewReader(`{"readOnly":`+on+`}`))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	setReadOnly("true")
	_, err := c.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes})
	assert.Error(t, err)

	setReadOnly("false")
	_, err = c.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes})
	assert.NoError(t, err)
}

func TestProjectsAndEventsAPI(t *testing.T) {
	ctx := context.Background()
	_, c := newTestServer(t)

	p, err := c.SaveProject(ctx, &models.Project{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Untitled Project", p.Name)

	projects, err := c.GetProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, c.SaveCalendarEvent(ctx, &models.CalendarEventRecord{
		ID: "e1", Title: "kickoff", Start: start, ProjectID: "p1",
	}))

	events, err := c.ListCalendarEvents(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "kickoff", events[0].Title)

	require.NoError(t, c.DeleteCalendarEvent(ctx, "e1"))
	events, err = c.ListCalendarEvents(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, c.DeleteProject(ctx, "p1"))
	projects, err = c.GetProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestFlushRequiresRemoteBackend(t *testing.T) {
	app, _ := newTestServer(t)

	_, err := app.FlushOutbox(context.Background())
	assert.Error(t, err)

	_, err = app.Cleanup(context.Background(), false)
	assert.Error(t, err)
}
