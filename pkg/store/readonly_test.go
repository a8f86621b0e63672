package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idearoom/idearoom/pkg/models"
)

func TestReadOnlyStoreBlocksWrites(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()

	readOnly := true
	s := NewReadOnlyStore(mem, func() bool { return readOnly })

	assert.Error(t, s.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes}))
	assert.Error(t, s.DeleteArtifact(ctx, "x"))
	assert.Error(t, s.SaveSettings(ctx, models.DefaultSettings()))
	assert.Error(t, s.SaveProject(ctx, &models.Project{ID: "p"}))
	assert.Error(t, s.DeleteProject(ctx, "p"))
	assert.Error(t, s.SaveCalendarEvent(ctx, &models.CalendarEventRecord{ID: "e"}))
	assert.Error(t, s.DeleteCalendarEvent(ctx, "e"))
	assert.Error(t, s.Migrate(ctx))

	// Reads still pass through.
	_, err := s.GetArtifact(ctx, "x")
	assert.NoError(t, err)
	_, err = s.ListArtifacts(ctx, "", "")
	assert.NoError(t, err)
	_, err = s.GetSettings(ctx)
	assert.NoError(t, err)
}

func TestReadOnlyStoreTogglesAtRuntime(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()

	readOnly := false
	s := NewReadOnlyStore(mem, func() bool { return readOnly })

	require.NoError(t, s.SaveArtifact(ctx, &models.Artifact{ID: "x", Type: models.TypeNotes}))

	readOnly = true
	assert.Error(t, s.SaveArtifact(ctx, &models.Artifact{ID: "y", Type: models.TypeNotes}))

	readOnly = false
	assert.NoError(t, s.SaveArtifact(ctx, &models.Artifact{ID: "y", Type: models.TypeNotes}))
}

func TestReadOnlyStoreUnwrap(t *testing.T) {
	mem := newMemStore()
	s := NewReadOnlyStore(mem, func() bool { return false })

	ro, ok := s.(*ReadOnlyStore)
	require.True(t, ok)
	assert.Same(t, Store(mem), ro.Unwrap())
}
