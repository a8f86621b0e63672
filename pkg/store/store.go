// Package store defines the storage adapter contract shared by the local and
// remote persistence implementations, plus the consumer-side helpers that sit
// directly on top of it (read-only wrapping, debounced saves).
package store

import (
	"context"

	"github.com/idearoom/idearoom/pkg/models"
)

// Store is the uniform persistence contract. Both adapters implement it
// identically so callers never know which backend is active.
//
// Conventions:
//   - Get operations return (nil, nil) when the record does not exist.
//   - List operations return empty slices, never nil errors for absence, and
//     order artifacts by updatedAt descending. Pinned-first ordering is
//     display policy and lives in consumers, not here.
//   - Save operations normalize the record before persisting it.
//   - No implementation returns an error across this boundary for a backend
//     connectivity problem; such failures degrade internally (logged, served
//     from cache, or queued for retry). Errors here mean a malformed call or
//     a rejected write (e.g. read-only mode).
type Store interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error

	GetArtifact(ctx context.Context, id string) (*models.Artifact, error)
	SaveArtifact(ctx context.Context, artifact *models.Artifact) error
	DeleteArtifact(ctx context.Context, id string) error
	// ListArtifacts filters by type and owning project; the zero value of
	// either filter matches everything.
	ListArtifacts(ctx context.Context, typ models.ArtifactType, projectID string) ([]*models.Artifact, error)
	ListFavorites(ctx context.Context, projectID string) ([]*models.Artifact, error)
	ListByTag(ctx context.Context, tag string, projectID string) ([]*models.Artifact, error)

	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjects(ctx context.Context) ([]*models.Project, error)
	SaveProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id string) error

	ListCalendarEvents(ctx context.Context, projectID string) ([]*models.CalendarEventRecord, error)
	SaveCalendarEvent(ctx context.Context, event *models.CalendarEventRecord) error
	DeleteCalendarEvent(ctx context.Context, id string) error

	// Migrate prepares backend schema or storage layout. Idempotent.
	Migrate(ctx context.Context) error
	Close() error
}
