package store

import (
	"context"
	"fmt"

	"github.com/idearoom/idearoom/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects write operations while the
// isReadOnly predicate holds. The predicate is evaluated per call so the
// application can toggle read-only mode at runtime (maintenance windows,
// backend cleanup) without recreating the store.
//
// Read operations always pass through.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a read-only-aware wrapper around store.
func NewReadOnlyStore(store Store, isReadOnly func() bool) Store {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store.
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return fmt.Errorf("operation denied: application is in read-only mode")
	}
	return nil
}

func (r *ReadOnlyStore) SaveSettings(ctx context.Context, settings *models.Settings) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.SaveSettings(ctx, settings)
}

func (r *ReadOnlyStore) SaveArtifact(ctx context.Context, artifact *models.Artifact) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.SaveArtifact(ctx, artifact)
}

func (r *ReadOnlyStore) DeleteArtifact(ctx context.Context, id string) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteArtifact(ctx, id)
}

func (r *ReadOnlyStore) SaveProject(ctx context.Context, project *models.Project) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.SaveProject(ctx, project)
}

func (r *ReadOnlyStore) DeleteProject(ctx context.Context, id string) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteProject(ctx, id)
}

func (r *ReadOnlyStore) SaveCalendarEvent(ctx context.Context, event *models.CalendarEventRecord) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.SaveCalendarEvent(ctx, event)
}

func (r *ReadOnlyStore) DeleteCalendarEvent(ctx context.Context, id string) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteCalendarEvent(ctx, id)
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Migrate(ctx)
}
