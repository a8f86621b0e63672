package idearoom

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/idearoom/idearoom/pkg/models"
)

// ensureSeedNote creates the one-time welcome note. It runs at boot and is
// the only artifact the system ever creates on its own: a workspace that has
// notes, or that was already seeded, is left alone. The seeded flag is
// recorded in settings so a user who deletes the note does not get it back.
func (a *App) ensureSeedNote(ctx context.Context) error {
	if a.readOnly {
		return nil
	}

	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings.SeedCreated {
		return nil
	}

	notes, err := a.store.ListArtifacts(ctx, models.TypeNotes, "")
	if err != nil {
		return err
	}

	if len(notes) == 0 {
		now := time.Now().UTC()
		seed := &models.Artifact{
			ID:        uuid.NewString(),
			Type:      models.TypeNotes,
			Name:      "Welcome to your idea room",
			CreatedAt: now,
			UpdatedAt: now,
			Data: models.JSONMap{
				"content": "Capture a thought, sketch a board, or plan your week. Everything here is yours to rearrange.",
			},
		}
		if err := a.store.SaveArtifact(ctx, seed); err != nil {
			return err
		}
		a.log.Info().Str("id", seed.ID).Msg("created seed note")
	}

	settings.SeedCreated = true
	return a.store.SaveSettings(ctx, settings)
}
