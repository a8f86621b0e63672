// Package models defines the persisted record types shared by every storage
// adapter, together with the normalizer that validates and repairs raw
// records before any adapter is allowed to trust them.
package models

import (
	"strings"
	"time"
)

// ArtifactType identifies which editor owns an artifact's payload.
type ArtifactType string

const (
	TypeNotes      ArtifactType = "notes"
	TypeWhiteboard ArtifactType = "whiteboard"
	TypeFlow       ArtifactType = "flow"
	TypeKanban     ArtifactType = "kanban"
	TypeCanvas     ArtifactType = "canvas"
	TypeCalendar   ArtifactType = "calendar"
)

// AllArtifactTypes lists the closed enumeration in display order.
var AllArtifactTypes = []ArtifactType{
	TypeNotes,
	TypeWhiteboard,
	TypeFlow,
	TypeKanban,
	TypeCanvas,
	TypeCalendar,
}

// Valid reports whether t is a member of the closed enumeration.
func (t ArtifactType) Valid() bool {
	switch t {
	case TypeNotes, TypeWhiteboard, TypeFlow, TypeKanban, TypeCanvas, TypeCalendar:
		return true
	}
	return false
}

// CurrentSchemaVersion is the schema version stamped onto normalized records.
// Records claiming a higher version are clamped down to it.
const CurrentSchemaVersion = 1

// JSONMap holds an opaque JSON payload. The storage layer never inspects it
// beyond serializability; only the owning editor interprets its shape.
type JSONMap map[string]any

// Artifact is a unit of user content of one supported kind.
type Artifact struct {
	ID            string       `json:"id"`
	Type          ArtifactType `json:"type"`
	Name          string       `json:"name"`
	Data          JSONMap      `json:"data,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Favorite      bool         `json:"favorite"`
	Pinned        bool         `json:"pinned"`
	SchemaVersion int          `json:"schemaVersion"`
	Tags          []string     `json:"tags,omitempty"`
	ProjectID     string       `json:"projectId,omitempty"`
}

// HasTag matches case-insensitively; tags are stored as given.
func (a *Artifact) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Project is a named workspace grouping artifacts. Slug fields are consumed
// only by routing layers and pass through storage untouched.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Slug        string    `json:"slug,omitempty"`
	SlugAliases []string  `json:"slugAliases,omitempty"`
	Logo        string    `json:"logo,omitempty"`
}

// CalendarEventRecord is a scheduled event, optionally linked to the artifact
// it was derived from. Its lifecycle is fully owned by the caller; storage
// persists it as-is.
type CalendarEventRecord struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end,omitempty"`
	AllDay     bool      `json:"allDay"`
	Color      string    `json:"color,omitempty"`
	SourceType string    `json:"sourceType,omitempty"`
	SourceID   string    `json:"sourceId,omitempty"`
	ProjectID  string    `json:"projectId,omitempty"`
	Data       JSONMap   `json:"data,omitempty"`
}

// WorkspaceMode selects between a single implicit project and explicit
// multi-project grouping.
type WorkspaceMode string

const (
	ModeSingleProject WorkspaceMode = "single"
	ModeMultiProject  WorkspaceMode = "multi"
)

// Settings is the singleton workspace configuration record.
type Settings struct {
	EnabledTypes []ArtifactType `json:"enabledTypes"`
	SeedCreated  bool           `json:"seedCreated"`
	Mode         WorkspaceMode  `json:"mode"`
}

// DefaultSettings returns the settings used when none have been saved yet:
// every artifact kind enabled, seed note not yet created, single-project mode.
func DefaultSettings() *Settings {
	enabled := make([]ArtifactType, len(AllArtifactTypes))
	copy(enabled, AllArtifactTypes)
	return &Settings{
		EnabledTypes: enabled,
		SeedCreated:  false,
		Mode:         ModeSingleProject,
	}
}
