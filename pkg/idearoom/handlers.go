package idearoom

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/idearoom/idearoom/pkg/models"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"backend":  a.backend,
		"readOnly": a.IsReadOnly(),
	})
}

func (a *App) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.store.GetSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (a *App) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.store.SaveSettings(r.Context(), &settings); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, &settings)
}

func (a *App) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	artifact, err := a.store.GetArtifact(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load artifact")
		return
	}
	if artifact == nil {
		respondError(w, http.StatusNotFound, "artifact not found")
		return
	}
	respondJSON(w, http.StatusOK, artifact)
}

// handleSaveArtifact serves both POST /artifacts and PUT /artifacts/{id}.
// The path id, when present, overrides the body id.
func (a *App) handleSaveArtifact(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if id, ok := mux.Vars(r)["id"]; ok && id != "" {
		raw["id"] = id
	}

	artifact := models.NormalizeArtifact(raw)
	if artifact == nil {
		respondError(w, http.StatusBadRequest, "artifact rejected: missing id or unknown type")
		return
	}

	if err := a.store.SaveArtifact(r.Context(), artifact); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, artifact)
}

// handleAutosaveArtifact is the editors' endpoint: rapid successive saves of
// the same artifact collapse into one write after the quiet period.
func (a *App) handleAutosaveArtifact(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	raw["id"] = mux.Vars(r)["id"]

	artifact := models.NormalizeArtifact(raw)
	if artifact == nil {
		respondError(w, http.StatusBadRequest, "artifact rejected: missing id or unknown type")
		return
	}

	a.saver.Save(artifact)
	respondJSON(w, http.StatusAccepted, artifact)
}

func (a *App) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.store.DeleteArtifact(r.Context(), id); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	typ := models.ArtifactType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		respondError(w, http.StatusBadRequest, "unknown artifact type")
		return
	}
	artifacts, err := a.store.ListArtifacts(r.Context(), typ, r.URL.Query().Get("projectId"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	respondJSON(w, http.StatusOK, artifacts)
}

func (a *App) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	artifacts, err := a.store.ListFavorites(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}
	respondJSON(w, http.StatusOK, artifacts)
}

func (a *App) handleListByTag(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]
	artifacts, err := a.store.ListByTag(r.Context(), tag, r.URL.Query().Get("projectId"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	respondJSON(w, http.StatusOK, artifacts)
}

func (a *App) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	project, err := a.store.GetProject(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load project")
		return
	}
	if project == nil {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func (a *App) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.store.GetProjects(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (a *App) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project := models.NormalizeProject(raw)
	if project == nil {
		respondError(w, http.StatusBadRequest, "project rejected: missing id")
		return
	}

	if err := a.store.SaveProject(r.Context(), project); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func (a *App) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.store.DeleteProject(r.Context(), id); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.store.ListCalendarEvents(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (a *App) handleSaveEvent(w http.ResponseWriter, r *http.Request) {
	var event models.CalendarEventRecord
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if event.ID == "" {
		respondError(w, http.StatusBadRequest, "event rejected: missing id")
		return
	}
	if err := a.store.SaveCalendarEvent(r.Context(), &event); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, &event)
}

func (a *App) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.store.DeleteCalendarEvent(r.Context(), id); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReadOnly bool `json:"readOnly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.SetReadOnly(req.ReadOnly)
	respondJSON(w, http.StatusOK, map[string]bool{"readOnly": req.ReadOnly})
}

func (a *App) handleSaveRemoteConfig(w http.ResponseWriter, r *http.Request) {
	var rc RemoteConfig
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rc.URL == "" {
		respondError(w, http.StatusBadRequest, "remote url required")
		return
	}
	if err := a.SaveRemoteConfig(&rc); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save configuration")
		return
	}
	// Takes effect on next boot; the running adapter is never swapped.
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (a *App) handleFlush(w http.ResponseWriter, r *http.Request) {
	pending, err := a.FlushOutbox(r.Context())
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"pending": pending})
}
