package idearoom

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Run starts the HTTP server exposing the storage contract as a REST API.
//
// Routes:
//
//	GET  /api/health                      - Service health and active backend
//
//	GET  /api/settings                    - Workspace settings (defaults when unset)
//	PUT  /api/settings                    - Replace workspace settings
//
//	GET    /api/artifacts                 - List artifacts (?type=, ?projectId=)
//	POST   /api/artifacts                 - Save an artifact
//	GET    /api/artifacts/{id}            - Get one artifact
//	PUT    /api/artifacts/{id}            - Save an artifact under its id
//	PUT    /api/artifacts/{id}/content    - Debounced autosave for editors
//	DELETE /api/artifacts/{id}            - Delete an artifact
//	GET    /api/favorites                 - List favorite artifacts (?projectId=)
//	GET    /api/tags/{tag}/artifacts      - List artifacts carrying a tag
//
//	GET    /api/projects                  - List projects
//	POST   /api/projects                  - Save a project
//	GET    /api/projects/{id}             - Get one project
//	DELETE /api/projects/{id}             - Delete a project
//
//	GET    /api/events                    - List calendar events (?projectId=)
//	POST   /api/events                    - Save a calendar event
//	DELETE /api/events/{id}               - Delete a calendar event
//
//	POST   /api/admin/read-only           - Toggle runtime read-only mode
//	POST   /api/admin/remote-config       - Save remote backend config for next boot
//	POST   /api/admin/flush               - Drain the remote outbox once
//
// The method blocks until the context is cancelled or a fatal server error
// occurs. On shutdown, pending debounced saves are flushed and active
// requests get up to five seconds to complete.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	router := a.Router()

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info().Str("addr", addr).Str("backend", a.backend).Msg("starting server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		a.saver.Flush(context.Background())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Router builds the API router. Exposed separately so tests can drive the
// handlers through httptest without binding a port.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/settings", a.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", a.handleSaveSettings).Methods("PUT")

	api.HandleFunc("/artifacts", a.handleListArtifacts).Methods("GET")
	api.HandleFunc("/artifacts", a.handleSaveArtifact).Methods("POST")
	api.HandleFunc("/artifacts/{id}", a.handleGetArtifact).Methods("GET")
	api.HandleFunc("/artifacts/{id}", a.handleSaveArtifact).Methods("PUT")
	api.HandleFunc("/artifacts/{id}/content", a.handleAutosaveArtifact).Methods("PUT")
	api.HandleFunc("/artifacts/{id}", a.handleDeleteArtifact).Methods("DELETE")
	api.HandleFunc("/favorites", a.handleListFavorites).Methods("GET")
	api.HandleFunc("/tags/{tag}/artifacts", a.handleListByTag).Methods("GET")

	api.HandleFunc("/projects", a.handleListProjects).Methods("GET")
	api.HandleFunc("/projects", a.handleSaveProject).Methods("POST")
	api.HandleFunc("/projects/{id}", a.handleGetProject).Methods("GET")
	api.HandleFunc("/projects/{id}", a.handleDeleteProject).Methods("DELETE")

	api.HandleFunc("/events", a.handleListEvents).Methods("GET")
	api.HandleFunc("/events", a.handleSaveEvent).Methods("POST")
	api.HandleFunc("/events/{id}", a.handleDeleteEvent).Methods("DELETE")

	api.HandleFunc("/admin/read-only", a.handleSetReadOnly).Methods("POST")
	api.HandleFunc("/admin/remote-config", a.handleSaveRemoteConfig).Methods("POST")
	api.HandleFunc("/admin/flush", a.handleFlush).Methods("POST")

	// Health check outside the /api prefix for load balancers.
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	return router
}
