// Package idearoom is a storage and synchronization layer for an "idea room"
// workspace: a collection of heterogeneous user artifacts (notes, whiteboards,
// flowcharts, kanban boards, canvases, calendars) grouped into projects.
//
// # Features
//
//   - Dual Backend Support: an embedded local store (SQLite through GORM) and
//     a hosted record store (SurrealDB over websocket), both behind one
//     storage contract
//   - Offline Resilience: the remote adapter mirrors data into a local cache
//     for reads and queues failed mutations in a durable outbox, so no
//     connectivity problem ever surfaces to a caller
//   - Schema Normalization: every record is validated and repaired on its way
//     in and out of storage; corrupt records are dropped whole, partial
//     records are filled with documented defaults
//   - Debounced Autosave: rapid successive saves of the same artifact collapse
//     into one persisted write after a quiet period
//   - RESTful API: CRUD operations for artifacts, projects, calendar events,
//     and workspace settings, plus admin endpoints for read-only mode, backend
//     configuration, and outbox maintenance
//
// # Architecture Overview
//
//   - Storage Contract: [github.com/idearoom/idearoom/pkg/store.Store] is the
//     uniform persistence interface; the adapter is chosen once at boot and
//     injected into everything downstream
//   - Local Adapter: [github.com/idearoom/idearoom/pkg/store/local] persists
//     JSON records and index entries in the embedded key-value store
//   - Remote Adapter: [github.com/idearoom/idearoom/pkg/store/remote] layers a
//     cache mirror and a durable outbox over the hosted backend, with an
//     opportunistic flush on construction and after each successful mutation
//   - Command Pattern: [github.com/idearoom/idearoom/pkg/idearoom.Command]
//     organizes application operations (run, flush, cleanup) with their
//     specific configurations
//
// # Data Model
//
// Artifacts are flat records with an opaque editor-owned payload; projects
// group them; calendar events are caller-owned derived records. For the types
// and the normalization rules, see [github.com/idearoom/idearoom/pkg/models].
package idearoom
