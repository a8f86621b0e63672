// Package idearoom wires the storage adapters into a runnable application:
// configuration, backend selection, the HTTP API, and the maintenance
// commands (outbox flush, legacy-table cleanup).
package idearoom

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/idearoom/idearoom/pkg/store"
	"github.com/idearoom/idearoom/pkg/store/kv"
	"github.com/idearoom/idearoom/pkg/store/local"
	"github.com/idearoom/idearoom/pkg/store/remote"
)

// remoteConfigKey stores a user-saved remote backend configuration in the
// local key-value store. It is consulted at boot when no remote backend is
// configured through flags or environment.
const remoteConfigKey = "idearoom:remote-config"

// Config holds application configuration.
type Config struct {
	// LocalStorePath is the SQLite file backing the local adapter and the
	// remote adapter's cache/outbox persistence.
	LocalStorePath string

	// Remote backend configuration. A non-empty RemoteURL selects the remote
	// adapter; otherwise a previously user-saved configuration is consulted,
	// and failing that the local adapter is used.
	RemoteURL  string
	RemoteNS   string
	RemoteDB   string
	RemoteUser string
	RemotePass string

	ServerPort string
	ReadOnly   bool

	// AutosaveDelay is the quiet period for debounced artifact saves.
	AutosaveDelay time.Duration
}

// RemoteConfig is the user-saved remote backend configuration persisted in
// the local store.
type RemoteConfig struct {
	URL       string `json:"url"`
	Namespace string `json:"namespace"`
	Database  string `json:"database"`
	User      string `json:"user"`
	Pass      string `json:"pass"`
}

// App holds the application state. The active storage adapter is chosen once
// here and injected into everything downstream; there is no process-global
// accessor to mutate.
type App struct {
	store    store.Store
	saver    *store.DebouncedSaver
	kvStore  *kv.KV
	config   *Config
	log      zerolog.Logger
	backend  string // "local" or "remote"
	readOnly bool
}

// New creates the application: it opens the local key-value store, selects
// and constructs the storage adapter, runs the adapter's migration, wraps it
// with read-only protection, and creates the one-time seed note if the
// workspace is empty.
//
// Backend selection precedence:
//  1. an explicitly configured remote URL (flag or environment),
//  2. a remote configuration previously saved by the user,
//  3. the local adapter.
func New(ctx context.Context, config *Config) (*App, error) {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	kvStore, err := kv.Open(config.LocalStorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	app := &App{
		kvStore:  kvStore,
		config:   config,
		log:      log,
		readOnly: config.ReadOnly,
	}

	url, ns, db, user, pass := config.RemoteURL, config.RemoteNS, config.RemoteDB, config.RemoteUser, config.RemotePass
	if url == "" {
		if saved := loadRemoteConfig(kvStore, log); saved != nil {
			url, ns, db, user, pass = saved.URL, saved.Namespace, saved.Database, saved.User, saved.Pass
		}
	}

	var appStore store.Store
	if url != "" {
		client, err := remote.Connect(ctx, url, ns, db, user, pass)
		if err != nil {
			_ = kvStore.Close()
			return nil, fmt.Errorf("failed to connect to remote backend: %w", err)
		}
		appStore = remote.NewRemoteStore(ctx, client, kvStore, log)
		app.backend = "remote"
	} else {
		appStore = local.NewLocalStore(kvStore, log)
		app.backend = "local"
	}
	log.Info().Str("backend", app.backend).Msg("storage adapter selected")

	// Runs on the unwrapped adapter so a read-only boot still repairs storage.
	if err := appStore.Migrate(ctx); err != nil {
		_ = appStore.Close()
		return nil, fmt.Errorf("failed to prepare storage: %w", err)
	}

	app.store = store.NewReadOnlyStore(appStore, app.IsReadOnly)

	delay := config.AutosaveDelay
	if delay <= 0 {
		delay = 800 * time.Millisecond
	}
	app.saver = store.NewDebouncedSaver(app.store, delay)

	if err := app.ensureSeedNote(ctx); err != nil {
		log.Warn().Err(err).Msg("seed note creation failed")
	}

	return app, nil
}

// Close flushes pending debounced saves and releases the storage adapter.
func (a *App) Close() error {
	if a.saver != nil {
		a.saver.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Store returns the active storage adapter.
func (a *App) Store() store.Store {
	return a.store
}

// Backend reports which adapter was selected at boot.
func (a *App) Backend() string {
	return a.backend
}

// SetReadOnly toggles the runtime read-only mode used during maintenance
// operations such as backend cleanup.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly = readOnly
	a.log.Info().Bool("readOnly", readOnly).Msg("read-only mode changed")
}

// IsReadOnly reports the current read-only state. Checked by the store
// wrapper on every write, so it must stay cheap.
func (a *App) IsReadOnly() bool {
	return a.readOnly
}

// remoteStore returns the remote adapter when one is active.
func (a *App) remoteStore() *remote.RemoteStore {
	s := a.store
	if ro, ok := s.(*store.ReadOnlyStore); ok {
		s = ro.Unwrap()
	}
	r, _ := s.(*remote.RemoteStore)
	return r
}

// FlushOutbox drains the remote outbox once and returns the number of
// mutations still pending. Returns an error when the local adapter is
// active, since there is nothing to flush.
func (a *App) FlushOutbox(ctx context.Context) (int, error) {
	r := a.remoteStore()
	if r == nil {
		return 0, fmt.Errorf("outbox flush requires the remote backend (active: %s)", a.backend)
	}
	return r.Flush(ctx), nil
}

// Cleanup removes rows from the legacy backend tables, and from the current
// tables too when includeCurrentData is set. Write traffic is suspended for
// the duration.
func (a *App) Cleanup(ctx context.Context, includeCurrentData bool) (int, error) {
	r := a.remoteStore()
	if r == nil {
		return 0, fmt.Errorf("cleanup requires the remote backend (active: %s)", a.backend)
	}

	wasReadOnly := a.readOnly
	a.SetReadOnly(true)
	defer a.SetReadOnly(wasReadOnly)

	return r.CleanupLegacyTables(ctx, includeCurrentData)
}

func loadRemoteConfig(kvStore *kv.KV, log zerolog.Logger) *RemoteConfig {
	data, err := kvStore.Get(remoteConfigKey)
	if err != nil || data == nil {
		return nil
	}
	var rc RemoteConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		log.Warn().Err(err).Msg("ignoring corrupt saved remote configuration")
		return nil
	}
	if rc.URL == "" {
		return nil
	}
	return &rc
}

// SaveRemoteConfig persists a user-entered remote configuration for the next
// boot. It does not switch the running adapter.
func (a *App) SaveRemoteConfig(rc *RemoteConfig) error {
	data, err := json.Marshal(rc)
	if err != nil {
		return err
	}
	return a.kvStore.Put(remoteConfigKey, data)
}

// getEnv retrieves an environment variable with a fallback default. Empty
// values are treated the same as unset ones.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
