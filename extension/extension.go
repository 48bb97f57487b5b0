// Package extension provides a Forge extension entry point for Warrant.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/api"
	"github.com/xraph/warrant/cache"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/plugin"
	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/store/mongo"
	"github.com/xraph/warrant/store/postgres"
	"github.com/xraph/warrant/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "warrant"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Access resolution and temporary elevation engine (groups, direct grants, elevations)"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Warrant as a Forge extension.
type Extension struct {
	config      Config
	eng         *warrant.Engine
	apiHandler  *api.API
	logger      *slog.Logger
	groveDB     *grove.DB
	warrantOpts []warrant.Option
	plugins     []plugin.Plugin
}

// New creates a Warrant Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Warrant engine.
func (e *Extension) Engine() *warrant.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*warrant.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("warrant: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := e.engineOptions(logger)
	if err != nil {
		return err
	}

	// Store precedence: container, then grove DB, then explicit options.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, warrant.WithStore(s))
	}
	db := e.groveDB
	if db == nil && e.config.GroveDriver != "" {
		if injected, err := forge.Inject[*grove.DB](fapp.Container()); err == nil {
			db = injected
		}
	}
	if db != nil {
		s, err := storeFor(e.config.GroveDriver, db)
		if err != nil {
			return err
		}
		opts = append(opts, warrant.WithStore(s))
	}

	opts = append(opts, e.warrantOpts...)
	for _, x := range e.plugins {
		opts = append(opts, warrant.WithPlugin(x))
	}

	eng, err := warrant.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("warrant: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("warrant: register routes: %w", err)
		}
	}

	return nil
}

// engineOptions translates the extension config into engine options.
func (e *Extension) engineOptions(logger *slog.Logger) ([]warrant.Option, error) {
	cfg := warrant.DefaultConfig()
	cfg.SweepInterval = e.config.SweepInterval
	cfg.DisableAudit = e.config.DisableAudit

	opts := []warrant.Option{
		warrant.WithLogger(logger),
		warrant.WithConfig(cfg),
	}

	if e.config.CatalogPath != "" {
		cat, err := catalog.LoadFile(e.config.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("warrant: load catalog: %w", err)
		}
		opts = append(opts, warrant.WithCatalog(cat))
	}

	if e.config.CacheTTL > 0 {
		copts := []cache.MemoryOption{cache.WithTTL(e.config.CacheTTL)}
		if e.config.CacheMaxSize > 0 {
			copts = append(copts, cache.WithMaxSize(e.config.CacheMaxSize))
		}
		opts = append(opts, warrant.WithCache(cache.NewMemory(copts...)))
	}

	return opts, nil
}

// storeFor builds the store backend matching a grove driver name.
func storeFor(driver string, db *grove.DB) (store.Store, error) {
	switch driver {
	case "pg", "postgres":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo", "mongodb":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("warrant: unsupported grove driver %q", driver)
	}
}

// Start begins the warrant engine and runs migrations if enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("warrant: extension not initialized")
	}

	if !e.config.DisableMigrate {
		s := e.eng.Store()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("warrant: migration failed: %w", err)
			}
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the warrant engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("warrant: extension not initialized")
	}
	s := e.eng.Store()
	if s == nil {
		return errors.New("warrant: no store configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all warrant API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
