package extension

import (
	"log/slog"

	"github.com/xraph/grove"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/plugin"
	"github.com/xraph/warrant/store"
)

// ExtOption configures the Warrant Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.warrantOpts = append(e.warrantOpts, warrant.WithStore(s))
	}
}

// WithGroveDatabase builds the store from db using the named driver
// ("pg", "sqlite" or "mongo").
func WithGroveDatabase(db *grove.DB, driver string) ExtOption {
	return func(e *Extension) {
		e.groveDB = db
		e.config.GroveDriver = driver
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...warrant.Option) ExtOption {
	return func(e *Extension) {
		e.warrantOpts = append(e.warrantOpts, opts...)
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
