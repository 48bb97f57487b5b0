package warrant

import (
	"log/slog"
	"time"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/plugin"
	"github.com/xraph/warrant/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithCatalog sets the permission catalog.
func WithCatalog(c *catalog.Catalog) Option { return func(e *Engine) { e.catalog = c } }

// WithCache sets the resolution cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithDirectory sets the user directory used to enrich member listings.
func WithDirectory(d Directory) Option { return func(e *Engine) { e.directory = d } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.clock = now } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}
