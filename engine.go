package warrant

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/plugin"
	"github.com/xraph/warrant/store"
)

// Engine is the access resolution and elevation engine. It owns the
// catalog, serializes mutations per user, writes the audit trail and fires
// plugin hooks.
type Engine struct {
	store     store.Store
	catalog   *catalog.Catalog
	cache     Cache
	directory Directory
	plugins   *plugin.Registry
	logger    *slog.Logger
	config    Config
	clock     func() time.Time

	locks *userLocks

	// groupGen is bumped by every group-level mutation so that a resolution
	// computed across one is never written back to the cache.
	groupGen atomic.Uint64

	stopSweep context.CancelFunc
	sweepWG   sync.WaitGroup
}

// NewEngine creates a new Warrant engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		clock:  time.Now,
		locks:  newUserLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("warrant: store is required")
	}
	if e.catalog == nil {
		e.catalog = catalog.Default()
	}
	if e.config.SystemActor == "" {
		e.config.SystemActor = DefaultConfig().SystemActor
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Catalog returns the permission catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Start launches the background elevation sweep when configured.
func (e *Engine) Start(ctx context.Context) error {
	if e.config.SweepInterval <= 0 || e.stopSweep != nil {
		return nil
	}
	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.stopSweep = cancel
	e.sweepWG.Add(1)
	go e.sweepLoop(sweepCtx)
	return nil
}

// Stop halts the sweep and notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stopSweep != nil {
		e.stopSweep()
		e.sweepWG.Wait()
		e.stopSweep = nil
	}
	e.plugins.EmitShutdown(ctx)
	return nil
}

func (e *Engine) sweepLoop(ctx context.Context) {
	defer e.sweepWG.Done()
	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.SweepExpiredElevations(ctx); err != nil {
				e.logger.Warn("warrant: elevation sweep failed", "error", err)
			}
		}
	}
}

func (e *Engine) now() time.Time { return e.clock() }

// storeErr translates store sentinels into engine errors.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound(err, "%s not found", what)
	case errors.Is(err, store.ErrStateConflict):
		return &Error{Kind: KindInvalidState, Message: what + " changed concurrently", Err: err}
	}
	return err
}

func (e *Engine) invalidateUser(ctx context.Context, userID string) {
	if e.cache != nil {
		e.cache.InvalidateUser(ctx, userID)
	}
}

func (e *Engine) invalidateAll(ctx context.Context) {
	e.groupGen.Add(1)
	if e.cache != nil {
		e.cache.InvalidateAll(ctx)
	}
}
