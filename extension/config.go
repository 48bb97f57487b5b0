package extension

import "time"

// Config holds the Warrant extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.warrant" or "warrant" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// CatalogPath points at a YAML permission catalog. Empty uses the
	// built-in catalog.
	CatalogPath string `json:"catalog_path" mapstructure:"catalog_path" yaml:"catalog_path"`

	// CacheTTL enables the in-memory resolution cache. Zero disables it.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// CacheMaxSize caps the number of cached users (0 = unlimited).
	CacheMaxSize int `json:"cache_max_size" mapstructure:"cache_max_size" yaml:"cache_max_size"`

	// SweepInterval controls the background elevation expiry sweep.
	// Zero disables it.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// DisableAudit skips persisting audit events.
	DisableAudit bool `json:"disable_audit" mapstructure:"disable_audit" yaml:"disable_audit"`

	// GroveDriver selects the store built around a grove.DB resolved from
	// the DI container: "pg", "sqlite" or "mongo". Empty means the store is
	// supplied via WithStore or the container.
	GroveDriver string `json:"grove_driver" mapstructure:"grove_driver" yaml:"grove_driver"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:      30 * time.Second,
		SweepInterval: time.Minute,
	}
}
