package warrant

import "time"

// Config holds configuration for the Warrant engine.
type Config struct {
	// SweepInterval enables a background pass that marks approved elevation
	// requests past their window as expired. Zero disables it. The resolver
	// never depends on the sweep.
	SweepInterval time.Duration `json:"sweep_interval,omitempty"`

	// DisableAudit skips persisting audit events. AuditRecorded hooks
	// still fire.
	DisableAudit bool `json:"disable_audit,omitempty"`

	// SystemActor is recorded as the actor when the context carries none.
	// Defaults to "system".
	SystemActor string `json:"system_actor,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{SystemActor: "system"}
}
