package segledger

import "log/slog"

// Config holds the ledger's ambient collaborators.
type Config struct {
	// Logger receives debug records for clone lifecycle and re-homing.
	// nil uses slog.Default().
	Logger *slog.Logger

	// Metrics receives ledger counters and gauges. nil disables metrics.
	Metrics *Metrics
}

// DefaultConfig returns a configuration that logs through slog.Default()
// and records no metrics.
func DefaultConfig() *Config {
	return &Config{
		Logger: slog.Default(),
	}
}
