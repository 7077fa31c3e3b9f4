package config

import (
	"os"
	"time"

	"github.com/openhyve/openhyve/pkg/engine"
)

// Timeouts holds the task polling interval and the per-class polling
// budgets. All values can be customized via environment variables.
type Timeouts struct {
	PollInterval time.Duration // Interval between task status probes
	Default      time.Duration // Budget for ordinary mutations
	Slow         time.Duration // Budget for clone and migrate operations
	Download     time.Duration // Budget for ISO/template downloads
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is
// used.
//
// Environment Variables:
//   - HYVE_POLL_INTERVAL (default: 2s)
//   - HYVE_TIMEOUT_DEFAULT (default: 5m)
//   - HYVE_TIMEOUT_SLOW (default: 10m)
//   - HYVE_TIMEOUT_DOWNLOAD (default: 30m)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		PollInterval: parseDuration("HYVE_POLL_INTERVAL", 2*time.Second),
		Default:      parseDuration("HYVE_TIMEOUT_DEFAULT", 5*time.Minute),
		Slow:         parseDuration("HYVE_TIMEOUT_SLOW", 10*time.Minute),
		Download:     parseDuration("HYVE_TIMEOUT_DOWNLOAD", 30*time.Minute),
	}
}

// Budgets converts the timeouts into the engine's polling budgets.
func (t *Timeouts) Budgets() engine.Budgets {
	return engine.Budgets{
		Default:  t.Default,
		Slow:     t.Slow,
		Download: t.Download,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is
// returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}
