package preflight

import (
	"context"

	"intake/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Path checks always run; the tracking check is skipped only when the
// endpoint is entirely unconfigured (the validator rejects that earlier
// anyway, but status rendering should not double-report it).
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Delivery directory", cfg.Paths.DeliveryDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if cfg.Paths.WorkRootDir != "" {
		results = append(results, CheckDirectoryAccess("Work root", cfg.Paths.WorkRootDir))
	}

	if cfg.Tracking.URL != "" {
		results = append(results, CheckTracking(ctx, cfg))
	}

	return results
}

// Failed reports whether any result in the set did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
