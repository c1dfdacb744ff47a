package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"intake/internal/config"
	"intake/internal/tracking"
)

// CheckTracking verifies that the tracking service is reachable, the API key
// is accepted, and the configured project resolves. It uses a 10-second
// timeout and a single attempt (no retries).
func CheckTracking(ctx context.Context, cfg *config.Config) Result {
	const name = "Tracking service"

	if strings.TrimSpace(cfg.Tracking.URL) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(cfg.Tracking.APIKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := tracking.NewFromConfig(cfg)
	project, err := tracking.ResolveProject(checkCtx, client, cfg)
	if err != nil {
		return Result{Name: name, Detail: summarizeTrackingError(err)}
	}
	if project.Name != "" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("project %q resolved", project.Name)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("project #%d resolved", project.ID)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeTrackingError produces a human-readable summary for tracking
// health check failures.
func summarizeTrackingError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (tracking service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (tracking service unreachable)"
	}
	return err.Error()
}
