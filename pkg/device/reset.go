package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/qa-pilot/pkg/logger"
)

// ResetOptions controls ResetApp.
type ResetOptions struct {
	Package   string
	VaultDirs []string      // Directories scrubbed of vault folders
	StopWait  time.Duration // Pause after force-stop
	Settle    time.Duration // Pause after the wipe
}

// ResetApp returns the app to a first-launch state without reinstalling:
// force-stop, clear data, delete vault folders and internal files.
// Cleanup failures are logged and ignored; only force-stop and pm clear
// are reported.
func (d *AndroidDevice) ResetApp(ctx context.Context, opts ResetOptions) error {
	pkg := opts.Package
	if pkg == "" {
		return fmt.Errorf("reset: package is required")
	}

	logger.Info("resetting %s to fresh state", pkg)
	if _, err := d.Shell(ctx, "am force-stop "+pkg); err != nil {
		return fmt.Errorf("reset: force-stop: %w", err)
	}
	if err := sleep(ctx, opts.StopWait); err != nil {
		return err
	}

	out, err := d.Shell(ctx, "pm clear "+pkg)
	if err != nil {
		return fmt.Errorf("reset: pm clear: %w", err)
	}
	logger.Info("pm clear %s: %s", pkg, strings.TrimSpace(out))

	for _, dir := range opts.VaultDirs {
		if !strings.HasSuffix(dir, "/") {
			dir += "/"
		}
		for _, pattern := range []string{"*Vault*", "*vault*", ".obsidian"} {
			if _, err := d.Shell(ctx, fmt.Sprintf("rm -rf %s%s 2>/dev/null", dir, pattern)); err != nil {
				logger.Warn("reset: clean %s%s: %v", dir, pattern, err)
			}
		}
	}

	if _, err := d.Shell(ctx, fmt.Sprintf("rm -rf /data/data/%s/files/* 2>/dev/null", pkg)); err != nil {
		logger.Warn("reset: clean internal storage: %v", err)
	}

	return sleep(ctx, opts.Settle)
}
