package updater

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/logging"
)

// ClearCache deletes the downloaded bundles and both snapshots, so the next
// run treats every file as new. It returns the paths that were removed.
func ClearCache(layout config.Layout) ([]string, error) {
	targets := []string{
		layout.Download(config.ModsArtifact),
		layout.Download(config.ConfigArtifact),
		layout.ModsSnapshot(),
		layout.ConfigSnapshot(),
	}

	var removed []string
	var errs []error
	for _, p := range targets {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed = append(removed, p)
			logging.Debugf("Verbose: removed %s\n", p)
		case errors.Is(err, fs.ErrNotExist):
		default:
			errs = append(errs, fmt.Errorf("removing %s: %w", p, err))
		}
	}
	return removed, errors.Join(errs...)
}
