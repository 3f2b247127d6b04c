package updater

import (
	"os"
	"time"

	"github.com/Maeiro/MMMMM/internal/checksum"
	"github.com/Maeiro/MMMMM/internal/config"
)

// SnapshotStatus describes one persisted digest map.
type SnapshotStatus struct {
	Path    string
	Exists  bool
	Entries int
	Updated time.Time
}

// StatusReport is what the status command prints.
type StatusReport struct {
	BaseURL string
	ModsURL string
	Layout  config.Layout
	Mods    SnapshotStatus
	Config  SnapshotStatus
}

// Status inspects the local snapshots without touching the network.
func Status(layout config.Layout, baseURL string) (*StatusReport, error) {
	r := &StatusReport{BaseURL: baseURL, Layout: layout}
	r.ModsURL, _ = BuildDownloadURL(baseURL, config.ModsArtifact)

	var err error
	if r.Mods, err = snapshotStatus(layout.ModsSnapshot()); err != nil {
		return nil, err
	}
	if r.Config, err = snapshotStatus(layout.ConfigSnapshot()); err != nil {
		return nil, err
	}
	return r, nil
}

func snapshotStatus(path string) (SnapshotStatus, error) {
	s := SnapshotStatus{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	m, err := checksum.Load(path)
	if err != nil {
		return s, err
	}
	s.Exists = true
	s.Entries = len(m)
	s.Updated = info.ModTime()
	return s, nil
}
