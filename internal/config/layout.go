package config

import (
	"os"
	"path/filepath"
)

const (
	ModsArtifact   = "mods.zip"
	ConfigArtifact = "config.zip"

	ModsSnapshotFile   = "mods_checksums.json"
	ConfigSnapshotFile = "config_checksums.json"
)

// Layout resolves where a client keeps downloads, snapshots and the trees
// being synchronized.
type Layout struct {
	GameDir   string
	ModsDir   string
	ConfigDir string
	StateDir  string
	SharedDir string
}

// NewLayout anchors the client directories at the game directory of instanceDir.
// Relative entries in c are resolved against it.
func NewLayout(instanceDir string, c ClientConfig) Layout {
	game := GameDir(instanceDir)
	at := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(game, filepath.FromSlash(p))
	}
	return Layout{
		GameDir:   game,
		ModsDir:   at(c.ModsDir, DefaultModsDir),
		ConfigDir: at(c.ConfigDir, DefaultConfigDir),
		StateDir:  at(c.StateDir, DefaultStateDir),
		SharedDir: at(c.SharedDir, DefaultSharedDir),
	}
}

// Download returns where artifact is stored after download.
func (l Layout) Download(artifact string) string {
	return filepath.Join(l.SharedDir, artifact)
}

func (l Layout) ModsSnapshot() string {
	return filepath.Join(l.StateDir, ModsSnapshotFile)
}

func (l Layout) ConfigSnapshot() string {
	return filepath.Join(l.StateDir, ConfigSnapshotFile)
}

// GameDir returns the directory containing mods/ and config/.
// On Prism/MultiMC clients, this is <instanceDir>/.minecraft/.
// On servers and other layouts, this is just instanceDir.
func GameDir(instanceDir string) string {
	dotMC := filepath.Join(instanceDir, ".minecraft")
	if info, err := os.Stat(dotMC); err == nil && info.IsDir() {
		return dotMC
	}
	return instanceDir
}
