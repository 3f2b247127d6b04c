package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Maeiro/MMMMM/internal/checksum"
	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/manifest"
	"github.com/Maeiro/MMMMM/internal/semver"
)

// DefaultSelfID is the identity this tool's own artifact declares.
const DefaultSelfID = "mmmmm"

// SyncOptions configures identity-aware extraction of a mod bundle.
type SyncOptions struct {
	Reader manifest.Reader
	// Ext selects artifact entries; defaults to ".jar".
	Ext string
	// SelfID and CurrentVersion drive the self-update warning.
	SelfID         string
	CurrentVersion string

	Diagnostics *Diagnostics
	OnProgress  ProgressFunc
}

func (o SyncOptions) withDefaults() SyncOptions {
	if o.Reader == nil {
		o.Reader = manifest.TOMLReader{}
	}
	if o.Ext == "" {
		o.Ext = ".jar"
	}
	if o.SelfID == "" {
		o.SelfID = DefaultSelfID
	}
	return o
}

// IndexInstalled maps each identity found under dir to the artifacts that
// declare it. Artifacts without a readable manifest are left out.
func IndexInstalled(dir string, reader manifest.Reader, ext string, onProgress ProgressFunc) map[string][]string {
	byID := make(map[string][]string)

	var artifacts []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.Type().IsRegular() && checksum.HasExt(d.Name(), ext) {
			artifacts = append(artifacts, p)
		}
		return nil
	})
	if err != nil {
		logging.Warnf("failed to index installed mods in %s: %v\n", dir, err)
		return byID
	}

	for i, p := range artifacts {
		onProgress.report(StageIndex, i+1, len(artifacts), filepath.Base(p))
		id, err := reader.ReadIdentityFile(p)
		if err != nil {
			logging.Debugf("Verbose: failed to read identity from installed %s: %v\n", p, err)
			continue
		}
		for _, modID := range id.IDs {
			byID[modID] = append(byID[modID], filepath.Clean(p))
		}
	}
	return byID
}

// SyncMods extracts a mod bundle into dest. Before each artifact is written,
// every installed artifact declaring the same identity under a different
// path is deleted. A removal list entry, if present, is applied once all
// entries are written. It returns the relative paths written.
func SyncMods(ctx context.Context, zipPath, dest string, opts SyncOptions) ([]string, error) {
	opts = opts.withDefaults()

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", zipPath, err)
	}
	defer r.Close()

	if err := checkEntries(r.File, dest, ""); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dest, err)
	}

	index := IndexInstalled(dest, opts.Reader, opts.Ext, opts.OnProgress)
	logging.Debugf("Verbose: indexed %d mod ids in %s\n", len(index), dest)

	var (
		written   []string
		toRemove  []string
		warnedOwn bool
	)
	total := len(r.File)
	for i, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := EntryName(f.Name)
		if name == RemovalListName {
			toRemove = readRemovalList(f)
			continue
		}

		target, err := SafeJoin(dest, name)
		if err != nil {
			return nil, err
		}
		opts.OnProgress.report(StageExtract, i+1, total, name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", name, err)
			}
			continue
		}

		if !checksum.HasExt(name, opts.Ext) {
			if err := writeEntry(f, target); err != nil {
				return nil, err
			}
			written = append(written, checksum.Key(name))
			continue
		}

		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}

		id, err := opts.Reader.ReadIdentity(data)
		switch {
		case err != nil:
			logging.Warnf("failed to identify mod id for %s - extracting without duplicate cleanup: %v\n", name, err)
		case !id.Known():
			logging.Warnf("could not identify mod id for %s - extracting without duplicate cleanup\n", name)
		default:
			logging.Debugf("Verbose: zip entry %s has mod id(s): %s\n", name, strings.Join(id.IDs, ", "))
			replaceIdentity(index, id.IDs, filepath.Clean(target))
			if !warnedOwn {
				if msg, ok := selfUpdateWarning(id, opts.SelfID, opts.CurrentVersion); ok {
					opts.Diagnostics.Add(msg)
					warnedOwn = true
				}
			}
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("creating parent of %s: %w", name, err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", target, err)
		}
		written = append(written, checksum.Key(name))
	}

	if len(toRemove) > 0 {
		report := RemoveByName(dest, toRemove, opts.Ext, opts.OnProgress)
		opts.Diagnostics.Add(report.Lines()...)
	}
	return written, nil
}

// replaceIdentity deletes installed artifacts sharing an id with target and
// points the index at target alone.
func replaceIdentity(index map[string][]string, ids []string, target string) {
	for _, modID := range ids {
		for _, installed := range index[modID] {
			if installed == target {
				continue
			}
			if err := os.Remove(installed); err != nil {
				if !os.IsNotExist(err) {
					logging.Warnf("failed to remove old mod %s for mod id %s: %v\n", installed, modID, err)
				}
				continue
			}
			logging.Infof("Removed old mod for mod id %s: %s\n", modID, filepath.Base(installed))
		}
		index[modID] = []string{target}
	}
}

func selfUpdateWarning(id manifest.Identity, selfID, current string) (string, bool) {
	bundled, ok := id.Version(selfID)
	current = strings.TrimSpace(current)
	if !ok || current == "" || strings.EqualFold(current, "unknown") || strings.Contains(bundled, "${") {
		return "", false
	}
	if semver.Compare(bundled, current) == 0 {
		return "", false
	}
	return fmt.Sprintf("Warning: mods.zip contains MMMMM %s (current: %s). It will overwrite on disk and apply after restart.", bundled, current), true
}

func readRemovalList(f *zip.File) []string {
	data, err := readEntry(f)
	if err != nil {
		logging.Warnf("failed to read %s: %v\n", RemovalListName, err)
		return nil
	}
	names, err := ParseRemovalList(data)
	if err != nil {
		logging.Warnf("%v\n", err)
		return nil
	}
	return names
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", f.Name, err)
	}
	return data, nil
}
