// Package publish packs the server's mods and config directories into the
// bundles clients download.
package publish

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Maeiro/MMMMM/internal/archive"
	"github.com/Maeiro/MMMMM/internal/checksum"
	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/manifest"
	"github.com/Maeiro/MMMMM/internal/metrics"
)

// Config locates the source directories and the output directory.
type Config struct {
	ModsDir   string
	ConfigDir string
	OutDir    string
}

// FromConfig resolves publish settings against instanceDir. outDir is the
// directory the server serves.
func FromConfig(instanceDir, outDir string, c config.PublishConfig) Config {
	at := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(instanceDir, filepath.FromSlash(p))
	}
	return Config{
		ModsDir:   at(c.ModsDir, config.DefaultModsDir),
		ConfigDir: at(c.ConfigDir, config.DefaultConfigDir),
		OutDir:    outDir,
	}
}

// Result describes one build attempt.
type Result struct {
	Bundle  string
	Path    string
	Files   int
	Skipped bool
	Reason  string
}

type source struct {
	abs string
	rel string // entry name in the bundle
}

// Builder builds bundles, skipping a rebuild when no source file changed
// since its last successful build.
type Builder struct {
	cfg     Config
	reader  manifest.Reader
	metrics metrics.Metrics

	mu         sync.Mutex
	lastMods   time.Time
	lastConfig time.Time
}

func NewBuilder(cfg Config, reader manifest.Reader, m metrics.Metrics) *Builder {
	if reader == nil {
		reader = manifest.TOMLReader{}
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &Builder{cfg: cfg, reader: reader, metrics: m}
}

// BuildMods packs every .jar under the mods directory, keeping relative
// paths, plus the removal list when one sits at the top of the directory.
func (b *Builder) BuildMods(ctx context.Context) (Result, error) {
	res := Result{Bundle: "mods", Path: filepath.Join(b.cfg.OutDir, config.ModsArtifact)}

	files, err := collect(b.cfg.ModsDir, func(rel string) bool {
		return checksum.HasExt(rel, ".jar") || rel == archive.RemovalListName
	})
	if err != nil {
		return b.finish(res, err)
	}
	if countJars(files) == 0 {
		logging.Warnf("No .jar files found in mods folder, skipping zip.\n")
		return b.skip(res, "no artifacts")
	}

	b.mu.Lock()
	last := b.lastMods
	b.mu.Unlock()
	latest := latestChange(files)
	if shouldSkip(latest, last, res.Path) {
		logging.Infof("Mods have not changed since last build. Skipping zip creation.\n")
		return b.skip(res, "unchanged")
	}

	logging.Infof("Starting %s creation. Found %d mods.\n", config.ModsArtifact, countJars(files))
	err = writeBundle(ctx, res.Path, files, func(i, n int, f source) {
		if f.rel == archive.RemovalListName {
			logging.Infof("[%d/%d] Included removal list\n", i, n)
			return
		}
		logging.Infof("[%d/%d] Included mod: %s (%s)\n", i, n, b.displayName(f.abs), filepath.Base(f.abs))
	})
	if err != nil {
		return b.finish(res, err)
	}

	b.mu.Lock()
	b.lastMods = latest
	b.mu.Unlock()
	res.Files = len(files)
	logging.Infof("Finished creating %s. %d files processed.\n", config.ModsArtifact, len(files))
	return b.finish(res, nil)
}

// BuildConfig packs every regular file under the config directory, named
// relative to it.
func (b *Builder) BuildConfig(ctx context.Context) (Result, error) {
	res := Result{Bundle: "config", Path: filepath.Join(b.cfg.OutDir, config.ConfigArtifact)}

	if info, err := os.Stat(b.cfg.ConfigDir); err != nil || !info.IsDir() {
		logging.Warnf("Config folder does not exist, skipping zip.\n")
		return b.skip(res, "no config directory")
	}
	files, err := collect(b.cfg.ConfigDir, func(string) bool { return true })
	if err != nil {
		return b.finish(res, err)
	}
	if len(files) == 0 {
		logging.Warnf("No files found in config folder, skipping zip.\n")
		return b.skip(res, "no files")
	}

	b.mu.Lock()
	last := b.lastConfig
	b.mu.Unlock()
	latest := latestChange(files)
	if shouldSkip(latest, last, res.Path) {
		logging.Infof("Config has not changed since last build. Skipping zip creation.\n")
		return b.skip(res, "unchanged")
	}

	logging.Infof("Starting %s creation. Found %d files.\n", config.ConfigArtifact, len(files))
	err = writeBundle(ctx, res.Path, files, func(i, n int, f source) {
		logging.Infof("[%d/%d] Included config file: %s\n", i, n, f.rel)
	})
	if err != nil {
		return b.finish(res, err)
	}

	b.mu.Lock()
	b.lastConfig = latest
	b.mu.Unlock()
	res.Files = len(files)
	logging.Infof("Finished creating %s. %d files processed.\n", config.ConfigArtifact, len(files))
	return b.finish(res, nil)
}

// BuildAll builds the mods bundle and then the config bundle. A mods
// failure does not prevent the config build.
func (b *Builder) BuildAll(ctx context.Context) ([]Result, error) {
	mods, modsErr := b.BuildMods(ctx)
	if ctx.Err() != nil {
		return []Result{mods}, ctx.Err()
	}
	cfg, cfgErr := b.BuildConfig(ctx)
	var err error
	switch {
	case modsErr != nil && cfgErr != nil:
		err = fmt.Errorf("%w; %w", modsErr, cfgErr)
	case modsErr != nil:
		err = modsErr
	default:
		err = cfgErr
	}
	return []Result{mods, cfg}, err
}

func (b *Builder) skip(res Result, reason string) (Result, error) {
	res.Skipped = true
	res.Reason = reason
	b.metrics.IncBundleBuild(res.Bundle, "skipped")
	return res, nil
}

func (b *Builder) finish(res Result, err error) (Result, error) {
	if err != nil {
		b.metrics.IncBundleBuild(res.Bundle, "failed")
		return res, fmt.Errorf("building %s bundle: %w", res.Bundle, err)
	}
	b.metrics.IncBundleBuild(res.Bundle, "built")
	return res, nil
}

func (b *Builder) displayName(path string) string {
	id, err := b.reader.ReadIdentityFile(path)
	if err != nil {
		logging.Debugf("Verbose: failed to read manifest from %s, using file name: %v\n", path, err)
	}
	if name := id.DisplayName(); name != "" {
		return name
	}
	return filepath.Base(path)
}

// collect walks root for regular files accepted by keep. Entry names are
// slash separated and relative to root.
func collect(root string, keep func(rel string) bool) ([]source, error) {
	var out []source
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = checksum.Key(rel)
		if keep(rel) {
			out = append(out, source{abs: p, rel: rel})
		}
		return nil
	})
	return out, err
}

func countJars(files []source) int {
	n := 0
	for _, f := range files {
		if f.rel != archive.RemovalListName {
			n++
		}
	}
	return n
}

func latestChange(files []source) time.Time {
	var latest time.Time
	for _, f := range files {
		info, err := os.Stat(f.abs)
		if err != nil {
			continue
		}
		if t := info.ModTime(); t.After(latest) {
			latest = t
		}
	}
	return latest
}

func shouldSkip(latest, lastBuild time.Time, zipPath string) bool {
	if latest.After(lastBuild) {
		return false
	}
	_, err := os.Stat(zipPath)
	return err == nil
}

// writeBundle writes files into a temporary zip next to dest and renames it
// into place, so the server never serves a partial bundle.
func writeBundle(ctx context.Context, dest string, files []source, onEntry func(i, n int, f source)) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	zw := zip.NewWriter(out)
	fail := func(err error) error {
		zw.Close()
		out.Close()
		os.Remove(tmp)
		return err
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := addFile(zw, f); err != nil {
			return fail(err)
		}
		if onEntry != nil {
			onEntry(i+1, len(files), f)
		}
	}

	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("finishing zip: %w", err))
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalizing %s: %w", dest, err)
	}
	return nil
}

func addFile(zw *zip.Writer, f source) error {
	info, err := os.Stat(f.abs)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", f.rel, err)
	}
	hdr.Name = f.rel
	hdr.Method = zip.Deflate
	if checksum.HasExt(f.rel, ".jar") {
		// Jars are already compressed.
		hdr.Method = zip.Store
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("adding %s: %w", f.rel, err)
	}
	src, err := os.Open(f.abs)
	if err != nil {
		return err
	}
	defer src.Close()
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("copying %s: %w", f.rel, err)
	}
	return nil
}
