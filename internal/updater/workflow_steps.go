package updater

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Maeiro/MMMMM/internal/archive"
	"github.com/Maeiro/MMMMM/internal/checksum"
	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/diff"
	"github.com/Maeiro/MMMMM/internal/downloader"
	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/progress"
)

const artifactExt = ".jar"

// bundle describes one artifact and how it is applied and compared.
type bundle struct {
	name     string
	url      string
	zipPath  string
	snapshot string

	apply   func(ctx context.Context, zipPath string) ([]string, error)
	digest  func(ctx context.Context, zipPath string, written []string) (checksum.Map, error)
	compare func(old, current checksum.Map) diff.Diff
}

type worker struct {
	opts  Options
	log   *log.Logger
	diags *archive.Diagnostics
}

func (w *worker) modsBundle(base string) bundle {
	url, _ := BuildDownloadURL(base, config.ModsArtifact)
	l := w.opts.Layout
	return bundle{
		name:     "mods",
		url:      url,
		zipPath:  l.Download(config.ModsArtifact),
		snapshot: l.ModsSnapshot(),
		apply: func(ctx context.Context, zipPath string) ([]string, error) {
			return archive.SyncMods(ctx, zipPath, l.ModsDir, archive.SyncOptions{
				Reader:         w.opts.Reader,
				Ext:            artifactExt,
				SelfID:         w.opts.SelfID,
				CurrentVersion: w.opts.CurrentVersion,
				Diagnostics:    w.diags,
				OnProgress:     w.archiveProgress("mods"),
			})
		},
		digest: func(_ context.Context, _ string, written []string) (checksum.Map, error) {
			return checksum.DigestPaths(l.ModsDir, topLevel(written), w.checksumProgress("mods"))
		},
		compare: func(old, current checksum.Map) diff.Diff {
			return diff.Filter(diff.Compute(old, current), topLevelKeys(old, current))
		},
	}
}

func (w *worker) configBundle(base string) bundle {
	url, _ := BuildDownloadURL(base, config.ConfigArtifact)
	l := w.opts.Layout
	return bundle{
		name:     "config",
		url:      url,
		zipPath:  l.Download(config.ConfigArtifact),
		snapshot: l.ConfigSnapshot(),
		apply: func(ctx context.Context, zipPath string) ([]string, error) {
			return archive.ExtractPlain(ctx, zipPath, l.ConfigDir, "config/", w.archiveProgress("config"))
		},
		digest: func(ctx context.Context, zipPath string, _ []string) (checksum.Map, error) {
			if w.opts.TrustConfigDir {
				return checksum.DigestTree(l.ConfigDir, w.checksumProgress("config"))
			}
			return archive.DigestEntries(ctx, zipPath, "config/", w.archiveProgress("config"))
		},
		compare: diff.Compute,
	}
}

// run drives one bundle through the pipeline and classifies the result.
func (w *worker) run(ctx context.Context, b bundle) Outcome {
	d, err := w.pipeline(ctx, b)
	switch {
	case err == nil:
		w.enter(b, StateCompleted)
		return Outcome{State: StateCompleted, Diff: d}
	case isCancelled(ctx, err):
		w.enter(b, StateCancelled)
		w.log.Info("bundle cancelled", "bundle", b.name)
		return Outcome{State: StateCancelled, Err: err}
	default:
		w.enter(b, StateFailed)
		w.log.Error("bundle failed", "bundle", b.name, "url", b.url, "err", err)
		return Outcome{State: StateFailed, Err: err}
	}
}

func (w *worker) pipeline(ctx context.Context, b bundle) (diff.Diff, error) {
	w.enter(b, StateDownloading)
	if err := w.download(ctx, b); err != nil {
		return diff.Diff{}, err
	}

	w.enter(b, StateValidating)
	w.opts.Sink.Emit(progress.Processing(b.name, "Validating download...", "", 0, 0))
	if err := validateDownload(b); err != nil {
		return diff.Diff{}, err
	}

	w.enter(b, StateExtracting)
	written, err := b.apply(ctx, b.zipPath)
	if err != nil {
		return diff.Diff{}, err
	}

	w.enter(b, StateDiffing)
	current, err := b.digest(ctx, b.zipPath, written)
	if err != nil {
		return diff.Diff{}, fmt.Errorf("digesting %s: %w", b.name, err)
	}
	old, err := checksum.Load(b.snapshot)
	if err != nil {
		// A corrupt snapshot is replaced by this run's digests.
		logging.Warnf("ignoring unreadable %s snapshot: %v\n", b.name, err)
		old = checksum.Map{}
	}
	d := b.compare(old, current)
	diff.Log(d)

	if err := ctx.Err(); err != nil {
		return diff.Diff{}, err
	}
	if err := checksum.Save(b.snapshot, current); err != nil {
		return diff.Diff{}, fmt.Errorf("saving %s snapshot: %w", b.name, err)
	}
	return d, nil
}

func (w *worker) download(ctx context.Context, b bundle) error {
	w.opts.Sink.Emit(progress.Processing(b.name, "Preparing "+b.name+"...", "", 0, 0))
	w.opts.Sink.Emit(progress.Start(b.name, b.url))
	logging.Infof("Starting %s download from: %s\n", b.name, b.url)

	n, err := downloader.DownloadToFile(ctx, b.url, b.zipPath, downloader.Options{
		Client:  w.opts.Client,
		Timeout: w.opts.Timeout,
		OnProgress: func(p downloader.Progress) {
			w.opts.Sink.Emit(progress.Download(b.name, p))
		},
	})
	if err != nil {
		return err
	}
	w.log.Debug("downloaded", "bundle", b.name, "bytes", n, "path", b.zipPath)
	return nil
}

func validateDownload(b bundle) error {
	info, err := os.Stat(b.zipPath)
	if err != nil || info.Size() == 0 {
		logging.Warnf("Downloaded %s file is invalid or empty.\n", b.name)
		return fmt.Errorf("%s: %w", b.zipPath, ErrEmptyDownload)
	}
	return nil
}

func (w *worker) enter(b bundle, s State) {
	w.log.Debug("state", "bundle", b.name, "state", s)
}

func (w *worker) archiveProgress(bundle string) archive.ProgressFunc {
	return func(stage archive.Stage, processed, total int, label string) {
		var title string
		switch stage {
		case archive.StageIndex:
			title = "Indexing installed mods..."
		case archive.StageRemove:
			title = "Removing mods..."
		case archive.StageDigest:
			title = "Comparing " + bundle + " checksums..."
		default:
			title = "Extracting " + bundle + "..."
		}
		w.opts.Sink.Emit(progress.Processing(bundle, title, progressDetail(processed, total, label), processed, total))
	}
}

func (w *worker) checksumProgress(bundle string) checksum.ProgressFunc {
	title := "Comparing " + bundle + " checksums..."
	return func(processed, total int, label string) {
		w.opts.Sink.Emit(progress.Processing(bundle, title, progressDetail(processed, total, label), processed, total))
	}
}

func progressDetail(processed, total int, label string) string {
	if total < 0 {
		return fmt.Sprintf("Checked %d: %s", processed, label)
	}
	return fmt.Sprintf("%d/%d: %s", processed, total, label)
}

// topLevel keeps the artifacts written directly under the mods directory.
func topLevel(written []string) []string {
	var out []string
	for _, p := range written {
		if !strings.Contains(p, "/") && checksum.HasExt(p, artifactExt) {
			out = append(out, p)
		}
	}
	return out
}

func topLevelKeys(maps ...checksum.Map) map[string]bool {
	keys := make(map[string]bool)
	for _, m := range maps {
		for k := range m.TopLevel(artifactExt) {
			keys[k] = true
		}
	}
	return keys
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// isFatal reports errors that abort the whole run: unsafe archive entries
// and local storage failures.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, archive.ErrUnsafePath) {
		return true
	}
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	return errors.As(err, &pathErr) || errors.As(err, &linkErr)
}
