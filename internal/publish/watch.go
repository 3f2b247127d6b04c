package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/Maeiro/MMMMM/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

var defaultIgnores = []string{
	"**/*.tmp",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

// WatchOptions configures Watch.
type WatchOptions struct {
	Debounce time.Duration
	// Ignore adds doublestar patterns, matched against paths relative to
	// the watched directory.
	Ignore []string
	// OnBuild is called after every rebuild attempt.
	OnBuild func(Result, error)
}

// Watch rebuilds a bundle whenever files under its source directory change,
// after changes have been quiet for the debounce interval. It blocks until
// ctx is done.
func (b *Builder) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	ignores := append(append([]string{}, defaultIgnores...), opts.Ignore...)
	for _, p := range ignores {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("watch: invalid ignore pattern %q", p)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	roots := map[string]func(context.Context) (Result, error){
		filepath.Clean(b.cfg.ModsDir):   b.BuildMods,
		filepath.Clean(b.cfg.ConfigDir): b.BuildConfig,
	}
	for root := range roots {
		if err := addTree(fsw, root); err != nil {
			return err
		}
	}

	var (
		mu      sync.Mutex
		timers  = make(map[string]*time.Timer)
		buildMu sync.Mutex // one build at a time
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(root string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[root]; ok {
			t.Reset(opts.Debounce)
			return
		}
		build := roots[root]
		timers[root] = time.AfterFunc(opts.Debounce, func() {
			buildMu.Lock()
			defer buildMu.Unlock()
			if ctx.Err() != nil {
				return
			}
			res, err := build(ctx)
			if err != nil {
				logging.Warnf("rebuild failed: %v\n", err)
			}
			if opts.OnBuild != nil {
				opts.OnBuild(res, err)
			}
		})
	}

	logging.Infof("Watching %s and %s for changes\n", b.cfg.ModsDir, b.cfg.ConfigDir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			root, rel := owner(roots, evt.Name)
			if root == "" || ignored(ignores, rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					_ = addTree(fsw, evt.Name)
				}
			}
			logging.Debugf("Verbose: watch event %s %s\n", evt.Op, evt.Name)
			schedule(root)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			logging.Warnf("watch: fsnotify error: %v\n", err)
		}
	}
}

// addTree watches dir and all of its subdirectories. A missing dir is
// skipped.
func addTree(fsw *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == dir && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			logging.Debugf("Verbose: watch skipping inaccessible path %s: %v\n", p, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", p, err)
		}
		return nil
	})
	return err
}

func owner[T any](roots map[string]T, name string) (string, string) {
	for root := range roots {
		rel, err := filepath.Rel(root, name)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return root, filepath.ToSlash(rel)
	}
	return "", ""
}

func ignored(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
