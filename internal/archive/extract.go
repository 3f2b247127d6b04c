package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Maeiro/MMMMM/internal/checksum"
	"github.com/Maeiro/MMMMM/internal/logging"
)

// Stage identifies which pass over a bundle is reporting progress.
type Stage int

const (
	StageIndex Stage = iota
	StageExtract
	StageRemove
	StageDigest
)

func (s Stage) String() string {
	switch s {
	case StageIndex:
		return "index"
	case StageExtract:
		return "extract"
	case StageRemove:
		return "remove"
	case StageDigest:
		return "digest"
	default:
		return "unknown"
	}
}

// ProgressFunc receives per-entry progress. total is checksum.UnknownTotal
// when the pass is streamed.
type ProgressFunc func(stage Stage, processed, total int, label string)

func (f ProgressFunc) report(stage Stage, processed, total int, label string) {
	if f != nil {
		f(stage, processed, total, label)
	}
}

// checkEntries rejects the whole archive if any entry would escape dest.
func checkEntries(files []*zip.File, dest, prefix string) error {
	for _, f := range files {
		name := f.Name
		if prefix != "" {
			name = StripPrefix(name, prefix)
		}
		if _, err := SafeJoin(dest, name); err != nil {
			return err
		}
	}
	return nil
}

// ExtractPlain writes every entry of the archive under dest after removing
// prefix from entry names, overwriting existing files. It returns the
// slash-separated relative paths of the files written.
func ExtractPlain(ctx context.Context, zipPath, dest, prefix string, onProgress ProgressFunc) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", zipPath, err)
	}
	defer r.Close()

	if err := checkEntries(r.File, dest, prefix); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dest, err)
	}

	var written []string
	total := len(r.File)
	for i, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := StripPrefix(f.Name, prefix)
		if name == "" {
			continue
		}
		onProgress.report(StageExtract, i+1, total, name)

		target, err := SafeJoin(dest, name)
		if err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", name, err)
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			return nil, err
		}
		written = append(written, checksum.Key(name))
	}

	logging.Debugf("Verbose: extracted %d files from %s into %s\n", len(written), filepath.Base(zipPath), dest)
	return written, nil
}

// DigestEntries hashes archive entries directly, keyed by their names with
// prefix removed. Directory entries are skipped.
func DigestEntries(ctx context.Context, zipPath, prefix string, onProgress ProgressFunc) (checksum.Map, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", zipPath, err)
	}
	defer r.Close()

	out := make(checksum.Map)
	total := len(r.File)
	processed := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		processed++
		name := StripPrefix(f.Name, prefix)
		if name == "" {
			continue
		}
		onProgress.report(StageDigest, processed, total, name)

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		sum, err := checksum.Digest(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("hashing entry %s: %w", f.Name, err)
		}
		out[checksum.Key(name)] = sum
	}
	return out, nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	_, err = io.Copy(out, rc)
	closeErr := out.Close()
	if err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", target, closeErr)
	}
	return nil
}
