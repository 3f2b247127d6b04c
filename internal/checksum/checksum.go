// Package checksum computes SHA-256 digest maps over file trees and persists
// them as snapshots between update runs.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Map maps a slash-separated, root-relative path to its lowercase hex digest.
type Map map[string]string

// UnknownTotal is reported as the total while a tree walk is still streaming.
const UnknownTotal = -1

const bufferSize = 8192

// ProgressFunc receives the number of processed files, the total (or
// UnknownTotal) and the label of the file being processed.
type ProgressFunc func(processed, total int, label string)

func (f ProgressFunc) report(processed, total int, label string) {
	if f != nil {
		f(processed, total, label)
	}
}

// Digest hashes r in fixed-size chunks.
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestFile hashes the file at path.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := Digest(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, nil
}

// Key converts a root-relative OS path into a digest map key.
func Key(rel string) string {
	return strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/")
}

// DigestTree hashes every regular file below root. The walk is streamed, so
// progress reports UnknownTotal as the total. A missing root yields an empty map.
func DigestTree(root string, onProgress ProgressFunc) (Map, error) {
	out := make(Map)
	processed := 0

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
		key := Key(rel)
		if processed == 0 {
			onProgress.report(0, UnknownTotal, "Starting...")
		}
		processed++
		onProgress.report(processed, UnknownTotal, key)

		sum, err := DigestFile(p)
		if err != nil {
			return err
		}
		out[key] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("digesting %s: %w", root, err)
	}

	if processed == 0 {
		onProgress.report(0, 0, "No files found")
	}
	return out, nil
}

// DigestPaths hashes only the listed relative paths under root. Paths that
// escape root or do not name a regular file are left out of the result.
func DigestPaths(root string, paths []string, onProgress ProgressFunc) (Map, error) {
	out := make(Map)
	if len(paths) == 0 {
		onProgress.report(0, 0, "No files found")
		return out, nil
	}

	sorted := slices.Clone(paths)
	SortFold(sorted)

	cleanRoot := filepath.Clean(root)
	for i, rel := range sorted {
		onProgress.report(i+1, len(sorted), rel)

		key := Key(rel)
		if !isLocal(key) {
			continue
		}
		full := filepath.Join(cleanRoot, filepath.FromSlash(key))
		info, err := os.Lstat(full)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		sum, err := DigestFile(full)
		if err != nil {
			return nil, err
		}
		out[key] = sum
	}
	return out, nil
}

// DigestTopLevel hashes the regular files directly inside root whose name ends
// with ext (case-insensitive). An empty ext matches every file.
func DigestTopLevel(root, ext string, onProgress ProgressFunc) (Map, error) {
	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !HasExt(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}

	out := make(Map)
	if len(names) == 0 {
		onProgress.report(0, 0, "No files found")
		return out, nil
	}
	onProgress.report(0, len(names), "Starting...")

	for i, name := range names {
		onProgress.report(i+1, len(names), name)
		sum, err := DigestFile(filepath.Join(root, name))
		if err != nil {
			return nil, err
		}
		out[name] = sum
	}
	return out, nil
}

// TopLevel returns the entries of m that name a file directly under the root
// with the given extension.
func (m Map) TopLevel(ext string) Map {
	out := make(Map)
	for k, v := range m {
		if !strings.Contains(k, "/") && HasExt(k, ext) {
			out[k] = v
		}
	}
	return out
}

// Restrict returns the entries of m whose keys are in keys.
func (m Map) Restrict(keys []string) Map {
	out := make(Map, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

// HasExt reports whether name ends with ext, ignoring case.
func HasExt(name, ext string) bool {
	if ext == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext))
}

// SortFold sorts names case-insensitively, falling back to byte order for ties.
func SortFold(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

func isLocal(key string) bool {
	if key == "" || path.IsAbs(key) || strings.Contains(key, ":") {
		return false
	}
	clean := path.Clean(key)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
