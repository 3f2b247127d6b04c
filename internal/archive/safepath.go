// Package archive applies mod and config bundles to a destination directory.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrUnsafePath marks an archive entry that resolves outside the destination.
var ErrUnsafePath = errors.New("archive entry outside destination")

// UnsafePathError names the offending entry.
type UnsafePathError struct {
	Entry string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("blocked zip entry outside destination: %s", e.Entry)
}

func (e *UnsafePathError) Unwrap() error {
	return ErrUnsafePath
}

// EntryName normalizes separators in an archive entry name.
func EntryName(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

// SafeJoin resolves an archive entry under root. It fails with an
// *UnsafePathError when the normalized result would leave root.
func SafeJoin(root, name string) (string, error) {
	n := EntryName(name)
	if path.IsAbs(n) || filepath.IsAbs(n) || hasVolume(n) {
		return "", &UnsafePathError{Entry: name}
	}

	cleanRoot := filepath.Clean(root)
	full := filepath.Join(cleanRoot, filepath.FromSlash(n))
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(os.PathSeparator)) {
		return "", &UnsafePathError{Entry: name}
	}
	return full, nil
}

// hasVolume reports drive letters and other volume syntax. A colon is an
// ordinary file name character outside Windows.
func hasVolume(n string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return filepath.VolumeName(n) != "" || strings.Contains(n, ":")
}

// StripPrefix removes prefix (treated as a directory) from an entry name and
// drops any leading slash. Entries outside prefix are returned unchanged.
func StripPrefix(name, prefix string) string {
	n := EntryName(name)
	if p := EntryName(strings.TrimSpace(prefix)); p != "" {
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		n = strings.TrimPrefix(n, p)
	}
	n = strings.TrimPrefix(n, "/")
	return strings.TrimSpace(n)
}
