package diff

import (
	"github.com/Maeiro/MMMMM/internal/checksum"
	"github.com/Maeiro/MMMMM/internal/logging"
)

type ChangeType int

const (
	Added ChangeType = iota
	Modified
	Removed
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Diff lists the paths that changed between two digest maps. Each list is
// sorted case-insensitively and a path appears in at most one list.
type Diff struct {
	Added    []string
	Modified []string
	Removed  []string
}

// IsEmpty reports whether nothing changed.
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// Total returns the number of changed paths.
func (d Diff) Total() int {
	return len(d.Added) + len(d.Modified) + len(d.Removed)
}

// Compute compares an old snapshot against freshly computed digests.
func Compute(old, current checksum.Map) Diff {
	var d Diff
	for path, sum := range current {
		prev, ok := old[path]
		switch {
		case !ok:
			d.Added = append(d.Added, path)
		case prev != sum:
			d.Modified = append(d.Modified, path)
		}
	}
	for path := range old {
		if _, ok := current[path]; !ok {
			d.Removed = append(d.Removed, path)
		}
	}

	checksum.SortFold(d.Added)
	checksum.SortFold(d.Modified)
	checksum.SortFold(d.Removed)
	return d
}

// Filter keeps only the paths present in allowed. A nil allowed set returns d unchanged.
func Filter(d Diff, allowed map[string]bool) Diff {
	if allowed == nil {
		return d
	}
	keep := func(paths []string) []string {
		var out []string
		for _, p := range paths {
			if allowed[p] {
				out = append(out, p)
			}
		}
		checksum.SortFold(out)
		return out
	}
	return Diff{
		Added:    keep(d.Added),
		Modified: keep(d.Modified),
		Removed:  keep(d.Removed),
	}
}

// Log writes one line per changed path.
func Log(d Diff) {
	for _, group := range []struct {
		kind  ChangeType
		paths []string
	}{
		{Added, d.Added},
		{Modified, d.Modified},
		{Removed, d.Removed},
	} {
		for _, p := range group.paths {
			logging.Debugf("Verbose: checksum diff (since last snapshot) %s: %s\n", group.kind, p)
		}
	}
}
