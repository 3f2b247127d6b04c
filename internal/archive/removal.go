package archive

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Maeiro/MMMMM/internal/checksum"
	"github.com/Maeiro/MMMMM/internal/logging"
)

// RemovalListName is the reserved entry listing artifacts to delete on the client.
const RemovalListName = "modsToRemoveFromTheClient.json"

// RemovalReport partitions the names requested by a removal list.
type RemovalReport struct {
	Removed []string
	Missing []string
	Invalid []string
}

// Lines renders the report for the update summary.
func (r RemovalReport) Lines() []string {
	var lines []string
	if len(r.Removed) > 0 {
		lines = append(lines, "Mods removed by list: "+strings.Join(r.Removed, ", "))
	}
	if len(r.Missing) > 0 {
		lines = append(lines, "Mods not found for removal: "+strings.Join(r.Missing, ", "))
	}
	if len(r.Invalid) > 0 {
		lines = append(lines, fmt.Sprintf("Invalid entries in %s: %s", RemovalListName, strings.Join(r.Invalid, ", ")))
	}
	return lines
}

// ParseRemovalList decodes a JSON array of names, dropping blank and null
// values. Other non-string elements are kept in their JSON form so they are
// reported as invalid.
func ParseRemovalList(data []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", RemovalListName, err)
	}
	var names []string
	for _, v := range raw {
		if strings.TrimSpace(string(v)) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			s = string(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	return names, nil
}

// NormalizeName reduces a requested name to its trimmed basename.
func NormalizeName(name string) string {
	n := EntryName(strings.TrimSpace(name))
	if i := strings.LastIndex(n, "/"); i >= 0 {
		n = n[i+1:]
	}
	return strings.TrimSpace(n)
}

// RemoveByName deletes every regular file under dir whose basename matches
// one of names, ignoring case. Names that are blank or lack ext are invalid.
func RemoveByName(dir string, names []string, ext string, onProgress ProgressFunc) RemovalReport {
	var report RemovalReport
	if len(names) == 0 {
		return report
	}

	requested := make(map[string]string)
	var order []string
	for _, raw := range names {
		n := NormalizeName(raw)
		if n == "" || !checksum.HasExt(n, ext) {
			report.Invalid = append(report.Invalid, raw)
			continue
		}
		key := strings.ToLower(n)
		if _, ok := requested[key]; ok {
			continue
		}
		requested[key] = n
		order = append(order, key)
	}
	if len(requested) == 0 {
		return report
	}

	removed := make(map[string]bool)
	checked := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		checked++
		onProgress.report(StageRemove, checked, checksum.UnknownTotal, d.Name())

		key := strings.ToLower(d.Name())
		if _, ok := requested[key]; !ok {
			return nil
		}
		if err := os.Remove(p); err != nil {
			logging.Warnf("failed to remove mod %s: %v\n", d.Name(), err)
			return nil
		}
		report.Removed = append(report.Removed, d.Name())
		removed[key] = true
		return nil
	})
	if err != nil {
		logging.Warnf("failed to remove mods listed in %s: %v\n", RemovalListName, err)
	}

	for _, key := range order {
		if !removed[key] {
			report.Missing = append(report.Missing, requested[key])
		}
	}
	return report
}
