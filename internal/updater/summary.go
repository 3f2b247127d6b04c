package updater

import (
	"fmt"
	"strings"

	"github.com/Maeiro/MMMMM/internal/diff"
	"github.com/Maeiro/MMMMM/internal/progress"
)

const maxChangeListItems = 5

const (
	titleComplete  = "Update complete"
	titleFailed    = "Update failed"
	titleCancelled = "Update cancelled"
)

// CancelledSummary is shown when a run stops because its context ended.
func CancelledSummary() progress.Summary {
	return progress.Summary{Title: titleCancelled, Lines: []string{"Update cancelled by user."}}
}

// BuildSummary renders the end-of-run report. failedEarly marks a run that
// stopped before every bundle was attempted.
func BuildSummary(base string, mods, cfg Outcome, failedEarly bool, extras []string) progress.Summary {
	s := progress.Summary{Title: titleComplete}
	if failedEarly {
		s.Title = titleFailed
	}

	configAttempted := cfg.State != StateDisabled
	configOK := !configAttempted || cfg.Succeeded()

	if mods.Succeeded() {
		s.Lines = append(s.Lines, summaryLine("Mods", mods.Diff))
		s.Details = append(s.Details, detailLine("Mods", mods.Diff))
	} else {
		line := fmt.Sprintf("Mods update failed for %s. Check logs for details.", base)
		s.Lines = append(s.Lines, line)
		s.Details = append(s.Details, line)
		s.Title = titleFailed
	}

	switch {
	case !configAttempted:
		s.Lines = append(s.Lines, "Config updates disabled.")
	case configOK:
		s.Lines = append(s.Lines, summaryLine("Config", cfg.Diff))
		s.Details = append(s.Details, detailLine("Config", cfg.Diff))
	default:
		line := fmt.Sprintf("Config update failed for %s. Check logs for details.", base)
		s.Lines = append(s.Lines, line)
		s.Details = append(s.Details, line)
		s.Title = titleFailed
	}

	switch {
	case mods.Changed():
		s.Lines = append(s.Lines, "Mods were updated. Please restart the game to apply them.")
	case !cfg.Changed() && !failedEarly && mods.Succeeded() && configOK:
		s.Lines = append(s.Lines, "No updates found.")
	}

	if len(extras) > 0 {
		s.Lines = append(s.Lines, fmt.Sprintf("Warnings: %d (see details)", len(extras)))
		s.Details = append(s.Details, extras...)
	}
	return s
}

func summaryLine(label string, d diff.Diff) string {
	if d.IsEmpty() {
		return label + ": no changes."
	}
	return fmt.Sprintf("%s updated: +%d ~%d -%d.", label, len(d.Added), len(d.Modified), len(d.Removed))
}

func detailLine(label string, d diff.Diff) string {
	if d.IsEmpty() {
		return label + ": no changes."
	}
	line := fmt.Sprintf("%s updated (added %d, modified %d, removed %d).", label, len(d.Added), len(d.Modified), len(d.Removed))

	var sections []string
	for _, sec := range []struct {
		label string
		items []string
	}{
		{"Added", d.Added},
		{"Modified", d.Modified},
		{"Removed", d.Removed},
	} {
		if len(sec.items) > 0 {
			sections = append(sections, changeSection(sec.label, sec.items))
		}
	}
	if len(sections) == 0 {
		return line
	}
	return line + " " + strings.Join(sections, " | ")
}

func changeSection(label string, items []string) string {
	shown := items[:min(len(items), maxChangeListItems)]
	text := label + ": " + strings.Join(shown, ", ")
	if rest := len(items) - len(shown); rest > 0 {
		text += fmt.Sprintf(" (+%d more)", rest)
	}
	return text
}
