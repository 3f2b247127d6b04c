package archive

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseRemovalList(t *testing.T) {
	t.Parallel()

	got, err := ParseRemovalList([]byte(`[" a.jar ", "", 5, null, "b.jar", {"a":1}]`))
	if err != nil {
		t.Fatalf("ParseRemovalList failed: %v", err)
	}
	want := []string{"a.jar", "5", "b.jar", `{"a":1}`}
	if !slices.Equal(got, want) {
		t.Fatalf("names=%q want=%q", got, want)
	}

	if _, err := ParseRemovalList([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed list")
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"a.jar":               "a.jar",
		"  mods/b.jar ":       "b.jar",
		`C:\games\mods\c.jar`: "c.jar",
		"dir/":                "",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestRemoveByName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"Old.jar", "keep.jar"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	report := RemoveByName(dir, []string{"old.jar", "OLD.jar", "ghost.jar", "readme.md", ""}, ".jar", nil)
	if !slices.Equal(report.Removed, []string{"Old.jar"}) {
		t.Fatalf("Removed=%v", report.Removed)
	}
	if !slices.Equal(report.Missing, []string{"ghost.jar"}) {
		t.Fatalf("Missing=%v", report.Missing)
	}
	if !slices.Equal(report.Invalid, []string{"readme.md", ""}) {
		t.Fatalf("Invalid=%v", report.Invalid)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.jar")); err != nil {
		t.Fatalf("keep.jar should remain: %v", err)
	}

	lines := report.Lines()
	if len(lines) != 3 || lines[0] != "Mods removed by list: Old.jar" {
		t.Fatalf("Lines=%v", lines)
	}
}

func TestRemovalListNonStringsReportedInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.jar"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	names, err := ParseRemovalList([]byte(`["old.jar", 123, null, {"a":1}]`))
	if err != nil {
		t.Fatalf("ParseRemovalList failed: %v", err)
	}
	report := RemoveByName(dir, names, ".jar", nil)
	if !slices.Equal(report.Removed, []string{"old.jar"}) {
		t.Fatalf("Removed=%v", report.Removed)
	}
	if want := []string{"123", `{"a":1}`}; !slices.Equal(report.Invalid, want) {
		t.Fatalf("Invalid=%q want=%q", report.Invalid, want)
	}
}

func TestRemoveByNameEmpty(t *testing.T) {
	t.Parallel()

	report := RemoveByName(t.TempDir(), nil, ".jar", nil)
	if len(report.Lines()) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
