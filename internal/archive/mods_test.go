package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/Maeiro/MMMMM/internal/manifest"
)

func TestSyncModsReplacesSameIdentity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mods := filepath.Join(dir, "mods")
	if err := os.MkdirAll(mods, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	oldJar := filepath.Join(mods, "alpha-1.0.jar")
	if err := os.WriteFile(oldJar, []byte(modJar(t, "alpha", "1.0")), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	otherJar := filepath.Join(mods, "beta-1.0.jar")
	if err := os.WriteFile(otherJar, []byte(modJar(t, "beta", "1.0")), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	zipPath := filepath.Join(dir, "mods.zip")
	writeZip(t, zipPath, []entry{
		{name: "alpha-2.0.jar", content: modJar(t, "Alpha", "2.0")},
		{name: "readme.txt", content: "hi"},
	})

	got, err := SyncMods(context.Background(), zipPath, mods, SyncOptions{})
	if err != nil {
		t.Fatalf("SyncMods failed: %v", err)
	}
	if !slices.Equal(got, []string{"alpha-2.0.jar", "readme.txt"}) {
		t.Fatalf("extracted=%v", got)
	}
	if exists(oldJar) {
		t.Fatalf("old artifact with same identity should be deleted")
	}
	if !exists(otherJar) {
		t.Fatalf("artifact with a different identity should be kept")
	}
	if !exists(filepath.Join(mods, "alpha-2.0.jar")) {
		t.Fatalf("new artifact missing")
	}
}

func TestSyncModsKeepsInPlaceOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mods := filepath.Join(dir, "mods")
	if err := os.MkdirAll(mods, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	same := filepath.Join(mods, "alpha.jar")
	if err := os.WriteFile(same, []byte(modJar(t, "alpha", "1.0")), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	zipPath := filepath.Join(dir, "mods.zip")
	newContent := modJar(t, "alpha", "2.0")
	writeZip(t, zipPath, []entry{{name: "alpha.jar", content: newContent}})

	if _, err := SyncMods(context.Background(), zipPath, mods, SyncOptions{}); err != nil {
		t.Fatalf("SyncMods failed: %v", err)
	}
	if readFile(t, same) != newContent {
		t.Fatalf("alpha.jar should hold the bundled content")
	}
}

func TestSyncModsDuplicateIdentityInBundleLastWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mods := filepath.Join(dir, "mods")
	zipPath := filepath.Join(dir, "mods.zip")
	writeZip(t, zipPath, []entry{
		{name: "alpha-a.jar", content: modJar(t, "alpha", "1.0")},
		{name: "alpha-b.jar", content: modJar(t, "alpha", "1.1")},
	})

	if _, err := SyncMods(context.Background(), zipPath, mods, SyncOptions{}); err != nil {
		t.Fatalf("SyncMods failed: %v", err)
	}
	if exists(filepath.Join(mods, "alpha-a.jar")) {
		t.Fatalf("earlier artifact with same identity should be replaced")
	}
	if !exists(filepath.Join(mods, "alpha-b.jar")) {
		t.Fatalf("last artifact missing")
	}
}

func TestSyncModsUnknownIdentityExtractsWithoutCleanup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mods := filepath.Join(dir, "mods")
	if err := os.MkdirAll(mods, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	installed := filepath.Join(mods, "alpha.jar")
	if err := os.WriteFile(installed, []byte(modJar(t, "alpha", "1.0")), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	zipPath := filepath.Join(dir, "mods.zip")
	writeZip(t, zipPath, []entry{
		{name: "plain.jar", content: "not a zip"},
		{name: "bare.jar", content: string(zipBytes(t, []entry{{name: "x.class", content: "x"}}))},
	})

	got, err := SyncMods(context.Background(), zipPath, mods, SyncOptions{})
	if err != nil {
		t.Fatalf("SyncMods failed: %v", err)
	}
	if len(got) != 2 || !exists(installed) {
		t.Fatalf("extracted=%v installed kept=%t", got, exists(installed))
	}
}

func TestSyncModsAppliesRemovalList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mods := filepath.Join(dir, "mods")
	if err := os.MkdirAll(filepath.Join(mods, "nested"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, name := range []string{"old.jar", "keep.jar", filepath.Join("nested", "OLD2.jar")} {
		if err := os.WriteFile(filepath.Join(mods, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	zipPath := filepath.Join(dir, "mods.zip")
	writeZip(t, zipPath, []entry{
		{name: RemovalListName, content: `["old.jar", "some/dir/old2.jar", "ghost.jar", "notes.txt", "  ", "OLD.JAR"]`},
		{name: "fresh.jar", content: "y"},
	})

	diag := &Diagnostics{}
	got, err := SyncMods(context.Background(), zipPath, mods, SyncOptions{Diagnostics: diag})
	if err != nil {
		t.Fatalf("SyncMods failed: %v", err)
	}
	if !slices.Equal(got, []string{"fresh.jar"}) {
		t.Fatalf("extracted=%v", got)
	}
	if exists(filepath.Join(mods, "old.jar")) || exists(filepath.Join(mods, "nested", "OLD2.jar")) {
		t.Fatalf("listed artifacts should be deleted")
	}
	if !exists(filepath.Join(mods, "keep.jar")) {
		t.Fatalf("keep.jar should be retained")
	}
	if exists(filepath.Join(mods, RemovalListName)) {
		t.Fatalf("removal list must not be extracted")
	}

	lines := strings.Join(diag.Lines(), "\n")
	for _, want := range []string{
		"Mods removed by list: ",
		"Mods not found for removal: ghost.jar",
		"Invalid entries in modsToRemoveFromTheClient.json: notes.txt",
	} {
		if !strings.Contains(lines, want) {
			t.Fatalf("diagnostics missing %q:\n%s", want, lines)
		}
	}
	if !strings.Contains(lines, "old.jar") || !strings.Contains(lines, "OLD2.jar") {
		t.Fatalf("removed names missing from diagnostics:\n%s", lines)
	}
}

func TestSyncModsMalformedRemovalListIsIgnored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mods := filepath.Join(dir, "mods")
	zipPath := filepath.Join(dir, "mods.zip")
	writeZip(t, zipPath, []entry{
		{name: RemovalListName, content: `{"not": "an array"}`},
		{name: "a.jar", content: "x"},
	})

	diag := &Diagnostics{}
	if _, err := SyncMods(context.Background(), zipPath, mods, SyncOptions{Diagnostics: diag}); err != nil {
		t.Fatalf("SyncMods failed: %v", err)
	}
	if diag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", diag.Lines())
	}
}

func TestSyncModsSelfUpdateWarning(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bundled string
		current string
		warn    bool
	}{
		{name: "different version", bundled: "1.3.0", current: "1.2.0", warn: true},
		{name: "equal after normalization", bundled: "v1.2", current: "1.2.0", warn: false},
		{name: "unknown current", bundled: "1.3.0", current: "unknown", warn: false},
		{name: "blank current", bundled: "1.3.0", current: "", warn: false},
		{name: "unexpanded template", bundled: "${file.jarVersion}", current: "1.2.0", warn: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			zipPath := filepath.Join(dir, "mods.zip")
			writeZip(t, zipPath, []entry{
				{name: "mmmmm-a.jar", content: modJar(t, "mmmmm", tt.bundled)},
				{name: "mmmmm-b.jar", content: modJar(t, "mmmmm", tt.bundled)},
			})

			diag := &Diagnostics{}
			_, err := SyncMods(context.Background(), zipPath, filepath.Join(dir, "mods"), SyncOptions{
				CurrentVersion: tt.current,
				Diagnostics:    diag,
			})
			if err != nil {
				t.Fatalf("SyncMods failed: %v", err)
			}
			want := 0
			if tt.warn {
				want = 1
			}
			if diag.Len() != want {
				t.Fatalf("warnings=%v want %d", diag.Lines(), want)
			}
			if tt.warn && !strings.Contains(diag.Lines()[0], "contains MMMMM 1.3.0 (current: 1.2.0)") {
				t.Fatalf("warning text=%q", diag.Lines()[0])
			}
		})
	}
}

func TestSyncModsRejectsEscapingEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mods := filepath.Join(dir, "mods")
	zipPath := filepath.Join(dir, "mods.zip")
	writeZip(t, zipPath, []entry{
		{name: "ok.jar", content: "x"},
		{name: "../../evil.jar", content: "x"},
	})

	_, err := SyncMods(context.Background(), zipPath, mods, SyncOptions{})
	var upe *UnsafePathError
	if !errors.As(err, &upe) || upe.Entry != "../../evil.jar" {
		t.Fatalf("err=%v want UnsafePathError", err)
	}
	if exists(filepath.Join(mods, "ok.jar")) {
		t.Fatalf("nothing should be written when an entry is unsafe")
	}
}

type countingReader struct {
	manifest.TOMLReader
	files int
}

func (c *countingReader) ReadIdentityFile(path string) (manifest.Identity, error) {
	c.files++
	return c.TOMLReader.ReadIdentityFile(path)
}

func TestIndexInstalled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for name, content := range map[string]string{
		"a.jar":             modJar(t, "alpha", "1"),
		"nested/a-copy.jar": modJar(t, "alpha", "2"),
		"b.jar":             "not a jar",
		"notes.txt":         "x",
	} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	reader := &countingReader{}
	var calls int
	index := IndexInstalled(dir, reader, ".jar", func(stage Stage, _, total int, _ string) {
		if stage != StageIndex || total != 3 {
			t.Errorf("stage=%v total=%d", stage, total)
		}
		calls++
	})
	if reader.files != 3 || calls != 3 {
		t.Fatalf("read %d artifacts, %d progress calls; want 3", reader.files, calls)
	}
	if len(index) != 1 || len(index["alpha"]) != 2 {
		t.Fatalf("index=%v", index)
	}

	if got := IndexInstalled(filepath.Join(dir, "missing"), reader, ".jar", nil); len(got) != 0 {
		t.Fatalf("missing dir should give empty index, got %v", got)
	}
}
