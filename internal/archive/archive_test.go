package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

type entry struct {
	name    string
	content string
}

func writeZip(t *testing.T, path string, entries []entry) {
	t.Helper()
	if err := os.WriteFile(path, zipBytes(t, entries), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func zipBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.content)); err != nil {
			t.Fatalf("Write(%s) failed: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return buf.Bytes()
}

func modJar(t *testing.T, modID, version string) string {
	t.Helper()
	toml := "[[mods]]\nmodId = \"" + modID + "\"\nversion = \"" + version + "\"\n"
	return string(zipBytes(t, []entry{{name: "META-INF/mods.toml", content: toml}}))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) failed: %v", path, err)
	}
	return string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSafeJoin(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tests := []struct {
		name string
		ok   bool
	}{
		{name: "a/b.jar", ok: true},
		{name: "", ok: true},
		{name: "sub/../c.jar", ok: true},
		{name: "../x.jar", ok: false},
		{name: "a/../../x.jar", ok: false},
		{name: `..\x.jar`, ok: false},
		{name: "/etc/passwd", ok: false},
		{name: "mod:1.jar", ok: runtime.GOOS != "windows"},
		{name: "C:/windows/x.jar", ok: runtime.GOOS != "windows"},
	}
	for _, tt := range tests {
		got, err := SafeJoin(root, tt.name)
		if tt.ok {
			if err != nil {
				t.Fatalf("SafeJoin(%q) unexpected error: %v", tt.name, err)
			}
			if !strings.HasPrefix(got, root) {
				t.Fatalf("SafeJoin(%q)=%q not under %q", tt.name, got, root)
			}
			continue
		}
		if !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("SafeJoin(%q) err=%v want ErrUnsafePath", tt.name, err)
		}
		var upe *UnsafePathError
		if !errors.As(err, &upe) || upe.Entry != tt.name {
			t.Fatalf("SafeJoin(%q) err=%#v", tt.name, err)
		}
	}
}

func TestStripPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, prefix, want string
	}{
		{"config/a.cfg", "config/", "a.cfg"},
		{"config/a.cfg", "config", "a.cfg"},
		{`config\sub\b.cfg`, "config/", "sub/b.cfg"},
		{"other/a.cfg", "config/", "other/a.cfg"},
		{"/lead.cfg", "", "lead.cfg"},
		{"config/", "config/", ""},
	}
	for _, tt := range tests {
		if got := StripPrefix(tt.name, tt.prefix); got != tt.want {
			t.Fatalf("StripPrefix(%q, %q)=%q want=%q", tt.name, tt.prefix, got, tt.want)
		}
	}
}

func TestExtractPlain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "config.zip")
	dest := filepath.Join(dir, "config")
	writeZip(t, zipPath, []entry{
		{name: "config/"},
		{name: "config/a.cfg", content: "new-a"},
		{name: "config/nested/b.json", content: "{}"},
	})
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dest, "a.cfg"), []byte("old-a"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var stages []Stage
	got, err := ExtractPlain(context.Background(), zipPath, dest, "config/", func(s Stage, _, _ int, _ string) {
		stages = append(stages, s)
	})
	if err != nil {
		t.Fatalf("ExtractPlain failed: %v", err)
	}
	if !slices.Equal(got, []string{"a.cfg", "nested/b.json"}) {
		t.Fatalf("extracted=%v", got)
	}
	if readFile(t, filepath.Join(dest, "a.cfg")) != "new-a" {
		t.Fatalf("a.cfg was not overwritten")
	}
	if readFile(t, filepath.Join(dest, "nested", "b.json")) != "{}" {
		t.Fatalf("nested/b.json content mismatch")
	}
	if len(stages) != 2 || stages[0] != StageExtract {
		t.Fatalf("progress stages=%v", stages)
	}
}

func TestExtractPlainRejectsEscapingEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	dest := filepath.Join(dir, "dest")
	writeZip(t, zipPath, []entry{
		{name: "good.cfg", content: "ok"},
		{name: "../escape.cfg", content: "bad"},
	})

	_, err := ExtractPlain(context.Background(), zipPath, dest, "", nil)
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("err=%v want ErrUnsafePath", err)
	}
	if exists(filepath.Join(dir, "escape.cfg")) {
		t.Fatalf("escaping entry was written")
	}
	if exists(filepath.Join(dest, "good.cfg")) {
		t.Fatalf("archive with an unsafe entry was partially extracted")
	}
}

func TestExtractPlainHonorsCancellation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "config.zip")
	writeZip(t, zipPath, []entry{{name: "a.cfg", content: "a"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ExtractPlain(ctx, zipPath, filepath.Join(dir, "out"), "", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestDigestEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "config.zip")
	writeZip(t, zipPath, []entry{
		{name: "config/"},
		{name: "config/a.cfg", content: "abc"},
		{name: "config/sub/b.cfg", content: ""},
	})

	got, err := DigestEntries(context.Background(), zipPath, "config/", nil)
	if err != nil {
		t.Fatalf("DigestEntries failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("digests=%+v", got)
	}
	if got["a.cfg"] != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("a.cfg digest=%q", got["a.cfg"])
	}
	if _, ok := got["sub/b.cfg"]; !ok {
		t.Fatalf("missing sub/b.cfg in %+v", got)
	}
}
