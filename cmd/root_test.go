package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/updater"
)

func TestUsageArgsWrapsValidationErrors(t *testing.T) {
	wrapped := usageArgs(cobra.ExactArgs(1))
	cmd := &cobra.Command{Use: "test"}

	if err := wrapped(cmd, []string{"ok"}); err != nil {
		t.Fatalf("usageArgs returned unexpected error for valid args: %v", err)
	}

	err := wrapped(cmd, nil)
	if err == nil {
		t.Fatalf("usageArgs should return an error for invalid args")
	}
	if !isUsageError(err) {
		t.Fatalf("usageArgs error should be marked as usage error: %v", err)
	}
}

func TestIsUsageError(t *testing.T) {
	if !isUsageError(wrapUsageError(errors.New("bad args"))) {
		t.Fatalf("wrapped usage error not detected")
	}
	if !isUsageError(errors.New(`unknown command "foo" for "mmmmm"`)) {
		t.Fatalf("unknown command error should be treated as usage error")
	}
	if isUsageError(errors.New("runtime failure")) {
		t.Fatalf("runtime failure should not be treated as usage error")
	}
}

func TestResolveBaseURL(t *testing.T) {
	cfg = config.DefaultConfig()
	serversFile = filepath.Join(t.TempDir(), "servers.toml")
	t.Cleanup(func() {
		cfg = nil
		serversFile = ""
		updateURL = ""
	})

	got, err := resolveBaseURL(nil)
	if err != nil || got != "" {
		t.Fatalf("resolveBaseURL(nil)=%q, %v want empty", got, err)
	}

	got, err = resolveBaseURL([]string{"play.example.com:25565"})
	if err != nil {
		t.Fatalf("resolveBaseURL: %v", err)
	}
	if want := "http://play.example.com:25566"; got != want {
		t.Fatalf("resolveBaseURL=%q want=%q", got, want)
	}
	reg, err := openRegistry()
	if err != nil {
		t.Fatalf("openRegistry: %v", err)
	}
	if _, ok := reg.Get("play.example.com:25565"); !ok {
		t.Fatalf("default URL was not recorded")
	}

	updateURL = "http://override:1"
	if got, _ := resolveBaseURL([]string{"play.example.com:25565"}); got != updateURL {
		t.Fatalf("resolveBaseURL=%q want=%q", got, updateURL)
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, &updater.StatusReport{
		BaseURL: "http://host:25566",
		ModsURL: "http://host:25566/mods.zip",
		Mods:    updater.SnapshotStatus{Exists: true, Entries: 3, Updated: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	})
	out := buf.String()
	for _, want := range []string{
		"Mods bundle:  http://host:25566/mods.zip",
		"Mods:         3 files, last synced 2026-01-02 03:04:05",
		"Config:       never synced",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}
