package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetVerbose(false)
		_ = Close()
		SetOutput(nil)
	})
	return &buf
}

func TestDebugfRespectsVerbose(t *testing.T) {
	buf := captureOutput(t)

	Debugf("hidden %d\n", 1)
	if buf.Len() != 0 {
		t.Fatalf("Debugf wrote %q while verbose is off", buf.String())
	}

	SetVerbose(true)
	Debugf("shown %d\n", 2)
	if got := buf.String(); got != "shown 2\n" {
		t.Fatalf("Debugf output=%q want=%q", got, "shown 2\n")
	}
}

func TestWarnfPrefix(t *testing.T) {
	buf := captureOutput(t)

	Warnf("disk %s\n", "full")
	if got := buf.String(); got != "Warning: disk full\n" {
		t.Fatalf("Warnf output=%q", got)
	}
}

func TestSetOutputFileTeesOutput(t *testing.T) {
	buf := captureOutput(t)
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	if err := SetOutputFile(path); err != nil {
		t.Fatalf("SetOutputFile failed: %v", err)
	}
	Infoln("hello")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("log file=%q want=%q", data, "hello\n")
	}
	if buf.String() != "hello\n" {
		t.Fatalf("console=%q want=%q", buf.String(), "hello\n")
	}
}

func TestNewWritesThroughSharedSink(t *testing.T) {
	buf := captureOutput(t)

	New("server").Info("listening", "port", 25566)
	got := buf.String()
	if !strings.Contains(got, "server") || !strings.Contains(got, "listening") || !strings.Contains(got, "port=25566") {
		t.Fatalf("structured output=%q", got)
	}
}
