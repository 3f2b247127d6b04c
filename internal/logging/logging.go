package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var (
	verbose atomic.Bool

	mu         sync.Mutex
	output     io.Writer = os.Stdout
	base       io.Writer = os.Stdout
	outputFile *os.File
	outputPath string
)

// SetVerbose enables or disables debug logging for the current process.
func SetVerbose(enabled bool) {
	verbose.Store(enabled)
}

// Verbose reports whether debug logging is enabled.
func Verbose() bool {
	return verbose.Load()
}

// SetOutput replaces the console writer. A nil writer restores stdout.
// An open log file keeps receiving a copy of everything written.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	mu.Lock()
	defer mu.Unlock()
	base = w
	rewire()
}

// SetOutputFile tees all output into path, appending. An empty path turns
// file logging off; reopening the current path is a no-op.
func SetOutputFile(path string) error {
	path = strings.TrimSpace(path)

	mu.Lock()
	defer mu.Unlock()
	if path == outputPath {
		return nil
	}
	if err := closeFileLocked(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	outputFile, outputPath = f, path
	rewire()
	return nil
}

// Close closes the log file if one is configured.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeFileLocked()
}

func closeFileLocked() error {
	if outputFile == nil {
		return nil
	}
	err := outputFile.Close()
	outputFile, outputPath = nil, ""
	rewire()
	return err
}

// rewire rebuilds output from base and the log file. mu must be held.
func rewire() {
	if outputFile != nil {
		output = io.MultiWriter(base, outputFile)
		return
	}
	output = base
}

func printf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, format, args...)
}

// Infof prints formatted output regardless of verbosity level.
func Infof(format string, args ...any) { printf(format, args...) }

// Infoln prints output regardless of verbosity level.
func Infoln(args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(output, args...)
}

// Warnf prefixes the message with "Warning: ".
func Warnf(format string, args ...any) { printf("Warning: "+format, args...) }

// Debugf prints only in verbose mode.
func Debugf(format string, args ...any) {
	if Verbose() {
		printf(format, args...)
	}
}

// sink serializes structured log records with the plain helpers above.
type sink struct{}

func (sink) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	return output.Write(p)
}

// New returns a structured logger that shares the process output and log file.
// The level follows the verbose flag at construction time.
func New(prefix string) *log.Logger {
	level := log.InfoLevel
	if Verbose() {
		level = log.DebugLevel
	}
	return log.NewWithOptions(sink{}, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportTimestamp: true,
	})
}
