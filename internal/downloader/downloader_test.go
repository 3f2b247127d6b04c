package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestDownloadToFileWithLength(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("x", 3*chunkSize+17)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "shared", "mods.zip")
	var last Progress
	var calls int
	n, err := DownloadToFile(context.Background(), srv.URL+"/mods.zip", dest, Options{
		OnProgress: func(p Progress) {
			if p.Downloaded < last.Downloaded {
				t.Errorf("progress went backwards: %d after %d", p.Downloaded, last.Downloaded)
			}
			last = p
			calls++
		},
	})
	if err != nil {
		t.Fatalf("DownloadToFile failed: %v", err)
	}
	if n != int64(len(body)) {
		t.Fatalf("bytes=%d want=%d", n, len(body))
	}
	if calls == 0 || last.Percent() != 100 || !last.KnownLength() {
		t.Fatalf("final progress=%+v calls=%d", last, calls)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != body {
		t.Fatalf("downloaded content mismatch")
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file should be gone, stat err=%v", err)
	}
}

func TestDownloadToFileUnknownLength(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("part-1"))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("part-2"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "config.zip")
	var last Progress
	if _, err := DownloadToFile(context.Background(), srv.URL, dest, Options{
		OnProgress: func(p Progress) { last = p },
	}); err != nil {
		t.Fatalf("DownloadToFile failed: %v", err)
	}
	if last.KnownLength() || last.Total != -1 || last.Percent() != 0 {
		t.Fatalf("progress=%+v want unknown length", last)
	}
	if last.Downloaded != int64(len("part-1part-2")) {
		t.Fatalf("downloaded=%d", last.Downloaded)
	}
}

func TestDownloadToFileNotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "mods.zip")
	_, err := DownloadToFile(context.Background(), srv.URL+"/mods.zip", dest, Options{})
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("err=%v want ErrHTTPStatus", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("err=%#v want StatusError 404", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d want=1", hits.Load())
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err=%v", err)
	}
}

func TestDownloadToFileCancelKeepsPreviousFile(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		_, _ = w.Write([]byte(strings.Repeat("y", chunkSize)))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	dest := filepath.Join(t.TempDir(), "mods.zip")
	if err := os.WriteFile(dest, []byte("previous"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := DownloadToFile(ctx, srv.URL, dest, Options{
		OnProgress: func(p Progress) {
			if p.Downloaded > 0 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "previous" {
		t.Fatalf("previous download was replaced: %q", data)
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "server error", err: &StatusError{Code: 503}, want: true},
		{name: "not found", err: &StatusError{Code: 404}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "local file", err: &os.PathError{Op: "open", Path: "x", Err: os.ErrPermission}, want: false},
		{name: "transport", err: errors.New("connection reset"), want: true},
	}
	for _, tt := range tests {
		if got := retryable(ctx, tt.err); got != tt.want {
			t.Fatalf("%s: retryable=%t want=%t", tt.name, got, tt.want)
		}
	}
}
