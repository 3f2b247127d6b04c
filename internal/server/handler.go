package server

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Maeiro/MMMMM/internal/archive"
)

// Handler returns the file handler, bounded by the worker limit.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}

		select {
		case s.slots <- struct{}{}:
		case <-r.Context().Done():
			// Client left while waiting for a slot.
			return
		}
		s.metrics.IncInFlight()
		defer func() {
			<-s.slots
			s.metrics.DecInFlight()
			elapsed := time.Since(start)
			s.metrics.ObserveRequest(r.Method, strconv.Itoa(rec.status), rec.bytes, elapsed.Seconds())
			s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "bytes", rec.bytes, "duration", elapsed)
		}()

		s.serveFile(rec, r)
	})
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimLeft(r.URL.Path, "/")
	full, err := archive.SafeJoin(s.root, name)
	if err != nil {
		s.logger.Warn("blocked request outside root", "path", r.URL.Path, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()):
		http.Error(w, "Not found", http.StatusNotFound)
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	defer f.Close()

	// Always the whole file: no ranges or conditional responses.
	w.Header().Set("Content-Type", contentType(full))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Debug("copy interrupted", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("serving file", "path", r.URL.Path, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func contentType(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return "application/zip"
	}
	return "application/octet-stream"
}

// recorder captures the status code and body size for metrics.
type recorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}
