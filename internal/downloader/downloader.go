package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Maeiro/MMMMM/internal/logging"
)

// DefaultTimeout bounds connecting, waiting for response headers, and each
// idle gap between body reads. There is no overall deadline.
const DefaultTimeout = 5 * time.Second

const (
	maxRetries = 3
	chunkSize  = 8192
)

// ErrHTTPStatus is wrapped by *StatusError.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

var errIdle = errors.New("read timed out")

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d for %s", e.Code, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrHTTPStatus
}

// Progress describes a download in flight. Total is -1 when the server did
// not send a content length.
type Progress struct {
	Downloaded int64
	Total      int64
	Elapsed    time.Duration
}

// KnownLength reports whether Total is meaningful.
func (p Progress) KnownLength() bool {
	return p.Total > 0
}

// Percent returns completion in the range [0, 100], or 0 when the length is unknown.
func (p Progress) Percent() int {
	if !p.KnownLength() {
		return 0
	}
	pct := int(p.Downloaded * 100 / p.Total)
	return min(max(pct, 0), 100)
}

// Options configures a single download.
type Options struct {
	Client     *http.Client
	Timeout    time.Duration
	OnProgress func(Progress)
}

// NewClient returns a client with connect and response-header timeouts.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

// DownloadToFile streams url into destPath with retries on transient failures.
// The destination is replaced only after the body has been fully written.
// It returns the number of bytes written.
func DownloadToFile(ctx context.Context, url, destPath string, opts Options) (int64, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = NewClient(opts.Timeout)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logging.Debugf("Verbose: retrying download %s attempt=%d/%d\n", url, attempt+1, maxRetries)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}

		n, err := downloadOnce(ctx, url, destPath, opts)
		if err == nil {
			return n, nil
		}
		if !retryable(ctx, err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	var pe *os.PathError
	return !errors.As(err, &pe)
}

func downloadOnce(ctx context.Context, url, destPath string, opts Options) (int64, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	logging.Debugf("Verbose: connected to %s status=%d length=%d\n", url, resp.StatusCode, resp.ContentLength)
	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{URL: url, Code: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating download dir: %w", err)
	}
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", tmpPath, err)
	}

	idle := time.AfterFunc(opts.Timeout, func() { cancel(errIdle) })
	defer idle.Stop()

	n, err := copyWithProgress(reqCtx, f, resp.Body, resp.ContentLength, idle, opts)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmpPath)
		if cause := context.Cause(reqCtx); errors.Is(cause, errIdle) {
			return 0, fmt.Errorf("reading %s: %w", url, cause)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("reading %s: %w", url, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing %s: %w", tmpPath, closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("finalizing %s: %w", destPath, err)
	}
	logging.Debugf("Verbose: download complete file=%s bytes=%d\n", destPath, n)
	return n, nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, length int64, idle *time.Timer, opts Options) (int64, error) {
	total := length
	if total <= 0 {
		total = -1
	}
	start := time.Now()
	buf := make([]byte, chunkSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		idle.Reset(opts.Timeout)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{Downloaded: written, Total: total, Elapsed: time.Since(start)})
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
