package updater

import (
	"errors"
	"net/http"
	"time"

	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/diff"
	"github.com/Maeiro/MMMMM/internal/manifest"
	"github.com/Maeiro/MMMMM/internal/progress"
)

// ErrEmptyDownload reports a download that left no usable file behind.
var ErrEmptyDownload = errors.New("download is missing or empty")

// Options configures an update run.
type Options struct {
	BaseURL     string
	InstanceDir string
	// Layout overrides the directories derived from InstanceDir.
	Layout *config.Layout

	UpdateConfig   bool
	TrustConfigDir bool
	CurrentVersion string
	SelfID         string

	Timeout time.Duration
	Client  *http.Client
	Reader  manifest.Reader
	Sink    progress.Sink
}

// OptionsFromConfig builds run options from loaded client configuration.
func OptionsFromConfig(instanceDir, baseURL string, c config.ClientConfig) Options {
	layout := config.NewLayout(instanceDir, c)
	return Options{
		BaseURL:        baseURL,
		InstanceDir:    instanceDir,
		Layout:         &layout,
		UpdateConfig:   c.UpdateConfig,
		TrustConfigDir: c.TrustConfigDir,
		CurrentVersion: c.CurrentVersion,
		SelfID:         c.SelfID,
		Timeout:        c.Timeout,
	}
}

// State is a bundle's position in the update pipeline.
type State int

const (
	StateIdle State = iota
	StateDownloading
	StateValidating
	StateExtracting
	StateDiffing
	StateCompleted
	StateCancelled
	StateFailed
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDownloading:
		return "downloading"
	case StateValidating:
		return "validating"
	case StateExtracting:
		return "extracting"
	case StateDiffing:
		return "diffing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Outcome is the result of one bundle.
type Outcome struct {
	State State
	Diff  diff.Diff
	Err   error
}

func (o Outcome) Succeeded() bool { return o.State == StateCompleted }

func (o Outcome) Cancelled() bool { return o.State == StateCancelled }

func (o Outcome) Changed() bool { return o.Succeeded() && !o.Diff.IsEmpty() }

// Result is returned from Run.
type Result struct {
	RunID   string
	Skipped bool

	Mods   Outcome
	Config Outcome

	// Warnings collects non-fatal diagnostics such as removal-list problems.
	Warnings []string
	Summary  progress.Summary
}

// OK reports whether every attempted bundle completed.
func (r *Result) OK() bool {
	if r == nil {
		return false
	}
	if r.Skipped {
		return true
	}
	if !r.Mods.Succeeded() {
		return false
	}
	return r.Config.Succeeded() || r.Config.State == StateDisabled
}
