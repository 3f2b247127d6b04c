// Package progress carries update progress from the worker to whatever is
// rendering it.
package progress

import (
	"github.com/Maeiro/MMMMM/internal/downloader"
)

type Kind int

const (
	// KindStart begins a bundle download.
	KindStart Kind = iota
	// KindDownload reports transfer progress.
	KindDownload
	// KindProcessing reports a post-download phase (validate, extract, diff).
	KindProcessing
	// KindSummary ends a run.
	KindSummary
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindDownload:
		return "download"
	case KindProcessing:
		return "processing"
	case KindSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// Event is one progress update. Which fields are set depends on Kind.
type Event struct {
	Kind   Kind
	Bundle string
	URL    string

	Title  string
	Detail string

	// Percent is meaningful only when Determinate is true.
	Percent     int
	Determinate bool

	Speed string
	ETA   string

	Bytes int64
	Total int64

	Summary *Summary
}

// Summary is shown once when a run ends.
type Summary struct {
	Title   string
	Lines   []string
	Details []string
}

// Sink receives events from the update worker. Emit must not block on
// rendering.
type Sink interface {
	Emit(Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(Event) {}

// Start builds the event that opens a bundle download.
func Start(bundle, url string) Event {
	return Event{Kind: KindStart, Bundle: bundle, URL: url, Title: "Downloading " + bundle + "..."}
}

// Download converts transfer progress into an event.
func Download(bundle string, p downloader.Progress) Event {
	return Event{
		Kind:        KindDownload,
		Bundle:      bundle,
		Percent:     p.Percent(),
		Determinate: p.KnownLength(),
		Speed:       FormatSpeed(p.Downloaded, p.Elapsed),
		ETA:         FormatETA(p),
		Bytes:       p.Downloaded,
		Total:       p.Total,
	}
}

// Processing builds a phase update. A negative or zero total is indeterminate.
func Processing(bundle, title, detail string, processed, total int) Event {
	e := Event{Kind: KindProcessing, Bundle: bundle, Title: title, Detail: detail}
	if total > 0 {
		e.Determinate = true
		e.Percent = min(processed*100/total, 100)
	}
	return e
}

// Done wraps a summary.
func Done(s Summary) Event {
	return Event{Kind: KindSummary, Title: s.Title, Summary: &s}
}
