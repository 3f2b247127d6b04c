package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

var (
	titleOK   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	titleFail = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	titleWarn = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	detail    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Console renders events on a terminal with a progress bar, or as plain
// lines when the output is not a terminal. It is not safe for concurrent use;
// feed it from a single goroutine, for example through Channel.Pump.
type Console struct {
	w           io.Writer
	interactive bool
	showDetails bool

	bar        *progressbar.ProgressBar
	barBundle  string
	lastPhase  string
	lastLogged int
}

// NewConsole writes to w. Pass showDetails to print the detail lines of the
// final summary.
func NewConsole(w io.Writer, showDetails bool) *Console {
	c := &Console{w: w, showDetails: showDetails, lastLogged: -1}
	if f, ok := w.(*os.File); ok {
		c.interactive = term.IsTerminal(int(f.Fd()))
	}
	return c
}

func (c *Console) Emit(e Event) {
	switch e.Kind {
	case KindStart:
		c.finishBar()
		fmt.Fprintf(c.w, "%s %s\n", e.Title, e.URL)
		c.lastPhase = ""
		c.lastLogged = -1
	case KindDownload:
		c.download(e)
	case KindProcessing:
		c.finishBar()
		c.processing(e)
	case KindSummary:
		c.finishBar()
		if e.Summary != nil {
			c.summary(*e.Summary)
		}
	}
}

func (c *Console) download(e Event) {
	if !c.interactive {
		// Plain output logs every tenth percent.
		step := e.Percent / 10
		if e.Determinate && step != c.lastLogged {
			c.lastLogged = step
			fmt.Fprintf(c.w, "  %s: %d%% %s ETA %s\n", e.Bundle, e.Percent, e.Speed, e.ETA)
		}
		return
	}

	if c.bar == nil || c.barBundle != e.Bundle {
		c.finishBar()
		limit := e.Total
		if !e.Determinate {
			limit = -1
		}
		c.bar = progressbar.NewOptions64(limit,
			progressbar.OptionSetWriter(c.w),
			progressbar.OptionSetDescription(e.Bundle),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(c.w) }),
		)
		c.barBundle = e.Bundle
	}
	c.bar.Describe(fmt.Sprintf("%s %s ETA %s", e.Bundle, e.Speed, e.ETA))
	_ = c.bar.Set64(e.Bytes)
}

func (c *Console) processing(e Event) {
	if e.Title != c.lastPhase {
		c.lastPhase = e.Title
		fmt.Fprintln(c.w, e.Title)
	}
	if c.interactive && e.Detail != "" {
		fmt.Fprintf(c.w, "\r\033[K  %s", truncate(e.Detail, 72))
	}
}

func (c *Console) summary(s Summary) {
	if c.interactive {
		fmt.Fprint(c.w, "\r\033[K")
	}
	style := titleOK
	switch {
	case strings.Contains(s.Title, "failed"):
		style = titleFail
	case strings.Contains(s.Title, "cancelled"):
		style = titleWarn
	}
	fmt.Fprintln(c.w, style.Render(s.Title))
	for _, line := range s.Lines {
		fmt.Fprintf(c.w, "  %s\n", line)
	}
	if c.showDetails {
		for _, line := range s.Details {
			fmt.Fprintf(c.w, "  %s\n", detail.Render(line))
		}
	}
}

func (c *Console) finishBar() {
	if c.bar == nil {
		return
	}
	_ = c.bar.Finish()
	c.bar = nil
	c.barBundle = ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
