package archive

import (
	"fmt"
	"slices"
	"sync"
)

// Diagnostics collects non-fatal findings for the update summary.
// A nil *Diagnostics discards everything.
type Diagnostics struct {
	mu    sync.Mutex
	lines []string
}

func (d *Diagnostics) Addf(format string, args ...any) {
	d.Add(fmt.Sprintf(format, args...))
}

func (d *Diagnostics) Add(lines ...string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, lines...)
}

func (d *Diagnostics) Lines() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.lines)
}

func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}
