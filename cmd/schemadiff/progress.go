package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hlop3z/schemadiff/internal/cli"
	"github.com/hlop3z/schemadiff/internal/introspect"
)

// dotsWidth is the column stage results are aligned to.
const dotsWidth = 16

// stageProgress prints one line per finished introspection stage:
//
//	columns ........ 42 (12ms)
type stageProgress struct {
	mu     sync.Mutex
	w      io.Writer
	starts map[introspect.Stage]time.Time
	now    func() time.Time
}

func newStageProgress(w io.Writer) *stageProgress {
	return &stageProgress{
		w:      w,
		starts: make(map[introspect.Stage]time.Time),
		now:    time.Now,
	}
}

func (p *stageProgress) report(stage introspect.Stage, count int, status introspect.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if status == introspect.StatusFetching {
		p.starts[stage] = p.now()
		return
	}

	name := string(stage)
	dots := strings.Repeat(".", max(dotsWidth-len(name), 2))
	result := cli.Green(fmt.Sprintf("%d", count))
	if status == introspect.StatusFailed {
		result = cli.Red("failed")
	}
	elapsed := formatDuration(p.now().Sub(p.starts[stage]))
	fmt.Fprintf(p.w, "  %s %s %s %s\n", name, cli.Muted(dots), result, cli.Muted("("+elapsed+")"))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
