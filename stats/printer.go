package stats

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Printer writes the status line to an operator console, overwriting it in
// place with a carriage return. Announcements such as a new match go on
// their own line. Safe for concurrent use.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	stats *RunStats
	now   func() time.Time
}

// NewPrinter creates a Printer for stats writing to out
func NewPrinter(out io.Writer, stats *RunStats) *Printer {
	return &Printer{out: out, stats: stats, now: time.Now}
}

// Stats returns the counters the printer renders
func (p *Printer) Stats() *RunStats {
	return p.stats
}

// Status overwrites the current line with the rendered counters
func (p *Printer) Status() {
	line := p.stats.Render(p.now())

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, "\r"+line)
}

// Banner prints the header shown after each successful connection
func (p *Printer) Banner() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "Connected to Bluesky Jetstream")
	fmt.Fprintln(p.out, "Listening for YouTube posts...")
	fmt.Fprintln(p.out, "Stats: Total msgs | Posts | YouTube (%) | Other ops | Runtime | Rate")
}

// Match announces the n-th match of the epoch on a fresh line
func (p *Printer) Match(n uint64, links []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\nFound YouTube post #%d: %v\n", n, links)
}

// Line prints a message on a line of its own
func (p *Printer) Line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}
