package sweep

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports sweep progress over partitions to a writer.
type ProgressTracker struct {
	writer    io.Writer
	total     int
	current   int
	removed   int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a tracker for total partitions.
func NewProgressTracker(writer io.Writer, total int) *ProgressTracker {
	return &ProgressTracker{
		writer: writer,
		total:  total,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.removed = 0
}

// PartitionDone records one finished partition and the documents it lost.
func (p *ProgressTracker) PartitionDone(removed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(p.current+1, p.total)
	p.removed += removed
	p.report()
}

// Finish marks the sweep complete and prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rSweep: %d/%d partitions (%.1f%%) - %d expired documents removed",
		p.current, p.total, percentage, p.removed)
}
