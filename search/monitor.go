package search

import (
	"time"

	"github.com/poiesic/doccache/core"
)

// Monitor provides hooks to observe a fan-out.
// Hooks for different tasks may be called concurrently.
type Monitor interface {
	Start(query core.NormalizedQuery, candidates []core.WorkspaceCandidate)
	TaskFinished(partition string, hits int, elapsed time.Duration)
	TaskFailed(partition string, err error, elapsed time.Duration)
	Finish(result *core.AggregatedResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.NormalizedQuery, _ []core.WorkspaceCandidate) {}
func (n *noopMonitor) TaskFinished(_ string, _ int, _ time.Duration)            {}
func (n *noopMonitor) TaskFailed(_ string, _ error, _ time.Duration)            {}
func (n *noopMonitor) Finish(_ *core.AggregatedResult)                          {}
