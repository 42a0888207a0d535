package orchestrator

import "sync"

// Stage is one step of the query pipeline.
type Stage int

const (
	StageNormalize Stage = iota
	StageCacheCheck
	StageSelect
	StageFanout
	StageAggregate
	StageEvaluate
	StageEnrich
	StageStore
	StageReturn
)

// MarshalText encodes a stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Stage) String() string {
	switch s {
	case StageNormalize:
		return "NORMALIZE"
	case StageCacheCheck:
		return "CACHE_CHECK"
	case StageSelect:
		return "SELECT"
	case StageFanout:
		return "FANOUT"
	case StageAggregate:
		return "AGGREGATE"
	case StageEvaluate:
		return "EVALUATE"
	case StageEnrich:
		return "ENRICH_DECOUPLED"
	case StageStore:
		return "STORE"
	case StageReturn:
		return "RETURN"
	default:
		return "UNKNOWN"
	}
}

// trail records the stages a request passed through. The fan-out stages are
// recorded from the single-flight goroutine.
type trail struct {
	mu     sync.Mutex
	stages []Stage
}

func (t *trail) add(stages ...Stage) {
	t.mu.Lock()
	t.stages = append(t.stages, stages...)
	t.mu.Unlock()
}

func (t *trail) list() []Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Stage(nil), t.stages...)
}
