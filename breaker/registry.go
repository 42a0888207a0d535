// Package breaker guards outbound calls with per-destination circuit breakers.
//
// Breakers are keyed by (category, destination) and created on first use
// with their category's policy. A breaker opens after the policy's number
// of consecutive failures, rejects calls without running them until the
// recovery timeout elapses, then admits exactly one trial call. Rejections
// surface as *core.CircuitOpenError so callers can tell them apart from
// remote failures.
package breaker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/sony/gobreaker/v2"
)

// Category groups destinations that share a breaker policy.
type Category string

const (
	ExternalAPI     Category = "external-api"
	InternalService Category = "internal-service"
	WebScraping     Category = "web-scraping"
)

// ErrUnknownCategory is returned for a category without a policy.
var ErrUnknownCategory = errors.New("unknown breaker category")

type key struct {
	category    Category
	destination string
}

type entry struct {
	cb     *gobreaker.CircuitBreaker[any]
	key    key
	policy config.Policy

	mu       sync.Mutex
	openedAt time.Time
}

// Registry owns every breaker in the process. It is safe for concurrent use.
type Registry struct {
	policies map[Category]config.Policy
	logger   *slog.Logger

	mu       sync.RWMutex
	breakers map[key]*entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a Registry with the three category policies.
func NewRegistry(cfg config.Breakers, opts ...Option) *Registry {
	r := &Registry{
		policies: map[Category]config.Policy{
			ExternalAPI:     cfg.ExternalAPI,
			InternalService: cfg.InternalService,
			WebScraping:     cfg.WebScraping,
		},
		logger:   slog.Default(),
		breakers: make(map[key]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "breaker")
	return r
}

// Policy returns the policy of category.
func (r *Registry) Policy(category Category) (config.Policy, error) {
	p, ok := r.policies[category]
	if !ok {
		return config.Policy{}, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return p, nil
}

func (r *Registry) get(category Category, destination string) (*entry, error) {
	k := key{category: category, destination: destination}

	r.mu.RLock()
	e, ok := r.breakers[k]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	policy, err := r.Policy(category)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.breakers[k]; ok {
		return e, nil
	}

	e = &entry{key: k, policy: policy}
	e.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        string(category) + "/" + destination,
		MaxRequests: 1,
		Timeout:     policy.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= policy.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.onStateChange(e, from, to)
		},
		IsSuccessful: isSuccessful,
	})
	r.breakers[k] = e
	return e, nil
}

func (r *Registry) onStateChange(e *entry, from, to gobreaker.State) {
	e.mu.Lock()
	if to == gobreaker.StateOpen {
		e.openedAt = time.Now()
	} else if to == gobreaker.StateClosed {
		e.openedAt = time.Time{}
	}
	e.mu.Unlock()

	attrs := []any{"category", e.key.category, "destination", e.key.destination, "from", from.String(), "to", to.String()}
	if to == gobreaker.StateOpen {
		r.logger.Warn("circuit opened", append(attrs, "recovery_timeout", e.policy.RecoveryTimeout)...)
		return
	}
	r.logger.Info("circuit state changed", attrs...)
}

// isSuccessful decides what counts toward the failure threshold.
// Validation rejections and caller cancellation say nothing about the
// destination's health.
func isSuccessful(err error) bool {
	return err == nil || core.IsPermanent(err) || errors.Is(err, context.Canceled)
}

// Call runs fn through the breaker for (category, destination) with the
// category's request timeout applied to ctx.
//
// An open breaker returns *core.CircuitOpenError without running fn. A call
// that overruns the request timeout returns a *core.TransientError wrapping
// the cause.
func Call[T any](ctx context.Context, r *Registry, category Category, destination string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	e, err := r.get(category, destination)
	if err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	out, err := e.cb.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.policy.RequestTimeout)
		defer cancel()

		v, err := fn(callCtx)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = &core.TransientError{Op: e.cb.Name(), Err: err}
		}
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, &core.CircuitOpenError{Category: string(category), Destination: destination}
	}
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// State is the observable state of one breaker.
type State struct {
	Category            Category
	Destination         string
	State               string // closed, open or half-open
	ConsecutiveFailures uint32
	Requests            uint32
	OpenedAt            time.Time
	RecoveryTimeout     time.Duration
}

// State returns the current state name of (category, destination).
// Breakers that have never been called are closed.
func (r *Registry) State(category Category, destination string) string {
	r.mu.RLock()
	e, ok := r.breakers[key{category: category, destination: destination}]
	r.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return e.cb.State().String()
}

// Snapshot reports every breaker, ordered by category then destination.
func (r *Registry) Snapshot() []State {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.breakers))
	for _, e := range r.breakers {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	states := make([]State, 0, len(entries))
	for _, e := range entries {
		state := e.cb.State()
		counts := e.cb.Counts()
		e.mu.Lock()
		openedAt := e.openedAt
		e.mu.Unlock()

		states = append(states, State{
			Category:            e.key.category,
			Destination:         e.key.destination,
			State:               state.String(),
			ConsecutiveFailures: counts.ConsecutiveFailures,
			Requests:            counts.Requests,
			OpenedAt:            openedAt,
			RecoveryTimeout:     e.policy.RecoveryTimeout,
		})
	}
	slices.SortFunc(states, func(a, b State) int {
		return cmp.Or(cmp.Compare(a.Category, b.Category), cmp.Compare(a.Destination, b.Destination))
	})
	return states
}
