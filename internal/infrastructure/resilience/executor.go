package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// FailureClassifier reports whether an error should count against the
// upstream's health. Client-side defects and caller cancellation should not.
type FailureClassifier func(err error) bool

// StateListener observes breaker transitions, e.g. to export them as metrics.
type StateListener func(operation string, from, to gobreaker.State)

type Executor struct {
	cfg      Config
	listener StateListener

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// OnStateChange registers a listener. It must be set before the first Execute.
func (e *Executor) OnStateChange(listener StateListener) *Executor {
	e.listener = listener
	return e
}

// Execute runs fn exactly once, unless the operation's breaker is open, in
// which case fn is skipped and an error matching IsCircuitOpen is returned.
func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier FailureClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = CountsAsFailure
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !e.cfg.Enabled {
		return fn(ctx)
	}

	breaker := e.circuitBreaker(op, classifier)
	_, err := breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// State reports the current breaker state for an operation; operations that
// never ran are closed.
func (e *Executor) State(operation string) gobreaker.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if breaker, ok := e.breakers[operation]; ok {
		return breaker.State()
	}
	return gobreaker.StateClosed
}

func (e *Executor) circuitBreaker(operation string, classifier FailureClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.HalfOpenMaxCalls,
		Timeout:     e.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.listener != nil {
				e.listener(name, from, to)
			}
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
