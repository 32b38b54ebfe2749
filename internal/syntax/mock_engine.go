package syntax

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockEngine is a deterministic Engine test double. Parse blocks until
// Proceed is called (or ctx is cancelled), letting tests control exactly
// when a background parse "finishes" without sleeping on wall time.
// Mirrors the original editor's MockEngine/EngineGuard test harness,
// translated from a synchronous-until-released call into a
// channel-gated goroutine since Go tests drive real goroutines rather
// than a single-threaded async executor.
type MockEngine struct {
	mu         sync.Mutex
	gate       chan struct{}
	parseCount atomic.Int64
	err        error
}

// NewMockEngine returns a MockEngine whose Parse calls block until the
// first Proceed call.
func NewMockEngine() *MockEngine {
	return &MockEngine{gate: make(chan struct{})}
}

// Proceed releases every Parse call blocked so far, and every future one
// until a new gate is armed via Rearm.
func (e *MockEngine) Proceed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.gate:
		// already open
	default:
		close(e.gate)
	}
}

// Rearm installs a fresh, closed gate so subsequent Parse calls block
// again until the next Proceed.
func (e *MockEngine) Rearm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = make(chan struct{})
}

// FailNext causes every subsequent Parse to return err instead of a tree.
func (e *MockEngine) FailNext(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// ParseCount reports how many times Parse has been entered.
func (e *MockEngine) ParseCount() int64 { return e.parseCount.Load() }

// Parse implements Engine.
func (e *MockEngine) Parse(ctx context.Context, text string, opts OptsKey) (Tree, error) {
	e.parseCount.Add(1)
	e.mu.Lock()
	gate := e.gate
	err := e.err
	e.mu.Unlock()

	select {
	case <-gate:
	case <-ctx.Done():
		return Tree{}, ctx.Err()
	}
	if err != nil {
		return Tree{}, err
	}
	return Tree{Opts: opts}, nil
}
