package runner

import (
	"sync"
	"sync/atomic"
)

type ShutdownState int32

const (
	TokenPending ShutdownState = iota
	TokenRequested
	TokenCompleted
)

func (s ShutdownState) String() string {
	switch s {
	case TokenPending:
		return "pending"
	case TokenRequested:
		return "requested"
	case TokenCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ShutdownToken is a one-shot cancellation observed by a single teardown task.
// It only moves forward: Pending, Requested, Completed.
type ShutdownToken struct {
	state     atomic.Int32
	requested chan struct{}
	completed chan struct{}
	reqOnce   sync.Once
	doneOnce  sync.Once
}

func NewShutdownToken() *ShutdownToken {
	return &ShutdownToken{
		requested: make(chan struct{}),
		completed: make(chan struct{}),
	}
}

// Request asks for teardown. Only the first call has an effect; it reports
// whether this call was that one.
func (t *ShutdownToken) Request() bool {
	first := false
	t.reqOnce.Do(func() {
		first = t.state.CompareAndSwap(int32(TokenPending), int32(TokenRequested))
		close(t.requested)
	})
	return first
}

func (t *ShutdownToken) Requested() <-chan struct{} {
	return t.requested
}

// Complete marks teardown finished. It implies Request.
func (t *ShutdownToken) Complete() {
	t.Request()
	t.doneOnce.Do(func() {
		t.state.Store(int32(TokenCompleted))
		close(t.completed)
	})
}

func (t *ShutdownToken) Completed() <-chan struct{} {
	return t.completed
}

func (t *ShutdownToken) State() ShutdownState {
	return ShutdownState(t.state.Load())
}
