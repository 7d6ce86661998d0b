package sync

import (
	"context"
	"sync/atomic"

	"github.com/sdboyer/constext"
)

// CancelState is the three-state cancellation machine: Running, Soft, Hard.
type CancelState int32

const (
	StateRunning CancelState = iota
	StateSoft
	StateHard
)

func (s CancelState) String() string {
	switch s {
	case StateSoft:
		return "soft"
	case StateHard:
		return "hard"
	default:
		return "running"
	}
}

// Token is the process-wide cancellation token: the first signal advances
// Running->Soft (no new tasks picked up, in-flight work finishes or bails
// out between I/O steps); the second advances Soft->Hard (subprocesses are
// killed, staging is removed). Expressed as a context.Context pair via
// sdboyer/constext rather than a raw atomic flag, so callers can select on
// Done() the same way they would any other cancellation.
type Token struct {
	state int32

	softCtx    context.Context
	softCancel context.CancelFunc
	hardCtx    context.Context
	hardCancel context.CancelFunc
	combined   context.Context
}

// NewToken derives a Token from parent: canceling parent has the same
// effect as a hard signal.
func NewToken(parent context.Context) *Token {
	softCtx, softCancel := context.WithCancel(parent)
	hardCtx, hardCancel := context.WithCancel(parent)
	combined, _ := constext.Cons(softCtx, hardCtx)
	return &Token{
		softCtx:    softCtx,
		softCancel: softCancel,
		hardCtx:    hardCtx,
		hardCancel: hardCancel,
		combined:   combined,
	}
}

// Signal advances the token one step and returns the state it moved to.
func (t *Token) Signal() CancelState {
	for {
		cur := CancelState(atomic.LoadInt32(&t.state))
		next := StateSoft
		if cur != StateRunning {
			next = StateHard
		}
		if atomic.CompareAndSwapInt32(&t.state, int32(cur), int32(next)) {
			if next == StateSoft {
				t.softCancel()
			} else {
				t.hardCancel()
			}
			return next
		}
	}
}

// State reports the current stage without mutating it.
func (t *Token) State() CancelState {
	return CancelState(atomic.LoadInt32(&t.state))
}

// Context is consulted between I/O steps: canceled once either a soft or
// a hard signal has fired.
func (t *Token) Context() context.Context {
	return t.combined
}

// HardContext is passed only to subprocess invocations, so an in-flight
// build is killed on hard cancellation while a soft signal merely stops
// new work from being scheduled.
func (t *Token) HardContext() context.Context {
	return t.hardCtx
}
