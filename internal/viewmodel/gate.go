package viewmodel

import (
	"context"
	"errors"
	"sync"
)

// GateState is the confirmation gate's state.
type GateState int

const (
	GateIdle GateState = iota
	GatePending
	GateRunning
)

func (s GateState) String() string {
	switch s {
	case GatePending:
		return "pending"
	case GateRunning:
		return "running"
	}
	return "idle"
}

var (
	// ErrGateBusy is returned while the confirmed mutation is in flight.
	ErrGateBusy = errors.New("confirmation gate busy")
	// ErrNothingPending is returned by Confirm when no target was requested.
	ErrNothingPending = errors.New("nothing to confirm")
)

// ConfirmGate holds a destructive action until the user confirms it.
//
//	idle -> pending(target) -> confirmed -> running -> idle
//	                        -> cancelled -> idle
//
// Confirm runs the action exactly once and always returns to idle, whatever
// the action returns. There is no retry.
type ConfirmGate[K comparable] struct {
	run func(ctx context.Context, target K) error

	mu     sync.Mutex
	state  GateState
	target K
	hooks  []func()
}

// NewConfirmGate returns an idle gate that confirms into run.
func NewConfirmGate[K comparable](run func(ctx context.Context, target K) error) *ConfirmGate[K] {
	return &ConfirmGate[K]{run: run}
}

// Request moves to pending with target. A pending target is replaced.
func (g *ConfirmGate[K]) Request(target K) error {
	g.mu.Lock()
	if g.state == GateRunning {
		g.mu.Unlock()
		return ErrGateBusy
	}
	g.state, g.target = GatePending, target
	g.mu.Unlock()
	g.notify()
	return nil
}

// Cancel drops the pending target without running anything.
func (g *ConfirmGate[K]) Cancel() error {
	g.mu.Lock()
	if g.state == GateRunning {
		g.mu.Unlock()
		return ErrGateBusy
	}
	var zero K
	g.state, g.target = GateIdle, zero
	g.mu.Unlock()
	g.notify()
	return nil
}

// Confirm runs the action on the pending target and returns its error.
func (g *ConfirmGate[K]) Confirm(ctx context.Context) error {
	g.mu.Lock()
	switch g.state {
	case GateRunning:
		g.mu.Unlock()
		return ErrGateBusy
	case GateIdle:
		g.mu.Unlock()
		return ErrNothingPending
	}
	g.state = GateRunning
	target := g.target
	g.mu.Unlock()
	g.notify()

	err := g.run(ctx, target)

	var zero K
	g.mu.Lock()
	g.state, g.target = GateIdle, zero
	g.mu.Unlock()
	g.notify()
	return err
}

// State returns the current state.
func (g *ConfirmGate[K]) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the target awaiting confirmation, if any.
func (g *ConfirmGate[K]) Pending() (K, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target, g.state != GateIdle
}

// Busy reports whether the action is running. Views disable both controls
// and show a loading indicator while it is.
func (g *ConfirmGate[K]) Busy() bool { return g.State() == GateRunning }

// OnChange registers fn to run after every state change.
func (g *ConfirmGate[K]) OnChange(fn func()) {
	g.mu.Lock()
	g.hooks = append(g.hooks, fn)
	g.mu.Unlock()
}

func (g *ConfirmGate[K]) notify() {
	g.mu.Lock()
	hooks := append([]func(){}, g.hooks...)
	g.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
