package viewmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []int
	err   error
	// during runs inside the action, before it returns.
	during func()
}

func (r *recorder) run(_ context.Context, target int) error {
	r.calls = append(r.calls, target)
	if r.during != nil {
		r.during()
	}
	return r.err
}

func TestConfirmGate_CancelNeverRuns(t *testing.T) {
	r := &recorder{}
	g := NewConfirmGate(r.run)

	require.NoError(t, g.Request(7777))
	target, pending := g.Pending()
	assert.True(t, pending)
	assert.Equal(t, 7777, target)
	assert.Equal(t, GatePending, g.State())

	require.NoError(t, g.Cancel())
	assert.Empty(t, r.calls)
	assert.Equal(t, GateIdle, g.State())
	_, pending = g.Pending()
	assert.False(t, pending)
}

func TestConfirmGate_ConfirmRunsOnceEvenOnFailure(t *testing.T) {
	for _, runErr := range []error{nil, errBoom} {
		r := &recorder{err: runErr}
		g := NewConfirmGate(r.run)

		require.NoError(t, g.Request(7777))
		err := g.Confirm(context.Background())
		assert.ErrorIs(t, err, runErr)
		assert.Equal(t, []int{7777}, r.calls)
		assert.Equal(t, GateIdle, g.State())

		// Nothing left to confirm.
		assert.ErrorIs(t, g.Confirm(context.Background()), ErrNothingPending)
		assert.Len(t, r.calls, 1)
	}
}

func TestConfirmGate_BusyRejectsControls(t *testing.T) {
	r := &recorder{}
	g := NewConfirmGate(r.run)
	r.during = func() {
		assert.True(t, g.Busy())
		assert.Equal(t, GateRunning, g.State())
		assert.ErrorIs(t, g.Confirm(context.Background()), ErrGateBusy)
		assert.ErrorIs(t, g.Cancel(), ErrGateBusy)
		assert.ErrorIs(t, g.Request(1), ErrGateBusy)
	}

	require.NoError(t, g.Request(5))
	require.NoError(t, g.Confirm(context.Background()))
	assert.Equal(t, []int{5}, r.calls)
	assert.False(t, g.Busy())
}

func TestConfirmGate_RequestReplacesTarget(t *testing.T) {
	r := &recorder{}
	g := NewConfirmGate(r.run)
	require.NoError(t, g.Request(1))
	require.NoError(t, g.Request(2))
	require.NoError(t, g.Confirm(context.Background()))
	assert.Equal(t, []int{2}, r.calls)
}

func TestConfirmGate_OnChange(t *testing.T) {
	g := NewConfirmGate((&recorder{}).run)
	var states []GateState
	g.OnChange(func() { states = append(states, g.State()) })

	_ = g.Request(1)
	_ = g.Confirm(context.Background())
	assert.Equal(t, []GateState{GatePending, GateRunning, GateIdle}, states)
	assert.Equal(t, "running", GateRunning.String())
}
