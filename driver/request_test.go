package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softdrv/pkg"
)

func TestNewRequest(t *testing.T) {
	r := NewReadRequest(make([]byte, 12))
	assert.Equal(t, DirectionRead, r.Direction())
	assert.Equal(t, ModeAsynchronous, r.Mode())
	assert.Equal(t, 12, r.RequestedLength())
	assert.Equal(t, pkg.RequestStatusPending, r.Status())
	assert.False(t, r.IsCompleted())
	assert.True(t, r.Device().IsZero())

	w := NewWriteRequest([]byte("abc")).WithMode(ModeSynchronous)
	assert.Equal(t, DirectionWrite, w.Direction())
	assert.Equal(t, ModeSynchronous, w.Mode())
	assert.NotEqual(t, r.ID(), w.ID())
}

func TestRequestCompleteRunsCallbackOnce(t *testing.T) {
	var (
		calls    int
		gotLen   int
		gotState pkg.RequestStatus
	)
	r := NewWriteRequest([]byte("abc")).WithCallback(func(ctx context.Context, r *Request) {
		calls++
		gotLen = r.Length()
		gotState = r.Status()
		assert.True(t, IsCompletionContext(ctx))
		assert.True(t, r.IsCompleted())
	})

	r.complete(pkg.RequestStatusSucceeded, 3, nil)

	select {
	case <-r.Done():
	default:
		t.Fatal("done channel not closed")
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, gotLen)
	assert.Equal(t, pkg.RequestStatusSucceeded, gotState)

	n, err := r.Wait(context.Background())
	assert.Equal(t, 3, n)
	assert.NoError(t, err)
}

func TestRequestCompleteTwicePanics(t *testing.T) {
	calls := 0
	r := NewReadRequest(make([]byte, 4)).WithCallback(func(context.Context, *Request) { calls++ })
	r.complete(pkg.RequestStatusSucceeded, 4, nil)

	err := panicErr(func() { r.complete(pkg.RequestStatusFailed, 0, pkg.ErrFailed) })
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrContractViolation)

	// The first completion stands.
	assert.Equal(t, 1, calls)
	assert.Equal(t, pkg.RequestStatusSucceeded, r.Status())
	assert.Equal(t, 4, r.Length())
}

func TestRequestCancelUnsubmitted(t *testing.T) {
	r := NewWriteRequest([]byte("x"))
	assert.False(t, r.Cancel())
	assert.True(t, r.CancelRequested())
	assert.False(t, r.IsCompleted())
}

func TestRequestCancelRace(t *testing.T) {
	for i := 0; i < 100; i++ {
		calls := 0
		r := NewWriteRequest([]byte("x")).WithCallback(func(context.Context, *Request) { calls++ })
		r.state.Store(reqQueued)

		claimed := make(chan bool, 1)
		go func() { claimed <- r.claim() }()
		cancelled := r.Cancel()
		won := <-claimed

		require.NotEqual(t, won, cancelled, "exactly one side owns completion")
		if won {
			r.complete(pkg.RequestStatusSucceeded, 1, nil)
		}
		assert.Equal(t, 1, calls)
	}
}

func TestRequestWaitContext(t *testing.T) {
	r := NewReadRequest(make([]byte, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestWaitFromCompletionContextPanics(t *testing.T) {
	r := NewReadRequest(make([]byte, 1))
	err := panicErr(func() { _, _ = r.Wait(withCompletionContext(context.Background())) })
	assert.ErrorIs(t, err, pkg.ErrContractViolation)
}
