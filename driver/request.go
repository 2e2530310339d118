package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"

	"github.com/ardnew/softdrv/pkg"
)

// Callback is called exactly once when a request completes.
//
// The transfer length and completion status are available from
// r.Length and r.Status. ctx is a completion context: blocking driver
// calls made with it are contract violations. Async submissions are
// allowed.
type Callback func(ctx context.Context, r *Request)

// Ownership states of a request. Whoever moves a request out of
// reqQueued owns its completion.
const (
	reqIdle      int32 = iota // Not yet submitted
	reqQueued                 // Accepted by a queue, not yet dispatched
	reqRunning                // Claimed by a worker
	reqCancelled              // Claimed by a canceller
)

// Request represents a single read or write against a device.
type Request struct {
	id        uuid.UUID
	direction Direction
	mode      Mode
	data      []byte
	callback  Callback

	// Submission context, stored by reference
	ctx context.Context

	state           atomic.Int32
	cancelRequested atomic.Bool

	// Set at submission
	device   DeviceHandle
	retire   func(*Request)
	bugCheck func(error)

	// Completion state
	mutex     sync.Mutex
	completed bool
	status    pkg.RequestStatus
	length    int
	err       error
	done      chan struct{}
}

func newRequest(dir Direction, data []byte) *Request {
	return &Request{
		id:        runtimex.PanicOnError1(uuid.NewV7()),
		direction: dir,
		mode:      ModeAsynchronous,
		data:      data,
		ctx:       context.Background(),
		bugCheck:  DefaultBugCheck,
		done:      make(chan struct{}),
	}
}

// NewReadRequest creates a read request that fills buf from the device
// buffer.
func NewReadRequest(buf []byte) *Request {
	return newRequest(DirectionRead, buf)
}

// NewWriteRequest creates a write request that copies data into the
// device buffer.
func NewWriteRequest(data []byte) *Request {
	return newRequest(DirectionWrite, data)
}

// WithCallback sets the completion callback.
func (r *Request) WithCallback(cb Callback) *Request {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.callback = cb
	return r
}

// WithMode sets the request mode. The default is [ModeAsynchronous].
func (r *Request) WithMode(m Mode) *Request {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.mode = m
	return r
}

// ID returns the request identifier.
func (r *Request) ID() uuid.UUID {
	return r.id
}

// Direction returns the request direction.
func (r *Request) Direction() Direction {
	return r.direction
}

// Mode returns the request mode.
func (r *Request) Mode() Mode {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.mode
}

// RequestedLength returns the length of the caller's buffer.
func (r *Request) RequestedLength() int {
	return len(r.data)
}

// Device returns the handle of the device the request was submitted to.
func (r *Request) Device() DeviceHandle {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.device
}

// Done returns a channel closed after completion, once the callback
// has returned.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// IsCompleted returns true if the request has completed.
func (r *Request) IsCompleted() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.completed
}

// CancelRequested returns true if Cancel was called on the request.
func (r *Request) CancelRequested() bool {
	return r.cancelRequested.Load()
}

// Status returns the completion status, or [pkg.RequestStatusPending].
func (r *Request) Status() pkg.RequestStatus {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.status
}

// Length returns the number of bytes transferred.
func (r *Request) Length() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.length
}

// Err returns the completion error, or nil.
func (r *Request) Err() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.err
}

// Result returns the transfer length and completion error.
func (r *Request) Result() (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.length, r.err
}

// Wait blocks until the request completes or ctx is done. Waiting from a
// completion context is a contract violation.
func (r *Request) Wait(ctx context.Context) (int, error) {
	if IsCompletionContext(ctx) {
		err := fmt.Errorf("%w: wait on request %s from completion context",
			pkg.ErrContractViolation, r.id)
		r.violation(err)
		return 0, err
	}
	select {
	case <-r.done:
		return r.Result()
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Cancel requests cancellation. A request still queued is completed with
// [pkg.RequestStatusCancelled] on the calling goroutine and Cancel
// returns true. A request already being processed is only flagged; it
// completes normally and Cancel returns false.
func (r *Request) Cancel() bool {
	r.cancelRequested.Store(true)
	if !r.state.CompareAndSwap(reqQueued, reqCancelled) {
		return false
	}
	pkg.LogDebug(pkg.ComponentRequest, "request cancelled", "request", r.id)
	r.complete(pkg.RequestStatusCancelled, 0, pkg.ErrCancelled)
	return true
}

// attach records submission details once the request is accepted.
func (r *Request) attach(ctx context.Context, h DeviceHandle, retire func(*Request), bugCheck func(error)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.ctx = ctx
	r.device = h
	r.retire = retire
	r.bugCheck = bugCheck
}

// violation reports a contract violation through the bug check of the
// driver the request was submitted to.
func (r *Request) violation(err error) {
	r.mutex.Lock()
	bugCheck := r.bugCheck
	r.mutex.Unlock()
	bugCheck(err)
}

// claim moves a queued request to running. It fails if a canceller won.
func (r *Request) claim() bool {
	return r.state.CompareAndSwap(reqQueued, reqRunning)
}

// complete records the result, runs the callback, retires the request
// from its queue and releases waiters. A second completion is a contract
// violation.
func (r *Request) complete(status pkg.RequestStatus, length int, err error) {
	runtimex.Assert(status.IsTerminal())

	r.mutex.Lock()
	if r.completed {
		first := r.status
		r.mutex.Unlock()
		r.violation(fmt.Errorf("%w: request %s completed twice (%s then %s)",
			pkg.ErrContractViolation, r.id, first, status))
		return
	}
	r.completed = true
	r.status = status
	r.length = length
	r.err = err
	cb := r.callback
	retire := r.retire
	ctx := r.ctx
	r.mutex.Unlock()

	defer func() {
		if retire != nil {
			retire(r)
		}
		close(r.done)
	}()

	if cb != nil {
		cb(withCompletionContext(context.WithoutCancel(ctx)), r)
	}
}
