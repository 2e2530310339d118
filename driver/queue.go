package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
	"github.com/eapache/queue"

	"github.com/ardnew/softdrv/pkg"
)

// QueueStats holds request counters for a queue.
type QueueStats struct {
	Submitted uint64
	Succeeded uint64
	Cancelled uint64
	Failed    uint64
	Rejected  uint64 // Refused with ErrDeviceNotReady
}

// Queue is a per-device request dispatcher.
//
// Accepted requests are held in FIFO order and handed to a fixed set of
// worker goroutines, each of which claims a request and runs the echo
// operation on it. The queue only accepts requests while open; the device
// opens it on start and closes it on stop.
type Queue struct {
	device   DeviceHandle
	owner    string
	workers  int
	execute  func(*Request) (int, error)
	bugCheck func(error)

	mutex       sync.Mutex
	work        *sync.Cond // signalled when pending grows or the queue shuts down
	idle        *sync.Cond // broadcast when outstanding reaches zero
	pending     *queue.Queue
	accepting   bool
	shutdown    bool
	outstanding int
	wg          sync.WaitGroup

	submitted atomic.Uint64
	succeeded atomic.Uint64
	cancelled atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// newQueue creates a closed queue and starts its workers.
func newQueue(h DeviceHandle, workers int, execute func(*Request) (int, error), bugCheck func(error)) *Queue {
	q := &Queue{
		device:   h,
		owner:    h.String(),
		workers:  workers,
		execute:  execute,
		bugCheck: bugCheck,
		pending:  queue.New(),
	}
	q.work = sync.NewCond(&q.mutex)
	q.idle = sync.NewCond(&q.mutex)

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker(i)
	}
	return q
}

// Accepting returns true if the queue accepts new requests.
func (q *Queue) Accepting() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.accepting
}

// Outstanding returns the number of accepted requests not yet completed.
func (q *Queue) Outstanding() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.outstanding
}

// Workers returns the number of dispatch goroutines.
func (q *Queue) Workers() int {
	return q.workers
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Submitted: q.submitted.Load(),
		Succeeded: q.succeeded.Load(),
		Cancelled: q.cancelled.Load(),
		Failed:    q.failed.Load(),
		Rejected:  q.rejected.Load(),
	}
}

// open starts accepting requests.
func (q *Queue) open() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	runtimex.Assert(!q.shutdown)
	q.accepting = true
}

// submit accepts r or returns ErrDeviceNotReady without touching it.
func (q *Queue) submit(ctx context.Context, r *Request) error {
	q.mutex.Lock()
	if !q.accepting {
		q.mutex.Unlock()
		q.rejected.Add(1)
		return fmt.Errorf("queue %s: %w", q.owner, pkg.ErrDeviceNotReady)
	}
	if !r.state.CompareAndSwap(reqIdle, reqQueued) {
		q.mutex.Unlock()
		return fmt.Errorf("request %s already submitted: %w", r.id, pkg.ErrInvalidParameter)
	}
	r.attach(ctx, q.device, q.retire, q.bugCheck)
	q.submitted.Add(1)
	q.outstanding++

	// Zero-length requests complete without being dispatched.
	if len(r.data) == 0 {
		q.mutex.Unlock()
		if r.claim() {
			r.complete(pkg.RequestStatusSucceeded, 0, nil)
		}
		return nil
	}

	q.pending.Add(r)
	q.work.Signal()
	q.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentQueue, "request queued",
		"queue", q.owner,
		"request", r.id,
		"direction", r.direction.String(),
		"length", len(r.data))
	return nil
}

// retire accounts for a completed request. It is installed as the
// request's retire hook at submission.
func (q *Queue) retire(r *Request) {
	switch r.Status() {
	case pkg.RequestStatusSucceeded:
		q.succeeded.Add(1)
	case pkg.RequestStatusCancelled:
		q.cancelled.Add(1)
	default:
		q.failed.Add(1)
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.outstanding--
	runtimex.Assert(q.outstanding >= 0)
	if q.outstanding == 0 {
		q.idle.Broadcast()
	}
}

// worker claims and executes requests until the queue shuts down.
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		q.mutex.Lock()
		for q.pending.Length() == 0 && !q.shutdown {
			q.work.Wait()
		}
		if q.pending.Length() == 0 {
			q.mutex.Unlock()
			return
		}
		r := q.pending.Remove().(*Request)
		q.mutex.Unlock()

		// A canceller already completed it.
		if !r.claim() {
			continue
		}

		n, err := q.execute(r)
		if err != nil {
			pkg.LogDebug(pkg.ComponentQueue, "request failed",
				append([]any{"queue", q.owner, "worker", id, "request", r.id}, pkg.ErrAttrs(err)...)...)
			r.complete(pkg.RequestStatusFailed, n, err)
			continue
		}
		r.complete(pkg.RequestStatusSucceeded, n, nil)
	}
}

// cancelPending cancels every request still waiting for a worker and
// returns how many it cancelled.
func (q *Queue) cancelPending() int {
	q.mutex.Lock()
	purged := make([]*Request, 0, q.pending.Length())
	for q.pending.Length() > 0 {
		purged = append(purged, q.pending.Remove().(*Request))
	}
	q.mutex.Unlock()

	n := 0
	for _, r := range purged {
		if r.Cancel() {
			n++
		}
	}
	return n
}

// stop refuses new requests, cancels queued ones when purge is set, and
// waits until every accepted request has completed.
func (q *Queue) stop(purge bool) {
	q.mutex.Lock()
	q.accepting = false
	q.mutex.Unlock()

	cancelled := 0
	if purge {
		cancelled = q.cancelPending()
	}

	q.mutex.Lock()
	for q.outstanding > 0 {
		q.idle.Wait()
	}
	q.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentQueue, "queue stopped",
		"queue", q.owner,
		"purge", purge,
		"cancelled", cancelled)
}

// drain waits until every accepted request has completed or ctx is done.
// The queue keeps accepting, so a steady producer can hold it open.
func (q *Queue) drain(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mutex.Lock()
		q.idle.Broadcast()
		q.mutex.Unlock()
	})
	defer stop()

	q.mutex.Lock()
	defer q.mutex.Unlock()
	for q.outstanding > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.idle.Wait()
	}
	return nil
}

// close stops the workers. The queue must already be stopped.
func (q *Queue) close() {
	q.mutex.Lock()
	runtimex.Assert(!q.accepting && q.outstanding == 0)
	q.shutdown = true
	q.work.Broadcast()
	q.mutex.Unlock()
	q.wg.Wait()
}
