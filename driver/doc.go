// Package driver implements an echo device driver in a plug-and-play
// driver model.
//
// A [Driver] owns a table of devices. The host drives each device through
// the [PnP] surface:
//
//	Uninitialized --AddDevice--> Added --Start--> Started
//	Started --Stop--> Stopped --Start--> Started
//	Added|Started|Stopped --Remove--> Removed
//
// AddDevice binds a fixed-size buffer from a [pool.Allocator] through a
// [ResourceBinding] and creates the device [Queue]. Remove purges the
// queue, waits for in-flight requests and releases the buffer exactly
// once. If the buffer cannot be allocated, AddDevice fails with an error
// wrapping [pkg.ErrResourceExhausted] and no device exists.
//
// # I/O
//
// Callers submit a [Request] through the [IO] surface. Requests are only
// accepted while the device is started; otherwise Submit fails with
// [pkg.ErrDeviceNotReady] and has no side effect. Accepted requests are
// dispatched to worker goroutines which run the echo operation under the
// device buffer lock:
//
//   - A write stores min(len, BufferLength) bytes. Under [OverflowReject]
//     an oversized write fails with [pkg.ErrBufferOverflow] instead.
//   - A read returns min(len, stored) bytes of the last write.
//
// Every accepted request completes exactly once, with a transfer length
// and a [pkg.RequestStatus]. Synchronous requests block the submitter;
// asynchronous requests run their [Callback] on completion:
//
//	r, err := d.WriteAsync(ctx, h, data, func(ctx context.Context, r *driver.Request) {
//	    log.Printf("wrote %d bytes: %s", r.Length(), r.Status())
//	})
//
// # Cancellation
//
// [Request.Cancel] completes a queued request as cancelled. A request
// already running the echo operation completes normally. [Driver.Drain]
// waits for every outstanding request of a device without stopping it.
//
// # Contract violations
//
// Completing a request twice, releasing a buffer with requests
// outstanding or twice, and making a blocking call from a completion
// context (see [IsCompletionContext]) are reported through
// [Config.BugCheck], which panics by default.
package driver
