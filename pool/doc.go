// Package pool implements the pool allocator boundary of the softdrv
// driver model.
//
// The driver core never allocates device memory directly. It asks an
// [Allocator] for a zeroed [Block] and hands the block back when the
// device is removed. Two backing stores are provided:
//
//   - [NewHeap]: blocks are Go byte slices
//   - [NewMmap]: blocks are private anonymous mappings, unmapped on free
//
// Both accept a byte limit; allocations beyond the limit fail with an
// error wrapping [pkg.ErrResourceExhausted], which is how tests drive
// the add-device failure path.
//
// # Verifier
//
// [Verifier] plays the role of a driver verifier: it wraps any allocator
// and keeps allocation and free counts per owner and per [Tag]. A leak is
// visible as an owner whose [Counts] are not balanced, and [Verifier.Check]
// lists the blocks still outstanding:
//
//	v := pool.NewVerifier(pool.NewHeap(0))
//	// ... run the device lifecycle against v ...
//	if err := v.Check(); err != nil {
//	    // pool leak: err wraps pkg.ErrLeak
//	}
package pool
