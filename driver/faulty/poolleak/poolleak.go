// Package poolleak builds an echo driver that leaks its device buffers.
//
// The driver behaves like [driver.Driver] in every respect except that
// removing a device never returns its buffer to the pool. A
// [pool.Verifier] observes the leak as an owner whose allocation count
// exceeds its free count, and [driver.Driver.Unload] reports it through
// an error wrapping [pkg.ErrLeak].
package poolleak

import (
	"github.com/ardnew/softdrv/driver"
	"github.com/ardnew/softdrv/pkg"
	"github.com/ardnew/softdrv/pool"
)

const (
	// BufferLength is the size of each leaked buffer.
	BufferLength = 64

	// Tag is the pool tag of leaked buffers.
	Tag = "s"
)

// Binding allocates device buffers and never frees them.
type Binding struct {
	allocator pool.Allocator
}

var _ driver.ResourceBinding = (*Binding)(nil)

// NewBinding creates a leaking binding over alloc.
func NewBinding(alloc pool.Allocator) *Binding {
	return &Binding{allocator: alloc}
}

// Bind implements [driver.ResourceBinding].
func (b *Binding) Bind(owner string, tag pool.Tag, size int) (*pool.Block, error) {
	return b.allocator.Allocate(owner, tag, size)
}

// Unbind implements [driver.ResourceBinding]. The block is dropped
// without being freed.
func (b *Binding) Unbind(blk *pool.Block) error {
	pkg.LogDebug(pkg.ComponentDriver, "buffer dropped without free",
		"block", blk.ID,
		"owner", blk.Owner,
		"size", blk.Len())
	return nil
}

// NewConfig returns the default driver configuration with 64-byte
// buffers tagged "s".
func NewConfig() *driver.Config {
	cfg := driver.NewConfig()
	cfg.BufferLength = BufferLength
	cfg.PoolTag = pool.MakeTag(Tag)
	return cfg
}

// New creates a leaking driver. A nil cfg selects [NewConfig].
func New(cfg *driver.Config) (*driver.Driver, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := *cfg
	c.Binding = NewBinding(c.Allocator)
	return driver.New(&c)
}
