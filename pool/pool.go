package pool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"

	"github.com/ardnew/softdrv/pkg"
)

// Tag is a four-character pool tag identifying the allocating component.
type Tag uint32

// MakeTag builds a tag from the first four bytes of s, padding with spaces.
func MakeTag(s string) Tag {
	var b [4]byte
	for i := range b {
		b[i] = ' '
		if i < len(s) {
			b[i] = s[i]
		}
	}
	return Tag(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// String returns the four tag characters.
func (t Tag) String() string {
	return string([]byte{byte(t), byte(t >> 8), byte(t >> 16), byte(t >> 24)})
}

// Block is a zeroed memory region issued by an [Allocator].
type Block struct {
	// ID uniquely identifies the block.
	ID uuid.UUID

	// Owner names the object the block was allocated for.
	Owner string

	// Tag is the pool tag supplied at allocation time.
	Tag Tag

	data  []byte
	size  int
	freed atomic.Bool
}

// Bytes returns the block memory. It returns nil once the block is freed.
func (b *Block) Bytes() []byte {
	if b.freed.Load() {
		return nil
	}
	return b.data
}

// Len returns the block size in bytes.
func (b *Block) Len() int {
	return b.size
}

// Freed reports whether the block was returned to its allocator.
func (b *Block) Freed() bool {
	return b.freed.Load()
}

// Allocator is the pool allocator boundary used by the driver core.
//
// Implementations must be safe for concurrent use. Allocate returns a
// zeroed block or an error wrapping [pkg.ErrResourceExhausted]. Free
// returns [pkg.ErrDoubleFree] for a block that was already freed and
// [pkg.ErrUnknownBlock] for a block it never issued.
type Allocator interface {
	Allocate(owner string, tag Tag, size int) (*Block, error)
	Free(b *Block) error
}

// Pool is an [Allocator] with an optional byte limit over a backing store.
type Pool struct {
	name    string
	limit   int64
	acquire func(size int) ([]byte, error)
	release func(data []byte) error

	mutex sync.Mutex
	used  int64
	live  map[uuid.UUID]*Block
}

var _ Allocator = (*Pool)(nil)

func newPool(name string, limit int64, acquire func(int) ([]byte, error), release func([]byte) error) *Pool {
	return &Pool{
		name:    name,
		limit:   limit,
		acquire: acquire,
		release: release,
		live:    make(map[uuid.UUID]*Block),
	}
}

// NewHeap returns a pool backed by the Go heap. A limit of zero or less
// means no limit.
func NewHeap(limit int64) *Pool {
	return newPool("heap", limit,
		func(size int) ([]byte, error) { return make([]byte, size), nil },
		func([]byte) error { return nil })
}

// Name returns the backing store name ("heap" or "mmap").
func (p *Pool) Name() string {
	return p.name
}

// Used returns the number of bytes currently allocated.
func (p *Pool) Used() int64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.used
}

// Live returns the number of blocks currently allocated.
func (p *Pool) Live() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.live)
}

// Allocate implements [Allocator].
func (p *Pool) Allocate(owner string, tag Tag, size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", size, pkg.ErrInvalidParameter)
	}

	p.mutex.Lock()
	if p.limit > 0 && p.used+int64(size) > p.limit {
		used := p.used
		p.mutex.Unlock()
		return nil, fmt.Errorf("%s pool: %d bytes requested, %d of %d in use: %w",
			p.name, size, used, p.limit, pkg.ErrResourceExhausted)
	}
	p.used += int64(size)
	p.mutex.Unlock()

	data, err := p.acquire(size)
	if err != nil {
		p.mutex.Lock()
		p.used -= int64(size)
		p.mutex.Unlock()
		return nil, fmt.Errorf("%s pool: %w: %w", p.name, pkg.ErrResourceExhausted, err)
	}

	b := &Block{
		ID:    runtimex.PanicOnError1(uuid.NewV7()),
		Owner: owner,
		Tag:   tag,
		data:  data,
		size:  size,
	}

	p.mutex.Lock()
	p.live[b.ID] = b
	p.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentPool, "block allocated",
		"pool", p.name,
		"block", b.ID,
		"owner", owner,
		"tag", tag.String(),
		"size", size)

	return b, nil
}

// Free implements [Allocator].
func (p *Pool) Free(b *Block) error {
	if b == nil {
		return fmt.Errorf("free nil block: %w", pkg.ErrInvalidParameter)
	}

	p.mutex.Lock()
	if _, ok := p.live[b.ID]; !ok {
		p.mutex.Unlock()
		if b.Freed() {
			return fmt.Errorf("%s pool: block %s: %w", p.name, b.ID, pkg.ErrDoubleFree)
		}
		return fmt.Errorf("%s pool: block %s: %w", p.name, b.ID, pkg.ErrUnknownBlock)
	}
	delete(p.live, b.ID)
	p.used -= int64(b.size)
	p.mutex.Unlock()

	b.freed.Store(true)

	if err := p.release(b.data); err != nil {
		return fmt.Errorf("%s pool: release block %s: %w", p.name, b.ID, err)
	}

	pkg.LogDebug(pkg.ComponentPool, "block freed",
		"pool", p.name,
		"block", b.ID,
		"owner", b.Owner,
		"tag", b.Tag.String(),
		"size", b.size)

	return nil
}
