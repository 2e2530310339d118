package pool

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/softdrv/pkg"
)

// Counts holds allocation accounting for one owner or one tag.
type Counts struct {
	Allocations int
	Frees       int
	BytesIn     int64 // Bytes allocated
	BytesOut    int64 // Bytes freed
}

// Outstanding returns the number of blocks allocated but not freed.
func (c Counts) Outstanding() int {
	return c.Allocations - c.Frees
}

// Balanced reports whether every allocation was freed.
func (c Counts) Balanced() bool {
	return c.Allocations == c.Frees
}

// Verifier is an [Allocator] that audits another allocator.
//
// It records allocations and frees per owner and per tag so that a test
// harness can compare allocate and release counts for a device without
// asking the driver, and reports the blocks still outstanding at unload.
// Double frees and frees of foreign blocks are logged and returned.
type Verifier struct {
	next Allocator

	mutex    sync.Mutex
	owners   map[string]*Counts
	tags     map[Tag]*Counts
	live     map[uuid.UUID]*Block
	failures int
}

var _ Allocator = (*Verifier)(nil)

// NewVerifier wraps next with allocation auditing.
func NewVerifier(next Allocator) *Verifier {
	return &Verifier{
		next:   next,
		owners: make(map[string]*Counts),
		tags:   make(map[Tag]*Counts),
		live:   make(map[uuid.UUID]*Block),
	}
}

// Allocate implements [Allocator].
func (v *Verifier) Allocate(owner string, tag Tag, size int) (*Block, error) {
	b, err := v.next.Allocate(owner, tag, size)
	if err != nil {
		v.mutex.Lock()
		v.failures++
		v.mutex.Unlock()
		return nil, err
	}

	v.mutex.Lock()
	v.live[b.ID] = b
	oc := v.ownerCounts(owner)
	oc.Allocations++
	oc.BytesIn += int64(size)
	tc := v.tagCounts(tag)
	tc.Allocations++
	tc.BytesIn += int64(size)
	v.mutex.Unlock()

	return b, nil
}

// Free implements [Allocator].
func (v *Verifier) Free(b *Block) error {
	if b == nil {
		return fmt.Errorf("free nil block: %w", pkg.ErrInvalidParameter)
	}

	v.mutex.Lock()
	_, ok := v.live[b.ID]
	if ok {
		delete(v.live, b.ID)
	}
	v.mutex.Unlock()

	if !ok {
		err := pkg.ErrUnknownBlock
		if b.Freed() {
			err = pkg.ErrDoubleFree
		}
		pkg.LogError(pkg.ComponentVerifier, "invalid free",
			append([]any{"block", b.ID, "owner", b.Owner, "tag", b.Tag.String()}, pkg.ErrAttrs(err)...)...)
		return fmt.Errorf("verifier: block %s: %w", b.ID, err)
	}

	if err := v.next.Free(b); err != nil {
		return err
	}

	v.mutex.Lock()
	oc := v.ownerCounts(b.Owner)
	oc.Frees++
	oc.BytesOut += int64(b.Len())
	tc := v.tagCounts(b.Tag)
	tc.Frees++
	tc.BytesOut += int64(b.Len())
	v.mutex.Unlock()

	return nil
}

// Counts returns the accounting for owner.
func (v *Verifier) Counts(owner string) Counts {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if c, ok := v.owners[owner]; ok {
		return *c
	}
	return Counts{}
}

// TagCounts returns the accounting for tag.
func (v *Verifier) TagCounts(tag Tag) Counts {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if c, ok := v.tags[tag]; ok {
		return *c
	}
	return Counts{}
}

// Totals returns the accounting across every owner.
func (v *Verifier) Totals() Counts {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	var total Counts
	for _, c := range v.owners {
		total.Allocations += c.Allocations
		total.Frees += c.Frees
		total.BytesIn += c.BytesIn
		total.BytesOut += c.BytesOut
	}
	return total
}

// Failures returns the number of allocation requests the allocator refused.
func (v *Verifier) Failures() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.failures
}

// Outstanding returns the blocks not yet freed, ordered by owner then ID.
func (v *Verifier) Outstanding() []*Block {
	v.mutex.Lock()
	blocks := make([]*Block, 0, len(v.live))
	for _, b := range v.live {
		blocks = append(blocks, b)
	}
	v.mutex.Unlock()

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Owner != blocks[j].Owner {
			return blocks[i].Owner < blocks[j].Owner
		}
		return blocks[i].ID.String() < blocks[j].ID.String()
	})
	return blocks
}

// Check returns an error wrapping [pkg.ErrLeak] that lists every
// outstanding block, or nil if the pool is balanced.
func (v *Verifier) Check() error {
	blocks := v.Outstanding()
	if len(blocks) == 0 {
		return nil
	}

	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s tag=%q size=%d owner=%s", b.ID, b.Tag.String(), b.Len(), b.Owner)
		pkg.LogError(pkg.ComponentVerifier, "pool leak detected",
			"block", b.ID,
			"owner", b.Owner,
			"tag", b.Tag.String(),
			"size", b.Len(),
			"errClass", pkg.ClassifyError(pkg.ErrLeak))
	}
	return fmt.Errorf("%w: %d block(s) outstanding: %s", pkg.ErrLeak, len(blocks), sb.String())
}

// IsLeak reports whether err came from [Verifier.Check].
func IsLeak(err error) bool {
	return errors.Is(err, pkg.ErrLeak)
}

func (v *Verifier) ownerCounts(owner string) *Counts {
	c, ok := v.owners[owner]
	if !ok {
		c = &Counts{}
		v.owners[owner] = c
	}
	return c
}

func (v *Verifier) tagCounts(tag Tag) *Counts {
	c, ok := v.tags[tag]
	if !ok {
		c = &Counts{}
		v.tags[tag] = c
	}
	return c
}
