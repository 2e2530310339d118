package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softdrv/pkg"
)

func TestMakeTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Echo", "Echo"},
		{"s", "s   "},
		{"", "    "},
		{"TooLong", "TooL"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MakeTag(tt.in).String())
		})
	}
}

func TestPools(t *testing.T) {
	pools := map[string]func(int64) *Pool{
		"heap": NewHeap,
		"mmap": NewMmap,
	}

	for name, ctor := range pools {
		t.Run(name, func(t *testing.T) {
			p := ctor(0)

			b, err := p.Allocate("dev0", MakeTag("Echo"), 64)
			require.NoError(t, err)
			require.NotNil(t, b)

			assert.Equal(t, 64, b.Len())
			assert.Len(t, b.Bytes(), 64)
			assert.Equal(t, make([]byte, 64), b.Bytes(), "blocks must be zeroed")
			assert.Equal(t, "dev0", b.Owner)
			assert.Equal(t, int64(64), p.Used())
			assert.Equal(t, 1, p.Live())

			b.Bytes()[0] = 0xAB
			assert.Equal(t, byte(0xAB), b.Bytes()[0])

			require.NoError(t, p.Free(b))
			assert.True(t, b.Freed())
			assert.Nil(t, b.Bytes())
			assert.Equal(t, int64(0), p.Used())
			assert.Equal(t, 0, p.Live())
		})
	}
}

func TestPoolAllocateInvalidSize(t *testing.T) {
	p := NewHeap(0)
	for _, size := range []int{0, -1} {
		_, err := p.Allocate("dev0", MakeTag("Echo"), size)
		assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
	}
}

func TestPoolLimit(t *testing.T) {
	p := NewHeap(100)

	b, err := p.Allocate("dev0", MakeTag("Echo"), 64)
	require.NoError(t, err)

	_, err = p.Allocate("dev1", MakeTag("Echo"), 64)
	assert.ErrorIs(t, err, pkg.ErrResourceExhausted)
	assert.Equal(t, int64(64), p.Used())

	require.NoError(t, p.Free(b))

	_, err = p.Allocate("dev1", MakeTag("Echo"), 64)
	assert.NoError(t, err)
}

func TestPoolDoubleFree(t *testing.T) {
	p := NewHeap(0)

	b, err := p.Allocate("dev0", MakeTag("Echo"), 8)
	require.NoError(t, err)
	require.NoError(t, p.Free(b))

	assert.ErrorIs(t, p.Free(b), pkg.ErrDoubleFree)
}

func TestPoolUnknownBlock(t *testing.T) {
	a := NewHeap(0)
	b := NewHeap(0)

	blk, err := a.Allocate("dev0", MakeTag("Echo"), 8)
	require.NoError(t, err)

	assert.ErrorIs(t, b.Free(blk), pkg.ErrUnknownBlock)
	assert.ErrorIs(t, b.Free(nil), pkg.ErrInvalidParameter)
}

func TestPoolConcurrent(t *testing.T) {
	p := NewHeap(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := p.Allocate("dev", MakeTag("Echo"), 16)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, p.Free(b))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), p.Used())
	assert.Equal(t, 0, p.Live())
}
