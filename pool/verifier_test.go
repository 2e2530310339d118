package pool

import (
	"context"
	"log/slog"
	"testing"

	"github.com/bassosimone/slogstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softdrv/pkg"
)

// captureLogs routes package logging into a slice for the duration of t.
func captureLogs(t *testing.T) *[]slog.Record {
	t.Helper()
	var records []slog.Record
	original := pkg.Logger()
	pkg.SetLogger(slog.New(&slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return level >= slog.LevelWarn
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}))
	t.Cleanup(func() { pkg.SetLogger(original) })
	return &records
}

func TestVerifierBalanced(t *testing.T) {
	v := NewVerifier(NewHeap(0))
	tag := MakeTag("Echo")

	b1, err := v.Allocate("dev0", tag, 64)
	require.NoError(t, err)
	b2, err := v.Allocate("dev1", tag, 32)
	require.NoError(t, err)

	c := v.Counts("dev0")
	assert.Equal(t, 1, c.Allocations)
	assert.Equal(t, 0, c.Frees)
	assert.Equal(t, 1, c.Outstanding())
	assert.False(t, c.Balanced())

	require.NoError(t, v.Free(b1))
	require.NoError(t, v.Free(b2))

	assert.True(t, v.Counts("dev0").Balanced())
	assert.True(t, v.Counts("dev1").Balanced())
	assert.Equal(t, Counts{Allocations: 2, Frees: 2, BytesIn: 96, BytesOut: 96}, v.TagCounts(tag))
	assert.Equal(t, Counts{Allocations: 2, Frees: 2, BytesIn: 96, BytesOut: 96}, v.Totals())
	assert.Empty(t, v.Outstanding())
	assert.NoError(t, v.Check())
}

func TestVerifierLeak(t *testing.T) {
	records := captureLogs(t)
	v := NewVerifier(NewHeap(0))

	_, err := v.Allocate("dev0", MakeTag("s"), 64)
	require.NoError(t, err)

	c := v.Counts("dev0")
	assert.Greater(t, c.Allocations, c.Frees)

	err = v.Check()
	require.Error(t, err)
	assert.True(t, IsLeak(err))
	assert.ErrorIs(t, err, pkg.ErrLeak)
	assert.Contains(t, err.Error(), "owner=dev0")
	assert.Contains(t, err.Error(), "size=64")

	require.Len(t, *records, 1)
	assert.Equal(t, "pool leak detected", (*records)[0].Message)
}

func TestVerifierDoubleFree(t *testing.T) {
	records := captureLogs(t)
	v := NewVerifier(NewHeap(0))

	b, err := v.Allocate("dev0", MakeTag("Echo"), 8)
	require.NoError(t, err)
	require.NoError(t, v.Free(b))

	err = v.Free(b)
	assert.ErrorIs(t, err, pkg.ErrDoubleFree)
	assert.Equal(t, 1, v.Counts("dev0").Frees, "a rejected free must not be counted")

	require.Len(t, *records, 1)
	assert.Equal(t, "invalid free", (*records)[0].Message)
}

func TestVerifierUnknownBlock(t *testing.T) {
	captureLogs(t)
	other := NewHeap(0)
	v := NewVerifier(NewHeap(0))

	b, err := other.Allocate("dev0", MakeTag("Echo"), 8)
	require.NoError(t, err)

	assert.ErrorIs(t, v.Free(b), pkg.ErrUnknownBlock)
	assert.ErrorIs(t, v.Free(nil), pkg.ErrInvalidParameter)
}

func TestVerifierFailures(t *testing.T) {
	v := NewVerifier(NewHeap(16))

	_, err := v.Allocate("dev0", MakeTag("Echo"), 64)
	assert.ErrorIs(t, err, pkg.ErrResourceExhausted)
	assert.Equal(t, 1, v.Failures())
	assert.Equal(t, Counts{}, v.Counts("dev0"))
}

func TestVerifierOutstandingOrder(t *testing.T) {
	v := NewVerifier(NewHeap(0))
	for _, owner := range []string{"c", "a", "b"} {
		_, err := v.Allocate(owner, MakeTag("Echo"), 1)
		require.NoError(t, err)
	}

	blocks := v.Outstanding()
	require.Len(t, blocks, 3)
	assert.Equal(t, "a", blocks[0].Owner)
	assert.Equal(t, "b", blocks[1].Owner)
	assert.Equal(t, "c", blocks[2].Owner)
}
